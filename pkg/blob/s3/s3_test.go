package s3

import (
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
)

// S3 access is exercised through the blobtest suite in integration
// environments; here we cover the pure key-mapping and error-classification
// logic that does not need a live endpoint.

func TestObjectKeyMapping(t *testing.T) {
	store := &S3Store{s3Bucket: "registry-data", keyPrefix: "registry/"}

	assert.Equal(t, "registry/org-abc/DJI_0019.JPG", store.objectKey("org-abc", "DJI_0019.JPG"))
	assert.Equal(t, "registry/org-abc/Sub/DJI_0048.JPG", store.objectKey("org-abc", "Sub/DJI_0048.JPG"))

	bare := &S3Store{s3Bucket: "registry-data"}
	assert.Equal(t, "org-abc/file.bin", bare.objectKey("org-abc", "file.bin"))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(&types.NoSuchKey{}))
	assert.False(t, isNotFound(errors.New("connection reset")))
	assert.False(t, isNotFound(nil))
}
