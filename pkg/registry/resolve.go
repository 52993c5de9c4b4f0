package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// Tag is the organization/dataset addressing pair.
type Tag struct {
	OrganizationSlug string
	DatasetSlug      string
}

func (t Tag) String() string {
	return t.OrganizationSlug + "/" + t.DatasetSlug
}

// ParseTag parses "org/dataset" or a bare "dataset".
//
// A bare dataset tag leaves OrganizationSlug empty; the caller decides which
// organization it resolves against (typically the caller's personal one).
// A present-but-blank tag is a BadRequest: the caller explicitly addressed
// nothing.
func ParseTag(tag string) (Tag, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return Tag{}, BadRequest("tag cannot be empty")
	}

	parts := strings.Split(tag, "/")
	switch len(parts) {
	case 1:
		if parts[0] == "" {
			return Tag{}, BadRequest("invalid tag: " + tag)
		}
		return Tag{DatasetSlug: parts[0]}, nil
	case 2:
		if parts[0] == "" || parts[1] == "" {
			return Tag{}, BadRequest("invalid tag: " + tag)
		}
		return Tag{OrganizationSlug: parts[0], DatasetSlug: parts[1]}, nil
	default:
		return Tag{}, BadRequest("invalid tag: " + tag)
	}
}

// GetOrganization looks up an organization by slug.
func GetOrganization(ctx context.Context, db *gorm.DB, orgSlug string) (*Organization, error) {
	if orgSlug == "" {
		return nil, BadRequest("missing organization slug")
	}

	var org Organization
	err := db.WithContext(ctx).Where("slug = ?", orgSlug).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("organization not found", orgSlug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query organization: %w", err)
	}
	return &org, nil
}

// GetDataset looks up a dataset by organization and dataset slug.
func GetDataset(ctx context.Context, db *gorm.DB, orgSlug, dsSlug string) (*Dataset, error) {
	if orgSlug == "" {
		return nil, BadRequest("missing organization slug")
	}
	if dsSlug == "" {
		return nil, BadRequest("missing dataset slug")
	}

	var ds Dataset
	err := db.WithContext(ctx).
		Where("organization_slug = ? AND slug = ?", orgSlug, dsSlug).
		First(&ds).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, NotFound("dataset not found", orgSlug+"/"+dsSlug)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset: %w", err)
	}
	return &ds, nil
}

// DatasetURL returns the canonical browse URL for a dataset.
func DatasetURL(ds *Dataset) string {
	return fmt.Sprintf("/r/%s/%s", ds.OrganizationSlug, ds.Slug)
}
