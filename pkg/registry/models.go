package registry

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Organization is the top-level namespace that owns datasets.
//
// Organizations are addressed by slug. OwnerName is the user that created the
// organization; a caller may only create datasets (and therefore batches)
// inside organizations they own. Identity management itself is external: the
// registry only records the owner's name.
type Organization struct {
	// Slug is the URL-safe unique identifier (primary key)
	Slug string `gorm:"primaryKey;size:128"`

	// Name is the human-readable display name
	Name string `gorm:"not null"`

	Description string
	OwnerName   string `gorm:"index"`
	IsPublic    bool

	CreationDate time.Time

	Datasets []Dataset `gorm:"foreignKey:OrganizationSlug;constraint:OnDelete:CASCADE"`
}

// Dataset is a named, versionable file store inside an organization.
//
// The InternalRef decouples the storage bucket from the slug so a dataset can
// be renamed without rewriting blob keys.
type Dataset struct {
	ID uint `gorm:"primaryKey"`

	// Slug is unique within the owning organization
	Slug string `gorm:"size:128;not null;uniqueIndex:idx_org_dataset"`

	OrganizationSlug string `gorm:"size:128;not null;uniqueIndex:idx_org_dataset"`

	Name string `gorm:"not null"`

	// InternalRef identifies the dataset's bucket and metadata index
	InternalRef uuid.UUID `gorm:"type:char(36);not null"`

	// PasswordHash is the SHA-256 hex digest of the dataset password, empty
	// when the dataset is not password protected
	PasswordHash string

	CreationDate time.Time

	Batches []Batch `gorm:"foreignKey:DatasetID;constraint:OnDelete:CASCADE"`
}

// Bucket returns the blob store bucket backing this dataset.
func (d *Dataset) Bucket() string {
	return fmt.Sprintf("%s-%s", d.OrganizationSlug, d.InternalRef)
}

// BatchStatus describes the lifecycle state of a batch.
//
// Running is the only non-terminal state: a batch can move to Committed via
// Commit, or to RolledBack when a newer Initialize supersedes it. No
// transition ever leaves a terminal state.
type BatchStatus int

const (
	BatchRunning BatchStatus = iota
	BatchCommitted
	BatchRolledBack
)

func (s BatchStatus) String() string {
	switch s {
	case BatchRunning:
		return "running"
	case BatchCommitted:
		return "committed"
	case BatchRolledBack:
		return "rolledback"
	default:
		return "unknown"
	}
}

// Batch is an upload transaction against a dataset.
//
// The token is the sole credential needed to upload to, inspect, or commit
// the batch; it is unique across the whole registry for the batch's lifetime.
type Batch struct {
	ID uint `gorm:"primaryKey"`

	Token string `gorm:"size:64;not null;uniqueIndex"`

	DatasetID uint    `gorm:"not null;index"`
	Dataset   Dataset `gorm:"foreignKey:DatasetID"`

	UserName string `gorm:"not null"`

	Status BatchStatus `gorm:"not null;index"`

	Start time.Time
	End   *time.Time

	Entries []BatchEntry `gorm:"foreignKey:BatchID;constraint:OnDelete:CASCADE"`
}

// BatchEntry records one file successfully uploaded under a batch.
type BatchEntry struct {
	ID uint `gorm:"primaryKey"`

	BatchID uint `gorm:"not null;index"`

	Path string `gorm:"not null"`
	Size int64
	Hash string

	// Type is the detected entry type, stored as its numeric code
	Type int

	// Properties holds the entry's metadata as recorded at upload time
	Properties datatypes.JSON

	AddedOn time.Time
}
