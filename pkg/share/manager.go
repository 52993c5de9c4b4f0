// Package share implements the batch upload protocol: a client opens a
// batch against a dataset, streams files into it using the batch token as
// its only credential, and commits.
//
// Batches are bookkeeping, not staging. Every Upload delegates to the
// object manager and is live in the blob store and index immediately;
// Commit only finalizes the batch record. Opening a new batch against a
// dataset rolls back any batch still running there, inside the same
// database transaction that creates the new one, so at most one batch is
// ever running per dataset.
package share

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aeriallabs/registry/internal/logger"
	"github.com/aeriallabs/registry/pkg/index"
	"github.com/aeriallabs/registry/pkg/naming"
	"github.com/aeriallabs/registry/pkg/objects"
	"github.com/aeriallabs/registry/pkg/registry"
)

// tokenRetries bounds the collision-retry loop when generating batch
// tokens. Collisions are vanishingly rare; hitting the bound means the
// generator is broken.
const tokenRetries = 5

// Manager owns the batch lifecycle.
type Manager struct {
	db      *gorm.DB
	objects *objects.Manager
	tokens  *naming.TokenGenerator
	names   *naming.NameGenerator
}

// NewManager creates a share manager.
func NewManager(db *gorm.DB, objectManager *objects.Manager, tokens *naming.TokenGenerator, names *naming.NameGenerator) *Manager {
	return &Manager{
		db:      db,
		objects: objectManager,
		tokens:  tokens,
		names:   names,
	}
}

// InitRequest describes the target of a new batch.
//
// A nil Tag synthesizes a fresh dataset named by the name generator inside
// the caller's personal organization. A present Tag must parse as
// "org/dataset" or a bare "dataset"; the bare form also resolves against
// the caller's personal organization.
type InitRequest struct {
	Tag         *string
	DatasetName string
	Password    string
}

// InitResult is the outcome of Initialize.
type InitResult struct {
	Token string
	Tag   registry.Tag
}

// Initialize opens a new batch, creating the target organization and
// dataset when they don't exist yet.
func (m *Manager) Initialize(ctx context.Context, caller string, req *InitRequest) (*InitResult, error) {
	if req == nil {
		return nil, registry.BadRequest("missing share request")
	}
	if caller == "" {
		return nil, registry.Unauthorized("anonymous callers cannot open batches")
	}

	var tag registry.Tag
	generated := false
	if req.Tag != nil {
		parsed, err := registry.ParseTag(*req.Tag)
		if err != nil {
			return nil, err
		}
		tag = parsed
	} else {
		name, err := m.names.Generate()
		if err != nil {
			return nil, err
		}
		tag = registry.Tag{DatasetSlug: name}
		generated = true
	}
	if tag.OrganizationSlug == "" {
		tag.OrganizationSlug = naming.Slugify(caller)
		if tag.OrganizationSlug == "" {
			return nil, registry.BadRequest("caller name yields no usable organization slug")
		}
	}

	var result *InitResult
	open := func() error {
		return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return m.openBatch(ctx, tx, &tag, caller, req, generated, &result)
		})
	}
	err := open()
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Lost a race with another Initialize on the same dataset: the
		// one-running-batch index rejected our insert. The winner's batch
		// is committed and visible now, so a retry supersedes it.
		err = open()
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// openBatch runs the supersede-then-create sequence inside tx.
func (m *Manager) openBatch(ctx context.Context, tx *gorm.DB, tag *registry.Tag, caller string, req *InitRequest, generated bool, result **InitResult) error {
	org, err := m.resolveOrg(ctx, tx, tag.OrganizationSlug, caller)
	if err != nil {
		return err
	}

	ds, err := m.resolveDataset(ctx, tx, org, tag.DatasetSlug, req, generated)
	if err != nil {
		return err
	}
	tag.DatasetSlug = ds.Slug

	// Supersede any batch still running against this dataset. The row
	// update and the new batch land in the same transaction, and the
	// one-running-batch index backstops the sequence against a concurrent
	// open this transaction cannot see.
	now := time.Now().UTC()
	err = tx.Model(&registry.Batch{}).
		Where("dataset_id = ? AND status = ?", ds.ID, registry.BatchRunning).
		Updates(map[string]any{"status": registry.BatchRolledBack, "end": now}).Error
	if err != nil {
		return fmt.Errorf("failed to supersede running batch: %w", err)
	}

	token, err := m.uniqueToken(tx)
	if err != nil {
		return err
	}

	batch := &registry.Batch{
		Token:     token,
		DatasetID: ds.ID,
		UserName:  caller,
		Status:    registry.BatchRunning,
		Start:     now,
	}
	if err := tx.Create(batch).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return fmt.Errorf("failed to create batch: %w", err)
	}

	logger.Info("batch %s opened on %s by %s", token, *tag, caller)
	*result = &InitResult{Token: token, Tag: *tag}
	return nil
}

// resolveOrg loads the organization or creates it owned by the caller.
// Opening a batch inside someone else's organization is Unauthorized.
func (m *Manager) resolveOrg(ctx context.Context, tx *gorm.DB, slug, caller string) (*registry.Organization, error) {
	var org registry.Organization
	err := tx.WithContext(ctx).Where("slug = ?", slug).First(&org).Error
	if err == nil {
		if org.OwnerName != caller {
			return nil, registry.Unauthorized("organization belongs to another user")
		}
		return &org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query organization: %w", err)
	}

	org = registry.Organization{
		Slug:         slug,
		Name:         slug,
		OwnerName:    caller,
		CreationDate: time.Now().UTC(),
	}
	if err := tx.Create(&org).Error; err != nil {
		return nil, fmt.Errorf("failed to create organization: %w", err)
	}
	return &org, nil
}

// resolveDataset loads the dataset or creates it. Generated slugs retry on
// collision within the organization; explicit slugs resolve to the existing
// dataset instead.
func (m *Manager) resolveDataset(ctx context.Context, tx *gorm.DB, org *registry.Organization, slug string, req *InitRequest, generated bool) (*registry.Dataset, error) {
	if !naming.IsValidSlug(slug) {
		return nil, registry.BadRequest("invalid dataset slug: " + slug)
	}

	var ds registry.Dataset
	err := tx.WithContext(ctx).
		Where("organization_slug = ? AND slug = ?", org.Slug, slug).
		First(&ds).Error
	if err == nil {
		if generated {
			// The generated name collided; pick a free one instead of
			// targeting someone's existing dataset.
			unique, err := naming.UniqueSlug(ctx, slug, func(candidate string) (bool, error) {
				var count int64
				err := tx.Model(&registry.Dataset{}).
					Where("organization_slug = ? AND slug = ?", org.Slug, candidate).
					Count(&count).Error
				return count > 0, err
			})
			if err != nil {
				return nil, err
			}
			return m.createDataset(tx, org, unique, req)
		}
		return &ds, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to query dataset: %w", err)
	}

	return m.createDataset(tx, org, slug, req)
}

func (m *Manager) createDataset(tx *gorm.DB, org *registry.Organization, slug string, req *InitRequest) (*registry.Dataset, error) {
	name := req.DatasetName
	if name == "" {
		name = slug
	}

	ds := registry.Dataset{
		Slug:             slug,
		OrganizationSlug: org.Slug,
		Name:             name,
		InternalRef:      uuid.New(),
		CreationDate:     time.Now().UTC(),
	}
	if req.Password != "" {
		sum := sha256.Sum256([]byte(req.Password))
		ds.PasswordHash = hex.EncodeToString(sum[:])
	}
	if err := tx.Create(&ds).Error; err != nil {
		return nil, fmt.Errorf("failed to create dataset: %w", err)
	}
	return &ds, nil
}

func (m *Manager) uniqueToken(tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < tokenRetries; attempt++ {
		token, err := m.tokens.Generate()
		if err != nil {
			return "", err
		}
		var count int64
		if err := tx.Model(&registry.Batch{}).Where("token = ?", token).Count(&count).Error; err != nil {
			return "", fmt.Errorf("failed to check token uniqueness: %w", err)
		}
		if count == 0 {
			return token, nil
		}
	}
	return "", fmt.Errorf("could not generate a unique batch token after %d attempts", tokenRetries)
}

// findBatch loads a batch by token with its dataset.
func (m *Manager) findBatch(ctx context.Context, token string) (*registry.Batch, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, registry.BadRequest("missing batch token")
	}

	var batch registry.Batch
	err := m.db.WithContext(ctx).Preload("Dataset").Where("token = ?", token).First(&batch).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, registry.NotFound("unknown batch token")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query batch: %w", err)
	}
	return &batch, nil
}

// Upload stores one file under the batch's dataset and records it against
// the batch. The write is live immediately; a later rollback of the batch
// does not remove it.
func (m *Manager) Upload(ctx context.Context, token, path string, data io.Reader) (*index.Entry, error) {
	batch, err := m.findBatch(ctx, token)
	if err != nil {
		return nil, err
	}
	if batch.Status != registry.BatchRunning {
		return nil, registry.BadRequest("batch is " + batch.Status.String())
	}
	if data == nil {
		return nil, registry.BadRequest("upload requires file content", path)
	}

	entry, err := m.objects.AddNew(ctx, batch.Dataset.OrganizationSlug, batch.Dataset.Slug, path, data)
	if err != nil {
		return nil, err
	}

	record := registry.BatchEntry{
		BatchID: batch.ID,
		Path:    entry.Path,
		Size:    entry.Size,
		Hash:    entry.Hash,
		Type:    int(entry.Type),
		AddedOn: time.Now().UTC(),
	}
	if len(entry.Properties) > 0 {
		props, err := json.Marshal(entry.Properties)
		if err != nil {
			return nil, fmt.Errorf("failed to encode entry properties: %w", err)
		}
		record.Properties = props
	}
	if err := m.db.WithContext(ctx).Create(&record).Error; err != nil {
		return nil, fmt.Errorf("failed to record batch entry: %w", err)
	}

	return entry, nil
}

// CommitResult is the outcome of Commit.
type CommitResult struct {
	// URL is the canonical browse location, /r/{org}/{dataset}.
	URL string
	Tag registry.Tag
}

// Commit closes a running batch. Committing re-validates nothing: every
// upload is already live, so this only finalizes the batch record.
func (m *Manager) Commit(ctx context.Context, token string) (*CommitResult, error) {
	batch, err := m.findBatch(ctx, token)
	if err != nil {
		return nil, err
	}
	if batch.Status != registry.BatchRunning {
		return nil, registry.BadRequest("batch is " + batch.Status.String())
	}

	// The status guard keeps a commit racing a superseding Initialize from
	// resurrecting a just-rolled-back batch.
	now := time.Now().UTC()
	res := m.db.WithContext(ctx).Model(&registry.Batch{}).
		Where("id = ? AND status = ?", batch.ID, registry.BatchRunning).
		Updates(map[string]any{"status": registry.BatchCommitted, "end": now})
	if res.Error != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, registry.BadRequest("batch is no longer running")
	}

	tag := registry.Tag{
		OrganizationSlug: batch.Dataset.OrganizationSlug,
		DatasetSlug:      batch.Dataset.Slug,
	}
	logger.Info("batch %s committed on %s", token, tag)
	return &CommitResult{URL: registry.DatasetURL(&batch.Dataset), Tag: tag}, nil
}

// GetBatchInfo returns a batch and its uploaded entries by token.
func (m *Manager) GetBatchInfo(ctx context.Context, token string) (*registry.Batch, error) {
	batch, err := m.findBatch(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := m.db.WithContext(ctx).Preload("Entries").First(batch, batch.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to load batch entries: %w", err)
	}
	return batch, nil
}

// ListBatches returns every batch for a dataset, any status, with entries,
// ordered by start time.
func (m *Manager) ListBatches(ctx context.Context, orgSlug, datasetSlug string) ([]registry.Batch, error) {
	ds, err := registry.GetDataset(ctx, m.db, orgSlug, datasetSlug)
	if err != nil {
		return nil, err
	}

	var batches []registry.Batch
	err = m.db.WithContext(ctx).
		Preload("Entries").
		Where("dataset_id = ?", ds.ID).
		Order("start asc, id asc").
		Find(&batches).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list batches: %w", err)
	}
	return batches, nil
}
