package storage

import (
	"context"

	"github.com/pkg/errors"

	"github.com/ndimoski/taskmirror/pkg/models"
)

// ErrNotFound is returned when no record matches an identity key.
var ErrNotFound = errors.New("record not found")

// Store is the contract with the source partition store. All addressing is
// by natural identity key (title, due calendar day, partition) because the
// core has no reliable opaque id available at read time in all code paths.
//
// Subscriptions deliver full snapshots on every change and are torn down
// when the given context is cancelled. A zero OwnerFilter yields an empty
// stream rather than an error. Writes are synchronous; callers treat them
// as fire-and-forget and do not retry.
type Store interface {
	// Subscribe streams the records of one partition scoped to an owner.
	Subscribe(ctx context.Context, partition models.Partition, owner models.OwnerFilter) (<-chan []models.TaskRecord, error)
	// SubscribeAssigned is the supplementary assigned-to-me query used as a
	// fallback when the primary partition stream is empty.
	SubscribeAssigned(ctx context.Context, owner models.OwnerFilter) (<-chan []models.TaskRecord, error)
	SubscribeSubtasks(ctx context.Context, key models.IdentityKey) (<-chan []models.SubtaskRecord, error)
	SubscribeActivity(ctx context.Context, key models.IdentityKey) (<-chan []models.ActivityEntry, error)
	SubscribeStatusCatalog(ctx context.Context) (<-chan models.StatusCatalogConfig, error)

	CreateRecord(partition models.Partition, rec models.TaskRecord) error
	WriteStatus(key models.IdentityKey, status models.TaskStatus, comment string) error
	WriteStatusLabel(key models.IdentityKey, label string) error
	WriteProgress(key models.IdentityKey, percent int) error
	ArchiveRecord(key models.IdentityKey) error
	UnarchiveRecord(key models.IdentityKey) error
	DeleteRecord(key models.IdentityKey) error
	// DeleteRecordsByTitle is the bulk hygiene sweep: every record owned by
	// the filter whose normalized title matches one of the titles is removed.
	DeleteRecordsByTitle(titles []string, owner models.OwnerFilter) error

	WriteSubtaskStatus(key models.IdentityKey, status models.TaskStatus) error
	WriteSubtaskText(key models.IdentityKey, raw string) error
	SaveSubtask(key models.IdentityKey, sub models.SubtaskRecord) error
	AppendActivity(key models.IdentityKey, entry models.ActivityEntry) error

	Close() error
}
