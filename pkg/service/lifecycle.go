package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/ndimoski/taskmirror/pkg/dedup"
	"github.com/ndimoski/taskmirror/pkg/models"
	"github.com/ndimoski/taskmirror/pkg/status"
	"github.com/ndimoski/taskmirror/pkg/storage"
)

// Logger defines the logging interface for the service layer.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// ErrProgressLocked is returned when progress is edited outside the
// IN_PROGRESS state.
var ErrProgressLocked = errors.New("progress is only editable while the task is in progress")

// LifecycleEngine governs status transitions, progress, subtask state and
// archiving for task records. The state machine is flat: every status is
// reachable from every other by direct assignment, the single guard being
// that a transition into COMPLETED must carry a confirmed comment.
// Reopening completed work (COMPLETED back to NOT_STARTED) is legal.
type LifecycleEngine struct {
	store  storage.Store
	dedup  *dedup.Deduplicator
	logger Logger
}

func NewLifecycleEngine(store storage.Store, dd *dedup.Deduplicator, logger Logger) *LifecycleEngine {
	if dd == nil {
		dd = dedup.New()
	}
	return &LifecycleEngine{store: store, dedup: dd, logger: logger}
}

// CreateTask validates and creates a record in the partition owned by its
// origin. Validation failures are rejected before any write.
func (e *LifecycleEngine) CreateTask(rec models.TaskRecord) error {
	if strings.TrimSpace(rec.Title) == "" {
		return errors.New("task title cannot be empty")
	}
	partition := rec.HomePartition()
	if err := e.store.CreateRecord(partition, rec); err != nil {
		e.logger.Errorf("Failed to create task '%s' in partition %s: %v", rec.Title, partition, err)
		return err
	}
	e.logger.Infof("Created task '%s' in partition %s", rec.Title, partition)
	return nil
}

// PendingCompletion is the second phase of a transition into COMPLETED:
// the caller collects a comment and either confirms or cancels. Until
// Confirm succeeds, the stored status is untouched.
type PendingCompletion struct {
	engine *LifecycleEngine
	key    models.IdentityKey
	done   bool
}

// Confirm writes the COMPLETED status with the completion comment, which
// is persisted as a single activity-log entry, not as a field on the
// record. An empty comment is a validation failure and leaves the status
// unchanged.
func (p *PendingCompletion) Confirm(comment string) error {
	if p.done {
		return errors.New("completion already resolved")
	}
	if strings.TrimSpace(comment) == "" {
		return errors.New("completion comment cannot be empty")
	}
	if err := p.engine.store.WriteStatus(p.key, models.CompletedTaskStatus, comment); err != nil {
		p.engine.logger.Errorf("Failed to complete task %v: %v", p.key, err)
		return err
	}
	p.done = true
	p.engine.logger.Infof("Completed task %s/%s", p.key.TitleKey, p.key.DueDay)
	return nil
}

// Cancel abandons the completion. No write is attempted.
func (p *PendingCompletion) Cancel() {
	p.done = true
}

// Transition moves a record to a new status by direct assignment. A
// transition into COMPLETED is two-phase: no write happens here and the
// returned PendingCompletion must be confirmed with a comment. For every
// other status the write is immediate and the returned handle is nil.
func (e *LifecycleEngine) Transition(rec models.TaskRecord, next models.TaskStatus) (*PendingCompletion, error) {
	if !next.Valid() {
		return nil, errors.Errorf("unknown status %q", next)
	}
	key := rec.Key()
	if next == models.CompletedTaskStatus {
		return &PendingCompletion{engine: e, key: key}, nil
	}
	if err := e.store.WriteStatus(key, next, ""); err != nil {
		e.logger.Errorf("Failed to transition task %s/%s to %s: %v", key.TitleKey, key.DueDay, next, err)
		return nil, err
	}
	e.logger.Infof("Transitioned task %s/%s to %s", key.TitleKey, key.DueDay, next)
	return nil, nil
}

// UpdateStatusLabel writes the free-form display label verbatim. Only when
// the label normalizes to a known status is the normalized status updated
// too; otherwise the enum is left alone.
func (e *LifecycleEngine) UpdateStatusLabel(rec models.TaskRecord, label string) error {
	key := rec.Key()
	if err := e.store.WriteStatusLabel(key, label); err != nil {
		e.logger.Errorf("Failed to write status label on %s/%s: %v", key.TitleKey, key.DueDay, err)
		return err
	}
	if normalized, known := status.Normalize(label); known && normalized != rec.Status {
		if err := e.store.WriteStatus(key, normalized, ""); err != nil {
			e.logger.Errorf("Failed to re-derive status from label %q: %v", label, err)
			return err
		}
	}
	return nil
}

// ParseProgress interprets free-text progress input. Non-numeric input
// reports ok=false; numeric input is clamped to [0,100].
func ParseProgress(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	return clampProgress(n), true
}

func clampProgress(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

// UpdateProgress writes a clamped progress percentage. Progress is only
// mutable while the task is IN_PROGRESS; the progress UI is hidden
// otherwise, so any other state is a caller bug surfaced as an error.
func (e *LifecycleEngine) UpdateProgress(rec models.TaskRecord, percent int) error {
	if rec.Status != models.InProgressTaskStatus {
		return ErrProgressLocked
	}
	key := rec.Key()
	if err := e.store.WriteProgress(key, clampProgress(percent)); err != nil {
		e.logger.Errorf("Failed to write progress on %s/%s: %v", key.TitleKey, key.DueDay, err)
		return err
	}
	return nil
}

// UpdateProgressText handles raw text input from a progress field.
// Non-digit input is discarded silently, leaving the prior value; numeric
// input is clamped and written.
func (e *LifecycleEngine) UpdateProgressText(rec models.TaskRecord, raw string) error {
	percent, ok := ParseProgress(raw)
	if !ok {
		return nil
	}
	return e.UpdateProgress(rec, percent)
}

// Archive moves a record into the archived partition without altering its
// identity.
func (e *LifecycleEngine) Archive(rec models.TaskRecord) error {
	if err := e.store.ArchiveRecord(rec.Key()); err != nil {
		e.logger.Errorf("Failed to archive task '%s': %v", rec.Title, err)
		return err
	}
	e.logger.Infof("Archived task '%s'", rec.Title)
	return nil
}

// Unarchive moves a record back to its home partition.
func (e *LifecycleEngine) Unarchive(rec models.TaskRecord) error {
	key := models.KeyFor(rec.Title, rec.DueDate, models.ArchivedPartition)
	if err := e.store.UnarchiveRecord(key); err != nil {
		e.logger.Errorf("Failed to unarchive task '%s': %v", rec.Title, err)
		return err
	}
	e.logger.Infof("Unarchived task '%s'", rec.Title)
	return nil
}

// Delete removes a record from its owning partition.
func (e *LifecycleEngine) Delete(rec models.TaskRecord) error {
	if err := e.store.DeleteRecord(rec.Key()); err != nil {
		e.logger.Errorf("Failed to delete task '%s': %v", rec.Title, err)
		return err
	}
	e.logger.Infof("Deleted task '%s'", rec.Title)
	return nil
}

// ReassignOrigin switches a task between origins (e.g. Self to Admin) by
// deleting it from its current partition and recreating it in the target
// one. Ownership is re-established, not migrated: the activity history
// attached to the old record is not carried over. Known retention gap,
// kept for behavioral parity.
func (e *LifecycleEngine) ReassignOrigin(rec models.TaskRecord, next models.TaskOrigin) error {
	if rec.Origin == next {
		return nil
	}
	if err := e.store.DeleteRecord(rec.Key()); err != nil {
		e.logger.Errorf("Failed to remove task '%s' from %s: %v", rec.Title, rec.HomePartition(), err)
		return err
	}
	moved := rec
	moved.Origin = next
	if err := e.store.CreateRecord(moved.HomePartition(), moved); err != nil {
		e.logger.Errorf("Failed to recreate task '%s' in %s: %v", rec.Title, moved.HomePartition(), err)
		return err
	}
	e.logger.Infof("Reassigned task '%s' from %s to %s", rec.Title, rec.Origin, next)
	return nil
}

// SetSubtaskStatus writes the independent subtask rollup field. It is
// never derived from the child subtask statuses.
func (e *LifecycleEngine) SetSubtaskStatus(rec models.TaskRecord, s models.TaskStatus) error {
	if !s.Valid() {
		return errors.Errorf("unknown status %q", s)
	}
	return e.store.WriteSubtaskStatus(rec.Key(), s)
}

// RewriteLegacySubtasks replaces the whole legacy free-text subtask blob.
// This is the only mutation path for legacy entries.
func (e *LifecycleEngine) RewriteLegacySubtasks(rec models.TaskRecord, raw string) error {
	return e.store.WriteSubtaskText(rec.Key(), raw)
}

// SaveSubtask upserts a structured subtask by id, assigning one when new.
func (e *LifecycleEngine) SaveSubtask(rec models.TaskRecord, sub models.SubtaskRecord) error {
	if strings.TrimSpace(sub.Title) == "" {
		return errors.New("subtask title cannot be empty")
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	return e.store.SaveSubtask(rec.Key(), sub)
}

// AddComment appends a free activity entry for a task.
func (e *LifecycleEngine) AddComment(rec models.TaskRecord, user, message string) error {
	if strings.TrimSpace(message) == "" {
		return errors.New("comment cannot be empty")
	}
	return e.store.AppendActivity(rec.Key(), models.ActivityEntry{
		ID:       uuid.NewString(),
		User:     user,
		Message:  message,
		LoggedAt: time.Now(),
	})
}

// HygieneSweep bulk-deletes the known junk titles for an owner across all
// partitions.
func (e *LifecycleEngine) HygieneSweep(owner models.OwnerFilter) error {
	titles := e.dedup.DenylistTitles()
	if err := e.store.DeleteRecordsByTitle(titles, owner); err != nil {
		e.logger.Errorf("Hygiene sweep failed: %v", err)
		return err
	}
	e.logger.Infof("Hygiene sweep removed junk titles %v", titles)
	return nil
}
