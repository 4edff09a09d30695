package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ndimoski/taskmirror/pkg/dedup"
	"github.com/ndimoski/taskmirror/pkg/models"
	"github.com/ndimoski/taskmirror/pkg/service"
	"github.com/ndimoski/taskmirror/pkg/storage"
)

type noopLogger struct{}

func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

func newEngine(t *testing.T) (*service.LifecycleEngine, *storage.MockStore) {
	t.Helper()
	store := storage.NewMockStore()
	return service.NewLifecycleEngine(store, dedup.New(), noopLogger{}), store
}

func selfTask(title string) models.TaskRecord {
	return models.TaskRecord{
		Title:      title,
		Status:     models.NotStartedTaskStatus,
		DueDate:    time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local),
		AssignedTo: "dana@example.com",
		Origin:     models.SelfOrigin,
	}
}

func TestCreateTask(t *testing.T) {
	engine, store := newEngine(t)

	t.Run("EmptyTitleRejectedBeforeWrite", func(t *testing.T) {
		err := engine.CreateTask(selfTask("   "))
		assert.Error(t, err)
		_, lookupErr := store.GetRecord(models.KeyFor("   ", time.Now(), models.SelfPartition))
		assert.ErrorIs(t, lookupErr, storage.ErrNotFound)
	})

	t.Run("LandsInHomePartition", func(t *testing.T) {
		rec := selfTask("write minutes")
		assert.NoError(t, engine.CreateTask(rec))
		got, err := store.GetRecord(rec.Key())
		assert.NoError(t, err)
		assert.Equal(t, models.SelfPartition, rec.Key().Partition)
		assert.Equal(t, "write minutes", got.Title)

		shared := selfTask("shared item")
		shared.Origin = models.AdminSharedOrigin
		assert.NoError(t, engine.CreateTask(shared))
		assert.Equal(t, models.AdminSharedPartition, shared.Key().Partition)
	})
}

func TestTransition(t *testing.T) {
	engine, store := newEngine(t)
	rec := selfTask("migrate database")
	assert.NoError(t, engine.CreateTask(rec))

	t.Run("DirectAssignmentForOrdinaryStatuses", func(t *testing.T) {
		pending, err := engine.Transition(rec, models.StuckTaskStatus)
		assert.NoError(t, err)
		assert.Nil(t, pending)
		got, _ := store.GetRecord(rec.Key())
		assert.Equal(t, models.StuckTaskStatus, got.Status)
	})

	t.Run("UnknownStatusRejected", func(t *testing.T) {
		_, err := engine.Transition(rec, models.TaskStatus("BOGUS"))
		assert.Error(t, err)
	})

	t.Run("CompletionIsTwoPhase", func(t *testing.T) {
		pending, err := engine.Transition(rec, models.CompletedTaskStatus)
		assert.NoError(t, err)
		assert.NotNil(t, pending)

		// Nothing written until the comment is confirmed.
		got, _ := store.GetRecord(rec.Key())
		assert.Equal(t, models.StuckTaskStatus, got.Status)

		assert.Error(t, pending.Confirm("  "))
		got, _ = store.GetRecord(rec.Key())
		assert.Equal(t, models.StuckTaskStatus, got.Status)

		assert.NoError(t, pending.Confirm("deployed and verified"))
		got, _ = store.GetRecord(rec.Key())
		assert.Equal(t, models.CompletedTaskStatus, got.Status)

		entries := store.ActivityFor(rec.Key())
		assert.Len(t, entries, 1)
		assert.Equal(t, "deployed and verified", entries[0].Message)

		assert.Error(t, pending.Confirm("again"), "a resolved handle cannot confirm twice")
	})

	t.Run("CancelLeavesStatusUntouched", func(t *testing.T) {
		other := selfTask("draft proposal")
		assert.NoError(t, engine.CreateTask(other))
		pending, err := engine.Transition(other, models.CompletedTaskStatus)
		assert.NoError(t, err)
		pending.Cancel()
		got, _ := store.GetRecord(other.Key())
		assert.Equal(t, models.NotStartedTaskStatus, got.Status)
		assert.Empty(t, store.ActivityFor(other.Key()))
	})

	t.Run("ReopeningCompletedWorkIsLegal", func(t *testing.T) {
		got, _ := store.GetRecord(rec.Key())
		_, err := engine.Transition(got, models.NotStartedTaskStatus)
		assert.NoError(t, err)
		got, _ = store.GetRecord(rec.Key())
		assert.Equal(t, models.NotStartedTaskStatus, got.Status)
	})
}

func TestUpdateStatusLabel(t *testing.T) {
	engine, store := newEngine(t)
	rec := selfTask("review contract")
	assert.NoError(t, engine.CreateTask(rec))

	t.Run("KnownLabelRederivesStatus", func(t *testing.T) {
		assert.NoError(t, engine.UpdateStatusLabel(rec, "Working on it"))
		got, _ := store.GetRecord(rec.Key())
		assert.Equal(t, "Working on it", got.StatusLabel)
		assert.Equal(t, models.InProgressTaskStatus, got.Status)
	})

	t.Run("UnknownLabelLeavesStatusAlone", func(t *testing.T) {
		got, _ := store.GetRecord(rec.Key())
		assert.NoError(t, engine.UpdateStatusLabel(got, "Blocked by Vendor"))
		got, _ = store.GetRecord(rec.Key())
		assert.Equal(t, "Blocked by Vendor", got.StatusLabel)
		assert.Equal(t, models.InProgressTaskStatus, got.Status)
	})
}

func TestProgress(t *testing.T) {
	engine, store := newEngine(t)
	rec := selfTask("load test")
	rec.Status = models.InProgressTaskStatus
	assert.NoError(t, engine.CreateTask(rec))

	t.Run("Clamped", func(t *testing.T) {
		assert.NoError(t, engine.UpdateProgress(rec, 150))
		got, _ := store.GetRecord(rec.Key())
		assert.Equal(t, 100, got.Progress)

		assert.NoError(t, engine.UpdateProgress(rec, -5))
		got, _ = store.GetRecord(rec.Key())
		assert.Equal(t, 0, got.Progress)
	})

	t.Run("LockedOutsideInProgress", func(t *testing.T) {
		locked := rec
		locked.Status = models.StuckTaskStatus
		err := engine.UpdateProgress(locked, 40)
		assert.ErrorIs(t, err, service.ErrProgressLocked)
	})

	t.Run("TextInput", func(t *testing.T) {
		assert.NoError(t, engine.UpdateProgressText(rec, " 42 "))
		got, _ := store.GetRecord(rec.Key())
		assert.Equal(t, 42, got.Progress)

		// Non-numeric input is discarded, prior value survives.
		assert.NoError(t, engine.UpdateProgressText(rec, "almost done"))
		got, _ = store.GetRecord(rec.Key())
		assert.Equal(t, 42, got.Progress)
	})
}

func TestParseProgress(t *testing.T) {
	cases := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"0", 0, true},
		{" 55 ", 55, true},
		{"100", 100, true},
		{"150", 100, true},
		{"-1", 0, true},
		{"abc", 0, false},
		{"", 0, false},
		{"12%", 0, false},
	}
	for _, c := range cases {
		got, ok := service.ParseProgress(c.raw)
		assert.Equal(t, c.ok, ok, "raw %q", c.raw)
		assert.Equal(t, c.want, got, "raw %q", c.raw)
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	engine, store := newEngine(t)
	rec := selfTask("quarterly report")
	assert.NoError(t, engine.CreateTask(rec))
	assert.NoError(t, engine.AddComment(rec, "dana@example.com", "first draft done"))

	assert.NoError(t, engine.Archive(rec))
	_, err := store.GetRecord(rec.Key())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	archKey := models.KeyFor(rec.Title, rec.DueDate, models.ArchivedPartition)
	archived, err := store.GetRecord(archKey)
	assert.NoError(t, err)
	assert.True(t, archived.Archived)

	assert.NoError(t, engine.Unarchive(rec))
	restored, err := store.GetRecord(rec.Key())
	assert.NoError(t, err)
	assert.False(t, restored.Archived)

	// Activity hangs off the partition-less identity, so it survives the
	// round trip.
	assert.Len(t, store.ActivityFor(rec.Key()), 1)
}

func TestReassignOrigin(t *testing.T) {
	engine, store := newEngine(t)
	rec := selfTask("handover doc")
	assert.NoError(t, engine.CreateTask(rec))

	assert.NoError(t, engine.ReassignOrigin(rec, models.AdminSharedOrigin))

	_, err := store.GetRecord(rec.Key())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	moved, err := store.GetRecord(models.KeyFor(rec.Title, rec.DueDate, models.AdminSharedPartition))
	assert.NoError(t, err)
	assert.Equal(t, models.AdminSharedOrigin, moved.Origin)

	t.Run("SameOriginIsNoop", func(t *testing.T) {
		moved.Origin = models.AdminSharedOrigin
		assert.NoError(t, engine.ReassignOrigin(moved, models.AdminSharedOrigin))
	})
}

func TestSubtaskRollup(t *testing.T) {
	engine, store := newEngine(t)
	rec := selfTask("release checklist")
	assert.NoError(t, engine.CreateTask(rec))

	assert.NoError(t, engine.SetSubtaskStatus(rec, models.InProgressTaskStatus))
	got, _ := store.GetRecord(rec.Key())
	assert.Equal(t, models.InProgressTaskStatus, got.SubtaskStatus)

	// The rollup is an independent field, never derived from children.
	assert.NoError(t, engine.SaveSubtask(rec, models.SubtaskRecord{Title: "tag build", Status: models.CompletedTaskStatus}))
	got, _ = store.GetRecord(rec.Key())
	assert.Equal(t, models.InProgressTaskStatus, got.SubtaskStatus)

	assert.Error(t, engine.SetSubtaskStatus(rec, models.TaskStatus("NOPE")))
}

func TestSaveSubtask(t *testing.T) {
	engine, _ := newEngine(t)
	rec := selfTask("release checklist")
	assert.NoError(t, engine.CreateTask(rec))

	assert.Error(t, engine.SaveSubtask(rec, models.SubtaskRecord{Title: " "}))
	assert.NoError(t, engine.SaveSubtask(rec, models.SubtaskRecord{Title: "tag build"}))
}

func TestAddComment(t *testing.T) {
	engine, store := newEngine(t)
	rec := selfTask("sync with legal")
	assert.NoError(t, engine.CreateTask(rec))

	assert.Error(t, engine.AddComment(rec, "dana@example.com", "  "))
	assert.NoError(t, engine.AddComment(rec, "dana@example.com", "waiting on redlines"))

	entries := store.ActivityFor(rec.Key())
	assert.Len(t, entries, 1)
	assert.Equal(t, "waiting on redlines", entries[0].Message)
	assert.NotEmpty(t, entries[0].ID)
}

func TestHygieneSweep(t *testing.T) {
	engine, store := newEngine(t)
	owner := models.OwnerFilter{Email: "dana@example.com"}

	for _, title := range []string{"Mmm", "Test", "real work"} {
		assert.NoError(t, engine.CreateTask(selfTask(title)))
	}
	other := selfTask("Testing")
	other.AssignedTo = "lee@example.com"
	assert.NoError(t, engine.CreateTask(other))

	assert.NoError(t, engine.HygieneSweep(owner))

	_, err := store.GetRecord(selfTask("Mmm").Key())
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetRecord(selfTask("Test").Key())
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = store.GetRecord(selfTask("real work").Key())
	assert.NoError(t, err)
	// Other owners' records are untouched.
	_, err = store.GetRecord(other.Key())
	assert.NoError(t, err)
}

func TestDeleteTask(t *testing.T) {
	engine, store := newEngine(t)
	rec := selfTask("obsolete item")
	assert.NoError(t, engine.CreateTask(rec))
	assert.NoError(t, engine.Delete(rec))
	_, err := store.GetRecord(rec.Key())
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Error(t, engine.Delete(rec))
}
