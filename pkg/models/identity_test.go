package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ndimoski/taskmirror/pkg/models"
)

func TestKeyFor(t *testing.T) {
	due := time.Date(2024, 5, 1, 14, 30, 0, 0, time.Local)

	t.Run("TitleFoldedAndTrimmed", func(t *testing.T) {
		a := models.KeyFor("  Quarterly Audit ", due, models.AdminSharedPartition)
		b := models.KeyFor("quarterly audit", due.Add(5*time.Hour), models.AdminSharedPartition)
		assert.Equal(t, a, b)
	})

	t.Run("DueDayDiscardsTimeOfDay", func(t *testing.T) {
		key := models.KeyFor("x", due, models.SelfPartition)
		assert.Equal(t, "2024-05-01", key.DueDay)
	})

	t.Run("PartitionIsPartOfTheKey", func(t *testing.T) {
		a := models.KeyFor("x", due, models.SelfPartition)
		b := models.KeyFor("x", due, models.AdminSharedPartition)
		assert.NotEqual(t, a, b)
	})
}

func TestSameLogicalTask(t *testing.T) {
	due := time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local)
	a := models.TaskRecord{Title: "Audit", DueDate: due, Origin: models.AdminSharedOrigin}
	b := models.TaskRecord{Title: " audit ", DueDate: due.Add(8 * time.Hour), Origin: models.SelfOrigin}
	c := models.TaskRecord{Title: "Audit", DueDate: due.AddDate(0, 0, 1)}

	// Partition and origin are ignored; title key and due day decide.
	assert.True(t, models.SameLogicalTask(a, b))
	assert.False(t, models.SameLogicalTask(a, c))
}

func TestHomePartition(t *testing.T) {
	due := time.Now()

	cases := []struct {
		rec  models.TaskRecord
		want models.Partition
	}{
		{models.TaskRecord{Title: "a", DueDate: due, Origin: models.SelfOrigin}, models.SelfPartition},
		{models.TaskRecord{Title: "a", DueDate: due, Origin: models.AdminSharedOrigin}, models.AdminSharedPartition},
		{models.TaskRecord{Title: "a", DueDate: due, Origin: models.ClientAssignedOrigin}, models.AdminSharedPartition},
		{models.TaskRecord{Title: "a", DueDate: due, Origin: models.SelfOrigin, Archived: true}, models.ArchivedPartition},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, c.rec.HomePartition(), "origin %s archived %v", c.rec.Origin, c.rec.Archived)
	}
}

func TestOwnerFilter(t *testing.T) {
	t.Run("ZeroMatchesNothing", func(t *testing.T) {
		var owner models.OwnerFilter
		assert.True(t, owner.IsZero())
		assert.False(t, owner.Matches("dana@example.com"))
	})

	t.Run("EmailOrUidCaseInsensitive", func(t *testing.T) {
		owner := models.OwnerFilter{UID: "u-123", Email: "Dana@Example.com"}
		assert.False(t, owner.IsZero())
		assert.True(t, owner.Matches("dana@example.com"))
		assert.True(t, owner.Matches("U-123"))
		assert.False(t, owner.Matches("lee@example.com"))
	})
}

func TestPriority(t *testing.T) {
	assert.Equal(t, "High", models.P1Priority.Label())
	assert.Equal(t, "Medium", models.P2Priority.Label())
	assert.Equal(t, "Low", models.P3Priority.Label())
	assert.Equal(t, "1", models.P1Priority.ShortCode())
	assert.Equal(t, "", models.Priority("").Label())
}

func TestTaskStatusValid(t *testing.T) {
	assert.True(t, models.InProgressTaskStatus.Valid())
	assert.False(t, models.TaskStatus("BOGUS").Valid())
	assert.False(t, models.TaskStatus("").Valid())
}
