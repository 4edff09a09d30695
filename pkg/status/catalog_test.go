package status_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ndimoski/taskmirror/pkg/models"
	"github.com/ndimoski/taskmirror/pkg/status"
)

func TestNormalize(t *testing.T) {
	cases := map[string]models.TaskStatus{
		"to do":              models.NotStartedTaskStatus,
		"To-Do":              models.NotStartedTaskStatus,
		"TODO":               models.NotStartedTaskStatus,
		"  not   started  ":  models.NotStartedTaskStatus,
		"In Progress":        models.InProgressTaskStatus,
		"working on it":      models.InProgressTaskStatus,
		"Stuck":              models.StuckTaskStatus,
		"waiting for":        models.WaitingForTaskStatus,
		"hold by client":     models.OnHoldByClientTaskStatus,
		"On Hold By Client!": models.OnHoldByClientTaskStatus,
		"need help":          models.NeedHelpTaskStatus,
		"Done":               models.CompletedTaskStatus,
		"cancelled":          models.CanceledTaskStatus,
	}
	for label, want := range cases {
		got, ok := status.Normalize(label)
		assert.True(t, ok, "label %q should normalize", label)
		assert.Equal(t, want, got, "label %q", label)
	}

	t.Run("UnknownLabelsDoNotNormalize", func(t *testing.T) {
		for _, label := range []string{"Blocked by Vendor", "", "fancy custom state"} {
			_, ok := status.Normalize(label)
			assert.False(t, ok, "label %q", label)
		}
	})
}

func TestIsReservedLabel(t *testing.T) {
	assert.True(t, status.IsReservedLabel("All"))
	assert.True(t, status.IsReservedLabel("Today's Task"))
	assert.True(t, status.IsReservedLabel("Recurring Task"))
	assert.False(t, status.IsReservedLabel("In Progress"))
	assert.False(t, status.IsReservedLabel("Blocked by Vendor"))
}

func TestCatalog(t *testing.T) {
	t.Run("FallbackSetWhenUnconfigured", func(t *testing.T) {
		c := status.NewCatalog()
		assert.Equal(t, []string{"Not Started", "In Progress", "Completed"}, c.Labels())
	})

	t.Run("EmptyDeliveryFallsBack", func(t *testing.T) {
		c := status.NewCatalog()
		c.Apply(models.StatusCatalogConfig{Labels: []string{"Custom"}})
		c.Apply(models.StatusCatalogConfig{})
		assert.Equal(t, []string{"Not Started", "In Progress", "Completed"}, c.Labels())
	})

	t.Run("ReservedLabelsExcludedFromEnumeration", func(t *testing.T) {
		c := status.NewCatalog()
		c.Apply(models.StatusCatalogConfig{
			Labels: []string{"All", "To Do", "Today's Task", "Blocked by Vendor", "Recurring Task"},
		})
		assert.Equal(t, []string{"To Do", "Blocked by Vendor"}, c.Labels())
	})

	t.Run("DuplicateLabelsCollapsed", func(t *testing.T) {
		c := status.NewCatalog()
		c.Apply(models.StatusCatalogConfig{Labels: []string{"To Do", "to-do", "Done"}})
		assert.Equal(t, []string{"To Do", "Done"}, c.Labels())
	})

	t.Run("ColorResolution", func(t *testing.T) {
		c := status.NewCatalog()
		c.Apply(models.StatusCatalogConfig{
			Labels: []string{"To Do", "Weird"},
			Colors: map[string]string{"To Do": "#123ABC", "Weird": "not-a-color"},
		})
		// Configured hex wins.
		assert.Equal(t, "#123ABC", c.ColorFor("to do"))
		// Invalid configured color, known status: per-status default.
		assert.NotEqual(t, status.ThemeDefaultColor, c.ColorFor("Done"))
		// Invalid configured color, unknown status: theme default.
		assert.Equal(t, status.ThemeDefaultColor, c.ColorFor("Weird"))
	})
}
