package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ndimoski/taskmirror/pkg/models"
	"github.com/ndimoski/taskmirror/pkg/service"
)

func TestParseLegacySubtasks(t *testing.T) {
	t.Run("OneSubtaskPerLine", func(t *testing.T) {
		subs := service.ParseLegacySubtasks("buy cables\nrack the server\n")
		assert.Len(t, subs, 2)
		assert.Equal(t, "buy cables", subs[0].Title)
		assert.Equal(t, "rack the server", subs[1].Title)
		assert.Equal(t, models.NotStartedTaskStatus, subs[0].Status)
	})

	t.Run("InlineTagsExtracted", func(t *testing.T) {
		subs := service.ParseLegacySubtasks("Review contract [Due: 2024-05-01] [Assignee: dana] [P: High]")
		assert.Len(t, subs, 1)
		sub := subs[0]
		assert.Equal(t, "Review contract", sub.Title)
		assert.Equal(t, "dana", sub.AssignedTo)
		assert.Equal(t, models.P1Priority, sub.Priority)
		if assert.NotNil(t, sub.DueDate) {
			assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *sub.DueDate)
		}
	})

	t.Run("PriorityTagSpellings", func(t *testing.T) {
		cases := map[string]models.Priority{
			"[P: p1]":     models.P1Priority,
			"[P: 2]":      models.P2Priority,
			"[P: low]":    models.P3Priority,
			"[P: urgent]": "",
		}
		for tag, want := range cases {
			subs := service.ParseLegacySubtasks("item " + tag)
			assert.Len(t, subs, 1, "tag %s", tag)
			assert.Equal(t, want, subs[0].Priority, "tag %s", tag)
		}
	})

	t.Run("BlankAfterStrippingSkipped", func(t *testing.T) {
		subs := service.ParseLegacySubtasks("\n   \n[Due: 2024-05-01]\nreal entry\n")
		assert.Len(t, subs, 1)
		assert.Equal(t, "real entry", subs[0].Title)
	})

	t.Run("MalformedDueIgnored", func(t *testing.T) {
		subs := service.ParseLegacySubtasks("task [Due: next tuesday]")
		assert.Len(t, subs, 1)
		assert.Nil(t, subs[0].DueDate)
	})

	t.Run("FreshIdsEveryParse", func(t *testing.T) {
		first := service.ParseLegacySubtasks("same line")
		second := service.ParseLegacySubtasks("same line")
		assert.NotEqual(t, first[0].ID, second[0].ID)
	})
}

func TestNormalizeSubtasks(t *testing.T) {
	structured := []models.SubtaskRecord{{ID: "s1", Title: "tag build"}}

	t.Run("Structured", func(t *testing.T) {
		out := service.NormalizeSubtasks(models.SubtaskSource{Kind: models.StructuredSubtaskSource, Items: structured})
		assert.Equal(t, structured, out)
	})

	t.Run("Legacy", func(t *testing.T) {
		out := service.NormalizeSubtasks(models.SubtaskSource{Kind: models.LegacySubtaskSource, Raw: "one\ntwo"})
		assert.Len(t, out, 2)
	})

	t.Run("UnknownKind", func(t *testing.T) {
		assert.Nil(t, service.NormalizeSubtasks(models.SubtaskSource{}))
	})
}

func TestSubtasksOf(t *testing.T) {
	rec := models.TaskRecord{
		Subtasks:    []models.SubtaskRecord{{ID: "s1", Title: "structured"}},
		SubtaskText: "legacy one\nlegacy two",
	}
	out := service.SubtasksOf(rec)
	assert.Len(t, out, 3)
	assert.Equal(t, "structured", out[0].Title)
	assert.Equal(t, "legacy one", out[1].Title)
	assert.Equal(t, "legacy two", out[2].Title)
}
