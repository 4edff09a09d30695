package service

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ndimoski/taskmirror/pkg/models"
)

// Legacy subtask lines carry optional inline metadata tags:
//
//	Review contract [Due: 2024-05-01] [Assignee: dana] [P: High]
var legacyTagPattern = regexp.MustCompile(`\[(Due|Assignee|P):\s*([^\]]*)\]`)

// ParseLegacySubtasks parses the legacy free-text blob, one subtask per
// line. Lines that are blank after tag stripping are skipped. Parsed
// entries get fresh ids on every parse; they are not addressable for
// mutation, the blob is.
func ParseLegacySubtasks(raw string) []models.SubtaskRecord {
	var out []models.SubtaskRecord
	for _, line := range strings.Split(raw, "\n") {
		sub, ok := parseLegacyLine(line)
		if !ok {
			continue
		}
		out = append(out, sub)
	}
	return out
}

func parseLegacyLine(line string) (models.SubtaskRecord, bool) {
	sub := models.SubtaskRecord{Status: models.NotStartedTaskStatus}
	for _, match := range legacyTagPattern.FindAllStringSubmatch(line, -1) {
		value := strings.TrimSpace(match[2])
		switch match[1] {
		case "Due":
			if due, err := time.Parse(models.DueDayLayout, value); err == nil {
				sub.DueDate = &due
			}
		case "Assignee":
			sub.AssignedTo = value
		case "P":
			sub.Priority = priorityFromLabel(value)
		}
	}
	title := strings.TrimSpace(legacyTagPattern.ReplaceAllString(line, ""))
	if title == "" {
		return models.SubtaskRecord{}, false
	}
	sub.ID = uuid.NewString()
	sub.Title = title
	return sub, true
}

// priorityFromLabel accepts the enum form, the short code and the
// canonical human label.
func priorityFromLabel(label string) models.Priority {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "p1", "1", "high":
		return models.P1Priority
	case "p2", "2", "medium":
		return models.P2Priority
	case "p3", "3", "low":
		return models.P3Priority
	}
	return ""
}

// NormalizeSubtasks flattens the tagged union into one presentable list:
// structured entries first, then legacy-parsed ones. The mutation paths
// stay distinct, so the merged list is read-only.
func NormalizeSubtasks(src models.SubtaskSource) []models.SubtaskRecord {
	switch src.Kind {
	case models.StructuredSubtaskSource:
		return src.Items
	case models.LegacySubtaskSource:
		return ParseLegacySubtasks(src.Raw)
	}
	return nil
}

// SubtasksOf merges a record's structured collection with its parsed
// legacy blob for presentation.
func SubtasksOf(rec models.TaskRecord) []models.SubtaskRecord {
	out := make([]models.SubtaskRecord, 0, len(rec.Subtasks))
	out = append(out, rec.Subtasks...)
	out = append(out, ParseLegacySubtasks(rec.SubtaskText)...)
	return out
}
