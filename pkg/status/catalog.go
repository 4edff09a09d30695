// Package status owns the process-wide status label catalog: the mapping
// between free-form display labels and the normalized task status enum,
// the reserved meta-labels used as filter conventions, and label colors.
package status

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/ndimoski/taskmirror/pkg/models"
)

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// ThemeDefaultColor is the last-resort color when neither the catalog nor
// the per-status defaults have an answer.
const ThemeDefaultColor = "#9E9E9E"

// synonyms maps folded label text to a normalized status. Folding strips
// case, punctuation and extra whitespace, so "to-do", "To Do" and "todo"
// all land on the same entry.
var synonyms = map[string]models.TaskStatus{
	"not started":       models.NotStartedTaskStatus,
	"to do":             models.NotStartedTaskStatus,
	"todo":              models.NotStartedTaskStatus,
	"pending":           models.NotStartedTaskStatus,
	"open":              models.NotStartedTaskStatus,
	"in progress":       models.InProgressTaskStatus,
	"inprogress":        models.InProgressTaskStatus,
	"ongoing":           models.InProgressTaskStatus,
	"working on it":     models.InProgressTaskStatus,
	"stuck":             models.StuckTaskStatus,
	"blocked":           models.StuckTaskStatus,
	"waiting":           models.WaitingForTaskStatus,
	"waiting for":       models.WaitingForTaskStatus,
	"hold by client":    models.OnHoldByClientTaskStatus,
	"on hold by client": models.OnHoldByClientTaskStatus,
	"on hold":           models.OnHoldByClientTaskStatus,
	"need help":         models.NeedHelpTaskStatus,
	"needs help":        models.NeedHelpTaskStatus,
	"help needed":       models.NeedHelpTaskStatus,
	"completed":         models.CompletedTaskStatus,
	"complete":          models.CompletedTaskStatus,
	"done":              models.CompletedTaskStatus,
	"finished":          models.CompletedTaskStatus,
	"canceled":          models.CanceledTaskStatus,
	"cancelled":         models.CanceledTaskStatus,
}

// reservedLabels are filter conventions, not real statuses. They never
// appear in editable status pickers.
var reservedLabels = map[string]struct{}{
	"all":            {},
	"today s task":   {},
	"todays task":    {},
	"recurring task": {},
}

// defaultLabels is the hardcoded minimal set used when the catalog
// configuration is unavailable, so a picker is never empty.
var defaultLabels = []string{"Not Started", "In Progress", "Completed"}

var defaultColors = map[models.TaskStatus]string{
	models.NotStartedTaskStatus:     "#B0BEC5",
	models.InProgressTaskStatus:     "#42A5F5",
	models.StuckTaskStatus:          "#EF5350",
	models.WaitingForTaskStatus:     "#FFB300",
	models.OnHoldByClientTaskStatus: "#8D6E63",
	models.NeedHelpTaskStatus:       "#AB47BC",
	models.CompletedTaskStatus:      "#66BB6A",
	models.CanceledTaskStatus:       "#78909C",
}

// fold lowercases a label and collapses punctuation/whitespace runs into
// single spaces so synonym lookup is insensitive to all three.
func fold(label string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(label) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Normalize maps a free-form label onto the status enum. ok is false for
// unrecognized labels: the label is kept as display text but does not
// change the normalized status.
func Normalize(label string) (models.TaskStatus, bool) {
	s, ok := synonyms[fold(label)]
	return s, ok
}

// IsReservedLabel reports whether a label is a filter meta-label
// ("All", "Today's Task", "Recurring Task") rather than a real status.
func IsReservedLabel(label string) bool {
	_, ok := reservedLabels[fold(label)]
	return ok
}

// Catalog is the dynamically configured label set plus colors, refreshed
// by the live status-catalog subscription. Safe for concurrent use.
type Catalog struct {
	mu     sync.RWMutex
	labels []string
	colors map[string]string
}

func NewCatalog() *Catalog {
	c := &Catalog{colors: map[string]string{}}
	c.labels = append(c.labels, defaultLabels...)
	return c
}

// Apply replaces the configured labels and colors with one subscription
// delivery. An empty delivery falls back to the hardcoded minimal set.
func (c *Catalog) Apply(cfg models.StatusCatalogConfig) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(cfg.Labels) == 0 {
		c.labels = append(c.labels[:0], defaultLabels...)
	} else {
		c.labels = c.labels[:0]
		seen := map[string]struct{}{}
		for _, label := range cfg.Labels {
			f := fold(label)
			if f == "" {
				continue
			}
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			c.labels = append(c.labels, label)
		}
	}
	c.colors = map[string]string{}
	for label, color := range cfg.Colors {
		c.colors[fold(label)] = color
	}
}

// Run consumes catalog deliveries until the stream closes or ctx ends.
func (c *Catalog) Run(ctx context.Context, deliveries <-chan models.StatusCatalogConfig) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-deliveries:
			if !ok {
				return
			}
			c.Apply(cfg)
		}
	}
}

// Labels returns the pickable labels in configured order, with reserved
// meta-labels excluded from enumeration.
func (c *Catalog) Labels() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.labels))
	for _, label := range c.labels {
		if IsReservedLabel(label) {
			continue
		}
		out = append(out, label)
	}
	return out
}

// ColorFor resolves a label color: configured color if valid hex, else the
// fixed default of the normalized status, else the theme default.
func (c *Catalog) ColorFor(label string) string {
	c.mu.RLock()
	configured, ok := c.colors[fold(label)]
	c.mu.RUnlock()
	if ok && hexColorPattern.MatchString(configured) {
		return configured
	}
	if s, known := Normalize(label); known {
		return defaultColors[s]
	}
	return ThemeDefaultColor
}
