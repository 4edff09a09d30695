package sweeper_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndimoski/taskmirror/internal/sweeper"
	"github.com/ndimoski/taskmirror/pkg/dedup"
	"github.com/ndimoski/taskmirror/pkg/models"
	"github.com/ndimoski/taskmirror/pkg/service"
	"github.com/ndimoski/taskmirror/pkg/storage"
)

type noopLogger struct{}

func (noopLogger) Infof(format string, args ...interface{})  {}
func (noopLogger) Errorf(format string, args ...interface{}) {}

func TestSweeperRemovesJunkOnSchedule(t *testing.T) {
	store := storage.NewMockStore()
	engine := service.NewLifecycleEngine(store, dedup.New(), noopLogger{})
	owner := models.OwnerFilter{Email: "dana@example.com"}

	junk := models.TaskRecord{
		Title:      "Mmm",
		Status:     models.NotStartedTaskStatus,
		DueDate:    time.Now(),
		AssignedTo: "dana@example.com",
		Origin:     models.SelfOrigin,
	}
	keep := junk
	keep.Title = "real work"
	require.NoError(t, engine.CreateTask(junk))
	require.NoError(t, engine.CreateTask(keep))

	s := sweeper.New(engine, owner, 20*time.Millisecond, noopLogger{})
	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool {
		_, err := store.GetRecord(junk.Key())
		return err != nil
	}, time.Second, 10*time.Millisecond)

	_, err := store.GetRecord(keep.Key())
	assert.NoError(t, err)
}
