package service

import (
	"context"
	"sync"

	"github.com/jinzhu/copier"

	"github.com/ndimoski/taskmirror/pkg/dedup"
	"github.com/ndimoski/taskmirror/pkg/filter"
	"github.com/ndimoski/taskmirror/pkg/models"
	"github.com/ndimoski/taskmirror/pkg/status"
	"github.com/ndimoski/taskmirror/pkg/storage"
)

// TaskView is the per-screen controller: it owns the live subscriptions of
// one surface, merges their deliveries into an in-memory record set, and
// recomputes the filter pipeline on every change. Each screen builds its
// own TaskView; there is no cross-screen shared cache. Abandoning the
// view cancels its subscriptions; in-flight writes are not cancelled,
// their callbacks just become moot.
type TaskView struct {
	store    storage.Store
	catalog  *status.Catalog
	pipeline *filter.Pipeline
	logger   Logger
	owner    models.OwnerFilter

	mu       sync.RWMutex
	primary  []models.TaskRecord // admin/shared partition, arrival order
	self     []models.TaskRecord
	fallback []models.TaskRecord // assigned-to-me query, used while primary is empty

	changed chan struct{}
	cancel  context.CancelFunc
}

// NewTaskView subscribes to the admin/shared and self partitions, the
// supplementary assigned-to-me query and the status catalog, and starts
// merging deliveries. Delivery order between subscriptions is not
// guaranteed; re-delivery of the same stream replaces that stream's slice
// wholesale (last write wins for legitimate updates), while cross-stream
// duplicates are resolved first-seen by the pipeline's deduplication.
func NewTaskView(ctx context.Context, store storage.Store, catalog *status.Catalog, dd *dedup.Deduplicator, logger Logger, owner models.OwnerFilter) (*TaskView, error) {
	ctx, cancel := context.WithCancel(ctx)
	v := &TaskView{
		store:    store,
		catalog:  catalog,
		pipeline: filter.NewPipeline(dd),
		logger:   logger,
		owner:    owner,
		changed:  make(chan struct{}, 1),
		cancel:   cancel,
	}

	primaryCh, err := store.Subscribe(ctx, models.AdminSharedPartition, owner)
	if err != nil {
		cancel()
		return nil, err
	}
	selfCh, err := store.Subscribe(ctx, models.SelfPartition, owner)
	if err != nil {
		cancel()
		return nil, err
	}
	fallbackCh, err := store.SubscribeAssigned(ctx, owner)
	if err != nil {
		cancel()
		return nil, err
	}
	catalogCh, err := store.SubscribeStatusCatalog(ctx)
	if err != nil {
		cancel()
		return nil, err
	}

	go v.consume(ctx, primaryCh, &v.primary)
	go v.consume(ctx, selfCh, &v.self)
	go v.consume(ctx, fallbackCh, &v.fallback)
	go catalog.Run(ctx, catalogCh)

	return v, nil
}

func (v *TaskView) consume(ctx context.Context, deliveries <-chan []models.TaskRecord, slot *[]models.TaskRecord) {
	for {
		select {
		case <-ctx.Done():
			return
		case recs, ok := <-deliveries:
			if !ok {
				// Subscription dropped: keep the stale set rather than
				// blocking the surface. The store's own reconnect semantics
				// decide whether fresher data ever arrives.
				v.logger.Infof("Task subscription closed; keeping stale set")
				return
			}
			v.mu.Lock()
			*slot = recs
			v.mu.Unlock()
			v.notify()
		}
	}
}

func (v *TaskView) notify() {
	select {
	case v.changed <- struct{}{}:
	default:
	}
}

// Changed signals that the merged record set moved and the surface should
// recompute its visible list.
func (v *TaskView) Changed() <-chan struct{} {
	return v.changed
}

// Snapshot runs the filter pipeline over the current merged set and
// returns the ordered visible tasks. The fallback assigned-to-me records
// participate only while the primary stream is empty, and always after
// the primary streams, so fallback data never overrides a primary record.
// Returned records are deep copies; mutating them does not touch the
// merged state.
func (v *TaskView) Snapshot(f filter.Filters) []models.TaskRecord {
	v.mu.RLock()
	streams := [][]models.TaskRecord{v.primary, v.self}
	if len(v.primary) == 0 {
		streams = append(streams, v.fallback)
	}
	merged := make([]models.TaskRecord, 0)
	for _, s := range streams {
		merged = append(merged, s...)
	}
	v.mu.RUnlock()

	var snapshot []models.TaskRecord
	_ = copier.CopyWithOption(&snapshot, &merged, copier.Option{DeepCopy: true})
	return v.pipeline.Apply(snapshot, f)
}

// Catalog exposes the live status catalog backing this view's pickers.
func (v *TaskView) Catalog() *status.Catalog {
	return v.catalog
}

// Close tears down the view's subscriptions.
func (v *TaskView) Close() {
	v.cancel()
}
