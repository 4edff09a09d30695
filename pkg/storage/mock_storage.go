package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
	"github.com/pkg/errors"

	"github.com/ndimoski/taskmirror/pkg/models"
)

// logicalKey identifies a task across partitions: subtasks and activity
// survive archiving because they hang off the partition-less key.
type logicalKey struct {
	titleKey string
	dueDay   string
}

func logicalOf(key models.IdentityKey) logicalKey {
	return logicalKey{titleKey: key.TitleKey, dueDay: key.DueDay}
}

type taskSub struct {
	partition    models.Partition
	owner        models.OwnerFilter
	assignedOnly bool
	ch           chan []models.TaskRecord
}

type subtaskSub struct {
	key logicalKey
	ch  chan []models.SubtaskRecord
}

type activitySub struct {
	key logicalKey
	ch  chan []models.ActivityEntry
}

// MockStore implements Store with in-memory state and synchronous
// snapshot deliveries. It is used by unit tests and the examples.
type MockStore struct {
	mu          sync.Mutex
	records     map[models.Partition][]models.TaskRecord // insertion order preserved
	subtasks    map[logicalKey][]models.SubtaskRecord
	activity    map[logicalKey][]models.ActivityEntry
	catalog     models.StatusCatalogConfig
	taskSubs    []*taskSub
	subtaskSubs []*subtaskSub
	actSubs     []*activitySub
	catalogSubs []chan models.StatusCatalogConfig
	closed      bool
}

func NewMockStore() *MockStore {
	return &MockStore{
		records:  make(map[models.Partition][]models.TaskRecord),
		subtasks: make(map[logicalKey][]models.SubtaskRecord),
		activity: make(map[logicalKey][]models.ActivityEntry),
	}
}

func (m *MockStore) Subscribe(ctx context.Context, partition models.Partition, owner models.OwnerFilter) (<-chan []models.TaskRecord, error) {
	return m.subscribeTasks(ctx, &taskSub{partition: partition, owner: owner})
}

func (m *MockStore) SubscribeAssigned(ctx context.Context, owner models.OwnerFilter) (<-chan []models.TaskRecord, error) {
	return m.subscribeTasks(ctx, &taskSub{owner: owner, assignedOnly: true})
}

func (m *MockStore) subscribeTasks(ctx context.Context, sub *taskSub) (<-chan []models.TaskRecord, error) {
	sub.ch = make(chan []models.TaskRecord, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if sub.owner.IsZero() {
		// No filter: deliver an empty snapshot once and stay silent.
		sub.ch <- nil
		return sub.ch, nil
	}
	m.taskSubs = append(m.taskSubs, sub)
	deliverLatest(sub.ch, m.snapshotFor(sub))
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.taskSubs {
			if s == sub {
				m.taskSubs = append(m.taskSubs[:i], m.taskSubs[i+1:]...)
				break
			}
		}
	}()
	return sub.ch, nil
}

func (m *MockStore) SubscribeSubtasks(ctx context.Context, key models.IdentityKey) (<-chan []models.SubtaskRecord, error) {
	sub := &subtaskSub{key: logicalOf(key), ch: make(chan []models.SubtaskRecord, 1)}
	m.mu.Lock()
	m.subtaskSubs = append(m.subtaskSubs, sub)
	deliverLatest(sub.ch, copySubtasks(m.subtasks[sub.key]))
	m.mu.Unlock()
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.subtaskSubs {
			if s == sub {
				m.subtaskSubs = append(m.subtaskSubs[:i], m.subtaskSubs[i+1:]...)
				break
			}
		}
	}()
	return sub.ch, nil
}

func (m *MockStore) SubscribeActivity(ctx context.Context, key models.IdentityKey) (<-chan []models.ActivityEntry, error) {
	sub := &activitySub{key: logicalOf(key), ch: make(chan []models.ActivityEntry, 1)}
	m.mu.Lock()
	m.actSubs = append(m.actSubs, sub)
	deliverLatest(sub.ch, copyActivity(m.activity[sub.key]))
	m.mu.Unlock()
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, s := range m.actSubs {
			if s == sub {
				m.actSubs = append(m.actSubs[:i], m.actSubs[i+1:]...)
				break
			}
		}
	}()
	return sub.ch, nil
}

func (m *MockStore) SubscribeStatusCatalog(ctx context.Context) (<-chan models.StatusCatalogConfig, error) {
	ch := make(chan models.StatusCatalogConfig, 1)
	m.mu.Lock()
	m.catalogSubs = append(m.catalogSubs, ch)
	deliverLatest(ch, m.catalog)
	m.mu.Unlock()
	go func() {
		<-ctx.Done()
		m.mu.Lock()
		defer m.mu.Unlock()
		for i, c := range m.catalogSubs {
			if c == ch {
				m.catalogSubs = append(m.catalogSubs[:i], m.catalogSubs[i+1:]...)
				break
			}
		}
	}()
	return ch, nil
}

// UpdateStatusCatalog replaces the live catalog configuration and notifies
// catalog subscribers. Not part of the Store contract; the real store's
// configuration is edited out of band.
func (m *MockStore) UpdateStatusCatalog(cfg models.StatusCatalogConfig) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.catalog = cfg
	for _, ch := range m.catalogSubs {
		deliverLatest(ch, cfg)
	}
}

func (m *MockStore) CreateRecord(partition models.Partition, rec models.TaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if models.TitleKeyFor(rec.Title) == "" {
		return errors.New("cannot create record with empty title")
	}
	m.records[partition] = append(m.records[partition], rec)
	m.notifyTasks()
	return nil
}

func (m *MockStore) WriteStatus(key models.IdentityKey, status models.TaskStatus, comment string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.find(key)
	if err != nil {
		return err
	}
	rec.Status = status
	if comment != "" {
		lk := logicalOf(key)
		m.activity[lk] = append(m.activity[lk], models.ActivityEntry{
			ID:       uuid.NewString(),
			User:     rec.AssignedTo,
			Message:  comment,
			LoggedAt: time.Now(),
		})
		m.notifyActivity(lk)
	}
	m.notifyTasks()
	return nil
}

func (m *MockStore) WriteStatusLabel(key models.IdentityKey, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.find(key)
	if err != nil {
		return err
	}
	rec.StatusLabel = label
	m.notifyTasks()
	return nil
}

func (m *MockStore) WriteProgress(key models.IdentityKey, percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.find(key)
	if err != nil {
		return err
	}
	rec.Progress = percent
	m.notifyTasks()
	return nil
}

func (m *MockStore) ArchiveRecord(key models.IdentityKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, idx, err := m.locate(key)
	if err != nil {
		return err
	}
	moved := *rec
	moved.Archived = true
	m.records[key.Partition] = append(m.records[key.Partition][:idx], m.records[key.Partition][idx+1:]...)
	m.records[models.ArchivedPartition] = append(m.records[models.ArchivedPartition], moved)
	m.notifyTasks()
	return nil
}

func (m *MockStore) UnarchiveRecord(key models.IdentityKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	archKey := key
	archKey.Partition = models.ArchivedPartition
	rec, idx, err := m.locate(archKey)
	if err != nil {
		return err
	}
	moved := *rec
	moved.Archived = false
	home := moved.HomePartition()
	m.records[models.ArchivedPartition] = append(m.records[models.ArchivedPartition][:idx], m.records[models.ArchivedPartition][idx+1:]...)
	m.records[home] = append(m.records[home], moved)
	m.notifyTasks()
	return nil
}

func (m *MockStore) DeleteRecord(key models.IdentityKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, idx, err := m.locate(key)
	if err != nil {
		return err
	}
	m.records[key.Partition] = append(m.records[key.Partition][:idx], m.records[key.Partition][idx+1:]...)
	m.notifyTasks()
	return nil
}

func (m *MockStore) DeleteRecordsByTitle(titles []string, owner models.OwnerFilter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if owner.IsZero() {
		return nil
	}
	doomed := make(map[string]struct{}, len(titles))
	for _, t := range titles {
		doomed[models.TitleKeyFor(t)] = struct{}{}
	}
	for partition, recs := range m.records {
		kept := recs[:0]
		for _, rec := range recs {
			_, junk := doomed[models.TitleKeyFor(rec.Title)]
			if junk && owner.Matches(rec.AssignedTo) {
				continue
			}
			kept = append(kept, rec)
		}
		m.records[partition] = kept
	}
	m.notifyTasks()
	return nil
}

func (m *MockStore) WriteSubtaskStatus(key models.IdentityKey, status models.TaskStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.find(key)
	if err != nil {
		return err
	}
	rec.SubtaskStatus = status
	m.notifyTasks()
	return nil
}

func (m *MockStore) WriteSubtaskText(key models.IdentityKey, raw string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.find(key)
	if err != nil {
		return err
	}
	rec.SubtaskText = raw
	m.notifyTasks()
	return nil
}

func (m *MockStore) SaveSubtask(key models.IdentityKey, sub models.SubtaskRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.find(key); err != nil {
		return err
	}
	lk := logicalOf(key)
	for i, existing := range m.subtasks[lk] {
		if existing.ID == sub.ID {
			m.subtasks[lk][i] = sub
			m.notifySubtasks(lk)
			return nil
		}
	}
	m.subtasks[lk] = append(m.subtasks[lk], sub)
	m.notifySubtasks(lk)
	return nil
}

func (m *MockStore) AppendActivity(key models.IdentityKey, entry models.ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	lk := logicalOf(key)
	m.activity[lk] = append(m.activity[lk], entry)
	m.notifyActivity(lk)
	return nil
}

func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetRecord looks a record up by key. Test helper; not part of the
// contract because the read path is subscription-only.
func (m *MockStore) GetRecord(key models.IdentityKey) (models.TaskRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, err := m.find(key)
	if err != nil {
		return models.TaskRecord{}, err
	}
	return *rec, nil
}

// ActivityFor returns the activity log of a task. Test helper.
func (m *MockStore) ActivityFor(key models.IdentityKey) []models.ActivityEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copyActivity(m.activity[logicalOf(key)])
}

func (m *MockStore) find(key models.IdentityKey) (*models.TaskRecord, error) {
	rec, _, err := m.locate(key)
	return rec, err
}

func (m *MockStore) locate(key models.IdentityKey) (*models.TaskRecord, int, error) {
	recs := m.records[key.Partition]
	for i := range recs {
		if models.TitleKeyFor(recs[i].Title) == key.TitleKey && models.DueDayFor(recs[i].DueDate) == key.DueDay {
			return &recs[i], i, nil
		}
	}
	return nil, -1, ErrNotFound
}

func (m *MockStore) snapshotFor(sub *taskSub) []models.TaskRecord {
	var out []models.TaskRecord
	appendMatching := func(recs []models.TaskRecord) {
		for _, rec := range recs {
			if sub.owner.Matches(rec.AssignedTo) {
				out = append(out, rec)
			}
		}
	}
	if sub.assignedOnly {
		appendMatching(m.records[models.AdminSharedPartition])
		appendMatching(m.records[models.SelfPartition])
	} else {
		appendMatching(m.records[sub.partition])
	}
	return copyRecords(out)
}

func (m *MockStore) notifyTasks() {
	for _, sub := range m.taskSubs {
		deliverLatest(sub.ch, m.snapshotFor(sub))
	}
}

func (m *MockStore) notifySubtasks(lk logicalKey) {
	for _, sub := range m.subtaskSubs {
		if sub.key == lk {
			deliverLatest(sub.ch, copySubtasks(m.subtasks[lk]))
		}
	}
}

func (m *MockStore) notifyActivity(lk logicalKey) {
	for _, sub := range m.actSubs {
		if sub.key == lk {
			deliverLatest(sub.ch, copyActivity(m.activity[lk]))
		}
	}
}

// deliverLatest replaces any undrained snapshot so a slow consumer only
// ever sees the most recent state, mirroring listener re-delivery.
func deliverLatest[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	ch <- v
}

func copyRecords(in []models.TaskRecord) []models.TaskRecord {
	var out []models.TaskRecord
	_ = copier.CopyWithOption(&out, &in, copier.Option{DeepCopy: true})
	return out
}

func copySubtasks(in []models.SubtaskRecord) []models.SubtaskRecord {
	var out []models.SubtaskRecord
	_ = copier.CopyWithOption(&out, &in, copier.Option{DeepCopy: true})
	return out
}

func copyActivity(in []models.ActivityEntry) []models.ActivityEntry {
	var out []models.ActivityEntry
	_ = copier.CopyWithOption(&out, &in, copier.Option{DeepCopy: true})
	return out
}
