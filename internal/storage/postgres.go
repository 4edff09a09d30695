package storage

import (
	"context"
	"database/sql"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/ndimoski/taskmirror/pkg/models"
	"github.com/ndimoski/taskmirror/pkg/storage"
)

// DefaultPollInterval is how often subscriptions re-query for changes.
const DefaultPollInterval = 2 * time.Second

// PostgresStore implements the partition-store contract on postgres.
// Subscriptions are poll-based: each subscriber re-queries its snapshot on
// an interval and a delivery happens only when the snapshot changed.
type PostgresStore struct {
	db           *sqlx.DB
	pollInterval time.Duration
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db, pollInterval: DefaultPollInterval}, nil
}

// SetPollInterval overrides the subscription poll interval. Tests use a
// short one.
func (s *PostgresStore) SetPollInterval(d time.Duration) {
	s.pollInterval = d
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type taskRow struct {
	ID               int64          `db:"id"`
	Partition        string         `db:"partition"`
	Title            string         `db:"title"`
	TitleKey         string         `db:"title_key"`
	DueDay           string         `db:"due_day"`
	Description      string         `db:"description"`
	Status           string         `db:"status"`
	StatusLabel      string         `db:"status_label"`
	Priority         string         `db:"priority"`
	StartDate        time.Time      `db:"start_date"`
	DueDate          time.Time      `db:"due_date"`
	AssignedTo       string         `db:"assigned_to"`
	ProjectID        sql.NullString `db:"project_id"`
	ProjectName      sql.NullString `db:"project_name"`
	Origin           string         `db:"origin"`
	IsRecurring      bool           `db:"is_recurring"`
	RecurringPattern sql.NullString `db:"recurring_pattern"`
	RecurringDays    sql.NullInt64  `db:"recurring_days"`
	RecurringEndDate sql.NullTime   `db:"recurring_end_date"`
	SubtaskText      string         `db:"subtask_text"`
	SubtaskStatus    sql.NullString `db:"subtask_status"`
	Progress         int            `db:"progress"`
	Archived         bool           `db:"archived"`
	CreatedAt        time.Time      `db:"created_at"`
	UpdatedAt        time.Time      `db:"updated_at"`
}

func (r taskRow) toRecord() models.TaskRecord {
	rec := models.TaskRecord{
		Title:       r.Title,
		Description: r.Description,
		Status:      models.TaskStatus(r.Status),
		StatusLabel: r.StatusLabel,
		Priority:    models.Priority(r.Priority),
		StartDate:   r.StartDate,
		DueDate:     r.DueDate,
		AssignedTo:  r.AssignedTo,
		Origin:      models.TaskOrigin(r.Origin),
		IsRecurring: r.IsRecurring,
		SubtaskText: r.SubtaskText,
		Progress:    r.Progress,
		Archived:    r.Archived,
	}
	if r.ProjectID.Valid || r.ProjectName.Valid {
		rec.Project = &models.ProjectRef{ID: r.ProjectID.String, Name: r.ProjectName.String}
	}
	if r.RecurringPattern.Valid {
		rec.RecurringPattern = models.RecurringPattern(r.RecurringPattern.String)
	}
	if r.RecurringDays.Valid {
		rec.RecurringDays = int(r.RecurringDays.Int64)
	}
	if r.RecurringEndDate.Valid {
		end := r.RecurringEndDate.Time
		rec.RecurringEndDate = &end
	}
	if r.SubtaskStatus.Valid {
		rec.SubtaskStatus = models.TaskStatus(r.SubtaskStatus.String)
	}
	return rec
}

func ownerRefs(owner models.OwnerFilter) []string {
	var refs []string
	if owner.Email != "" {
		refs = append(refs, owner.Email)
	}
	if owner.UID != "" {
		refs = append(refs, owner.UID)
	}
	return refs
}

func (s *PostgresStore) queryPartition(partition models.Partition, owner models.OwnerFilter) ([]models.TaskRecord, error) {
	var rows []taskRow
	err := s.db.Select(&rows,
		`SELECT * FROM tasks WHERE partition = $1 AND lower(assigned_to) = ANY($2) ORDER BY id`,
		partition, pq.Array(lowerAll(ownerRefs(owner))))
	if err != nil {
		return nil, errors.Wrap(err, "query partition")
	}
	return rowsToRecords(rows), nil
}

func (s *PostgresStore) queryAssigned(owner models.OwnerFilter) ([]models.TaskRecord, error) {
	var rows []taskRow
	err := s.db.Select(&rows,
		`SELECT * FROM tasks WHERE partition <> $1 AND lower(assigned_to) = ANY($2) ORDER BY id`,
		models.ArchivedPartition, pq.Array(lowerAll(ownerRefs(owner))))
	if err != nil {
		return nil, errors.Wrap(err, "query assigned")
	}
	return rowsToRecords(rows), nil
}

func rowsToRecords(rows []taskRow) []models.TaskRecord {
	out := make([]models.TaskRecord, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toRecord())
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// pollTasks drives one subscription: re-query on the interval, deliver
// when the snapshot changed.
func pollTasks(ctx context.Context, interval time.Duration, query func() ([]models.TaskRecord, error)) <-chan []models.TaskRecord {
	ch := make(chan []models.TaskRecord, 1)
	go func() {
		defer close(ch)
		var last []models.TaskRecord
		first := true
		deliver := func() {
			snapshot, err := query()
			if err != nil {
				// Transient read failure: surface nothing, keep the prior
				// snapshot; the next poll retries naturally.
				return
			}
			if !first && reflect.DeepEqual(snapshot, last) {
				return
			}
			first = false
			last = snapshot
			select {
			case <-ch:
			default:
			}
			ch <- snapshot
		}
		deliver()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deliver()
			}
		}
	}()
	return ch
}

func (s *PostgresStore) Subscribe(ctx context.Context, partition models.Partition, owner models.OwnerFilter) (<-chan []models.TaskRecord, error) {
	if owner.IsZero() {
		ch := make(chan []models.TaskRecord, 1)
		ch <- nil
		return ch, nil
	}
	return pollTasks(ctx, s.pollInterval, func() ([]models.TaskRecord, error) {
		return s.queryPartition(partition, owner)
	}), nil
}

func (s *PostgresStore) SubscribeAssigned(ctx context.Context, owner models.OwnerFilter) (<-chan []models.TaskRecord, error) {
	if owner.IsZero() {
		ch := make(chan []models.TaskRecord, 1)
		ch <- nil
		return ch, nil
	}
	return pollTasks(ctx, s.pollInterval, func() ([]models.TaskRecord, error) {
		return s.queryAssigned(owner)
	}), nil
}

func (s *PostgresStore) SubscribeSubtasks(ctx context.Context, key models.IdentityKey) (<-chan []models.SubtaskRecord, error) {
	ch := make(chan []models.SubtaskRecord, 1)
	go func() {
		defer close(ch)
		var last []models.SubtaskRecord
		first := true
		deliver := func() {
			var subs []models.SubtaskRecord
			err := s.db.Select(&subs,
				`SELECT id, title, status, priority, due_date, assigned_to FROM subtasks
				 WHERE title_key = $1 AND due_day = $2 ORDER BY id`,
				key.TitleKey, key.DueDay)
			if err != nil {
				return
			}
			if !first && reflect.DeepEqual(subs, last) {
				return
			}
			first = false
			last = subs
			select {
			case <-ch:
			default:
			}
			ch <- subs
		}
		deliver()
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deliver()
			}
		}
	}()
	return ch, nil
}

func (s *PostgresStore) SubscribeActivity(ctx context.Context, key models.IdentityKey) (<-chan []models.ActivityEntry, error) {
	ch := make(chan []models.ActivityEntry, 1)
	go func() {
		defer close(ch)
		var last []models.ActivityEntry
		first := true
		deliver := func() {
			var entries []models.ActivityEntry
			err := s.db.Select(&entries,
				`SELECT id, user_ref, message, logged_at FROM activity
				 WHERE title_key = $1 AND due_day = $2 ORDER BY logged_at, id`,
				key.TitleKey, key.DueDay)
			if err != nil {
				return
			}
			if !first && reflect.DeepEqual(entries, last) {
				return
			}
			first = false
			last = entries
			select {
			case <-ch:
			default:
			}
			ch <- entries
		}
		deliver()
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deliver()
			}
		}
	}()
	return ch, nil
}

func (s *PostgresStore) SubscribeStatusCatalog(ctx context.Context) (<-chan models.StatusCatalogConfig, error) {
	ch := make(chan models.StatusCatalogConfig, 1)
	go func() {
		defer close(ch)
		var last models.StatusCatalogConfig
		first := true
		deliver := func() {
			var rows []struct {
				Label string `db:"label"`
				Color string `db:"color"`
			}
			err := s.db.Select(&rows, `SELECT label, color FROM status_catalog ORDER BY position`)
			if err != nil {
				return
			}
			cfg := models.StatusCatalogConfig{Colors: map[string]string{}}
			for _, r := range rows {
				cfg.Labels = append(cfg.Labels, r.Label)
				if r.Color != "" {
					cfg.Colors[r.Label] = r.Color
				}
			}
			if !first && reflect.DeepEqual(cfg, last) {
				return
			}
			first = false
			last = cfg
			select {
			case <-ch:
			default:
			}
			ch <- cfg
		}
		deliver()
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				deliver()
			}
		}
	}()
	return ch, nil
}

func (s *PostgresStore) CreateRecord(partition models.Partition, rec models.TaskRecord) error {
	var projectID, projectName sql.NullString
	if rec.Project != nil {
		projectID = sql.NullString{String: rec.Project.ID, Valid: true}
		projectName = sql.NullString{String: rec.Project.Name, Valid: true}
	}
	var recurringEnd sql.NullTime
	if rec.RecurringEndDate != nil {
		recurringEnd = sql.NullTime{Time: *rec.RecurringEndDate, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO tasks (partition, title, title_key, due_day, description, status, status_label,
		                    priority, start_date, due_date, assigned_to, project_id, project_name,
		                    origin, is_recurring, recurring_pattern, recurring_days, recurring_end_date,
		                    subtask_text, subtask_status, progress, archived)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		partition, rec.Title, models.TitleKeyFor(rec.Title), models.DueDayFor(rec.DueDate),
		rec.Description, rec.Status, rec.StatusLabel, rec.Priority, rec.StartDate, rec.DueDate,
		rec.AssignedTo, projectID, projectName, rec.Origin, rec.IsRecurring,
		nullString(string(rec.RecurringPattern)), rec.RecurringDays, recurringEnd,
		rec.SubtaskText, nullString(string(rec.SubtaskStatus)), rec.Progress, rec.Archived)
	return errors.Wrap(err, "create record")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

const keyClause = ` WHERE partition = $2 AND title_key = $3 AND due_day = $4`

func (s *PostgresStore) writeField(set string, value interface{}, key models.IdentityKey) error {
	res, err := s.db.Exec(
		`UPDATE tasks SET `+set+` = $1, updated_at = CURRENT_TIMESTAMP`+keyClause,
		value, key.Partition, key.TitleKey, key.DueDay)
	if err != nil {
		return err
	}
	return noneUpdated(res)
}

func noneUpdated(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) WriteStatus(key models.IdentityKey, st models.TaskStatus, comment string) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return err
	}
	res, err := tx.Exec(
		`UPDATE tasks SET status = $1, updated_at = CURRENT_TIMESTAMP`+keyClause,
		st, key.Partition, key.TitleKey, key.DueDay)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := noneUpdated(res); err != nil {
		_ = tx.Rollback()
		return err
	}
	if comment != "" {
		if _, err := tx.Exec(
			`INSERT INTO activity (id, title_key, due_day, user_ref, message, logged_at)
			 VALUES ($1, $2, $3, '', $4, CURRENT_TIMESTAMP)`,
			uuid.NewString(), key.TitleKey, key.DueDay, comment); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (s *PostgresStore) WriteStatusLabel(key models.IdentityKey, label string) error {
	return s.writeField("status_label", label, key)
}

func (s *PostgresStore) WriteProgress(key models.IdentityKey, percent int) error {
	return s.writeField("progress", percent, key)
}

func (s *PostgresStore) ArchiveRecord(key models.IdentityKey) error {
	res, err := s.db.Exec(
		`UPDATE tasks SET partition = $1, archived = TRUE, updated_at = CURRENT_TIMESTAMP`+keyClause,
		models.ArchivedPartition, key.Partition, key.TitleKey, key.DueDay)
	if err != nil {
		return err
	}
	return noneUpdated(res)
}

func (s *PostgresStore) UnarchiveRecord(key models.IdentityKey) error {
	res, err := s.db.Exec(
		`UPDATE tasks
		 SET partition = CASE WHEN origin = $1 THEN $5 ELSE $6 END,
		     archived = FALSE, updated_at = CURRENT_TIMESTAMP`+keyClause,
		models.SelfOrigin, models.ArchivedPartition, key.TitleKey, key.DueDay,
		models.SelfPartition, models.AdminSharedPartition)
	if err != nil {
		return err
	}
	return noneUpdated(res)
}

func (s *PostgresStore) DeleteRecord(key models.IdentityKey) error {
	res, err := s.db.Exec(
		`DELETE FROM tasks WHERE partition = $1 AND title_key = $2 AND due_day = $3`,
		key.Partition, key.TitleKey, key.DueDay)
	if err != nil {
		return err
	}
	return noneUpdated(res)
}

func (s *PostgresStore) DeleteRecordsByTitle(titles []string, owner models.OwnerFilter) error {
	if owner.IsZero() || len(titles) == 0 {
		return nil
	}
	keys := make([]string, 0, len(titles))
	for _, t := range titles {
		keys = append(keys, models.TitleKeyFor(t))
	}
	_, err := s.db.Exec(
		`DELETE FROM tasks WHERE title_key = ANY($1) AND lower(assigned_to) = ANY($2)`,
		pq.Array(keys), pq.Array(lowerAll(ownerRefs(owner))))
	return errors.Wrap(err, "delete by title")
}

func (s *PostgresStore) WriteSubtaskStatus(key models.IdentityKey, st models.TaskStatus) error {
	return s.writeField("subtask_status", st, key)
}

func (s *PostgresStore) WriteSubtaskText(key models.IdentityKey, raw string) error {
	return s.writeField("subtask_text", raw, key)
}

func (s *PostgresStore) SaveSubtask(key models.IdentityKey, sub models.SubtaskRecord) error {
	var due sql.NullTime
	if sub.DueDate != nil {
		due = sql.NullTime{Time: *sub.DueDate, Valid: true}
	}
	_, err := s.db.Exec(
		`INSERT INTO subtasks (id, title_key, due_day, title, status, priority, due_date, assigned_to)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title, status = EXCLUDED.status, priority = EXCLUDED.priority,
		     due_date = EXCLUDED.due_date, assigned_to = EXCLUDED.assigned_to`,
		sub.ID, key.TitleKey, key.DueDay, sub.Title, sub.Status, sub.Priority, due, sub.AssignedTo)
	return errors.Wrap(err, "save subtask")
}

func (s *PostgresStore) AppendActivity(key models.IdentityKey, entry models.ActivityEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.LoggedAt.IsZero() {
		entry.LoggedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO activity (id, title_key, due_day, user_ref, message, logged_at)
		 VALUES ($1,$2,$3,$4,$5,$6)`,
		entry.ID, key.TitleKey, key.DueDay, entry.User, entry.Message, entry.LoggedAt)
	return errors.Wrap(err, "append activity")
}
