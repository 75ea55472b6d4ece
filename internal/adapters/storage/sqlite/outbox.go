package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
)

// Outbox is the durable store behind the client sync queue.
type Outbox struct {
	db *sql.DB
}

// OpenOutbox opens or creates the outbox database at path.
func OpenOutbox(path string) (*Outbox, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	o := &Outbox{db: db}
	if err := o.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return o, nil
}

// Close closes the requested operation.
func (o *Outbox) Close() error {
	return o.db.Close()
}

func (o *Outbox) migrate(ctx context.Context) error {
	_, err := o.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS outbox (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			payload_json TEXT NOT NULL,
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			next_attempt_at TEXT NOT NULL,
			created_at TEXT NOT NULL,
			dead INTEGER NOT NULL DEFAULT 0
		);`)
	if err != nil {
		return fmt.Errorf("migrate outbox: %w", err)
	}
	return nil
}

// outboxTask is the stored form of a task inside a mutation payload.
type outboxTask struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Completed bool   `json:"completed"`
}

// outboxPayload is the stored form of a mutation.
type outboxPayload struct {
	BoardID  string       `json:"board_id"`
	TaskID   int64        `json:"task_id,omitempty"`
	Task     *outboxTask  `json:"task,omitempty"`
	Tasks    []outboxTask `json:"tasks,omitempty"`
	HasTasks bool         `json:"has_tasks,omitempty"`
	NewName  string       `json:"new_name,omitempty"`
}

func encodeMutation(m domain.Mutation) (string, error) {
	p := outboxPayload{
		BoardID:  m.BoardID,
		TaskID:   m.TaskID,
		NewName:  m.NewName,
		HasTasks: m.Tasks != nil,
	}
	if m.Task != nil {
		p.Task = &outboxTask{ID: m.Task.ID, Name: m.Task.Name, Completed: m.Task.Completed}
	}
	for _, t := range m.Tasks {
		p.Tasks = append(p.Tasks, outboxTask{ID: t.ID, Name: t.Name, Completed: t.Completed})
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode mutation payload: %w", err)
	}
	return string(raw), nil
}

func decodeMutation(kind, raw string) (domain.Mutation, error) {
	var p outboxPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domain.Mutation{}, fmt.Errorf("decode outbox payload_json: %w", err)
	}
	m := domain.Mutation{
		Kind:    domain.MutationKind(kind),
		BoardID: p.BoardID,
		TaskID:  p.TaskID,
		NewName: p.NewName,
	}
	if p.Task != nil {
		m.Task = &domain.Task{ID: p.Task.ID, Name: p.Task.Name, Completed: p.Task.Completed}
	}
	if p.HasTasks {
		m.Tasks = make([]domain.Task, 0, len(p.Tasks))
		for _, t := range p.Tasks {
			m.Tasks = append(m.Tasks, domain.Task{ID: t.ID, Name: t.Name, Completed: t.Completed})
		}
	}
	return m, nil
}

// Append stores m at the tail of the queue.
func (o *Outbox) Append(ctx context.Context, m domain.Mutation, now time.Time) (app.OutboxEntry, error) {
	payload, err := encodeMutation(m)
	if err != nil {
		return app.OutboxEntry{}, err
	}
	res, err := o.db.ExecContext(ctx, `
		INSERT INTO outbox(kind, payload_json, next_attempt_at, created_at)
		VALUES (?, ?, ?, ?)
	`, string(m.Kind), payload, ts(now), ts(now))
	if err != nil {
		return app.OutboxEntry{}, err
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return app.OutboxEntry{}, err
	}
	return app.OutboxEntry{
		Seq:           seq,
		Mutation:      m,
		NextAttemptAt: now.UTC(),
		CreatedAt:     now.UTC(),
	}, nil
}

// Pending lists live entries in append order.
func (o *Outbox) Pending(ctx context.Context) ([]app.OutboxEntry, error) {
	return o.list(ctx, false)
}

// ListDead lists entries the queue gave up on.
func (o *Outbox) ListDead(ctx context.Context) ([]app.OutboxEntry, error) {
	return o.list(ctx, true)
}

func (o *Outbox) list(ctx context.Context, dead bool) ([]app.OutboxEntry, error) {
	rows, err := o.db.QueryContext(ctx, `
		SELECT seq, kind, payload_json, attempts, last_error, next_attempt_at, created_at, dead
		FROM outbox
		WHERE dead = ?
		ORDER BY seq ASC
	`, boolToInt(dead))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []app.OutboxEntry{}
	for rows.Next() {
		var (
			e          app.OutboxEntry
			kind       string
			payload    string
			nextRaw    string
			createdRaw string
			deadFlag   int
		)
		if err := rows.Scan(&e.Seq, &kind, &payload, &e.Attempts, &e.LastError, &nextRaw, &createdRaw, &deadFlag); err != nil {
			return nil, err
		}
		if e.Mutation, err = decodeMutation(kind, payload); err != nil {
			return nil, err
		}
		e.NextAttemptAt = parseTS(nextRaw)
		e.CreatedAt = parseTS(createdRaw)
		e.Dead = deadFlag != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkDelivered removes a delivered entry.
func (o *Outbox) MarkDelivered(ctx context.Context, seq int64) error {
	res, err := o.db.ExecContext(ctx, `DELETE FROM outbox WHERE seq = ?`, seq)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// MarkRetry records a failed attempt and the earliest time of the next one.
func (o *Outbox) MarkRetry(ctx context.Context, seq int64, attempts int, lastErr string, next time.Time) error {
	res, err := o.db.ExecContext(ctx, `
		UPDATE outbox
		SET attempts = ?, last_error = ?, next_attempt_at = ?
		WHERE seq = ?
	`, attempts, lastErr, ts(next), seq)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}

// MarkDead parks an entry so it no longer blocks the queue.
func (o *Outbox) MarkDead(ctx context.Context, seq int64, lastErr string) error {
	res, err := o.db.ExecContext(ctx, `
		UPDATE outbox
		SET attempts = attempts + 1, last_error = ?, dead = 1
		WHERE seq = ?
	`, lastErr, seq)
	if err != nil {
		return err
	}
	return translateNoRows(res)
}
