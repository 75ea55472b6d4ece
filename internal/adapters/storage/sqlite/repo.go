package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hylla/tavla/internal/app"
	"github.com/hylla/tavla/internal/domain"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// Repository stores users, boards and tasks.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens the requested operation.
func Open(path string) (*Repository, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	repo := &Repository{db: db, now: time.Now}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// OpenInMemory opens a private in-memory database.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	db.SetMaxOpenConns(1)
	repo := &Repository{db: db, now: time.Now}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the requested operation.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Ping reports whether the database answers.
func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// openDB creates the parent directory and opens a single-connection handle.
func openDB(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// migrate handles migrate.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username TEXT NOT NULL UNIQUE,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS boards (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			FOREIGN KEY(user_id) REFERENCES users(id) ON DELETE CASCADE
		);`,
		`CREATE TABLE IF NOT EXISTS tasks (
			board_id TEXT NOT NULL,
			id INTEGER NOT NULL,
			position INTEGER NOT NULL,
			name TEXT NOT NULL,
			completed INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY(board_id, id),
			FOREIGN KEY(board_id) REFERENCES boards(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_boards_user ON boards(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_board_position ON tasks(board_id, position);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// CreateUser creates user.
func (r *Repository) CreateUser(ctx context.Context, u domain.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users(id, username, created_at)
		VALUES (?, ?, ?)
	`, u.ID, u.Username, ts(r.now()))
	return err
}

// GetUserByUsername returns user by username.
func (r *Repository) GetUserByUsername(ctx context.Context, username string) (domain.User, error) {
	var u domain.User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, username
		FROM users
		WHERE username = ?
	`, username).Scan(&u.ID, &u.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, app.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

// CreateBoard creates a board and its initial tasks.
func (r *Repository) CreateBoard(ctx context.Context, b domain.Board) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO boards(id, user_id, name, description, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, b.ID, b.UserID, b.Name, b.Description, ts(r.now())); err != nil {
		return err
	}
	if err = insertTasks(ctx, tx, b.ID, b.Tasks); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// GetBoard returns board.
func (r *Repository) GetBoard(ctx context.Context, id string) (domain.Board, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, description
		FROM boards
		WHERE id = ?
	`, id)
	b, err := scanBoard(row)
	if err != nil {
		return domain.Board{}, err
	}
	if b.Tasks, err = listTasks(ctx, r.db, b.ID); err != nil {
		return domain.Board{}, err
	}
	return b, nil
}

// ListBoards lists boards of one user in creation order.
func (r *Repository) ListBoards(ctx context.Context, userID string) ([]domain.Board, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, name, description
		FROM boards
		WHERE user_id = ?
		ORDER BY rowid ASC
	`, userID)
	if err != nil {
		return nil, err
	}
	out := []domain.Board{}
	for rows.Next() {
		b, err := scanBoard(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	for i := range out {
		if out[i].Tasks, err = listTasks(ctx, r.db, out[i].ID); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteBoard deletes a board and its tasks.
func (r *Repository) DeleteBoard(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM tasks WHERE board_id = ?`, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM boards WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if err = translateNoRows(res); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// ReplaceTasks rewrites the task rows of one board in a single transaction.
func (r *Repository) ReplaceTasks(ctx context.Context, boardID string, tasks []domain.Task) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM boards WHERE id = ?`, boardID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		err = app.ErrNotFound
		return err
	}
	if err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM tasks WHERE board_id = ?`, boardID); err != nil {
		return err
	}
	if err = insertTasks(ctx, tx, boardID, tasks); err != nil {
		return err
	}
	err = tx.Commit()
	return err
}

// execerContext runs statements on a db or tx.
type execerContext interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
}

// queryerContext runs queries on a db or tx.
type queryerContext interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}

func insertTasks(ctx context.Context, execer execerContext, boardID string, tasks []domain.Task) error {
	for pos, t := range tasks {
		if _, err := execer.ExecContext(ctx, `
			INSERT INTO tasks(board_id, id, position, name, completed)
			VALUES (?, ?, ?, ?, ?)
		`, boardID, t.ID, pos, t.Name, boolToInt(t.Completed)); err != nil {
			return fmt.Errorf("insert task %d: %w", t.ID, err)
		}
	}
	return nil
}

func listTasks(ctx context.Context, q queryerContext, boardID string) ([]domain.Task, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, completed
		FROM tasks
		WHERE board_id = ?
		ORDER BY position ASC
	`, boardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Task{}
	for rows.Next() {
		var (
			t         domain.Task
			completed int
		)
		if err := rows.Scan(&t.ID, &t.Name, &completed); err != nil {
			return nil, err
		}
		t.Completed = completed != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

// scanner abstracts sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanBoard scans a board row without tasks.
func scanBoard(s scanner) (domain.Board, error) {
	var b domain.Board
	if err := s.Scan(&b.ID, &b.UserID, &b.Name, &b.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Board{}, app.ErrNotFound
		}
		return domain.Board{}, err
	}
	b.Tasks = []domain.Task{}
	return b, nil
}

// translateNoRows handles translate no rows.
func translateNoRows(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return app.ErrNotFound
	}
	return nil
}

// ts handles ts.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses input into a normalized form.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
