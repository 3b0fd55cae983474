// Package index maintains a lightweight database/sql side-table over
// tasks, so the CLI's status/list surface can answer "what tasks exist
// and where are they" without scanning every task directory. The
// .agentforge task directories remain the source of truth; this index
// is rebuildable from them at any time via Rebuild.
package index

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/agentforge/fixloop/pkg/state"
)

// Index wraps a single-file sqlite database recording one row per task.
type Index struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	task_id        TEXT PRIMARY KEY,
	violation_id   TEXT NOT NULL,
	phase          TEXT NOT NULL,
	created_at     TIMESTAMP NOT NULL,
	terminal_phase TEXT,
	duration_ms    INTEGER
);
`

// Open opens (creating if needed) the sqlite index file at path.
func Open(path string) (*Index, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("index: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("index: create schema: %w", err)
	}
	return &Index{db: db}, nil
}

// Close releases the underlying database handle.
func (i *Index) Close() error { return i.db.Close() }

// Row is one indexed task record.
type Row struct {
	TaskID        string
	ViolationID   string
	Phase         string
	CreatedAt     time.Time
	TerminalPhase string
	DurationMs    int64
}

// Upsert records or updates a task's row. The CLI calls it once per run,
// when fix-violation or resume reports its outcome, not after each step.
func (i *Index) Upsert(r Row) error {
	_, err := i.db.Exec(`
		INSERT INTO tasks (task_id, violation_id, phase, created_at, terminal_phase, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			phase = excluded.phase,
			terminal_phase = excluded.terminal_phase,
			duration_ms = excluded.duration_ms
	`, r.TaskID, r.ViolationID, r.Phase, r.CreatedAt, nullableString(r.TerminalPhase), r.DurationMs)
	if err != nil {
		return fmt.Errorf("index: upsert %s: %w", r.TaskID, err)
	}
	return nil
}

// List returns every indexed row, most recently created first.
func (i *Index) List() ([]Row, error) {
	rows, err := i.db.Query(`SELECT task_id, violation_id, phase, created_at, terminal_phase, duration_ms FROM tasks ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("index: list: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		var terminal sql.NullString
		if err := rows.Scan(&r.TaskID, &r.ViolationID, &r.Phase, &r.CreatedAt, &terminal, &r.DurationMs); err != nil {
			return nil, fmt.Errorf("index: scan: %w", err)
		}
		r.TerminalPhase = terminal.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Get returns the indexed row for one task, or ok=false if absent.
func (i *Index) Get(taskID string) (Row, bool, error) {
	var r Row
	var terminal sql.NullString
	err := i.db.QueryRow(`SELECT task_id, violation_id, phase, created_at, terminal_phase, duration_ms FROM tasks WHERE task_id = ?`, taskID).
		Scan(&r.TaskID, &r.ViolationID, &r.Phase, &r.CreatedAt, &terminal, &r.DurationMs)
	if err == sql.ErrNoRows {
		return Row{}, false, nil
	}
	if err != nil {
		return Row{}, false, fmt.Errorf("index: get %s: %w", taskID, err)
	}
	r.TerminalPhase = terminal.String
	return r, true, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Rebuild repopulates the index from scratch by rescanning every task
// directory under repoRoot/.agentforge/tasks, the recovery path when
// the index file is lost or suspected stale: the task directories are
// the source of truth, this is just their projection.
func (i *Index) Rebuild(store *state.Store, repoRoot string) error {
	tasksDir := filepath.Join(repoRoot, ".agentforge", "tasks")
	entries, err := os.ReadDir(tasksDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("index: rebuild: list %s: %w", tasksDir, err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		snap, err := store.ReadSnapshot(e.Name())
		if err != nil {
			continue
		}
		if err := i.Upsert(RowFromSnapshot(e.Name(), snap)); err != nil {
			return err
		}
	}
	return nil
}

// RowFromSnapshot derives an index Row from a task's committed snapshot.
func RowFromSnapshot(taskID string, snap state.Snapshot) Row {
	r := Row{
		TaskID:      taskID,
		ViolationID: snap.State.Task.Violation.ID,
		Phase:       string(snap.State.Phase.CurrentPhase),
		CreatedAt:   snap.State.Task.CreatedAt,
	}
	if snap.State.Phase.CurrentPhase.Terminal() {
		r.TerminalPhase = string(snap.State.Phase.CurrentPhase)
	}
	return r
}
