package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver
)

// FileName is the database file created inside the journal directory.
const FileName = "torgate.db"

// Journal stores session history.
type Journal struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and database file.
	CreateIfNotExists bool

	// EnableWAL switches the database to write-ahead logging.
	EnableWAL bool
}

// DefaultOptions creates the journal with WAL enabled.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens the journal in dir.
func Open(dir string, opts Options) (*Journal, error) {
	path := filepath.Join(dir, FileName)

	mode := "rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
		mode = "rwc"
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("journal not found at %s: %w", path, err)
	}

	// Pragmas in the DSN apply to every pooled connection.
	db, err := sql.Open("sqlite", path+"?mode="+mode+"&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	ctx := context.Background()
	if opts.EnableWAL {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	j := &Journal{db: db, path: path, now: time.Now}
	if err := j.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return j, nil
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

func (j *Journal) createTables(ctx context.Context) error {
	const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		started_at INTEGER NOT NULL,
		ended_at INTEGER,
		tor_path TEXT NOT NULL DEFAULT '',
		tor_version TEXT NOT NULL DEFAULT '',
		socks_addrs TEXT NOT NULL DEFAULT '',
		control_addr TEXT NOT NULL DEFAULT '',
		final_state TEXT NOT NULL DEFAULT '',
		exit_ip TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at);

	CREATE TABLE IF NOT EXISTS transitions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		at INTEGER NOT NULL,
		state TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_transitions_session ON transitions(session_id);
	`
	_, err := j.db.ExecContext(ctx, schema)
	return err
}

// Session is one run of the orchestrator.
type Session struct {
	ID          string
	StartedAt   time.Time
	EndedAt     time.Time // zero while the session is open
	TorPath     string
	TorVersion  string
	SocksAddrs  string
	ControlAddr string
	FinalState  string
	ExitIP      string
}

// Open reports whether the session has not ended yet.
func (s *Session) Open() bool {
	return s.EndedAt.IsZero()
}

// Duration is the time between start and end, or zero while open.
func (s *Session) Duration() time.Duration {
	if s.Open() {
		return 0
	}
	return s.EndedAt.Sub(s.StartedAt)
}

// Transition is one recorded state change.
type Transition struct {
	SessionID string
	At        time.Time
	State     string
	Progress  int
}

// Begin inserts a new session and returns it with its generated ID and
// start time. Endpoints are recorded later with SetEndpoints, once ports
// are allocated.
func (j *Journal) Begin(ctx context.Context, torPath string) (*Session, error) {
	s := &Session{
		ID:        uuid.NewString(),
		StartedAt: j.now().UTC(),
		TorPath:   torPath,
	}
	_, err := j.db.ExecContext(ctx,
		"INSERT INTO sessions (id, started_at, tor_path) VALUES (?, ?, ?)",
		s.ID, s.StartedAt.UnixMilli(), s.TorPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return s, nil
}

// Transition appends a state change to session id.
func (j *Journal) Transition(ctx context.Context, id, state string, progress int) error {
	_, err := j.db.ExecContext(ctx, `
	INSERT INTO transitions (session_id, at, state, progress)
	VALUES (?, ?, ?, ?)`,
		id, j.now().UTC().UnixMilli(), state, progress,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transition for %s: %w", id, err)
	}
	return nil
}

// SetEndpoints records the SOCKS listeners (comma separated) and the
// control listener.
func (j *Journal) SetEndpoints(ctx context.Context, id, socks, control string) error {
	res, err := j.db.ExecContext(ctx,
		"UPDATE sessions SET socks_addrs = ?, control_addr = ? WHERE id = ?", socks, control, id)
	if err != nil {
		return fmt.Errorf("failed to update endpoints for %s: %w", id, err)
	}
	return expectOne(res, id)
}

// SetTorVersion records the version tor reported.
func (j *Journal) SetTorVersion(ctx context.Context, id, version string) error {
	return j.update(ctx, id, "tor_version", version)
}

// SetExitIP records the exit address seen by the check service.
func (j *Journal) SetExitIP(ctx context.Context, id, ip string) error {
	return j.update(ctx, id, "exit_ip", ip)
}

func (j *Journal) update(ctx context.Context, id, column, value string) error {
	// column is always one of the literals above.
	res, err := j.db.ExecContext(ctx, "UPDATE sessions SET "+column+" = ? WHERE id = ?", value, id)
	if err != nil {
		return fmt.Errorf("failed to update %s for %s: %w", column, id, err)
	}
	return expectOne(res, id)
}

// End closes session id with its final state. Ending twice keeps the first
// end time.
func (j *Journal) End(ctx context.Context, id, finalState string) error {
	res, err := j.db.ExecContext(ctx, `
	UPDATE sessions SET ended_at = COALESCE(ended_at, ?), final_state = ?
	WHERE id = ?`,
		j.now().UTC().UnixMilli(), finalState, id,
	)
	if err != nil {
		return fmt.Errorf("failed to end session %s: %w", id, err)
	}
	return expectOne(res, id)
}

func expectOne(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

const sessionColumns = `id, started_at, ended_at, tor_path, tor_version, socks_addrs, control_addr, final_state, exit_ip`

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var (
		s       Session
		started int64
		ended   sql.NullInt64
	)
	err := row.Scan(&s.ID, &started, &ended, &s.TorPath, &s.TorVersion,
		&s.SocksAddrs, &s.ControlAddr, &s.FinalState, &s.ExitIP)
	if err != nil {
		return nil, err
	}
	s.StartedAt = time.UnixMilli(started).UTC()
	if ended.Valid {
		s.EndedAt = time.UnixMilli(ended.Int64).UTC()
	}
	return &s, nil
}

// Get returns session id.
func (j *Journal) Get(ctx context.Context, id string) (*Session, error) {
	row := j.db.QueryRowContext(ctx, "SELECT "+sessionColumns+" FROM sessions WHERE id = ?", id)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}

// List returns the most recent sessions first. limit <= 0 returns all.
func (j *Journal) List(ctx context.Context, limit int) ([]*Session, error) {
	query := "SELECT " + sessionColumns + " FROM sessions ORDER BY started_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Transitions returns the state changes of session id in order.
func (j *Journal) Transitions(ctx context.Context, id string) ([]Transition, error) {
	rows, err := j.db.QueryContext(ctx, `
	SELECT session_id, at, state, progress FROM transitions
	WHERE session_id = ?
	ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query transitions: %w", err)
	}
	defer rows.Close()

	var out []Transition
	for rows.Next() {
		var (
			t  Transition
			at int64
		)
		if err := rows.Scan(&t.SessionID, &at, &t.State, &t.Progress); err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		t.At = time.UnixMilli(at).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// Prune deletes sessions started before cutoff, with their transitions,
// and returns how many sessions were removed.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, "DELETE FROM sessions WHERE started_at < ?", cutoff.UTC().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", err)
	}
	return res.RowsAffected()
}
