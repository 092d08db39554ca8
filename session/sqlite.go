package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hupe1980/agentplay/core"
)

// SQLiteArchive implements core.Archive on SQLite.
type SQLiteArchive struct {
	db *sql.DB
}

// NewSQLiteArchive opens (and if needed creates) the archive at dbPath.
// Use ":memory:" for a private in-memory database.
func NewSQLiteArchive(dbPath string) (*SQLiteArchive, error) {
	dsn := dbPath
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}

		dsn += "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if dbPath == ":memory:" {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(4)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	a := &SQLiteArchive{db: db}
	if err := a.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return a, nil
}

func (a *SQLiteArchive) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		agents_json TEXT NOT NULL,
		step TEXT NOT NULL,
		iterations INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		archived_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_archived ON sessions(archived_at);

	CREATE TABLE IF NOT EXISTS turns (
		session_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		role TEXT NOT NULL,
		speaker TEXT NOT NULL,
		content TEXT NOT NULL,
		status TEXT NOT NULL,
		synthesized INTEGER NOT NULL DEFAULT 0,
		tool_call_json TEXT,
		references_json TEXT,
		decisions_json TEXT,
		created_at INTEGER NOT NULL,
		PRIMARY KEY (session_id, idx)
	);
	`
	if _, err := a.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Close releases the database.
func (a *SQLiteArchive) Close() error { return a.db.Close() }

// Save stores t in one transaction, replacing an earlier transcript of the
// same session.
func (a *SQLiteArchive) Save(ctx context.Context, t core.Transcript) (err error) {
	if t.SessionID == "" {
		return &core.ValidationError{Field: "session_id", Message: "must not be empty"}
	}

	agents, err := json.Marshal(t.Agents)
	if err != nil {
		return fmt.Errorf("encode agents: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO sessions (session_id, mode, agents_json, step, iterations, created_at, archived_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id) DO UPDATE SET
		mode = excluded.mode,
		agents_json = excluded.agents_json,
		step = excluded.step,
		iterations = excluded.iterations,
		archived_at = excluded.archived_at`,
		t.SessionID, t.Mode, string(agents), t.Step, t.Iterations, t.Created.UnixNano(), t.Archived.UnixNano())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, t.SessionID); err != nil {
		return fmt.Errorf("clear turns: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO turns (session_id, idx, role, speaker, content, status, synthesized, tool_call_json, references_json, decisions_json, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare turn insert: %w", err)
	}
	defer stmt.Close()

	for _, turn := range t.Turns {
		toolCall, refs, decisions, encErr := encodeTurnExtras(turn)
		if encErr != nil {
			err = encErr
			return err
		}

		synthesized := 0
		if turn.Synthesized {
			synthesized = 1
		}

		if _, err = stmt.ExecContext(ctx,
			t.SessionID, turn.Index, string(turn.Role), turn.Speaker, turn.Content, string(turn.Status),
			synthesized, toolCall, refs, decisions, turn.Timestamp.UnixNano(),
		); err != nil {
			return fmt.Errorf("insert turn %d: %w", turn.Index, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// Load returns the transcript of sessionID.
func (a *SQLiteArchive) Load(ctx context.Context, sessionID string) (core.Transcript, error) {
	row := a.db.QueryRowContext(ctx, `
		SELECT session_id, mode, agents_json, step, iterations, created_at, archived_at
		FROM sessions WHERE session_id = ?`, sessionID)

	var (
		t                 core.Transcript
		agents            string
		created, archived int64
	)

	err := row.Scan(&t.SessionID, &t.Mode, &agents, &t.Step, &t.Iterations, &created, &archived)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transcript{}, fmt.Errorf("%w: %s", core.ErrSessionNotFound, sessionID)
	}

	if err != nil {
		return core.Transcript{}, fmt.Errorf("scan session row: %w", err)
	}

	if err := json.Unmarshal([]byte(agents), &t.Agents); err != nil {
		return core.Transcript{}, fmt.Errorf("decode agents: %w", err)
	}

	t.Created = time.Unix(0, created).UTC()
	t.Archived = time.Unix(0, archived).UTC()

	rows, err := a.db.QueryContext(ctx, `
		SELECT idx, role, speaker, content, status, synthesized, tool_call_json, references_json, decisions_json, created_at
		FROM turns WHERE session_id = ? ORDER BY idx`, sessionID)
	if err != nil {
		return core.Transcript{}, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			turn                      core.Turn
			role, status              string
			synthesized               int
			toolCall, refs, decisions sql.NullString
			ts                        int64
		)

		if err := rows.Scan(&turn.Index, &role, &turn.Speaker, &turn.Content, &status, &synthesized, &toolCall, &refs, &decisions, &ts); err != nil {
			return core.Transcript{}, fmt.Errorf("scan turn row: %w", err)
		}

		turn.Role = core.Role(role)
		turn.Status = core.TurnStatus(status)
		turn.Synthesized = synthesized == 1
		turn.Timestamp = time.Unix(0, ts).UTC()

		if err := decodeTurnExtras(&turn, toolCall, refs, decisions); err != nil {
			return core.Transcript{}, fmt.Errorf("decode turn %d: %w", turn.Index, err)
		}

		t.Turns = append(t.Turns, turn)
	}

	if err := rows.Err(); err != nil {
		return core.Transcript{}, fmt.Errorf("iterate turns: %w", err)
	}

	return t, nil
}

// List returns archived session ids, oldest archive first.
func (a *SQLiteArchive) List(ctx context.Context) ([]string, error) {
	rows, err := a.db.QueryContext(ctx, `SELECT session_id FROM sessions ORDER BY archived_at, session_id`)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session id: %w", err)
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

func encodeTurnExtras(turn core.Turn) (toolCall, refs, decisions any, err error) {
	if turn.ToolCall != nil {
		b, err := json.Marshal(turn.ToolCall)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode tool call: %w", err)
		}

		toolCall = string(b)
	}

	if len(turn.References) > 0 {
		b, err := json.Marshal(turn.References)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode references: %w", err)
		}

		refs = string(b)
	}

	if len(turn.Decisions) > 0 {
		b, err := json.Marshal(turn.Decisions)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("encode decisions: %w", err)
		}

		decisions = string(b)
	}

	return toolCall, refs, decisions, nil
}

func decodeTurnExtras(turn *core.Turn, toolCall, refs, decisions sql.NullString) error {
	if toolCall.Valid {
		var tc core.ToolCall
		if err := json.Unmarshal([]byte(toolCall.String), &tc); err != nil {
			return err
		}

		turn.ToolCall = &tc
	}

	if refs.Valid {
		if err := json.Unmarshal([]byte(refs.String), &turn.References); err != nil {
			return err
		}
	}

	if decisions.Valid {
		if err := json.Unmarshal([]byte(decisions.String), &turn.Decisions); err != nil {
			return err
		}
	}

	return nil
}
