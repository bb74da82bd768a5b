// Package audit records command invocations in an SQL database.
package audit

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Entry is a single command invocation.
type Entry struct {
	// Time is the time at which the invocation finished.
	Time time.Time
	// Trace is the trace ID attached to the invocation's logs.
	Trace string
	// Command is the name of the invoked command.
	Command string
	// Author is the username of the invoking user.
	Author string
	// Chat is the chat in which the command was invoked.
	Chat string
	// Post is the ID of the invoking post.
	Post string
	// Outcome describes how the invocation ended, e.g. "ok" or "banned".
	Outcome string
}

// Log is an audit log backed by an SQL database.
type Log struct {
	db *sqlitex.Pool
}

// Open opens an existing audit log in an SQL database.
func Open(ctx context.Context, db *sqlitex.Pool) (*Log, error) {
	return &Log{db: db}, nil
}

// Init initializes an audit log in an SQL database. It is not an error if the
// log already exists.
// For convenience, it accepts either a single connection or a pool.
func Init[DB *sqlite.Conn | *sqlitex.Pool](ctx context.Context, db DB) error {
	var conn *sqlite.Conn
	switch db := any(db).(type) {
	case *sqlite.Conn:
		conn = db
	case *sqlitex.Pool:
		var err error
		conn, err = db.Take(ctx)
		defer db.Put(conn)
		if err != nil {
			return fmt.Errorf("couldn't get connection from pool: %w", err)
		}
	}
	err := sqlitex.ExecuteScript(conn, schema, nil)
	if err != nil {
		return fmt.Errorf("couldn't initialize audit log: %w", err)
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS audit (
	id      INTEGER PRIMARY KEY,
	time    INTEGER NOT NULL,
	trace   TEXT NOT NULL,
	command TEXT NOT NULL,
	author  TEXT NOT NULL,
	chat    TEXT NOT NULL,
	post    TEXT NOT NULL,
	outcome TEXT NOT NULL
) STRICT;
CREATE INDEX IF NOT EXISTS audit_command ON audit (command, outcome);
`

// Record adds an entry to the log.
func (l *Log) Record(ctx context.Context, e Entry) error {
	conn, err := l.db.Take(ctx)
	defer l.db.Put(conn)
	if err != nil {
		return fmt.Errorf("couldn't get connection to record command: %w", err)
	}
	opts := sqlitex.ExecOptions{
		Args: []any{e.Time.UnixMilli(), e.Trace, e.Command, e.Author, e.Chat, e.Post, e.Outcome},
	}
	err = sqlitex.Execute(conn, `INSERT INTO audit (time, trace, command, author, chat, post, outcome) VALUES (?, ?, ?, ?, ?, ?, ?)`, &opts)
	if err != nil {
		return fmt.Errorf("couldn't record command: %w", err)
	}
	return nil
}

// Recent returns up to n of the most recent entries, newest first.
func (l *Log) Recent(ctx context.Context, n int) ([]Entry, error) {
	conn, err := l.db.Take(ctx)
	defer l.db.Put(conn)
	if err != nil {
		return nil, fmt.Errorf("couldn't get connection to read audit log: %w", err)
	}
	var r []Entry
	opts := sqlitex.ExecOptions{
		Args: []any{n},
		ResultFunc: func(st *sqlite.Stmt) error {
			r = append(r, Entry{
				Time:    time.UnixMilli(st.ColumnInt64(0)),
				Trace:   st.ColumnText(1),
				Command: st.ColumnText(2),
				Author:  st.ColumnText(3),
				Chat:    st.ColumnText(4),
				Post:    st.ColumnText(5),
				Outcome: st.ColumnText(6),
			})
			return nil
		},
	}
	err = sqlitex.Execute(conn, `SELECT time, trace, command, author, chat, post, outcome FROM audit ORDER BY id DESC LIMIT ?`, &opts)
	if err != nil {
		return nil, fmt.Errorf("couldn't read audit log: %w", err)
	}
	return r, nil
}

// Count returns the number of invocations of a command with the given outcome.
func (l *Log) Count(ctx context.Context, command, outcome string) (int, error) {
	conn, err := l.db.Take(ctx)
	defer l.db.Put(conn)
	if err != nil {
		return 0, fmt.Errorf("couldn't get connection to count commands: %w", err)
	}
	st, err := conn.Prepare(`SELECT COUNT(*) FROM audit WHERE command = ? AND outcome = ?`)
	if err != nil {
		return 0, fmt.Errorf("couldn't prepare statement to count commands: %w", err)
	}
	st.BindText(1, command)
	st.BindText(2, outcome)
	n, err := sqlitex.ResultInt(st)
	if err != nil {
		return 0, fmt.Errorf("couldn't count commands: %w", err)
	}
	return n, nil
}
