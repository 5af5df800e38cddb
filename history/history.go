// Package history keeps a record of finished downloads in SQLite.
package history

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mediadl/notify"

	_ "modernc.org/sqlite"
)

// Entry is one finished download.
type Entry struct {
	ID        int64       `json:"id"`
	URL       string      `json:"url"`
	Kind      notify.Kind `json:"kind"`
	Filename  string      `json:"filename,omitempty"`
	Path      string      `json:"path,omitempty"`
	Size      int64       `json:"size,omitempty"`
	MediaType string      `json:"media_type,omitempty"`
	Playlist  bool        `json:"playlist"`
	Message   string      `json:"message,omitempty"`
	At        time.Time   `json:"at"`
}

// Store wraps the SQLite connection.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory store.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)"
	}
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	s := &Store{conn: conn, logger: slog.Default()}
	if err := s.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize history schema: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) initSchema() error {
	_, err := s.conn.Exec(`
	CREATE TABLE IF NOT EXISTS history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL,
		kind TEXT NOT NULL,
		filename TEXT,
		path TEXT,
		size INTEGER DEFAULT 0,
		media_type TEXT,
		playlist BOOLEAN DEFAULT FALSE,
		message TEXT,
		at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_kind ON history(kind);
	CREATE INDEX IF NOT EXISTS idx_history_at ON history(at);
	`)
	return err
}

// Record stores ev if it is a terminal event and reports whether it did.
func (s *Store) Record(ev notify.Event) (bool, error) {
	e := Entry{URL: ev.JobID(), Kind: ev.Kind(), At: ev.Time()}
	switch v := ev.(type) {
	case notify.Completed:
		e.Filename, e.Path, e.Size, e.MediaType, e.Playlist = v.Filename, v.Path, v.Size, v.MediaType, v.Playlist
	case notify.Failed:
		e.Filename, e.Message = v.Filename, v.Message
	case notify.Cancelled:
		e.Filename, e.Message = v.Filename, v.Message
	default:
		return false, nil
	}

	_, err := s.conn.Exec(`
	INSERT INTO history (url, kind, filename, path, size, media_type, playlist, message, at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.URL, string(e.Kind), e.Filename, e.Path, e.Size, e.MediaType, e.Playlist, e.Message, e.At.UnixMilli(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record history entry: %w", err)
	}
	return true, nil
}

// List returns the newest entries first. An empty kind matches every kind;
// a limit of zero or less means no limit.
func (s *Store) List(kind notify.Kind, limit int) ([]Entry, error) {
	var (
		where []string
		args  []any
	)
	if kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(kind))
	}
	query := `SELECT id, url, kind, filename, path, size, media_type, playlist, message, at FROM history`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e                                  Entry
			kindStr                            string
			filename, path, mediaType, message sql.NullString
			at                                 int64
		)
		if err := rows.Scan(&e.ID, &e.URL, &kindStr, &filename, &path, &e.Size, &mediaType, &e.Playlist, &message, &at); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		e.Kind = notify.Kind(kindStr)
		e.Filename, e.Path, e.MediaType, e.Message = filename.String, path.String, mediaType.String, message.String
		e.At = time.UnixMilli(at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear deletes entries of kind, or all entries when kind is empty, and
// returns how many were removed.
func (s *Store) Clear(kind notify.Kind) (int64, error) {
	var (
		res sql.Result
		err error
	)
	if kind == "" {
		res, err = s.conn.Exec(`DELETE FROM history`)
	} else {
		res, err = s.conn.Exec(`DELETE FROM history WHERE kind = ?`, string(kind))
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear history: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count cleared entries: %w", err)
	}
	s.logger.Info("History cleared", "kind", kind, "removed", n)
	return n, nil
}
