package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

// DB is a read-only handle on an Open WebUI webui.db database.
type DB struct {
	conn *sql.DB
	path string
}

// Open opens the database read-only. A missing or unreadable file is fatal
// to the run; no partial analysis is attempted.
func Open(path string) (*DB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database not found at %s: %w", path, err)
	}

	conn, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Surface unreadable/garbage files now instead of on the first query.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to read database: %w", err)
	}
	// busy_timeout reduces SQLITE_BUSY errors if the server is still writing.
	_, _ = conn.Exec("PRAGMA busy_timeout = 5000")

	log.WithField("path", path).Debug("opened database read-only")
	return &DB{conn: conn, path: path}, nil
}

// New wraps an already-open connection. Used by fixture harnesses and tests
// that build their own in-memory databases.
func New(conn *sql.DB, path string) *DB {
	return &DB{conn: conn, path: path}
}

// Close closes the underlying connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Path returns the database file path.
func (d *DB) Path() string {
	return d.path
}

// SizeBytes returns the database file size, or 0 when it cannot be measured
// (e.g. in-memory fixtures).
func (d *DB) SizeBytes() int64 {
	info, err := os.Stat(d.path)
	if err != nil {
		return 0
	}
	return info.Size()
}

// TableCount is one table's name and row count.
type TableCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Tables lists all non-internal tables with their row counts.
func (d *DB) Tables() ([]TableCount, error) {
	rows, err := d.conn.Query(`
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tables: %w", err)
	}

	tables := make([]TableCount, 0, len(names))
	for _, name := range names {
		var count int
		// Table names come from sqlite_master, not user input.
		if err := d.conn.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM [%s]", name)).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count rows in %s: %w", name, err)
		}
		tables = append(tables, TableCount{Name: name, Count: count})
	}
	return tables, nil
}

// expectedTables are the Open WebUI tables the analyzer relies on.
var expectedTables = []string{"user", "chat", "feedback", "auth", "config"}

// SchemaInfo describes how closely the database matches the schema the
// analyzer was written against.
type SchemaInfo struct {
	AlembicVersion string   `json:"alembic_version,omitempty"`
	MissingTables  []string `json:"missing_tables,omitempty"`
}

// Schema detects the migration version and any expected tables that are absent.
func (d *DB) Schema() (SchemaInfo, error) {
	var info SchemaInfo

	present := make(map[string]bool)
	rows, err := d.conn.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	if err != nil {
		return info, fmt.Errorf("failed to read schema: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return info, fmt.Errorf("failed to scan table name: %w", err)
		}
		present[name] = true
	}
	if err := rows.Err(); err != nil {
		return info, fmt.Errorf("error iterating schema: %w", err)
	}

	for _, want := range expectedTables {
		if !present[want] {
			info.MissingTables = append(info.MissingTables, want)
		}
	}

	if present["alembic_version"] {
		// Best effort; an empty migrations table just leaves the version blank.
		_ = d.conn.QueryRow(`SELECT version_num FROM alembic_version LIMIT 1`).Scan(&info.AlembicVersion)
	}

	return info, nil
}

// User is one row of the user table.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         string `json:"role"`
	LastActiveAt int64  `json:"last_active_at"`
	CreatedAt    int64  `json:"created_at"`
}

// Users loads all users.
func (d *DB) Users() ([]User, error) {
	rows, err := d.conn.Query(`
		SELECT id, name, email, role, last_active_at, created_at
		FROM user
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		var name, email, role sql.NullString
		var lastActive, created sql.NullInt64
		if err := rows.Scan(&u.ID, &name, &email, &role, &lastActive, &created); err != nil {
			return nil, fmt.Errorf("failed to scan user row: %w", err)
		}
		u.Name = name.String
		u.Email = email.String
		u.Role = role.String
		u.LastActiveAt = lastActive.Int64
		u.CreatedAt = created.Int64
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

// Chat is one row of the chat table. Payload is the raw chat JSON column;
// decoding it is the chatlog package's problem, not the store's.
type Chat struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Payload   string `json:"-"`
	Meta      string `json:"-"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
	Archived  bool   `json:"archived"`
	Pinned    bool   `json:"pinned"`
}

// Chats loads all chats, ordered by id for deterministic downstream output.
func (d *DB) Chats() ([]Chat, error) {
	rows, err := d.conn.Query(`
		SELECT id, user_id, title, chat, meta, created_at, updated_at, archived, pinned
		FROM chat
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats: %w", err)
	}
	defer rows.Close()

	var chats []Chat
	for rows.Next() {
		var c Chat
		var userID, title, payload, meta sql.NullString
		var created, updated, archived, pinned sql.NullInt64
		if err := rows.Scan(&c.ID, &userID, &title, &payload, &meta, &created, &updated, &archived, &pinned); err != nil {
			return nil, fmt.Errorf("failed to scan chat row: %w", err)
		}
		c.UserID = userID.String
		c.Title = title.String
		c.Payload = payload.String
		c.Meta = meta.String
		c.CreatedAt = created.Int64
		c.UpdatedAt = updated.Int64
		c.Archived = archived.Int64 == 1
		c.Pinned = pinned.Int64 == 1
		chats = append(chats, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chats: %w", err)
	}
	return chats, nil
}

// Feedback is one row of the feedback table. Data carries the untyped rating
// payload; Meta carries the chat/message linkage.
type Feedback struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Data      string `json:"data"`
	Meta      string `json:"meta"`
	CreatedAt int64  `json:"created_at"`
}

// feedbackMeta is the documented shape of the feedback meta column.
type feedbackMeta struct {
	ChatID    string `json:"chat_id"`
	MessageID string `json:"message_id"`
}

// ChatID extracts the chat this feedback refers to, or "" when the meta
// column is missing or undecodable.
func (f Feedback) ChatID() string {
	if f.Meta == "" {
		return ""
	}
	var meta feedbackMeta
	if err := json.Unmarshal([]byte(f.Meta), &meta); err != nil {
		return ""
	}
	return meta.ChatID
}

// FeedbackRows loads all feedback, ordered by id for deterministic output.
func (d *DB) FeedbackRows() ([]Feedback, error) {
	rows, err := d.conn.Query(`
		SELECT id, user_id, data, meta, created_at
		FROM feedback
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer rows.Close()

	var feedback []Feedback
	for rows.Next() {
		var f Feedback
		var userID, data, meta sql.NullString
		var created sql.NullInt64
		if err := rows.Scan(&f.ID, &userID, &data, &meta, &created); err != nil {
			return nil, fmt.Errorf("failed to scan feedback row: %w", err)
		}
		f.UserID = userID.String
		f.Data = data.String
		f.Meta = meta.String
		f.CreatedAt = created.Int64
		feedback = append(feedback, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feedback: %w", err)
	}
	return feedback, nil
}
