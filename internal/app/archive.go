package app

import (
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Archive is the local SQLite store for exported conversation transcripts
// and the chat input's prompt history. It is a convenience on top of the
// remote backend, never a source of truth: session state itself is
// process-local and rebuilt from the backend on start.
type Archive struct {
	Root   string
	dbPath string

	mu   sync.Mutex
	db   *sql.DB
	once sync.Once
	err  error
}

// ArchiveEntry summarizes one archived transcript.
type ArchiveEntry struct {
	ConversationID string
	Title          string
	MessageCount   int
	SavedAt        time.Time
}

func DefaultArchiveRoot() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "docdash")
	}
	return filepath.Join(base, "docdash")
}

func OpenArchive(root string) (*Archive, error) {
	if strings.TrimSpace(root) == "" {
		root = DefaultArchiveRoot()
	}
	root = filepath.Clean(root)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	a := &Archive{
		Root:   root,
		dbPath: filepath.Join(root, "docdash.db"),
	}
	// Initialize eagerly so callers fail fast.
	if err := a.init(); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *Archive) init() error {
	a.once.Do(func() {
		db, err := sql.Open("sqlite", a.dbPath)
		if err != nil {
			a.err = err
			return
		}
		// Keep sqlite responsive under contention.
		_, _ = db.Exec("PRAGMA busy_timeout = 5000;")
		_, _ = db.Exec("PRAGMA journal_mode = WAL;")
		_, _ = db.Exec("PRAGMA synchronous = NORMAL;")

		schema := []string{
			`CREATE TABLE IF NOT EXISTS transcripts (
				conversation_id TEXT PRIMARY KEY,
				title TEXT,
				saved_at_ns INTEGER NOT NULL
			);`,
			`CREATE TABLE IF NOT EXISTS transcript_messages (
				id TEXT NOT NULL,
				conversation_id TEXT NOT NULL,
				role TEXT NOT NULL,
				kind TEXT NOT NULL,
				content TEXT NOT NULL,
				created_at_ns INTEGER NOT NULL,
				seq INTEGER NOT NULL,
				PRIMARY KEY (conversation_id, seq)
			);`,
			`CREATE INDEX IF NOT EXISTS idx_transcript_messages_conv ON transcript_messages(conversation_id, seq);`,
			`CREATE TABLE IF NOT EXISTS prompt_history (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				entry TEXT NOT NULL
			);`,
		}
		for _, stmt := range schema {
			if _, err := db.Exec(stmt); err != nil {
				_ = db.Close()
				a.err = err
				return
			}
		}

		a.db = db
	})
	return a.err
}

func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// SaveTranscript stores a full snapshot of a conversation's messages,
// replacing any previous export of the same conversation.
func (a *Archive) SaveTranscript(conv Conversation, msgs []Message) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(
		`INSERT INTO transcripts (conversation_id, title, saved_at_ns) VALUES (?, ?, ?)
		 ON CONFLICT(conversation_id) DO UPDATE SET title=excluded.title, saved_at_ns=excluded.saved_at_ns`,
		conv.ID, conv.Title, time.Now().UnixNano(),
	); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM transcript_messages WHERE conversation_id = ?`, conv.ID); err != nil {
		return err
	}
	for i, m := range msgs {
		if _, err := tx.Exec(
			`INSERT INTO transcript_messages (id, conversation_id, role, kind, content, created_at_ns, seq)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.ID, conv.ID, m.Role, string(m.Kind), m.Content, m.Timestamp.UnixNano(), i,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// LoadTranscript returns the archived messages for a conversation in the
// order they were saved.
func (a *Archive) LoadTranscript(conversationID string) ([]Message, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.Query(
		`SELECT id, role, kind, content, created_at_ns FROM transcript_messages
		 WHERE conversation_id = ? ORDER BY seq`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		var m Message
		var kind string
		var createdNS int64
		if err := rows.Scan(&m.ID, &m.Role, &kind, &m.Content, &createdNS); err != nil {
			return nil, err
		}
		m.Kind = MessageKind(kind)
		m.Timestamp = time.Unix(0, createdNS)
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// ListTranscripts returns archived conversations, most recently saved first.
func (a *Archive) ListTranscripts() ([]ArchiveEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.Query(
		`SELECT t.conversation_id, t.title, t.saved_at_ns,
		        (SELECT COUNT(*) FROM transcript_messages m WHERE m.conversation_id = t.conversation_id)
		 FROM transcripts t ORDER BY t.saved_at_ns DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []ArchiveEntry
	for rows.Next() {
		var e ArchiveEntry
		var savedNS int64
		if err := rows.Scan(&e.ConversationID, &e.Title, &savedNS, &e.MessageCount); err != nil {
			return nil, err
		}
		e.SavedAt = time.Unix(0, savedNS)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SavePromptHistory replaces the stored input history. Entries are trimmed
// and de-duplicated preserving first occurrence.
func (a *Archive) SavePromptHistory(entries []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	tx, err := a.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`DELETE FROM prompt_history`); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" || seen[entry] {
			continue
		}
		seen[entry] = true
		if _, err := tx.Exec(`INSERT INTO prompt_history (entry) VALUES (?)`, entry); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (a *Archive) LoadPromptHistory() ([]string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	rows, err := a.db.Query(`SELECT entry FROM prompt_history ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []string
	for rows.Next() {
		var entry string
		if err := rows.Scan(&entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
