package search

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"database/sql"

	_ "modernc.org/sqlite" // pure-Go SQLite driver

	ferrors "git.home.luguber.info/inful/docsync/internal/foundation/errors"
)

// Index is the SQLite FTS5 search index. A content table holds the rows;
// the virtual table mirrors it through triggers, so replacing a
// repository's rows keeps the index consistent without manual rebuilds.
type Index struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewIndex opens or creates the search index at the given path.
func NewIndex(dbPath string) (*Index, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, ferrors.IndexError("failed to open search database").
			WithContext("path", dbPath).
			WithContext("error", err.Error()).
			Build()
	}

	idx := &Index{db: db}
	if err := idx.initialize(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return idx, nil
}

func (x *Index) initialize() error {
	pragmas := []string{
		`PRAGMA journal_mode = WAL`,
		`PRAGMA busy_timeout = 5000`,
		`PRAGMA foreign_keys = ON`,
	}
	for _, pragma := range pragmas {
		if _, err := x.db.Exec(pragma); err != nil {
			return ferrors.IndexError("failed to apply database pragma").
				WithContext("pragma", pragma).
				WithContext("error", err.Error()).
				Build()
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		repository TEXT NOT NULL,
		slug TEXT NOT NULL,
		site_path TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		anchors TEXT NOT NULL DEFAULT '',
		updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(repository, site_path)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_repository ON documents(repository);

	CREATE VIRTUAL TABLE IF NOT EXISTS documents_fts USING fts5(
		title,
		body,
		anchors,
		content='documents',
		content_rowid='id',
		tokenize='unicode61'
	);

	CREATE TRIGGER IF NOT EXISTS documents_ai AFTER INSERT ON documents BEGIN
		INSERT INTO documents_fts(rowid, title, body, anchors)
		VALUES (new.id, new.title, new.body, new.anchors);
	END;

	CREATE TRIGGER IF NOT EXISTS documents_ad AFTER DELETE ON documents BEGIN
		INSERT INTO documents_fts(documents_fts, rowid, title, body, anchors)
		VALUES ('delete', old.id, old.title, old.body, old.anchors);
	END;

	CREATE TRIGGER IF NOT EXISTS documents_au AFTER UPDATE ON documents BEGIN
		INSERT INTO documents_fts(documents_fts, rowid, title, body, anchors)
		VALUES ('delete', old.id, old.title, old.body, old.anchors);
		INSERT INTO documents_fts(rowid, title, body, anchors)
		VALUES (new.id, new.title, new.body, new.anchors);
	END;
	`

	if _, err := x.db.Exec(schema); err != nil {
		return ferrors.IndexError("failed to initialize search schema").
			WithContext("error", err.Error()).
			Build()
	}

	// Heal any drift between the content table and the virtual table.
	if _, err := x.db.Exec(`INSERT INTO documents_fts(documents_fts) VALUES('rebuild')`); err != nil {
		return ferrors.IndexError("failed to rebuild search index").
			WithContext("error", err.Error()).
			Build()
	}

	return nil
}

// Upsert replaces every row belonging to the repository with the given
// entries in one transaction. Readers see either the old set or the new
// one, never a mix.
func (x *Index) Upsert(ctx context.Context, repository string, entries []Entry) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return ferrors.IndexError("failed to begin index transaction").
			WithContext("repository", repository).
			WithContext("error", err.Error()).
			Build()
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE repository = ?`, repository); err != nil {
		return ferrors.IndexError("failed to clear previous index rows").
			WithContext("repository", repository).
			WithContext("error", err.Error()).
			Build()
	}

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents (repository, slug, site_path, title, body, anchors)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			repository, e.Slug, e.SitePath, e.Title, e.Body, e.Anchors); err != nil {
			return ferrors.IndexError("failed to insert index row").
				WithContext("repository", repository).
				WithContext("site_path", e.SitePath).
				WithContext("error", err.Error()).
				Build()
		}
	}

	if err := tx.Commit(); err != nil {
		return ferrors.IndexError("failed to commit index update").
			WithContext("repository", repository).
			WithContext("error", err.Error()).
			Build()
	}
	return nil
}

// Purge removes every row belonging to the repository.
func (x *Index) Purge(ctx context.Context, repository string) error {
	return x.Upsert(ctx, repository, nil)
}

// Query runs a ranked full-text search restricted to the given visible
// repositories. The response carries the total match count so callers can
// paginate past the returned page.
func (x *Index) Query(ctx context.Context, query string, repositories []string, limit, offset int) (*Response, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	resp := &Response{Query: query, Results: []Result{}}

	match := ftsQuery(query)
	if match == "" || len(repositories) == 0 {
		return resp, nil
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(repositories)), ",")
	args := make([]any, 0, len(repositories)+3)
	args = append(args, match)
	for _, repo := range repositories {
		args = append(args, repo)
	}

	countStmt := `SELECT COUNT(*)
		FROM documents_fts
		JOIN documents d ON d.id = documents_fts.rowid
		WHERE documents_fts MATCH ? AND d.repository IN (` + placeholders + `)`
	if err := x.db.QueryRowContext(ctx, countStmt, args...).Scan(&resp.Total); err != nil {
		return nil, ferrors.IndexError("failed to count search matches").
			WithContext("error", err.Error()).
			Build()
	}

	stmt := `SELECT d.site_path, d.title, snippet(documents_fts, 1, '[', ']', '...', 12), d.repository
		FROM documents_fts
		JOIN documents d ON d.id = documents_fts.rowid
		WHERE documents_fts MATCH ? AND d.repository IN (` + placeholders + `)
		ORDER BY bm25(documents_fts), d.site_path
		LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := x.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, ferrors.IndexError("failed to run search query").
			WithContext("error", err.Error()).
			Build()
	}
	defer rows.Close()

	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.SitePath, &r.Title, &r.Snippet, &r.Repository); err != nil {
			return nil, ferrors.IndexError("failed to scan search result").
				WithContext("error", err.Error()).
				Build()
		}
		resp.Results = append(resp.Results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, ferrors.IndexError("failed to iterate search results").
			WithContext("error", err.Error()).
			Build()
	}

	return resp, nil
}

// Close releases the database handle.
func (x *Index) Close() error {
	if err := x.db.Close(); err != nil {
		return ferrors.IndexError("failed to close search database").
			WithContext("error", err.Error()).
			Build()
	}
	return nil
}

// ftsQuery turns free text into an FTS5 MATCH expression: each word
// becomes a quoted prefix token, AND-joined. Returns "" when nothing
// tokenizable remains.
func ftsQuery(text string) string {
	parts := strings.Fields(text)
	tokens := make([]string, 0, len(parts))
	for _, part := range parts {
		token := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				return unicode.ToLower(r)
			}
			return -1
		}, part)
		if token == "" {
			continue
		}
		tokens = append(tokens, `"`+token+`"*`)
	}
	return strings.Join(tokens, " AND ")
}
