// Package prebuilt implements the durable store for contexts built
// ahead of time by the preprocessing pipeline.
//
// It uses SQLite so the background builder and the MCP server can share
// records across processes. One process writes (the builder); any number
// of processes read. Staleness is two-pronged: a record expires by TTL,
// and it is also considered stale whenever the hash of the source data
// it was built from no longer matches.
package prebuilt

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/devscontext/devscontext/internal/synthesis"
)

// openDB is a package-level var to allow test injection.
var openDB = sql.Open

// ─── Types ───────────────────────────────────────────────────────────────────

// Record is one pre-built context row.
type Record struct {
	TaskID         string    `json:"task_id"`
	Synthesized    string    `json:"synthesized"`
	SourcesUsed    []string  `json:"sources_used"`
	QualityScore   float64   `json:"context_quality_score"`
	Gaps           []string  `json:"gaps"`
	BuiltAt        time.Time `json:"built_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	SourceDataHash string    `json:"source_data_hash"`
}

// Expired reports whether the record's TTL has elapsed.
func (r Record) Expired() bool {
	return time.Now().UTC().After(r.ExpiresAt)
}

// Result converts the record back to the synthesized form served to
// callers.
func (r Record) Result() *synthesis.Synthesized {
	return &synthesis.Synthesized{
		TaskID:       r.TaskID,
		Body:         r.Synthesized,
		SourcesUsed:  r.SourcesUsed,
		QualityScore: r.QualityScore,
		Gaps:         r.Gaps,
		BuiltAt:      r.BuiltAt,
	}
}

// FromSynthesized wraps a synthesized context as a storable record.
func FromSynthesized(s *synthesis.Synthesized, ttl time.Duration, sourceDataHash string) Record {
	builtAt := s.BuiltAt
	if builtAt.IsZero() {
		builtAt = time.Now().UTC()
	}
	return Record{
		TaskID:         s.TaskID,
		Synthesized:    s.Body,
		SourcesUsed:    s.SourcesUsed,
		QualityScore:   s.QualityScore,
		Gaps:           s.Gaps,
		BuiltAt:        builtAt,
		ExpiresAt:      builtAt.Add(ttl),
		SourceDataHash: sourceDataHash,
	}
}

// Summary is the compact per-record view used by listings.
type Summary struct {
	TaskID       string    `json:"task_id"`
	QualityScore float64   `json:"quality_score"`
	BuiltAt      time.Time `json:"built_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	GapsCount    int       `json:"gaps_count"`
}

// Stats holds aggregate storage statistics.
type Stats struct {
	Total      int        `json:"total"`
	Active     int        `json:"active"`
	Expired    int        `json:"expired"`
	AvgQuality float64    `json:"avg_quality"`
	LastBuild  *time.Time `json:"last_build,omitempty"`
}

// ─── Store ───────────────────────────────────────────────────────────────────

// Store is the SQLite-backed pre-built context store.
type Store struct {
	db *sql.DB
}

// New opens (creating if needed) the store at path. The parent directory
// is created, SQLite is opened with WAL mode, and the schema migrated.
func New(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("prebuilt: create data dir: %w", err)
		}
	}

	db, err := openDB("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("prebuilt: open database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("prebuilt: pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("prebuilt: migration: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS prebuilt_context (
			task_id               TEXT PRIMARY KEY,
			synthesized           TEXT NOT NULL,
			sources_used          TEXT NOT NULL,
			context_quality_score REAL NOT NULL,
			gaps                  TEXT NOT NULL,
			built_at              TEXT NOT NULL,
			expires_at            TEXT NOT NULL,
			source_data_hash      TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_prebuilt_expires ON prebuilt_context(expires_at);
		CREATE INDEX IF NOT EXISTS idx_prebuilt_built   ON prebuilt_context(built_at DESC);
	`
	_, err := s.db.Exec(schema)
	return err
}

// ─── Operations ──────────────────────────────────────────────────────────────

// Put stores a record, replacing any existing one for the same task.
func (s *Store) Put(rec Record) error {
	sources, err := json.Marshal(orEmpty(rec.SourcesUsed))
	if err != nil {
		return fmt.Errorf("prebuilt: marshal sources: %w", err)
	}
	gaps, err := json.Marshal(orEmpty(rec.Gaps))
	if err != nil {
		return fmt.Errorf("prebuilt: marshal gaps: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT OR REPLACE INTO prebuilt_context
		(task_id, synthesized, sources_used, context_quality_score,
		 gaps, built_at, expires_at, source_data_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.TaskID,
		rec.Synthesized,
		string(sources),
		rec.QualityScore,
		string(gaps),
		rec.BuiltAt.UTC().Format(time.RFC3339Nano),
		rec.ExpiresAt.UTC().Format(time.RFC3339Nano),
		rec.SourceDataHash,
	)
	if err != nil {
		return fmt.Errorf("prebuilt: store %s: %w", rec.TaskID, err)
	}
	return nil
}

// Get returns the record for taskID, expired or not; callers check
// staleness separately. Returns (nil, nil) when no record exists.
func (s *Store) Get(taskID string) (*Record, error) {
	row := s.db.QueryRow(`
		SELECT task_id, synthesized, sources_used, context_quality_score,
		       gaps, built_at, expires_at, source_data_hash
		FROM prebuilt_context
		WHERE task_id = ?`, taskID)

	var rec Record
	var sources, gaps, builtAt, expiresAt string
	err := row.Scan(&rec.TaskID, &rec.Synthesized, &sources, &rec.QualityScore,
		&gaps, &builtAt, &expiresAt, &rec.SourceDataHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("prebuilt: get %s: %w", taskID, err)
	}

	if err := json.Unmarshal([]byte(sources), &rec.SourcesUsed); err != nil {
		return nil, fmt.Errorf("prebuilt: decode sources for %s: %w", taskID, err)
	}
	if err := json.Unmarshal([]byte(gaps), &rec.Gaps); err != nil {
		return nil, fmt.Errorf("prebuilt: decode gaps for %s: %w", taskID, err)
	}
	if rec.BuiltAt, err = time.Parse(time.RFC3339Nano, builtAt); err != nil {
		return nil, fmt.Errorf("prebuilt: decode built_at for %s: %w", taskID, err)
	}
	if rec.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
		return nil, fmt.Errorf("prebuilt: decode expires_at for %s: %w", taskID, err)
	}
	return &rec, nil
}

// IsStale reports whether the stored record for taskID should be
// rebuilt: missing, past its TTL, or built from source data whose hash
// no longer matches currentHash.
func (s *Store) IsStale(taskID, currentHash string) (bool, error) {
	row := s.db.QueryRow(
		"SELECT expires_at, source_data_hash FROM prebuilt_context WHERE task_id = ?",
		taskID)

	var expiresAt, storedHash string
	err := row.Scan(&expiresAt, &storedHash)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("prebuilt: staleness check %s: %w", taskID, err)
	}

	exp, err := time.Parse(time.RFC3339Nano, expiresAt)
	if err != nil {
		return true, nil // unreadable timestamp, rebuild
	}
	if time.Now().UTC().After(exp) {
		return true, nil
	}
	return storedHash != currentHash, nil
}

// Delete removes the record for taskID. Returns whether a row existed.
func (s *Store) Delete(taskID string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM prebuilt_context WHERE task_id = ?", taskID)
	if err != nil {
		return false, fmt.Errorf("prebuilt: delete %s: %w", taskID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("prebuilt: delete %s: %w", taskID, err)
	}
	return n > 0, nil
}

// DeleteExpired removes every record past its TTL and returns the count.
func (s *Store) DeleteExpired() (int, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.Exec("DELETE FROM prebuilt_context WHERE expires_at < ?", now)
	if err != nil {
		return 0, fmt.Errorf("prebuilt: delete expired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prebuilt: delete expired: %w", err)
	}
	return int(n), nil
}

// List returns per-record summaries, most recently built first.
func (s *Store) List() ([]Summary, error) {
	rows, err := s.db.Query(`
		SELECT task_id, context_quality_score, built_at, expires_at, gaps
		FROM prebuilt_context
		ORDER BY built_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("prebuilt: list: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var builtAt, expiresAt, gaps string
		if err := rows.Scan(&sum.TaskID, &sum.QualityScore, &builtAt, &expiresAt, &gaps); err != nil {
			return nil, fmt.Errorf("prebuilt: list scan: %w", err)
		}
		sum.BuiltAt, _ = time.Parse(time.RFC3339Nano, builtAt)
		sum.ExpiresAt, _ = time.Parse(time.RFC3339Nano, expiresAt)
		var gapList []string
		if err := json.Unmarshal([]byte(gaps), &gapList); err == nil {
			sum.GapsCount = len(gapList)
		}
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("prebuilt: list: %w", err)
	}
	return out, nil
}

// GetStats returns aggregate counts for status reporting.
func (s *Store) GetStats() (Stats, error) {
	var st Stats
	now := time.Now().UTC().Format(time.RFC3339Nano)

	if err := s.db.QueryRow("SELECT COUNT(*) FROM prebuilt_context").Scan(&st.Total); err != nil {
		return st, fmt.Errorf("prebuilt: stats: %w", err)
	}
	if err := s.db.QueryRow(
		"SELECT COUNT(*) FROM prebuilt_context WHERE expires_at >= ?", now,
	).Scan(&st.Active); err != nil {
		return st, fmt.Errorf("prebuilt: stats: %w", err)
	}
	st.Expired = st.Total - st.Active

	var avg sql.NullFloat64
	if err := s.db.QueryRow(
		"SELECT AVG(context_quality_score) FROM prebuilt_context",
	).Scan(&avg); err != nil {
		return st, fmt.Errorf("prebuilt: stats: %w", err)
	}
	if avg.Valid {
		st.AvgQuality = avg.Float64
	}

	var last sql.NullString
	if err := s.db.QueryRow("SELECT MAX(built_at) FROM prebuilt_context").Scan(&last); err != nil {
		return st, fmt.Errorf("prebuilt: stats: %w", err)
	}
	if last.Valid {
		if t, err := time.Parse(time.RFC3339Nano, last.String); err == nil {
			st.LastBuild = &t
		}
	}
	return st, nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
