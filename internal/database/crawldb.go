package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/cookiecrawl/internal/model"
)

// FileName is the database file name inside the database directory.
const FileName = "cookiecrawl.db"

// CrawlDB is the SQLite record store.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file.
	CreateIfNotExists bool

	// EnableWAL enables write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the CrawlDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error
// telling the user to run a crawl first is returned. The database runs in
// WAL mode with a single connection, so concurrent SaveRecord calls from a
// batch crawl are serialized.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a crawl first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Concurrent visits save through one connection; SQLite has one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		domain TEXT NOT NULL,
		mode TEXT NOT NULL,
		rank INTEGER,
		status TEXT NOT NULL,
		consent TEXT NOT NULL,
		started_at TEXT NOT NULL,
		load_ms INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		record_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_records_domain ON crawl_records(domain, mode);
	CREATE INDEX IF NOT EXISTS idx_records_status ON crawl_records(status);

	CREATE TABLE IF NOT EXISTS third_party_domains (
		record_id INTEGER NOT NULL REFERENCES crawl_records(id) ON DELETE CASCADE,
		domain TEXT NOT NULL,
		tracker INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (record_id, domain)
	);

	CREATE INDEX IF NOT EXISTS idx_third_party_domain ON third_party_domains(domain);

	CREATE TABLE IF NOT EXISTS tracker_entities (
		record_id INTEGER NOT NULL REFERENCES crawl_records(id) ON DELETE CASCADE,
		entity TEXT NOT NULL,
		PRIMARY KEY (record_id, entity)
	);
	`
	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRecord stores rec and returns its ID.
func (cdb *CrawlDB) SaveRecord(ctx context.Context, rec model.CrawlRecord) (int64, error) {
	recordJSON, err := json.Marshal(rec)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize record: %w", err)
	}

	var rank sql.NullInt64
	if rec.Target.Rank != nil {
		rank = sql.NullInt64{Int64: int64(*rec.Target.Rank), Valid: true}
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawl_records (domain, mode, rank, status, consent, started_at, load_ms, record_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Target.Domain,
		string(rec.Target.Mode),
		rank,
		string(rec.Status),
		string(rec.Consent.Result),
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
		rec.LoadDuration().Milliseconds(),
		string(recordJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get record id: %w", err)
	}

	for _, d := range rec.ThirdPartyDomains {
		tracker := slices.Contains(rec.TrackerDomains, d)
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO third_party_domains (record_id, domain, tracker) VALUES (?, ?, ?)`,
			id, d, tracker,
		); err != nil {
			return 0, fmt.Errorf("failed to save third-party domain %s: %w", d, err)
		}
	}
	for _, e := range rec.TrackerEntities {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO tracker_entities (record_id, entity) VALUES (?, ?)`,
			id, e,
		); err != nil {
			return 0, fmt.Errorf("failed to save tracker entity %s: %w", e, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit record: %w", err)
	}
	return id, nil
}

// GetLatestRecord returns the most recent record of a site in a mode, or
// nil when the site was never crawled in that mode.
func (cdb *CrawlDB) GetLatestRecord(ctx context.Context, domain string, mode model.Mode) (*model.CrawlRecord, error) {
	var recordJSON string
	err := cdb.db.QueryRowContext(ctx, `
	SELECT record_json FROM crawl_records
	WHERE domain = ? AND mode = ?
	ORDER BY id DESC
	LIMIT 1`, domain, string(mode)).Scan(&recordJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return decodeRecord(recordJSON)
}

// GetRecordByID returns the record with the given ID, or nil.
func (cdb *CrawlDB) GetRecordByID(ctx context.Context, id int64) (*model.CrawlRecord, error) {
	var recordJSON string
	err := cdb.db.QueryRowContext(ctx, `SELECT record_json FROM crawl_records WHERE id = ?`, id).Scan(&recordJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return decodeRecord(recordJSON)
}

func decodeRecord(s string) (*model.CrawlRecord, error) {
	var rec model.CrawlRecord
	if err := json.Unmarshal([]byte(s), &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	return &rec, nil
}

// RecordMetadata summarizes a stored record without decoding it.
type RecordMetadata struct {
	ID           int64
	Domain       string
	Mode         model.Mode
	Rank         *int
	Status       model.Status
	Consent      model.ConsentResult
	StartedAt    time.Time
	LoadDuration time.Duration
	CreatedAt    time.Time
}

// ListRecords returns the metadata of every record, newest first. An empty
// mode lists all modes.
func (cdb *CrawlDB) ListRecords(ctx context.Context, mode model.Mode) ([]RecordMetadata, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT id, domain, mode, rank, status, consent, started_at, load_ms, created_at
	FROM crawl_records
	WHERE ? = '' OR mode = ?
	ORDER BY id DESC`, string(mode), string(mode))
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var results []RecordMetadata
	for rows.Next() {
		var (
			meta               RecordMetadata
			mode, status, cons string
			rank               sql.NullInt64
			startedAt, created string
			loadMS             int64
		)
		if err := rows.Scan(&meta.ID, &meta.Domain, &mode, &rank, &status, &cons, &startedAt, &loadMS, &created); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		meta.Mode = model.Mode(mode)
		meta.Status = model.Status(status)
		meta.Consent = model.ConsentResult(cons)
		if rank.Valid {
			r := int(rank.Int64)
			meta.Rank = &r
		}
		meta.StartedAt = parseTimestamp(startedAt)
		meta.LoadDuration = time.Duration(loadMS) * time.Millisecond
		meta.CreatedAt = parseTimestamp(created)
		results = append(results, meta)
	}
	return results, rows.Err()
}

// timestampFormats contains the timestamp formats that SQLite may return.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses s with the known formats; unknown formats give the
// zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
