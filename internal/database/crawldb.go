package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitescan/internal/config"
	"github.com/nao1215/sitescan/internal/model"
)

// ErrNotFound is returned when the database file does not exist and
// CreateIfNotExists is false.
var ErrNotFound = errors.New("database not found")

// timeLayout is the fixed-width UTC layout timestamps are stored in, so that
// they sort correctly as text.
const timeLayout = "2006-01-02 15:04:05.000000000"

// CrawlDB provides SQLite-based storage for fetch records and scan reports.
// It is safe for concurrent use; writes are serialized on one connection.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
	now    func() time.Time
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB in dbDir.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, ErrNotFound is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, config.DefaultDatabaseFile)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

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

// Path returns the path of the database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	-- One row per target and URL, holding the latest fetch
	CREATE TABLE IF NOT EXISTS fetches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		url TEXT NOT NULL,
		final_url TEXT NOT NULL,
		status_code INTEGER NOT NULL DEFAULT 0,
		content_type TEXT NOT NULL DEFAULT '',
		sha256 TEXT NOT NULL DEFAULT '',
		error_kind TEXT NOT NULL DEFAULT '',
		depth INTEGER NOT NULL DEFAULT 0,
		probe INTEGER NOT NULL DEFAULT 0,
		fetched_at TEXT NOT NULL,
		UNIQUE(target, url)
	);

	CREATE INDEX IF NOT EXISTS idx_fetches_target ON fetches(target);
	CREATE INDEX IF NOT EXISTS idx_fetches_fetched_at ON fetches(fetched_at);

	-- Scan reports store one target's section of a report as JSON
	CREATE TABLE IF NOT EXISTS scan_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		base_url TEXT NOT NULL,
		run_id TEXT NOT NULL,
		scanned_at TEXT NOT NULL,
		termination TEXT NOT NULL,
		finding_count INTEGER NOT NULL,
		risk_summary TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reports_target ON scan_reports(target);
	CREATE INDEX IF NOT EXISTS idx_reports_base_url ON scan_reports(base_url);
	CREATE INDEX IF NOT EXISTS idx_reports_scanned_at ON scan_reports(scanned_at);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// FetchRecord is the stored outcome of one fetch.
type FetchRecord struct {
	ID          int64
	Target      string
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	SHA256      string
	ErrorKind   string
	Depth       int
	Probe       bool
	FetchedAt   time.Time
}

// InsertFetch inserts or updates a fetch record.
// A URL fetched again for the same target replaces the earlier row.
func (cdb *CrawlDB) InsertFetch(ctx context.Context, record *FetchRecord) (int64, error) {
	fetchedAt := record.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = cdb.now()
	}

	query := `
	INSERT INTO fetches (target, url, final_url, status_code, content_type, sha256, error_kind, depth, probe, fetched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(target, url) DO UPDATE SET
		final_url = excluded.final_url,
		status_code = excluded.status_code,
		content_type = excluded.content_type,
		sha256 = excluded.sha256,
		error_kind = excluded.error_kind,
		depth = excluded.depth,
		probe = excluded.probe,
		fetched_at = excluded.fetched_at
	`

	result, err := cdb.db.ExecContext(ctx, query,
		record.Target,
		record.URL,
		record.FinalURL,
		record.StatusCode,
		record.ContentType,
		record.SHA256,
		record.ErrorKind,
		record.Depth,
		record.Probe,
		formatTimestamp(fetchedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert fetch record: %w", err)
	}

	return result.LastInsertId()
}

// RecordFetch stores result as the latest fetch of its URL for target.
func (cdb *CrawlDB) RecordFetch(ctx context.Context, target string, depth int, result *model.FetchResult) error {
	record := &FetchRecord{
		Target:      target,
		URL:         result.URL,
		FinalURL:    result.FinalURL,
		StatusCode:  result.StatusCode,
		ContentType: result.ContentType(),
		SHA256:      result.Hash(),
		Depth:       depth,
		Probe:       result.Probe,
	}
	if record.FinalURL == "" {
		record.FinalURL = result.URL
	}
	if result.Err != nil {
		record.ErrorKind = string(result.Err.Kind)
	}
	_, err := cdb.InsertFetch(ctx, record)
	return err
}

// GetFetch retrieves the fetch record of url for target.
// It returns nil without error when there is none.
func (cdb *CrawlDB) GetFetch(ctx context.Context, target, url string) (*FetchRecord, error) {
	query := `
	SELECT id, target, url, final_url, status_code, content_type, sha256, error_kind, depth, probe, fetched_at
	FROM fetches
	WHERE target = ? AND url = ?
	`

	var record FetchRecord
	var fetchedAt string
	err := cdb.db.QueryRowContext(ctx, query, target, url).Scan(
		&record.ID,
		&record.Target,
		&record.URL,
		&record.FinalURL,
		&record.StatusCode,
		&record.ContentType,
		&record.SHA256,
		&record.ErrorKind,
		&record.Depth,
		&record.Probe,
		&fetchedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get fetch record: %w", err)
	}
	record.FetchedAt = parseTimestamp(fetchedAt)

	return &record, nil
}

// FetchCount returns the number of distinct URLs stored for target.
func (cdb *CrawlDB) FetchCount(ctx context.Context, target string) (int, error) {
	var count int
	err := cdb.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM fetches WHERE target = ?`, target).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count fetches: %w", err)
	}
	return count, nil
}

// ScanRecord is one stored target report.
type ScanRecord struct {
	// ID is the unique identifier of the scan report in the database.
	ID int64

	// RunID identifies the run the report was part of.
	RunID string

	// ScannedAt is when the report was generated.
	ScannedAt time.Time

	// RiskSummary contains counts of findings by severity level.
	RiskSummary map[string]int

	// Report is the stored target report.
	Report *model.TargetReport
}

// execer is implemented by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// SaveTargetReport saves one target's report from the run runID.
func (cdb *CrawlDB) SaveTargetReport(ctx context.Context, runID string, scannedAt time.Time, t *model.TargetReport) error {
	return saveTargetReport(ctx, cdb.db, runID, scannedAt, t)
}

// SaveReport saves every target of report in one transaction.
func (cdb *CrawlDB) SaveReport(ctx context.Context, report *model.Report) error {
	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	for i := range report.Targets {
		if err := saveTargetReport(ctx, tx, report.RunID, report.GeneratedAt, &report.Targets[i]); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit scan reports: %w", err)
	}
	return nil
}

func saveTargetReport(ctx context.Context, db execer, runID string, scannedAt time.Time, t *model.TargetReport) error {
	reportJSON, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	riskSummary := make(map[string]int, 5)
	for s, n := range t.CountBySeverity() {
		riskSummary[strings.ToLower(s.String())] = n
	}
	riskJSON, err := json.Marshal(riskSummary)
	if err != nil {
		return fmt.Errorf("failed to serialize risk summary: %w", err)
	}

	query := `
	INSERT INTO scan_reports (target, base_url, run_id, scanned_at, termination, finding_count, risk_summary, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = db.ExecContext(ctx, query,
		t.Target,
		t.BaseURL,
		runID,
		formatTimestamp(scannedAt),
		string(t.Summary.Termination),
		len(t.Findings),
		string(riskJSON),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save scan report: %w", err)
	}

	return nil
}

// GetTargetHistory returns up to limit stored reports of a target, newest
// first. target matches either the target name or its base URL.
// A limit of zero or less returns every report.
func (cdb *CrawlDB) GetTargetHistory(ctx context.Context, target string, limit int) ([]ScanRecord, error) {
	query := `
	SELECT id, run_id, scanned_at, risk_summary, report_json
	FROM scan_reports
	WHERE target = ? OR base_url = ?
	ORDER BY scanned_at DESC, id DESC
	`
	args := []any{target, target}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var results []ScanRecord
	for rows.Next() {
		var rec ScanRecord
		var scannedAt, reportJSON string
		var riskJSON sql.NullString

		if err := rows.Scan(&rec.ID, &rec.RunID, &scannedAt, &riskJSON, &reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report row: %w", err)
		}
		rec.ScannedAt = parseTimestamp(scannedAt)

		rec.RiskSummary = make(map[string]int)
		if riskJSON.Valid && riskJSON.String != "" {
			if err := json.Unmarshal([]byte(riskJSON.String), &rec.RiskSummary); err != nil {
				rec.RiskSummary = make(map[string]int)
			}
		}

		var report model.TargetReport
		if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
			continue // Skip malformed reports
		}
		rec.Report = &report
		results = append(results, rec)
	}

	return results, rows.Err()
}

// ListTargets returns the names of every target with a stored report.
func (cdb *CrawlDB) ListTargets(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT target FROM scan_reports ORDER BY target`)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}

	return targets, rows.Err()
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timeLayout,
	"2006-01-02 15:04:05",
	time.RFC3339Nano,
	time.RFC3339,
}

// parseTimestamp parses a stored timestamp, returning the zero time when
// no known format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
