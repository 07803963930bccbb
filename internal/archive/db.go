package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/crawlscope/internal/model"
)

// FileName is the database file created inside the archive directory.
const FileName = "crawlscope.db"

// DB is the crawl archive.
type DB struct {
	db     *sql.DB
	dbPath string
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and database file if needed.
	CreateIfNotExists bool

	// EnableWAL enables write-ahead logging.
	EnableWAL bool
}

// DefaultOptions returns the default archive options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens the archive in dir.
func Open(dir string, opts Options) (*DB, error) {
	dbPath := filepath.Join(dir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("archive not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check archive path: %w", err)
		}
	} else if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	a := &DB{db: db, dbPath: dbPath}
	if err := a.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return a, nil
}

// Path returns the database file path.
func (a *DB) Path() string {
	return a.dbPath
}

// Close closes the database.
func (a *DB) Close() error {
	return a.db.Close()
}

func (a *DB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL UNIQUE,
		start_url TEXT NOT NULL,
		status TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT,
		pages_scraped INTEGER NOT NULL DEFAULT 0,
		links_discovered INTEGER NOT NULL DEFAULT 0,
		error_count INTEGER NOT NULL DEFAULT 0,
		current_depth INTEGER NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		options_json TEXT NOT NULL,
		archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_crawls_start_url ON crawls(start_url);
	CREATE INDEX IF NOT EXISTS idx_crawls_start_time ON crawls(start_time);

	CREATE TABLE IF NOT EXISTS pages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		crawl_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		title TEXT,
		depth INTEGER NOT NULL,
		link_count INTEGER NOT NULL,
		scraped_at TEXT NOT NULL,
		page_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pages_crawl ON pages(crawl_id);
	CREATE INDEX IF NOT EXISTS idx_pages_url ON pages(url);

	CREATE TABLE IF NOT EXISTS crawl_errors (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		crawl_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		url TEXT NOT NULL,
		message TEXT NOT NULL,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_crawl_errors_crawl ON crawl_errors(crawl_id);
	`
	_, err := a.db.ExecContext(context.Background(), schema)
	return err
}

// SaveCrawl stores job, replacing an earlier archive of the same job id,
// and returns the archive row id.
func (a *DB) SaveCrawl(ctx context.Context, job *model.Job) (int64, error) {
	optionsJSON, err := json.Marshal(job.Options)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize options: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteCrawl(ctx, tx, job.ID); err != nil {
		return 0, err
	}

	var (
		endTime  sql.NullString
		duration time.Duration
	)
	if job.EndTime != nil {
		endTime = sql.NullString{String: formatTimestamp(*job.EndTime), Valid: true}
	}
	if job.Result != nil {
		duration = job.Result.Duration
	}

	res, err := tx.ExecContext(ctx, `
	INSERT INTO crawls (job_id, start_url, status, start_time, end_time, pages_scraped,
		links_discovered, error_count, current_depth, duration_ms, error, options_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Options.StartURL, string(job.Status), formatTimestamp(job.StartTime), endTime,
		job.Metrics.PagesScraped, job.Metrics.LinksDiscovered, job.Metrics.Errors, job.Metrics.CurrentDepth,
		duration.Milliseconds(), job.Error, string(optionsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert crawl: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get crawl id: %w", err)
	}

	if job.Result != nil {
		if err := insertPages(ctx, tx, id, job.Result.Pages); err != nil {
			return 0, err
		}
		if err := insertErrors(ctx, tx, id, job.Result.Errors); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit crawl: %w", err)
	}
	return id, nil
}

func deleteCrawl(ctx context.Context, tx *sql.Tx, jobID string) error {
	for _, q := range []string{
		`DELETE FROM pages WHERE crawl_id IN (SELECT id FROM crawls WHERE job_id = ?)`,
		`DELETE FROM crawl_errors WHERE crawl_id IN (SELECT id FROM crawls WHERE job_id = ?)`,
		`DELETE FROM crawls WHERE job_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, jobID); err != nil {
			return fmt.Errorf("failed to replace crawl %s: %w", jobID, err)
		}
	}
	return nil
}

func insertPages(ctx context.Context, tx *sql.Tx, crawlID int64, pages []model.PageData) error {
	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO pages (crawl_id, position, url, title, depth, link_count, scraped_at, page_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range pages {
		pageJSON, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to serialize page %s: %w", p.URL, err)
		}
		if _, err := stmt.ExecContext(ctx, crawlID, i, p.URL, p.Title, p.Depth, len(p.Links),
			formatTimestamp(p.ScrapedAt), string(pageJSON)); err != nil {
			return fmt.Errorf("failed to insert page %s: %w", p.URL, err)
		}
	}
	return nil
}

func insertErrors(ctx context.Context, tx *sql.Tx, crawlID int64, crawlErrors []model.CrawlError) error {
	for i, e := range crawlErrors {
		if _, err := tx.ExecContext(ctx, `
		INSERT INTO crawl_errors (crawl_id, position, url, message, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
			crawlID, i, e.URL, e.Error, formatTimestamp(e.Timestamp)); err != nil {
			return fmt.Errorf("failed to insert crawl error %s: %w", e.URL, err)
		}
	}
	return nil
}

// GetCrawl loads the archived job with jobID, pages and errors included.
func (a *DB) GetCrawl(ctx context.Context, jobID string) (*model.Job, error) {
	var (
		crawlID     int64
		status      string
		startTime   string
		endTime     sql.NullString
		durationMS  int64
		errMsg      sql.NullString
		optionsJSON string
		job         model.Job
	)
	err := a.db.QueryRowContext(ctx, `
	SELECT id, job_id, status, start_time, end_time, pages_scraped, links_discovered,
		error_count, current_depth, duration_ms, error, options_json
	FROM crawls WHERE job_id = ?`, jobID).Scan(
		&crawlID, &job.ID, &status, &startTime, &endTime,
		&job.Metrics.PagesScraped, &job.Metrics.LinksDiscovered, &job.Metrics.Errors, &job.Metrics.CurrentDepth,
		&durationMS, &errMsg, &optionsJSON,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl: %w", err)
	}

	job.Status = model.JobStatus(status)
	job.StartTime = parseTimestamp(startTime)
	if endTime.Valid {
		end := parseTimestamp(endTime.String)
		job.EndTime = &end
	}
	job.Error = errMsg.String
	if err := json.Unmarshal([]byte(optionsJSON), &job.Options); err != nil {
		return nil, fmt.Errorf("failed to deserialize options: %w", err)
	}

	if job.Status != model.JobCompleted {
		return &job, nil
	}

	pages, err := a.pages(ctx, crawlID)
	if err != nil {
		return nil, err
	}
	crawlErrors, err := a.crawlErrors(ctx, crawlID)
	if err != nil {
		return nil, err
	}
	job.Result = &model.CrawlResult{
		PagesScraped:    job.Metrics.PagesScraped,
		LinksDiscovered: job.Metrics.LinksDiscovered,
		Duration:        time.Duration(durationMS) * time.Millisecond,
		Errors:          crawlErrors,
		Pages:           pages,
	}
	return &job, nil
}

func (a *DB) pages(ctx context.Context, crawlID int64) ([]model.PageData, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT page_json FROM pages WHERE crawl_id = ? ORDER BY position`, crawlID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pages: %w", err)
	}
	defer rows.Close()

	pages := []model.PageData{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		var p model.PageData
		if err := json.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("failed to deserialize page: %w", err)
		}
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

func (a *DB) crawlErrors(ctx context.Context, crawlID int64) ([]model.CrawlError, error) {
	rows, err := a.db.QueryContext(ctx,
		`SELECT url, message, timestamp FROM crawl_errors WHERE crawl_id = ? ORDER BY position`, crawlID)
	if err != nil {
		return nil, fmt.Errorf("failed to query crawl errors: %w", err)
	}
	defer rows.Close()

	out := []model.CrawlError{}
	for rows.Next() {
		var (
			e  model.CrawlError
			ts string
		)
		if err := rows.Scan(&e.URL, &e.Error, &ts); err != nil {
			return nil, fmt.Errorf("failed to scan crawl error: %w", err)
		}
		e.Timestamp = parseTimestamp(ts)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Summary is one row of the crawl history.
type Summary struct {
	JobID           string
	StartURL        string
	Status          model.JobStatus
	StartTime       time.Time
	EndTime         *time.Time
	PagesScraped    int
	LinksDiscovered int
	Errors          int
	Error           string
}

// ListOptions filters ListCrawls.
type ListOptions struct {
	// StartURL restricts the history to crawls of one seed when non-empty.
	StartURL string
	// Limit caps the number of rows; zero means no limit.
	Limit int
}

// ListCrawls returns archived crawls, newest first.
func (a *DB) ListCrawls(ctx context.Context, opts ListOptions) ([]Summary, error) {
	query := `
	SELECT job_id, start_url, status, start_time, end_time, pages_scraped,
		links_discovered, error_count, error
	FROM crawls`
	args := []any{}
	if opts.StartURL != "" {
		query += " WHERE start_url = ?"
		args = append(args, opts.StartURL)
	}
	query += " ORDER BY start_time DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list crawls: %w", err)
	}
	defer rows.Close()

	out := []Summary{}
	for rows.Next() {
		var (
			s         Summary
			status    string
			startTime string
			endTime   sql.NullString
			errMsg    sql.NullString
		)
		if err := rows.Scan(&s.JobID, &s.StartURL, &status, &startTime, &endTime,
			&s.PagesScraped, &s.LinksDiscovered, &s.Errors, &errMsg); err != nil {
			return nil, fmt.Errorf("failed to scan crawl: %w", err)
		}
		s.Status = model.JobStatus(status)
		s.StartTime = parseTimestamp(startTime)
		if endTime.Valid {
			end := parseTimestamp(endTime.String)
			s.EndTime = &end
		}
		s.Error = errMsg.String
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteCrawl removes an archived crawl and reports whether it existed.
func (a *DB) DeleteCrawl(ctx context.Context, jobID string) (bool, error) {
	var exists int
	err := a.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crawls WHERE job_id = ?`, jobID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to query crawl: %w", err)
	}
	if exists == 0 {
		return false, nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if err := deleteCrawl(ctx, tx, jobID); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}
	return true, nil
}

// timestampFormats lists the layouts a stored timestamp may use.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp returns the zero time when s matches no known layout.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
