package library

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"petscan/internal/assets"
	"petscan/internal/filesystem"
	"petscan/internal/logging"
	"petscan/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// ErrNotFound is returned when an asset id is not in the catalog.
var ErrNotFound = errors.New("asset not found")

// Asset is a catalog row: the handle plus the file facts the indexer uses
// to detect changes.
type Asset struct {
	assets.Handle
	Size    int64
	ModTime time.Time
}

// Catalog is the SQLite-backed asset catalog. It implements assets.Source.
type Catalog struct {
	db     *sql.DB
	dbPath string
	root   string
}

var _ assets.Source = (*Catalog)(nil)

// Open opens or creates the catalog at dbPath for the library rooted at
// root. The parent directory of dbPath must exist and be writable.
func Open(ctx context.Context, dbPath, root string) (*Catalog, error) {
	logging.Info("Catalog path: %s", dbPath)

	if err := diagnoseDatabasePermissions(dbPath); err != nil {
		logging.Warn("Catalog permission diagnostics: %v", err)
	}

	// busy_timeout keeps indexer writes from failing while a scan reads.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to catalog: %w", err)
	}

	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(time.Hour)

	c := &Catalog{db: db, dbPath: dbPath, root: root}
	if err := c.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close catalog after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize catalog schema: %w", err)
	}

	logging.Info("Catalog ready at %s", dbPath)
	return c, nil
}

func (c *Catalog) initialize(ctx context.Context) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("initialize_schema", start, err) }()

	// created_at and mod_time are unix milliseconds; created_at is NULL
	// when the creation date is unknown.
	schema := `
	CREATE TABLE IF NOT EXISTS assets (
		id TEXT PRIMARY KEY,
		path TEXT NOT NULL DEFAULT '',
		url TEXT NOT NULL DEFAULT '',
		media_type TEXT NOT NULL,
		created_at INTEGER,
		size INTEGER NOT NULL DEFAULT 0,
		mod_time INTEGER NOT NULL DEFAULT 0,
		indexed_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_assets_created_at ON assets(created_at);
	CREATE INDEX IF NOT EXISTS idx_assets_type_created ON assets(media_type, created_at);
	CREATE INDEX IF NOT EXISTS idx_assets_indexed_at ON assets(indexed_at);
	`

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = c.db.ExecContext(ctx, schema)
	return err
}

// Close closes the database connection.
func (c *Catalog) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Catalog) Path() string {
	return c.dbPath
}

// Root returns the library root directory.
func (c *Catalog) Root() string {
	return c.root
}

// Authorize implements assets.Source. It fails with assets.ErrUnauthorized
// when the library root cannot be read.
func (c *Catalog) Authorize(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("catalog unavailable: %w", err)
	}
	if c.root == "" {
		return nil
	}

	dir, err := filesystem.OpenWithRetry(c.root, filesystem.DefaultRetryConfig())
	if err == nil {
		_, err = dir.ReadDir(1)
		dir.Close()
		if errors.Is(err, io.EOF) {
			err = nil
		}
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: library %s: %v", assets.ErrUnauthorized, c.root, err)
	default:
		return fmt.Errorf("library %s: %w", c.root, err)
	}
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	duration := time.Since(start).Seconds()
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(duration)
}

// diagnoseDatabasePermissions checks the database directory is writable and
// logs the state of existing database files.
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat catalog directory: %w", err)
	}
	logging.Debug("Catalog directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("catalog directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Catalog file %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("Catalog file %s is read-only (mode %v), writes will fail", path, info.Mode())
		}
	}
	return nil
}
