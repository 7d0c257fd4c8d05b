// Package sqlite implements a SQLite-based run store using GORM.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/MahdiBaghbani/podinbox-go/internal/platform/store"
)

// DBFile is the database file name inside data_dir.
const DBFile = "podinbox.db"

func init() {
	store.Register("sqlite", NewDriver)
}

// Driver implements the store.Driver interface using SQLite via GORM.
type Driver struct {
	dataDir string
	db      *gorm.DB
}

// NewDriver creates a new SQLite driver instance.
func NewDriver(cfg *store.DriverConfig) (store.Driver, error) {
	if cfg.DataDir == "" {
		return nil, fmt.Errorf("data_dir is required for sqlite driver")
	}

	return &Driver{
		dataDir: cfg.DataDir,
	}, nil
}

// Name returns the driver name.
func (d *Driver) Name() string {
	return "sqlite"
}

// Init opens the database, creating data_dir if needed, and runs AutoMigrate.
func (d *Driver) Init(ctx context.Context) error {
	if err := os.MkdirAll(d.dataDir, 0o750); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	dbPath := filepath.Join(d.dataDir, DBFile)

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	d.db = db

	// AutoMigrate creates/updates tables based on model structs
	if err := db.WithContext(ctx).AutoMigrate(&store.RunRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (d *Driver) Close() error {
	if d.db == nil {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// PutRun upserts a run record.
func (d *Driver) PutRun(ctx context.Context, run *store.RunRecord) error {
	if d.db == nil {
		return store.ErrClosed
	}
	result := d.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(run)
	return result.Error
}

// GetRun retrieves a run record by ID.
func (d *Driver) GetRun(ctx context.Context, runID string) (*store.RunRecord, error) {
	if d.db == nil {
		return nil, store.ErrClosed
	}
	var run store.RunRecord
	result := d.db.WithContext(ctx).First(&run, "run_id = ?", runID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, store.ErrNotFound
		}
		return nil, result.Error
	}
	return &run, nil
}

// ListRuns returns runs newest first, optionally for one WebID.
func (d *Driver) ListRuns(ctx context.Context, webID string, limit int) ([]*store.RunRecord, error) {
	if d.db == nil {
		return nil, store.ErrClosed
	}
	var runs []*store.RunRecord
	query := d.db.WithContext(ctx).Order("started_at DESC").Order("run_id DESC")
	if webID != "" {
		query = query.Where("web_id = ?", webID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	result := query.Find(&runs)
	if result.Error != nil {
		return nil, result.Error
	}
	return runs, nil
}

// Compile-time interface checks
var _ store.Driver = (*Driver)(nil)
