// Package history records every forecast generation in a SQL database.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"meteoswiss-forecast/logger"

	"github.com/google/uuid"
	"github.com/mitchellh/mapstructure"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Run statuses
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Run is one forecast generation
type Run struct {
	ID             uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	ZipCode        int       `gorm:"index" json:"zipCode"`
	City           string    `json:"city"`
	Source         string    `json:"source"`
	Days           int       `json:"days"`
	ModelTimestamp int64     `json:"modelTimestamp"`
	GeneratedAt    time.Time `gorm:"index" json:"generatedAt"`
	DurationMillis int64     `json:"durationMillis"`
	Status         string    `gorm:"size:16" json:"status"`
	Error          string    `json:"error,omitempty"`
}

// TableName keeps the table name stable across gorm naming strategies
func (Run) TableName() string {
	return "generation_runs"
}

// BeforeCreate assigns the ID
func (r *Run) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

// Config selects the database
type Config struct {
	Enabled   bool          `yaml:"enabled"`
	Type      string        `yaml:"type"` // sqlite, mysql or postgres
	Host      string        `yaml:"host"`
	Port      int           `yaml:"port"`
	Database  string        `yaml:"database"` // file path for sqlite
	User      string        `yaml:"user"`
	Password  string        `yaml:"password"`
	Sslmode   string        `yaml:"sslmode"`
	Retention time.Duration `yaml:"retention"`
}

func (c Config) port(def int) int {
	if c.Port == 0 {
		return def
	}
	return c.Port
}

// DefaultConfig keeps 30 days of runs in ./data/history.db
func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Type:      "sqlite",
		Database:  "./data/history.db",
		Retention: 30 * 24 * time.Hour,
	}
}

// DecodeConfig reads the history section of the configuration file
func DecodeConfig(raw map[string]interface{}) (Config, error) {
	cfg := DefaultConfig()
	if len(raw) == 0 {
		return cfg, nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return cfg, fmt.Errorf("failed to create decoder for history config: %w", err)
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("failed to decode history config: %w", err)
	}
	return cfg, nil
}

// Store records generation runs
type Store interface {
	Record(ctx context.Context, run *Run) error
	Latest(ctx context.Context, zipCode int, limit int) ([]Run, error)
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}

// Open connects to the configured database and migrates the schema. A
// disabled configuration returns a store that records nothing.
func Open(cfg Config) (Store, error) {
	if !cfg.Enabled {
		logger.Infof("Generation history is disabled")
		return NopStore{}, nil
	}

	factory, err := GetDialectorFactory(cfg.Type)
	if err != nil {
		return nil, err
	}
	if cfg.Type == "sqlite" && !isMemory(cfg.Database) {
		if err := os.MkdirAll(filepath.Dir(cfg.Database), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory for %s: %w", cfg.Database, err)
		}
	}
	dialector, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s dialector: %w", cfg.Type, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s history database: %w", cfg.Type, err)
	}
	if cfg.Type == "sqlite" {
		// one connection so that an in-memory database is shared and writes are serialized
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access database handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(&Run{}); err != nil {
		return nil, fmt.Errorf("failed to migrate history schema: %w", err)
	}
	logger.Infof("Recording generation history in %s database %s", cfg.Type, cfg.Database)
	return &GormStore{db: db}, nil
}

func isMemory(database string) bool {
	return database == ":memory:" || strings.Contains(database, "mode=memory")
}

// GormStore is the SQL implementation of Store
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// Record stores one run
func (s *GormStore) Record(ctx context.Context, run *Run) error {
	if run.GeneratedAt.IsZero() {
		run.GeneratedAt = time.Now().UTC()
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		return fmt.Errorf("failed to record generation run: %w", err)
	}
	return nil
}

// Latest returns the most recent runs, newest first. zipCode 0 selects all zip codes.
func (s *GormStore) Latest(ctx context.Context, zipCode int, limit int) ([]Run, error) {
	query := s.db.WithContext(ctx).Order("generated_at desc")
	if zipCode != 0 {
		query = query.Where("zip_code = ?", zipCode)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var runs []Run
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to load generation runs: %w", err)
	}
	return runs, nil
}

// Prune deletes runs generated before the given time
func (s *GormStore) Prune(ctx context.Context, before time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("generated_at < ?", before).Delete(&Run{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to prune generation runs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Close closes the database connection
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// NopStore is used when the history is disabled
type NopStore struct{}

var _ Store = NopStore{}

// Record does nothing
func (NopStore) Record(context.Context, *Run) error { return nil }

// Latest returns no runs
func (NopStore) Latest(context.Context, int, int) ([]Run, error) { return nil, nil }

// Prune deletes nothing
func (NopStore) Prune(context.Context, time.Time) (int64, error) { return 0, nil }

// Close does nothing
func (NopStore) Close() error { return nil }
