package tokenstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tphakala/push-dispatcher/internal/errors"
	"github.com/tphakala/push-dispatcher/internal/logger"
	"github.com/tphakala/push-dispatcher/internal/push"
)

// Supported database types.
const (
	TypeSQLite = "sqlite"
	TypeMySQL  = "mysql"
)

// DefaultDedupeTTL suppresses repeated writes for the same recipient.
const DefaultDedupeTTL = 10 * time.Minute

const component = "tokenstore"

// Recorder receives store metrics. internal/observability/metrics.StoreMetrics
// satisfies it.
type Recorder interface {
	RecordOperation(operation string, err error, elapsed time.Duration)
	RecordCacheHit()
	SetStoredRecipients(n int64)
}

type noopRecorder struct{}

func (noopRecorder) RecordOperation(string, error, time.Duration) {}
func (noopRecorder) RecordCacheHit()                              {}
func (noopRecorder) SetStoredRecipients(int64)                    {}

// Config selects and configures the backing database.
type Config struct {
	Type      string
	Path      string // sqlite file
	DSN       string // mysql DSN
	DedupeTTL time.Duration
	Debug     bool
}

// Store persists invalid recipients. It implements push.Invalidator.
type Store struct {
	db      *gorm.DB
	seen    *gocache.Cache
	log     logger.Logger
	metrics Recorder
}

var _ push.Invalidator = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(s *Store) {
		if r != nil {
			s.metrics = r
		}
	}
}

// Open connects to the configured database and migrates the schema.
func Open(cfg Config, log logger.Logger, opts ...Option) (*Store, error) {
	if log == nil {
		log = logger.NewDiscardLogger()
	}

	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger(log, cfg.Debug)})
	if err != nil {
		return nil, errors.New(err).
			Component(component).
			Category(errors.CategoryDatabase).
			Context("type", cfg.Type).
			Context("operation", "open").
			Build()
	}

	if cfg.Type == TypeMySQL {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying database: %w", err)
		}
		sqlDB.SetMaxIdleConns(2)
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetConnMaxLifetime(time.Hour)
	}

	return newStore(db, cfg, log, opts...)
}

// New wraps an existing GORM connection, migrating the schema.
func New(db *gorm.DB, log logger.Logger, opts ...Option) (*Store, error) {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return newStore(db, Config{}, log, opts...)
}

func newStore(db *gorm.DB, cfg Config, log logger.Logger, opts ...Option) (*Store, error) {
	if err := db.AutoMigrate(&InvalidRecipient{}); err != nil {
		return nil, errors.New(err).
			Component(component).
			Category(errors.CategoryDatabase).
			Context("operation", "migrate").
			Build()
	}

	ttl := cfg.DedupeTTL
	if ttl <= 0 {
		ttl = DefaultDedupeTTL
	}

	s := &Store{
		db:      db,
		seen:    gocache.New(ttl, 2*ttl),
		log:     log,
		metrics: noopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if n, err := s.Count(context.Background()); err == nil {
		s.metrics.SetStoredRecipients(n)
	}

	s.log.Info("invalid recipient store ready", logger.String("type", cfg.Type))
	return s, nil
}

func dialectorFor(cfg Config) (gorm.Dialector, error) {
	switch cfg.Type {
	case TypeSQLite, "":
		if cfg.Path == "" {
			return nil, errors.Newf("sqlite path is required").
				Component(component).
				Category(errors.CategoryConfiguration).
				Build()
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
			return nil, errors.New(err).
				Component(component).
				Category(errors.CategoryFileIO).
				Context("path", cfg.Path).
				Build()
		}
		dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000", cfg.Path)
		return sqlite.Open(dsn), nil
	case TypeMySQL:
		if cfg.DSN == "" {
			return nil, errors.Newf("mysql dsn is required").
				Component(component).
				Category(errors.CategoryConfiguration).
				Build()
		}
		return mysql.Open(cfg.DSN), nil
	default:
		return nil, errors.Newf("unsupported store type %q", cfg.Type).
			Component(component).
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func cacheKey(r push.Recipient) string {
	return r.Kind.String() + ":" + r.Value
}

// Invalidate records inv. Repeats for the same recipient within the dedupe
// window are absorbed in memory.
func (s *Store) Invalidate(ctx context.Context, inv push.Invalidation) error {
	key := cacheKey(inv.Recipient)
	if err := s.seen.Add(key, struct{}{}, gocache.DefaultExpiration); err != nil {
		s.metrics.RecordCacheHit()
		return nil
	}

	at := inv.At
	if at.IsZero() {
		at = time.Now()
	}
	row := InvalidRecipient{
		Kind:       inv.Recipient.Kind.String(),
		Value:      inv.Recipient.Value,
		StatusCode: inv.StatusCode,
		Reason:     truncate(inv.Body, 1024),
		LastTaskID: inv.TaskID,
		Hits:       1,
		FirstSeen:  at,
		LastSeen:   at,
	}

	start := time.Now()
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "kind"}, {Name: "value"}},
			DoUpdates: clause.Assignments(map[string]any{
				"status_code":  row.StatusCode,
				"reason":       row.Reason,
				"last_task_id": row.LastTaskID,
				"last_seen":    row.LastSeen,
				"hits":         gorm.Expr("hits + 1"),
			}),
		}).
		Create(&row).Error
	s.metrics.RecordOperation("save", err, time.Since(start))
	if err != nil {
		// allow the next report to try again
		s.seen.Delete(key)
		return errors.New(err).
			Component(component).
			Category(errors.CategoryDatabase).
			Context("operation", "save").
			Context("recipient_kind", row.Kind).
			Build()
	}

	if n, err := s.Count(ctx); err == nil {
		s.metrics.SetStoredRecipients(n)
	}
	return nil
}

// IsInvalid reports whether r has been recorded as stale.
func (s *Store) IsInvalid(ctx context.Context, r push.Recipient) (bool, error) {
	if _, ok := s.seen.Get(cacheKey(r)); ok {
		return true, nil
	}

	start := time.Now()
	var n int64
	err := s.db.WithContext(ctx).Model(&InvalidRecipient{}).
		Where("kind = ? AND value = ?", r.Kind.String(), r.Value).
		Count(&n).Error
	s.metrics.RecordOperation("lookup", err, time.Since(start))
	if err != nil {
		return false, fmt.Errorf("lookup invalid recipient: %w", err)
	}
	return n > 0, nil
}

// List returns the most recently reported recipients first. A limit of zero
// or less returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]InvalidRecipient, error) {
	start := time.Now()
	q := s.db.WithContext(ctx).Order("last_seen DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []InvalidRecipient
	err := q.Find(&out).Error
	s.metrics.RecordOperation("list", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("list invalid recipients: %w", err)
	}
	return out, nil
}

// Count returns the number of stored recipients.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&InvalidRecipient{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count invalid recipients: %w", err)
	}
	return n, nil
}

// Forget removes r, typically after the application re-registered it.
func (s *Store) Forget(ctx context.Context, r push.Recipient) (bool, error) {
	start := time.Now()
	res := s.db.WithContext(ctx).
		Where("kind = ? AND value = ?", r.Kind.String(), r.Value).
		Delete(&InvalidRecipient{})
	s.metrics.RecordOperation("delete", res.Error, time.Since(start))
	if res.Error != nil {
		return false, fmt.Errorf("forget invalid recipient: %w", res.Error)
	}
	s.seen.Delete(cacheKey(r))
	return res.RowsAffected > 0, nil
}

// Purge deletes entries last seen before the cutoff.
func (s *Store) Purge(ctx context.Context, before time.Time) (int64, error) {
	start := time.Now()
	res := s.db.WithContext(ctx).Where("last_seen < ?", before).Delete(&InvalidRecipient{})
	s.metrics.RecordOperation("purge", res.Error, time.Since(start))
	if res.Error != nil {
		return 0, fmt.Errorf("purge invalid recipients: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		s.seen.Flush()
		s.log.Info("purged invalid recipients",
			logger.Int64("removed", res.RowsAffected),
			logger.Time("before", before))
	}
	return res.RowsAffected, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
