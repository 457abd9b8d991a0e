package dbstorage

import (
	"context"
	"database/sql"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"go.uber.org/zap"

	"github.com/arnac-io/multisig-coordinator/pkg/core"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var storageTimeHistogramVec = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "dbstorage_functions_time",
		Help:    "DbStorage functions execution duration distribution in seconds",
		Buckets: []float64{0.001, 0.01, 0.05, 0.1, 1, 5, 10},
	},
	[]string{"method"},
)

func observe(method string) *prometheus.Timer {
	return prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		storageTimeHistogramVec.WithLabelValues(method).Observe(v)
	}))
}

const (
	dialectSQLite   = "sqlite"
	dialectPostgres = "postgres"

	defaultMaxConns        = 10
	defaultConnMaxLifetime = 5 * time.Minute
	sqliteBusyTimeoutMs    = 5000
)

// DbStorage keeps accounts, approvers, txs and signatures in a relational
// database. Every exported method is a single atomic unit.
type DbStorage struct {
	logger  *zap.Logger
	db      *bun.DB
	dialect string
}

type Options struct {
	maxConns int
}

type Option func(o *Options)

// WithMaxConns limits the connection pool. SQLite always uses one connection.
func WithMaxConns(n int) Option {
	return func(o *Options) {
		o.maxConns = n
	}
}

// dataSource describes how to open a DSN given in configuration.
type dataSource struct {
	dialect  string
	driver   string
	dsn      string
	inMemory bool
}

// parseDSN accepts postgres:// and postgresql:// URLs, sqlite://path,
// sqlite:path, file: URIs, plain file paths and ":memory:".
func parseDSN(raw string) (dataSource, error) {
	switch {
	case raw == "":
		return dataSource{}, errors.New("empty database url")
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		return dataSource{dialect: dialectPostgres, driver: "pgx", dsn: raw}, nil
	}
	path := raw
	for _, prefix := range []string{"sqlite://", "sqlite:"} {
		if strings.HasPrefix(path, prefix) {
			path = strings.TrimPrefix(path, prefix)
			break
		}
	}
	if path == "" {
		return dataSource{}, errors.Errorf("invalid sqlite url %q", raw)
	}
	inMemory := path == ":memory:" || strings.Contains(path, ":memory:") || strings.Contains(path, "mode=memory")
	if path == ":memory:" {
		path = "file::memory:"
	}
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	q := url.Values{}
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "busy_timeout("+strconv.Itoa(sqliteBusyTimeoutMs)+")")
	if !inMemory {
		q.Add("_pragma", "journal_mode(WAL)")
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return dataSource{
		dialect:  dialectSQLite,
		driver:   "sqlite",
		dsn:      path + sep + q.Encode(),
		inMemory: inMemory,
	}, nil
}

func NewDbStorage(ctx context.Context, log *zap.Logger, rawURL string, opts ...Option) (*DbStorage, error) {
	o := &Options{maxConns: defaultMaxConns}
	for i := range opts {
		opts[i](o)
	}
	src, err := parseDSN(rawURL)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(src.driver, src.dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	switch src.dialect {
	case dialectSQLite:
		// SQLite serializes writers anyway; one connection also keeps an
		// in-memory database alive and shared.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		if src.inMemory {
			sqlDB.SetConnMaxLifetime(0)
			sqlDB.SetConnMaxIdleTime(0)
		}
	default:
		sqlDB.SetMaxOpenConns(o.maxConns)
		sqlDB.SetMaxIdleConns(o.maxConns)
		sqlDB.SetConnMaxLifetime(defaultConnMaxLifetime)
	}
	err = retry.Do(func() error {
		return sqlDB.PingContext(ctx)
	}, retry.Attempts(5), retry.Delay(200*time.Millisecond))
	if err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "ping database")
	}
	if err := runMigrations(ctx, log, sqlDB, src.dialect); err != nil {
		_ = sqlDB.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	var db *bun.DB
	switch src.dialect {
	case dialectPostgres:
		db = bun.NewDB(sqlDB, pgdialect.New())
	default:
		db = bun.NewDB(sqlDB, sqlitedialect.New())
	}
	log.Info("database is ready", zap.String("dialect", src.dialect))
	return &DbStorage{
		logger:  log,
		db:      db,
		dialect: src.dialect,
	}, nil
}

func (s *DbStorage) Close() error {
	return s.db.Close()
}

// mapDBError turns driver constraint violations into domain errors. Drivers
// are matched by message so that this package does not depend on their
// error types.
func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return err
	}
	le := strings.ToLower(err.Error())
	switch {
	case strings.Contains(le, "unique"), strings.Contains(le, "duplicate"), strings.Contains(le, "23505"):
		return errors.Wrap(core.ErrConflict, err.Error())
	case strings.Contains(le, "foreign key"), strings.Contains(le, "23503"):
		return errors.Wrap(core.ErrEntityNotFound, err.Error())
	}
	return err
}
