package sqlstore

// The sql store service answers SqlQuery, SqlExec and the transaction
// messages against one database/sql pool. Which driver backs the pool is a
// configuration choice: sqlite3, mysql or postgres.

import (
	"database/sql"
	"fmt"
	"msgqueue/internal/kernel"
	"msgqueue/internal/logger"
	"msgqueue/internal/svc"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

var log = logger.NewLogger("sqlstore", kernel.SystemLogLevel())

var Operations = kernel.Ops(
	svc.SqlQuery{},
	svc.SqlExec{},
	svc.SqlBegin{},
	svc.SqlCommit{},
	svc.SqlRollback{},
)

const (
	DriverSqlite   = "sqlite3"
	DriverMysql    = "mysql"
	DriverPostgres = "postgres"
)

type Service struct {
	driver string
	db     *sql.DB
}

// Open validates dsn for driver and opens the pool. The connection is
// checked with a ping before the service is handed out.
func Open(driver, dsn string) (*Service, error) {
	if err := checkDSN(driver, dsn); err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == DriverSqlite {
		// every pooled connection to ":memory:" is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	log.Infof("opened %s store", driver)
	return &Service{driver: driver, db: db}, nil
}

func (s *Service) Driver() string { return s.driver }

// DB exposes the pool for maintenance outside the service.
func (s *Service) DB() *sql.DB { return s.db }

func (s *Service) Close() error {
	return s.db.Close()
}

func checkDSN(driver, dsn string) error {
	switch driver {
	case DriverSqlite:
		if dsn == "" {
			return fmt.Errorf("sqlite3: empty dsn")
		}
	case DriverMysql:
		if _, err := mysql.ParseDSN(dsn); err != nil {
			return fmt.Errorf("mysql dsn: %w", err)
		}
	case DriverPostgres:
		if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
			if _, err := pq.ParseURL(dsn); err != nil {
				return fmt.Errorf("postgres dsn: %w", err)
			}
		}
	default:
		return fmt.Errorf("unsupported sql driver %q", driver)
	}
	return nil
}

// normalize turns a scanned driver value into a plain Go value. Text columns
// that a driver hands back as []byte become strings.
func normalize(v any, ct *sql.ColumnType) any {
	switch x := v.(type) {
	case nil:
		return nil
	case []byte:
		if ct != nil && isText(ct.DatabaseTypeName()) {
			return string(x)
		}
		return append([]byte(nil), x...)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	default:
		return v
	}
}

func isText(decl string) bool {
	decl = strings.ToUpper(decl)
	return decl == "TEXT" || strings.Contains(decl, "CHAR") || strings.Contains(decl, "CLOB") ||
		decl == "JSON" || decl == "DECIMAL" || decl == "NUMERIC"
}
