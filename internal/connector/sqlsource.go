package connector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/microsoft/go-mssqldb"

	"github.com/hunthawk-systems/hunthawk/internal/config"
	"github.com/hunthawk-systems/hunthawk/internal/logging"
	"github.com/hunthawk-systems/hunthawk/internal/models"
)

// SQLConnector runs analytics against a relational event store. The analytic
// query must select hostname, site, event count and an optional storyline id
// column in that order; extra columns are rejected up front so a bad analytic
// is flagged instead of silently mis-mapped.
type SQLConnector struct {
	db       *sql.DB
	recorder ErrorRecorder
	log      *logging.Logger
}

func NewSQLConnector(cfg config.SQLConnectorConfig, recorder ErrorRecorder, log *logging.Logger) (*SQLConnector, error) {
	driver, err := normalizeDriver(cfg.Driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s source: %w", driver, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &SQLConnector{db: db, recorder: recorder, log: log}, nil
}

func normalizeDriver(name string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mysql":
		return "mysql", nil
	case "postgres", "postgresql":
		return "postgres", nil
	case "mssql", "sqlserver":
		return "sqlserver", nil
	case "":
		return "", errors.New("sql connector driver is required")
	default:
		return "", fmt.Errorf("unsupported sql driver %q", name)
	}
}

func (c *SQLConnector) Query(ctx context.Context, a *models.Analytic, from, to time.Time) ([]Row, error) {
	rows, err := c.db.QueryContext(ctx, a.Query, from.UTC(), to.UTC())
	if err != nil {
		// Connection-level failures abort the run; anything else is a
		// broken analytic and gets recorded against it.
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("sql query failed: %w", err)
		}
		if pingErr := c.db.PingContext(ctx); pingErr != nil {
			return nil, fmt.Errorf("sql source unreachable: %w", pingErr)
		}
		c.log.WarnContext(ctx, "analytic query rejected", "analytic", a.Name, "error", err)
		if c.recorder != nil {
			if rerr := c.recorder.RecordQueryError(ctx, a, err.Error()); rerr != nil {
				return nil, fmt.Errorf("failed to record query error: %w", rerr)
			}
		}
		return nil, nil
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read result columns: %w", err)
	}
	if len(cols) < 3 || len(cols) > 4 {
		msg := fmt.Sprintf("expected 3 or 4 result columns (hostname, site, count, storyline), got %d", len(cols))
		if c.recorder != nil {
			if rerr := c.recorder.RecordQueryError(ctx, a, msg); rerr != nil {
				return nil, fmt.Errorf("failed to record query error: %w", rerr)
			}
		}
		return nil, nil
	}
	withStoryline := len(cols) == 4

	var out []Row
	for rows.Next() {
		var (
			hostname  string
			site      sql.NullString
			count     int64
			storyline sql.NullString
		)
		if withStoryline {
			err = rows.Scan(&hostname, &site, &count, &storyline)
		} else {
			err = rows.Scan(&hostname, &site, &count)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		out = append(out, Row{
			Hostname:     hostname,
			Site:         site.String,
			EventCount:   count,
			StorylineIDs: storyline.String,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate results: %w", err)
	}
	return out, nil
}

func (c *SQLConnector) Close() error {
	return c.db.Close()
}
