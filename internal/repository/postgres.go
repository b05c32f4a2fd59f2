package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hunthawk-systems/hunthawk/internal/models"
)

const queryTimeout = 5 * time.Second

// PostgresRepository implements Repository on a pgx connection pool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(ctx context.Context, connString string) (*PostgresRepository, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 5 * time.Minute
	config.MaxConnIdleTime = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) Close() {
	r.pool.Close()
}

const analyticColumns = `
	id, name, description, status, confidence, relevance, connector, query,
	create_rule, run_daily, run_daily_lock,
	anomaly_threshold_count, anomaly_threshold_endpoints, maxhosts_count,
	query_error, query_error_message, query_error_date,
	next_review_date, last_time_seen, pub_date, updated_at`

func scanAnalytic(row pgx.Row) (*models.Analytic, error) {
	var a models.Analytic
	err := row.Scan(
		&a.ID, &a.Name, &a.Description, &a.Status, &a.Confidence, &a.Relevance,
		&a.Connector, &a.Query,
		&a.CreateRule, &a.RunDaily, &a.RunDailyLock,
		&a.AnomalyThresholdCount, &a.AnomalyThresholdEndpoints, &a.MaxHostsCount,
		&a.QueryError, &a.QueryErrorMessage, &a.QueryErrorDate,
		&a.NextReviewDate, &a.LastTimeSeen, &a.PubDate, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresRepository) CreateAnalytic(ctx context.Context, a *models.Analytic) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := a.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO analytics
		(name, description, status, confidence, relevance, connector, query,
		 create_rule, run_daily, run_daily_lock,
		 anomaly_threshold_count, anomaly_threshold_endpoints, maxhosts_count,
		 query_error, query_error_message, query_error_date,
		 next_review_date, last_time_seen, pub_date, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, NOW(), NOW())
		RETURNING id, pub_date, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		a.Name, a.Description, a.Status, a.Confidence, a.Relevance, a.Connector, a.Query,
		a.CreateRule, a.RunDaily, a.RunDailyLock,
		a.AnomalyThresholdCount, a.AnomalyThresholdEndpoints, a.MaxHostsCount,
		a.QueryError, a.QueryErrorMessage, a.QueryErrorDate,
		a.NextReviewDate, a.LastTimeSeen,
	).Scan(&a.ID, &a.PubDate, &a.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAnalyticExists
		}
		return fmt.Errorf("failed to create analytic: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetAnalytic(ctx context.Context, id int64) (*models.Analytic, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	a, err := scanAnalytic(r.pool.QueryRow(ctx,
		`SELECT `+analyticColumns+` FROM analytics WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalyticNotFound
		}
		return nil, fmt.Errorf("failed to get analytic: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) GetAnalyticByName(ctx context.Context, name string) (*models.Analytic, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	a, err := scanAnalytic(r.pool.QueryRow(ctx,
		`SELECT `+analyticColumns+` FROM analytics WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAnalyticNotFound
		}
		return nil, fmt.Errorf("failed to get analytic: %w", err)
	}
	return a, nil
}

func (r *PostgresRepository) UpdateAnalytic(ctx context.Context, a *models.Analytic) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	if err := a.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE analytics SET
			name = $2, description = $3, status = $4, confidence = $5, relevance = $6,
			connector = $7, query = $8,
			create_rule = $9, run_daily = $10, run_daily_lock = $11,
			anomaly_threshold_count = $12, anomaly_threshold_endpoints = $13, maxhosts_count = $14,
			query_error = $15, query_error_message = $16, query_error_date = $17,
			next_review_date = $18, last_time_seen = $19, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query,
		a.ID, a.Name, a.Description, a.Status, a.Confidence, a.Relevance,
		a.Connector, a.Query,
		a.CreateRule, a.RunDaily, a.RunDailyLock,
		a.AnomalyThresholdCount, a.AnomalyThresholdEndpoints, a.MaxHostsCount,
		a.QueryError, a.QueryErrorMessage, a.QueryErrorDate,
		a.NextReviewDate, a.LastTimeSeen,
	)
	if err != nil {
		return fmt.Errorf("failed to update analytic: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAnalyticNotFound
	}

	return nil
}

func (r *PostgresRepository) DeleteAnalytic(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.pool.Exec(ctx, `DELETE FROM analytics WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete analytic: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAnalyticNotFound
	}
	return nil
}

func (r *PostgresRepository) ListEligibleAnalytics(ctx context.Context) ([]*models.Analytic, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT `+analyticColumns+` FROM analytics
		 WHERE run_daily = TRUE AND status != $1 ORDER BY id`, models.StatusArchived)
	if err != nil {
		return nil, fmt.Errorf("failed to list eligible analytics: %w", err)
	}
	defer rows.Close()

	return collectAnalytics(rows)
}

func (r *PostgresRepository) CountEligibleAnalytics(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM analytics WHERE run_daily = TRUE AND status != $1`,
		models.StatusArchived).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count eligible analytics: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) CountActiveAnalytics(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM analytics WHERE status != $1`, models.StatusArchived).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count analytics: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) ListAnalyticsDueForReview(ctx context.Context, asOf time.Time) ([]*models.Analytic, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT `+analyticColumns+` FROM analytics
		 WHERE run_daily_lock = FALSE AND status = $1 AND next_review_date <= $2
		 ORDER BY id`, models.StatusPublished, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list analytics due for review: %w", err)
	}
	defer rows.Close()

	return collectAnalytics(rows)
}

func collectAnalytics(rows pgx.Rows) ([]*models.Analytic, error) {
	var analytics []*models.Analytic
	for rows.Next() {
		a, err := scanAnalytic(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan analytic: %w", err)
		}
		analytics = append(analytics, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read analytics: %w", err)
	}
	return analytics, nil
}

func (r *PostgresRepository) CreateCampaign(ctx context.Context, c *models.Campaign) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.pool.QueryRow(ctx,
		`INSERT INTO campaigns (name, description, date_start, nb_queries, nb_analytics, nb_endpoints)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		c.Name, c.Description, c.DateStart, c.NbQueries, c.NbAnalytics, c.NbEndpoints,
	).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("failed to create campaign: %w", err)
	}
	return nil
}

func (r *PostgresRepository) CloseCampaign(ctx context.Context, c *models.Campaign) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.pool.Exec(ctx,
		`UPDATE campaigns SET date_end = $2, nb_queries = $3, nb_analytics = $4, nb_endpoints = $5
		 WHERE id = $1`,
		c.ID, c.DateEnd, c.NbQueries, c.NbAnalytics, c.NbEndpoints,
	)
	if err != nil {
		return fmt.Errorf("failed to close campaign: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteCampaignsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.pool.Exec(ctx,
		`DELETE FROM campaigns WHERE date_start < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge campaigns: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *PostgresRepository) CreateSnapshot(ctx context.Context, s *models.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.pool.QueryRow(ctx,
		`INSERT INTO snapshots
		 (campaign_id, analytic_id, date, runtime, hits_count, hits_endpoints,
		  zscore_count, zscore_endpoints, anomaly_alert_count, anomaly_alert_endpoints)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		s.CampaignID, s.AnalyticID, s.Date, s.Runtime, s.HitsCount, s.HitsEndpoints,
		s.ZscoreCount, s.ZscoreEndpoints, s.AnomalyAlertCount, s.AnomalyAlertEndpoints,
	).Scan(&s.ID)
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	return nil
}

func (r *PostgresRepository) UpdateSnapshotStats(ctx context.Context, s *models.Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	// No rows-affected check: the guard may have deleted the snapshot between
	// creation and scoring, and that is not an error.
	_, err := r.pool.Exec(ctx,
		`UPDATE snapshots SET
			hits_count = $2, hits_endpoints = $3,
			zscore_count = $4, zscore_endpoints = $5,
			anomaly_alert_count = $6, anomaly_alert_endpoints = $7
		 WHERE id = $1`,
		s.ID, s.HitsCount, s.HitsEndpoints,
		s.ZscoreCount, s.ZscoreEndpoints, s.AnomalyAlertCount, s.AnomalyAlertEndpoints,
	)
	if err != nil {
		return fmt.Errorf("failed to update snapshot stats: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SnapshotSeries(ctx context.Context, analyticID int64) ([]float64, []float64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.pool.Query(ctx,
		`SELECT hits_count, hits_endpoints FROM snapshots
		 WHERE analytic_id = $1 ORDER BY id`, analyticID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read snapshot series: %w", err)
	}
	defer rows.Close()

	var counts, endpoints []float64
	for rows.Next() {
		var c int64
		var e int
		if err := rows.Scan(&c, &e); err != nil {
			return nil, nil, fmt.Errorf("failed to scan snapshot series: %w", err)
		}
		counts = append(counts, float64(c))
		endpoints = append(endpoints, float64(e))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read snapshot series: %w", err)
	}
	return counts, endpoints, nil
}

func (r *PostgresRepository) DeleteSnapshotsForAnalytic(ctx context.Context, analyticID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.pool.Exec(ctx,
		`DELETE FROM snapshots WHERE analytic_id = $1`, analyticID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete snapshots: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *PostgresRepository) DeleteSnapshotsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	result, err := r.pool.Exec(ctx,
		`DELETE FROM snapshots WHERE date < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge snapshots: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *PostgresRepository) CreateEndpoints(ctx context.Context, endpoints []*models.Endpoint) error {
	if len(endpoints) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	batch := &pgx.Batch{}
	for _, e := range endpoints {
		batch.Queue(
			`INSERT INTO endpoints (snapshot_id, hostname, site, storylineid)
			 VALUES ($1, $2, $3, $4)`,
			e.SnapshotID, e.Hostname, e.Site, e.Storyline)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()

	for range endpoints {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to create endpoints: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) CountDistinctEndpoints(ctx context.Context, campaignID int64) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT e.hostname)
		 FROM endpoints e
		 JOIN snapshots s ON s.id = e.snapshot_id
		 WHERE s.campaign_id = $1`, campaignID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count campaign endpoints: %w", err)
	}
	return n, nil
}

func isUniqueViolation(err error) bool {
	// 23505 is the Postgres unique_violation code.
	type sqlState interface{ SQLState() string }
	var state sqlState
	return errors.As(err, &state) && state.SQLState() == "23505"
}
