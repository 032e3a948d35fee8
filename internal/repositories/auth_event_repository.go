package repositories

import (
	"database/sql"
	"fmt"
	"time"

	"lostandfound/internal/models"
)

// AuthEventRepository is insert-only: the table has no update or delete path,
// corrections are new events.
type AuthEventRepository interface {
	Insert(e *models.AuthEvent) error
	List(f models.AuthEventFilter) ([]*models.AuthEvent, error)
	Stats(f models.AuthEventFilter) (*models.AuthEventStats, error)

	CountSince(since time.Time, onlyFailed bool) (int, error)
	CountFailures(identifier, eventType string, since time.Time) (int, error)
	FailureCounts(eventType string, since time.Time, min int) ([]models.SuspiciousIdentifier, error)
}

type authEventRepository struct {
	DB *sql.DB
}

func NewAuthEventRepository(db *sql.DB) AuthEventRepository {
	return &authEventRepository{DB: db}
}

func (r *authEventRepository) Insert(e *models.AuthEvent) error {
	const q = `
		INSERT INTO auth_events (type, identifier, success, detail, alert_flag, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	if err := r.DB.QueryRow(q, e.Type, e.Identifier, e.Success, e.Detail, e.AlertFlag, e.CreatedAt).Scan(&e.ID); err != nil {
		return fmt.Errorf("auth_event insert: %w", err)
	}
	return nil
}

func filterWhere(f models.AuthEventFilter) (string, []interface{}) {
	where := ` WHERE 1=1`
	args := []interface{}{}
	if f.Type != "" {
		args = append(args, f.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.Identifier != "" {
		args = append(args, "%"+f.Identifier+"%")
		where += fmt.Sprintf(" AND identifier LIKE $%d", len(args))
	}
	return where, args
}

func (r *authEventRepository) List(f models.AuthEventFilter) ([]*models.AuthEvent, error) {
	where, args := filterWhere(f)
	// serial id is the tiebreaker: wall clock alone cannot order same-stamp events
	q := `
		SELECT id, type, identifier, success, detail, alert_flag, created_at
		FROM auth_events` + where + fmt.Sprintf(`
		ORDER BY created_at DESC, id DESC
		LIMIT $%d`, len(args)+1)
	args = append(args, f.Limit)

	rows, err := r.DB.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("auth_event list: %w", err)
	}
	defer rows.Close()

	var events []*models.AuthEvent
	for rows.Next() {
		var e models.AuthEvent
		if err := rows.Scan(&e.ID, &e.Type, &e.Identifier, &e.Success, &e.Detail, &e.AlertFlag, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("auth_event scan: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func (r *authEventRepository) Stats(f models.AuthEventFilter) (*models.AuthEventStats, error) {
	where, args := filterWhere(f)

	totals := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE success),
		       COUNT(*) FILTER (WHERE NOT success)
		FROM auth_events` + where
	stats := &models.AuthEventStats{ByType: map[string]int{}}
	if err := r.DB.QueryRow(totals, args...).Scan(&stats.Total, &stats.Success, &stats.Failed); err != nil {
		return nil, fmt.Errorf("auth_event stats totals: %w", err)
	}

	byType := `
		SELECT type, COUNT(*)
		FROM auth_events` + where + `
		GROUP BY type`
	rows, err := r.DB.Query(byType, args...)
	if err != nil {
		return nil, fmt.Errorf("auth_event stats by type: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t string
		var c int
		if err := rows.Scan(&t, &c); err != nil {
			return nil, fmt.Errorf("auth_event stats scan: %w", err)
		}
		stats.ByType[t] = c
	}
	return stats, rows.Err()
}

func (r *authEventRepository) CountSince(since time.Time, onlyFailed bool) (int, error) {
	q := `SELECT COUNT(*) FROM auth_events WHERE created_at >= $1`
	if onlyFailed {
		q += ` AND success = FALSE`
	}
	var c int
	if err := r.DB.QueryRow(q, since).Scan(&c); err != nil {
		return 0, fmt.Errorf("auth_event count since: %w", err)
	}
	return c, nil
}

func (r *authEventRepository) CountFailures(identifier, eventType string, since time.Time) (int, error) {
	const q = `
		SELECT COUNT(*)
		FROM auth_events
		WHERE identifier = $1 AND type = $2 AND success = FALSE AND created_at >= $3
	`
	var c int
	if err := r.DB.QueryRow(q, identifier, eventType, since).Scan(&c); err != nil {
		return 0, fmt.Errorf("auth_event count failures: %w", err)
	}
	return c, nil
}

func (r *authEventRepository) FailureCounts(eventType string, since time.Time, min int) ([]models.SuspiciousIdentifier, error) {
	const q = `
		SELECT identifier, COUNT(*) AS failures
		FROM auth_events
		WHERE type = $1 AND success = FALSE AND created_at >= $2
		GROUP BY identifier
		HAVING COUNT(*) >= $3
		ORDER BY failures DESC, identifier
	`
	rows, err := r.DB.Query(q, eventType, since, min)
	if err != nil {
		return nil, fmt.Errorf("auth_event failure counts: %w", err)
	}
	defer rows.Close()

	var out []models.SuspiciousIdentifier
	for rows.Next() {
		var s models.SuspiciousIdentifier
		if err := rows.Scan(&s.Identifier, &s.FailureCount); err != nil {
			return nil, fmt.Errorf("auth_event failure counts scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
