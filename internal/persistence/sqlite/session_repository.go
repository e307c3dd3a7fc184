package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/example/mindfolk/internal/persistence"
)

const sessionColumns = `id, client_id, therapist_id, type, status, scheduled_at, duration_minutes, created_at, updated_at`

// SessionRepository implements persistence.SessionRepository using SQLite
type SessionRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewSessionRepository creates a new SQLite session repository
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

// CreateSession stores a new booked session.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	if strings.TrimSpace(session.ID) == "" {
		return persistence.ErrConstraintViolation
	}

	const query = `INSERT INTO sessions (` + sessionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, query,
			session.ID,
			session.ClientID,
			session.TherapistID,
			session.Type,
			session.Status,
			formatTime(session.ScheduledAt),
			session.DurationMinutes,
			formatTime(session.CreatedAt),
			formatTime(session.UpdatedAt),
		)
		return err
	})
}

// UpdateSession replaces the mutable fields of an existing session.
func (r *SessionRepository) UpdateSession(ctx context.Context, session persistence.Session) error {
	const query = `
		UPDATE sessions
		SET type = ?, status = ?, scheduled_at = ?, duration_minutes = ?, updated_at = ?
		WHERE id = ?
	`
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, query,
			session.Type,
			session.Status,
			formatTime(session.ScheduledAt),
			session.DurationMinutes,
			formatTime(session.UpdatedAt),
			session.ID,
		)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// GetSession retrieves a session by ID.
func (r *SessionRepository) GetSession(ctx context.Context, id string) (persistence.Session, error) {
	const query = `SELECT ` + sessionColumns + ` FROM sessions WHERE id = ?`
	session, err := scanSession(r.pool.DB().QueryRowContext(ctx, query, id))
	if err != nil {
		return persistence.Session{}, r.mapper.MapError(err)
	}
	return session, nil
}

// ListSessions returns sessions matching filter ordered by start time.
func (r *SessionRepository) ListSessions(ctx context.Context, filter persistence.SessionFilter) ([]persistence.Session, error) {
	query, args := buildSessionQuery(filter)
	rows, err := r.pool.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var sessions []persistence.Session
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return sessions, nil
}

func buildSessionQuery(filter persistence.SessionFilter) (string, []any) {
	var (
		where []string
		args  []any
	)
	if filter.ParticipantID != "" {
		where = append(where, "(client_id = ? OR therapist_id = ?)")
		args = append(args, filter.ParticipantID, filter.ParticipantID)
	}
	if len(filter.Statuses) > 0 {
		placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(filter.Statuses)), ", ")
		where = append(where, "status IN ("+placeholders+")")
		for _, status := range filter.Statuses {
			args = append(args, status)
		}
	}
	if filter.ScheduledAfter != nil {
		where = append(where, "scheduled_at >= ?")
		args = append(args, formatTime(*filter.ScheduledAfter))
	}
	if filter.ScheduledBefore != nil {
		where = append(where, "scheduled_at <= ?")
		args = append(args, formatTime(*filter.ScheduledBefore))
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	return query + " ORDER BY scheduled_at, id", args
}

func scanSession(row rowScanner) (persistence.Session, error) {
	var (
		session                           persistence.Session
		scheduledAt, createdAt, updatedAt string
	)
	if err := row.Scan(
		&session.ID,
		&session.ClientID,
		&session.TherapistID,
		&session.Type,
		&session.Status,
		&scheduledAt,
		&session.DurationMinutes,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Session{}, err
	}

	var err error
	if session.ScheduledAt, err = parseTime(scheduledAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse scheduled_at: %w", err)
	}
	if session.CreatedAt, err = parseTime(createdAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if session.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return persistence.Session{}, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return session, nil
}
