package store

import (
	"database/sql"
	"errors"
	"time"
)

// SessionStatus is the outcome of an exercise attempt.
type SessionStatus string

const (
	// SessionActive is an attempt still receiving ticks.
	SessionActive SessionStatus = "active"
	// SessionCompleted is an attempt that reached its hold duration.
	SessionCompleted SessionStatus = "completed"
	// SessionAbandoned is an attempt stopped or switched before completion.
	SessionAbandoned SessionStatus = "abandoned"
)

// Session is one exercise attempt.
type Session struct {
	ID        string        `json:"id"`
	Pose      string        `json:"pose"`
	Status    SessionStatus `json:"status"`
	TargetMs  int64         `json:"targetMs"`
	HeldMs    int64         `json:"heldMs"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   *time.Time    `json:"endedAt,omitempty"`
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

// Create inserts a new active session.
func (r *SessionRepository) Create(sess *Session) error {
	if sess.StartedAt.IsZero() {
		sess.StartedAt = time.Now()
	}
	if sess.Status == "" {
		sess.Status = SessionActive
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (id, pose, status, target_ms, held_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.Pose, string(sess.Status), sess.TargetMs, sess.HeldMs, sess.StartedAt,
	)
	return err
}

// Finish records the outcome of an active session. Finishing a session that
// already ended returns ErrNotFound.
func (r *SessionRepository) Finish(id string, status SessionStatus, heldMs int64) error {
	result, err := r.db.Exec(
		`UPDATE sessions SET status = ?, held_ms = ?, ended_at = ?
		 WHERE id = ? AND status = ?`,
		string(status), heldMs, time.Now(), id, string(SessionActive),
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotFound
	}

	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	row := r.db.QueryRow(
		`SELECT id, pose, status, target_ms, held_ms, started_at, ended_at
		 FROM sessions WHERE id = ?`,
		id,
	)

	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sess, nil
}

// List retrieves the most recent sessions, newest first. An empty pose lists
// every pose; limit <= 0 means no limit.
func (r *SessionRepository) List(pose string, limit int) ([]*Session, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(
		`SELECT id, pose, status, target_ms, held_ms, started_at, ended_at
		 FROM sessions WHERE (? = '' OR pose = ?)
		 ORDER BY started_at DESC LIMIT ?`,
		pose, pose, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

// AbandonActive marks every still-active session abandoned, e.g. after a
// crash left one open. It returns the number of sessions updated.
func (r *SessionRepository) AbandonActive() (int64, error) {
	result, err := r.db.Exec(
		`UPDATE sessions SET status = ?, ended_at = ? WHERE status = ?`,
		string(SessionAbandoned), time.Now(), string(SessionActive),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	sess := &Session{}
	var status string
	var ended sql.NullTime

	err := row.Scan(&sess.ID, &sess.Pose, &status, &sess.TargetMs, &sess.HeldMs, &sess.StartedAt, &ended)
	if err != nil {
		return nil, err
	}

	sess.Status = SessionStatus(status)
	if ended.Valid {
		t := ended.Time
		sess.EndedAt = &t
	}
	return sess, nil
}
