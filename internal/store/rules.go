package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const rulesVersionKey = "pose_rules_version"

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// RuleDocument is the stored override document for one pose: a flat map of
// threshold names and reserved timing fields to numbers.
type RuleDocument struct {
	Pose      string
	Fields    map[string]float64
	UpdatedAt time.Time
}

// RuleRepository provides access to pose rule documents.
type RuleRepository struct {
	db *sql.DB
}

// Rules returns the rule repository for this store.
func (s *Store) Rules() *RuleRepository {
	return &RuleRepository{db: s.db}
}

// Get retrieves the rule document for pose.
func (r *RuleRepository) Get(pose string) (*RuleDocument, error) {
	rows, err := r.db.Query(
		`SELECT field, value, updated_at FROM pose_rules WHERE pose = ?`,
		pose,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	doc := &RuleDocument{Pose: pose, Fields: make(map[string]float64)}
	var latest int64
	for rows.Next() {
		var field string
		var value float64
		var updated int64
		if err := rows.Scan(&field, &value, &updated); err != nil {
			return nil, err
		}
		doc.Fields[field] = value
		if updated > latest {
			latest = updated
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(doc.Fields) == 0 {
		return nil, ErrNotFound
	}
	doc.UpdatedAt = time.UnixMilli(latest)
	return doc, nil
}

// Set upserts every field of the document for pose in one transaction.
// Fields not named keep their stored values.
func (r *RuleRepository) Set(pose string, fields map[string]float64) error {
	if len(fields) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO pose_rules (pose, field, value, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(pose, field) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
	)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	now, err := nextVersion(tx)
	if err != nil {
		return err
	}

	for field, value := range fields {
		if _, err := stmt.Exec(pose, field, value, now); err != nil {
			return fmt.Errorf("upsert %s.%s: %w", pose, field, err)
		}
	}

	return tx.Commit()
}

// nextVersion returns a unix-millisecond version strictly greater than any
// issued before, even across deletes, so pollers never miss a write landing
// in the same millisecond as the previous one.
func nextVersion(tx *sql.Tx) (int64, error) {
	var last int64
	err := tx.QueryRow(
		`SELECT CAST(value AS INTEGER) FROM settings WHERE key = ?`, rulesVersionKey,
	).Scan(&last)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("read rules version: %w", err)
	}

	now := time.Now().UnixMilli()
	if now <= last {
		now = last + 1
	}

	if _, err := tx.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		rulesVersionKey, strconv.FormatInt(now, 10),
	); err != nil {
		return 0, fmt.Errorf("write rules version: %w", err)
	}
	return now, nil
}

// Delete removes the whole document for pose.
func (r *RuleRepository) Delete(pose string) error {
	result, err := r.db.Exec(`DELETE FROM pose_rules WHERE pose = ?`, pose)
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

// Poses lists the poses that have a stored document.
func (r *RuleRepository) Poses() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT pose FROM pose_rules ORDER BY pose`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var poses []string
	for rows.Next() {
		var pose string
		if err := rows.Scan(&pose); err != nil {
			return nil, err
		}
		poses = append(poses, pose)
	}

	return poses, rows.Err()
}

// Versions returns the latest update time in unix milliseconds per pose.
// Pollers compare it against what they last applied.
func (r *RuleRepository) Versions() (map[string]int64, error) {
	rows, err := r.db.Query(`SELECT pose, MAX(updated_at) FROM pose_rules GROUP BY pose`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	versions := make(map[string]int64)
	for rows.Next() {
		var pose string
		var version int64
		if err := rows.Scan(&pose, &version); err != nil {
			return nil, err
		}
		versions[pose] = version
	}

	return versions, rows.Err()
}
