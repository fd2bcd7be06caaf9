package store

import (
	"database/sql"
	"errors"
	"time"
)

// ActiveExam is the persisted form of a user's current exam selection.
type ActiveExam struct {
	Selection []byte
	Target    int
	Shortfall int
	CreatedAt time.Time
}

// SaveActiveExam replaces the user's active exam.
func (s *Store) SaveActiveExam(userID int64, e ActiveExam) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO active_exams (user_id, selection, target, shortfall, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET selection = excluded.selection, target = excluded.target,
		 	shortfall = excluded.shortfall, created_at = excluded.created_at`,
		userID, string(e.Selection), e.Target, e.Shortfall, e.CreatedAt,
	)
	return err
}

// LoadActiveExam returns the user's active exam, or nil if none was composed.
func (s *Store) LoadActiveExam(userID int64) (*ActiveExam, error) {
	var e ActiveExam
	var sel string
	err := s.db.QueryRow(
		`SELECT selection, target, shortfall, created_at FROM active_exams WHERE user_id = ?`, userID,
	).Scan(&sel, &e.Target, &e.Shortfall, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Selection = []byte(sel)
	return &e, nil
}

// ClearActiveExam forgets the user's active exam.
func (s *Store) ClearActiveExam(userID int64) error {
	_, err := s.db.Exec(`DELETE FROM active_exams WHERE user_id = ?`, userID)
	return err
}
