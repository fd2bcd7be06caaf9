package store

import (
	"encoding/json"
	"fmt"

	"github.com/pavelanni/slidequiz/internal/model"
)

// ReplaceQuestions swaps a topic's whole question list in one transaction.
// Questions must already carry their IDs.
func (s *Store) ReplaceQuestions(topicID int64, qs []model.Question) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM questions WHERE topic_id = ?`, topicID); err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		`INSERT INTO questions (id, topic_id, position, kind, stem, options, correct_index, rationale, image)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, q := range qs {
		if q.ID == "" {
			return fmt.Errorf("question %d has no id", i+1)
		}
		opts, err := json.Marshal(q.Options)
		if err != nil {
			return err
		}
		if _, err := stmt.Exec(q.ID, topicID, i, q.Kind, q.Stem, string(opts), q.CorrectIndex, q.Rationale, imageValue(q.Image)); err != nil {
			return fmt.Errorf("insert question %s: %w", q.ID, err)
		}
	}
	return tx.Commit()
}

// UpdateQuestion overwrites one question in place. Its position is kept.
func (s *Store) UpdateQuestion(topicID int64, q model.Question) error {
	opts, err := json.Marshal(q.Options)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE questions SET kind = ?, stem = ?, options = ?, correct_index = ?, rationale = ?, image = ?
		 WHERE topic_id = ? AND id = ?`,
		q.Kind, q.Stem, string(opts), q.CorrectIndex, q.Rationale, imageValue(q.Image), topicID, q.ID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("question %s: %w", q.ID, ErrNotFound)
	}
	return nil
}

// ListQuestions returns a topic's questions in order, with Topic set to the
// topic's name.
func (s *Store) ListQuestions(topicID int64) ([]model.Question, error) {
	rows, err := s.db.Query(
		`SELECT q.id, t.name, q.kind, q.stem, q.options, q.correct_index, q.rationale, q.image
		 FROM questions q JOIN topics t ON t.id = q.topic_id
		 WHERE q.topic_id = ? ORDER BY q.position`, topicID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var qs []model.Question
	for rows.Next() {
		var q model.Question
		var opts string
		if err := rows.Scan(&q.ID, &q.Topic, &q.Kind, &q.Stem, &opts, &q.CorrectIndex, &q.Rationale, &q.Image); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(opts), &q.Options); err != nil {
			return nil, fmt.Errorf("question %s: decode options: %w", q.ID, err)
		}
		if len(q.Image) == 0 {
			q.Image = nil
		}
		qs = append(qs, q)
	}
	return qs, rows.Err()
}

// QuestionCount returns how many questions a user has across all topics.
func (s *Store) QuestionCount(userID int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM questions q JOIN topics t ON t.id = q.topic_id WHERE t.user_id = ?`, userID,
	).Scan(&count)
	return count, err
}

func imageValue(img []byte) any {
	if len(img) == 0 {
		return nil
	}
	return img
}
