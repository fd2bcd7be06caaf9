package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/pavelanni/slidequiz/internal/model"
)

const topicColumns = `t.id, t.user_id, t.name, t.position, t.source_hash, t.source_text, t.created_at,
	(SELECT COUNT(*) FROM topic_images i WHERE i.topic_id = t.id)`

func scanTopic(row rowScanner) (*model.Topic, error) {
	var t model.Topic
	err := row.Scan(&t.ID, &t.UserID, &t.Name, &t.Position, &t.SourceHash, &t.SourceText, &t.CreatedAt, &t.ImageCount)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// SaveTopic creates a topic or, when the user already has one with the same
// name, replaces its source text and hash. The topic keeps its position.
func (s *Store) SaveTopic(userID int64, name, sourceHash, sourceText string) (*model.Topic, error) {
	_, err := s.db.Exec(
		`INSERT INTO topics (user_id, name, position, source_hash, source_text, created_at)
		 VALUES (?, ?, (SELECT COALESCE(MAX(position), 0) + 1 FROM topics WHERE user_id = ?), ?, ?, ?)
		 ON CONFLICT(user_id, name) DO UPDATE SET source_hash = excluded.source_hash, source_text = excluded.source_text`,
		userID, name, userID, sourceHash, sourceText, time.Now(),
	)
	if err != nil {
		return nil, fmt.Errorf("save topic %q: %w", name, err)
	}
	t, err := s.GetTopicByName(userID, name)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, fmt.Errorf("save topic %q: %w", name, ErrNotFound)
	}
	return t, nil
}

// GetTopic returns one of the user's topics, or nil if there is none.
func (s *Store) GetTopic(userID, id int64) (*model.Topic, error) {
	t, err := scanTopic(s.db.QueryRow(
		`SELECT `+topicColumns+` FROM topics t WHERE t.user_id = ? AND t.id = ?`, userID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// GetTopicByName returns the user's topic with the given name, or nil.
func (s *Store) GetTopicByName(userID int64, name string) (*model.Topic, error) {
	t, err := scanTopic(s.db.QueryRow(
		`SELECT `+topicColumns+` FROM topics t WHERE t.user_id = ? AND t.name = ?`, userID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// FindTopicByHash returns the user's topic built from a source with the
// given hash, or nil. Used to detect a PDF uploaded twice under another name.
func (s *Store) FindTopicByHash(userID int64, hash string) (*model.Topic, error) {
	if hash == "" {
		return nil, nil
	}
	t, err := scanTopic(s.db.QueryRow(
		`SELECT `+topicColumns+` FROM topics t WHERE t.user_id = ? AND t.source_hash = ? ORDER BY t.position LIMIT 1`,
		userID, hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return t, err
}

// ListTopics returns the user's topics in upload order.
func (s *Store) ListTopics(userID int64) ([]model.Topic, error) {
	rows, err := s.db.Query(
		`SELECT `+topicColumns+` FROM topics t WHERE t.user_id = ? ORDER BY t.position, t.id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var topics []model.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, *t)
	}
	return topics, rows.Err()
}

// DeleteTopic removes a topic with its questions and images.
func (s *Store) DeleteTopic(userID, id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM topics WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("topic %d: %w", id, ErrNotFound)
	}
	if _, err := tx.Exec(`DELETE FROM questions WHERE topic_id = ?`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM topic_images WHERE topic_id = ?`, id); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceTopicImages stores the images extracted from a topic's slides.
func (s *Store) ReplaceTopicImages(topicID int64, images [][]byte) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM topic_images WHERE topic_id = ?`, topicID); err != nil {
		return err
	}
	for i, img := range images {
		if _, err := tx.Exec(
			`INSERT INTO topic_images (topic_id, position, data) VALUES (?, ?, ?)`,
			topicID, i, img,
		); err != nil {
			return fmt.Errorf("insert image %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// TopicImages returns a topic's images in slide order.
func (s *Store) TopicImages(topicID int64) ([][]byte, error) {
	rows, err := s.db.Query(`SELECT data FROM topic_images WHERE topic_id = ? ORDER BY position`, topicID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var images [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		images = append(images, data)
	}
	return images, rows.Err()
}
