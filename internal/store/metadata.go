package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pavelanni/slidequiz/internal/model"
)

const sheetHeaderKey = "sheet_header"

// SetMetadata upserts a per-user key-value pair.
func (s *Store) SetMetadata(userID int64, key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO exam_metadata (user_id, key, value) VALUES (?, ?, ?)
		 ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value`,
		userID, key, value,
	)
	return err
}

// GetMetadata returns the value for a key.
// Returns empty string and nil error if the key is missing.
func (s *Store) GetMetadata(userID int64, key string) (string, error) {
	var value string
	err := s.db.QueryRow(
		`SELECT value FROM exam_metadata WHERE user_id = ? AND key = ?`, userID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

// SetSheetHeader stores the header printed on the user's exams and keys.
func (s *Store) SetSheetHeader(userID int64, h model.SheetHeader) error {
	data, err := json.Marshal(h)
	if err != nil {
		return err
	}
	return s.SetMetadata(userID, sheetHeaderKey, string(data))
}

// GetSheetHeader returns the user's sheet header, or the default one if
// none was saved.
func (s *Store) GetSheetHeader(userID int64) (model.SheetHeader, error) {
	raw, err := s.GetMetadata(userID, sheetHeaderKey)
	if err != nil {
		return model.SheetHeader{}, err
	}
	if raw == "" {
		return model.DefaultSheetHeader(), nil
	}
	var h model.SheetHeader
	if err := json.Unmarshal([]byte(raw), &h); err != nil {
		return model.SheetHeader{}, fmt.Errorf("decode sheet header: %w", err)
	}
	return h, nil
}
