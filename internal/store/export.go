package store

import (
	"fmt"
	"time"

	"github.com/pavelanni/slidequiz/internal/model"
)

// ExportBank builds an export of the user's whole bank, optionally limited
// to one topic (topicID > 0).
func (s *Store) ExportBank(userID, topicID int64) (model.BankExport, error) {
	out := model.BankExport{Exported: time.Now().UTC(), Topics: []model.TopicExport{}}

	user, err := s.GetUserByID(userID)
	if err != nil {
		return out, fmt.Errorf("get user %d: %w", userID, err)
	}
	if user != nil {
		out.Owner = user.DisplayName
	}

	topics, err := s.ListTopics(userID)
	if err != nil {
		return out, fmt.Errorf("list topics: %w", err)
	}
	for _, t := range topics {
		if topicID > 0 && t.ID != topicID {
			continue
		}
		qs, err := s.ListQuestions(t.ID)
		if err != nil {
			return out, fmt.Errorf("list questions for %q: %w", t.Name, err)
		}
		te := model.TopicExport{Name: t.Name, Questions: make([]model.QuestionExport, 0, len(qs))}
		for _, q := range qs {
			te.Questions = append(te.Questions, model.ExportQuestion(q))
		}
		out.Topics = append(out.Topics, te)
	}
	return out, nil
}
