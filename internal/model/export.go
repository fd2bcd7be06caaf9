package model

import "time"

// BankExport is the top-level JSON structure for question bank export.
// Question items use the same field names the generator emits, so an
// exported bank can be fed back through intake.
type BankExport struct {
	Owner    string        `json:"owner,omitempty"`
	Exported time.Time     `json:"exported"`
	Topics   []TopicExport `json:"topics"`
}

// TopicExport holds one topic's questions for export.
type TopicExport struct {
	Name      string           `json:"name"`
	Questions []QuestionExport `json:"questions"`
}

// QuestionExport is a single question in generator-compatible shape.
type QuestionExport struct {
	Type          string   `json:"type"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	AnswerIndex   int      `json:"answer_index"`
	Justification string   `json:"justification,omitempty"`
	Image         []byte   `json:"image,omitempty"`
}

// ExportQuestion converts a question to its export shape.
func ExportQuestion(q Question) QuestionExport {
	return QuestionExport{
		Type:          q.Kind.Letter(),
		Question:      q.Stem,
		Options:       q.Options[:],
		AnswerIndex:   q.CorrectIndex,
		Justification: q.Rationale,
		Image:         q.Image,
	}
}
