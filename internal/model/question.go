package model

import (
	"errors"
	"fmt"
	"strings"
)

// NumOptions is the fixed number of answer options per question.
const NumOptions = 4

// Kind is the authoring tier of a question. It only affects rendering hints.
type Kind string

const (
	KindDirect     Kind = "direct"
	KindIntegrated Kind = "integrated"
	KindCaseStudy  Kind = "case_study"
)

// Kinds lists all kinds in display order.
var Kinds = []Kind{KindDirect, KindIntegrated, KindCaseStudy}

// ParseKind maps generator and form values onto a Kind.
// Unknown values fall back to KindDirect.
func ParseKind(s string) Kind {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "b", "integrated", "tipo b":
		return KindIntegrated
	case "c", "case_study", "case study", "case", "tipo c":
		return KindCaseStudy
	default:
		return KindDirect
	}
}

// Letter returns the single-letter code used in prompts (A, B, C).
func (k Kind) Letter() string {
	switch k {
	case KindIntegrated:
		return "B"
	case KindCaseStudy:
		return "C"
	default:
		return "A"
	}
}

// Question is one multiple-choice exam question.
type Question struct {
	ID           string             `json:"id"`
	Topic        string             `json:"topic"`
	Kind         Kind               `json:"kind"`
	Stem         string             `json:"stem"`
	Options      [NumOptions]string `json:"options"`
	CorrectIndex int                `json:"correct_index"`
	Rationale    string             `json:"rationale"`
	Image        []byte             `json:"image,omitempty"`
}

// ErrTooManyOptions is returned when more than NumOptions non-empty options are supplied.
var ErrTooManyOptions = errors.New("more than 4 options")

// OptionsFrom normalizes a variable-length option list to exactly NumOptions
// entries. Short lists are padded with empty strings; empty entries past the
// fourth are dropped.
func OptionsFrom(opts []string) ([NumOptions]string, error) {
	var out [NumOptions]string
	for i, o := range opts {
		if i < NumOptions {
			out[i] = o
			continue
		}
		if strings.TrimSpace(o) != "" {
			return out, fmt.Errorf("%w: got %d", ErrTooManyOptions, len(opts))
		}
	}
	return out, nil
}

// SetImage attaches a private copy of data. A nil or empty slice clears the image.
func (q *Question) SetImage(data []byte) {
	if len(data) == 0 {
		q.Image = nil
		return
	}
	q.Image = append([]byte(nil), data...)
}

// HasImage reports whether an image is attached.
func (q Question) HasImage() bool {
	return len(q.Image) > 0
}

// Clone returns a deep copy; the image bytes are not shared.
func (q Question) Clone() Question {
	c := q
	c.SetImage(q.Image)
	return c
}

// ValidationError lists the problems found in a single question.
type ValidationError struct {
	ID       string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("question %s invalid: %s", e.ID, strings.Join(e.Problems, "; "))
}

// Validate checks the invariants the selector and renderers rely on.
func (q Question) Validate() error {
	var problems []string
	if strings.TrimSpace(q.Stem) == "" {
		problems = append(problems, "empty stem")
	}
	if q.CorrectIndex < 0 || q.CorrectIndex >= NumOptions {
		problems = append(problems, fmt.Sprintf("correct index %d out of range", q.CorrectIndex))
	} else if strings.TrimSpace(q.Options[q.CorrectIndex]) == "" {
		problems = append(problems, fmt.Sprintf("correct option %d is empty", q.CorrectIndex))
	}
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{ID: q.ID, Problems: problems}
}

// Usable reports whether the question passes Validate.
func (q Question) Usable() bool {
	return q.Validate() == nil
}

// OptionLetter returns the lowercase letter for an option index ("a".."d").
func OptionLetter(i int) string {
	if i < 0 || i >= NumOptions {
		return "?"
	}
	return string(rune('a' + i))
}
