// Package intake turns generator output into validated question records.
// Each item is checked on its own, so one malformed question never
// discards the rest of a batch.
package intake

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/pavelanni/slidequiz/internal/model"
)

// ErrMalformed is returned when the payload is not JSON of a usable shape.
var ErrMalformed = errors.New("malformed question payload")

// ItemError describes why one item of a batch was rejected.
type ItemError struct {
	Index int
	Err   error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e ItemError) Unwrap() error { return e.Err }

// Result is the outcome of parsing one payload.
type Result struct {
	Questions []model.Question
	Rejected  []ItemError
}

// Item is the wire shape the generator is asked to produce.
type Item struct {
	Type          string   `json:"type,omitempty"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	AnswerIndex   int      `json:"answer_index"`
	Justification string   `json:"justification,omitempty"`
	Image         []byte   `json:"image,omitempty"`
}

// ItemSchema is the JSON schema every item must satisfy.
var ItemSchema = map[string]any{
	"type":     "object",
	"required": []any{"question", "options", "answer_index"},
	"properties": map[string]any{
		"type":     map[string]any{"type": "string"},
		"question": map[string]any{"type": "string", "minLength": 1},
		"options": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string"},
			"minItems": 1,
		},
		"answer_index":  map[string]any{"type": "integer", "minimum": 0, "maximum": model.NumOptions - 1},
		"justification": map[string]any{"type": "string"},
	},
}

// BatchSchema wraps ItemSchema in the {"questions": [...]} envelope.
var BatchSchema = map[string]any{
	"type":       "object",
	"required":   []any{"questions"},
	"properties": map[string]any{"questions": map[string]any{"type": "array", "items": ItemSchema}},
}

var (
	compileOnce sync.Once
	itemSchema  *jsonschema.Schema
	compileErr  error
)

func compiledItemSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler wants plain decoded JSON, not Go maps with typed values.
		raw, err := json.Marshal(ItemSchema)
		if err != nil {
			compileErr = err
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			compileErr = err
			return
		}
		c := jsonschema.NewCompiler()
		const url = "schema://question-item.json"
		if err := c.AddResource(url, doc); err != nil {
			compileErr = fmt.Errorf("add resource: %w", err)
			return
		}
		itemSchema, compileErr = c.Compile(url)
	})
	return itemSchema, compileErr
}

// Parse decodes a payload holding a "questions" list, a bare list, or a
// single question object. Markdown code fences and surrounding prose are
// tolerated. Accepted questions get the given topic.
func Parse(data []byte, topic string) (Result, error) {
	var res Result
	items, err := decodeItems(data)
	if err != nil {
		return res, err
	}
	schema, err := compiledItemSchema()
	if err != nil {
		return res, fmt.Errorf("compiling item schema: %w", err)
	}

	for i, raw := range items {
		q, err := toQuestion(schema, raw)
		if err != nil {
			res.Rejected = append(res.Rejected, ItemError{Index: i, Err: err})
			continue
		}
		q.Topic = topic
		res.Questions = append(res.Questions, q)
	}
	return res, nil
}

// TopicResult is one topic of a parsed bank file.
type TopicResult struct {
	Name string
	Result
}

// ParseBank reads a bank file. An exported bank ({"topics": [...]}) yields
// one result per topic; any other payload Parse accepts is read as a single
// topic called fallback.
func ParseBank(data []byte, fallback string) ([]TopicResult, error) {
	var bank struct {
		Topics []struct {
			Name      string          `json:"name"`
			Questions json.RawMessage `json:"questions"`
		} `json:"topics"`
	}
	if err := json.Unmarshal([]byte(stripCodeFences(string(data))), &bank); err == nil && len(bank.Topics) > 0 {
		out := make([]TopicResult, 0, len(bank.Topics))
		for i, t := range bank.Topics {
			name := strings.TrimSpace(t.Name)
			if name == "" {
				name = fmt.Sprintf("%s %d", fallback, i+1)
			}
			if len(t.Questions) == 0 || string(t.Questions) == "null" {
				out = append(out, TopicResult{Name: name})
				continue
			}
			res, err := Parse(t.Questions, name)
			if err != nil {
				return nil, fmt.Errorf("topic %q: %w", name, err)
			}
			out = append(out, TopicResult{Name: name, Result: res})
		}
		return out, nil
	}
	res, err := Parse(data, fallback)
	if err != nil {
		return nil, err
	}
	return []TopicResult{{Name: fallback, Result: res}}, nil
}

func decodeItems(data []byte) ([]any, error) {
	s := stripCodeFences(string(data))
	var doc any
	if err := json.Unmarshal([]byte(s), &doc); err != nil {
		inner, ok := outermostJSON(s)
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := json.Unmarshal([]byte(inner), &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	switch v := doc.(type) {
	case []any:
		return v, nil
	case map[string]any:
		if qs, ok := v["questions"]; ok {
			list, ok := qs.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: \"questions\" is not a list", ErrMalformed)
			}
			return list, nil
		}
		return []any{v}, nil
	default:
		return nil, fmt.Errorf("%w: unexpected %T", ErrMalformed, doc)
	}
}

func toQuestion(schema *jsonschema.Schema, raw any) (model.Question, error) {
	if err := schema.Validate(raw); err != nil {
		return model.Question{}, fmt.Errorf("schema validation failed: %w", err)
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return model.Question{}, err
	}
	var it Item
	if err := json.Unmarshal(b, &it); err != nil {
		return model.Question{}, err
	}
	return it.ToQuestion()
}

// ToQuestion normalizes the item into a model.Question.
func (it Item) ToQuestion() (model.Question, error) {
	trimmed := make([]string, len(it.Options))
	for i, o := range it.Options {
		trimmed[i] = strings.TrimSpace(o)
	}
	opts, err := model.OptionsFrom(trimmed)
	if err != nil {
		return model.Question{}, err
	}
	q := model.Question{
		Kind:         model.ParseKind(it.Type),
		Stem:         strings.TrimSpace(it.Question),
		Options:      opts,
		CorrectIndex: it.AnswerIndex,
		Rationale:    strings.TrimSpace(it.Justification),
	}
	q.SetImage(it.Image)
	if err := q.Validate(); err != nil {
		return model.Question{}, err
	}
	return q, nil
}

// FromQuestion converts a record back to the wire shape.
func FromQuestion(q model.Question) Item {
	return Item{
		Type:          q.Kind.Letter(),
		Question:      q.Stem,
		Options:       q.Options[:],
		AnswerIndex:   q.CorrectIndex,
		Justification: q.Rationale,
		Image:         q.Image,
	}
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```json"))
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
	}
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(strings.TrimSuffix(s, "```"))
	}
	return s
}

// outermostJSON returns the span from the first opening bracket to the
// matching last closing one.
func outermostJSON(s string) (string, bool) {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return "", false
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end <= start {
		return "", false
	}
	return s[start : end+1], true
}
