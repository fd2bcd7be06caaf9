package llm

import (
	"context"
	"encoding/json"
	"sync"
)

// MockResponse is a canned reply for MockProvider.
type MockResponse struct {
	Content json.RawMessage
	Err     error
}

// MockProvider returns canned replies in FIFO order and records requests.
// With an empty queue it returns Fallback, or fails when Fallback is nil.
type MockProvider struct {
	mu        sync.Mutex
	responses []MockResponse
	Fallback  json.RawMessage
	Calls     []Request
}

// NewMockProvider creates a MockProvider with the given replies.
func NewMockProvider(responses ...MockResponse) *MockProvider {
	return &MockProvider{responses: responses}
}

func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, req)

	var next MockResponse
	switch {
	case len(m.responses) > 0:
		next = m.responses[0]
		m.responses = m.responses[1:]
	case m.Fallback != nil:
		next = MockResponse{Content: m.Fallback}
	default:
		return nil, &ErrProviderUnavailable{}
	}
	if next.Err != nil {
		return nil, next.Err
	}
	return &Response{Content: next.Content, Model: "mock", StopReason: "end"}, nil
}

func (m *MockProvider) ModelID() string {
	return "mock"
}

// CallCount returns the number of Generate calls made.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// DemoQuestions is the fallback payload of the "mock" provider, so the
// server can be tried without an API key.
var DemoQuestions = json.RawMessage(`{"questions": [
  {"type": "A", "question": "¿Cuál es la causa más frecuente de hemorragia posparto precoz?", "options": ["Atonía uterina", "Retención de restos placentarios", "Desgarros del canal del parto", "Coagulopatía"], "answer_index": 0, "justification": "La atonía uterina explica la mayoría de las hemorragias posparto precoces."},
  {"type": "B", "question": "¿Qué fármaco es de elección para prevenir la eclampsia en una preeclampsia grave?", "options": ["Labetalol", "Sulfato de magnesio", "Diazepam", "Nifedipino"], "answer_index": 1, "justification": "El sulfato de magnesio es el anticonvulsivante de elección."},
  {"type": "C", "question": "Gestante de 34 semanas con TA 165/112 y cefalea intensa. ¿Cuál es la actitud inicial?", "options": ["Alta con control ambulatorio", "Ingreso, antihipertensivo y sulfato de magnesio", "Cesárea inmediata sin estabilizar", "Reposo domiciliario"], "answer_index": 1, "justification": "Primero se estabiliza a la paciente y se previene la convulsión."}
]}`)
