// Package collab holds the narrow interfaces spec.md §6 calls "external
// collaborators": the LLM provider, vector index, persistence, and
// automation backend the core consults without owning. No concrete adapter
// to a specific model API, vector store, RDBMS, or GUI-automation backend
// ships here, per spec's Out-of-scope list — only the shapes, plus the one
// in-memory Persistence implementation tests use in place of a real store.
package collab

import (
	"context"
	"time"
)

// ChatMessage is one turn in an LLM conversation.
type ChatMessage struct {
	Role    string
	Content string
}

// Usage reports token/cost accounting for a single LLM call.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	CostUSD          float64
}

// ChatResult is the response to CreateChat.
type ChatResult struct {
	Content string
	Usage   *Usage
}

// ToolCall is a single tool invocation an LLM asked for via CreateResponses.
type ToolCall struct {
	Name      string
	Arguments map[string]interface{}
}

// ResponseChoice mirrors the choices[] entry of a Responses-style call.
type ResponseChoice struct {
	Content   string
	ToolCalls []ToolCall
}

// ResponsesResult is the response to CreateResponses.
type ResponsesResult struct {
	Choices   []ResponseChoice
	Reasoning string
	Usage     *Usage
}

// LLMProvider is the narrow interface the core calls into an LLM backend
// through (spec §6). No concrete implementation is provided; callers wire
// a real provider (Anthropic, OpenAI, ...) behind this shape.
type LLMProvider interface {
	CreateChat(ctx context.Context, model string, messages []ChatMessage, temperature float64, maxTokens int) (*ChatResult, error)
	CreateResponses(ctx context.Context, model string, inputItems []ChatMessage, tools []string, reasoning bool, truncation string) (*ResponsesResult, error)
}

// VectorMatch is one result of a VectorIndex.Search call.
type VectorMatch struct {
	DocID string
	Score float64
}

// VectorIndex is the narrow interface the core calls into a vector-search
// backend through (spec §6). The core normalizes vectors for cosine
// similarity before calling Add/Search; VectorIndex itself is a pure
// k-NN store.
type VectorIndex interface {
	Add(ctx context.Context, vectors [][]float32, ids []string, metadata []map[string]string) error
	Search(ctx context.Context, vector []float32, k int, threshold *float64) ([]VectorMatch, error)
	Size(ctx context.Context) (int, error)
}

// StoredMessage is one message in a persisted conversation.
type StoredMessage struct {
	Role      string
	Content   string
	Timestamp time.Time
}

// SessionRecord is the opaque session record the core hands to Persistence.
type SessionRecord struct {
	ID        string
	UserID    string
	Metadata  map[string]string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Persistence is the narrow interface the core calls into a session/store
// backend through (spec §6). Required but opaque: the bus never assumes a
// schema, only these operations.
type Persistence interface {
	PutSession(ctx context.Context, session SessionRecord) error
	GetSession(ctx context.Context, id string) (*SessionRecord, error)
	ListSessions(ctx context.Context, limit, offset int) ([]SessionRecord, error)
	AppendMessage(ctx context.Context, sessionID string, msg StoredMessage) error
	ListMessages(ctx context.Context, sessionID string, limit, offset int) ([]StoredMessage, error)
	StoreAttachment(ctx context.Context, sessionID, name string, data []byte) (string, error)
	StoreFeedback(ctx context.Context, sessionID string, rating int, comment string) error
	DeleteSession(ctx context.Context, id string) error
}

// ScreenSize is the result of AutomationBackend.Size.
type ScreenSize struct {
	Width  int
	Height int
}

// AutomationBackend is the narrow interface the core calls into a
// GUI-automation backend through (spec §6). The tool registry falls back to
// a disabled stub (see internal/tools) when none is wired, per spec's
// fallback language.
type AutomationBackend interface {
	Size(ctx context.Context) (ScreenSize, error)
	Click(ctx context.Context, x, y int) error
	Type(ctx context.Context, text string) error
	Scroll(ctx context.Context, n int) error
	Screenshot(ctx context.Context) ([]byte, error)
}
