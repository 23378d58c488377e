package collab

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Conversation is the bridge-side conversation-state entity of spec.md §3:
// an LRU-evicted record of one LLM conversation's message history. At most
// ConversationStore's configured capacity of these exist at any time,
// evicted by oldest LastActivity (spec §9 "LRU conversation cache").
type Conversation struct {
	ID           string
	UserID       string
	Messages     []ChatMessage
	MessageTimes []time.Time
	ToolsUsed    []string
	Metadata     map[string]string
	CreatedAt    time.Time
	LastActivity time.Time
}

// ConversationStore keeps at most maxConversations Conversation records,
// evicting the least-recently-active one on overflow (spec §3 "Lifecycles":
// "A Conversation lives until LRU-evicted"; spec §9: "touch on every read").
// Grounded on github.com/hashicorp/golang-lru/v2, the LRU library the
// retrieved pack uses for exactly this shape of cache
// (cklxx-elephant.ai/internal/infra/llm/factory.go's response-dedup cache).
type ConversationStore struct {
	cache *lru.Cache[string, *Conversation]
}

// NewConversationStore constructs a store capped at capacity entries.
// capacity <= 0 falls back to the spec's documented default of 1000.
func NewConversationStore(capacity int) *ConversationStore {
	if capacity <= 0 {
		capacity = 1000
	}
	c, err := lru.New[string, *Conversation](capacity)
	if err != nil {
		// lru.New only errors for a non-positive size, which is excluded above.
		c, _ = lru.New[string, *Conversation](1000)
	}
	return &ConversationStore{cache: c}
}

// GetOrCreate returns the conversation for id, touching its LRU recency, or
// creates a new one for userID if it does not yet exist.
func (s *ConversationStore) GetOrCreate(id, userID string) *Conversation {
	if conv, ok := s.cache.Get(id); ok {
		return conv
	}
	now := time.Now().UTC()
	conv := &Conversation{
		ID:           id,
		UserID:       userID,
		Metadata:     map[string]string{},
		CreatedAt:    now,
		LastActivity: now,
	}
	s.cache.Add(id, conv)
	return conv
}

// AppendMessage appends one turn to id's conversation and touches its
// recency, creating the conversation if absent.
func (s *ConversationStore) AppendMessage(id, userID string, msg ChatMessage) *Conversation {
	conv := s.GetOrCreate(id, userID)
	conv.Messages = append(conv.Messages, msg)
	conv.MessageTimes = append(conv.MessageTimes, time.Now().UTC())
	conv.LastActivity = time.Now().UTC()
	s.cache.Add(id, conv) // re-adds to refresh recency ordering
	return conv
}

// RecordToolUse appends a tool name to id's tool-used list without
// otherwise touching message history.
func (s *ConversationStore) RecordToolUse(id, toolName string) {
	if conv, ok := s.cache.Get(id); ok {
		conv.ToolsUsed = append(conv.ToolsUsed, toolName)
		conv.LastActivity = time.Now().UTC()
	}
}

// Len reports the number of conversations currently held.
func (s *ConversationStore) Len() int { return s.cache.Len() }

// Evict removes id's conversation, if present.
func (s *ConversationStore) Evict(id string) { s.cache.Remove(id) }

// promptCacheEntry is one cached chat response, evicted by TTL rather than
// recency (spec §5: "cache of chat responses is keyed by a hash of the
// prompt with a default TTL of 3600 s").
type promptCacheEntry struct {
	result    *ChatResult
	expiresAt time.Time
}

// PromptCache memoizes LLMProvider.CreateChat results by a hash of the
// model+messages, with a fixed TTL per entry. A plain mutex-guarded map is
// used here (not the LRU above) since eviction is time-based, not
// recency-based. The size is not bounded: Get removes only the expired
// entry it looks up, and entries that are never looked up again stay in
// the map.
type PromptCache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[string]promptCacheEntry
}

// NewPromptCache constructs a PromptCache with the given TTL. ttl <= 0 falls
// back to the spec's documented default of 3600 seconds.
func NewPromptCache(ttl time.Duration) *PromptCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &PromptCache{ttl: ttl, entries: make(map[string]promptCacheEntry)}
}

// Key hashes model and the message list into a stable cache key.
func (c *PromptCache) Key(model string, messages []ChatMessage) string {
	h := sha256.New()
	h.Write([]byte(model))
	for _, m := range messages {
		h.Write([]byte{0})
		h.Write([]byte(m.Role))
		h.Write([]byte{0})
		h.Write([]byte(m.Content))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached result for key if present and not yet expired.
func (c *PromptCache) Get(key string) (*ChatResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.result, true
}

// Put caches result under key for the configured TTL.
func (c *PromptCache) Put(key string, result *ChatResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = promptCacheEntry{result: result, expiresAt: time.Now().Add(c.ttl)}
}
