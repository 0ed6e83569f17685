package store

import (
	"time"

	"github.com/nextlevelbuilder/clara/internal/providers"
)

// SessionInfo is lightweight session metadata for listing.
type SessionInfo struct {
	Key          string    `json:"key"`
	MessageCount int       `json:"messageCount"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
}

// SessionStore manages conversation sessions: the message history, rolling
// summary, and token-accounting metadata a chat orchestrator run needs. The
// concrete backing (in-memory + JSON-on-disk, SQL, …) is an external
// collaborator behind this interface — see internal/sessions.Manager for the
// implementation this module ships.
type SessionStore interface {
	GetOrCreate(key string) *SessionData
	AddMessage(key string, msg providers.Message)
	GetHistory(key string) []providers.Message
	GetSummary(key string) string
	SetSummary(key, summary string)
	UpdateMetadata(key, model, provider, channel string)
	AccumulateTokens(key string, input, output int64)
	IncrementCompaction(key string)
	GetCompactionCount(key string) int
	GetMemoryFlushCompactionCount(key string) int
	SetMemoryFlushDone(key string)
	SetSpawnInfo(key, spawnedBy string, depth int)
	TruncateHistory(key string, keepLast int)
	Reset(key string)
	Delete(key string) error
	List(agentID string) []SessionInfo
	Save(key string) error
}

// SessionData holds conversation state for one session.
type SessionData struct {
	Key      string              `json:"key"`
	Messages []providers.Message `json:"messages"`
	Summary  string              `json:"summary,omitempty"`
	Created  time.Time           `json:"created"`
	Updated  time.Time           `json:"updated"`

	Model           string `json:"model,omitempty"`
	Provider        string `json:"provider,omitempty"`
	Channel         string `json:"channel,omitempty"`
	InputTokens     int64  `json:"inputTokens,omitempty"`
	OutputTokens    int64  `json:"outputTokens,omitempty"`
	CompactionCount int    `json:"compactionCount,omitempty"`
	SpawnedBy       string `json:"spawnedBy,omitempty"`
	SpawnDepth      int    `json:"spawnDepth,omitempty"`
}

// MemoryFact is a single extracted (category, key) → value fact about a user
// or conversation, upserted by the fact extractor described in module memory
// services.
type MemoryFact struct {
	Category  string    `json:"category"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MemoryStore persists the keyed-fact half of memory services (the other
// half — message history — lives in SessionStore).
type MemoryStore interface {
	Upsert(scope, category, key, value string) error
	Get(scope, category, key string) (string, bool)
	All(scope string) []MemoryFact
	Delete(scope, category, key string) error
}
