package store

import (
	"context"

	"github.com/google/uuid"
)

// Agent is the thin lookup result channels need to resolve a configured
// agent key to its durable identity. Auth/pairing and the agent directory
// itself are external collaborators; this is the boundary shape a channel
// adapter depends on.
type Agent struct {
	ID uuid.UUID
}

// GroupFileWriter is one entry in a group chat's file-writer allowlist (the
// /addwriter, /removewriter, /writers commands).
type GroupFileWriter struct {
	UserID      string
	Username    *string
	DisplayName *string
}

// AgentStore resolves agent keys to IDs and manages the group file-writer
// allowlist a channel consults before letting a group member use
// file-mutating skills. Optional: a nil AgentStore disables the commands
// that need it, channels fall back to allowlist-only behavior.
type AgentStore interface {
	GetByKey(ctx context.Context, key string) (Agent, error)
	IsGroupFileWriter(ctx context.Context, agentID uuid.UUID, groupID, userID string) (bool, error)
	AddGroupFileWriter(ctx context.Context, agentID uuid.UUID, groupID, userID, firstName, username string) error
	RemoveGroupFileWriter(ctx context.Context, agentID uuid.UUID, groupID, userID string) error
	ListGroupFileWriters(ctx context.Context, agentID uuid.UUID, groupID string) ([]GroupFileWriter, error)
}

// PairingStore tracks the "connect this chat to my assistant" handshake for
// channels whose dm_policy is "pairing". Optional: a nil PairingStore means
// the channel falls back to its static allow-list.
type PairingStore interface {
	RequestPairing(userID, channel, chatID, agentKey string) (code string, err error)
	IsPaired(userID, channel string) bool
}
