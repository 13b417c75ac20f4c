// Package memory provides keyed, TTL-expiring storage of conversation
// history. The store is the only owner of Conversation values; all
// mutation goes through it, and operations on the same conversation id
// are serialized.
package memory

import (
	"context"
	"errors"
	"time"
)

// ErrConversationNotFound is returned by Get when the conversation does
// not exist or has expired.
var ErrConversationNotFound = errors.New("conversation not found")

// Turn is one query/report exchange within a conversation.
type Turn struct {
	Query       string    `json:"query"`
	Report      string    `json:"report"`
	Timestamp   time.Time `json:"timestamp"`
	LandmarkIDs []string  `json:"landmark_ids,omitempty"`
}

// Conversation is an ordered sequence of turns sharing context. Turns are
// time-ordered and append-only.
type Conversation struct {
	ID         string    `json:"id"`
	Turns      []Turn    `json:"turns"`
	CreatedAt  time.Time `json:"created_at"`
	LastAccess time.Time `json:"last_access"`
}

// Store is the conversation memory contract. Implementations must
// serialize mutating operations per conversation id and expire idle
// conversations after the configured TTL, with the TTL reset on every
// read or write access.
type Store interface {
	// Get returns the conversation, or ErrConversationNotFound when it
	// is absent or expired. A successful Get refreshes the TTL.
	Get(ctx context.Context, id string) (*Conversation, error)

	// Append adds a turn, creating the conversation when absent.
	Append(ctx context.Context, id string, turn Turn) error

	// Delete evicts the conversation. Deleting an absent id is not an
	// error.
	Delete(ctx context.Context, id string) error

	// PurgeExpired sweeps out expired conversations and reports how many
	// were removed. The host schedules calls; the store never does.
	PurgeExpired(ctx context.Context) (int, error)
}
