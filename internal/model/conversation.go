package model

import (
	"context"
)

// SearchResult is one entry of a keyword search, as shown in the numbered menu.
type SearchResult struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Duration  string `json:"duration,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// ConversationState is what the bot waits for next in one chat.
type ConversationState struct {
	AwaitingSelection   bool           `json:"awaiting_selection,omitempty"`
	PendingResults      []SearchResult `json:"pending_results,omitempty"`
	TransientMessageIDs []int          `json:"transient_message_ids,omitempty"`
}

// StateRepository tracks at most one ConversationState per chat.
type StateRepository interface {
	// Get returns the state for a chat; ok is false when none is stored.
	Get(ctx context.Context, chatID int64) (state ConversationState, ok bool, err error)

	// Set fully replaces the state of a chat.
	Set(ctx context.Context, chatID int64, state ConversationState) error

	// Clear removes the state of a chat. Clearing a missing state is not an error.
	Clear(ctx context.Context, chatID int64) error
}

// ResultCache bridges an inline button back to a fetched MediaResult.
type ResultCache interface {
	// Put stores entry under a fresh key that does not collide with any live key.
	Put(ctx context.Context, chatID int64, entry MediaResult) (string, error)

	// Get looks a key up without extending its lifetime or consuming it.
	Get(ctx context.Context, key string) (entry MediaResult, ok bool, err error)

	// Remove deletes a key; removing a missing key is a no-op.
	Remove(ctx context.Context, key string) error
}
