// Package conversation tracks what each chat is waiting for next.
package conversation

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	errx "github.com/hectic-downloader/server/internal/core/error"
	"github.com/hectic-downloader/server/internal/model"
)

type Manager struct {
	states    model.StateRepository
	menuLimit int
}

func NewManager(states model.StateRepository, cfg model.SessionConfig) *Manager {
	limit := cfg.MenuSize
	if limit <= 0 {
		limit = 10
	}
	return &Manager{states: states, menuLimit: limit}
}

// MenuLimit is the maximum number of entries in a numbered menu.
func (m *Manager) MenuLimit() int { return m.menuLimit }

// =========== Flow lifecycle ===========

// Begin starts a new flow for a chat, overwriting whatever was pending.
func (m *Manager) Begin(ctx context.Context, chatID int64, transient ...int) error {
	return m.states.Set(ctx, chatID, model.ConversationState{TransientMessageIDs: nonZero(transient)})
}

// Track adds message ids to the current flow, keeping the rest of the state.
func (m *Manager) Track(ctx context.Context, chatID int64, ids ...int) error {
	state, _, err := m.states.Get(ctx, chatID)
	if err != nil {
		return err
	}
	state.TransientMessageIDs = append(state.TransientMessageIDs, nonZero(ids)...)
	return m.states.Set(ctx, chatID, state)
}

// Conclude ends the flow and returns the transient ids that belonged to it.
func (m *Manager) Conclude(ctx context.Context, chatID int64) ([]int, error) {
	state, ok, err := m.states.Get(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if err := m.states.Clear(ctx, chatID); err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return state.TransientMessageIDs, nil
}

// =========== Search menu ===========

// OpenMenu records a numbered menu of at most MenuLimit results. An empty
// result list stores nothing.
func (m *Manager) OpenMenu(ctx context.Context, chatID int64, results []model.SearchResult, transient ...int) error {
	if len(results) == 0 {
		return nil
	}
	if len(results) > m.menuLimit {
		results = results[:m.menuLimit]
	}
	return m.states.Set(ctx, chatID, model.ConversationState{
		AwaitingSelection:   true,
		PendingResults:      append([]model.SearchResult(nil), results...),
		TransientMessageIDs: nonZero(transient),
	})
}

// Abandon clears the state when the chat is still waiting on the menu sent
// as menuID. It reports whether anything was cleared.
func (m *Manager) Abandon(ctx context.Context, chatID int64, menuID int) (bool, error) {
	state, ok, err := m.states.Get(ctx, chatID)
	if err != nil || !ok || !state.AwaitingSelection || !slices.Contains(state.TransientMessageIDs, menuID) {
		return false, err
	}
	if err := m.states.Clear(ctx, chatID); err != nil {
		return false, err
	}
	return true, nil
}

// Awaiting reports whether a menu is open in the chat.
func (m *Manager) Awaiting(ctx context.Context, chatID int64) (bool, error) {
	state, ok, err := m.states.Get(ctx, chatID)
	if err != nil {
		return false, err
	}
	return ok && state.AwaitingSelection, nil
}

// ResolveSelection maps a numeric reply to its menu entry. A valid reply
// closes the menu but keeps the transient ids; an invalid one returns
// KindInvalidSelection and leaves the state untouched.
func (m *Manager) ResolveSelection(ctx context.Context, chatID int64, reply string) (model.SearchResult, error) {
	state, ok, err := m.states.Get(ctx, chatID)
	if err != nil {
		return model.SearchResult{}, err
	}
	if !ok || !state.AwaitingSelection {
		return model.SearchResult{}, errx.New(errx.KindNotFound, "no menu is open")
	}

	n := len(state.PendingResults)
	choice, err := strconv.Atoi(strings.TrimSpace(reply))
	if err != nil || choice < 1 || choice > n {
		return model.SearchResult{}, errx.New(errx.KindInvalidSelection, InvalidSelectionMessage(n))
	}

	picked := state.PendingResults[choice-1]
	if err := m.states.Set(ctx, chatID, model.ConversationState{TransientMessageIDs: state.TransientMessageIDs}); err != nil {
		return model.SearchResult{}, err
	}
	return picked, nil
}

func InvalidSelectionMessage(n int) string {
	return fmt.Sprintf("Invalid selection. Please reply with a number between 1 and %d", n)
}

func nonZero(ids []int) []int {
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if id != 0 {
			out = append(out, id)
		}
	}
	return out
}
