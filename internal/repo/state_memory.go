package repo

import (
	"context"
	"strconv"
	"time"

	"github.com/hectic-downloader/server/internal/model"
	"github.com/hectic-downloader/server/internal/store"
)

// MemoryStateRepository holds one ConversationState per chat in process.
// A zero ttl keeps state until it is cleared.
type MemoryStateRepository struct {
	states *store.TTL[model.ConversationState]
	ttl    time.Duration
}

func NewMemoryStateRepository(ttl time.Duration, clock store.Clock) *MemoryStateRepository {
	opts := []store.Option[model.ConversationState]{}
	if clock != nil {
		opts = append(opts, store.WithClock[model.ConversationState](clock))
	}
	return &MemoryStateRepository{
		states: store.NewTTL[model.ConversationState](opts...),
		ttl:    ttl,
	}
}

func (r *MemoryStateRepository) Start() { r.states.Start() }

func (r *MemoryStateRepository) Close() { r.states.Close() }

func (r *MemoryStateRepository) Get(_ context.Context, chatID int64) (model.ConversationState, bool, error) {
	s, ok := r.states.Get(strconv.FormatInt(chatID, 10))
	if !ok {
		return model.ConversationState{}, false, nil
	}
	return copyState(s), true, nil
}

func (r *MemoryStateRepository) Set(_ context.Context, chatID int64, state model.ConversationState) error {
	r.states.Set(strconv.FormatInt(chatID, 10), copyState(state), r.ttl)
	return nil
}

func (r *MemoryStateRepository) Clear(_ context.Context, chatID int64) error {
	r.states.Delete(strconv.FormatInt(chatID, 10))
	return nil
}

func copyState(s model.ConversationState) model.ConversationState {
	out := model.ConversationState{AwaitingSelection: s.AwaitingSelection}
	if s.PendingResults != nil {
		out.PendingResults = append([]model.SearchResult(nil), s.PendingResults...)
	}
	if s.TransientMessageIDs != nil {
		out.TransientMessageIDs = append([]int(nil), s.TransientMessageIDs...)
	}
	return out
}

var _ model.StateRepository = (*MemoryStateRepository)(nil)
