package telegram_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hectic-downloader/server/internal/telegram"
	"github.com/hectic-downloader/server/internal/telegram/telegramtest"
	"github.com/stretchr/testify/require"
)

func TestTryEditAny_FallsBackToCaption(t *testing.T) {
	ctx := context.Background()
	fake := telegramtest.New()
	id, err := fake.SendPhoto(ctx, 1, "https://t/p.jpg", "menu")
	require.NoError(t, err)

	calls := 0
	fake.FailEdit = func(int) error {
		calls++
		if calls == 1 {
			return errors.New("there is no text in the message to edit")
		}
		return nil
	}

	a := telegram.TryEditAny(ctx, fake, 1, id, "cancelled")
	require.True(t, a.OK())
	m, _ := fake.Message(id)
	require.Equal(t, "cancelled", m.Text)
}

func TestAttempt_TolerateSwallows(t *testing.T) {
	fake := telegramtest.New()
	fake.FailDelete = func(int) error { return errors.New("forbidden") }

	a := telegram.TryDelete(context.Background(), fake, 1, 5)
	require.False(t, a.OK())
	require.Equal(t, "delete", a.Op)
	a.Tolerate()
}
