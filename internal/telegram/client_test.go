package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/hectic-downloader/server/internal/model"
	"github.com/stretchr/testify/require"
)

// fakeBotAPI answers the handful of Bot API methods the client uses.
type fakeBotAPI struct {
	mu      sync.Mutex
	calls   []string
	replies map[string]string
}

func (f *fakeBotAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
	_ = r.ParseMultipartForm(1 << 20)

	f.mu.Lock()
	f.calls = append(f.calls, method)
	body, ok := f.replies[method]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		body = `{"ok":true,"result":true}`
	}
	_, _ = w.Write([]byte(body))
}

func newTestClient(t *testing.T, replies map[string]string) (*Client, *fakeBotAPI) {
	t.Helper()
	api := &fakeBotAPI{replies: map[string]string{
		"getMe": `{"ok":true,"result":{"id":99,"is_bot":true,"first_name":"Hectic","username":"hectic_bot"}}`,
	}}
	for k, v := range replies {
		api.replies[k] = v
	}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	c, err := NewClient(model.TelegramConfig{Token: "123:abc", APIServer: srv.URL + "/"})
	require.NoError(t, err)
	return c, api
}

func TestClient_Identity(t *testing.T) {
	c, _ := newTestClient(t, nil)
	require.True(t, c.Ready())
	require.Equal(t, "hectic_bot", c.Username())
}

func TestClient_SendTextReturnsMessageID(t *testing.T) {
	c, api := newTestClient(t, map[string]string{
		"sendMessage": `{"ok":true,"result":{"message_id":77,"date":0,"chat":{"id":5,"type":"private"}}}`,
	})
	id, err := c.SendText(context.Background(), 5, "hi", WithKeyboard(Keyboard{{{Text: "x", Data: "cancel"}}}))
	require.NoError(t, err)
	require.Equal(t, 77, id)
	require.Contains(t, api.calls, "sendMessage")
}

func TestClient_DeleteAlreadyGoneIsSuccess(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"deleteMessage": `{"ok":false,"error_code":400,"description":"Bad Request: message to delete not found"}`,
	})
	require.NoError(t, c.Delete(context.Background(), 5, 10))
}

func TestClient_DeleteOtherFailure(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"deleteMessage": `{"ok":false,"error_code":403,"description":"Forbidden: bot was kicked"}`,
	})
	require.Error(t, c.Delete(context.Background(), 5, 10))
}

func TestClient_EditNotModifiedIsSuccess(t *testing.T) {
	c, _ := newTestClient(t, map[string]string{
		"editMessageText": `{"ok":false,"error_code":400,"description":"Bad Request: message is not modified"}`,
	})
	require.NoError(t, c.EditText(context.Background(), 5, 10, "same"))
}

func TestClient_CanceledContext(t *testing.T) {
	c, _ := newTestClient(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.SendText(ctx, 5, "hi")
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewClient_RequiresToken(t *testing.T) {
	_, err := NewClient(model.TelegramConfig{})
	require.Error(t, err)
}
