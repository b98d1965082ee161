// Package telegramtest provides an in-memory Messenger for tests.
package telegramtest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/hectic-downloader/server/internal/telegram"
)

// Message is one message recorded by Fake.
type Message struct {
	ID       int
	ChatID   int64
	Kind     string // text, photo, video, audio
	Text     string
	Keyboard telegram.Keyboard
	Markdown bool
	Payload  []byte
	Deleted  bool
}

// Fake records every call. Failure hooks return an error for a call when
// set; they may be changed between calls under the test's control.
type Fake struct {
	mu       sync.Mutex
	nextID   int
	messages map[int]*Message
	order    []int
	answers  []string
	deletes  []int
	typing   int

	FailSend   func(kind string) error
	FailEdit   func(messageID int) error
	FailDelete func(messageID int) error
}

func New() *Fake {
	return &Fake{nextID: 100, messages: map[int]*Message{}}
}

func (f *Fake) add(chatID int64, kind, text string, o telegram.SendOptions, payload []byte) (int, error) {
	f.mu.Lock()
	fail := f.FailSend
	f.mu.Unlock()
	if fail != nil {
		if err := fail(kind); err != nil {
			return 0, err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	m := &Message{ID: f.nextID, ChatID: chatID, Kind: kind, Text: text, Keyboard: o.Keyboard, Markdown: o.Markdown, Payload: payload}
	f.messages[m.ID] = m
	f.order = append(f.order, m.ID)
	return m.ID, nil
}

func collect(opts []telegram.SendOption) telegram.SendOptions {
	var o telegram.SendOptions
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func (f *Fake) SendText(_ context.Context, chatID int64, text string, opts ...telegram.SendOption) (int, error) {
	return f.add(chatID, "text", text, collect(opts), nil)
}

func (f *Fake) SendPhoto(_ context.Context, chatID int64, photoURL, caption string, opts ...telegram.SendOption) (int, error) {
	return f.add(chatID, "photo", caption, collect(opts), []byte(photoURL))
}

func (f *Fake) SendVideo(_ context.Context, chatID int64, file telegram.Upload, caption string) (int, error) {
	b, err := io.ReadAll(file.Reader)
	if err != nil {
		return 0, err
	}
	return f.add(chatID, "video", caption, telegram.SendOptions{}, b)
}

func (f *Fake) SendAudio(_ context.Context, chatID int64, file telegram.Upload, caption, _ string) (int, error) {
	b, err := io.ReadAll(file.Reader)
	if err != nil {
		return 0, err
	}
	return f.add(chatID, "audio", caption, telegram.SendOptions{}, b)
}

func (f *Fake) edit(messageID int, text string, o telegram.SendOptions) error {
	f.mu.Lock()
	fail := f.FailEdit
	f.mu.Unlock()
	if fail != nil {
		if err := fail(messageID); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[messageID]
	if !ok || m.Deleted {
		return fmt.Errorf("message to edit not found")
	}
	m.Text = text
	m.Keyboard = o.Keyboard
	m.Markdown = o.Markdown
	return nil
}

func (f *Fake) EditText(_ context.Context, _ int64, messageID int, text string, opts ...telegram.SendOption) error {
	return f.edit(messageID, text, collect(opts))
}

func (f *Fake) EditCaption(_ context.Context, _ int64, messageID int, caption string) error {
	return f.edit(messageID, caption, telegram.SendOptions{})
}

func (f *Fake) Delete(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, messageID)
	fail := f.FailDelete
	f.mu.Unlock()
	if fail != nil {
		if err := fail(messageID); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.messages[messageID]; ok {
		m.Deleted = true
	}
	return nil
}

func (f *Fake) AnswerCallback(_ context.Context, _ string, alert string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, alert)
	return nil
}

func (f *Fake) SendTyping(context.Context, int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing++
	return nil
}

// Message returns a copy of a recorded message.
func (f *Fake) Message(id int) (Message, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.messages[id]
	if !ok {
		return Message{}, false
	}
	return *m, true
}

// Sent returns every message in send order.
func (f *Fake) Sent() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, *f.messages[id])
	}
	return out
}

// Last returns the most recently sent message.
func (f *Fake) Last() (Message, bool) {
	sent := f.Sent()
	if len(sent) == 0 {
		return Message{}, false
	}
	return sent[len(sent)-1], true
}

// Live returns the messages that were sent and not deleted.
func (f *Fake) Live() []Message {
	var out []Message
	for _, m := range f.Sent() {
		if !m.Deleted {
			out = append(out, m)
		}
	}
	return out
}

// Deletes lists every delete attempt, failed ones included.
func (f *Fake) Deletes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.deletes...)
}

// Answers lists the alert text of each callback answer ("" for silent ones).
func (f *Fake) Answers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.answers...)
}

var _ telegram.Messenger = (*Fake)(nil)
