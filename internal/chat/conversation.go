package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/wolfman30/medbook/pkg/logging"
)

const fallbackReply = "Sorry, I can't answer right now. Please try again in a moment."

// Conversation keeps the chat history and feeds replies to a Revealer.
type Conversation struct {
	assistant Assistant
	revealer  *Revealer
	logger    *logging.Logger

	mu      sync.Mutex
	history []Message
}

func NewConversation(assistant Assistant, revealer *Revealer, logger *logging.Logger) *Conversation {
	if assistant == nil {
		panic("chat: assistant cannot be nil")
	}
	if revealer == nil {
		revealer = NewRevealer(0)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Conversation{assistant: assistant, revealer: revealer, logger: logger}
}

func (c *Conversation) Revealer() *Revealer { return c.revealer }

// History returns a copy of the conversation so far.
func (c *Conversation) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// Send records the user's message, asks the assistant and queues the
// reply's paragraphs for reveal. On failure a fallback line is queued
// instead and the user's message stays in history.
func (c *Conversation) Send(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return errors.New("chat: message is empty")
	}

	c.mu.Lock()
	c.history = append(c.history, Message{Role: RoleUser, Content: text})
	snapshot := make([]Message, len(c.history))
	copy(snapshot, c.history)
	c.mu.Unlock()

	reply, err := c.assistant.Reply(ctx, snapshot)
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty reply")
	}
	if err != nil {
		c.logger.Warn("chat assistant failed", "error", err)
		c.revealer.Enqueue(fallbackReply)
		return fmt.Errorf("chat: reply: %w", err)
	}

	c.mu.Lock()
	c.history = append(c.history, Message{Role: RoleAssistant, Content: reply})
	c.mu.Unlock()

	c.revealer.Enqueue(Paragraphs(reply)...)
	return nil
}

// Paragraphs splits text on blank lines, dropping empty pieces.
func Paragraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
