// Package chat is the booking assistant widget: a conversation with a
// language model whose replies are revealed one paragraph at a time.
package chat

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}
