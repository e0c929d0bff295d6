package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const defaultSystemPrompt = `You are the booking assistant of a hospital appointment platform.
Help patients choose a specialty, understand how booking works (choose a specialty, a doctor, a date and a morning or afternoon shift, then pay in cash at the hospital or online) and find their booking history.
Do not diagnose. For emergencies tell the patient to call 115.
Answer in the patient's language, in short paragraphs.`

// Assistant produces the next assistant turn for a conversation. The last
// message in history is the user's new message.
type Assistant interface {
	Reply(ctx context.Context, history []Message) (string, error)
}

// GeminiAssistant answers with Google's Gemini API.
type GeminiAssistant struct {
	client       *genai.Client
	modelID      string
	systemPrompt string
}

func NewGeminiAssistant(ctx context.Context, apiKey, modelID string) (*GeminiAssistant, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("chat: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("chat: failed to create gemini client: %w", err)
	}
	return &GeminiAssistant{
		client:       client,
		modelID:      modelID,
		systemPrompt: defaultSystemPrompt,
	}, nil
}

func (a *GeminiAssistant) Reply(ctx context.Context, history []Message) (string, error) {
	if len(history) == 0 {
		return "", errors.New("chat: gemini requires at least one message")
	}
	last := history[len(history)-1]
	if last.Role != RoleUser || strings.TrimSpace(last.Content) == "" {
		return "", errors.New("chat: last message must be a non-empty user message")
	}

	model := a.client.GenerativeModel(a.modelID)
	model.SystemInstruction = genai.NewUserContent(genai.Text(a.systemPrompt))

	cs := model.StartChat()
	cs.History = toGenaiHistory(history[:len(history)-1])

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", fmt.Errorf("chat: gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("chat: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("chat: gemini returned empty content")
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}
	return strings.TrimSpace(text.String()), nil
}

func (a *GeminiAssistant) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func toGenaiHistory(messages []Message) []*genai.Content {
	var out []*genai.Content
	for _, msg := range messages {
		content := strings.TrimSpace(msg.Content)
		if content == "" {
			continue
		}
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(content)},
		})
	}
	return out
}
