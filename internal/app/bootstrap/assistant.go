package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/medbook/internal/chat"
	appconfig "github.com/wolfman30/medbook/internal/config"
	"github.com/wolfman30/medbook/pkg/logging"
)

// BuildAssistant wires the Gemini chat assistant. It returns nil when no
// API key is configured.
func BuildAssistant(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*chat.GeminiAssistant, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		logger.Warn("chat assistant disabled: GEMINI_API_KEY not set")
		return nil, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	assistant, err := chat.NewGeminiAssistant(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: build assistant: %w", err)
	}
	logger.Info("chat assistant enabled", "model", cfg.GeminiModelID)
	return assistant, nil
}
