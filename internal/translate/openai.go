// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/olegiv/osync-go/internal/model"
)

// OpenAITranslator translates segments through a chat-completion prompt.
// It is the fallback provider for accounts without DeepL access.
type OpenAITranslator struct {
	client openai.Client
	model  string
}

// NewOpenAI creates an OpenAI-backed translator.
func NewOpenAI(apiKey, chatModel string) *OpenAITranslator {
	return &OpenAITranslator{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  chatModel,
	}
}

// Translate translates one segment.
func (t *OpenAITranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	system := fmt.Sprintf(
		"You are a professional translator. Translate the user's text from %s to %s. "+
			"Preserve tone and formatting. Reply with the translation only, no commentary.",
		model.LanguageName(sourceLang), model.LanguageName(targetLang))

	resp, err := t.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(t.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(text),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai translate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

var _ Translator = (*OpenAITranslator)(nil)
