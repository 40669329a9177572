// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/olegiv/osync-go/internal/model"
)

const deeplTimeout = 30 * time.Second

// DeepLTranslator translates segments through the DeepL HTTP API. All
// requests pass through a shared rate limiter so a large document fan-out
// does not trip the API's request quota.
type DeepLTranslator struct {
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	client  *http.Client
}

// DeepLOptions configures the DeepL translator.
type DeepLOptions struct {
	BaseURL string
	APIKey  string
	// RPS caps requests per second across all goroutines.
	RPS   float64
	Burst int
}

// NewDeepL creates a rate-limited DeepL translator.
func NewDeepL(opts DeepLOptions) *DeepLTranslator {
	if opts.RPS <= 0 {
		opts.RPS = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = int(opts.RPS)
	}
	return &DeepLTranslator{
		baseURL: strings.TrimSuffix(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		client:  &http.Client{Timeout: deeplTimeout},
	}
}

// Translate translates one segment. The target language is mapped to
// DeepL's code set (pt becomes pt-PT).
func (t *DeepLTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("text", text)
	form.Set("source_lang", strings.ToUpper(sourceLang))
	form.Set("target_lang", strings.ToUpper(model.DeepLCode(targetLang)))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.baseURL+"/v2/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("deepl request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("deepl call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("deepl read: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("deepl error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("deepl decode: %w", err)
	}
	if len(result.Translations) == 0 {
		return "", fmt.Errorf("deepl: no translations returned")
	}

	return result.Translations[0].Text, nil
}

var _ Translator = (*DeepLTranslator)(nil)
