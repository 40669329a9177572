// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package translate implements the shared translation engine: segment
// translators, the field-tree walker, and the per-document-type pipeline.
package translate

import (
	"context"
)

// Translator translates a single text segment between two languages.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Func adapts a function to the Translator interface. Used by tests and
// small composition helpers.
type Func func(ctx context.Context, text, sourceLang, targetLang string) (string, error)

// Translate implements Translator.
func (f Func) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	return f(ctx, text, sourceLang, targetLang)
}
