// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translate

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// passthroughKeys are field names whose string values are structural, not
// prose: identifiers, references, URLs, layout toggles. They are copied
// byte-for-byte into translated documents.
var passthroughKeys = map[string]bool{
	"_type":                true,
	"_key":                 true,
	"_ref":                 true,
	"_id":                  true,
	"href":                 true,
	"url":                  true,
	"videoUrl":             true,
	"icon":                 true,
	"variant":              true,
	"size":                 true,
	"asset":                true,
	"hotspot":              true,
	"crop":                 true,
	"isAnchor":             true,
	"openInNewTab":         true,
	"highlight":            true,
	"showLanguageSwitcher": true,
	"showThemeToggle":      true,
	"showSocialLinks":      true,
	"showNewsletter":       true,
	"noIndex":              true,
}

// translatable reports whether a leaf string should be sent to the
// translator. Very short strings and values that look like fragments or
// URLs pass through untouched.
func translatable(s string) bool {
	if utf8.RuneCountInString(s) < 2 {
		return false
	}
	if strings.HasPrefix(s, "#") || strings.HasPrefix(s, "http") {
		return false
	}
	return true
}

// Walker translates every eligible string leaf of a field tree, preserving
// structure, order, and all non-string values. Each eligible leaf costs
// exactly one translator call; a failed call degrades to the source text so
// one bad segment never sinks a whole document.
type Walker struct {
	tr     Translator
	logger *slog.Logger
}

// NewWalker creates a field-tree walker backed by the given translator.
func NewWalker(tr Translator, logger *slog.Logger) *Walker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Walker{tr: tr, logger: logger}
}

// Value translates a single value tree.
func (w *Walker) Value(ctx context.Context, v any, sourceLang, targetLang string) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string:
		return w.leaf(ctx, val, sourceLang, targetLang)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = w.Value(ctx, item, sourceLang, targetLang)
		}
		return out
	case map[string]any:
		return w.object(ctx, val, sourceLang, targetLang)
	default:
		// Numbers, bools, and anything exotic pass through unchanged.
		return v
	}
}

// object translates a map, honoring the passthrough key set.
func (w *Walker) object(ctx context.Context, obj map[string]any, sourceLang, targetLang string) map[string]any {
	out := make(map[string]any, len(obj))
	for key, val := range obj {
		if passthroughKeys[key] {
			out[key] = val
			continue
		}
		out[key] = w.Value(ctx, val, sourceLang, targetLang)
	}
	return out
}

// leaf translates one string, degrading to the source text on failure.
func (w *Walker) leaf(ctx context.Context, s, sourceLang, targetLang string) string {
	if !translatable(s) {
		return s
	}
	out, err := w.tr.Translate(ctx, s, sourceLang, targetLang)
	if err != nil {
		w.logger.Warn("segment translation failed, keeping source text",
			"category", "translate",
			"target_lang", targetLang,
			"error", err)
		return s
	}
	return out
}

// String translates a single standalone string field.
func (w *Walker) String(ctx context.Context, s, sourceLang, targetLang string) string {
	return w.leaf(ctx, s, sourceLang, targetLang)
}

// Blocks translates a portable-text block array span-by-span. Non-block
// members (inline images, code blocks) pass through untouched.
func (w *Walker) Blocks(ctx context.Context, blocks []any, sourceLang, targetLang string) []any {
	out := make([]any, len(blocks))
	for i, raw := range blocks {
		block, ok := raw.(map[string]any)
		if !ok || block["_type"] != "block" {
			out[i] = raw
			continue
		}

		translated := make(map[string]any, len(block))
		for k, v := range block {
			translated[k] = v
		}

		if children, ok := block["children"].([]any); ok {
			newChildren := make([]any, len(children))
			for j, rawChild := range children {
				child, ok := rawChild.(map[string]any)
				if !ok {
					newChildren[j] = rawChild
					continue
				}
				newChild := make(map[string]any, len(child))
				for k, v := range child {
					newChild[k] = v
				}
				if text, ok := child["text"].(string); ok {
					newChild["text"] = w.leaf(ctx, text, sourceLang, targetLang)
				}
				newChildren[j] = newChild
			}
			translated["children"] = newChildren
		}

		out[i] = translated
	}
	return out
}
