// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/olegiv/osync-go/internal/cache"
)

// CachedTranslator memoizes segment translations. Re-translating a lightly
// edited document only pays for the segments that changed.
type CachedTranslator struct {
	inner Translator
	cache cache.Cacher
}

// NewCached wraps a translator with a segment cache.
func NewCached(inner Translator, c cache.Cacher) *CachedTranslator {
	return &CachedTranslator{inner: inner, cache: c}
}

// segmentKey builds a cache key from the language pair and a digest of the
// source text.
func segmentKey(text, sourceLang, targetLang string) string {
	sum := sha256.Sum256([]byte(text))
	return "seg:" + sourceLang + ":" + targetLang + ":" + hex.EncodeToString(sum[:])
}

// Translate returns the cached translation when available, otherwise
// delegates and stores the result. Cache errors other than a miss are
// ignored; the cache is an optimization, not a dependency.
func (t *CachedTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	key := segmentKey(text, sourceLang, targetLang)

	if val, err := t.cache.Get(ctx, key); err == nil {
		return string(val), nil
	}

	out, err := t.inner.Translate(ctx, text, sourceLang, targetLang)
	if err != nil {
		return "", err
	}

	_ = t.cache.Set(ctx, key, []byte(out), 0)
	return out, nil
}

var _ Translator = (*CachedTranslator)(nil)
