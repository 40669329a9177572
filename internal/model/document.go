// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// Translation statuses carried on generated documents.
const (
	TranslationStatusDraft       = "draft"
	TranslationStatusNeedsReview = "needs_review"
	TranslationStatusPublished   = "published"
)

// Document types handled by the translation pipeline.
const (
	TypePageContent = "pageContent"
	TypeNavigation  = "navigation"
	TypeFooter      = "footer"
	TypeBlogPost    = "blogPost"
	TypePricingPlan = "pricingPlan"
	TypeCategory    = "category"
	TypeTag         = "tag"
	TypeLeadForm    = "leadForm"
)

// Document is a content-store document: a free-form field tree with the
// well-known system keys (_id, _type, _rev) accessible via helpers.
type Document map[string]any

// ID returns the document's _id, or "".
func (d Document) ID() string {
	s, _ := d["_id"].(string)
	return s
}

// Type returns the document's _type, or "".
func (d Document) Type() string {
	s, _ := d["_type"].(string)
	return s
}

// Rev returns the document's revision, or "".
func (d Document) Rev() string {
	s, _ := d["_rev"].(string)
	return s
}

// Language returns the document's language field, or "".
func (d Document) Language() string {
	s, _ := d["language"].(string)
	return s
}

// String returns the named field as a string, or "" when absent or not a
// string.
func (d Document) String(key string) string {
	s, _ := d[key].(string)
	return s
}

// Reference is a content-store reference to another document.
type Reference struct {
	Type string `json:"_type"`
	Ref  string `json:"_ref"`
}

// Ref builds a reference to the document with the given id.
func Ref(id string) Reference {
	return Reference{Type: "reference", Ref: id}
}

// LanguageSettings controls per-document translation dispatch. A document
// marked language-specific is never translated; a non-empty publish list
// restricts the target set.
type LanguageSettings struct {
	IsLanguageSpecific bool     `json:"isLanguageSpecific"`
	PublishToLanguages []string `json:"publishToLanguages"`
}

// LanguageSettingsOf extracts the languageSettings object from a document.
// Absent or malformed settings come back as the zero value, which means
// "translate into every target language".
func LanguageSettingsOf(d Document) LanguageSettings {
	var out LanguageSettings
	raw, ok := d["languageSettings"].(map[string]any)
	if !ok {
		return out
	}
	if b, ok := raw["isLanguageSpecific"].(bool); ok {
		out.IsLanguageSpecific = b
	}
	if list, ok := raw["publishToLanguages"].([]any); ok {
		for _, v := range list {
			if s, ok := v.(string); ok {
				out.PublishToLanguages = append(out.PublishToLanguages, s)
			}
		}
	}
	return out
}

// TranslatedDocID returns the deterministic id for a translated document:
// <stableKey>-<lang>. Re-translating the same source always overwrites the
// same target.
func TranslatedDocID(stableKey, lang string) string {
	return stableKey + "-" + lang
}
