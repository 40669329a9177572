// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

// SourceLanguage is the language all source documents are authored in.
const SourceLanguage = "en"

// TargetLanguages is the default set of languages a source document is
// translated into, in dispatch order.
var TargetLanguages = []string{"es", "fr", "pt", "de", "ar", "zh"}

// deeplCodes maps site language codes to DeepL target-language codes.
// Portuguese maps to the European variant.
var deeplCodes = map[string]string{
	"es": "es",
	"fr": "fr",
	"pt": "pt-PT",
	"de": "de",
	"ar": "ar",
	"zh": "zh",
}

// languageNames provides display names for logging.
var languageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"pt": "Portuguese",
	"de": "German",
	"ar": "Arabic",
	"zh": "Chinese",
}

// DeepLCode returns the DeepL target code for a site language code.
// Unknown codes are passed through unchanged.
func DeepLCode(lang string) string {
	if code, ok := deeplCodes[lang]; ok {
		return code
	}
	return lang
}

// LanguageName returns the display name for a language code, falling back to
// the code itself.
func LanguageName(lang string) string {
	if name, ok := languageNames[lang]; ok {
		return name
	}
	return lang
}

// IsTargetLanguage reports whether lang is in the default target set.
func IsTargetLanguage(lang string) bool {
	for _, l := range TargetLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
