// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/olegiv/osync-go/internal/content"
	"github.com/olegiv/osync-go/internal/model"
	"github.com/olegiv/osync-go/internal/util"
)

// ErrUnsupportedType is returned for document types the pipeline does not
// handle.
var ErrUnsupportedType = errors.New("translate: unsupported document type")

// Per-language result statuses.
const (
	StatusCreated  = "created"
	StatusPatched  = "patched"
	StatusSkipped  = "skipped"
	StatusConflict = "conflict"
	StatusError    = "error"
)

// Result is the outcome of translating one document into one language.
type Result struct {
	Language string `json:"language"`
	Status   string `json:"status"`
	DocID    string `json:"docId,omitempty"`
	Message  string `json:"message,omitempty"`
}

// pageSections are the top-level objects of a landing page document that
// carry prose. Everything else on the document is copied verbatim.
var pageSections = []string{
	"seo", "hero", "socialProof", "problemSolution", "features",
	"video", "testimonials", "faq", "finalCta",
}

// Engine is the shared translation pipeline. One engine serves every
// document type; the per-type differences are confined to small builder
// functions.
type Engine struct {
	content content.Client
	walker  *Walker
	logger  *slog.Logger
	targets []string

	now   func() time.Time
	newID func() string
}

// EngineConfig configures a translation engine.
type EngineConfig struct {
	Content    content.Client
	Translator Translator
	Logger     *slog.Logger
	// Targets overrides the default target language set.
	Targets []string
}

// NewEngine creates a translation engine.
func NewEngine(cfg EngineConfig) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	targets := cfg.Targets
	if len(targets) == 0 {
		targets = model.TargetLanguages
	}
	return &Engine{
		content: cfg.Content,
		walker:  NewWalker(cfg.Translator, logger),
		logger:  logger,
		targets: targets,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Targets resolves the target language list for a document: the languages
// it asks to publish to, restricted to the configured set, or the whole set
// when it does not say.
func (e *Engine) Targets(doc model.Document) []string {
	settings := model.LanguageSettingsOf(doc)
	if len(settings.PublishToLanguages) == 0 {
		return e.targets
	}
	var out []string
	for _, lang := range settings.PublishToLanguages {
		for _, t := range e.targets {
			if lang == t {
				out = append(out, lang)
				break
			}
		}
	}
	if len(out) == 0 {
		return e.targets
	}
	return out
}

// TranslateDocument translates a source document into every target language
// and upserts the results. One language's failure never aborts its
// siblings; the caller gets a per-language report.
func (e *Engine) TranslateDocument(ctx context.Context, doc model.Document) ([]Result, error) {
	switch doc.Type() {
	case model.TypePageContent:
		stableKey, err := e.ensureStableKey(ctx, doc, "pageId", "page-")
		if err != nil {
			return nil, err
		}
		return e.fanOut(ctx, doc, stableKey, e.buildPageContent), nil
	case model.TypeNavigation:
		// Singleton: one navigation document per language.
		return e.fanOut(ctx, doc, model.TypeNavigation, e.buildNavigation), nil
	case model.TypeFooter:
		return e.fanOut(ctx, doc, model.TypeFooter, e.buildFooter), nil
	case model.TypeBlogPost:
		stableKey, err := e.EnsureMasterKey(ctx, doc)
		if err != nil {
			return nil, err
		}
		return e.fanOut(ctx, doc, stableKey, e.buildBlogPost), nil
	case model.TypePricingPlan:
		stableKey, err := e.ensureStableKey(ctx, doc, "planId", "plan-")
		if err != nil {
			return nil, err
		}
		return e.fanOut(ctx, doc, stableKey, e.buildPricingPlan), nil
	case model.TypeCategory, model.TypeTag:
		return e.patchTaxonomy(ctx, doc), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, doc.Type())
	}
}

// EnsureMasterKey returns the blog post's stable cross-language key,
// generating and patching one onto the source document when missing.
func (e *Engine) EnsureMasterKey(ctx context.Context, doc model.Document) (string, error) {
	return e.ensureStableKey(ctx, doc, "masterBlogId", "master-")
}

// ensureStableKey reads the document's stable cross-language key field. The
// key, not the store-assigned _id, addresses the document's language family:
// translated ids are <key>-<lang> and the manual-edit guard reads them, so a
// source whose _id differs from the key still converges on one document per
// language. A missing key is generated and patched onto the source.
func (e *Engine) ensureStableKey(ctx context.Context, doc model.Document, field, prefix string) (string, error) {
	if key := doc.String(field); key != "" {
		return key, nil
	}
	key := prefix + e.newID()
	if err := e.content.Patch(ctx, doc.ID(), map[string]any{field: key}); err != nil {
		return "", fmt.Errorf("patching %s: %w", field, err)
	}
	doc[field] = key
	e.logger.Info("generated stable key",
		"category", "translate", "doc_id", doc.ID(), "field", field, "key", key)
	return key, nil
}

// builderFn builds the translated field tree for one language. The engine
// decorates the result with identity and translation metadata.
type builderFn func(ctx context.Context, doc model.Document, lang string) (model.Document, error)

// fanOut translates a document into every target language concurrently.
func (e *Engine) fanOut(ctx context.Context, doc model.Document, stableKey string, build builderFn) []Result {
	targets := e.Targets(doc)
	results := make([]Result, len(targets))

	var wg sync.WaitGroup
	for i, lang := range targets {
		wg.Add(1)
		go func(i int, lang string) {
			defer wg.Done()
			results[i] = e.translateOne(ctx, doc, stableKey, lang, build)
		}(i, lang)
	}
	wg.Wait()

	return results
}

// translateOne runs the full per-language flow: manual-edit guard, build,
// decorate, conditional upsert.
func (e *Engine) translateOne(ctx context.Context, doc model.Document, stableKey, lang string, build builderFn) Result {
	targetID := model.TranslatedDocID(stableKey, lang)

	// Manual-edit guard: a reviewer who cleared autoTranslated owns the
	// document from then on.
	revision := ""
	existing, err := e.content.GetDocument(ctx, targetID)
	switch {
	case err == nil:
		if edited, ok := existing["autoTranslated"].(bool); ok && !edited {
			return Result{Language: lang, Status: StatusSkipped, DocID: targetID,
				Message: "manually edited, not overwriting"}
		}
		revision = existing.Rev()
	case errors.Is(err, content.ErrNotFound):
		// First translation into this language.
	default:
		return Result{Language: lang, Status: StatusError, DocID: targetID, Message: err.Error()}
	}

	body, err := build(ctx, doc, lang)
	if err != nil {
		return Result{Language: lang, Status: StatusError, DocID: targetID, Message: err.Error()}
	}

	body["_id"] = targetID
	body["language"] = lang
	body["autoTranslated"] = true
	body["translationStatus"] = model.TranslationStatusNeedsReview
	body["lastTranslated"] = e.now().UTC().Format(time.RFC3339)
	body["sourceDocument"] = model.Ref(content.PublishedID(doc.ID()))

	err = e.content.CreateOrReplace(ctx, body, content.MutateOptions{IfRevisionID: revision})
	switch {
	case errors.Is(err, content.ErrRevisionMismatch):
		return Result{Language: lang, Status: StatusConflict, DocID: targetID,
			Message: "document changed concurrently, not overwriting"}
	case err != nil:
		return Result{Language: lang, Status: StatusError, DocID: targetID, Message: err.Error()}
	}

	return Result{Language: lang, Status: StatusCreated, DocID: targetID}
}

// cloneForTarget copies a source document's fields, dropping store-managed
// identity so the engine can assign the target's own.
func cloneForTarget(doc model.Document) model.Document {
	out := make(model.Document, len(doc))
	for k, v := range doc {
		switch k {
		case "_id", "_rev", "_createdAt", "_updatedAt":
			continue
		}
		out[k] = v
	}
	return out
}

// buildPageContent walks each prose section of a landing page. Unknown
// top-level fields are carried over untouched.
func (e *Engine) buildPageContent(ctx context.Context, doc model.Document, lang string) (model.Document, error) {
	out := cloneForTarget(doc)
	for _, section := range pageSections {
		if v, ok := out[section]; ok && v != nil {
			out[section] = e.walker.Value(ctx, v, model.SourceLanguage, lang)
		}
	}
	return out, nil
}

// buildNavigation translates menu item labels and the CTA button text.
func (e *Engine) buildNavigation(ctx context.Context, doc model.Document, lang string) (model.Document, error) {
	out := cloneForTarget(doc)

	if items, ok := out["items"].([]any); ok {
		newItems := make([]any, len(items))
		for i, raw := range items {
			item, ok := raw.(map[string]any)
			if !ok {
				newItems[i] = raw
				continue
			}
			newItem := copyMap(item)
			if label, ok := item["label"].(string); ok {
				newItem["label"] = e.walker.String(ctx, label, model.SourceLanguage, lang)
			}
			newItems[i] = newItem
		}
		out["items"] = newItems
	}

	if cta, ok := out["ctaButton"].(map[string]any); ok {
		newCTA := copyMap(cta)
		if text, ok := cta["text"].(string); ok {
			newCTA["text"] = e.walker.String(ctx, text, model.SourceLanguage, lang)
		}
		out["ctaButton"] = newCTA
	}

	return out, nil
}

// buildFooter translates the footer's prose: tagline, column titles and
// link labels, copyright, legal link labels, and the newsletter block.
func (e *Engine) buildFooter(ctx context.Context, doc model.Document, lang string) (model.Document, error) {
	out := cloneForTarget(doc)

	for _, field := range []string{"tagline", "copyright"} {
		if s, ok := out[field].(string); ok {
			out[field] = e.walker.String(ctx, s, model.SourceLanguage, lang)
		}
	}

	if columns, ok := out["columns"].([]any); ok {
		newColumns := make([]any, len(columns))
		for i, raw := range columns {
			col, ok := raw.(map[string]any)
			if !ok {
				newColumns[i] = raw
				continue
			}
			newCol := copyMap(col)
			if title, ok := col["title"].(string); ok {
				newCol["title"] = e.walker.String(ctx, title, model.SourceLanguage, lang)
			}
			if links, ok := col["links"].([]any); ok {
				newCol["links"] = e.translateLabels(ctx, links, lang)
			}
			newColumns[i] = newCol
		}
		out["columns"] = newColumns
	}

	if legal, ok := out["legalLinks"].([]any); ok {
		out["legalLinks"] = e.translateLabels(ctx, legal, lang)
	}

	if newsletter, ok := out["newsletter"].(map[string]any); ok {
		newNL := copyMap(newsletter)
		for _, field := range []string{"title", "placeholder", "buttonText"} {
			if s, ok := newsletter[field].(string); ok {
				newNL[field] = e.walker.String(ctx, s, model.SourceLanguage, lang)
			}
		}
		out["newsletter"] = newNL
	}

	return out, nil
}

// translateLabels translates the label field of each link object in a list.
func (e *Engine) translateLabels(ctx context.Context, links []any, lang string) []any {
	out := make([]any, len(links))
	for i, raw := range links {
		link, ok := raw.(map[string]any)
		if !ok {
			out[i] = raw
			continue
		}
		newLink := copyMap(link)
		if label, ok := link["label"].(string); ok {
			newLink["label"] = e.walker.String(ctx, label, model.SourceLanguage, lang)
		}
		out[i] = newLink
	}
	return out
}

// buildBlogPost translates the post's prose and regenerates the slug from
// the translated title. Images, author and taxonomy references, and dates
// are carried over untouched.
func (e *Engine) buildBlogPost(ctx context.Context, doc model.Document, lang string) (model.Document, error) {
	out := cloneForTarget(doc)

	title := doc.String("title")
	translatedTitle := e.walker.String(ctx, title, model.SourceLanguage, lang)
	out["title"] = translatedTitle

	for _, field := range []string{"excerpt", "seoTitle", "seoDescription"} {
		if s, ok := out[field].(string); ok {
			out[field] = e.walker.String(ctx, s, model.SourceLanguage, lang)
		}
	}

	if blocks, ok := out["content"].([]any); ok {
		out["content"] = e.walker.Blocks(ctx, blocks, model.SourceLanguage, lang)
	}

	sourceSlug := ""
	if slug, ok := doc["slug"].(map[string]any); ok {
		sourceSlug, _ = slug["current"].(string)
	}
	out["slug"] = map[string]any{
		"_type":   "slug",
		"current": util.SlugifyTranslated(translatedTitle, sourceSlug),
	}

	return out, nil
}

// buildPricingPlan translates the plan name, feature list, and button text.
// Prices and billing identifiers never change.
func (e *Engine) buildPricingPlan(ctx context.Context, doc model.Document, lang string) (model.Document, error) {
	out := cloneForTarget(doc)

	for _, field := range []string{"name", "buttonText"} {
		if s, ok := out[field].(string); ok {
			out[field] = e.walker.String(ctx, s, model.SourceLanguage, lang)
		}
	}

	if features, ok := out["features"].([]any); ok {
		newFeatures := make([]any, len(features))
		for i, raw := range features {
			if s, ok := raw.(string); ok {
				newFeatures[i] = e.walker.String(ctx, s, model.SourceLanguage, lang)
			} else {
				newFeatures[i] = raw
			}
		}
		out["features"] = newFeatures
	}

	return out, nil
}

// patchTaxonomy fills missing language keys on a category or tag document's
// name and description objects. Existing values, including manual edits,
// are never touched; the patch happens in place on the source document.
func (e *Engine) patchTaxonomy(ctx context.Context, doc model.Document) []Result {
	targets := e.Targets(doc)
	results := make([]Result, len(targets))

	var wg sync.WaitGroup
	for i, lang := range targets {
		wg.Add(1)
		go func(i int, lang string) {
			defer wg.Done()
			results[i] = e.patchTaxonomyLanguage(ctx, doc, lang)
		}(i, lang)
	}
	wg.Wait()

	return results
}

func (e *Engine) patchTaxonomyLanguage(ctx context.Context, doc model.Document, lang string) Result {
	set := make(map[string]any)

	for _, field := range []string{"name", "description"} {
		values, ok := doc[field].(map[string]any)
		if !ok {
			continue
		}
		if existing, ok := values[lang].(string); ok && existing != "" {
			continue
		}
		source, ok := values[model.SourceLanguage].(string)
		if !ok || source == "" {
			continue
		}
		set[field+"."+lang] = e.walker.String(ctx, source, model.SourceLanguage, lang)
	}

	if len(set) == 0 {
		return Result{Language: lang, Status: StatusSkipped, DocID: doc.ID(),
			Message: "all language keys present"}
	}

	if err := e.content.Patch(ctx, doc.ID(), set); err != nil {
		return Result{Language: lang, Status: StatusError, DocID: doc.ID(), Message: err.Error()}
	}
	return Result{Language: lang, Status: StatusPatched, DocID: doc.ID()}
}

func copyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
