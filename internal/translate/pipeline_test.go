// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package translate

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/osync-go/internal/content"
	"github.com/olegiv/osync-go/internal/model"
)

// fakeContent is an in-memory content.Client.
type fakeContent struct {
	mu      sync.Mutex
	docs    map[string]model.Document
	patches map[string][]map[string]any
	// conflictOn forces a revision mismatch for a document id
	conflictOn string
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		docs:    make(map[string]model.Document),
		patches: make(map[string][]map[string]any),
	}
}

func (f *fakeContent) put(doc model.Document) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[doc.ID()] = doc
}

func (f *fakeContent) Fetch(ctx context.Context, query string, params map[string]any, out any) error {
	return content.ErrNotFound
}

func (f *fakeContent) GetDocument(_ context.Context, id string) (model.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, content.ErrNotFound
	}
	return doc, nil
}

func (f *fakeContent) CreateOrReplace(_ context.Context, doc model.Document, opts content.MutateOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conflictOn != "" && doc.ID() == f.conflictOn {
		return content.ErrRevisionMismatch
	}
	f.docs[doc.ID()] = doc
	return nil
}

func (f *fakeContent) Patch(_ context.Context, id string, set map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.patches[id] = append(f.patches[id], set)
	return nil
}

func testEngine(store *fakeContent, tr Translator) *Engine {
	return NewEngine(EngineConfig{
		Content:    store,
		Translator: tr,
		Logger:     quietLogger(),
	})
}

func resultByLang(t *testing.T, results []Result, lang string) Result {
	t.Helper()
	for _, r := range results {
		if r.Language == lang {
			return r
		}
	}
	t.Fatalf("no result for %s in %v", lang, results)
	return Result{}
}

func TestTranslateDocumentFanOut(t *testing.T) {
	store := newFakeContent()
	tr := &countingTranslator{}
	e := testEngine(store, tr)

	doc := model.Document{
		"_id":    "9f1c2ab4",
		"_type":  "pageContent",
		"_rev":   "r1",
		"pageId": "home",
		"hero": map[string]any{
			"headline": "Ship your product faster",
		},
	}

	results, err := e.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, results, len(model.TargetLanguages))

	for _, lang := range model.TargetLanguages {
		r := resultByLang(t, results, lang)
		assert.Equal(t, StatusCreated, r.Status)
		assert.Equal(t, "home-"+lang, r.DocID)

		out, err := store.GetDocument(context.Background(), r.DocID)
		require.NoError(t, err)
		assert.Equal(t, lang, out.Language())
		assert.Equal(t, "home", out["pageId"])
		assert.Equal(t, true, out["autoTranslated"])
		assert.Equal(t, model.TranslationStatusNeedsReview, out["translationStatus"])
		assert.NotEmpty(t, out["lastTranslated"])

		ref := out["sourceDocument"].(model.Reference)
		assert.Equal(t, "9f1c2ab4", ref.Ref)

		hero := out["hero"].(map[string]any)
		assert.Equal(t, "["+lang+"]Ship your product faster", hero["headline"])
	}
}

func TestTranslateDocumentDeterministicIDs(t *testing.T) {
	store := newFakeContent()
	e := testEngine(store, &countingTranslator{})

	doc := model.Document{
		"_id": "drafts.9f1c2ab4", "_type": "pageContent", "pageId": "home",
		"hero": map[string]any{"headline": "Hello out there"},
	}

	// Draft or published, the same stable key addresses the same targets
	results, err := e.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)
	r := resultByLang(t, results, "es")
	assert.Equal(t, "home-es", r.DocID)

	// Running twice overwrites the same documents
	results2, err := e.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, r.DocID, resultByLang(t, results2, "es").DocID)
}

func TestStableKeyGeneratedWhenMissing(t *testing.T) {
	store := newFakeContent()
	e := testEngine(store, &countingTranslator{})
	e.newID = func() string { return "fixed-uuid" }

	doc := model.Document{
		"_id": "9f1c2ab4", "_type": "pageContent",
		"hero": map[string]any{"headline": "Some headline"},
	}

	results, err := e.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)

	// The generated key was patched onto the source and used for targets
	require.Len(t, store.patches["9f1c2ab4"], 1)
	assert.Equal(t, "page-fixed-uuid", store.patches["9f1c2ab4"][0]["pageId"])
	assert.Equal(t, "page-fixed-uuid-es", resultByLang(t, results, "es").DocID)
}

func TestManualEditGuard(t *testing.T) {
	store := newFakeContent()
	tr := &countingTranslator{}
	e := testEngine(store, tr)

	// A reviewer took ownership of the Spanish page
	store.put(model.Document{
		"_id":            "home-es",
		"_rev":           "r9",
		"autoTranslated": false,
		"hero":           map[string]any{"headline": "Texto revisado a mano"},
	})

	// The source's store id differs from its stable key; the guard must
	// still find the reviewer's document.
	doc := model.Document{
		"_id": "b2f9c7e1", "_type": "pageContent", "pageId": "home",
		"hero": map[string]any{"headline": "Fresh source text"},
	}

	results, err := e.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)

	es := resultByLang(t, results, "es")
	assert.Equal(t, StatusSkipped, es.Status)

	// The manually edited document is untouched
	kept, _ := store.GetDocument(context.Background(), "home-es")
	hero := kept["hero"].(map[string]any)
	assert.Equal(t, "Texto revisado a mano", hero["headline"])

	// No second document keyed on the store id for the same language
	_, err = store.GetDocument(context.Background(), "b2f9c7e1-es")
	assert.ErrorIs(t, err, content.ErrNotFound)

	// Other languages still ran
	assert.Equal(t, StatusCreated, resultByLang(t, results, "fr").Status)
}

func TestRevisionConflictReported(t *testing.T) {
	store := newFakeContent()
	store.conflictOn = "home-de"
	e := testEngine(store, &countingTranslator{})

	doc := model.Document{
		"_id": "page-home", "_type": "pageContent", "pageId": "home",
		"hero": map[string]any{"headline": "Some headline"},
	}

	results, err := e.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, StatusConflict, resultByLang(t, results, "de").Status)
	assert.Equal(t, StatusCreated, resultByLang(t, results, "es").Status)
}

func TestTargetsRespectPublishList(t *testing.T) {
	e := testEngine(newFakeContent(), &countingTranslator{})

	doc := model.Document{
		"_id": "page-x", "_type": "pageContent",
		"languageSettings": map[string]any{
			"publishToLanguages": []any{"es", "fr", "xx"},
		},
	}

	got := e.Targets(doc)
	assert.Equal(t, []string{"es", "fr"}, got, "unknown codes are dropped")

	// No settings means the full set
	assert.Equal(t, model.TargetLanguages, e.Targets(model.Document{"_id": "y"}))
}

func TestUnsupportedType(t *testing.T) {
	e := testEngine(newFakeContent(), &countingTranslator{})

	_, err := e.TranslateDocument(context.Background(), model.Document{
		"_id": "x", "_type": "siteSettings",
	})
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestEnsureMasterKey(t *testing.T) {
	store := newFakeContent()
	e := testEngine(store, &countingTranslator{})
	e.newID = func() string { return "fixed-uuid" }

	doc := model.Document{"_id": "blog-1", "_type": "blogPost", "title": "A post title"}
	key, err := e.EnsureMasterKey(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, "master-fixed-uuid", key)

	// The key was patched onto the source document
	require.Len(t, store.patches["blog-1"], 1)
	assert.Equal(t, "master-fixed-uuid", store.patches["blog-1"][0]["masterBlogId"])

	// An existing key is reused, no second patch
	key2, err := e.EnsureMasterKey(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, key, key2)
	assert.Len(t, store.patches["blog-1"], 1)
}

func TestBlogPostTranslation(t *testing.T) {
	store := newFakeContent()
	e := testEngine(store, &countingTranslator{})
	e.newID = func() string { return "m1" }

	doc := model.Document{
		"_id":     "blog-1",
		"_type":   "blogPost",
		"title":   "Getting started quickly",
		"excerpt": "A short intro",
		"slug":    map[string]any{"_type": "slug", "current": "getting-started-quickly"},
		"author":  map[string]any{"_type": "reference", "_ref": "author-1"},
		"content": []any{
			map[string]any{
				"_type": "block",
				"children": []any{
					map[string]any{"_type": "span", "text": "Body paragraph"},
				},
			},
		},
		"publishedAt": "2026-01-01T00:00:00Z",
	}

	results, err := e.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)

	es := resultByLang(t, results, "es")
	require.Equal(t, StatusCreated, es.Status)
	assert.Equal(t, "master-m1-es", es.DocID)

	out, err := store.GetDocument(context.Background(), es.DocID)
	require.NoError(t, err)
	assert.Equal(t, "[es]Getting started quickly", out["title"])
	assert.Equal(t, "[es]A short intro", out["excerpt"])

	slug := out["slug"].(map[string]any)
	assert.Equal(t, "esgetting-started-quickly", slug["current"])

	// References and dates carried over
	assert.Equal(t, doc["author"], out["author"])
	assert.Equal(t, "2026-01-01T00:00:00Z", out["publishedAt"])

	block := out["content"].([]any)[0].(map[string]any)
	span := block["children"].([]any)[0].(map[string]any)
	assert.Equal(t, "[es]Body paragraph", span["text"])
}

func TestPricingPlanPreservesPrices(t *testing.T) {
	store := newFakeContent()
	e := testEngine(store, &countingTranslator{})

	doc := model.Document{
		"_id":           "d8f3e2c1",
		"_type":         "pricingPlan",
		"planId":        "plan-pro",
		"name":          "Professional",
		"buttonText":    "Start free trial",
		"features":      []any{"Unlimited projects", "Priority support"},
		"monthlyPrice":  float64(49),
		"stripePriceId": "price_abc123",
	}

	results, err := e.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, StatusCreated, resultByLang(t, results, "fr").Status)

	out, _ := store.GetDocument(context.Background(), "plan-pro-fr")
	assert.Equal(t, "plan-pro", out["planId"])
	assert.Equal(t, "[fr]Professional", out["name"])
	assert.Equal(t, "[fr]Start free trial", out["buttonText"])
	assert.Equal(t, float64(49), out["monthlyPrice"])
	assert.Equal(t, "price_abc123", out["stripePriceId"])

	features := out["features"].([]any)
	assert.Equal(t, "[fr]Unlimited projects", features[0])
}

func TestTaxonomyFillsMissingKeysOnly(t *testing.T) {
	store := newFakeContent()
	e := testEngine(store, &countingTranslator{})

	doc := model.Document{
		"_id":   "category-guides",
		"_type": "category",
		"name": map[string]any{
			"en": "Guides",
			"es": "Guías", // already present, never overwritten
		},
		"description": map[string]any{
			"en": "Long-form guides",
		},
	}

	results, err := e.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)

	es := resultByLang(t, results, "es")
	assert.Equal(t, StatusPatched, es.Status)

	fr := resultByLang(t, results, "fr")
	assert.Equal(t, StatusPatched, fr.Status)

	// Collect all patched keys for the document
	patched := make(map[string]any)
	for _, set := range store.patches["category-guides"] {
		for k, v := range set {
			patched[k] = v
		}
	}
	assert.NotContains(t, patched, "name.es", "existing key must not be overwritten")
	assert.Equal(t, "[es]Long-form guides", patched["description.es"])
	assert.Equal(t, "[fr]Guides", patched["name.fr"])
	assert.Equal(t, "[fr]Long-form guides", patched["description.fr"])
}

func TestFooterTranslation(t *testing.T) {
	store := newFakeContent()
	e := testEngine(store, &countingTranslator{})

	doc := model.Document{
		"_id":      "footer-main",
		"_type":    "footer",
		"tagline":  "Build something great",
		"copyright": "All rights reserved",
		"columns": []any{
			map[string]any{
				"title": "Product",
				"links": []any{
					map[string]any{"label": "Pricing", "href": "/pricing"},
				},
			},
		},
		"legalLinks": []any{
			map[string]any{"label": "Privacy Policy", "href": "/privacy"},
		},
		"newsletter": map[string]any{
			"title":       "Stay in the loop",
			"placeholder": "Your email",
			"buttonText":  "Subscribe",
		},
	}

	results, err := e.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)
	de := resultByLang(t, results, "de")
	require.Equal(t, StatusCreated, de.Status)

	// Footer is a singleton: one fixed id per language
	assert.Equal(t, "footer-de", de.DocID)
	out, _ := store.GetDocument(context.Background(), "footer-de")
	assert.Equal(t, "[de]Build something great", out["tagline"])

	col := out["columns"].([]any)[0].(map[string]any)
	assert.Equal(t, "[de]Product", col["title"])
	link := col["links"].([]any)[0].(map[string]any)
	assert.Equal(t, "[de]Pricing", link["label"])
	assert.Equal(t, "/pricing", link["href"])

	legal := out["legalLinks"].([]any)[0].(map[string]any)
	assert.Equal(t, "[de]Privacy Policy", legal["label"])

	nl := out["newsletter"].(map[string]any)
	assert.Equal(t, "[de]Subscribe", nl["buttonText"])
}

func TestNavigationTranslation(t *testing.T) {
	store := newFakeContent()
	e := testEngine(store, &countingTranslator{})

	doc := model.Document{
		"_id":   "nav-main",
		"_type": "navigation",
		"items": []any{
			map[string]any{"label": "Features", "href": "/features"},
			map[string]any{"label": "Pricing", "href": "/pricing"},
		},
		"ctaButton": map[string]any{"text": "Get started", "href": "/signup"},
	}

	results, err := e.TranslateDocument(context.Background(), doc)
	require.NoError(t, err)
	zh := resultByLang(t, results, "zh")
	require.Equal(t, StatusCreated, zh.Status)
	assert.Equal(t, "navigation-zh", zh.DocID)

	out, _ := store.GetDocument(context.Background(), "navigation-zh")
	items := out["items"].([]any)
	first := items[0].(map[string]any)
	assert.Equal(t, "[zh]Features", first["label"])
	assert.Equal(t, "/features", first["href"])

	cta := out["ctaButton"].(map[string]any)
	assert.Equal(t, "[zh]Get started", cta["text"])
	assert.Equal(t, "/signup", cta["href"])
}
