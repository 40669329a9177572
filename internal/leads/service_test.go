package leads

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/osync-go/internal/content"
	"github.com/olegiv/osync-go/internal/model"
	"github.com/olegiv/osync-go/internal/store"
	"github.com/olegiv/osync-go/internal/webhook"
)

// stubContent serves a fixed set of lead form configs keyed by formId.
type stubContent struct {
	forms map[string]model.LeadFormConfig
}

func (s *stubContent) Fetch(_ context.Context, _ string, params map[string]any, out any) error {
	formID, _ := params["formId"].(string)
	form, ok := s.forms[formID]
	if !ok {
		return content.ErrNotFound
	}
	data, err := json.Marshal(form)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, out)
}

func (s *stubContent) GetDocument(_ context.Context, _ string) (model.Document, error) {
	return nil, content.ErrNotFound
}

func (s *stubContent) CreateOrReplace(_ context.Context, _ model.Document, _ content.MutateOptions) error {
	return nil
}

func (s *stubContent) Patch(_ context.Context, _ string, _ map[string]any) error {
	return nil
}

func testService(t *testing.T, forms map[string]model.LeadFormConfig) (*Service, *store.Queries) {
	t.Helper()

	db, err := store.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(db))

	deliverer := webhook.NewDeliverer()
	deliverer.ValidateURL = func(string) error { return nil }

	queries := store.New(db)
	svc := NewService(&stubContent{forms: forms}, queries, deliverer, slog.New(slog.DiscardHandler))
	svc.now = func() time.Time { return time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC) }
	return svc, queries
}

func demoForm() model.LeadFormConfig {
	return model.LeadFormConfig{
		FormID:         "demo-request",
		Name:           "Demo Request",
		SuccessAction:  model.SuccessActionMessage,
		SuccessMessage: "Thanks, we will be in touch.",
	}
}

func TestProcessValidation(t *testing.T) {
	svc, _ := testService(t, map[string]model.LeadFormConfig{"demo-request": demoForm()})
	ctx := context.Background()

	_, err := svc.Process(ctx, SubmissionRequest{Data: map[string]string{"email": "a@b.com"}}, RequestMeta{})
	assert.ErrorIs(t, err, ErrMissingFormID)

	_, err = svc.Process(ctx, SubmissionRequest{FormID: "demo-request"}, RequestMeta{})
	assert.ErrorIs(t, err, ErrMissingData)

	_, err = svc.Process(ctx, SubmissionRequest{
		FormID: "nope",
		Data:   map[string]string{"email": "a@b.com"},
	}, RequestMeta{})
	assert.ErrorIs(t, err, ErrFormNotFound)
}

func TestProcessRoundTrip(t *testing.T) {
	svc, queries := testService(t, map[string]model.LeadFormConfig{"demo-request": demoForm()})

	resp, err := svc.Process(context.Background(), SubmissionRequest{
		FormID: "demo-request",
		Data: map[string]string{
			"email":   "a@b.com",
			"name":    "Ada",
			"company": "Initech",
			"role":    "CTO",
		},
		Context: model.LeadContext{Plan: "pro", UTMSource: "newsletter"},
	}, RequestMeta{
		IP:        "203.0.113.9",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
	})
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, "Thanks, we will be in touch.", resp.Message)
	assert.Empty(t, resp.Redirect)
	require.NotEmpty(t, resp.SubmissionID)

	sub, err := queries.GetLeadSubmissionByID(context.Background(), resp.SubmissionID)
	require.NoError(t, err)
	assert.Equal(t, model.LeadStatusNew, sub.Status)
	assert.Equal(t, "a@b.com", sub.Email)
	assert.Equal(t, "Ada", sub.Name)
	assert.Equal(t, "Initech", sub.Company)
	assert.Equal(t, "203.0.113.9", sub.IP)
	assert.Equal(t, "Chrome", sub.Browser)
	assert.Equal(t, "desktop", sub.DeviceType)
	assert.Equal(t, map[string]string{"role": "CTO"}, sub.GetAdditionalFields())
	assert.Equal(t, "pro", sub.GetContext().Plan)
}

func TestProcessSanitizesFreeText(t *testing.T) {
	svc, queries := testService(t, map[string]model.LeadFormConfig{"demo-request": demoForm()})

	resp, err := svc.Process(context.Background(), SubmissionRequest{
		FormID: "demo-request",
		Data: map[string]string{
			"email":   "a@b.com",
			"name":    `<script>alert(1)</script>Ada`,
			"message": `Hello <img src=x onerror=alert(1)> world`,
		},
	}, RequestMeta{})
	require.NoError(t, err)

	sub, err := queries.GetLeadSubmissionByID(context.Background(), resp.SubmissionID)
	require.NoError(t, err)
	assert.NotContains(t, sub.Name, "<script>")
	assert.Contains(t, sub.Name, "Ada")
	assert.NotContains(t, sub.Message, "<img")
}

func TestProcessRedirectPlaceholders(t *testing.T) {
	form := demoForm()
	form.SuccessAction = model.SuccessActionRedirect
	form.RedirectURL = "https://x.com/{plan}/{email}"
	svc, _ := testService(t, map[string]model.LeadFormConfig{"demo-request": form})

	resp, err := svc.Process(context.Background(), SubmissionRequest{
		FormID:  "demo-request",
		Data:    map[string]string{"email": "a@b.com"},
		Context: model.LeadContext{Plan: "pro"},
	}, RequestMeta{})
	require.NoError(t, err)

	assert.Equal(t, "https://x.com/pro/a%40b.com", resp.Redirect)
	assert.Empty(t, resp.Message)
}

func TestProcessRedirectContextParams(t *testing.T) {
	form := demoForm()
	form.SuccessAction = model.SuccessActionAppRedirect
	form.RedirectURL = "https://app.example.com/signup"
	form.PassContextToRedirect = true
	svc, _ := testService(t, map[string]model.LeadFormConfig{"demo-request": form})

	resp, err := svc.Process(context.Background(), SubmissionRequest{
		FormID: "demo-request",
		Data:   map[string]string{"email": "a@b.com"},
		Context: model.LeadContext{
			Plan:        "pro",
			Source:      "pricing",
			UTMSource:   "newsletter",
			UTMMedium:   "email",
			UTMCampaign: "launch",
		},
	}, RequestMeta{})
	require.NoError(t, err)

	parsed, err := url.Parse(resp.Redirect)
	require.NoError(t, err)
	query := parsed.Query()
	assert.Equal(t, "pro", query.Get("plan"))
	assert.Equal(t, "pricing", query.Get("source"))
	assert.Equal(t, "newsletter", query.Get("utm_source"))
	assert.Equal(t, "email", query.Get("utm_medium"))
	assert.Equal(t, "launch", query.Get("utm_campaign"))
	assert.Equal(t, "a@b.com", query.Get("email"))
}

func TestProcessFiresWebhooks(t *testing.T) {
	var received map[string]any
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Webhook-Signature")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	form := demoForm()
	form.Webhooks = []model.WebhookDestination{
		{Name: "crm", URL: srv.URL, Enabled: true, SecretKey: "mysecret"},
		{Name: "disabled", URL: srv.URL + "/never", Enabled: false},
	}
	svc, queries := testService(t, map[string]model.LeadFormConfig{"demo-request": form})

	resp, err := svc.Process(context.Background(), SubmissionRequest{
		FormID:  "demo-request",
		Data:    map[string]string{"email": "a@b.com", "name": "Ada"},
		Context: model.LeadContext{Plan: "pro"},
	}, RequestMeta{IP: "203.0.113.9", UserAgent: "curl/8.0"})
	require.NoError(t, err)

	require.NotNil(t, received)
	assert.Equal(t, "demo-request", received["formId"])
	assert.Equal(t, resp.SubmissionID, received["submissionId"])
	payloadCtx := received["context"].(map[string]any)
	assert.Equal(t, "pro", payloadCtx["plan"])
	assert.Equal(t, "203.0.113.9", payloadCtx["ip"])
	assert.Equal(t, "curl/8.0", payloadCtx["userAgent"])
	assert.True(t, strings.HasPrefix(gotSig, "sha256="))

	sub, err := queries.GetLeadSubmissionByID(context.Background(), resp.SubmissionID)
	require.NoError(t, err)
	results := sub.GetWebhookResults()
	require.Len(t, results, 1, "disabled destinations are not delivered")
	assert.Equal(t, "crm", results[0].Destination)
	assert.True(t, results[0].Success)
	assert.Equal(t, http.StatusOK, results[0].StatusCode)
}

func TestProcessEnqueuesFailedWebhook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	form := demoForm()
	form.Webhooks = []model.WebhookDestination{
		{Name: "crm", URL: srv.URL, Enabled: true},
	}
	svc, queries := testService(t, map[string]model.LeadFormConfig{"demo-request": form})

	resp, err := svc.Process(context.Background(), SubmissionRequest{
		FormID: "demo-request",
		Data:   map[string]string{"email": "a@b.com"},
	}, RequestMeta{})
	require.NoError(t, err)

	sub, err := queries.GetLeadSubmissionByID(context.Background(), resp.SubmissionID)
	require.NoError(t, err)
	results := sub.GetWebhookResults()
	require.Len(t, results, 1)
	assert.False(t, results[0].Success)

	due, err := queries.ListDueWebhookDeliveries(context.Background(), time.Now().Add(2*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, resp.SubmissionID, due[0].SubmissionID)
	assert.Equal(t, "crm", due[0].Destination)
	assert.EqualValues(t, 1, due[0].Attempts)
}
