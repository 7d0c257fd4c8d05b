package inboxes

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/MahdiBaghbani/podinbox-go/internal/components/api"
	"github.com/MahdiBaghbani/podinbox-go/internal/components/i18n"
	discovery "github.com/MahdiBaghbani/podinbox-go/internal/components/inboxes"
	"github.com/MahdiBaghbani/podinbox-go/internal/components/linkeddata"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/cache/memory"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/config"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/deps"
	httpclient "github.com/MahdiBaghbani/podinbox-go/internal/platform/http/client"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/metrics"
	"github.com/MahdiBaghbani/podinbox-go/internal/platform/store"
	storememory "github.com/MahdiBaghbani/podinbox-go/internal/platform/store/memory"

	// Register the ratelimit interceptor
	_ "github.com/MahdiBaghbani/podinbox-go/internal/interceptors/ratelimit"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePod serves Turtle documents by path. {origin} in a body is replaced with the server URL.
func fakePod(t *testing.T, docs map[string]string, status map[string]int) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code, ok := status[r.URL.Path]; ok {
			w.WriteHeader(code)
			return
		}
		body, ok := docs[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/turtle")
		w.Write([]byte(strings.ReplaceAll(body, "{origin}", srv.URL)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

type testEnv struct {
	handler http.Handler
	runs    store.RunStore
	metrics *metrics.Metrics
}

// setup wires the service against real discovery components and returns its handler.
func setup(t *testing.T, cfg *config.Config, svcConf map[string]any) *testEnv {
	t.Helper()

	outbound := config.OutboundHTTPConfigStrict()
	outbound.SSRFMode = "off"
	docs := linkeddata.NewFetcher(httpclient.New(&outbound), nil)

	drv, err := storememory.NewDriver(&store.DriverConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	m := metrics.New()

	agg := discovery.NewAggregator(
		discovery.NewStorageResolver(docs, nil),
		discovery.NewInboxDiscoverer(docs, nil),
		nil,
		discovery.WithObserver(discovery.Observers(MetricsObserver(m), NewRunRecorder(drv, nil))),
	)

	if cfg == nil {
		cfg = config.DevConfig()
	}
	counters := memory.New(time.Minute, time.Minute)
	t.Cleanup(func() { counters.Close() })

	deps.ResetDeps()
	t.Cleanup(deps.ResetDeps)
	deps.SetDeps(&deps.Deps{
		Aggregator: agg,
		Catalog:    i18n.MustLoadEmbedded(),
		Runs:       drv,
		Metrics:    m,
		Config:     cfg,
		Counters:   counters,
		RealIP:     realip.NewTrustedProxies(nil),
	})

	svc, err := New(svcConf, testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testEnv{handler: svc.Handler(), runs: drv, metrics: m}
}

func (e *testEnv) get(t *testing.T, target string, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func discoverPath(webID string, extra ...string) string {
	q := url.Values{WebIDParam: {webID}}
	for i := 0; i+1 < len(extra); i += 2 {
		q.Set(extra[i], extra[i+1])
	}
	return "/discover?" + q.Encode()
}

const (
	cardBoth = `@prefix ldp: <http://www.w3.org/ns/ldp#> .
@prefix pim: <http://www.w3.org/ns/pim/space#> .
<#me> ldp:inbox </inbox/> ;
    pim:storage </> .
`
	settings = `<> <http://www.w3.org/ns/ldp#inbox> <tictactoe/inbox/> .`
	cardBare = `<#me> <http://xmlns.com/foaf/0.1/name> "Alice" .`
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) discoverResponse {
	t.Helper()
	var body discoverResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestDiscover_BothInboxes(t *testing.T) {
	pod := fakePod(t, map[string]string{"/profile/card": cardBoth, "/settings.ttl": settings}, nil)
	env := setup(t, nil, nil)

	rec := env.get(t, discoverPath(pod.URL+"/profile/card#me"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := decode(t, rec)

	want := []discovery.Descriptor{
		{Path: pod.URL + "/inbox/", InboxName: "Global", Shape: discovery.ShapeDefault},
		{Path: pod.URL + "/tictactoe/inbox/", InboxName: "Tic Tac Toe", Shape: discovery.ShapeDefault},
	}
	if len(body.Inboxes) != len(want) {
		t.Fatalf("inboxes = %+v, want %+v", body.Inboxes, want)
	}
	for i := range want {
		if body.Inboxes[i] != want[i] {
			t.Errorf("inboxes[%d] = %+v, want %+v", i, body.Inboxes[i], want[i])
		}
	}
	if body.RunID == "" {
		t.Error("expected run_id")
	}
	if body.Signal != nil {
		t.Errorf("unexpected signal %+v", body.Signal)
	}
	if got := rec.Header().Get("Content-Language"); got != "en-US" {
		t.Errorf("Content-Language = %q", got)
	}
}

func TestDiscover_TranslatedLabels(t *testing.T) {
	pod := fakePod(t, map[string]string{"/profile/card": cardBoth, "/settings.ttl": settings}, nil)
	env := setup(t, nil, nil)

	rec := env.get(t, discoverPath(pod.URL+"/profile/card#me", "lang", "es"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	if len(body.Inboxes) != 2 || body.Inboxes[1].InboxName != "Tres en raya" {
		t.Errorf("inboxes = %+v, want Spanish app label", body.Inboxes)
	}
}

func TestDiscover_NoInboxSignal(t *testing.T) {
	pod := fakePod(t, map[string]string{"/profile/card": cardBare}, nil)
	env := setup(t, nil, nil)

	rec := env.get(t, discoverPath(pod.URL+"/profile/card#me"), http.Header{"Accept-Language": {"es-ES"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"inboxes":[]`) {
		t.Errorf("body %s: want an explicit empty inboxes list", rec.Body)
	}
	body := decode(t, rec)
	if body.Signal != nil && body.Signal.Title != "Error" {
		t.Errorf("signal title = %q, want %q", body.Signal.Title, "Error")
	}
	if body.Inboxes == nil || len(body.Inboxes) != 0 {
		t.Errorf("inboxes = %v, want empty list", body.Inboxes)
	}
	if body.Signal == nil || body.Signal.Kind != discovery.SignalNoInbox {
		t.Fatalf("signal = %+v, want no-inbox", body.Signal)
	}
	if body.Signal.Guidance == nil || body.Signal.Guidance.Label != "Cómo crear un buzón" {
		t.Errorf("guidance = %+v", body.Signal.Guidance)
	}
}

func TestDiscover_FaultWhenNothingFoundAndStageFailed(t *testing.T) {
	pod := fakePod(t, nil, map[string]int{"/profile/card": http.StatusServiceUnavailable})
	env := setup(t, nil, nil)

	rec := env.get(t, discoverPath(pod.URL+"/profile/card#me"), nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502; body %s", rec.Code, rec.Body)
	}
	if strings.Contains(rec.Body.String(), `"inboxes"`) {
		t.Errorf("fault body %s carries an inboxes list", rec.Body)
	}
	body := decode(t, rec)
	if body.Signal == nil || body.Signal.Kind != discovery.SignalDiscoveryFault {
		t.Fatalf("signal = %+v, want discovery-fault", body.Signal)
	}
	if body.Signal.Title != "Error fetching inboxes" {
		t.Errorf("title = %q", body.Signal.Title)
	}
	if len(body.Failures) == 0 {
		t.Error("expected failures in fault response")
	}

	got, err := env.runs.GetRun(context.Background(), body.RunID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Outcome != string(discovery.OutcomeFault) || got.SignalKind != string(discovery.SignalDiscoveryFault) {
		t.Errorf("record = %+v", got)
	}
	if got.State != string(discovery.StateFailed) {
		t.Errorf("state = %q, want failed", got.State)
	}
}

func TestDiscover_PartialResultKeepsFailures(t *testing.T) {
	pod := fakePod(t,
		map[string]string{"/profile/card": cardBoth},
		map[string]int{"/settings.ttl": http.StatusInternalServerError},
	)
	env := setup(t, nil, nil)

	rec := env.get(t, discoverPath(pod.URL+"/profile/card#me"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	body := decode(t, rec)
	if len(body.Inboxes) != 1 || body.Inboxes[0].Path != pod.URL+"/inbox/" {
		t.Errorf("inboxes = %+v, want global only", body.Inboxes)
	}
	if len(body.Failures) != 1 || body.Failures[0].Stage != discovery.StageApp {
		t.Errorf("failures = %+v, want one app failure", body.Failures)
	}
}

func TestDiscover_BadRequests(t *testing.T) {
	env := setup(t, nil, nil)

	tests := []struct {
		name       string
		target     string
		wantReason string
	}{
		{"missing webid", "/discover", api.ReasonMissingField},
		{"blank webid", "/discover?webid=%20", api.ReasonMissingField},
		{"relative webid", discoverPath("/profile/card#me"), api.ReasonInvalidIdentity},
		{"ftp webid", discoverPath("ftp://pod.example/card#me"), api.ReasonInvalidIdentity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.get(t, tt.target, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
			var envelope api.ErrorEnvelope
			if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if envelope.Error.ReasonCode != tt.wantReason {
				t.Errorf("reason_code = %q, want %q", envelope.Error.ReasonCode, tt.wantReason)
			}
		})
	}
}

func TestGetRun(t *testing.T) {
	pod := fakePod(t, map[string]string{"/profile/card": cardBoth, "/settings.ttl": settings}, nil)
	env := setup(t, nil, nil)

	body := decode(t, env.get(t, discoverPath(pod.URL+"/profile/card#me"), nil))

	rec := env.get(t, "/runs/"+body.RunID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var run store.RunRecord
	if err := json.NewDecoder(rec.Body).Decode(&run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.Outcome != string(discovery.OutcomeFound) || run.InboxCount != 2 {
		t.Errorf("run = %+v", run)
	}
	if run.State != string(discovery.StateDone) {
		t.Errorf("state = %q, want done", run.State)
	}
	if run.StartedAt == 0 || run.FinishedAt < run.StartedAt {
		t.Errorf("timestamps = %d..%d", run.StartedAt, run.FinishedAt)
	}

	if rec := env.get(t, "/runs/does-not-exist", nil); rec.Code != http.StatusNotFound {
		t.Errorf("unknown run status = %d, want 404", rec.Code)
	}
}

func TestDiscover_RateLimitProfile(t *testing.T) {
	cfg := config.DevConfig()
	cfg.HTTP.Interceptors = map[string]map[string]any{
		"ratelimit": {
			"profiles": map[string]any{
				"discover": map[string]any{"requests_per_window": 1, "window_seconds": 60},
			},
		},
	}
	env := setup(t, cfg, map[string]any{"ratelimit": map[string]any{"profile": "discover"}})

	// Invalid identity is cheap and still counts against the limit.
	target := discoverPath("not-a-url")
	if rec := env.get(t, target, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("first request status = %d, want 400", rec.Code)
	}
	if rec := env.get(t, target, nil); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status = %d, want 429", rec.Code)
	}
	// Health is not limited.
	if rec := env.get(t, "/healthz", nil); rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}
}

func TestNew_UnknownRatelimitProfile(t *testing.T) {
	setup(t, nil, nil)
	if _, err := New(map[string]any{"ratelimit": map[string]any{"profile": "missing"}}, testLogger()); err == nil {
		t.Fatal("expected error for undefined profile")
	}
}

func TestConfig_RunTimeoutDefault(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	if c.RunTimeout != 30*time.Second {
		t.Errorf("RunTimeout = %v", c.RunTimeout)
	}
}
