package interceptors

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
)

// headerInterceptor marks responses so tests can tell which constructor ran.
func headerInterceptor(value string) NewInterceptor {
	return func(conf map[string]any, log *slog.Logger) (Middleware, error) {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("X-Interceptor", value)
				next.ServeHTTP(w, r)
			})
		}, nil
	}
}

func marker(t *testing.T, fn NewInterceptor) string {
	t.Helper()
	mw, err := fn(nil, nil)
	if err != nil {
		t.Fatalf("constructor: %v", err)
	}
	rec := httptest.NewRecorder()
	mw(http.NotFoundHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/inboxes/discover", nil))
	return rec.Header().Get("X-Interceptor")
}

func TestRegistry_LaterRegistrationWins(t *testing.T) {
	Register("registry-test-replace", headerInterceptor("first"))
	Register("registry-test-replace", headerInterceptor("second"))

	fn, ok := Get("registry-test-replace")
	if !ok {
		t.Fatal("registered interceptor not found")
	}
	if got := marker(t, fn); got != "second" {
		t.Errorf("X-Interceptor = %q, want second", got)
	}
}

func TestRegistry_UnknownName(t *testing.T) {
	if fn, ok := Get("registry-test-missing"); ok || fn != nil {
		t.Errorf("Get(missing) = %v, %v", fn, ok)
	}
}

func TestRegistry_NamesSorted(t *testing.T) {
	Register("registry-test-zeta", headerInterceptor("z"))
	Register("registry-test-alpha", headerInterceptor("a"))

	names := Names()
	if !slices.IsSorted(names) {
		t.Errorf("Names() not sorted: %v", names)
	}
	for _, want := range []string{"registry-test-alpha", "registry-test-zeta"} {
		if !slices.Contains(names, want) {
			t.Errorf("Names() missing %q: %v", want, names)
		}
	}
}
