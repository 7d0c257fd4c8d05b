package guards

import (
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// importViolations reports lines under dir that import any of the forbidden
// package prefixes. Files whose path contains an allowed substring are skipped.
func importViolations(t *testing.T, dir string, forbidden, allowed []string) []string {
	t.Helper()
	repoRoot := findRepoRoot(t)

	var violations []string
	walkSources(t, repoRoot, filepath.Join(repoRoot, dir), func(rel, content string) {
		for _, allow := range allowed {
			if strings.Contains(rel, allow) {
				return
			}
		}
		for i, line := range strings.Split(content, "\n") {
			trimmed := strings.TrimSpace(line)
			for _, prefix := range forbidden {
				if strings.Contains(trimmed, `"`+modulePath+"/"+prefix) {
					violations = append(violations, rel+":"+strconv.Itoa(i+1)+": "+trimmed)
				}
			}
		}
	})
	return violations
}

// TestPlatformDoesNotImportComponents enforces that infrastructure stays
// domain-free. platform/deps is the one place that ties them together.
func TestPlatformDoesNotImportComponents(t *testing.T) {
	violations := importViolations(t, "internal/platform",
		[]string{"internal/components", "internal/services"},
		[]string{"internal/platform/deps/", "internal/platform/http/server/"},
	)
	if len(violations) > 0 {
		t.Fatalf("platform packages must not import components or services:\n%s",
			strings.Join(violations, "\n"))
	}
}

// TestServerDoesNotImportServices keeps the server generic: services arrive
// through the registry, never by direct import.
func TestServerDoesNotImportServices(t *testing.T) {
	violations := importViolations(t, "internal/platform/http/server",
		[]string{"internal/services"}, nil)
	if len(violations) > 0 {
		t.Fatalf("server must receive services through the registry:\n%s",
			strings.Join(violations, "\n"))
	}
}

// TestDiscoveryDoesNotImportTransport enforces that discovery components are
// usable without HTTP handlers. The dependency direction is services -> components.
func TestDiscoveryDoesNotImportTransport(t *testing.T) {
	for _, dir := range []string{"internal/components/inboxes", "internal/components/linkeddata", "internal/components/i18n"} {
		violations := importViolations(t, dir,
			[]string{"internal/components/api", "internal/services", "internal/interceptors", "internal/platform/deps"},
			nil,
		)
		if len(violations) > 0 {
			t.Errorf("%s must not import transport packages:\n%s", dir, strings.Join(violations, "\n"))
		}
	}
}
