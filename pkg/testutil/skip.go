// Package testutil holds helpers for the container-backed integration tests.
package testutil

import (
	"os"
	"testing"
)

// IntegrationEnv forces integration tests to run on CI when set to a non-empty value.
const IntegrationEnv = "DOCSTORE_INTEGRATION"

// RequireIntegration skips the test under -short, and on CI unless IntegrationEnv is set.
// Outside CI the tests run whenever a Docker daemon is reachable.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped with -short")
	}
	if os.Getenv("CI") != "" && os.Getenv(IntegrationEnv) == "" {
		t.Skipf("integration test skipped on CI (set %s=1 to run)", IntegrationEnv)
	}
}
