package testutils

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/areknoster/hypert"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ShouldUpdate returns true if tests should record fresh HTTP responses
// Set UPDATE_TESTS=true environment variable to update cached responses
func ShouldUpdate() bool {
	return os.Getenv("UPDATE_TESTS") == "true"
}

// HypertClientConfig configures hypert client creation
type HypertClientConfig struct {
	TestDataDir string
	SubDir      string // Optional subdirectory for organizing test data
	// GoogleAuth wraps the recording client with application default credentials
	GoogleAuth bool
}

func (c HypertClientConfig) dir() string {
	if c.SubDir != "" {
		return filepath.Join(c.TestDataDir, c.SubDir)
	}
	return c.TestDataDir
}

// SkipWithoutRecordings skips the test when there is nothing to replay and
// recording is not enabled.
func SkipWithoutRecordings(t *testing.T, config HypertClientConfig) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if ShouldUpdate() {
		return
	}
	entries, err := os.ReadDir(config.dir())
	if err != nil || len(entries) == 0 {
		t.Skipf("no recorded responses in %s; run with UPDATE_TESTS=true to record", config.dir())
	}
}

// NewHypertClient creates a new hypert client for caching HTTP requests
// This is useful for integration tests that make external API calls
func NewHypertClient(t *testing.T, config HypertClientConfig) *http.Client {
	namingScheme, err := hypert.NewContentHashNamingScheme(config.dir())
	if err != nil {
		t.Fatalf("failed to create naming scheme: %v", err)
	}

	hypertClient := hypert.TestClient(t, ShouldUpdate(),
		hypert.WithNamingScheme(namingScheme),
		hypert.WithRequestValidator(hypert.ComposedRequestValidator(
			hypert.PathValidator(),
			hypert.QueryParamsValidator(),
			hypert.MethodValidator(),
		)),
	)

	// If we're in record mode, wrap with OAuth2 authentication
	if ShouldUpdate() && config.GoogleAuth {
		ctx := context.Background()
		creds, err := google.FindDefaultCredentials(ctx, "https://www.googleapis.com/auth/cloud-platform")
		if err != nil {
			t.Fatalf("failed to get default credentials: %v", err)
		}
		return oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, hypertClient), creds.TokenSource)
	}

	return hypertClient
}
