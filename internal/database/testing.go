package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/commercekit/llm-gateway/internal/config"
)

// SetupTestDB points the package at a throwaway sqlite database and returns
// a cleanup function. For use from tests only.
func SetupTestDB(t *testing.T) func() {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "llm-gateway-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	config.Cfg.DatabasePath = filepath.Join(tmpDir, "test.db")

	if err := Init(); err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to init database: %v", err)
	}

	return func() {
		Close()
		os.RemoveAll(tmpDir)
	}
}
