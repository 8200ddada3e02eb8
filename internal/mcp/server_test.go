package mcp

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNewServer(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := &Config{
		Name:    "test-server",
		Version: "v1.0.0",
		DataDir: filepath.Join(tmpDir, "data"),
	}

	server, err := NewServer(cfg)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.store == nil {
		t.Error("Server.store is nil")
	}
}

func TestNewServer_CreatesDataDir(t *testing.T) {
	dataDir := filepath.Join(t.TempDir(), "data")

	server, err := NewServer(&Config{Version: "v1.0.0", DataDir: dataDir})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if _, err := os.Stat(filepath.Join(dataDir, "metadata")); os.IsNotExist(err) {
		t.Error("offline store layout was not created")
	}
}

func TestClose(t *testing.T) {
	server, err := NewServer(&Config{Version: "v1.0.0", DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}

	if err := server.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	// Multiple closes should be safe
	if err := server.Close(); err != nil {
		t.Errorf("Second Close() error = %v", err)
	}
}
