// ABOUTME: Tests for CLI commands and server wiring.
// ABOUTME: Verifies health check, auth wiring, seeding, export and path validation.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/xuri/excelize/v2"

	"github.com/2389/sitewalk/internal/config"
	"github.com/2389/sitewalk/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "test_main.db")
	return cfg
}

func startServer(t *testing.T, cfg *config.Config) *server {
	t.Helper()
	srv, err := newServer(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func TestServer_Healthz(t *testing.T) {
	srv := startServer(t, testConfig(t))

	req := httptest.NewRequest("GET", "/healthz", nil)
	rr := httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}
	var resp map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() error = %v, response body: %s", err, rr.Body.String())
	}
	if resp["ok"] != true {
		t.Errorf("ok = %v, want true", resp["ok"])
	}
}

func TestServer_RoutesAreAuthenticated(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.AllowDevTokens = false
	cfg.Auth.JWTSecret = strings.Repeat("s", 32)
	srv := startServer(t, cfg)

	for _, path := range []string{"/api/projects", "/", "/ws"} {
		rr := httptest.NewRecorder()
		srv.handler.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("GET %s status = %d, want 401", path, rr.Code)
		}
	}

	rr := httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("healthz status = %d, want 200", rr.Code)
	}
}

func TestServer_ServesSeededProject(t *testing.T) {
	cfg := testConfig(t)
	srv := startServer(t, cfg)
	if err := seedData(context.Background(), srv.store, cfg, zerolog.Nop()); err != nil {
		t.Fatalf("seedData() error = %v", err)
	}

	req := httptest.NewRequest("GET", "/api/projects/1/cameras", nil)
	req.Header.Set("Authorization", "Bearer user:harper")
	rr := httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var list struct {
		Kind  string         `json:"kind"`
		Items []store.Camera `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &list); err != nil {
		t.Fatalf("decoding cameras: %v", err)
	}
	if list.Kind != "cameras" || len(list.Items) != 5 {
		t.Errorf("kind = %q, cameras = %d, want 5", list.Kind, len(list.Items))
	}

	req = httptest.NewRequest("GET", "/ui/projects/1/access-points/", nil)
	rr = httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Main Lobby Entry") {
		t.Errorf("sheet page status = %d", rr.Code)
	}
}

func TestRunExport(t *testing.T) {
	cfg := testConfig(t)
	s, err := store.New(cfg.Database.Path)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	if err := seedData(context.Background(), s, cfg, zerolog.Nop()); err != nil {
		t.Fatalf("seedData() error = %v", err)
	}
	s.Close()

	dbPath = cfg.Database.Path
	outPath = filepath.Join(t.TempDir(), "walk.xlsx")
	t.Cleanup(func() { dbPath, outPath = "", "" })

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)
	if err := runExport(cmd, []string{"1"}); err != nil {
		t.Fatalf("runExport() error = %v", err)
	}
	if strings.TrimSpace(out.String()) != outPath {
		t.Errorf("printed %q, want %q", out.String(), outPath)
	}

	f, err := excelize.OpenFile(outPath)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	defer f.Close()
	if idx, _ := f.GetSheetIndex("Camera Schedule"); idx < 0 {
		t.Errorf("sheets = %v, missing Camera Schedule", f.GetSheetList())
	}

	if err := runExport(cmd, []string{"zero"}); err == nil {
		t.Error("expected an error for a non-numeric project id")
	}
}

func TestValidateAndCleanDBPath_Valid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "simple relative path", input: "sitewalk.db"},
		{name: "path with directory", input: "./data/sitewalk.db"},
		{name: "path with multiple directories", input: "./path/to/data/sitewalk.db"},
		{name: "absolute path on Unix", input: "/tmp/sitewalk.db"},
		{name: "path with whitespace trimmed", input: "  sitewalk.db  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := validateAndCleanDBPath(tt.input)
			if err != nil {
				t.Errorf("validateAndCleanDBPath(%q) error = %v, want nil", tt.input, err)
			}
			if result == "" {
				t.Errorf("validateAndCleanDBPath(%q) returned empty string", tt.input)
			}
		})
	}
}

func TestValidateAndCleanDBPath_Invalid(t *testing.T) {
	tests := []struct {
		name          string
		input         string
		shouldContain string
	}{
		{name: "empty string", input: "", shouldContain: "cannot be empty"},
		{name: "whitespace only", input: "   ", shouldContain: "cannot be empty"},
		{name: "current directory dot", input: ".", shouldContain: "cannot be empty, '.', or '/'"},
		{name: "root directory", input: "/", shouldContain: "cannot be empty, '.', or '/'"},
		{name: "path traversal with dotdot", input: "../../etc/passwd", shouldContain: "cannot contain '..'"},
		{name: "git directory blocked", input: ".git/sitewalk.db", shouldContain: ".git"},
		{name: "node_modules directory blocked", input: "node_modules/sitewalk.db", shouldContain: "node_modules"},
		{name: "secret in path blocked", input: "secret/sitewalk.db", shouldContain: "secret"},
		{name: ".env in path blocked", input: ".env/sitewalk.db", shouldContain: ".env"},
		{name: "case insensitive bad pattern", input: "CREDENTIALS/sitewalk.db", shouldContain: "credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validateAndCleanDBPath(tt.input)
			if err == nil {
				t.Fatalf("validateAndCleanDBPath(%q) error = nil, want error", tt.input)
			}
			if !strings.Contains(err.Error(), tt.shouldContain) {
				t.Errorf("validateAndCleanDBPath(%q) error = %v, should contain %q", tt.input, err, tt.shouldContain)
			}
		})
	}
}

func TestValidateAndCleanDBPath_Windows(t *testing.T) {
	if runtime.GOOS != "windows" {
		t.Skip("Windows-specific test")
	}
	if _, err := validateAndCleanDBPath("C:"); err == nil || !strings.Contains(err.Error(), "bare drive letter") {
		t.Errorf("bare drive letter error = %v", err)
	}
	if _, err := validateAndCleanDBPath("C:\\data\\sitewalk.db"); err != nil {
		t.Errorf("absolute path error = %v", err)
	}
}
