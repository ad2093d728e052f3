// ABOUTME: Entry point for the sitewalk assessment server.
// ABOUTME: Wires store, cache, schedules, realtime and CLI commands together.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/2389/sitewalk/internal/api"
	"github.com/2389/sitewalk/internal/auth"
	"github.com/2389/sitewalk/internal/config"
	"github.com/2389/sitewalk/internal/equipment"
	"github.com/2389/sitewalk/internal/events"
	"github.com/2389/sitewalk/internal/export"
	"github.com/2389/sitewalk/internal/logging"
	"github.com/2389/sitewalk/internal/querycache"
	"github.com/2389/sitewalk/internal/seed"
	"github.com/2389/sitewalk/internal/selection"
	"github.com/2389/sitewalk/internal/store"
	"github.com/2389/sitewalk/internal/telemetry"
	"github.com/2389/sitewalk/internal/ui"
)

var (
	configPath string
	port       int
	dbPath     string
	outPath    string
	tokenName  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sitewalk",
		Short: "Sitewalk - security site walk assessments",
		Long: `Sitewalk records what a security integrator finds on a building walk:
card-access doors, cameras, elevators and intercoms, edited in place as
schedules and exported to Excel for the proposal.

Quick Start:
  sitewalk seed          # Load the demo walk
  sitewalk serve         # Start server on port 9000
  sitewalk reset         # Wipe and reseed database`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (overrides config)")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the sitewalk HTTP server.

The server provides:
  • Schedules at http://localhost:PORT/
  • JSON API under /api
  • Live updates at /ws
  • Health check at /healthz

Authentication:
  Use Bearer tokens in the format: Bearer user:USERNAME while dev tokens are allowed,
  or a signed token from 'sitewalk token'.

Environment Variables:
  SITEWALK_PORT               Server port (default: 9000)
  SITEWALK_JWT_SECRET         Signing secret for issued tokens
  OPENAI_API_KEY              Enable AI summaries and demo walks
  SITEWALK_MQTT_ENABLED       Share cache invalidations between instances
  SITEWALK_INFLUXDB_ENABLED   Record cell edits to InfluxDB`,
		RunE: runServe,
	}
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides config)")

	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the database with a demo walk",
		Long: `Add a demo site walk project with equipment on every schedule.

Set OPENAI_API_KEY to generate a varied walk. Falls back to the static
Harbor Point Tower walk if no API key is provided or generation fails.

Note: Seed is not idempotent. Each run adds another project.`,
		RunE: runSeed,
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset the database (wipe and reseed)",
		Long: `Delete the database file and create a fresh one with the demo walk.

Warning: This permanently deletes all data in the database!`,
		RunE: runReset,
	}

	exportCmd := &cobra.Command{
		Use:   "export PROJECT_ID",
		Short: "Write a project's equipment schedules to an .xlsx file",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default: schedule-PROJECT_ID.xlsx)")

	tokenCmd := &cobra.Command{
		Use:   "token USER",
		Short: "Issue a signed bearer token",
		Args:  cobra.ExactArgs(1),
		RunE:  runToken,
	}
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "Display name carried in the token")

	rootCmd.AddCommand(serveCmd, seedCmd, resetCmd, exportCmd, tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads .env and the config file, then applies command line flags.
func loadConfig() (*config.Config, error) {
	config.LoadDotEnv()
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	switch {
	case dbPath != "":
		cfg.Database.Path = dbPath
	case cfg.Database.Path == config.Default().Database.Path:
		cfg.Database.Path = getDefaultDBPath()
	}
	cfg.Database.Path, err = validateAndCleanDBPath(cfg.Database.Path)
	if err != nil {
		return nil, err
	}
	if port != 0 {
		cfg.Server.Port = port
	}
	return cfg, cfg.Validate()
}

// validateAndCleanDBPath validates and cleans a database path.
// Handles Unix/Linux, macOS, and Windows paths (including UNC and drive letters).
func validateAndCleanDBPath(path string) (string, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return "", fmt.Errorf("database path cannot be empty, '.', or '/'")
	}
	cleanPath = filepath.Clean(cleanPath)

	if cleanPath == "." || cleanPath == "/" {
		return "", fmt.Errorf("database path cannot be empty, '.', or '/'")
	}

	// Windows: reject bare drive letters (e.g., "C:", "D:")
	if runtime.GOOS == "windows" && len(cleanPath) == 2 && cleanPath[1] == ':' {
		return "", fmt.Errorf("database path cannot be a bare drive letter")
	}

	if strings.Contains(cleanPath, "..") {
		return "", fmt.Errorf("database path cannot contain '..'")
	}

	badPatterns := []string{".git", ".svn", "node_modules", ".env", "credentials", "secret"}
	lowerPath := strings.ToLower(cleanPath)
	for _, pattern := range badPatterns {
		if strings.Contains(lowerPath, pattern) {
			return "", fmt.Errorf("database path cannot contain '%s' directory", pattern)
		}
	}

	return cleanPath, nil
}

// server owns every long-lived collaborator so serve can shut them down in order.
type server struct {
	handler   http.Handler
	store     *store.Store
	workspace *equipment.Workspace
	hub       *ui.Hub
	bus       *events.Bus
	recorder  *telemetry.Recorder
}

func newServer(cfg *config.Config, logger zerolog.Logger) (*server, error) {
	st, err := store.New(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	srv := &server{store: st}

	cache := querycache.New()
	registry := equipment.DefaultRegistry()
	deps := equipment.Deps{Store: st, Cache: cache, Logger: logger}

	switch rec, err := telemetry.Connect(cfg.InfluxDB, logger); {
	case err == nil:
		srv.recorder = rec
		deps.Recorder = rec
		logger.Info().Str("url", cfg.InfluxDB.URL).Msg("recording cell edits to influxdb")
	case !errors.Is(err, telemetry.ErrDisabled):
		logger.Warn().Err(err).Msg("influxdb unavailable, edits are not recorded")
	}

	switch bus, err := events.Connect(cfg.MQTT, cache, logger); {
	case err == nil:
		srv.bus = bus
		logger.Info().Str("broker", cfg.MQTT.Broker).Str("topic", cfg.MQTT.Topic).Msg("sharing invalidations over mqtt")
	case !errors.Is(err, events.ErrDisabled):
		logger.Warn().Err(err).Msg("mqtt unavailable, invalidations stay local")
	}

	srv.workspace = equipment.NewWorkspace(registry, deps)
	srv.hub = ui.NewHub(cache, logger)
	sel := selection.New(st, cache)
	authn := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.GetTokenTTL(), cfg.Auth.AllowDevTokens)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logging.Middleware(st, logger))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ok := st.Ping(r.Context()) == nil
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": ok})
	})
	r.Get("/favicon.ico", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	r.Group(func(r chi.Router) {
		r.Use(authn.Middleware)
		api.NewHandlers(api.Services{
			Store:      st,
			Registry:   registry,
			Cache:      cache,
			Workspace:  srv.workspace,
			Selection:  sel,
			Summarizer: export.NewSummarizer(cfg.OpenAI, logger),
			Logger:     logger,
		}).RegisterRoutes(r)
		ui.NewHandlers(st, registry, srv.workspace, sel, logger).RegisterRoutes(r)
		srv.hub.RegisterRoutes(r)
	})

	srv.handler = r
	return srv, nil
}

// Close releases collaborators in reverse dependency order.
func (s *server) Close() error {
	s.hub.Close()
	if s.bus != nil {
		s.bus.Close()
	}
	s.workspace.Close()
	if s.recorder != nil {
		s.recorder.Close()
	}
	return s.store.Close()
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging, nil)

	srv, err := newServer(cfg, logger)
	if err != nil {
		return err
	}
	defer srv.Close()

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.handler,
		ReadTimeout:  cfg.GetReadTimeout(),
		WriteTimeout: cfg.GetWriteTimeout(),
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", httpServer.Addr).Str("db", cfg.Database.Path).Msg("sitewalk server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging, nil)

	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	return seedData(cmd.Context(), s, cfg, logger)
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := logging.New(cfg.Logging, nil)

	// Remove existing database - ignore if file doesn't exist
	if err := os.Remove(cfg.Database.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove existing database: %w", err)
	}

	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	return seedData(cmd.Context(), s, cfg, logger)
}

func seedData(ctx context.Context, s *store.Store, cfg *config.Config, logger zerolog.Logger) error {
	logger.Info().Msg("seeding database with a demo walk")

	walk := seed.NewGenerator(cfg.OpenAI, logger).Generate(ctx)
	counts, err := seed.Apply(ctx, s, walk)
	if err != nil {
		return fmt.Errorf("seeding: %w", err)
	}

	logger.Info().
		Int64("project_id", counts.ProjectID).
		Str("project", walk.Project.Name).
		Int("access_points", counts.AccessPoints).
		Int("cameras", counts.Cameras).
		Int("elevators", counts.Elevators).
		Int("intercoms", counts.Intercoms).
		Msgf("seeding complete, created %d records", counts.Total())
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	projectID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || projectID <= 0 {
		return fmt.Errorf("invalid project id %q", args[0])
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer s.Close()

	f, err := export.Workbook(cmd.Context(), s, equipment.DefaultRegistry(), projectID)
	if err != nil {
		return err
	}
	defer f.Close()

	out := outPath
	if out == "" {
		out = fmt.Sprintf("schedule-%d.xlsx", projectID)
	}
	if err := f.SaveAs(out); err != nil {
		return fmt.Errorf("writing %s: %w", out, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	authn := auth.NewAuthenticator(cfg.Auth.JWTSecret, cfg.GetTokenTTL(), cfg.Auth.AllowDevTokens)
	token, err := authn.IssueToken(args[0], tokenName)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

// getDefaultDBPath returns the default database path following XDG Base Directory spec
// Priority: ./sitewalk.db (if present) > XDG_DATA_HOME/sitewalk/sitewalk.db
func getDefaultDBPath() string {
	cwdPath := "./sitewalk.db"
	if _, err := os.Stat(cwdPath); err == nil {
		return cwdPath
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil || homeDir == "" || homeDir == "/" {
			return cwdPath
		}

		// Windows: %LOCALAPPDATA% or ~/AppData/Local
		// Unix/Linux/macOS: ~/.local/share (XDG spec)
		if runtime.GOOS == "windows" {
			dataHome = os.Getenv("LOCALAPPDATA")
			if dataHome == "" {
				dataHome = filepath.Join(homeDir, "AppData", "Local")
			}
		} else {
			dataHome = filepath.Join(homeDir, ".local", "share")
		}
	}

	dataDir := filepath.Join(dataHome, "sitewalk")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return cwdPath
	}

	// Verify we can write to the directory
	testFile := filepath.Join(dataDir, ".write-test")
	f, err := os.Create(testFile)
	if err != nil {
		return cwdPath
	}
	f.Close()
	os.Remove(testFile)

	return filepath.Join(dataDir, "sitewalk.db")
}
