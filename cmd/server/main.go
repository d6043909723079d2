package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kiliankoe/memebattles/internal/ai"
	"github.com/kiliankoe/memebattles/internal/ai/decision"
	"github.com/kiliankoe/memebattles/internal/ai/ollama"
	"github.com/kiliankoe/memebattles/internal/ai/openai"
	"github.com/kiliankoe/memebattles/internal/aiplayer"
	"github.com/kiliankoe/memebattles/internal/api"
	"github.com/kiliankoe/memebattles/internal/audit"
	"github.com/kiliankoe/memebattles/internal/config"
	"github.com/kiliankoe/memebattles/internal/game"
	"github.com/kiliankoe/memebattles/internal/personality"
	"github.com/kiliankoe/memebattles/internal/store"
	"github.com/kiliankoe/memebattles/internal/ws"
)

var version = "dev" // Set at build time via -ldflags

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`Meme Battles - Real-time meme party game with AI players

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables (also read from ./.env):
  PORT                Port to listen on (default: 8080)
  DEFAULT_PROVIDER    AI provider: "openai" or "ollama" (default: openai)
  DEFAULT_MODEL       AI model to use (default: gpt-4o-mini)
  SYSTEM_PROMPT       Base system prompt for AI players (optional)
  OPENAI_API_KEY      OpenAI API key (required for OpenAI provider)
  OPENAI_BASE_URL     Custom OpenAI API base URL (optional)
  OLLAMA_HOST         Ollama host URL (default: http://localhost:11434)
  AI_TIMEOUT          Timeout per AI decision (default: 8s)
  AI_THINK_SCALE      Multiplier for AI thinking pauses, 0 disables (default: 1)
  PERSONALITIES_FILE  JSON file replacing the built-in AI personalities (optional)
  DATABASE_URL        Postgres DSN for lobbies (default: in memory)
  AUDIT_DB            SQLite file for the AI decision log (default: in memory)
  AUDIT_MAX_AGE       Drop AI decisions older than this (default: 168h)
  EXPORT_ENABLED      Export round results to file (default: true)
  EXPORT_FILE         Path to export round results (default: ./memebattles-results.txt)
  CLEANUP_INTERVAL    How often idle AI players are swept (default: 5m)
  AI_MAX_INACTIVE     Idle time after which AI players are removed (default: 30m)

Examples:
  %s                  Start server with default settings
  %s --port 3000      Start server on port 3000
`, os.Args[0], os.Args[0], os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("Meme Battles %s\n", version)
		return
	}

	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	log.Logger = log.Output(cw)

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	if *portFlag != "" {
		cfg.Port = *portFlag
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lobbies, closeLobbies := openLobbyStore(ctx, cfg)
	defer closeLobbies()

	var recorder interface {
		decision.Recorder
		decision.History
	}
	var auditDB *audit.SQLiteStore
	if cfg.AuditDB != "" {
		auditDB, err = audit.NewSQLiteStore(cfg.AuditDB)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.AuditDB).Msg("failed to open audit log")
		}
		defer auditDB.Close()
		recorder = auditDB
	} else {
		recorder = decision.NewMemoryRecorder(500)
	}

	providers := ai.NewRegistry(cfg.DefaultProvider)
	providers.Register("openai", openai.New(cfg.OpenAIKey, cfg.OpenAIBaseURL))
	providers.Register("ollama", ollama.New(cfg.OllamaHost))
	provider, err := providers.Resolve("")
	if err != nil {
		log.Fatal().Err(err).Strs("known", providers.Names()).Msg("unknown DEFAULT_PROVIDER")
	}
	opts := []decision.Option{
		decision.WithModel(cfg.DefaultModel),
		decision.WithTimeout(cfg.AITimeout),
		decision.WithRecorder(recorder),
	}
	if cfg.SystemPrompt != "" {
		opts = append(opts, decision.WithSystemPrompt(cfg.SystemPrompt))
	}
	engine := decision.New(provider, opts...)

	rm := game.NewRoomManager(game.WithStore(lobbies), game.WithTickInterval(cfg.TickInterval))
	defer rm.Close()

	catalog := personality.Default()
	if cfg.PersonalitiesFile != "" {
		catalog, err = personality.LoadFile(cfg.PersonalitiesFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.PersonalitiesFile).Msg("failed to load personalities")
		}
	}
	driver := aiplayer.NewDriver(rm, aiplayer.NewManager(catalog), engine, aiplayer.WithThinkScale(cfg.ThinkScale))
	sock := ws.New(rm, driver)
	driver.Attach()
	defer driver.Close()

	if cfg.ExportEnabled {
		rm.OnPhase(func(s *game.Session, pc game.PhaseChange) {
			if pc.To != game.PhaseLeaderboard {
				return
			}
			if err := game.ExportRound(cfg.ExportFile, s.Snapshot()); err != nil {
				log.Error().Err(err).Str("code", pc.Code).Msg("failed to export round")
			} else {
				log.Info().Str("code", pc.Code).Str("file", cfg.ExportFile).Msg("exported round")
			}
		})
	}

	go sweep(ctx, cfg, driver, auditDB)

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		status := c.Writer.Status()
		dur := time.Since(start)
		log.Info().Str("path", path).Int("status", status).Dur("dur", dur).Msg("http")
	})

	(&api.API{Rooms: rm, Catalog: catalog, History: recorder}).Register(r)
	io := sock.Mount(r)
	defer io.Close()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("port", cfg.Port).Str("provider", cfg.DefaultProvider).Str("model", cfg.DefaultModel).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server failed")
	}
	log.Info().Msg("shut down")
}

// openLobbyStore picks postgres when DATABASE_URL is set and falls back to
// memory. The returned func releases the database connection.
func openLobbyStore(ctx context.Context, cfg config.Config) (game.LobbyStore, func()) {
	if cfg.DatabaseURL == "" {
		log.Info().Msg("no DATABASE_URL, keeping lobbies in memory")
		return store.NewMemoryStore(), func() {}
	}
	pg, err := store.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open lobby database")
	}
	// lobbies abandoned by an earlier run
	if n, err := pg.PruneStale(ctx, time.Now().Add(-cfg.LobbyMaxAge)); err != nil {
		log.Warn().Err(err).Msg("failed to prune stale lobbies")
	} else if n > 0 {
		log.Info().Int64("count", n).Msg("pruned stale lobbies")
	}
	return pg, func() {
		if err := pg.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close lobby database")
		}
	}
}

// sweep periodically removes idle AI players and old audit records.
func sweep(ctx context.Context, cfg config.Config, driver *aiplayer.Driver, auditDB *audit.SQLiteStore) {
	if cfg.CleanupInterval <= 0 {
		return
	}
	t := time.NewTicker(cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			driver.Sweep(cfg.AIMaxInactive)
			if auditDB != nil && cfg.AuditMaxAge > 0 {
				if n, err := auditDB.Prune(ctx, time.Now().Add(-cfg.AuditMaxAge)); err != nil {
					log.Warn().Err(err).Msg("failed to prune AI decisions")
				} else if n > 0 {
					log.Info().Int64("count", n).Msg("pruned AI decisions")
				}
			}
		}
	}
}
