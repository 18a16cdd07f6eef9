package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harun/mate/internal/config"
	"github.com/harun/mate/internal/logger"
	"github.com/harun/mate/internal/observability"
	"github.com/harun/mate/internal/tracing"
	"github.com/harun/mate/pkg/agent"
	"github.com/harun/mate/pkg/commandqueue"
	"github.com/harun/mate/pkg/dispatcher"
	"github.com/harun/mate/pkg/gateway"
	"github.com/harun/mate/pkg/roster"
	"github.com/harun/mate/pkg/services"
	"github.com/harun/mate/pkg/session"
	"github.com/harun/mate/pkg/toolexec"
	"github.com/harun/mate/pkg/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MATE gateway server",
	Long: `Start the orchestrator and serve the HTTP/WebSocket gateway.
The process runs until interrupted; SIGINT and SIGTERM drain in-flight
dispatches before shutting down.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.NewLoader(cfgFile).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:     cfg.Logging.Level,
		File:      cfg.Logging.File,
		Console:   true,
		Pretty:    true,
		Redaction: cfg.Logging.Redaction,
	})
	if err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer lg.Close()
	zlog := lg.GetZerolog()

	if err := tracing.InitOpenTelemetry("mate"); err != nil {
		return fmt.Errorf("failed to init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracing.ShutdownOpenTelemetry(shutdownCtx)
	}()

	if err := observability.InitAuditLogger(cfg.Logging.AuditFile); err != nil {
		return fmt.Errorf("failed to init audit log: %w", err)
	}
	defer observability.GetAuditLogger().Close()

	// Session store
	var store session.Store
	switch cfg.Session.Backend {
	case "sqlite":
		store, err = session.NewSQLiteStore(filepath.Join(cfg.DataDir, "sessions.db"))
	default:
		store, err = session.NewJSONLStore(filepath.Join(cfg.DataDir, "sessions"))
	}
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	sessions := session.NewManager(store, cfg.Session.MaxTurns)
	defer sessions.Close()

	sweeper := session.NewSweeper(sessions,
		time.Duration(cfg.Session.TTLHours)*time.Hour, cfg.Session.CleanupSchedule)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start session sweeper: %w", err)
	}
	defer sweeper.Stop()

	// Tools and their collaborators
	trailStore, err := services.NewTrailStore(filepath.Join(cfg.DataDir, "trails.db"))
	if err != nil {
		return fmt.Errorf("failed to open trail catalog: %w", err)
	}
	defer trailStore.Close()

	registry := toolexec.NewRegistry()
	err = tools.RegisterBuiltins(registry, tools.Services{
		Geo:     services.NewNominatimClient("", zlog),
		Weather: services.NewOpenMeteoClient("", zlog),
		Trails:  trailStore,
		Web:     services.NewDuckDuckGoClient("", zlog),
	})
	if err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	registry.Freeze()

	executorOpts := []toolexec.ExecutorOption{
		toolexec.WithDefaultTimeout(time.Duration(cfg.Tools.DefaultTimeout) * time.Second),
		toolexec.WithMaxOutputBytes(cfg.Tools.MaxOutputBytes),
	}
	for tool, seconds := range cfg.Tools.Timeouts {
		executorOpts = append(executorOpts, toolexec.WithToolTimeout(tool, time.Duration(seconds)*time.Second))
	}
	executor := toolexec.NewExecutor(registry, executorOpts...)

	// Providers
	profiles := make([]agent.AuthProfile, 0, len(cfg.AI.Profiles))
	for _, p := range cfg.AI.Profiles {
		profiles = append(profiles, agent.AuthProfile{
			ID:       p.ID,
			Provider: p.Provider,
			APIKey:   p.APIKey,
			BaseURL:  p.BaseURL,
			Priority: p.Priority,
		})
	}
	invoker, err := agent.NewInvoker(agent.InvokerConfig{
		Logger:          zlog,
		AuthProfiles:    profiles,
		RetryMax:        cfg.Dispatch.RetryMax,
		RetryBaseMs:     cfg.Dispatch.RetryBaseMs,
		ProviderTimeout: time.Duration(cfg.Dispatch.ProviderTimeout) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("failed to init invoker: %w", err)
	}

	// Roles, hot-reloadable when a roster file is configured
	roles, err := roster.New(cfg.Roles, cfg.RosterPath, zlog)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}
	if cfg.RosterPath != "" {
		if err := roles.Watch(); err != nil {
			return fmt.Errorf("failed to watch roster: %w", err)
		}
	}
	defer roles.Stop()

	queue := commandqueue.New()
	defer queue.Close()

	disp, err := dispatcher.New(dispatcher.Config{
		Config:   cfg,
		Sessions: sessions,
		Invoker:  invoker,
		Executor: executor,
		Queue:    queue,
		Roster:   roles,
		Logger:   zlog,
	})
	if err != nil {
		return fmt.Errorf("failed to init dispatcher: %w", err)
	}

	srv, err := gateway.NewServer(gateway.Config{
		Host:         cfg.Gateway.Host,
		Port:         cfg.Gateway.Port,
		SharedSecret: cfg.Gateway.SharedSecret,
		Dispatcher:   disp,
		Sessions:     sessions,
		Logger:       zlog,
	})
	if err != nil {
		return fmt.Errorf("failed to init gateway: %w", err)
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start gateway: %w", err)
	}
	zlog.Info().Str("addr", srv.Addr()).Msg("MATE gateway listening")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	zlog.Info().Msg("Shutting down")
	return srv.Stop()
}
