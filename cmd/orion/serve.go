package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/akivoy/orion/internal/admission"
	"github.com/akivoy/orion/internal/agent"
	"github.com/akivoy/orion/internal/agent/providers"
	"github.com/akivoy/orion/internal/config"
	"github.com/akivoy/orion/internal/conversation"
	"github.com/akivoy/orion/internal/notify"
	"github.com/akivoy/orion/internal/observability"
	"github.com/akivoy/orion/internal/odoo"
	"github.com/akivoy/orion/internal/store"
	odootools "github.com/akivoy/orion/internal/tools/odoo"
	pgtool "github.com/akivoy/orion/internal/tools/pg"
	"github.com/akivoy/orion/internal/web"
)

// runtime bundles every long-lived component the commands share.
type runtime struct {
	cfg        config.Config
	log        *observability.Logger
	registry   *prometheus.Registry
	sessions   *conversation.MemoryStore
	bot        *agent.Agent
	gate       *admission.Gate
	janitor    *admission.Janitor
	orion      *odoo.Orion
	whatsapp   *notify.WhatsAppSender
	dispatcher *notify.Dispatcher
	background *notify.Background
	history    *store.DB
	sqlTool    *pgtool.QueryTool
}

func buildRuntime(configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	if err := createStaticDirs(cfg.Server.StaticDir); err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	orionClient := odoo.NewOrion(odoo.NewClient(cfg.Odoo, cfg.Server.StaticDir, log))
	whatsapp := notify.NewWhatsAppSender(cfg.WhatsApp, log)
	dispatcher := notify.NewDispatcher(cfg.Notify, log)
	background := notify.NewBackground(dispatcher, whatsapp)
	email := notify.NewEmailSender(cfg.SMTP, log)

	provider := providers.New(cfg.OpenAI)
	sessions := conversation.NewMemoryStore()

	toolRegistry := agent.NewRegistry()
	odootools.RegisterAll(toolRegistry, &odootools.Deps{
		Orion:         orionClient,
		Background:    background,
		Email:         email,
		Summarizer:    agent.NewSummarizer(provider),
		PublicBaseURL: cfg.Server.PublicBaseURL,
		Log:           log,
	})

	var sqlTool *pgtool.QueryTool
	if cfg.Database.PostgresDSN != "" {
		sqlTool, err = pgtool.Open(cfg.Database.PostgresDSN, log)
		if err != nil {
			dispatcher.Stop()
			return nil, err
		}
		toolRegistry.Register(sqlTool)
	}

	var history *store.DB
	if cfg.Database.Path != "" {
		history, err = store.Open(cfg.Database.Path, log)
		if err != nil {
			dispatcher.Stop()
			return nil, err
		}
	}

	bot := agent.NewAgent(provider, sessions, toolRegistry, log, metrics, cfg.Session.MaxIterations)
	gate := admission.NewGate(background, log, metrics)
	janitor := admission.NewJanitor(gate, sessions, cfg.Session.TTL, cfg.Session.CleanupInterval, log, metrics)

	return &runtime{
		cfg:        *cfg,
		log:        log,
		registry:   registry,
		sessions:   sessions,
		bot:        bot,
		gate:       gate,
		janitor:    janitor,
		orion:      orionClient,
		whatsapp:   whatsapp,
		dispatcher: dispatcher,
		background: background,
		history:    history,
		sqlTool:    sqlTool,
	}, nil
}

func (r *runtime) close() {
	r.dispatcher.Stop()
	if r.history != nil {
		r.history.Close()
	}
	if r.sqlTool != nil {
		r.sqlTool.Close()
	}
}

// createStaticDirs prepares the directories served under /static/.
func createStaticDirs(staticDir string) error {
	for _, dir := range []string{staticDir, filepath.Join(staticDir, "images"), filepath.Join(staticDir, "reports")} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

func runServe(ctx context.Context, configPath string) error {
	rt, err := buildRuntime(configPath)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.janitor.Start()
	defer rt.janitor.Stop()

	server := web.NewServer(rt.cfg, web.Deps{
		Assistant:  rt.bot,
		Sessions:   rt.sessions,
		Gate:       rt.gate,
		Partners:   rt.orion,
		WhatsApp:   rt.whatsapp,
		Background: rt.background,
		History:    rt.history,
		Registry:   rt.registry,
	}, rt.log)

	rt.log.Info(ctx, "starting", "version", version, "model", rt.cfg.OpenAI.Model)
	return server.Start(ctx)
}
