package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"monitorbot/internal/bot"
	"monitorbot/internal/config"
	"monitorbot/internal/domain"
	"monitorbot/internal/integrations/telegram"
	"monitorbot/internal/integrations/yandexgpt"
	"monitorbot/internal/knowledge"
	"monitorbot/internal/ratelimit"
	"monitorbot/internal/resolver"
	"monitorbot/internal/session"
)

const eventQueueSize = 64

func main() {
	log := slog.Default()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// ---- Collaborators ----
	store, err := knowledge.Open(cfg.KnowledgeFile, log)
	if err != nil {
		log.Error("failed to open knowledge base", "err", err)
		os.Exit(1)
	}

	gpt, err := yandexgpt.NewClient(cfg.YandexAPIKey, cfg.YandexFolderID)
	if err != nil {
		log.Error("failed to create YandexGPT client", "err", err)
		os.Exit(1)
	}

	res, err := resolver.New(store, gpt, resolver.Config{
		Keywords:     cfg.TopicKeywords,
		Threshold:    cfg.SimilarityThreshold,
		Timeout:      cfg.RequestTimeout,
		SystemPrompt: cfg.SystemPrompt,
	}, log)
	if err != nil {
		log.Error("failed to create resolver", "err", err)
		os.Exit(1)
	}

	gw, err := telegram.NewClient(cfg.TelegramToken, log)
	if err != nil {
		log.Error("failed to create Telegram client", "err", err)
		os.Exit(1)
	}

	// ---- Dispatcher ----
	disp, err := bot.New(gw, res, store, session.NewManager(), ratelimit.New(cfg.Cooldown), bot.Config{
		AdminIDs: cfg.AdminIDs,
	}, log)
	if err != nil {
		log.Error("failed to create dispatcher", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	events := make(chan domain.Event, eventQueueSize)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(events)
		return gw.Poll(ctx, events)
	})
	g.Go(func() error {
		return disp.Run(ctx, events)
	})

	log.Info("bot started", "knowledge_file", cfg.KnowledgeFile, "admins", len(cfg.AdminIDs))
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("bot stopped", "err", err)
		os.Exit(1)
	}
	log.Info("bot stopped")
}
