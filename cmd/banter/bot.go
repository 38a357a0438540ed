package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dotsetgreg/banter/pkg/bus"
	"github.com/dotsetgreg/banter/pkg/channels"
	"github.com/dotsetgreg/banter/pkg/config"
	"github.com/dotsetgreg/banter/pkg/engine"
	"github.com/dotsetgreg/banter/pkg/logger"
	"github.com/dotsetgreg/banter/pkg/providers"
	"github.com/dotsetgreg/banter/pkg/turnlog"
)

const stopTimeout = 5 * time.Second

// runBot wires one bot (watcher, turn log, bus, transport, engine) and blocks
// until ctx is cancelled or the transport closes for good.
func runBot(ctx context.Context, configPath string, overrides ...config.Override) error {
	watcher := config.NewWatcher(configPath, config.DefaultWatchInterval, overrides...)
	store, err := watcher.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := store.Current()

	logger.SetLevel(cfg.Logging.Level)
	logger.SetFormat(cfg.Logging.Format)
	warnMissingPrompts(store)

	sink, err := turnlog.New(cfg)
	if err != nil {
		return fmt.Errorf("open turn log: %w", err)
	}
	defer sink.Close()

	messageBus := bus.NewMessageBus()
	defer messageBus.Close()

	manager, err := channels.NewManager(cfg, messageBus)
	if err != nil {
		return err
	}

	eng, err := engine.New(engine.Options{
		Source:    store,
		Bus:       messageBus,
		Generator: providers.NewRouter(),
		Sink:      sink,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go watcher.Start(ctx)

	if err := manager.StartAll(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), stopTimeout)
		defer stopCancel()
		manager.StopAll(stopCtx)
	}()

	logger.InfoCF("banter", "Bot running", map[string]any{
		"bot":       cfg.Bot.Name,
		"transport": cfg.Transport,
		"channels":  manager.GetEnabledChannels(),
	})

	err = eng.Run(ctx)
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// warnMissingPrompts logs when the bot starts without a usable prompt
// bundle. The engine skips turns until the watcher loads one.
func warnMissingPrompts(src config.Source) bool {
	if !src.Prompts().Empty() {
		return false
	}
	cfg := src.Current()
	logger.WarnCF("banter", "Prompt file unavailable; turns will be skipped until it loads", map[string]any{
		"bot":  cfg.Bot.Name,
		"file": cfg.Files.PromptFile,
	})
	return true
}

// isTransportClosed reports whether a bot ended because its transport went
// away for good rather than because of a setup error.
func isTransportClosed(err error) bool {
	return errors.Is(err, engine.ErrTransportClosed)
}
