package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/custodia-labs/emma/internal/adapters/driven/ai"
	"github.com/custodia-labs/emma/internal/adapters/driven/config/file"
	"github.com/custodia-labs/emma/internal/adapters/driven/crypto"
	"github.com/custodia-labs/emma/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/emma/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/emma/internal/adapters/driving/cli"
	"github.com/custodia-labs/emma/internal/core/domain"
	"github.com/custodia-labs/emma/internal/core/ports/driven"
	"github.com/custodia-labs/emma/internal/core/services"
	"github.com/custodia-labs/emma/internal/logger"
)

// closers releases resources in reverse order of acquisition.
type closers []func() error

func (c closers) close() error {
	var errs []error
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// bootstrap wires configuration, storage, backends and services.
func bootstrap(ctx context.Context, opts cli.Options) (cli.Services, func() error, error) {
	if err := file.LoadEnv(".env"); err != nil {
		return cli.Services{}, nil, err
	}

	cfg, err := file.NewConfigStore(opts.ConfigDir)
	if err != nil {
		return cli.Services{}, nil, fmt.Errorf("opening config: %w", err)
	}
	if err := file.LoadEnv(filepath.Join(cfg.Dir(), ".env")); err != nil {
		return cli.Services{}, nil, err
	}
	file.ApplyEnv(cfg, os.LookupEnv)
	settings := file.LoadSettings(cfg)

	var cleanup closers
	fail := func(err error) (cli.Services, func() error, error) {
		_ = cleanup.close()
		return cli.Services{}, nil, err
	}

	knowledgeStore, schedulerStore, closeStore, err := openStores(settings, opts.InMemory)
	if err != nil {
		return fail(err)
	}
	cleanup = append(cleanup, closeStore)

	logger.Section("Backend Selection")
	backends := ai.NewSelector().Select(ctx, settings)
	for _, w := range backends.Warnings {
		logger.Warn("%s", w)
	}
	cleanup = append(cleanup, func() error {
		backends.Close()
		return nil
	})

	knowledge := services.NewKnowledgeStore(knowledgeStore)
	if err := knowledge.Load(ctx, true); err != nil {
		return fail(err)
	}

	retrieval := services.NewRetrievalService(knowledge, backends.Embedder, backends.Vectors)
	retrieval.SetBackendKinds(backends.EmbeddingKind, backends.VectorKind)
	retrieval.SetTimeout(settings.BackendTimeout)
	retrieval.SetDefaultTopK(settings.TopK)
	if n, err := retrieval.Reindex(ctx); err != nil {
		logger.Warn("Reindex incomplete, vector search may miss records: %v", err)
	} else if n > 0 {
		logger.Info("Indexed %d knowledge records", n)
	}

	var contentCrypto driven.ContentCrypto
	if settings.ComplianceMode {
		c, err := crypto.New(crypto.Config{Passphrase: settings.EncryptionKey})
		if err != nil {
			return fail(fmt.Errorf("compliance mode: %w", err))
		}
		contentCrypto = c
	}

	prompt, err := file.LoadPrompt(cfg.Dir(), file.PromptSystem, services.SystemPrompt)
	if err != nil {
		logger.Warn("Using built-in system prompt: %v", err)
		prompt = services.SystemPrompt
	}

	scorer := services.NewRiskScorer(settings.SafetyThreshold)
	if err := scorer.HealthCheck(); err != nil {
		logger.Error("%v", err)
	}

	conversations := services.NewConversationService(services.ConversationConfig{
		MaxConversationLength: settings.MaxConversationLength,
		MaxSessionDuration:    settings.MaxSessionDuration,
		OverflowPolicy:        settings.OverflowPolicy,
	})

	chat := services.NewChatService(conversations, retrieval, scorer, backends.Generator, contentCrypto,
		services.ChatConfig{
			TopK:          settings.TopK,
			ContextWindow: settings.ContextWindow,
			SystemPrompt:  prompt,
		})

	sched := services.NewScheduler(settings.Scheduler, schedulerStore, conversations)
	cleanup = append(cleanup, sched.Stop)

	generator := ""
	if backends.Generator != nil {
		generator = backends.Generator.ModelName()
	}
	logger.Info("Backends: embedding=%s vector=%s generator=%s",
		backends.EmbeddingKind, backends.VectorKind, backends.GeneratorKind)

	return cli.Services{
		Chat:          chat,
		Retrieval:     retrieval,
		Risk:          scorer,
		Conversations: conversations,
		Scheduler:     sched,
		Generator:     generator,
	}, cleanup.close, nil
}

// openStores returns the knowledge and scheduler stores, backed by SQLite
// unless inMemory is set.
func openStores(
	settings domain.AppSettings, inMemory bool,
) (driven.KnowledgeRecordStore, driven.SchedulerStore, func() error, error) {
	if inMemory {
		logger.Info("Using in-memory storage")
		return memory.NewKnowledgeRecordStore(), memory.NewSchedulerStore(), func() error { return nil }, nil
	}

	store, err := sqlite.NewStore(settings.DataDir)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}
	logger.Info("Database: %s", store.Path())
	return store.KnowledgeRecordStore(), store.SchedulerStore(), store.Close, nil
}
