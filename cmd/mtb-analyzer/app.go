// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/pdiddy/mtb-analyzer/internal/classify"
	"github.com/pdiddy/mtb-analyzer/internal/convert"
	"github.com/pdiddy/mtb-analyzer/internal/fetch"
	"github.com/pdiddy/mtb-analyzer/internal/pipeline"
	"github.com/pdiddy/mtb-analyzer/internal/store"
	"github.com/pdiddy/mtb-analyzer/internal/task"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

// app holds the wired components shared by the subcommands.
type app struct {
	cfg      types.Config
	log      *zap.Logger
	store    *store.Store
	pipeline *pipeline.Pipeline
	engine   *task.Engine
}

// newApp opens the store and wires the pipeline. Operation log lines go to
// out when it is non-nil.
func newApp(ctx context.Context, out io.Writer) (*app, error) {
	cfg := loadConfig(viper.GetViper())
	log := rootLog

	st, err := store.NewStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	if err := st.SeedSettings(ctx, seedSettings(cfg)); err != nil {
		st.Close()
		return nil, err
	}

	deps := pipeline.Deps{
		Store:      st,
		Fetcher:    fetch.NewHTTPFetcher(cfg.Archive, log.With(zap.String("component", "fetch"))),
		Classifier: classify.NewLLMClassifier(classify.NewAnthropicCompleter(cfg.Analysis.APIKey, cfg.Analysis.BaseURL), cfg.Analysis, log),
		Downloader: fetch.NewDownloader(cfg.Storage.CacheDir, cfg.Archive),
		Logger:     log,
	}
	if conv, err := convert.New(ctx, cfg.Conversion); err != nil {
		log.Warn("attachment analysis disabled", zap.Error(err))
	} else {
		deps.Converter = conv
	}

	opts := []task.Option{task.WithLogger(log)}
	if out != nil {
		opts = append(opts, task.WithOutput(out))
	}
	return &app{
		cfg:      cfg,
		log:      log,
		store:    st,
		pipeline: pipeline.New(deps, cfg),
		engine:   task.New(ctx, opts...),
	}, nil
}

// run executes req through the engine and waits for it.
func (a *app) run(req pipeline.Request) error {
	name, fn, err := a.pipeline.Job(req)
	if err != nil {
		return err
	}
	if err := a.engine.RunSync(name, fn); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

func (a *app) close() {
	a.engine.Wait()
	if err := a.store.Close(); err != nil {
		a.log.Warn("closing store", zap.Error(err))
	}
}
