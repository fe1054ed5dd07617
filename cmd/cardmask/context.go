package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/menta2k/cardmask"
	"github.com/menta2k/cardmask/internal/config"
	"github.com/menta2k/cardmask/internal/logging"
	"github.com/menta2k/cardmask/pkg/cache"
	"github.com/menta2k/cardmask/pkg/catalog"
	"github.com/menta2k/cardmask/pkg/client"
	"github.com/menta2k/cardmask/pkg/composer"
	"github.com/menta2k/cardmask/pkg/frame"
	"github.com/menta2k/cardmask/pkg/llamacpp"
	"github.com/menta2k/cardmask/pkg/ollama"
	"github.com/menta2k/cardmask/pkg/resolver"
	"github.com/menta2k/cardmask/pkg/source"
)

type commandContext struct {
	configFlag *string
	levelFlag  *string
	formatFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
	logger     *slog.Logger
}

func newCommandContext(configFlag, levelFlag, formatFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		levelFlag:  levelFlag,
		formatFlag: formatFlag,
	}
}

func (c *commandContext) configPath() string {
	if c.configFlag != nil && strings.TrimSpace(*c.configFlag) != "" {
		return strings.TrimSpace(*c.configFlag)
	}
	return config.GetConfigPath()
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, err := config.Load(c.configPath())
		if err != nil {
			c.configErr = err
			return
		}
		if c.levelFlag != nil && *c.levelFlag != "" {
			cfg.Log.Level = strings.ToLower(*c.levelFlag)
		}
		if c.formatFlag != nil && *c.formatFlag != "" {
			cfg.Log.Format = strings.ToLower(*c.formatFlag)
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		logger, err := logging.New(logging.Options{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: os.Stderr})
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.logger = logger
	})
	return c.config, c.configErr
}

// loadCatalog reads the card database, downloading it first when missing
func (c *commandContext) loadCatalog(ctx context.Context, cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.Catalog.URL != "" {
		hc := &http.Client{Timeout: 10 * time.Minute}
		if err := catalog.EnsureFile(ctx, hc, cfg.Catalog.URL, cfg.Catalog.Path); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	cat, err := catalog.LoadFile(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	cat = cat.WithOrder(catalog.ParseOrder(cfg.Catalog.Order))
	c.logger.Debug("catalog loaded",
		"path", cfg.Catalog.Path,
		"sets", cat.Len(),
		"cards", cat.CardCount(),
		"order", cat.Order().String(),
		"duration", time.Since(start))
	return cat, nil
}

func newResolver(cfg *config.Config, cat *catalog.Catalog, blessings map[string]string) *resolver.Resolver {
	merged := make(map[string]string, len(cfg.Catalog.Blessings)+len(blessings))
	for k, v := range cfg.Catalog.Blessings {
		merged[k] = v
	}
	for k, v := range blessings {
		merged[k] = v
	}
	ex := resolver.NewExclusions(cfg.Catalog.BannedSets, cfg.Catalog.BannedCards, merged)
	return resolver.New(cat, ex)
}

func newComposer(cfg *config.Config, cat *catalog.Catalog) *composer.Composer {
	cc := composer.DefaultConfig()
	cc.Width = cfg.Output.Width
	cc.Height = cfg.Output.Height
	cc.Border = cfg.Output.Border
	comp := composer.NewWithConfig(cc)
	comp.SetClassifier(frame.NewWithConfig(frame.Config{
		Eras:         frame.ErasFrom(cat),
		DarkSets:     cfg.Frame.DarkSets,
		CenteredSets: cfg.Frame.CenteredSets,
		LeftSets:     cfg.Frame.LeftSets,
	}))
	return comp
}

func newSource(cfg *config.Config, logger *slog.Logger) client.ImageSource {
	hc := &http.Client{Timeout: time.Duration(cfg.Images.TimeoutSeconds) * time.Second}
	primary := source.NewProvider(source.Config{
		Name:      "primary",
		Pattern:   cfg.Images.PrimaryURL,
		Remap:     source.CatalogIDs,
		UserAgent: cfg.Images.UserAgent,
	}, hc)
	sources := []client.ImageSource{primary}
	if cfg.Images.SecondaryURL != "" {
		sources = append(sources, source.NewProvider(source.Config{
			Name:      "secondary",
			Pattern:   cfg.Images.SecondaryURL,
			Remap:     source.LegacyIDs,
			UserAgent: cfg.Images.UserAgent,
		}, hc))
	}
	return source.NewChain(logging.NewComponentLogger(logger, "source"), sources...)
}

func openCache(cfg *config.Config) (*cache.Store, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}
	store, err := cache.Open(cfg.Cache.Path)
	if err != nil {
		return nil, fmt.Errorf("open image cache: %w", err)
	}
	return store, nil
}

func newVisionClient(cfg *config.Config, backend, url string) (client.VisionClient, error) {
	if backend == "" {
		backend = cfg.Audit.Backend
	}
	if url == "" {
		url = cfg.Audit.URL
	}
	switch backend {
	case "ollama":
		return ollama.NewClient(url)
	case "llamacpp":
		return llamacpp.NewClient(url)
	default:
		return nil, fmt.Errorf("unknown audit backend %q", backend)
	}
}

// pipelineDeps is everything a pipeline run owns
type pipelineDeps struct {
	catalog  *catalog.Catalog
	pipeline *cardmask.Pipeline
	cache    *cache.Store
}

func (d *pipelineDeps) Close() {
	if d.cache != nil {
		_ = d.cache.Close()
	}
}

func (c *commandContext) buildPipeline(ctx context.Context, workers int, blessings map[string]string, sink client.OutputSink, useCache bool) (*pipelineDeps, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	cat, err := c.loadCatalog(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if workers <= 0 {
		workers = cfg.Run.Workers
	}

	p := cardmask.NewWithConfig(cardmask.Config{Workers: workers}, newResolver(cfg, cat, blessings), newSource(cfg, c.logger), sink)
	p.SetComposer(newComposer(cfg, cat))
	p.SetLogger(c.logger)

	deps := &pipelineDeps{catalog: cat, pipeline: p}
	if useCache {
		store, err := openCache(cfg)
		if err != nil {
			return nil, err
		}
		if store != nil {
			deps.cache = store
			p.SetCache(store)
		}
	}
	return deps, nil
}
