// Package source downloads card scans from the image providers.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/menta2k/cardmask/pkg/client"
	"github.com/menta2k/cardmask/pkg/types"
)

// ErrUnavailable is returned when no provider has an image for a printing
var ErrUnavailable = errors.New("image unavailable")

// Default provider URL patterns
const (
	DefaultPrimaryURL   = "https://img.scryfall.com/cards/png/en/{set}/{id}.png"
	DefaultSecondaryURL = "https://magiccards.info/scans/en/{set}/{id}.jpg"
	DefaultUserAgent    = "cardmask/1.0"
	maxImageBytes       = 32 << 20
)

// Remap picks the set code and card id a provider expects
type Remap func(card *types.CardRecord) (set, id string)

// CatalogIDs uses the catalog set code and collector number
func CatalogIDs(card *types.CardRecord) (string, string) {
	return card.SetCode(), card.ID()
}

// LegacyIDs prefers the legacy set code and mciNumber when present
func LegacyIDs(card *types.CardRecord) (string, string) {
	set := card.SetCode()
	if card.Set != nil && card.Set.MagicCardsInfoCode != "" {
		set = strings.ToLower(card.Set.MagicCardsInfoCode)
	}
	id := card.ID()
	if card.MCINumber != "" {
		id = card.MCINumber
	}
	return set, id
}

// Config holds the HTTP settings of a provider
type Config struct {
	Name      string
	Pattern   string
	Remap     Remap
	UserAgent string
	Timeout   time.Duration
}

// Provider fetches scans from one URL pattern
type Provider struct {
	config Config
	http   *http.Client
}

// NewProvider creates a provider. A nil http client gets one with the
// configured timeout.
func NewProvider(config Config, httpClient *http.Client) *Provider {
	if config.Remap == nil {
		config.Remap = CatalogIDs
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: config.Timeout}
	}
	return &Provider{config: config, http: httpClient}
}

// NewPrimary creates the collector-number provider
func NewPrimary(pattern string, httpClient *http.Client) *Provider {
	if pattern == "" {
		pattern = DefaultPrimaryURL
	}
	return NewProvider(Config{Name: "primary", Pattern: pattern, Remap: CatalogIDs}, httpClient)
}

// NewSecondary creates the legacy provider
func NewSecondary(pattern string, httpClient *http.Client) *Provider {
	if pattern == "" {
		pattern = DefaultSecondaryURL
	}
	return NewProvider(Config{Name: "secondary", Pattern: pattern, Remap: LegacyIDs}, httpClient)
}

// Name returns the provider name used in logs
func (p *Provider) Name() string { return p.config.Name }

// URL expands the provider pattern for a printing
func (p *Provider) URL(card *types.CardRecord) (string, error) {
	if card == nil {
		return "", fmt.Errorf("%s: nil card", p.config.Name)
	}
	set, id := p.config.Remap(card)
	if set == "" || id == "" {
		return "", fmt.Errorf("%s: %s has no set code or id", p.config.Name, card.Name)
	}
	r := strings.NewReplacer("{set}", set, "{id}", id)
	return r.Replace(p.config.Pattern), nil
}

// Fetch downloads the scan bytes of a printing
func (p *Provider) Fetch(ctx context.Context, card *types.CardRecord) ([]byte, error) {
	url, err := p.URL(card)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", p.config.UserAgent)

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: HTTP %d", url, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "application/octet-stream") {
		return nil, fmt.Errorf("%s does not point to an image (Content-Type: %s)", url, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", url, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty body from %s", url)
	}
	return data, nil
}

// Chain tries each source in order and returns the first image found
type Chain struct {
	sources []client.ImageSource
	logger  *slog.Logger
}

// NewChain creates a fallback chain over sources
func NewChain(logger *slog.Logger, sources ...client.ImageSource) *Chain {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Chain{sources: sources, logger: logger}
}

// Name returns the provider name used in logs
func (c *Chain) Name() string { return "chain" }

// Fetch returns the first successful download. When every source fails the
// error wraps ErrUnavailable and each source's failure.
func (c *Chain) Fetch(ctx context.Context, card *types.CardRecord) ([]byte, error) {
	var errs []error
	for _, s := range c.sources {
		data, err := s.Fetch(ctx, card)
		if err == nil {
			return data, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Debug("image source failed", "source", s.Name(), "name", card.Name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no image sources configured", ErrUnavailable)
	}
	return nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Join(errs...))
}
