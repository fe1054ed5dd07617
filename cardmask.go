// Package cardmask turns a list of card names into normalized card images
// with their frame credits and legal lines redacted.
//
// Basic usage:
//
//	cat, _ := catalog.LoadFile("AllSets.json.zip")
//	res := resolver.New(cat, resolver.NewExclusions(resolver.DefaultBannedSets, nil, nil))
//	src := source.NewChain(nil, source.NewPrimary("", nil), source.NewSecondary("", nil))
//	sink, _ := processing.NewDirSink("./output", processing.FormatPNG, 0)
//
//	p := cardmask.New(res, src, sink)
//	for _, r := range p.ProcessDecklist(ctx, []string{"Lightning Bolt", "Counterspell"}) {
//		fmt.Println(r.Name, r.Path, r.Err)
//	}
//
// Every name is handled independently. A name that cannot be resolved,
// downloaded, redacted or written yields a *CardError in its Result and the
// rest of the batch continues.
package cardmask

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/menta2k/cardmask/internal/logging"
	"github.com/menta2k/cardmask/pkg/audit"
	"github.com/menta2k/cardmask/pkg/cache"
	"github.com/menta2k/cardmask/pkg/client"
	"github.com/menta2k/cardmask/pkg/composer"
	"github.com/menta2k/cardmask/pkg/processing"
	"github.com/menta2k/cardmask/pkg/types"
)

// Version of the cardmask library
const Version = "1.0.0"

// CardResolver selects the canonical printing of a name
type CardResolver interface {
	Resolve(name string) (*types.CardRecord, error)
}

// Config holds pipeline execution settings
type Config struct {
	// Workers is the number of cards processed concurrently
	Workers int
}

// DefaultConfig returns the pipeline defaults
func DefaultConfig() Config {
	return Config{Workers: 4}
}

// Result is the outcome for one requested name
type Result struct {
	Name  string
	Card  *types.CardRecord
	Path  string
	Audit *audit.Report
	Err   error
}

// OK reports whether an image was written
func (r Result) OK() bool { return r.Err == nil }

// Pipeline resolves, downloads, redacts and writes cards
type Pipeline struct {
	config    Config
	resolver  CardResolver
	source    client.ImageSource
	sink      client.OutputSink
	cache     client.ImageCache
	composer  *composer.Composer
	auditor   *audit.Auditor
	processor *processing.Processor
	logger    *slog.Logger
}

// New creates a pipeline with the default configuration
func New(res CardResolver, src client.ImageSource, sink client.OutputSink) *Pipeline {
	return NewWithConfig(DefaultConfig(), res, src, sink)
}

// NewWithConfig creates a pipeline with custom execution settings
func NewWithConfig(config Config, res CardResolver, src client.ImageSource, sink client.OutputSink) *Pipeline {
	if config.Workers < 1 {
		config.Workers = 1
	}
	return &Pipeline{
		config:    config,
		resolver:  res,
		source:    src,
		sink:      sink,
		composer:  composer.New(),
		processor: processing.NewProcessor(),
		logger:    logging.NewNop(),
	}
}

// SetCache enables the scan cache
func (p *Pipeline) SetCache(c client.ImageCache) {
	p.cache = c
}

// SetComposer replaces the image composer
func (p *Pipeline) SetComposer(c *composer.Composer) {
	p.composer = c
}

// SetAuditor runs every written card through a vision model audit
func (p *Pipeline) SetAuditor(a *audit.Auditor) {
	p.auditor = a
}

// SetLogger sets the pipeline logger
func (p *Pipeline) SetLogger(logger *slog.Logger) {
	p.logger = logging.NewComponentLogger(logger, "pipeline")
}

// ProcessCard runs one name through the pipeline
func (p *Pipeline) ProcessCard(ctx context.Context, name string) Result {
	return p.process(ctx, p.logger, name)
}

// ProcessDecklist processes every name on a worker pool and returns the
// results in input order. A failed card never stops the others.
func (p *Pipeline) ProcessDecklist(ctx context.Context, names []string) []Result {
	runID := uuid.NewString()
	logger := p.logger.With(logging.FieldRunID, runID)
	logger.Info("run started", "cards", len(names), "workers", p.config.Workers)

	results := make([]Result, len(names))
	jobs := make(chan int)

	workers := min(p.config.Workers, len(names))
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					results[i] = Result{Name: names[i], Err: err}
					continue
				}
				results[i] = p.process(ctx, logger, names[i])
			}
		}()
	}
	for i := range names {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	s := Summarize(results)
	logger.Info("run finished", "written", s.Written, "failed", s.Failed())
	return results
}

// Render resolves name and returns its redacted image without writing it.
// Failures are *CardError values.
func (p *Pipeline) Render(ctx context.Context, name string) (*types.CardRecord, *image.NRGBA, error) {
	return p.render(ctx, p.logger, name)
}

// Resolve returns the canonical printing of name
func (p *Pipeline) Resolve(name string) (*types.CardRecord, error) {
	card, err := p.resolver.Resolve(name)
	if err != nil {
		return nil, &CardError{Name: name, Kind: ErrNameNotResolved, Err: err}
	}
	return card, nil
}

// Style returns the frame style used for card
func (p *Pipeline) Style(card *types.CardRecord) types.FrameStyle {
	return p.composer.Classify(card)
}

// Scan returns the decoded provider scan of card, before any processing
func (p *Pipeline) Scan(ctx context.Context, card *types.CardRecord) (image.Image, error) {
	img, err := p.fetch(ctx, p.logger, card)
	if err != nil {
		return nil, cardError(card.Name, card, ErrImageUnavailable, err)
	}
	return img, nil
}

// Preview returns the prepared working image of raw with the redaction bands
// of card outlined.
func (p *Pipeline) Preview(card *types.CardRecord, raw image.Image) (image.Image, error) {
	work, err := p.composer.Prepare(raw)
	if err != nil {
		return nil, cardError(card.Name, card, ErrRedactionFailure, err)
	}
	style := p.composer.Classify(card)
	rects := make([]image.Rectangle, 0, len(style.Regions))
	for _, r := range style.Regions {
		rects = append(rects, r.Rect())
	}
	return p.processor.CreateDebugOverlay(work, rects), nil
}

func (p *Pipeline) render(ctx context.Context, logger *slog.Logger, name string) (*types.CardRecord, *image.NRGBA, error) {
	card, err := p.resolver.Resolve(name)
	if err != nil {
		return nil, nil, p.fail(logger, name, nil, ErrNameNotResolved, err)
	}

	raw, err := p.fetch(ctx, logger, card)
	if err != nil {
		return card, nil, p.fail(logger, name, card, ErrImageUnavailable, err)
	}

	out, err := p.composer.Compose(card, raw)
	if err != nil {
		return card, nil, p.fail(logger, name, card, ErrRedactionFailure, err)
	}
	return card, out, nil
}

func (p *Pipeline) process(ctx context.Context, logger *slog.Logger, name string) Result {
	card, out, err := p.render(ctx, logger, name)
	res := Result{Name: name, Card: card, Err: err}
	if err != nil {
		return res
	}

	if p.sink == nil {
		res.Err = p.fail(logger, name, card, ErrOutputFailure, errors.New("no output sink configured"))
		return res
	}
	path, err := p.sink.Write(ctx, card.Name, out)
	if err != nil {
		res.Err = p.fail(logger, name, card, ErrOutputFailure, err)
		return res
	}
	res.Path = path
	logger.Info("card written",
		logging.FieldName, name,
		logging.FieldPath, path,
		logging.FieldSet, card.SetCode(),
		logging.FieldID, card.ID())

	if p.auditor != nil {
		res.Audit = p.audit(ctx, logger, card, name, out)
	}
	return res
}

// fetch returns the decoded scan, consulting the cache first
func (p *Pipeline) fetch(ctx context.Context, logger *slog.Logger, card *types.CardRecord) (image.Image, error) {
	key := cache.Key(card)
	if p.cache != nil {
		data, ok, err := p.cache.Get(ctx, key)
		if err != nil {
			logger.Debug("cache read failed", "key", key, logging.Error(err))
		}
		if ok {
			img, err := p.processor.Decode(data)
			if err == nil {
				return img, nil
			}
			logger.Debug("cached scan unreadable", "key", key, logging.Error(err))
		}
	}

	if p.source == nil {
		return nil, errors.New("no image source configured")
	}
	data, err := p.source.Fetch(ctx, card)
	if err != nil {
		return nil, err
	}
	img, err := p.processor.Decode(data)
	if err != nil {
		return nil, err
	}

	if p.cache != nil {
		if err := p.cache.Put(ctx, key, data); err != nil {
			logger.Debug("cache write failed", "key", key, logging.Error(err))
		}
	}
	return img, nil
}

func (p *Pipeline) audit(ctx context.Context, logger *slog.Logger, card *types.CardRecord, name string, out image.Image) *audit.Report {
	style := p.composer.Classify(card)
	rects := make([]image.Rectangle, 0, len(style.Regions))
	for _, r := range style.Regions {
		rects = append(rects, p.composer.OutputRect(r.Rect()))
	}

	report, err := p.auditor.Audit(ctx, name, out, rects)
	if err != nil {
		logger.Warn("audit failed", logging.FieldName, name, logging.Error(err))
		return report
	}
	if !report.Clean() {
		logger.Warn("text may remain after redaction",
			logging.FieldName, name,
			logging.FieldSet, card.SetCode(),
			logging.FieldID, card.ID())
	}
	return report
}

func cardError(name string, card *types.CardRecord, kind, err error) *CardError {
	ce := &CardError{Name: name, Kind: kind, Err: err}
	if card != nil {
		ce.SetCode = card.SetCode()
		ce.CardID = card.ID()
	}
	return ce
}

func (p *Pipeline) fail(logger *slog.Logger, name string, card *types.CardRecord, kind, err error) error {
	ce := cardError(name, card, kind, err)
	logger.Warn("card skipped",
		logging.FieldName, name,
		logging.FieldSet, ce.SetCode,
		logging.FieldID, ce.CardID,
		logging.FieldReason, kind.Error(),
		logging.Error(err))
	return ce
}

// Summary counts the outcomes of a batch
type Summary struct {
	Total       int
	Written     int
	NotResolved int
	NoImage     int
	Redaction   int
	Output      int
	Other       int
}

// Failed returns the number of names without an image
func (s Summary) Failed() int { return s.Total - s.Written }

// Summarize tallies results by outcome
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	for _, r := range results {
		switch {
		case r.Err == nil:
			s.Written++
		case errors.Is(r.Err, ErrNameNotResolved):
			s.NotResolved++
		case errors.Is(r.Err, ErrImageUnavailable):
			s.NoImage++
		case errors.Is(r.Err, ErrRedactionFailure):
			s.Redaction++
		case errors.Is(r.Err, ErrOutputFailure):
			s.Output++
		default:
			s.Other++
		}
	}
	return s
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

// String renders a one-line summary
func (s Summary) String() string {
	return fmt.Sprintf("%d/%d written (%d not found, %d no image, %d redaction, %d output, %d other)",
		s.Written, s.Total, s.NotResolved, s.NoImage, s.Redaction, s.Output, s.Other)
}
