// Package audit asks a local vision model whether any identifying text
// survived redaction.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"regexp"
	"strings"

	"github.com/menta2k/cardmask/pkg/client"
	"github.com/menta2k/cardmask/pkg/processing"
)

// DefaultPrompt is sent with every band crop
const DefaultPrompt = `You are checking a small strip cut from the bottom of a trading card.

Return JSON only:
{
  "text_visible": false,
  "confidence": 0.0,
  "text": "any characters you can read, or empty"
}

HARD RULES
- text_visible is true only if you can see printed letters or digits (artist credit, copyright line, collector number).
- Ignore flat color, texture, painted artwork and frame lines.
- confidence is in [0,1].
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// ErrNoRegions is returned when there is nothing to audit
var ErrNoRegions = errors.New("no regions to audit")

// Finding is the model's verdict on one band
type Finding struct {
	Region      int             `json:"region"`
	Rect        image.Rectangle `json:"rect"`
	TextVisible bool            `json:"text_visible"`
	Confidence  float64         `json:"confidence"`
	Text        string          `json:"text,omitempty"`
	Fallback    bool            `json:"fallback,omitempty"`
	Err         string          `json:"error,omitempty"`
}

// Report collects the findings for one image
type Report struct {
	Name     string    `json:"name"`
	Findings []Finding `json:"findings"`
}

// Clean reports whether no band shows readable text
func (r *Report) Clean() bool {
	for _, f := range r.Findings {
		if f.TextVisible || f.Err != "" {
			return false
		}
	}
	return true
}

// Config holds the audit parameters
type Config struct {
	Model  string
	Prompt string
	// Padding grows each band before cropping so glyphs on its edge stay visible
	Padding int
	// MaxDim bounds the longer side of the crop sent to the model
	MaxDim int
	// MinConfidence is the confidence below which a positive verdict is ignored
	MinConfidence float64
}

// DefaultConfig returns the audit defaults
func DefaultConfig() Config {
	return Config{
		Model:         "qwen2.5vl:7b",
		Prompt:        DefaultPrompt,
		Padding:       6,
		MaxDim:        768,
		MinConfidence: 0.5,
	}
}

// Auditor runs band crops through a vision model
type Auditor struct {
	client    client.VisionClient
	processor *processing.Processor
	config    Config
}

// NewAuditor creates an auditor with the default configuration
func NewAuditor(c client.VisionClient) *Auditor {
	return NewAuditorWithConfig(c, DefaultConfig())
}

// NewAuditorWithConfig creates an auditor with custom parameters
func NewAuditorWithConfig(c client.VisionClient, config Config) *Auditor {
	if config.Prompt == "" {
		config.Prompt = DefaultPrompt
	}
	return &Auditor{client: c, processor: processing.NewProcessor(), config: config}
}

// Audit checks every rectangle of img. A model failure on one band is
// recorded in its finding and does not stop the others.
func (a *Auditor) Audit(ctx context.Context, name string, img image.Image, rects []image.Rectangle) (*Report, error) {
	if len(rects) == 0 {
		return nil, ErrNoRegions
	}

	report := &Report{Name: name}
	for i, r := range rects {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		f := Finding{Region: i, Rect: r}
		band, err := a.processor.CropBand(img, r, a.config.Padding)
		if err != nil {
			f.Err = err.Error()
			report.Findings = append(report.Findings, f)
			continue
		}

		b64, err := a.processor.PrepareImageForModel(band, processing.FormatPNG, a.config.MaxDim, 0)
		if err != nil {
			return report, fmt.Errorf("failed to prepare region %d: %w", i, err)
		}

		raw, err := a.client.Query(ctx, a.config.Model, a.config.Prompt, b64)
		if err != nil {
			f.Err = err.Error()
			report.Findings = append(report.Findings, f)
			continue
		}

		v := parseVerdict(raw)
		f.TextVisible = v.TextVisible && v.Confidence >= a.config.MinConfidence
		f.Confidence = v.Confidence
		f.Text = strings.TrimSpace(v.Text)
		f.Fallback = v.fallback
		report.Findings = append(report.Findings, f)
	}
	return report, nil
}

type verdict struct {
	TextVisible bool    `json:"text_visible"`
	Confidence  float64 `json:"confidence"`
	Text        string  `json:"text"`
	fallback    bool
}

var leadingAnswer = regexp.MustCompile(`(?i)^\W*(yes|no)\b`)

// parseVerdict reads the model reply. Replies that are not JSON are read as
// a plain yes/no answer; anything else counts as a low-confidence "visible".
func parseVerdict(raw string) verdict {
	cleaned := sanitizeModelJSON(raw)
	if strings.HasPrefix(cleaned, "{") {
		var v verdict
		if err := json.Unmarshal([]byte(cleaned), &v); err == nil {
			if v.Confidence == 0 && v.TextVisible {
				v.Confidence = 1
			}
			v.Confidence = clamp(v.Confidence, 0, 1)
			return v
		}
	}

	if m := leadingAnswer.FindStringSubmatch(raw); m != nil {
		return verdict{TextVisible: strings.EqualFold(m[1], "yes"), Confidence: 1, fallback: true}
	}
	return verdict{TextVisible: true, Confidence: 0, Text: strings.TrimSpace(raw), fallback: true}
}

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = blockComment.ReplaceAllString(raw, "")
	raw = lineComment.ReplaceAllString(raw, "")
	raw = trailingComma.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

var (
	blockComment  = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment   = regexp.MustCompile(`(?m)^\s*//.*$`)
	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)
)

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
