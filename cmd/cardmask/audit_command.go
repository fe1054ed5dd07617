package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/cardmask/internal/utils"
	"github.com/menta2k/cardmask/pkg/audit"
	"github.com/menta2k/cardmask/pkg/composer"
	"github.com/menta2k/cardmask/pkg/processing"
	"github.com/menta2k/cardmask/pkg/types"
)

func newAuditCommand(ctx *commandContext) *cobra.Command {
	var backend, url, model, debugDir string

	cmd := &cobra.Command{
		Use:   "audit [rendered images or directories...]",
		Short: "Ask a vision model whether rendered cards still show credit text",
		Long: "Each image's file name is resolved as a card name to find its redaction bands. " +
			"Directories are scanned for image files.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				args = []string{cfg.Output.Dir}
			}
			files, err := expandImageArgs(args)
			if err != nil {
				return err
			}

			vc, err := newVisionClient(cfg, backend, url)
			if err != nil {
				return err
			}
			ac := audit.DefaultConfig()
			if model != "" {
				ac.Model = model
			} else if cfg.Audit.Model != "" {
				ac.Model = cfg.Audit.Model
			}
			auditor := audit.NewAuditorWithConfig(vc, ac)

			deps, err := ctx.buildPipeline(cmd.Context(), 1, nil, nil, false)
			if err != nil {
				return err
			}
			defer deps.Close()

			comp := newComposer(cfg, deps.catalog)
			processor := processing.NewProcessor()
			out := cmd.OutOrStdout()
			paint := newStatusPainter(out)

			var rows [][]string
			dirty := 0
			for _, path := range files {
				name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				card, err := deps.pipeline.Resolve(name)
				if err != nil {
					rows = append(rows, []string{name, "", paint.Fail("unresolved"), err.Error()})
					dirty++
					continue
				}
				img, err := processor.LoadImage(path)
				if err != nil {
					rows = append(rows, []string{name, "", paint.Fail("unreadable"), err.Error()})
					dirty++
					continue
				}

				rects := outputRects(comp, deps.pipeline.Style(card).Regions, img.Bounds())
				report, err := auditor.Audit(cmd.Context(), name, img, rects)
				if err != nil {
					return err
				}
				if debugDir != "" {
					overlay := processor.CreateDebugOverlay(img, rects)
					dst := filepath.Join(debugDir, utils.SanitizeFilename(name)+"_audit.png")
					if err := processor.SaveImage(overlay, dst, processing.FormatPNG, 0); err != nil {
						return err
					}
				}

				status, detail := paint.OK("clean"), ""
				if !report.Clean() {
					dirty++
					status = paint.Warn("text")
					detail = describeFindings(report)
				}
				rows = append(rows, []string{name, card.SetCode(), status, detail})
			}

			fmt.Fprintln(out, renderTable([]string{"Card", "Set", "Audit", "Findings"}, rows, nil))
			if dirty > 0 {
				return fmt.Errorf("%d of %d images need attention", dirty, len(files))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "Vision backend (ollama, llamacpp)")
	cmd.Flags().StringVar(&url, "url", "", "Vision server URL")
	cmd.Flags().StringVar(&model, "model", "", "Vision model name")
	cmd.Flags().StringVar(&debugDir, "debug-dir", "", "Write band overlays into this directory")
	return cmd
}

// outputRects maps working-space regions onto an image of size b
func outputRects(comp *composer.Composer, regions []types.RedactionRegion, b image.Rectangle) []image.Rectangle {
	cfg := comp.Config()
	rects := make([]image.Rectangle, 0, len(regions))
	for _, r := range regions {
		o := comp.OutputRect(r.Rect())
		if b.Dx() != cfg.Width || b.Dy() != cfg.Height {
			o = image.Rect(
				o.Min.X*b.Dx()/cfg.Width, o.Min.Y*b.Dy()/cfg.Height,
				o.Max.X*b.Dx()/cfg.Width, o.Max.Y*b.Dy()/cfg.Height,
			)
		}
		rects = append(rects, o.Add(b.Min))
	}
	return rects
}

func describeFindings(r *audit.Report) string {
	var parts []string
	for _, f := range r.Findings {
		switch {
		case f.Err != "":
			parts = append(parts, fmt.Sprintf("#%d error", f.Region))
		case f.TextVisible:
			s := "#" + strconv.Itoa(f.Region)
			if f.Text != "" {
				s += " " + strconv.Quote(f.Text)
			}
			parts = append(parts, s)
		}
	}
	return strings.Join(parts, ", ")
}

func expandImageArgs(args []string) ([]string, error) {
	var files []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, a)
			continue
		}
		listed, err := utils.ListImageFiles(a)
		if err != nil {
			return nil, err
		}
		files = append(files, listed...)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no images to audit")
	}
	return files, nil
}
