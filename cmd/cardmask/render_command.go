package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/cardmask"
	"github.com/menta2k/cardmask/internal/utils"
	"github.com/menta2k/cardmask/pkg/audit"
	"github.com/menta2k/cardmask/pkg/processing"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var (
		deckPath  string
		outDir    string
		format    string
		quality   int
		workers   int
		blessings []string
		noCache   bool
		withAudit bool
	)

	cmd := &cobra.Command{
		Use:   "render [card names...]",
		Short: "Resolve, download and redact cards into the output directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			names, err := collectNames(args, deckPath)
			if err != nil {
				return err
			}
			bless, err := parseBlessings(blessings)
			if err != nil {
				return err
			}

			if outDir == "" {
				outDir = cfg.Output.Dir
			}
			if format == "" {
				format = cfg.Output.Format
			}
			if quality <= 0 {
				quality = cfg.Output.Quality
			}

			sink, err := processing.NewDirSink(outDir, format, quality)
			if err != nil {
				return err
			}
			lock, err := utils.LockDir(outDir)
			if err != nil {
				return err
			}
			defer lock.Unlock()

			deps, err := ctx.buildPipeline(cmd.Context(), workers, bless, sink, !noCache)
			if err != nil {
				return err
			}
			defer deps.Close()

			if withAudit {
				vc, err := newVisionClient(cfg, "", "")
				if err != nil {
					return err
				}
				ac := audit.DefaultConfig()
				if cfg.Audit.Model != "" {
					ac.Model = cfg.Audit.Model
				}
				deps.pipeline.SetAuditor(audit.NewAuditorWithConfig(vc, ac))
			}

			results := deps.pipeline.ProcessDecklist(cmd.Context(), names)
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderResults(results, newStatusPainter(out)))

			summary := cardmask.Summarize(results)
			fmt.Fprintln(out, summary.String())
			if summary.Failed() > 0 {
				return fmt.Errorf("%d of %d cards failed", summary.Failed(), summary.Total)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&deckPath, "deck", "d", "", "Decklist file, one card per line")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "Output directory")
	cmd.Flags().StringVar(&format, "format", "", "Output format (png, jpg, webp)")
	cmd.Flags().IntVar(&quality, "quality", 0, "JPEG/WebP quality (1-100)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Cards processed concurrently")
	cmd.Flags().StringArrayVar(&blessings, "bless", nil, "Pin a card to a set, NAME=SET (repeatable)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip the image cache")
	cmd.Flags().BoolVar(&withAudit, "audit", false, "Ask the vision model whether text survived redaction")
	return cmd
}

func renderResults(results []cardmask.Result, paint statusPainter) string {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		set, id, status, detail := "", "", paint.OK("ok"), r.Path
		if r.Card != nil {
			set, id = r.Card.SetCode(), r.Card.ID()
		}
		if r.Err != nil {
			status = paint.Fail("failed")
			detail = failureReason(r.Err)
		} else if r.Audit != nil && !r.Audit.Clean() {
			status = paint.Warn("check")
		}
		rows = append(rows, []string{r.Name, set, id, status, detail})
	}
	return renderTable([]string{"Name", "Set", "ID", "Status", "Output"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight})
}

func failureReason(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}
