package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newResolveCommand(ctx *commandContext) *cobra.Command {
	var deckPath string
	var blessings []string

	cmd := &cobra.Command{
		Use:   "resolve [card names...]",
		Short: "Show which printing and frame style each name resolves to",
		RunE: func(cmd *cobra.Command, args []string) error {
			names, err := collectNames(args, deckPath)
			if err != nil {
				return err
			}
			bless, err := parseBlessings(blessings)
			if err != nil {
				return err
			}
			deps, err := ctx.buildPipeline(cmd.Context(), 1, bless, nil, false)
			if err != nil {
				return err
			}
			defer deps.Close()

			out := cmd.OutOrStdout()
			paint := newStatusPainter(out)
			rows := make([][]string, 0, len(names))
			missing := 0
			for _, name := range names {
				card, err := deps.pipeline.Resolve(name)
				if err != nil {
					missing++
					rows = append(rows, []string{name, "", "", "", paint.Fail("not found")})
					continue
				}
				style := deps.pipeline.Style(card)
				rows = append(rows, []string{
					name,
					card.SetCode(),
					card.ID(),
					string(card.Border()),
					fmt.Sprintf("%s (%d regions)", style.Tag, len(style.Regions)),
				})
			}
			fmt.Fprintln(out, renderTable([]string{"Name", "Set", "ID", "Border", "Style"}, rows, []columnAlignment{alignLeft, alignLeft, alignRight}))
			if missing > 0 {
				return fmt.Errorf("%d of %d names not resolved", missing, len(names))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&deckPath, "deck", "d", "", "Decklist file, one card per line")
	cmd.Flags().StringArrayVar(&blessings, "bless", nil, "Pin a card to a set, NAME=SET (repeatable)")
	return cmd
}
