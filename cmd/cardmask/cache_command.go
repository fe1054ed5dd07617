package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menta2k/cardmask/internal/utils"
	"github.com/menta2k/cardmask/pkg/cache"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect the downloaded image cache",
	}

	cacheCmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cache size",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if !utils.FileExists(cfg.Cache.Path) {
				fmt.Fprintf(cmd.OutOrStdout(), "No cache at %s\n", cfg.Cache.Path)
				return nil
			}
			store, err := cache.Open(cfg.Cache.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			st, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			rows := [][]string{
				{"Path", store.Path()},
				{"Entries", fmt.Sprintf("%d", st.Entries)},
				{"Size", utils.FormatFileSize(st.Bytes)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Cache", ""}, rows, nil))
			return nil
		},
	})
	return cacheCmd
}
