package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"coho/internal/config"
	"coho/internal/queue"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	var (
		destFilter string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Show uploads recorded in the local catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				names := []string{destFilter}
				if strings.TrimSpace(destFilter) == "" {
					names = names[:0]
					for _, dest := range cfg.Destinations {
						names = append(names, dest.Name)
					}
				}

				var entries []queue.CatalogEntry
				for _, name := range names {
					batch, err := store.CatalogByDestination(cmd.Context(), name)
					if err != nil {
						return err
					}
					entries = append(entries, batch...)
				}

				if asJSON {
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Catalog is empty")
					return nil
				}

				rows := make([][]string, 0, len(entries))
				for _, entry := range entries {
					year := ""
					if entry.Year > 0 {
						year = fmt.Sprint(entry.Year)
					}
					rows = append(rows, []string{
						entry.Destination,
						entry.Artist,
						entry.Title,
						entry.Format,
						year,
						entry.UploadedAt.Format("2006-01-02"),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Destination", "Artist", "Title", "Format", "Year", "Uploaded"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&destFilter, "destination", "", "Limit to one destination")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}
