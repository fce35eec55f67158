package main

import (
	"fmt"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"cbzxl/internal/ledger"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var showArchives bool
	var limit int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show conversion statistics from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ledger.Open(cfg.DatabasePath())
			if err != nil {
				return fmt.Errorf("open ledger: %w", err)
			}
			defer store.Close()

			out := cmd.OutOrStdout()

			counts, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}
			totals, err := store.Totals(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(out, renderStatsSummary(counts, totals))

			if showArchives {
				records, err := store.Records(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintln(out, renderArchiveStats(records, limit))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&showArchives, "archives", "a", false, "List per-archive rows")
	cmd.Flags().IntVar(&limit, "limit", 0, "Cap the per-archive listing (0 = all)")
	return cmd
}

func renderStatsSummary(counts map[ledger.Status]int, totals ledger.Totals) string {
	order := []ledger.Status{
		ledger.StatusProcessed,
		ledger.StatusFailed,
		ledger.StatusSkippedNoImages,
		ledger.StatusDeleted,
	}
	rows := make([][]string, 0, len(order))
	for _, status := range order {
		rows = append(rows, []string{string(status), fmt.Sprintf("%d", counts[status])})
	}

	percent := 0.0
	if totals.OriginalSize > 0 {
		percent = float64(totals.BytesSaved) / float64(totals.OriginalSize) * 100
	}
	summary := renderTable([]string{"Status", "Archives"}, rows, []columnAlignment{alignLeft, alignRight})
	accounting := renderTable([]string{"Metric", "Value"}, [][]string{
		{"Original size", humanize.IBytes(uint64(max(totals.OriginalSize, 0)))},
		{"Current size", humanize.IBytes(uint64(max(totals.FinalSize, 0)))},
		{"Bytes saved", humanize.IBytes(uint64(max(totals.BytesSaved, 0)))},
		{"Percent saved", fmt.Sprintf("%.1f%%", percent)},
	}, []columnAlignment{alignLeft, alignRight})
	return summary + "\n" + accounting
}

func renderArchiveStats(records []*ledger.Record, limit int) string {
	// Largest savings first, the way you want to see a shrinking library.
	sort.Slice(records, func(i, j int) bool {
		if records[i].BytesSaved != records[j].BytesSaved {
			return records[i].BytesSaved > records[j].BytesSaved
		}
		return records[i].Path < records[j].Path
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	rows := make([][]string, 0, len(records))
	var totalSaved int64
	for _, record := range records {
		totalSaved += record.BytesSaved
		rows = append(rows, []string{
			record.Path,
			string(record.Status),
			record.DominantType,
			humanize.IBytes(uint64(max(record.OriginalSize, 0))),
			humanize.IBytes(uint64(max(record.FinalSize, 0))),
			humanize.IBytes(uint64(max(record.BytesSaved, 0))),
			fmt.Sprintf("%.1f%%", record.PercentSaved),
		})
	}
	headers := []string{"Archive", "Status", "Type", "Original", "Final", "Saved", "Saved %"}
	footer := []string{"total", "", "", "", "", humanize.IBytes(uint64(max(totalSaved, 0))), ""}
	aligns := []columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight}
	return renderTableWithFooter(headers, rows, footer, aligns)
}
