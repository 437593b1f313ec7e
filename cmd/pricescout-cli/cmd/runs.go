package cmd

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"pricescout-backend/lib/runstore"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var runsDbPath string

func init() {
	runsCmd.Flags().StringVar(&runsDbPath, "db", "pricescout.db", "Path to the run history database.")
	rootCmd.AddCommand(runsCmd)
}

var runsCmd = &cobra.Command{
	Use:   "runs [run id]",
	Short: "Lists recent comparison runs, or the results of one run given its id.",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		store, err := runstore.Open(runsDbPath)
		if err != nil {
			log.Fatal(err)
		}
		defer store.Close()

		if len(args) == 1 {
			runId, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				log.Fatalf("invalid run id %q", args[0])
			}
			printRunResults(cmd, store, runId)
			return
		}
		printRecentRuns(cmd, store)
	},
}

func printRecentRuns(cmd *cobra.Command, store runstore.Store) {
	runs, err := store.Recent(cmd.Context(), 20)
	if err != nil {
		log.Fatal(err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{
		"Id", "Term", "State", "Started", "Scraped", "Matched", "Search failures",
	})
	for _, r := range runs {
		t.AppendRow(table.Row{
			r.Id,
			r.Term,
			r.State,
			r.StartedAt.Format(time.ANSIC),
			r.Scraped,
			r.Matched,
			r.SearchFailures,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func printRunResults(cmd *cobra.Command, store runstore.Store, runId int64) {
	results, err := store.Results(cmd.Context(), runId)
	if err != nil {
		log.Fatal(err)
	}
	if len(results) == 0 {
		fmt.Println("No results recorded for this run.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{
		"Product", "Costco ¥", "Amazon ¥", "Diff ¥", "Diff %", "Similarity",
	})
	for _, r := range results {
		t.AppendRow(table.Row{
			r.Pair.Costco.Name,
			r.Pair.Costco.Price,
			r.Pair.Amazon.Price,
			r.PriceDifference,
			fmt.Sprintf("%.1f%%", r.PercentageDifference),
			fmt.Sprintf("%.2f", r.Pair.Similarity),
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
