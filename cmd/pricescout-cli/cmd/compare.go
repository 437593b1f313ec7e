package cmd

import (
	"fmt"
	"log"
	"os"
	"pricescout-backend/lib/listing"

	"github.com/go-resty/resty/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(compareCmd)
}

type compareResponse struct {
	Results []listing.ComparisonResult `json:"results"`
	Message string                     `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var compareCmd = &cobra.Command{
	Use:   "compare <term>",
	Short: "Runs a price comparison for the given search term and prints the gaps found.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if BaseUrl == "" {
			log.Fatal("You should specify the base url of the pricescout daemon in the environment variable PRICESCOUT_BASE_URL.")
		}

		var result compareResponse
		var failure errorResponse
		res, err := resty.New().R().
			SetContext(cmd.Context()).
			SetBody(map[string]string{"searchTerm": args[0]}).
			SetResult(&result).
			SetError(&failure).
			Post(BaseUrl)
		if err != nil {
			log.Fatal(err)
		}
		if res.IsError() {
			log.Fatalf("daemon returned %s: %s", res.Status(), failure.Error)
		}

		if result.Message != "" {
			fmt.Println(result.Message)
		}
		if len(result.Results) == 0 {
			fmt.Println("No price gaps found.")
			return
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{
			"Product", "Costco ¥", "Amazon ¥", "Diff ¥", "Diff %", "Similarity",
		})
		for _, r := range result.Results {
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
	},
}
