package commands

import (
	"context"
	"os"
	"time"

	"cdrwatch-backend/lib/scrapers/orange"
	"cdrwatch-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var fetchPortal *string

func init() {
	fetchPortal = fetchCmd.Flags().String(
		"portal",
		"https://www.orangecarrier.com",
		"Base URL of the carrier portal.",
	)
	rootCmd.AddCommand(fetchCmd)
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <email> <password>",
	Short: "Logs into one carrier account and prints its current CDR listing.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()

		client, err := orange.NewClient(orange.ClientOptions{
			BaseUrl: *fetchPortal,
		})
		if err != nil {
			serviceutil.Fatal("create portal client", err)
		}
		err = client.Login(ctx, args[0], args[1])
		if err != nil {
			serviceutil.Fatal("login", err)
		}
		records, err := client.Records(ctx)
		if err != nil {
			serviceutil.Fatal("fetch records", err)
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"CLI", "To", "Time", "Duration", "Type"})
		for _, rec := range records {
			t.AppendRow(table.Row{rec.Cli, rec.To, rec.Time, rec.Duration, rec.Type})
		}
		t.Render()
	},
}
