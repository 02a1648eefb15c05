package commands

import (
	"log/slog"
	"os"
	"time"

	"amazonorders/lib/orderstore"
	"amazonorders/lib/scrapers/amazon/orders"
	"amazonorders/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyYear *int
var historyStartIndex *int
var historyAll *bool
var historyDb *string

func init() {
	historyYear = historyCmd.Flags().Int("year", time.Now().Year(), "The order-history year bucket to fetch.")
	historyStartIndex = historyCmd.Flags().Int("start-index", 0, "Offset into the year bucket.")
	historyAll = historyCmd.Flags().Bool("all", false, "Follow pagination to the end of the year bucket.")
	historyDb = historyCmd.Flags().String("db", "", "Also write the scraped orders to this sqlite database.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history [--year <yyyy>] [--all] [--db <path/to/orders.db>]",
	Short: "Logs in and scrapes the order history into a table.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		session := createSession(ctx)

		err := session.Login(ctx)
		if err != nil {
			serviceutil.Fatal("login failed", err)
		}

		t1 := time.Now()
		result, err := orders.History(ctx, session, orders.HistoryRequest{
			Year:             *historyYear,
			StartIndex:       *historyStartIndex,
			FollowPagination: *historyAll,
		})
		if err != nil {
			serviceutil.Fatal("failed to scrape order history", err)
		}
		slog.Info("scraped order history", "orders", len(result), "seconds", time.Since(t1).Seconds())

		writer := table.NewWriter()
		writer.SetOutputMirror(os.Stdout)
		writer.AppendHeader(table.Row{"Placed", "Order #", "Total", "Items"})
		for _, order := range result {
			writer.AppendRow(table.Row{
				order.PlacedDate.Format("2006-01-02"),
				order.Number,
				order.Total,
				len(order.Items),
			})
		}
		writer.Render()

		if *historyDb == "" {
			return
		}
		database, err := orderstore.Open("sqlite", *historyDb)
		if err != nil {
			serviceutil.Fatal("failed to open order db", err)
		}
		defer database.Close()

		store := orderstore.NewStore(database)
		err = store.Push(ctx, time.Now(), result)
		if err != nil {
			serviceutil.Fatal("failed to store orders", err)
		}
		slog.Info("orders stored", "db", *historyDb)
	},
}
