package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/newthinker/buddy/internal/app"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	backtestStart    string
	backtestEnd      string
	backtestInitial  string
	backtestMonthly  string
	backtestStrategy string
	backtestNotify   bool
)

var backtestCmd = &cobra.Command{
	Use:   "backtest <ticker>...",
	Short: "Backtest tickers against the benchmark",
	Long: `Run the configured strategy over each ticker, compare it with the benchmark
and print the report. Unset flags keep the configured defaults.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestStart, "start", "", "Start date YYYY-MM-DD")
	backtestCmd.Flags().StringVar(&backtestEnd, "end", "", "End date YYYY-MM-DD (default today)")
	backtestCmd.Flags().StringVar(&backtestInitial, "initial", "", "Initial investment")
	backtestCmd.Flags().StringVar(&backtestMonthly, "monthly", "", "Monthly investment")
	backtestCmd.Flags().StringVarP(&backtestStrategy, "strategy", "s", "", "Strategy id or name")
	backtestCmd.Flags().BoolVar(&backtestNotify, "notify", false, "Send reports to the configured notifiers")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	a, err := app.Build(cfg, log)
	if err != nil {
		return fmt.Errorf("building app: %w", err)
	}
	runner := a.Runner()
	if !backtestNotify {
		runner = runner.WithRouter(nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var failed []string
	for i, ticker := range args {
		if i > 0 {
			fmt.Println()
		}
		req := runner.Request(ticker)
		if backtestStart != "" {
			if req.Start, err = time.Parse(time.DateOnly, backtestStart); err != nil {
				return fmt.Errorf("invalid start date format (expected YYYY-MM-DD): %w", err)
			}
		}
		if backtestEnd != "" {
			if req.End, err = time.Parse(time.DateOnly, backtestEnd); err != nil {
				return fmt.Errorf("invalid end date format (expected YYYY-MM-DD): %w", err)
			}
		}
		if backtestInitial != "" {
			if req.Initial, err = decimal.NewFromString(backtestInitial); err != nil {
				return fmt.Errorf("invalid initial investment: %w", err)
			}
		}
		if backtestMonthly != "" {
			if req.Monthly, err = decimal.NewFromString(backtestMonthly); err != nil {
				return fmt.Errorf("invalid monthly investment: %w", err)
			}
		}
		if backtestStrategy != "" {
			req.Strategy = backtestStrategy
		}

		out, err := runner.Run(ctx, req)
		if err != nil {
			fmt.Printf("%s: %v\n", req.Ticker, err)
			failed = append(failed, req.Ticker)
			continue
		}

		res := out.Result
		fmt.Println("=== buddy backtest ===")
		fmt.Print(out.Report.Detail())
		fmt.Printf("Contributions: %d\n", res.Contributions)
		fmt.Printf("Trading days: %s\n", humanize.Comma(int64(res.Stats.Periods)))
		fmt.Printf("Signals: %d buy / %d sell / %d hold\n", res.Stats.BuyDays, res.Stats.SellDays, res.Stats.HoldDays)
		fmt.Printf("Max drawdown: %.2f %%\n", res.Stats.MaxDrawdown)
		fmt.Printf("Sharpe ratio: %.2f\n", res.Stats.SharpeRatio)
		if res.ArtifactPath != "" {
			fmt.Printf("Artifact: %s\n", res.ArtifactPath)
		}
		for _, msg := range out.Alerts {
			fmt.Printf("Alert: %s\n", msg)
		}
	}

	if len(failed) > 0 {
		return fmt.Errorf("%d of %d backtests failed: %s", len(failed), len(args), strings.Join(failed, ", "))
	}
	return nil
}
