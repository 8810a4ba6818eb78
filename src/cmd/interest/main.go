package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/api-sage/ledger-core/src/internal/bootstrap"
	"github.com/api-sage/ledger-core/src/internal/config"
	"github.com/api-sage/ledger-core/src/internal/logger"
	"github.com/api-sage/ledger-core/src/internal/usecase/service_interfaces"
	"github.com/olekukonko/tablewriter"
)

const runTimeout = 30 * time.Minute

// interest runs one accrual pass over every ACTIVE account. It is meant to be
// invoked by an external scheduler.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", err, nil)
		os.Exit(1)
	}
	logger.Configure(os.Stderr, cfg.LogLevel)

	summary, err := run(cfg)
	if err != nil {
		logger.Error("interest run failed", err, nil)
		os.Exit(1)
	}

	renderSummary(os.Stdout, summary)
	if summary.Failed > 0 {
		os.Exit(2)
	}
}

func run(cfg config.Config) (service_interfaces.InterestRunSummary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	ledger, err := bootstrap.Open(ctx, cfg)
	if err != nil {
		return service_interfaces.InterestRunSummary{}, err
	}
	defer func() {
		if err := ledger.Close(context.Background()); err != nil {
			logger.Error("close ledger", err, nil)
		}
	}()

	return ledger.Interest.ApplyInterest(ctx)
}

func renderSummary(w io.Writer, summary service_interfaces.InterestRunSummary) {
	fmt.Fprintf(w, "Interest run %s\n", summary.RunID)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Processed", "Credited", "Skipped", "Failed", "Total Interest"})
	table.Append([]string{
		strconv.Itoa(summary.Processed),
		strconv.Itoa(summary.Credited),
		strconv.Itoa(summary.Skipped),
		strconv.Itoa(summary.Failed),
		summary.TotalInterest.StringFixed(2),
	})
	table.Render()

	if len(summary.FailedIDs) > 0 {
		fmt.Fprintf(w, "Failed accounts: %s\n", strings.Join(summary.FailedIDs, ", "))
	}
}
