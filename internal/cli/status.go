package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mjones3/exception-collector/internal/core/config"
	"github.com/mjones3/exception-collector/internal/infra/storage/postgres"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show exception counts by status and severity",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	repo := postgres.NewExceptionRepo(db)

	byStatus, err := repo.CountByStatus(ctx)
	if err != nil {
		slog.Error("Failed to count exceptions", "error", err)
		os.Exit(1)
	}
	bySeverity, err := repo.CountBySeverity(ctx)
	if err != nil {
		slog.Error("Failed to count exceptions", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "STATUS\tCOUNT")
	for status, count := range byStatus {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", status, count)
	}
	_ = w.Flush()

	fmt.Println()

	w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "SEVERITY\tCOUNT")
	for severity, count := range bySeverity {
		_, _ = fmt.Fprintf(w, "%s\t%d\n", severity, count)
	}
	_ = w.Flush()
}
