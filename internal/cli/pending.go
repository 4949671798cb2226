package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/mjones3/exception-collector/internal/core/config"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List exceptions with a pending retry attempt",
	Run:   runPending,
}

func init() {
	rootCmd.AddCommand(pendingCmd)
}

func runPending(cmd *cobra.Command, args []string) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = db.Close()
	}()

	// Direct SQL keeps the CLI independent of service wiring
	rows, err := db.QueryContext(ctx, `
		SELECT e.transaction_id, e.interface_type, a.attempt_number, a.initiated_by, a.initiated_at
		FROM retry_attempts a
		JOIN interface_exceptions e ON e.id = a.exception_id
		WHERE a.status = 'PENDING'
		ORDER BY a.initiated_at`)
	if err != nil {
		slog.Error("Failed to query pending attempts", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = rows.Close()
	}()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "TRANSACTION\tINTERFACE\tATTEMPT\tINITIATED BY\tINITIATED AT")

	for rows.Next() {
		var txnID, iface, initiatedBy string
		var attempt int
		var initiatedAt time.Time
		if err := rows.Scan(&txnID, &iface, &attempt, &initiatedBy, &initiatedAt); err != nil {
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", txnID, iface, attempt, initiatedBy, initiatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}
