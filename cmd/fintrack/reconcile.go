package main

import (
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tinoosan/fintrack/internal/ledger"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute wallet balances from their transactions",
		Long: `Recompute cached wallet balances as opening balance plus the signed sum of
transactions and report any drift. Without --wallet every wallet of the owner is checked.`,
		RunE: runReconcile,
	}
	cmd.Flags().String("owner", "", "owner user id (required)")
	cmd.Flags().String("wallet", "", "single wallet id")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func runReconcile(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	rawOwner, _ := cmd.Flags().GetString("owner")
	owner, err := uuid.Parse(rawOwner)
	if err != nil { return fmt.Errorf("invalid --owner: %w", err) }
	var walletID uuid.UUID
	if raw, _ := cmd.Flags().GetString("wallet"); raw != "" {
		if walletID, err = uuid.Parse(raw); err != nil { return fmt.Errorf("invalid --wallet: %w", err) }
	}

	st, closeFn, err := openBackend(ctx, cfg.Database, logger)
	if err != nil { return err }
	defer closeFn()
	svc, err := buildServices(st, cfg, logger)
	if err != nil { return err }

	var recs []ledger.Reconciliation
	if walletID != uuid.Nil {
		rec, err := svc.Wallets.Recompute(ctx, owner, walletID)
		if err != nil { return err }
		recs = append(recs, rec)
	} else {
		recs, err = svc.Wallets.ReconcileAll(ctx, owner)
		// print what was reconciled before the failure
		printReconciliations(cmd.OutOrStdout(), recs)
		return err
	}
	printReconciliations(cmd.OutOrStdout(), recs)
	return nil
}

func printReconciliations(w io.Writer, recs []ledger.Reconciliation) {
	drifted := 0
	for _, r := range recs {
		mark := "ok"
		if r.DriftMinor != 0 {
			mark = "drift"
			drifted++
		}
		fmt.Fprintf(w, "%s  %-5s  before=%s after=%s drift_minor=%d\n", r.WalletID, mark, r.Before, r.After, r.DriftMinor)
	}
	fmt.Fprintf(w, "%d wallet(s) checked, %d corrected\n", len(recs), drifted)
}
