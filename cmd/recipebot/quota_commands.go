package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"recipebot/internal/quota"
)

func newQuotaCommand(ctx *commandContext) *cobra.Command {
	quotaCmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect and credit requester quotas",
	}
	quotaCmd.AddCommand(newQuotaShowCommand(ctx))
	quotaCmd.AddCommand(newQuotaCreditCommand(ctx))
	return quotaCmd
}

func newQuotaShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <user-id>",
		Short: "Show a requester's quota",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			return ctx.withLedger(cmd, func(ledger *quota.Ledger) error {
				status, err := ledger.Status(cmd.Context(), userID)
				if err != nil {
					return err
				}
				printQuota(cmd.OutOrStdout(), status)
				return nil
			})
		},
	}
}

func newQuotaCreditCommand(ctx *commandContext) *cobra.Command {
	var amount int
	var days int
	var pkgName string

	cmd := &cobra.Command{
		Use:   "credit <user-id>",
		Short: "Add paid requests to a requester's balance",
		Long: `Add paid requests to a requester's balance.

Use --amount with an optional --days, or --package pkg100|sub.
A positive --days sets the subscription end to today plus that many days;
--days 0 clears any subscription end.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			pkgName = strings.TrimSpace(pkgName)
			switch {
			case pkgName != "" && (cmd.Flags().Changed("amount") || cmd.Flags().Changed("days")):
				return errors.New("--package cannot be combined with --amount or --days")
			case pkgName != "":
				pkg, err := quota.LookupPackage(cfg.Quota, pkgName)
				if err != nil {
					return err
				}
				amount, days = pkg.Amount, pkg.Days
			case amount <= 0:
				return errors.New("--amount must be positive (or use --package)")
			case days < 0:
				return errors.New("--days must not be negative")
			}

			return ctx.withLedger(cmd, func(ledger *quota.Ledger) error {
				status, err := ledger.Credit(cmd.Context(), userID, amount, days)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Credited %d request(s) to %d\n", amount, userID)
				printQuota(out, status)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&amount, "amount", 0, "Requests to add to the balance")
	cmd.Flags().IntVar(&days, "days", 0, "Subscription length in days (0 clears the end date)")
	cmd.Flags().StringVar(&pkgName, "package", "", "Named package: "+quota.PackageOneHundred+" or "+quota.PackageSubscription)
	return cmd
}

func (c *commandContext) withLedger(cmd *cobra.Command, fn func(*quota.Ledger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.commandLogger(cfg)
	if err != nil {
		return err
	}
	ledger, err := quota.Open(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("open quota ledger: %w", err)
	}
	defer ledger.Close()
	return fn(ledger)
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}

func printQuota(out io.Writer, status quota.Status) {
	paidUntil := "-"
	if status.PaidUntil != nil {
		paidUntil = status.PaidUntil.Format("2006-01-02")
	}
	rows := [][]string{
		{"User", strconv.FormatInt(status.UserID, 10)},
		{"Unlimited", yesNo(status.Unlimited)},
		{"Free used", fmt.Sprintf("%d / %d", status.FreeUsed, status.FreeLimit)},
		{"Free remaining", strconv.Itoa(status.FreeRemaining)},
		{"Balance", strconv.Itoa(status.Balance)},
		{"Effective balance", strconv.Itoa(status.EffectiveBalance)},
		{"Paid until", paidUntil},
		{"Next request from", string(status.Source)},
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))
}
