package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/iho/kasa/internal/app"
	"github.com/iho/kasa/internal/domain"
	"github.com/iho/kasa/internal/infrastructure/auth"
	"github.com/iho/kasa/internal/infrastructure/postgres"
	"github.com/iho/kasa/internal/report"
	"github.com/iho/kasa/internal/usecase"
)

const (
	cliActor      = "cli"
	terminalWidth = 100
)

// Output formats for distribution results.
const (
	formatTable    = "table"
	formatMarkdown = "markdown"
	formatTerminal = "terminal"
	formatHTML     = "html"
)

func (c *cli) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Overwrite the books with the sample registry and period",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				result, err := a.Seeder.Seed(cmd.Context(), cliActor)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d shareholders and period %s\n", len(result.Holders), result.Period.Month)
				return nil
			})
		},
	}
}

func (c *cli) previewCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "preview <month>",
		Short: "Compute a month's distribution without saving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				result, err := a.Settlements.Preview(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeResult(cmd.OutOrStdout(), result, format, a.Config.Currency)
			})
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

func (c *cli) closeCmd() *cobra.Command {
	var (
		format string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "close <month>",
		Short: "Settle a month and carry overdraws forward",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				settlement, err := a.Settlements.Close(cmd.Context(), usecase.ClosePeriodInput{
					Month: args[0],
					Force: force,
					Actor: cliActor,
				})
				if err != nil {
					return err
				}
				return writeResult(cmd.OutOrStdout(), settlement.Result, format, a.Config.Currency)
			})
		},
	}
	addFormatFlag(cmd, &format)
	cmd.Flags().BoolVar(&force, "force", false, "Re-close the latest closed month")
	return cmd
}

func (c *cli) splitCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "split <amount>",
		Short: "Divide an amount by shareholder percentage without touching the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}
			return c.withApp(cmd, func(a *app.App) error {
				result, err := a.Settlements.Split(cmd.Context(), amount)
				if err != nil {
					return err
				}
				return writeResult(cmd.OutOrStdout(), result, format, a.Config.Currency)
			})
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

func (c *cli) historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List closed months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				settlements, err := a.Settlements.History(cmd.Context())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if len(settlements) == 0 {
					fmt.Fprintln(w, "No closed months")
					return nil
				}
				for _, s := range settlements {
					fmt.Fprintf(w, "%s  paid %s  carry %s  closed %s\n",
						s.Month, report.Amount(s.Result.TotalPaid), report.Amount(s.NewCarry.Total()), s.ClosedAt.Format(time.RFC3339))
				}
				return nil
			})
		},
	}
}

func (c *cli) periodCmd() *cobra.Command {
	periodCmd := &cobra.Command{
		Use:   "period",
		Short: "Period ledger operations",
	}

	var (
		total    string
		keep     string
		advances []string
	)
	setCmd := &cobra.Command{
		Use:   "set <month>",
		Short: "Record a month's cash, reserve and advances",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := periodInput(args[0], total, keep, advances)
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(a *app.App) error {
				entry, err := a.Periods.Record(cmd.Context(), input)
				if err != nil {
					return err
				}
				writePeriod(cmd.OutOrStdout(), entry)
				return nil
			})
		},
	}
	setCmd.Flags().StringVar(&total, "total", "", "Total cash of the month")
	setCmd.Flags().StringVar(&keep, "keep", "0", "Cash kept in reserve")
	setCmd.Flags().StringArrayVar(&advances, "advance", nil, "Advance as name=amount, repeatable")
	_ = setCmd.MarkFlagRequired("total")

	showCmd := &cobra.Command{
		Use:   "show <month>",
		Short: "Show a recorded month",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				entry, err := a.Periods.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				writePeriod(cmd.OutOrStdout(), entry)
				return nil
			})
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded months",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				entries, err := a.Periods.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, entry := range entries {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  total %s  keep %s  distributable %s\n",
						entry.Month, report.Amount(entry.TotalCash), report.Amount(entry.KeepCash), report.Amount(entry.Distributable()))
				}
				return nil
			})
		},
	}

	periodCmd.AddCommand(setCmd, showCmd, listCmd)
	return periodCmd
}

func (c *cli) shareholdersCmd() *cobra.Command {
	shareholdersCmd := &cobra.Command{
		Use:   "shareholders",
		Short: "Shareholder registry operations",
	}

	var all bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List shareholders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				holders, err := a.Shareholders.List(cmd.Context(), all)
				if err != nil {
					return err
				}
				writeHolders(cmd.OutOrStdout(), holders)
				return nil
			})
		},
	}
	listCmd.Flags().BoolVar(&all, "all", false, "Include inactive shareholders")

	var inactive []string
	setCmd := &cobra.Command{
		Use:   "set name=percent...",
		Short: "Replace the whole registry",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			holders, err := holderInputs(args, inactive)
			if err != nil {
				return err
			}
			return c.withApp(cmd, func(a *app.App) error {
				saved, err := a.Shareholders.Replace(cmd.Context(), usecase.ReplaceShareholdersInput{
					Holders: holders,
					Actor:   cliActor,
				})
				if err != nil {
					return err
				}
				writeHolders(cmd.OutOrStdout(), saved)
				return nil
			})
		},
	}
	setCmd.Flags().StringArrayVar(&inactive, "inactive", nil, "Name of a shareholder to store as inactive, repeatable")

	shareholdersCmd.AddCommand(listCmd, setCmd)
	return shareholdersCmd
}

func (c *cli) carryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "carry",
		Short: "Show carried balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				carry, err := a.Settlements.Carry(cmd.Context())
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				if len(carry.Balances) == 0 {
					fmt.Fprintln(w, "No carried balances")
					return nil
				}
				for _, key := range carry.Keys() {
					fmt.Fprintf(w, "%-24s %s\n", key, report.Amount(carry.Balance(key)))
				}
				fmt.Fprintf(w, "%-24s %s\n", "total", report.Amount(carry.Total()))
				return nil
			})
		},
	}
}

func (c *cli) consistencyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consistency",
		Short: "Check the carry store against the latest settlement",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withApp(cmd, func(a *app.App) error {
				rep, err := a.Ledger.CheckConsistency(cmd.Context())
				if rep != nil && !rep.Consistent {
					fmt.Fprintf(cmd.OutOrStdout(), "Consistency check FAILED after %s, mismatched: %v\n", orNone(rep.LatestMonth), rep.Mismatched)
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Consistency check PASSED (latest close: %s)\n", orNone(rep.LatestMonth))
				return nil
			})
		},
	}
}

func (c *cli) migrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "PostgreSQL schema migrations",
	}

	run := func(down bool) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			m := postgres.NewMigrator(cfg.DatabaseURL, cfg.MigrationsPath, newLogger(cfg, cmd.ErrOrStderr()))
			if down {
				return m.Down()
			}
			return m.Up()
		}
	}

	migrateCmd.AddCommand(
		&cobra.Command{Use: "up", Short: "Apply pending migrations", Args: cobra.NoArgs, RunE: run(false)},
		&cobra.Command{Use: "down", Short: "Roll back the last migration", Args: cobra.NoArgs, RunE: run(true)},
	)
	return migrateCmd
}

func (c *cli) tokenCmd() *cobra.Command {
	var (
		role   string
		userID string
		name   string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an API token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.config()
			if err != nil {
				return err
			}
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is not set")
			}

			token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTExpiration).Generate(&domain.User{
				ID:   userID,
				Name: name,
				Role: domain.Role(role),
			})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", string(domain.RoleViewer), "Role: admin, operator or viewer")
	cmd.Flags().StringVar(&userID, "user", cliActor, "User ID stored in the token")
	cmd.Flags().StringVar(&name, "name", "", "Display name stored in the token")
	return cmd
}

func addFormatFlag(cmd *cobra.Command, format *string) {
	cmd.Flags().StringVarP(format, "format", "f", formatTable, "Output format: table, markdown, terminal or html")
}

func writeResult(w io.Writer, result *domain.DistributionResult, format, currency string) error {
	switch format {
	case formatTable:
		return report.WriteTable(w, result)
	case formatMarkdown:
		_, err := io.WriteString(w, report.Markdown(result, currency))
		return err
	case formatTerminal:
		out, err := report.Terminal(result, currency, terminalWidth)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case formatHTML:
		out, err := report.HTML(result, currency)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func writePeriod(w io.Writer, entry *domain.PeriodLedgerEntry) {
	fmt.Fprintf(w, "Month:         %s\n", entry.Month)
	fmt.Fprintf(w, "Total cash:    %s\n", report.Amount(entry.TotalCash))
	fmt.Fprintf(w, "Keep cash:     %s\n", report.Amount(entry.KeepCash))
	fmt.Fprintf(w, "Distributable: %s\n", report.Amount(entry.Distributable()))

	for _, key := range entry.AdvanceKeys() {
		fmt.Fprintf(w, "Advance %-16s %s\n", key, report.Amount(entry.Advance(key)))
	}
}

func writeHolders(w io.Writer, holders []domain.Shareholder) {
	for _, h := range holders {
		status := ""
		if !h.Active {
			status = " (inactive)"
		}
		fmt.Fprintf(w, "%-24s %s%s\n", h.Name, report.Percent(h.Percent), status)
	}
}

// periodInput parses the flags of "period set".
func periodInput(month, total, keep string, advances []string) (usecase.RecordPeriodInput, error) {
	input := usecase.RecordPeriodInput{
		Month:    month,
		Advances: make(map[string]decimal.Decimal, len(advances)),
		Actor:    cliActor,
	}

	var err error
	if input.TotalCash, err = decimal.NewFromString(total); err != nil {
		return input, fmt.Errorf("%w: total %q", domain.ErrInvalidAmount, total)
	}
	if input.KeepCash, err = decimal.NewFromString(keep); err != nil {
		return input, fmt.Errorf("%w: keep %q", domain.ErrInvalidAmount, keep)
	}

	for _, arg := range advances {
		name, amount, err := splitPair(arg)
		if err != nil {
			return input, err
		}
		if _, dup := input.Advances[name]; dup {
			return input, fmt.Errorf("%w: %s", domain.ErrDuplicateHolder, name)
		}
		input.Advances[name] = amount
	}
	return input, nil
}

// holderInputs parses "name=percent" arguments of "shareholders set".
func holderInputs(args, inactive []string) ([]usecase.ShareholderInput, error) {
	off := make(map[domain.HolderKey]bool, len(inactive))
	for _, name := range inactive {
		off[domain.KeyOf(name)] = true
	}

	holders := make([]usecase.ShareholderInput, 0, len(args))
	for _, arg := range args {
		name, percent, err := splitPair(arg)
		if err != nil {
			return nil, err
		}
		holders = append(holders, usecase.ShareholderInput{
			Name:    name,
			Percent: percent,
			Active:  !off[domain.KeyOf(name)],
		})
	}
	return holders, nil
}

func splitPair(arg string) (string, decimal.Decimal, error) {
	name, value, ok := strings.Cut(arg, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return "", decimal.Zero, fmt.Errorf("expected name=amount, got %q", arg)
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(value))
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("%w: %q", domain.ErrInvalidAmount, arg)
	}
	return strings.TrimSpace(name), amount, nil
}

func orNone(month string) string {
	if month == "" {
		return "none"
	}
	return month
}
