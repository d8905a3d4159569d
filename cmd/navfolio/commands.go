package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/simaogato/navfolio-backend/internal/app"
	"github.com/simaogato/navfolio-backend/internal/config"
	"github.com/simaogato/navfolio-backend/internal/domain"
	"github.com/simaogato/navfolio-backend/internal/usecase/ledger"
	"github.com/simaogato/navfolio-backend/internal/usecase/simulator"
)

type rootOptions struct {
	configPath string
	logLevel   string
	timeout    time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:          "navfolio",
		Short:        "Mutual fund portfolio returns and cost basis",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "navfolio.toml", "path to the TOML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall command timeout")

	root.AddCommand(
		newSummaryCmd(opts),
		newFundCmd(opts),
		newReturnsCmd(opts),
		newTaxCmd(opts),
		newSimulateCmd(opts),
		newRecordCmd(opts),
		newTransactionsCmd(opts),
		newSyncReturnsCmd(opts),
		newSeedTaxCmd(opts),
	)
	return root
}

// withApp loads configuration, wires the application and runs fn with it
func withApp(cmd *cobra.Command, opts *rootOptions, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.LoadConfig(opts.configPath, os.Getenv("NAVFOLIO_CONFIG"))
	if err != nil {
		return err
	}
	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	a, err := app.New(ctx, cfg, app.NewLogger(cfg.Logging))
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

func parseUUID(flag, value string) (uuid.UUID, error) {
	id, err := uuid.Parse(value)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --%s %q: %w", flag, value, domain.ErrInvalidInput)
	}
	return id, nil
}

func parseOptionalUUID(flag, value string) (*uuid.UUID, error) {
	if value == "" {
		return nil, nil
	}
	id, err := parseUUID(flag, value)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

func parseDecimal(flag, value string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid --%s %q: %w", flag, value, domain.ErrInvalidInput)
	}
	return d, nil
}

func newSummaryCmd(opts *rootOptions) *cobra.Command {
	var userID, accountID string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the portfolio of a user across all funds",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseUUID("user", userID)
			if err != nil {
				return err
			}
			account, err := parseOptionalUUID("account", accountID)
			if err != nil {
				return err
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				summary, err := a.PortfolioService.Summary(ctx, user, account)
				if err != nil {
					return err
				}
				renderSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&accountID, "account", "", "restrict to one account")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newFundCmd(opts *rootOptions) *cobra.Command {
	var userID, fundID, accountID string

	cmd := &cobra.Command{
		Use:   "fund",
		Short: "Show a user's open lots and returns in one fund",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseUUID("user", userID)
			if err != nil {
				return err
			}
			account, err := parseOptionalUUID("account", accountID)
			if err != nil {
				return err
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				summary, err := a.PortfolioService.FundSummary(ctx, user, fundID, account)
				if err != nil {
					return err
				}
				renderFundSummary(cmd.OutOrStdout(), summary)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&fundID, "fund", "", "fund ISIN")
	cmd.Flags().StringVar(&accountID, "account", "", "restrict to one account")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("fund")
	return cmd
}

func newReturnsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "returns FUND...",
		Short: "Show trailing window returns of one or more funds",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				for _, fundID := range args {
					returns, err := a.PortfolioService.FundReturns(ctx, fundID)
					if err != nil {
						return err
					}
					renderReturns(cmd.OutOrStdout(), fundID, returns)
				}
				return nil
			})
		},
	}
	return cmd
}

func newTaxCmd(opts *rootOptions) *cobra.Command {
	var userID, fundID, accountID, sellDate string

	cmd := &cobra.Command{
		Use:   "tax",
		Short: "Estimate capital gains tax for redeeming every open lot of a fund",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseUUID("user", userID)
			if err != nil {
				return err
			}
			account, err := parseOptionalUUID("account", accountID)
			if err != nil {
				return err
			}
			var date *time.Time
			if sellDate != "" {
				d, err := domain.ParseDate(sellDate)
				if err != nil {
					return err
				}
				date = &d
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				result, err := a.CapitalGainsService.Estimate(ctx, user, fundID, account, date)
				if err != nil {
					return err
				}
				renderCapitalGains(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&fundID, "fund", "", "fund ISIN")
	cmd.Flags().StringVar(&accountID, "account", "", "restrict to one account")
	cmd.Flags().StringVar(&sellDate, "sell-date", "", "sell date (YYYY-MM-DD), defaults to the latest NAV date")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("fund")
	return cmd
}

func newSimulateCmd(opts *rootOptions) *cobra.Command {
	var fundID, start, amount, mode, stepUp string

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Replay a lump sum or monthly SIP investment over a fund's NAV history",
		RunE: func(cmd *cobra.Command, args []string) error {
			startDate, err := domain.ParseDate(start)
			if err != nil {
				return err
			}
			amt, err := parseDecimal("amount", amount)
			if err != nil {
				return err
			}
			step, err := parseDecimal("step-up", stepUp)
			if err != nil {
				return err
			}
			m, err := simulator.ParseMode(mode)
			if err != nil {
				return err
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				result, err := a.SimulatorService.Simulate(ctx, simulator.Request{
					FundID:        fundID,
					StartDate:     startDate,
					Amount:        amt,
					Mode:          m,
					StepUpPercent: step,
				})
				if err != nil {
					return err
				}
				renderSimulation(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&fundID, "fund", "", "fund ISIN")
	cmd.Flags().StringVar(&start, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&amount, "amount", "", "lump sum, or the first monthly instalment")
	cmd.Flags().StringVar(&mode, "mode", string(simulator.ModeLumpSum), "LUMPSUM or SIP")
	cmd.Flags().StringVar(&stepUp, "step-up", "0", "yearly SIP step-up percentage")
	_ = cmd.MarkFlagRequired("fund")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newRecordCmd(opts *rootOptions) *cobra.Command {
	var userID, accountID, fundID, txType, units, price, date string

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record a buy or sell after checking it against the official NAV and holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseUUID("user", userID)
			if err != nil {
				return err
			}
			account, err := parseUUID("account", accountID)
			if err != nil {
				return err
			}
			typ, err := domain.ParseTxType(txType)
			if err != nil {
				return err
			}
			u, err := parseDecimal("units", units)
			if err != nil {
				return err
			}
			p, err := parseDecimal("price", price)
			if err != nil {
				return err
			}
			day, err := domain.ParseDate(date)
			if err != nil {
				return err
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				tx, err := a.LedgerService.RecordTransaction(ctx, ledger.RecordTransactionInput{
					UserID:       user,
					AccountID:    account,
					FundID:       fundID,
					Type:         typ,
					Units:        u,
					Price:        p,
					TransactedAt: day,
				})
				if err != nil {
					return err
				}
				renderTransactions(cmd.OutOrStdout(), []*domain.Transaction{tx})
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&accountID, "account", "", "account id")
	cmd.Flags().StringVar(&fundID, "fund", "", "fund ISIN")
	cmd.Flags().StringVar(&txType, "type", "", "BUY or SELL")
	cmd.Flags().StringVar(&units, "units", "", "units transacted")
	cmd.Flags().StringVar(&price, "price", "", "NAV per unit")
	cmd.Flags().StringVar(&date, "date", "", "transaction date (YYYY-MM-DD)")
	for _, name := range []string{"user", "account", "fund", "type", "units", "price", "date"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func newTransactionsCmd(opts *rootOptions) *cobra.Command {
	var userID, fundID, accountID string

	cmd := &cobra.Command{
		Use:   "transactions",
		Short: "List a user's transactions in date order",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := parseUUID("user", userID)
			if err != nil {
				return err
			}
			account, err := parseOptionalUUID("account", accountID)
			if err != nil {
				return err
			}

			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				txs, err := a.LedgerService.ListTransactions(ctx, domain.TransactionFilter{
					UserID:    user,
					FundID:    fundID,
					AccountID: account,
				})
				if err != nil {
					return err
				}
				renderTransactions(cmd.OutOrStdout(), txs)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id")
	cmd.Flags().StringVar(&fundID, "fund", "", "restrict to one fund")
	cmd.Flags().StringVar(&accountID, "account", "", "restrict to one account")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newSyncReturnsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync-returns",
		Short: "Refresh the cached NAV history and precomputed returns of every fund",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				if a.SyncService == nil {
					return errors.New("returns cache is not configured or unreachable")
				}
				report, err := a.SyncService.SyncAll(ctx)
				renderSyncReport(cmd.OutOrStdout(), report)
				return err
			})
		},
	}
}

func newSeedTaxCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed-tax",
		Short: "Create the default equity tax rules for the configured fiscal years",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app.App) error {
				created, err := a.TaxRateSeeder.Seed(ctx)
				if err != nil {
					return err
				}
				if len(created) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "tax rates already present")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "created tax rates for fiscal years %v\n", created)
				return nil
			})
		},
	}
}
