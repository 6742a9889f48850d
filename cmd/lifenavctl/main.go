// Command lifenavctl runs operator tasks against the production database.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"lifenavigator/internal/app"
	"lifenavigator/internal/platform/config"
	"lifenavigator/internal/platform/kafka/consumer"
	"lifenavigator/internal/platform/logger"
	"lifenavigator/internal/platform/postgres"
	refmodels "lifenavigator/internal/referral/models"
	id "lifenavigator/pkg/domain"
)

var Version = "dev"

var (
	errNoDatabase = errors.New("DATABASE_URL is required")
	errNoBrokers  = errors.New("KAFKA_BROKERS is required")
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "lifenavctl",
		Short:         "LifeNavigator operator tasks",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(accrueCmd())
	rootCmd.AddCommand(expireCreditsCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(tailEventsCmd())
	return rootCmd
}

func loadConfig() (config.Config, *slog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("config: %w", err)
	}
	if cfg.Database.URL == "" {
		return config.Config{}, nil, errNoDatabase
	}
	return cfg, logger.New(cfg.Server.LogLevel), nil
}

// withApp builds the module graph without touching the schema or Kafka; the
// server's relay publishes whatever the command writes to the outbox.
func withApp(ctx context.Context, fn func(a *app.App) error) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	a, err := app.Build(ctx, cfg, log, app.WithoutMigrations(), app.WithoutKafka())
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			db, err := postgres.Open(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func accrueCmd() *cobra.Command {
	var (
		referrer string
		all      bool
	)
	cmd := &cobra.Command{
		Use:   "accrue",
		Short: "Mint credits for referrers with enough converted referrals",
		RunE: func(cmd *cobra.Command, args []string) error {
			var referrerID id.RegistrantID
			if !all {
				parsed, err := id.ParseRegistrantID(referrer)
				if err != nil {
					return err
				}
				referrerID = parsed
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				out := cmd.OutOrStdout()
				if all {
					res, err := a.Referral.ReconcileAll(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "referrers=%d credits=%d failures=%d\n", res.Referrers, res.Credits, res.Failures)
					return nil
				}
				credits, err := a.Referral.Accrue(cmd.Context(), referrerID)
				if err != nil {
					return err
				}
				printCredits(out, credits)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&referrer, "referrer", "", "Referrer registrant ID")
	cmd.Flags().BoolVar(&all, "all", false, "Reconcile every referrer with pending referrals")
	cmd.MarkFlagsMutuallyExclusive("referrer", "all")
	cmd.MarkFlagsOneRequired("referrer", "all")

	return cmd
}

func expireCreditsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "expire-credits",
		Short: "Expire unused credits past their window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app.App) error {
				n, err := a.Referral.ExpireCredits(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "expired=%d\n", n)
				return nil
			})
		},
	}
}

func statsCmd() *cobra.Command {
	var referrer string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show a referrer's referral stats",
		RunE: func(cmd *cobra.Command, args []string) error {
			referrerID, err := id.ParseRegistrantID(referrer)
			if err != nil {
				return err
			}
			return withApp(cmd.Context(), func(a *app.App) error {
				stats, err := a.Referral.Stats(cmd.Context(), referrerID)
				if err != nil {
					return err
				}
				printStats(cmd.OutOrStdout(), stats)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&referrer, "referrer", "", "Referrer registrant ID")
	_ = cmd.MarkFlagRequired("referrer")

	return cmd
}

func tailEventsCmd() *cobra.Command {
	var (
		group     string
		types     []string
		fromStart bool
	)
	cmd := &cobra.Command{
		Use:   "tail-events",
		Short: "Print domain events from the Kafka topic as they arrive",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if len(cfg.Kafka.Brokers) == 0 {
				return errNoBrokers
			}
			log := logger.New(cfg.Server.LogLevel)

			var opts []consumer.Option
			if fromStart {
				opts = append(opts, consumer.FromStart())
			}
			c, err := consumer.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, group, log, opts...)
			if err != nil {
				return err
			}
			defer c.Close()

			err = c.Run(cmd.Context(), eventPrinter(cmd.OutOrStdout(), types, log))
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().StringVar(&group, "group", "lifenavctl-tail", "Consumer group")
	cmd.Flags().StringSliceVar(&types, "type", nil, "Only print these event types")
	cmd.Flags().BoolVar(&fromStart, "from-start", false, "Start a new group at the oldest retained event")

	return cmd
}

// eventPrinter prints every event, or only the listed types when any are given.
func eventPrinter(w io.Writer, types []string, log *slog.Logger) consumer.Handler {
	show := consumer.HandlerFunc(func(_ context.Context, msg *consumer.Message) error {
		fmt.Fprintln(w, formatEvent(msg))
		return nil
	})
	if len(types) == 0 {
		return consumer.NewRouter(log, show)
	}
	router := consumer.NewRouter(log, nil)
	for _, t := range types {
		router.Register(t, show)
	}
	return router
}

func formatEvent(msg *consumer.Message) string {
	var b strings.Builder
	b.WriteString(msg.Event.OccurredAt.UTC().Format("2006-01-02T15:04:05Z"))
	b.WriteString(" ")
	b.WriteString(msg.Type)
	b.WriteString(" aggregate=")
	b.WriteString(msg.Event.AggregateID)
	keys := make([]string, 0, len(msg.Event.Attributes))
	for k := range msg.Event.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, msg.Event.Attributes[k])
	}
	return b.String()
}

func printCredits(w io.Writer, credits []*refmodels.Credit) {
	if len(credits) == 0 {
		fmt.Fprintln(w, "no credits minted")
		return
	}
	for _, c := range credits {
		fmt.Fprintf(w, "credit %s amount=%s batch=%d expires=%s\n",
			c.ID, c.Amount.StringFixed(2), c.BatchCount, c.ExpiresAt.Format("2006-01-02"))
	}
}

func printStats(w io.Writer, s *refmodels.Stats) {
	fmt.Fprintf(w, "code:                %s\n", s.ReferralCode)
	fmt.Fprintf(w, "link:                %s\n", s.ReferralLink)
	fmt.Fprintf(w, "referrals:           %d\n", s.TotalReferrals)
	fmt.Fprintf(w, "converted:           %d\n", s.Converted)
	fmt.Fprintf(w, "credited:            %d\n", s.Credited)
	fmt.Fprintf(w, "pending toward next: %d/%d\n", s.PendingTowardNext, s.RequiredForBenefit)
	fmt.Fprintf(w, "position:            %d (stored %d)\n", s.EffectivePosition, s.StoredPosition)
	fmt.Fprintf(w, "active credit:       %s across %d credits\n", s.ActiveCreditTotal.StringFixed(2), len(s.ActiveCredits))
}
