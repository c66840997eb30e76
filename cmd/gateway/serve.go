package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/alovak/cardflow-gateway/gateway"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/exp/slog"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the payment gateway HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			// a missing .env is fine; the environment may already be set
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("loading .env: %w", err)
			}

			v := viper.New()
			if err := bindFlags(v, cmd.Flags()); err != nil {
				return err
			}
			if path, _ := cmd.Flags().GetString("config"); path != "" {
				v.SetConfigFile(path)
			}

			cfg, err := gateway.LoadConfig(v)
			if err != nil {
				return err
			}

			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}

			return runUntilSignal(logger, cfg)
		},
	}

	def := gateway.DefaultConfig()
	cmd.Flags().String("http-addr", def.HTTPAddr, "Address the API listens on")
	cmd.Flags().String("bank-url", def.BankURL, "Base URL of the acquiring bank")
	cmd.Flags().Duration("bank-timeout", def.BankTimeout, "Timeout of a single bank call")
	cmd.Flags().String("store-backend", def.StoreBackend, "Payment store: mem, pg or sqlite")
	cmd.Flags().String("db-dsn", def.DBDSN, "Postgres DSN for the pg store")
	cmd.Flags().String("sqlite-path", def.SQLitePath, "Database file for the sqlite store")
	cmd.Flags().Bool("seed-fixture", def.SeedFixture, "Store the demo payment on start")
	cmd.Flags().StringSlice("kafka-brokers", nil, "Kafka brokers for payment events")
	cmd.Flags().String("kafka-topic", def.KafkaTopic, "Kafka topic for payment events")
	cmd.Flags().StringSlice("cors-allowed-origins", nil, "Origins allowed to call the API")
	cmd.Flags().String("expiry-tz", def.ExpiryTZ, "Timezone in which cards expire")

	return cmd
}

// bindFlags binds every flag to the config key of the same name with dashes
// turned into underscores, so --bank-url sets bank_url.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err == nil {
			err = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
		}
	})
	return err
}

func runUntilSignal(logger *slog.Logger, cfg *gateway.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := gateway.NewApp(logger, cfg)

	shutdown := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		app.Shutdown(ctx)
	}

	if err := app.Start(); err != nil {
		shutdown()
		return fmt.Errorf("starting gateway: %w", err)
	}

	<-ctx.Done()
	shutdown()

	return nil
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})), nil
}
