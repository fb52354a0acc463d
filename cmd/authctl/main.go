// authctl — административная утилита hrm-auth: миграции, заведение участников,
// блокировка и принудительный выход, очистка просроченных токенов.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/pribylovaa/hrm-auth/internal/config"
	"github.com/pribylovaa/hrm-auth/internal/password"
	"github.com/pribylovaa/hrm-auth/internal/service"
	"github.com/pribylovaa/hrm-auth/internal/storage"
	"github.com/pribylovaa/hrm-auth/internal/storage/postgres"
	"github.com/pribylovaa/hrm-auth/internal/token"
)

func main() {
	if err := newRootCommand(openPostgres).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// backend — то, с чем работают команды.
type backend struct {
	svc     *service.Service
	store   storage.Storage
	migrate func(ctx context.Context) error
	close   func()
}

type opener func(ctx context.Context, configPath string) (*backend, error)

// openPostgres собирает сервис поверх PostgreSQL из конфигурации сервиса.
func openPostgres(ctx context.Context, configPath string) (*backend, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	str, err := postgres.New(dbCtx, cfg.DB.DatabaseURL)
	if err != nil {
		return nil, err
	}

	hasher, err := password.New(cfg.Password)
	if err != nil {
		str.Close()
		return nil, err
	}

	codec, err := token.NewCodec(cfg.Auth)
	if err != nil {
		str.Close()
		return nil, err
	}

	return &backend{
		svc:     service.New(str, hasher, codec, service.WithStoreTimeout(cfg.Timeouts.Store)),
		store:   str,
		migrate: str.Migrate,
		close:   str.Close,
	}, nil
}

func newRootCommand(open opener) *cobra.Command {
	var (
		configPath string
		verbose    bool
	)

	cmd := &cobra.Command{
		Use:           "authctl",
		Short:         "Administrative tool for the hrm-auth service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging to stderr")

	// withBackend открывает backend на время выполнения команды.
	withBackend := func(fn func(ctx context.Context, b *backend, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			b, err := open(ctx, configPath)
			if err != nil {
				return err
			}
			defer b.close()

			return fn(ctx, b, cmd.OutOrStdout())
		}
	}

	cmd.AddCommand(
		newMigrateCommand(withBackend),
		newCreateMemberCommand(withBackend),
		newRevokeMemberCommand(withBackend),
		newSetActiveCommand(withBackend, false),
		newSetActiveCommand(withBackend, true),
		newCleanupCommand(withBackend),
	)

	return cmd
}
