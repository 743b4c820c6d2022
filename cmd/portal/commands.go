package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"reliefportal/internal/adapters/changefeed"
	web "reliefportal/internal/adapters/http"
	"reliefportal/internal/adapters/http/middleware"
	"reliefportal/internal/adapters/storage"
	"reliefportal/internal/application/orchestrators"
	"reliefportal/internal/application/session"
)

// Server tuning.
const (
	shutdownTimeout   = 15 * time.Second
	sweepInterval     = time.Minute
	readHeaderTimeout = 5 * time.Second
	idleTimeout       = 2 * time.Minute
)

func migrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			version, err := storage.SchemaVersion(a.db.RawDB(), a.dialect)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s store at schema version %d\n", a.dialect, version)
			return nil
		},
	}
}

func promoteCmd(c *cli) *cobra.Command {
	var input orchestrators.PromoteUserInput
	cmd := &cobra.Command{
		Use:   "promote",
		Short: "Grant the admin role to an existing user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			acct, err := orchestrators.ExecutePromoteUser(cmd.Context(), input, orchestrators.PromoteUserDeps{
				AccountStore: a.stores.Accounts,
				RoleStore:    a.stores.Roles,
				GenerateID:   generateID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s (%s) is now an admin\n", acct.Email, acct.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&input.Email, "email", "", "email of the user to promote")
	cmd.Flags().StringVar(&input.UserID, "user-id", "", "id of the user to promote")
	cmd.MarkFlagsOneRequired("email", "user-id")
	cmd.MarkFlagsMutuallyExclusive("email", "user-id")
	return cmd
}

func seedCmd(c *cli) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load users, alerts, shifts and donations from a YAML fixture file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("read fixtures: %w", err)
			}
			a, err := openApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			result, err := orchestrators.ExecuteSeedFixtures(cmd.Context(), orchestrators.SeedFixturesInput{Data: data}, orchestrators.SeedFixturesDeps{
				Auth:          a.auth,
				AccountStore:  a.stores.Accounts,
				RoleStore:     a.stores.Roles,
				AlertStore:    a.stores.Alerts,
				ShiftStore:    a.stores.Shifts,
				DonationStore: a.stores.Donations,
				GenerateID:    generateID,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d users, %d alerts, %d shifts, %d donations\n",
				result.UsersCreated, result.Alerts, result.Shifts, result.Donations)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "fixtures.yaml", "fixture file to load")
	return cmd
}

func serveCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP portal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.serve(cmd.Context())
		},
	}
}

// serve runs the portal until ctx is cancelled, then drains in-flight requests.
func (a *app) serve(ctx context.Context) error {
	if a.cfg.AdminEmail != "" {
		_, err := orchestrators.ExecuteSeedAdmin(ctx, orchestrators.SeedAdminInput{
			Email:    a.cfg.AdminEmail,
			Password: a.cfg.AdminPassword,
			FullName: "Administrator",
		}, orchestrators.SeedAdminDeps{
			Auth:         a.auth,
			AccountStore: a.stores.Accounts,
			RoleStore:    a.stores.Roles,
			GenerateID:   generateID,
		})
		if err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	if len(a.cfg.KafkaBrokers) > 0 {
		relay := changefeed.NewKafkaRelay(a.cfg.KafkaBrokers, a.cfg.KafkaTopic)
		detach := relay.Attach(a.hub)
		defer func() {
			detach()
			relay.Close()
		}()
	}

	registry := session.NewRegistry(session.Deps{
		Auth:             a.auth,
		Roles:            a.stores.Roles,
		Feed:             a.hub,
		AllowAdminSignUp: a.cfg.AllowAdminSignUp,
	})
	defer registry.Close()

	middleware.SecureCookies = a.cfg.SecureCookies
	srv := web.NewServer(web.Config{
		EnforceCapacity: a.cfg.EnforceShiftCapacity,
		CSRF: middleware.CSRFConfig{
			Key:            []byte(a.cfg.CSRFKey),
			Secure:         a.cfg.SecureCookies,
			TrustedOrigins: a.cfg.TrustedOrigins,
		},
		RateLimitPerSecond: a.cfg.RateLimitPerSecond,
		SlowRequest:        a.cfg.SlowRequest(),
	}, web.Deps{
		Stores:    a.stores,
		Auth:      a.auth,
		Registry:  registry,
		Hub:       a.hub,
		Collector: a.collector,
		Ping:      a.db.PingContext,
	})
	defer srv.Close()

	g, ctx := errgroup.WithContext(ctx)
	// Request contexts derive from ctx so open change streams end on shutdown.
	httpSrv := &http.Server{
		Addr:              a.cfg.Addr,
		Handler:           srv,
		ReadHeaderTimeout: readHeaderTimeout,
		IdleTimeout:       idleTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	g.Go(func() error {
		srv.Run(ctx)
		return nil
	})
	g.Go(func() error {
		a.auth.RunSweeper(ctx, sweepInterval)
		return nil
	})
	if a.dialect == storage.DialectPostgres {
		listener := changefeed.NewPGListener(a.dsn, a.hub)
		g.Go(func() error {
			if err := listener.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		zap.L().Info("server_started",
			zap.String("addr", a.cfg.Addr),
			zap.String("env", a.cfg.Env),
			zap.String("store", string(a.dialect)),
		)
		if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		zap.L().Info("server_stopping")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
