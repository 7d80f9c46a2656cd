package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	forumauth "github.com/MrEthical07/forumauth"
	"github.com/MrEthical07/forumauth/account"
	"github.com/MrEthical07/forumauth/internal/server"
	otelexport "github.com/MrEthical07/forumauth/metrics/export/otel"
	"github.com/MrEthical07/forumauth/password"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication HTTP server",
		Long: `Start the HTTP server exposing /auth/login, /auth/refresh, /auth/logout,
/me, /healthz and /metrics.

Without --redis-addr the server refuses to start unless --dev is set, in which
case an in-memory Redis is used and demo accounts are seeded.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), v)
		},
	}

	cmd.Flags().String(keyAddress, ":8080", "Address to listen on")
	cmd.Flags().Bool(keyCookieSecure, true, "Mark the renewal cookie Secure")
	cmd.Flags().Bool(keyAudit, false, "Log audit events")
	cmd.Flags().Bool(keyMetrics, false, "Collect counters for /metrics")
	cmd.Flags().String(keyOTLPEndpoint, "", "Push metrics to this OTLP/HTTP endpoint")
	cmd.Flags().Bool(keyOTLPInsecure, false, "Use plain HTTP for the OTLP endpoint")
	cmd.Flags().StringSlice(keyAccounts, nil, "Accounts to register, as username:password")
	cmd.Flags().Duration(keyRequestTimeout, 0, "Per-request handler timeout")
	bindFlags(v, cmd)

	return cmd
}

func runServe(ctx context.Context, v *viper.Viper) error {
	logger := newLogger(v)
	slog.SetDefault(logger)

	cfg, err := engineConfig(v)
	if err != nil {
		return err
	}

	client, closeRedis, err := openRedis(v, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	hasher, err := password.NewArgon2(password.DefaultConfig())
	if err != nil {
		return err
	}
	dir, err := account.NewDirectory(hasher)
	if err != nil {
		return err
	}
	if err := seedAccounts(dir, accountEntries(v)); err != nil {
		return err
	}
	logger.Info("forumauth: accounts loaded", "count", dir.Len())

	builder := forumauth.New().
		WithConfig(cfg).
		WithRedis(client).
		WithAccountVerifier(dir).
		WithIdentityLoader(dir).
		WithLogger(logger)
	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(forumauth.NewSlogSink(logger))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if endpoint := v.GetString(keyOTLPEndpoint); endpoint != "" {
		shutdown, err := startOTLP(ctx, engine, endpoint, v.GetBool(keyOTLPInsecure))
		if err != nil {
			return err
		}
		defer shutdown()
	}

	report := engine.SecurityReport()
	logger.Info("forumauth: engine ready",
		"production", report.ProductionMode,
		"lock_scope", report.LockScope,
		"access_ttl", report.AccessTTL,
		"refresh_ttl", report.RefreshTTL,
		"lint", report.LintWarnings,
	)

	return server.New(serverConfig(v), engine, logger).ListenAndServe(ctx)
}

// openRedis connects to --redis-addr, or starts an in-memory server in dev mode.
func openRedis(v *viper.Viper, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	addr := v.GetString(keyRedisAddr)
	if addr == "" {
		if !v.GetBool(keyDev) {
			return nil, nil, errors.New("--redis-addr is required outside --dev")
		}
		mr, err := miniredis.Run()
		if err != nil {
			return nil, nil, fmt.Errorf("start miniredis: %w", err)
		}
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
		logger.Warn("forumauth: using in-memory redis", "addr", mr.Addr())
		return client, func() {
			_ = client.Close()
			mr.Close()
		}, nil
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
	return client, func() { _ = client.Close() }, nil
}

func startOTLP(ctx context.Context, engine *forumauth.Engine, endpoint string, insecure bool) (func(), error) {
	opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
	if insecure {
		opts = append(opts, otlpmetrichttp.WithInsecure())
	}
	exp, err := otlpmetrichttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create OTLP metric exporter: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)))
	bridge, err := otelexport.NewExporter(provider.Meter("github.com/MrEthical07/forumauth"), engine)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}

	return func() {
		_ = bridge.Close()
		// ctx is usually canceled by now.
		_ = provider.Shutdown(context.WithoutCancel(ctx))
	}, nil
}
