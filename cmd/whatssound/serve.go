// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kadirpekel/whatssound/pkg/auth"
	"github.com/kadirpekel/whatssound/pkg/config"
	"github.com/kadirpekel/whatssound/pkg/httpclient"
	"github.com/kadirpekel/whatssound/pkg/observability"
	"github.com/kadirpekel/whatssound/pkg/payments"
	"github.com/kadirpekel/whatssound/pkg/server"
	"github.com/kadirpekel/whatssound/pkg/throttle"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Host  string `help:"Host to listen on (overrides config)."`
	Port  int    `help:"Port to listen on (overrides config)."`
	Watch bool   `help:"Watch the config source and hot-reload throttle rules."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var a *app
	cfg, loader, err := loadConfig(ctx, cli, config.WithOnChange(func(cfg *config.Config) {
		if a != nil {
			a.reload(cfg)
		}
	}))
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	cleanup, err := initLoggerFromConfig(cli, &cfg.Logger)
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	if c.Host != "" {
		cfg.Server.Host = c.Host
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	a, err = newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	slog.Info("WhatsSound server ready",
		"address", a.server.Address(),
		"auth", cfg.Auth.Enabled,
		"store", cfg.Payments.Store,
		"metrics", cfg.Observability.Metrics.Enabled,
		"tracing", cfg.Observability.Tracing.Enabled)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.server.Run(gctx) })
	g.Go(func() error { return a.throttle.Run(gctx) })
	if c.Watch && loader != nil {
		g.Go(func() error {
			if err := loader.Watch(gctx); err != nil {
				return fmt.Errorf("config watch failed: %w", err)
			}
			return nil
		})
	}

	err = g.Wait()
	slog.Info("Shutting down...")
	return err
}

// app holds the services behind one running server.
type app struct {
	cfg      *config.Config
	throttle *throttle.Throttle
	payments *payments.Service
	server   *server.Server

	store   payments.Store
	dbPool  *config.DBPool
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

// newApp builds the throttle, payment service and server from cfg.
// On error, everything built so far is released.
func newApp(ctx context.Context, cfg *config.Config) (_ *app, err error) {
	a := &app{cfg: cfg, dbPool: config.NewDBPool()}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if cfg.Observability.Metrics.Enabled {
		a.metrics, err = observability.NewMetrics(cfg.Observability.Metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create metrics: %w", err)
		}
	}
	a.tracer, err = observability.NewTracer(ctx, cfg.Observability.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}

	rules, err := cfg.Throttle.Rules()
	if err != nil {
		return nil, fmt.Errorf("invalid throttle rules: %w", err)
	}
	throttleOpts := []throttle.Option{throttle.WithSweepInterval(cfg.Throttle.SweepInterval)}
	if a.metrics != nil {
		throttleOpts = append(throttleOpts, throttle.WithRecorder(a.metrics))
	}
	a.throttle, err = throttle.New(rules, throttleOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create throttle: %w", err)
	}

	a.store, err = newStore(ctx, cfg, a.dbPool)
	if err != nil {
		return nil, err
	}

	calc, err := cfg.Payments.Calculator()
	if err != nil {
		return nil, fmt.Errorf("invalid payment policies: %w", err)
	}
	svcOpts := []payments.ServiceOption{payments.WithCalculator(calc)}
	if a.metrics != nil {
		svcOpts = append(svcOpts, payments.WithPaymentRecorder(a.metrics))
	}
	a.payments, err = payments.NewService(a.store, a.throttle, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment service: %w", err)
	}

	serverOpts := []server.Option{
		server.WithMetrics(a.metrics),
		server.WithTracer(a.tracer),
	}
	if cfg.Auth.Enabled {
		validator, err := auth.NewValidator(ctx, auth.Options{
			Secret:          cfg.Auth.JWTSecret,
			JWKSURL:         cfg.Auth.JWKSURL,
			RefreshInterval: cfg.Auth.RefreshInterval,
			Issuer:          cfg.Auth.Issuer,
			Audience:        cfg.Auth.Audience,
			HTTPClient:      httpclient.New(
				httpclient.WithMaxRetries(3),
				httpclient.WithMaxDelay(30*time.Second),
			),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create token validator: %w", err)
		}
		serverOpts = append(serverOpts, server.WithAuthValidator(validator))
	}

	a.server, err = server.New(cfg, a.throttle, a.payments, serverOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}
	return a, nil
}

func newStore(ctx context.Context, cfg *config.Config, pool *config.DBPool) (payments.Store, error) {
	if !cfg.Payments.IsSQL() {
		return payments.NewMemoryStore(), nil
	}

	db, err := pool.Get(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store, err := payments.NewSQLStore(db, cfg.Database.Dialect())
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction store: %w", err)
	}
	slog.Info("Transaction persistence enabled", "driver", cfg.Database.Driver)
	return store, nil
}

// reload applies a changed config. Only throttle rules are hot-swapped;
// other sections take effect on restart.
func (a *app) reload(cfg *config.Config) {
	rules, err := cfg.Throttle.Rules()
	if err != nil {
		slog.Error("Ignoring config change", "error", err)
		return
	}
	if err := a.throttle.SetRules(rules); err != nil {
		slog.Error("Failed to apply throttle rules", "error", err)
		return
	}
	slog.Info("Throttle rules reloaded", "categories", len(rules))
}

// Close releases the resources of the app.
func (a *app) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	if a.throttle != nil {
		a.throttle.Stop()
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	if a.dbPool != nil {
		errs = append(errs, a.dbPool.Close())
	}
	if a.tracer != nil {
		errs = append(errs, a.tracer.Shutdown(ctx))
	}
	if a.metrics != nil {
		errs = append(errs, a.metrics.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
