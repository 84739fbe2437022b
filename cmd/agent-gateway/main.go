// SAGE - Secure Agent Guarantee Engine
// Copyright (C) 2025 SAGE-X-project
//
// This file is part of SAGE.
//
// SAGE is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// SAGE is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with SAGE. If not, see <https://www.gnu.org/licenses/>.

// agent-gateway runs the signature-verification reverse proxy: a single
// HTTP listener that gates requests under /product/ on a valid RFC 9421
// signature before forwarding them upstream.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sage-x-project/agent-gateway/config"
	"github.com/sage-x-project/agent-gateway/health"
	"github.com/sage-x-project/agent-gateway/internal/gateway"
	"github.com/sage-x-project/agent-gateway/internal/logger"
	"github.com/sage-x-project/agent-gateway/internal/metrics"
	"github.com/sage-x-project/agent-gateway/registry"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "agent-gateway",
	Short: "Agent Gateway - signature-verifying reverse proxy for autonomous agents",
	Long: `Agent Gateway sits in front of an application's API and app upstreams
and enforces RFC 9421 HTTP message signatures on every request under the
gated path prefix, resolving signing keys from a pluggable registry and
rejecting replayed, expired, or unverifiable requests before they reach
the upstream.`,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway HTTP listener, metrics server, and health checks",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the agent-gateway version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("agent-gateway", version)
		return nil
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(serveCmd, versionCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := logger.GetDefaultLogger()
	if cfg.Logging != nil {
		switch cfg.Logging.Level {
		case "debug":
			log.SetLevel(logger.DebugLevel)
		case "warn":
			log.SetLevel(logger.WarnLevel)
		case "error":
			log.SetLevel(logger.ErrorLevel)
		default:
			log.SetLevel(logger.InfoLevel)
		}
	}

	registryClient, err := newRegistryClient(cfg.Gateway)
	if err != nil {
		return fmt.Errorf("build registry client: %w", err)
	}
	cached := registry.NewCachingClient(registryClient, cfg.Gateway.CacheTTL)

	gw, err := gateway.New(*cfg.Gateway, cached, log)
	if err != nil {
		return fmt.Errorf("build gateway: %w", err)
	}
	gw.StartBackgroundSweep(60 * time.Second)
	defer gw.Stop()

	healthChecker := health.NewHealthChecker(5 * time.Second)
	healthChecker.RegisterCheck("registry", health.ServiceHealthCheck(cfg.Gateway.RegistryURL, func(ctx context.Context, url string) error {
		_, err := registryClient.FetchKey(ctx, "healthcheck")
		if err != nil && err != registry.ErrKeyNotFound {
			return err
		}
		return nil
	}))
	healthChecker.RegisterCheck("api_upstream", health.ServiceHealthCheck(cfg.Gateway.APIUpstreamURL, upstreamReachable))
	healthChecker.RegisterCheck("app_upstream", health.ServiceHealthCheck(cfg.Gateway.AppUpstreamURL, upstreamReachable))

	gatewaySrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Gateway.ListenPort),
		Handler:           gw,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var metricsSrv *http.Server
	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, metrics.Handler())
		metricsSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	var healthSrv *http.Server
	if cfg.Health != nil && cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc(cfg.Health.Path, func(w http.ResponseWriter, r *http.Request) {
			status := healthChecker.GetOverallStatus(r.Context())
			if status != health.StatusHealthy {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			fmt.Fprintf(w, `{"status":"%s"}`, status)
		})
		healthSrv = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	errCh := make(chan error, 3)
	go func() {
		log.Info("gateway listening", logger.String("addr", gatewaySrv.Addr))
		if err := gatewaySrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("gateway server: %w", err)
		}
	}()
	if metricsSrv != nil {
		go func() {
			log.Info("metrics listening", logger.String("addr", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}
	if healthSrv != nil {
		go func() {
			log.Info("health listening", logger.String("addr", healthSrv.Addr))
			if err := healthSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				errCh <- fmt.Errorf("health server: %w", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Info("shutting down", logger.String("signal", sig.String()))
	case err := <-errCh:
		log.Error("server error", logger.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = gatewaySrv.Shutdown(ctx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(ctx)
	}
	if healthSrv != nil {
		_ = healthSrv.Shutdown(ctx)
	}

	return nil
}

// newRegistryClient constructs the registry backend selected by
// REGISTRY_BACKEND: "http" (default) or "ethereum".
func newRegistryClient(cfg *config.GatewayConfig) (registry.Client, error) {
	switch cfg.RegistryBackend {
	case "ethereum":
		return registry.NewEthereumClient(cfg.EthereumRPC, cfg.EthereumContract)
	default:
		return registry.NewHTTPClient(cfg.RegistryURL, 2*time.Second), nil
	}
}

// upstreamReachable reports whether url answers at all; it does not care
// about the response status, only that the upstream accepted a connection
// and returned something within the check's timeout.
func upstreamReachable(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}
