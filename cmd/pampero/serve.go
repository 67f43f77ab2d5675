package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve forecasts, alerts and risk scores over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newViper(cmd)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), v.GetString("addr"))
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	return cmd
}

func runServe(ctx context.Context, addr string) error {
	svc, err := newService()
	if err != nil {
		return err
	}
	defer svc.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/pronostico", handlePronostico(svc))
	mux.HandleFunc("/v1/actual", handleActual(svc))
	mux.HandleFunc("/v1/alertas", handleAlertas(svc))
	mux.HandleFunc("/v1/riesgo", handleRiesgo(svc))
	mux.HandleFunc("/healthz", handleHealthz(svc))
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			klog.ErrorS(err, "Server shutdown")
		}
	}()

	klog.InfoS("Starting pampero server", "addr", addr, "sources", svc.Sources())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: %v", err)
	}
	klog.InfoS("Server stopped")
	return nil
}
