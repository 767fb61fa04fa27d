package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abczzz13/unxf"
	"github.com/abczzz13/unxf/internal/config"
	"github.com/abczzz13/unxf/internal/logging"
	unxfprom "github.com/abczzz13/unxf/prometheus"
	"github.com/abczzz13/unxf/unxfmux"
)

const readHeaderTimeout = 10 * time.Second

type serveFlags struct {
	addr        string
	metricsAddr string
}

func newServeCmd(flags *filterFlags) *cobra.Command {
	sf := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an echo server behind the filter",
		Long:  "serve answers every request with the client address, status and scheme the filter resolved, as JSON. Metrics are served on a separate listener.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.ListenAddress = sf.addr
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddress = sf.metricsAddr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer stop()

			return runServe(ctx, cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&sf.addr, "addr", "", "Listen address of the echo server (default from config)")
	cmd.Flags().StringVar(&sf.metricsAddr, "metrics-addr", "", "Listen address of the metrics server, empty value disables it")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg config.Config) error {
	logger := log.New()
	if err := logging.InitLog(logger, cfg.LogLevel, cfg.LogFile, cmd.ErrOrStderr()); err != nil {
		return err
	}

	registry := prom.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := append(cfg.FilterOptions(),
		unxf.WithLogger(logging.NewFilterLogger(logger)),
		unxfprom.WithRegisterer(registry),
	)
	filter, err := unxf.New(opts...)
	if err != nil {
		return err
	}

	servers := []*http.Server{{
		Addr:              cfg.ListenAddress,
		Handler:           newRouter(filter, logger),
		ReadHeaderTimeout: readHeaderTimeout,
	}}
	if cfg.MetricsAddress != "" {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
		servers = append(servers, &http.Server{
			Addr:              cfg.MetricsAddress,
			Handler:           metricsMux,
			ReadHeaderTimeout: readHeaderTimeout,
		})
	}

	errCh := make(chan error, len(servers))
	for _, srv := range servers {
		go func() {
			logger.Infof("listening on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("serve %s: %w", srv.Addr, err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case runErr = <-errCh:
		logger.Errorf("server failed: %v", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("shutdown %s: %v", srv.Addr, err)
		}
	}

	return runErr
}

// echoResponse is the body written by the echo handler.
type echoResponse struct {
	Client      string `json:"client"`
	RemoteAddr  string `json:"remote_addr"`
	Status      string `json:"status"`
	Secure      bool   `json:"secure"`
	Scheme      string `json:"scheme,omitempty"`
	AuditFor    string `json:"audit_for,omitempty"`
	AuditRealIP string `json:"audit_real_ip,omitempty"`
	AuditProto  string `json:"audit_proto,omitempty"`
}

func newRouter(filter *unxf.Filter, logger *log.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(logging.RequestID)
	unxfmux.Register(r, filter)
	r.Use(logging.AccessLog(logger))
	r.PathPrefix("/").HandlerFunc(echoHandler)
	return r
}

func echoHandler(w http.ResponseWriter, r *http.Request) {
	resp := echoResponse{RemoteAddr: r.RemoteAddr}
	if r.URL != nil {
		resp.Scheme = r.URL.Scheme
	}
	if info, ok := unxf.InfoFromRequest(r); ok {
		resp.Client = info.ClientAddr.String()
		resp.Status = info.Status.String()
		resp.Secure = info.Secure
		resp.AuditFor = info.AuditFor
		resp.AuditRealIP = info.AuditRealIP
		resp.AuditProto = info.AuditProto
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
