package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"eod-normalizer/internal/config"
	"eod-normalizer/internal/domain"
	"eod-normalizer/internal/observability"
)

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// StartMetrics serves /metrics and /health on cfg.Addr. It returns a stop
// function; an empty address disables the listener.
func StartMetrics(cfg config.MetricsConfig, logger *slog.Logger) func() {
	handler := observability.Init(cfg.Namespace)
	if cfg.Addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: cfg.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("starting metrics server", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server error", slog.String("error", err.Error()))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

// ParseTime parses a flag value as an ISO date (UTC midnight) or RFC3339
// timestamp. An empty value returns def.
func ParseTime(s string, def time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := domain.ParseDate(s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q: want YYYY-MM-DD or RFC3339", s)
}

// EndOfDay extends a date-only bound to the last instant of that day so an
// inclusive range covers everything ingested on it.
func EndOfDay(t time.Time) time.Time {
	if !t.Equal(domain.DateOf(t)) {
		return t
	}
	return t.Add(24*time.Hour - time.Nanosecond)
}
