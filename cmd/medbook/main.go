package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/medbook/internal/api"
	"github.com/wolfman30/medbook/internal/app/bootstrap"
	"github.com/wolfman30/medbook/internal/booking"
	appconfig "github.com/wolfman30/medbook/internal/config"
	"github.com/wolfman30/medbook/pkg/logging"
)

const usage = `usage: medbook <command> [flags]

commands:
  login      sign in and store the session
  logout     forget the stored session
  whoami     show the signed-in patient
  steps      list the booking steps of a service
  book       book an appointment
  history    list your bookings
  payment    check or cancel an online payment
  chat       talk to the booking assistant
  provinces  list provinces, or the wards of one province
`

func main() {
	envErr := godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.NewWithOptions(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})
	if envErr != nil {
		logger.Debug("no .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], cfg, logger, os.Stdin, os.Stdout))
}

func run(ctx context.Context, args []string, cfg *appconfig.Config, logger *logging.Logger, stdin io.Reader, stdout io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(stdout, usage)
		if len(args) == 0 {
			return 2
		}
		return 0
	}

	rt, err := bootstrap.BuildRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return 1
	}
	defer rt.Close()

	if cfg.MetricsAddr != "" {
		stopMetrics := startMetricsServer(cfg.MetricsAddr, rt.Registry, logger)
		defer stopMetrics()
	}

	c := newCLI(rt, stdin, stdout)
	cmd, ok := c.commands()[args[0]]
	if !ok {
		fmt.Fprintf(stdout, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}
	if err := cmd(ctx, args[1:]); err != nil {
		return reportFailure(stdout, logger, args[0], err)
	}
	return 0
}

const (
	msgLoginAgain   = "Run `medbook login` to sign in again."
	msgServiceError = "Something went wrong talking to the booking service. Please try again later."
	msgCancelled    = "Cancelled."
	msgInputClosed  = "No more input. Nothing was changed."
)

// reportFailure turns a command error into a short message for the
// patient and an exit code. The raw error only goes to the log.
func reportFailure(out io.Writer, logger *logging.Logger, command string, err error) int {
	switch {
	case errors.Is(err, errUsage):
		return 2
	case errors.Is(err, errReported):
		logger.Debug("command failed", "command", command, "error", err)
		return 1
	case errors.Is(err, api.ErrSessionExpired):
		logger.Warn("session expired", "command", command, "error", err)
		fmt.Fprintln(out, booking.MsgSessionExpired)
		fmt.Fprintln(out, msgLoginAgain)
	case errors.Is(err, context.Canceled):
		logger.Debug("command cancelled", "command", command, "error", err)
		fmt.Fprintln(out, msgCancelled)
	case errors.Is(err, io.EOF):
		logger.Debug("input closed", "command", command)
		fmt.Fprintln(out, msgInputClosed)
	default:
		logger.Error("command failed", "command", command, "error", err)
		fmt.Fprintln(out, msgServiceError)
	}
	return 1
}

func startMetricsServer(addr string, reg *prometheus.Registry, logger *logging.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		logger.Info("metrics listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
