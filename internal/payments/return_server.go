// Package payments handles the browser's return from the PayOS checkout
// page. PayOS redirects to a return or cancel URL; a small local server
// answers those URLs, confirms the payment with the backend and reports
// the result to whoever is waiting.
package payments

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/medbook/internal/api"
	httpmiddleware "github.com/wolfman30/medbook/internal/http/middleware"
	"github.com/wolfman30/medbook/pkg/logging"
)

// PaymentClient confirms and cancels payments. *api.Client satisfies it.
type PaymentClient interface {
	GetPayment(ctx context.Context, orderID string) (*api.Payment, error)
	CancelPayment(ctx context.Context, orderID string) (*api.Payment, error)
}

// Outcome is the result of one return or cancel redirect.
type Outcome struct {
	OrderCode string
	Cancelled bool
	Payment   *api.Payment
	Err       error
}

// Paid reports whether the backend confirmed the payment.
func (o Outcome) Paid() bool {
	return o.Err == nil && !o.Cancelled && o.Payment != nil && strings.EqualFold(o.Payment.Status, "PAID")
}

// ReturnServer serves /payment/return, /payment/cancel and /health, plus
// /metrics when built with a gatherer.
type ReturnServer struct {
	payments PaymentClient
	logger   *logging.Logger
	outcomes chan Outcome
	router   chi.Router
}

func NewReturnServer(payments PaymentClient, logger *logging.Logger, gatherer prometheus.Gatherer) *ReturnServer {
	if payments == nil {
		panic("payments: payment client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &ReturnServer{
		payments: payments,
		logger:   logger,
		outcomes: make(chan Outcome, 1),
	}

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(httpmiddleware.RequestLogger(logger))
	r.Get("/health", s.handleHealth)
	r.Route("/payment", func(r chi.Router) {
		r.Get("/return", s.handleReturn)
		r.Get("/cancel", s.handleCancel)
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	s.router = r
	return s
}

func (s *ReturnServer) Handler() http.Handler { return s.router }

// Wait blocks until a return or cancel redirect has been handled.
func (s *ReturnServer) Wait(ctx context.Context) (Outcome, error) {
	select {
	case o := <-s.outcomes:
		return o, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Serve runs the server on ln until ctx is cancelled.
func (s *ReturnServer) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("payments: serve: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("payments: shutdown: %w", err)
		}
		return nil
	}
}

func (s *ReturnServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (s *ReturnServer) handleReturn(w http.ResponseWriter, r *http.Request) {
	orderCode := strings.TrimSpace(r.URL.Query().Get("orderCode"))
	if orderCode == "" {
		http.Error(w, "missing orderCode", http.StatusBadRequest)
		return
	}
	// PayOS sends cancelled checkouts to the return URL too when no cancel
	// URL matched.
	if strings.EqualFold(r.URL.Query().Get("cancel"), "true") {
		s.cancel(w, r, orderCode)
		return
	}

	payment, err := s.payments.GetPayment(r.Context(), orderCode)
	if err != nil {
		s.logger.Error("payment return: lookup failed", "order_code", orderCode, "error", err)
		s.deliver(Outcome{OrderCode: orderCode, Err: err})
		writePage(w, http.StatusBadGateway, "We could not confirm your payment. Check your booking history in a few minutes.")
		return
	}
	s.logger.Info("payment return", "order_code", orderCode, "status", payment.Status)
	s.deliver(Outcome{OrderCode: orderCode, Payment: payment})
	if strings.EqualFold(payment.Status, "PAID") {
		writePage(w, http.StatusOK, "Payment received. Your appointment is confirmed; you can close this tab.")
		return
	}
	writePage(w, http.StatusOK, fmt.Sprintf("Payment status: %s. You can close this tab.", payment.Status))
}

func (s *ReturnServer) handleCancel(w http.ResponseWriter, r *http.Request) {
	orderCode := strings.TrimSpace(r.URL.Query().Get("orderCode"))
	if orderCode == "" {
		http.Error(w, "missing orderCode", http.StatusBadRequest)
		return
	}
	s.cancel(w, r, orderCode)
}

func (s *ReturnServer) cancel(w http.ResponseWriter, r *http.Request, orderCode string) {
	payment, err := s.payments.CancelPayment(r.Context(), orderCode)
	if err != nil {
		s.logger.Error("payment cancel failed", "order_code", orderCode, "error", err)
		s.deliver(Outcome{OrderCode: orderCode, Cancelled: true, Err: err})
		writePage(w, http.StatusBadGateway, "We could not cancel your payment. Please contact the hospital.")
		return
	}
	s.logger.Info("payment cancelled", "order_code", orderCode)
	s.deliver(Outcome{OrderCode: orderCode, Cancelled: true, Payment: payment})
	writePage(w, http.StatusOK, "Payment cancelled. You can close this tab.")
}

// deliver hands the outcome to Wait without blocking the handler. Only the
// first unread outcome is kept.
func (s *ReturnServer) deliver(o Outcome) {
	select {
	case s.outcomes <- o:
	default:
		s.logger.Warn("payment outcome dropped, previous one not yet read", "order_code", o.OrderCode)
	}
}

func writePage(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(msg + "\n"))
}
