package booking

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/wolfman30/medbook/internal/api"
	"github.com/wolfman30/medbook/internal/observability/metrics"
	"github.com/wolfman30/medbook/pkg/logging"
)

const defaultHistoryDelay = 2 * time.Second

// Booker creates appointments. *api.Client satisfies it.
type Booker interface {
	BookAppointment(ctx context.Context, req api.AppointmentRequest) (*api.BookingResult, error)
}

// Navigator moves the patient to the next screen.
type Navigator interface {
	// Redirect hands the patient off to an external payment page.
	Redirect(ctx context.Context, target string) error
	ShowBookingHistory(ctx context.Context) error
}

// Notifier shows transient messages.
type Notifier interface {
	Success(msg string)
	Error(msg string)
}

type SubmitterConfig struct {
	Booker    Booker
	Navigator Navigator
	Notifier  Notifier
	// CheckoutBase is joined with a bare paymentLinkId when the backend
	// sends no full URL. Required: without it a link-id-only response
	// could not be redirected.
	CheckoutBase string
	// HistoryDelay is how long the cash success message stays up before
	// moving to booking history.
	HistoryDelay time.Duration
	Logger       *logging.Logger
	Metrics      *metrics.ClientMetrics
}

// Submitter is the review stage's confirm action.
type Submitter struct {
	booker       Booker
	nav          Navigator
	notify       Notifier
	checkoutBase string
	delay        time.Duration
	logger       *logging.Logger
	metrics      *metrics.ClientMetrics

	inFlight atomic.Bool
}

func NewSubmitter(cfg SubmitterConfig) (*Submitter, error) {
	if cfg.Booker == nil {
		return nil, errors.New("booking: booker is required")
	}
	if cfg.Navigator == nil {
		return nil, errors.New("booking: navigator is required")
	}
	if cfg.Notifier == nil {
		return nil, errors.New("booking: notifier is required")
	}
	checkoutBase := strings.TrimRight(strings.TrimSpace(cfg.CheckoutBase), "/")
	if checkoutBase == "" {
		return nil, errors.New("booking: checkout base is required")
	}
	delay := cfg.HistoryDelay
	if delay <= 0 {
		delay = defaultHistoryDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Submitter{
		booker:       cfg.Booker,
		nav:          cfg.Navigator,
		notify:       cfg.Notifier,
		checkoutBase: checkoutBase,
		delay:        delay,
		logger:       logger,
		metrics:      cfg.Metrics,
	}, nil
}

// Outcome reports what a successful submission did.
type Outcome struct {
	PaymentType PaymentType
	Result      *api.BookingResult
	// RedirectURL is the payment page for online bookings.
	RedirectURL string
}

// Submit books the draft for user. It refuses an incomplete profile before
// any network call, never retries the booking, and shows exactly one
// message for a failure.
func (s *Submitter) Submit(ctx context.Context, user *api.User, d Draft) (*Outcome, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrSubmissionInProgress
	}
	defer s.inFlight.Store(false)

	if err := CheckProfile(user); err != nil {
		s.notify.Error(MsgIncompleteProfile)
		return nil, err
	}

	req, err := BuildPayload(user.ID.String(), d)
	if err != nil {
		s.logger.Warn("booking draft is not submittable", "error", err)
		s.notify.Error(MsgBookingFailed)
		return nil, err
	}
	payment := PaymentCash
	if req.PaymentMethod == 2 {
		payment = PaymentOnline
	}

	result, err := s.booker.BookAppointment(ctx, req)
	if err != nil {
		return nil, s.fail(payment, err)
	}

	switch payment {
	case PaymentOnline:
		return s.finishOnline(ctx, result)
	default:
		return s.finishCash(ctx, result)
	}
}

func (s *Submitter) fail(payment PaymentType, err error) error {
	s.logger.Error("booking submission failed", "payment_type", string(payment), "error", err)
	switch {
	case errors.Is(err, api.ErrSessionExpired):
		s.metrics.ObserveBooking(string(payment), "session_expired")
		s.notify.Error(MsgSessionExpired)
		return err
	case isSlotConflict(err):
		s.metrics.ObserveBooking(string(payment), "conflict")
		s.notify.Error(MsgSlotUnavailable)
		return fmt.Errorf("%w: %w", ErrSlotUnavailable, err)
	default:
		s.metrics.ObserveBooking(string(payment), "error")
		s.notify.Error(MsgBookingFailed)
		return fmt.Errorf("booking: submit: %w", err)
	}
}

func (s *Submitter) finishOnline(ctx context.Context, result *api.BookingResult) (*Outcome, error) {
	target := paymentRedirect(result, s.checkoutBase)
	if target == "" {
		s.logger.Error("online booking response has no payment link", "response_keys", result.Keys)
		s.metrics.ObserveBooking(string(PaymentOnline), "missing_link")
		s.notify.Error(MsgBookingFailed)
		return nil, ErrMissingPaymentLink
	}
	s.metrics.ObserveBooking(string(PaymentOnline), "success")
	s.notify.Success(MsgRedirectPayment)
	if err := s.nav.Redirect(ctx, target); err != nil {
		return nil, fmt.Errorf("booking: redirect to payment: %w", err)
	}
	return &Outcome{PaymentType: PaymentOnline, Result: result, RedirectURL: target}, nil
}

func (s *Submitter) finishCash(ctx context.Context, result *api.BookingResult) (*Outcome, error) {
	s.metrics.ObserveBooking(string(PaymentCash), "success")
	s.notify.Success(MsgBookedCash)

	timer := time.NewTimer(s.delay)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return &Outcome{PaymentType: PaymentCash, Result: result}, ctx.Err()
	}
	if err := s.nav.ShowBookingHistory(ctx); err != nil {
		return nil, fmt.Errorf("booking: show history: %w", err)
	}
	return &Outcome{PaymentType: PaymentCash, Result: result}, nil
}

// paymentRedirect picks checkoutUrl, then paymentUrl, then a checkout URL
// built from paymentLinkId.
func paymentRedirect(r *api.BookingResult, checkoutBase string) string {
	if r == nil {
		return ""
	}
	if u := strings.TrimSpace(r.CheckoutURL); u != "" {
		return u
	}
	if u := strings.TrimSpace(r.PaymentURL); u != "" {
		return u
	}
	if id := strings.TrimSpace(r.PaymentLinkID); id != "" && checkoutBase != "" {
		return checkoutBase + "/" + url.PathEscape(id)
	}
	return ""
}

var conflictPhrases = []string{
	"already booked",
	"already has",
	"already exists",
	"slot is taken",
	"unavailable",
	"not available",
	"đã được đặt",
	"đã có lịch",
}

func isSlotConflict(err error) bool {
	if api.IsStatus(err, http.StatusConflict) {
		return true
	}
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode < 400 || apiErr.StatusCode > 499 {
		return false
	}
	msg := strings.ToLower(apiErr.Message)
	for _, phrase := range conflictPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
