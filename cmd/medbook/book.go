package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wolfman30/medbook/internal/api"
	"github.com/wolfman30/medbook/internal/booking"
	"github.com/wolfman30/medbook/internal/payments"
)

const paymentWaitTimeout = 15 * time.Minute

// bookFlags pre-answer wizard steps. Each value is used once; if it is
// rejected the step falls back to a prompt.
type bookFlags struct {
	hospital  string
	service   string
	specialty string
	doctor    string
	date      string
	shift     string
	payment   string
	yes       bool
}

func take(v *string) string {
	s := strings.TrimSpace(*v)
	*v = ""
	return s
}

func (c *cli) book(ctx context.Context, args []string) error {
	var pre bookFlags
	fs := c.flags("book")
	fs.StringVar(&pre.hospital, "hospital", "", "hospital id (required)")
	fs.StringVar(&pre.service, "service", "", "service id (required)")
	fs.StringVar(&pre.specialty, "specialty", "", "specialty id")
	fs.StringVar(&pre.doctor, "doctor", "", "doctor id")
	fs.StringVar(&pre.date, "date", "", "appointment date, YYYY-MM-DD")
	fs.StringVar(&pre.shift, "shift", "", "morning or afternoon")
	fs.StringVar(&pre.payment, "payment", "", "cash or online")
	fs.BoolVar(&pre.yes, "yes", false, "confirm the review without asking")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if pre.hospital == "" || pre.service == "" {
		fmt.Fprintln(c.out, "-hospital and -service are required")
		return errUsage
	}

	user, err := c.requireLogin(ctx)
	if err != nil {
		return err
	}

	seed := booking.Draft{HospitalID: pre.hospital, ServiceID: pre.service}
	if h, err := c.rt.API.GetHospital(ctx, pre.hospital); err == nil {
		seed.HospitalName = h.Name
	} else {
		c.rt.Logger.Debug("hospital lookup failed", "hospital_id", pre.hospital, "error", err)
	}

	steps, err := booking.LoadSteps(ctx, c.rt.API, pre.service)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		fmt.Fprintln(c.out, "This service has no booking steps configured. Please contact the hospital.")
		return fmt.Errorf("%w: %w", errReported, booking.ErrNoSteps)
	}

	origin := booking.Origin{Path: "/hospitals/" + pre.hospital + "/services/" + pre.service}
	flow := booking.NewFlow(steps, origin, seed)

	for {
		exited, err := c.runSteps(ctx, flow, &pre)
		if err != nil {
			return err
		}
		if exited != nil {
			fmt.Fprintf(c.out, "Booking cancelled. Back to %s\n", exited.URL())
			return nil
		}

		c.printReview(flow.Draft())
		confirmed, err := c.confirm(pre.yes)
		if err != nil {
			return err
		}
		pre.yes = false
		if confirmed {
			break
		}
		flow.Retreat()
	}

	return c.submit(ctx, user, flow.Draft())
}

// runSteps walks the wizard until review, or returns the origin when the
// patient backs out of the first step.
func (c *cli) runSteps(ctx context.Context, flow *booking.Flow, pre *bookFlags) (*booking.Origin, error) {
	for flow.Stage() == booking.StageSteps {
		step, _ := flow.Current()
		fmt.Fprintf(c.out, "\nStep %d of %d: %s\n", flow.Index()+1, len(flow.Steps()), step.Kind)

		partial, err := c.collect(ctx, step, flow.Draft(), pre)
		if err == nil {
			_, err = flow.Advance(partial)
		}
		switch {
		case err == nil:
		case errors.Is(err, errBack):
			if tr := flow.Retreat(); tr.Exit != nil {
				return tr.Exit, nil
			}
		case errors.Is(err, booking.ErrUnsupportedStep):
			fmt.Fprintln(c.out, "This booking step is not supported yet. Please book at the hospital.")
			return nil, fmt.Errorf("%w: %w", errReported, err)
		case errors.Is(err, booking.ErrInvalidSelection):
			fmt.Fprintf(c.out, "%s\n", strings.TrimPrefix(err.Error(), booking.ErrInvalidSelection.Error()+": "))
		default:
			return nil, err
		}
	}
	return nil, nil
}

func (c *cli) collect(ctx context.Context, step booking.Step, d booking.Draft, pre *bookFlags) (booking.Draft, error) {
	switch step.Kind {
	case booking.KindSpecialty:
		specialties, err := c.rt.API.HospitalSpecialties(ctx, d.HospitalID)
		if err != nil {
			return booking.Draft{}, err
		}
		opts := make([]option, 0, len(specialties))
		for _, s := range specialties {
			opts = append(opts, option{ID: s.ID.String(), Label: s.Name})
		}
		o, err := c.pick("specialty", opts, &pre.specialty)
		if err != nil {
			return booking.Draft{}, err
		}
		return booking.Draft{Specialty: booking.Selection{ID: o.ID, Name: o.Label}}, nil

	case booking.KindDoctor:
		doctors, err := c.rt.API.HospitalDoctors(ctx, d.HospitalID, d.Specialty.ID)
		if err != nil {
			return booking.Draft{}, err
		}
		opts := make([]option, 0, len(doctors))
		for _, doc := range doctors {
			label := doc.FullName
			if doc.Title != "" {
				label = doc.Title + " " + doc.FullName
			}
			opts = append(opts, option{ID: doc.ID.String(), Label: label})
		}
		o, err := c.pick("doctor", opts, &pre.doctor)
		if err != nil {
			return booking.Draft{}, err
		}
		return booking.Draft{Doctor: booking.Selection{ID: o.ID, Name: o.Label}}, nil

	case booking.KindSchedule:
		date := take(&pre.date)
		if date == "" {
			var err error
			if date, err = c.in.ask("Date (YYYY-MM-DD)"); err != nil {
				return booking.Draft{}, err
			}
		}
		opts := []option{
			{ID: string(booking.ShiftMorning), Label: "Morning"},
			{ID: string(booking.ShiftAfternoon), Label: "Afternoon"},
		}
		if d.Doctor.ID != "" {
			c.markAvailability(ctx, d.Doctor.ID, date, opts)
		}
		o, err := c.pick("shift", opts, &pre.shift)
		if err != nil {
			return booking.Draft{}, err
		}
		return booking.Draft{Date: date, Shift: booking.Shift(o.ID)}, nil

	case booking.KindPaymentMethod:
		opts := []option{
			{ID: string(booking.PaymentCash), Label: "Pay at the hospital"},
			{ID: string(booking.PaymentOnline), Label: "Pay online now (PayOS)"},
		}
		o, err := c.pick("payment method", opts, &pre.payment)
		if err != nil {
			return booking.Draft{}, err
		}
		return booking.Draft{PaymentType: booking.PaymentType(o.ID)}, nil

	default:
		return booking.Draft{}, booking.ErrUnsupportedStep
	}
}

// pick uses the preset when it names one of opts, otherwise prompts.
func (c *cli) pick(label string, opts []option, preset *string) (option, error) {
	if v := take(preset); v != "" {
		for _, o := range opts {
			if strings.EqualFold(o.ID, v) {
				return o, nil
			}
		}
		fmt.Fprintf(c.out, "%q is not an available %s.\n", v, label)
	}
	return c.in.choose(label, opts)
}

// markAvailability annotates shift options with the doctor's schedule for
// the date. A failed lookup leaves them as they are; the backend has the
// final word when the booking is submitted.
func (c *cli) markAvailability(ctx context.Context, doctorID, date string, opts []option) {
	schedules, err := c.rt.API.DoctorSchedules(ctx, doctorID, date)
	if err != nil {
		c.rt.Logger.Debug("schedule lookup failed", "doctor_id", doctorID, "date", date, "error", err)
		return
	}
	for i := range opts {
		code, _ := booking.Shift(opts[i].ID).Code()
		for _, s := range schedules {
			if s.Shift == code && !s.Available {
				opts[i].Label += " (full)"
			}
		}
	}
}

func (c *cli) printReview(d booking.Draft) {
	payment := d.PaymentType
	if payment == "" {
		payment = booking.PaymentCash
	}
	fmt.Fprintln(c.out, "\nReview your booking")
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Hospital:\t%s\n", orDash(firstNonEmpty(d.HospitalName, d.HospitalID)))
	fmt.Fprintf(tw, "  Service:\t%s\n", orDash(firstNonEmpty(d.ServiceName, d.ServiceID)))
	fmt.Fprintf(tw, "  Specialty:\t%s\n", orDash(d.Specialty.Name))
	fmt.Fprintf(tw, "  Doctor:\t%s\n", orDash(d.Doctor.Name))
	fmt.Fprintf(tw, "  Date:\t%s\n", orDash(d.Date))
	fmt.Fprintf(tw, "  Shift:\t%s\n", orDash(string(d.Shift)))
	fmt.Fprintf(tw, "  Payment:\t%s\n", payment)
	_ = tw.Flush()
}

func (c *cli) confirm(yes bool) (bool, error) {
	if yes {
		return true, nil
	}
	for {
		text, err := c.in.line("Confirm booking? [y=book, b=back]")
		if err != nil {
			return false, err
		}
		switch {
		case strings.EqualFold(text, "y"), strings.EqualFold(text, "yes"):
			return true, nil
		case isBack(text):
			return false, nil
		}
	}
}

func (c *cli) submit(ctx context.Context, user *api.User, d booking.Draft) error {
	cfg := c.rt.Config

	var server *payments.ReturnServer
	if d.PaymentType == booking.PaymentOnline {
		ln, err := net.Listen("tcp", cfg.PaymentCallbackAddr)
		if err != nil {
			c.rt.Logger.Warn("payment return server unavailable", "addr", cfg.PaymentCallbackAddr, "error", err)
		} else {
			serveCtx, stop := context.WithCancel(ctx)
			defer stop()
			server = payments.NewReturnServer(c.rt.API, c.rt.Logger, nil)
			go func() {
				if err := server.Serve(serveCtx, ln); err != nil {
					c.rt.Logger.Error("payment return server stopped", "error", err)
				}
			}()
		}
	}

	submitter, err := booking.NewSubmitter(booking.SubmitterConfig{
		Booker:       c.rt.API,
		Navigator:    &terminalNavigator{out: c.out, history: c.printHistory},
		Notifier:     &terminalNotifier{out: c.out},
		CheckoutBase: cfg.PaymentCheckoutBase,
		HistoryDelay: cfg.BookingHistoryDelay,
		Logger:       c.rt.Logger,
		Metrics:      c.rt.Metrics,
	})
	if err != nil {
		return err
	}

	outcome, err := submitter.Submit(ctx, user, d)
	if err != nil {
		return fmt.Errorf("%w: %w", errReported, err)
	}
	if outcome.PaymentType != booking.PaymentOnline || server == nil {
		return nil
	}

	fmt.Fprintln(c.out, "Waiting for the payment to finish...")
	waitCtx, cancel := context.WithTimeout(ctx, paymentWaitTimeout)
	defer cancel()
	result, err := server.Wait(waitCtx)
	if err != nil {
		fmt.Fprintln(c.out, "Stopped waiting. Check later with `medbook payment -order <code>`.")
		return nil
	}
	switch {
	case result.Paid():
		fmt.Fprintln(c.out, "Payment received. Your appointment is confirmed.")
	case result.Cancelled:
		fmt.Fprintln(c.out, "Payment cancelled.")
	case result.Err != nil:
		fmt.Fprintln(c.out, "We could not confirm the payment. Check later with `medbook payment -order "+result.OrderCode+"`.")
	case result.Payment != nil:
		fmt.Fprintf(c.out, "Payment status: %s\n", result.Payment.Status)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
