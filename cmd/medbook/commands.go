package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/wolfman30/medbook/internal/api"
	"github.com/wolfman30/medbook/internal/app/bootstrap"
	"github.com/wolfman30/medbook/internal/booking"
	"github.com/wolfman30/medbook/internal/chat"
	"github.com/wolfman30/medbook/internal/location"
	"github.com/wolfman30/medbook/internal/session"
)

type command func(ctx context.Context, args []string) error

type cli struct {
	rt  *bootstrap.Runtime
	in  *prompter
	out io.Writer
}

func newCLI(rt *bootstrap.Runtime, stdin io.Reader, stdout io.Writer) *cli {
	return &cli{rt: rt, in: newPrompter(stdin, stdout), out: stdout}
}

func (c *cli) commands() map[string]command {
	return map[string]command{
		"login":     c.login,
		"logout":    c.logout,
		"whoami":    c.whoami,
		"steps":     c.steps,
		"book":      c.book,
		"history":   c.history,
		"payment":   c.payment,
		"chat":      c.chat,
		"provinces": c.provinces,
	}
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.out)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(fs.Output(), "unexpected arguments: %s\n", strings.Join(fs.Args(), " "))
		fs.Usage()
		return errUsage
	}
	return nil
}

// requireLogin resolves the stored session and applies the route guard.
func (c *cli) requireLogin(ctx context.Context) (*api.User, error) {
	c.rt.Bootstrap(ctx)
	if c.rt.Session.Guard() != session.Allow {
		fmt.Fprintln(c.out, "You are not logged in. Run `medbook login` first.")
		return nil, fmt.Errorf("%w: %w", errReported, session.ErrNotLoggedIn)
	}
	return c.rt.Session.User(), nil
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := c.flags("login")
	username := fs.String("username", "", "account username")
	password := fs.String("password", "", "account password; falls back to $MEDBOOK_PASSWORD, then a prompt")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var err error
	if *username == "" {
		if *username, err = c.in.line("Username"); err != nil {
			return err
		}
	}
	pw := *password
	if pw == "" {
		pw = os.Getenv("MEDBOOK_PASSWORD")
	}
	if pw == "" {
		if pw, err = c.in.line("Password"); err != nil {
			return err
		}
	}

	user, err := c.rt.Session.Login(ctx, api.Credentials{Username: *username, Password: pw}, c.rt.API)
	if err != nil {
		if api.IsStatus(err, http.StatusUnauthorized) || api.IsStatus(err, http.StatusBadRequest) {
			fmt.Fprintln(c.out, "Wrong username or password.")
			return fmt.Errorf("%w: %w", errReported, err)
		}
		return err
	}
	fmt.Fprintf(c.out, "Logged in as %s.\n", displayName(user))
	return nil
}

func (c *cli) logout(ctx context.Context, args []string) error {
	if err := parseFlags(c.flags("logout"), args); err != nil {
		return err
	}
	if err := c.rt.Session.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "Logged out.")
	return nil
}

func (c *cli) whoami(ctx context.Context, args []string) error {
	if err := parseFlags(c.flags("whoami"), args); err != nil {
		return err
	}
	user, err := c.requireLogin(ctx)
	if err != nil {
		return err
	}

	province := user.Province
	if province != "" {
		if provinces, err := c.rt.Location.Provinces(ctx); err == nil {
			province = location.ProvinceName(provinces, province)
		} else {
			c.rt.Logger.Debug("province lookup failed", "error", err)
		}
	}
	gender := "-"
	if user.Gender != nil {
		gender = "female"
		if *user.Gender {
			gender = "male"
		}
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Name:\t%s\n", orDash(user.FullName))
	fmt.Fprintf(tw, "Username:\t%s\n", orDash(user.Username))
	fmt.Fprintf(tw, "Email:\t%s\n", orDash(user.Email))
	fmt.Fprintf(tw, "Phone:\t%s\n", orDash(user.Phone))
	fmt.Fprintf(tw, "Date of birth:\t%s\n", orDash(user.DateOfBirth))
	fmt.Fprintf(tw, "Gender:\t%s\n", gender)
	fmt.Fprintf(tw, "National ID:\t%s\n", orDash(user.NationalID))
	fmt.Fprintf(tw, "Address:\t%s\n", orDash(strings.Join(nonEmpty(user.StreetAddress, user.Ward, province), ", ")))
	if err := tw.Flush(); err != nil {
		return err
	}

	var incomplete *booking.IncompleteProfileError
	if err := booking.CheckProfile(user); errors.As(err, &incomplete) {
		fmt.Fprintf(c.out, "\nYour profile is missing: %s. You need these to book.\n", strings.Join(incomplete.Missing, ", "))
	}
	return nil
}

func (c *cli) steps(ctx context.Context, args []string) error {
	fs := c.flags("steps")
	serviceID := fs.String("service", "", "service id")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *serviceID == "" {
		fmt.Fprintln(c.out, "-service is required")
		return errUsage
	}

	c.rt.Bootstrap(ctx)
	steps, err := booking.LoadSteps(ctx, c.rt.API, *serviceID)
	if err != nil {
		return err
	}
	if len(steps) == 0 {
		fmt.Fprintln(c.out, "No booking steps are configured for this service.")
		return nil
	}
	for i, s := range steps {
		fmt.Fprintf(c.out, "%d. %s (step %s)\n", i+1, s.Kind, s.ID)
	}
	return nil
}

func (c *cli) history(ctx context.Context, args []string) error {
	if err := parseFlags(c.flags("history"), args); err != nil {
		return err
	}
	if _, err := c.requireLogin(ctx); err != nil {
		return err
	}
	return c.printHistory(ctx)
}

func (c *cli) printHistory(ctx context.Context) error {
	user := c.rt.Session.User()
	if user == nil {
		return session.ErrNotLoggedIn
	}
	appointments, err := c.rt.API.AppointmentHistory(ctx, user.ID.String())
	if err != nil {
		return err
	}
	if len(appointments) == 0 {
		fmt.Fprintln(c.out, "You have no bookings yet.")
		return nil
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tSHIFT\tHOSPITAL\tDOCTOR\tPAYMENT\tSTATUS")
	for _, a := range appointments {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			a.ID, orDash(a.AppointmentDate), shiftLabel(a.BookingTime), orDash(a.HospitalName),
			orDash(a.DoctorName), paymentLabel(a.PaymentMethod), orDash(a.Status))
	}
	return tw.Flush()
}

func (c *cli) payment(ctx context.Context, args []string) error {
	fs := c.flags("payment")
	orderID := fs.String("order", "", "PayOS order code")
	cancel := fs.Bool("cancel", false, "cancel the payment instead of checking it")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if *orderID == "" {
		fmt.Fprintln(c.out, "-order is required")
		return errUsage
	}
	if _, err := c.requireLogin(ctx); err != nil {
		return err
	}

	var (
		p   *api.Payment
		err error
	)
	if *cancel {
		p, err = c.rt.API.CancelPayment(ctx, *orderID)
	} else {
		p, err = c.rt.API.GetPayment(ctx, *orderID)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Order %s: %s (amount %d)\n", orDash(p.OrderCode.String()), orDash(p.Status), p.Amount)
	return nil
}

func (c *cli) chat(ctx context.Context, args []string) error {
	if err := parseFlags(c.flags("chat"), args); err != nil {
		return err
	}
	assistant, err := bootstrap.BuildAssistant(ctx, c.rt.Config, c.rt.Logger)
	if err != nil {
		return err
	}
	if assistant == nil {
		fmt.Fprintln(c.out, "The assistant is not configured. Set GEMINI_API_KEY to use it.")
		return errReported
	}
	defer assistant.Close()

	conv := chat.NewConversation(assistant, chat.NewRevealer(c.rt.Config.ChatRevealInterval), c.rt.Logger)
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	shown := make(chan struct{}, 1)
	go func() {
		_ = conv.Revealer().Run(runCtx, func(paragraph string) {
			fmt.Fprintf(c.out, "assistant> %s\n\n", paragraph)
			select {
			case shown <- struct{}{}:
			default:
			}
		})
	}()

	fmt.Fprintln(c.out, "Ask about booking. Type /quit to leave.")
	for {
		text, err := c.in.line("you")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if text == "/quit" {
			return nil
		}
		if text == "" {
			continue
		}
		if err := conv.Send(ctx, text); err != nil {
			c.rt.Logger.Debug("chat reply failed", "error", err)
		}
		for conv.Revealer().Pending() > 0 {
			select {
			case <-shown:
			case <-time.After(c.rt.Config.ChatRevealInterval + time.Second):
			case <-ctx.Done():
				return nil
			}
		}
	}
}

func (c *cli) provinces(ctx context.Context, args []string) error {
	fs := c.flags("provinces")
	code := fs.String("province", "", "list the wards of this province code")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	if *code != "" {
		wards, err := c.rt.Location.Wards(ctx, *code)
		if err != nil {
			return err
		}
		for _, w := range wards {
			fmt.Fprintf(tw, "%d\t%s\n", w.Code, w.Name)
		}
		return tw.Flush()
	}
	provinces, err := c.rt.Location.Provinces(ctx)
	if err != nil {
		return err
	}
	for _, p := range provinces {
		fmt.Fprintf(tw, "%d\t%s\n", p.Code, p.Name)
	}
	return tw.Flush()
}

func displayName(u *api.User) string {
	if u == nil {
		return "unknown user"
	}
	if u.FullName != "" {
		return u.FullName
	}
	if u.Username != "" {
		return u.Username
	}
	return "user " + u.ID.String()
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}
