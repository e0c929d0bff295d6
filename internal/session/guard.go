package session

// Decision is what a protected screen should do right now.
type Decision int

const (
	// Pending means the session is still being resolved; render nothing and
	// do not redirect yet.
	Pending Decision = iota
	Allow
	RedirectLogin
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect-login"
	default:
		return "pending"
	}
}

// Guard decides access to a protected screen. It only redirects once the
// session is known to be anonymous.
func (m *Manager) Guard() Decision {
	switch m.State() {
	case StateAuthenticated:
		return Allow
	case StateAnonymous:
		return RedirectLogin
	default:
		return Pending
	}
}
