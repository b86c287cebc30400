package torrc

import (
	"io"
	"net/netip"
)

// ControlPortOptions configures tor's control port and how it authenticates.
type ControlPortOptions struct {
	// Endpoints are the control listeners, one ControlPort line each.
	Endpoints []netip.AddrPort

	// Password, when set, is hashed into HashedControlPassword.
	Password string

	// CookieAuthentication enables the cookie file method.
	CookieAuthentication bool

	// saltSource overrides crypto/rand in tests.
	saltSource io.Reader
}

var _ Entry = (*ControlPortOptions)(nil)

// Validate implements Entry.
func (o *ControlPortOptions) Validate() []Issue {
	issues := validateEndpoints("ControlPort", o.Endpoints)
	if len(o.Endpoints) > 0 && o.Password == "" && !o.CookieAuthentication {
		issues = append(issues, errorf("ControlPort: no authentication method configured"))
	}
	if len(o.Endpoints) == 0 && (o.Password != "" || o.CookieAuthentication) {
		issues = append(issues, warnf("ControlPort: authentication configured without an endpoint"))
	}
	return issues
}

// Serialize implements Entry. A fresh salt is drawn on every call, so two
// serializations of the same entry differ in their HashedControlPassword line.
func (o *ControlPortOptions) Serialize(w *Writer) {
	w.Endpoints("ControlPort", o.Endpoints)
	if o.Password != "" {
		var (
			hashed string
			err    error
		)
		if o.saltSource != nil {
			hashed, err = hashPasswordFrom(o.saltSource, o.Password)
		} else {
			hashed, err = HashPassword(o.Password)
		}
		if err != nil {
			w.fail(err)
			return
		}
		w.Line("HashedControlPassword", hashed)
	}
	w.Bool("CookieAuthentication", o.CookieAuthentication)
}
