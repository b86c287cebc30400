package torrc

import (
	"strconv"
	"time"
)

// minDormantTimeout is the smallest DormantClientTimeout tor accepts.
const minDormantTimeout = 10 * time.Minute

// DormantOptions configures tor's dormant mode. A zero ClientTimeout turns
// the inactivity timeout off instead of leaving tor's default in place.
type DormantOptions struct {
	ClientTimeout                time.Duration
	TimeoutDisabledByIdleStreams bool
	OnFirstStartup               bool
	CanceledByStartup            bool
}

var _ Entry = (*DormantOptions)(nil)

// Validate implements Entry.
func (o *DormantOptions) Validate() []Issue {
	var issues []Issue
	switch {
	case o.ClientTimeout < 0:
		issues = append(issues, errorf("DormantClientTimeout: must not be negative"))
	case o.ClientTimeout > 0 && o.ClientTimeout < minDormantTimeout:
		issues = append(issues, errorf("DormantClientTimeout: %s is below tor's minimum of %s", o.ClientTimeout, minDormantTimeout))
	case o.ClientTimeout%time.Minute != 0:
		issues = append(issues, warnf("DormantClientTimeout: %s is truncated to whole minutes", o.ClientTimeout))
	}
	if o.OnFirstStartup && o.CanceledByStartup {
		issues = append(issues, warnf("DormantOnFirstStartup: overridden by DormantCanceledByStartup"))
	}
	return issues
}

// Serialize implements Entry.
func (o *DormantOptions) Serialize(w *Writer) {
	if o.ClientTimeout <= 0 {
		w.Bool("DormantTimeoutEnabled", false)
	} else {
		w.Bool("DormantTimeoutEnabled", true)
		w.Line("DormantClientTimeout", strconv.FormatInt(int64(o.ClientTimeout/time.Minute), 10), "minutes")
	}
	w.Bool("DormantTimeoutDisabledByIdleStreams", o.TimeoutDisabledByIdleStreams)
	w.Bool("DormantOnFirstStartup", o.OnFirstStartup)
	w.Bool("DormantCanceledByStartup", o.CanceledByStartup)
}
