package journal

import (
	"context"
	"log/slog"
	"sync"
)

const recorderBuffer = 64

type entry struct {
	state    string
	progress int
}

// Recorder writes transitions for one session from a background goroutine,
// so callers that must not block (state subscribers) can hand them off.
type Recorder struct {
	j      *Journal
	id     string
	logger *slog.Logger

	mu       sync.Mutex
	closed   bool
	progress int
	queue    chan entry
	done     chan struct{}
}

// NewRecorder starts a recorder for session id.
func (j *Journal) NewRecorder(id string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		j:      j,
		id:     id,
		logger: logger,
		queue:  make(chan entry, recorderBuffer),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		if err := r.j.Transition(context.Background(), r.id, e.state, e.progress); err != nil {
			r.logger.Warn("failed to record transition", "session", r.id, "state", e.state, "error", err)
		}
	}
}

// Progress remembers the latest bootstrap percentage. It is stored with the
// next recorded state.
func (r *Recorder) Progress(p int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = p
}

// State queues a transition. It never blocks; when the queue is full the
// transition is dropped and logged.
func (r *Recorder) State(state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrRecorderClosed
	}
	select {
	case r.queue <- entry{state: state, progress: r.progress}:
	default:
		r.logger.Warn("transition dropped, journal is behind", "session", r.id, "state", state)
	}
	return nil
}

// Close flushes queued transitions and stops the recorder. It is safe to
// call more than once.
func (r *Recorder) Close() {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	<-r.done
}
