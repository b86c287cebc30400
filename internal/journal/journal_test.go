package journal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/torgate/internal/log"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()

	j, err := Open(t.TempDir(), DefaultOptions())
	if err != nil {
		t.Fatalf("Open() = %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

// clock returns a fake now that advances one second per call.
func clock(start time.Time) func() time.Time {
	current := start
	return func() time.Time {
		current = current.Add(time.Second)
		return current
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	t.Run("creates directory and file", func(t *testing.T) {
		t.Parallel()

		dir := filepath.Join(t.TempDir(), "nested", "journal")
		j, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatalf("Open() = %v", err)
		}
		defer j.Close()

		if _, err := os.Stat(j.Path()); err != nil {
			t.Errorf("database file missing: %v", err)
		}
	})

	t.Run("missing database without create", func(t *testing.T) {
		t.Parallel()

		if _, err := Open(t.TempDir(), Options{}); err == nil {
			t.Error("Open() = nil, want error")
		}
	})

	t.Run("reopen existing", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		j, err := Open(dir, DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		s, err := j.Begin(context.Background(), "/usr/bin/tor")
		if err != nil {
			t.Fatal(err)
		}
		_ = j.Close()

		j, err = Open(dir, Options{EnableWAL: true})
		if err != nil {
			t.Fatalf("reopen = %v", err)
		}
		defer j.Close()
		if _, err := j.Get(context.Background(), s.ID); err != nil {
			t.Errorf("Get() after reopen = %v", err)
		}
	})
}

func TestSessionLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j := openTestJournal(t)
	j.now = clock(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	s, err := j.Begin(ctx, "/usr/bin/tor")
	if err != nil {
		t.Fatalf("Begin() = %v", err)
	}
	if err := j.SetEndpoints(ctx, s.ID, "127.0.0.1:9050,[::1]:9050", "127.0.0.1:9051"); err != nil {
		t.Fatalf("SetEndpoints() = %v", err)
	}
	if len(s.ID) != 36 || !s.Open() {
		t.Errorf("Begin() = %+v", s)
	}

	for _, step := range []struct {
		state    string
		progress int
	}{{"Connecting", 0}, {"Connecting", 50}, {"Connected", 100}, {"Disconnected", 100}} {
		if err := j.Transition(ctx, s.ID, step.state, step.progress); err != nil {
			t.Fatalf("Transition() = %v", err)
		}
	}
	if err := j.SetTorVersion(ctx, s.ID, "0.4.8.12"); err != nil {
		t.Fatal(err)
	}
	if err := j.SetExitIP(ctx, s.ID, "185.220.101.1"); err != nil {
		t.Fatal(err)
	}
	if err := j.End(ctx, s.ID, "Disconnected"); err != nil {
		t.Fatalf("End() = %v", err)
	}

	got, err := j.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if got.Open() || got.FinalState != "Disconnected" || got.TorVersion != "0.4.8.12" ||
		got.ExitIP != "185.220.101.1" || got.SocksAddrs != "127.0.0.1:9050,[::1]:9050" {
		t.Errorf("Get() = %+v", got)
	}
	if got.Duration() != 5*time.Second {
		t.Errorf("Duration() = %v, want 5s", got.Duration())
	}

	ended := got.EndedAt
	if err := j.End(ctx, s.ID, "Killed"); err != nil {
		t.Fatal(err)
	}
	again, _ := j.Get(ctx, s.ID)
	if !again.EndedAt.Equal(ended) {
		t.Errorf("second End() moved end time %v -> %v", ended, again.EndedAt)
	}

	trs, err := j.Transitions(ctx, s.ID)
	if err != nil {
		t.Fatalf("Transitions() = %v", err)
	}
	if len(trs) != 4 || trs[1].Progress != 50 || trs[2].State != "Connected" {
		t.Errorf("Transitions() = %+v", trs)
	}
}

func TestUnknownSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j := openTestJournal(t)

	if _, err := j.Get(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() = %v, want ErrNotFound", err)
	}
	if err := j.End(ctx, "nope", "Disconnected"); !errors.Is(err, ErrNotFound) {
		t.Errorf("End() = %v, want ErrNotFound", err)
	}
	if err := j.SetExitIP(ctx, "nope", "1.2.3.4"); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetExitIP() = %v, want ErrNotFound", err)
	}
	if err := j.Transition(ctx, "nope", "Connecting", 0); err == nil {
		t.Error("Transition() for unknown session = nil, want foreign key error")
	}
}

func TestListAndPrune(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j := openTestJournal(t)
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var ids []string
	for i := range 3 {
		j.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		s, err := j.Begin(ctx, "tor")
		if err != nil {
			t.Fatal(err)
		}
		if err := j.Transition(ctx, s.ID, "Connecting", 0); err != nil {
			t.Fatal(err)
		}
		ids = append(ids, s.ID)
	}

	all, err := j.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() = %v", err)
	}
	if len(all) != 3 || all[0].ID != ids[2] || all[2].ID != ids[0] {
		t.Errorf("List() order wrong: %v", all)
	}
	if two, _ := j.List(ctx, 2); len(two) != 2 {
		t.Errorf("List(2) returned %d", len(two))
	}

	n, err := j.Prune(ctx, base.Add(90*time.Minute))
	if err != nil {
		t.Fatalf("Prune() = %v", err)
	}
	if n != 2 {
		t.Errorf("Prune() = %d, want 2", n)
	}
	if trs, _ := j.Transitions(ctx, ids[0]); len(trs) != 0 {
		t.Errorf("transitions of pruned session kept: %v", trs)
	}
	if rest, _ := j.List(ctx, 0); len(rest) != 1 || rest[0].ID != ids[2] {
		t.Errorf("List() after prune = %v", rest)
	}
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	j := openTestJournal(t)
	s, err := j.Begin(ctx, "tor")
	if err != nil {
		t.Fatal(err)
	}

	r := j.NewRecorder(s.ID, log.Discard())
	if err := r.State("Connecting"); err != nil {
		t.Fatal(err)
	}
	r.Progress(85)
	if err := r.State("Connected"); err != nil {
		t.Fatal(err)
	}
	r.Close()
	r.Close()

	if err := r.State("Disconnected"); !errors.Is(err, ErrRecorderClosed) {
		t.Errorf("State() after Close = %v, want ErrRecorderClosed", err)
	}

	trs, err := j.Transitions(ctx, s.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(trs) != 2 || trs[0].Progress != 0 || trs[1].State != "Connected" || trs[1].Progress != 85 {
		t.Errorf("Transitions() = %+v", trs)
	}
}
