package encoder

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hszk-dev/livecast/internal/config"
	"github.com/hszk-dev/livecast/internal/domain/model"
)

// collectorSink records everything the orchestrator emits, in order.
type collectorSink struct {
	mu     sync.Mutex
	ops    []string
	events []model.SegmentEvent
}

func (c *collectorSink) Enqueue(ev model.SegmentEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, "event:"+ev.Profile)
	c.events = append(c.events, ev)
}

func (c *collectorSink) EnqueueMasterIndex() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ops = append(c.ops, "master-index")
}

func (c *collectorSink) allEvents() []model.SegmentEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.SegmentEvent, len(c.events))
	copy(out, c.events)
	return out
}

func (c *collectorSink) allOps() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.ops))
	copy(out, c.ops)
	return out
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// The ": %[1]s ... %[6]s" prefix consumes the template operands as a
// shell no-op, keeping test commands readable.
const operandSink = ": %[1]s %[2]s %[3]d %[4]s %[5]s %[6]s; "

func singleProfileConfig(t *testing.T, command string) *config.Config {
	t.Helper()
	return &config.Config{
		InputLocation:     "input.ts",
		SegmenterBinary:   "live_segmenter",
		TempDir:           t.TempDir(),
		SegmentLength:     10,
		IndexSegmentCount: 3,
		SegmentPrefix:     "sample",
		IndexPrefix:       "stream",
		EncodingProfiles: []config.ProfileConfig{
			{Name: "low", Bandwidth: 500000, Command: command},
		},
	}
}

func TestOrchestrator_SingleProfileEmitsEvents(t *testing.T) {
	command := operandSink +
		"printf 'segmenter: 1, 1, 0, low\\n' >&2; " +
		"printf 'segmenter: 1, 2, 1, low\\n' >&2"
	cfg := singleProfileConfig(t, command)

	sink := &collectorSink{}
	orch := New(cfg, sink, testLogger())

	if err := orch.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	events := sink.allEvents()
	if len(events) != 2 {
		t.Fatalf("got %d events %v, want 2", len(events), events)
	}
	want0 := model.SegmentEvent{Profile: "low", First: 1, Last: 1, End: false}
	want1 := model.SegmentEvent{Profile: "low", First: 1, Last: 2, End: true}
	if events[0] != want0 {
		t.Errorf("event 0 = %+v, want %+v", events[0], want0)
	}
	if events[1] != want1 {
		t.Errorf("event 1 = %+v, want %+v", events[1], want1)
	}
}

func TestOrchestrator_SingleProfileFillsMissingProfileName(t *testing.T) {
	command := operandSink + "printf 'segmenter: 1, 1, 1, \\n' >&2"
	cfg := singleProfileConfig(t, command)

	sink := &collectorSink{}
	orch := New(cfg, sink, testLogger())

	if err := orch.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	events := sink.allEvents()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Profile != "low" {
		t.Errorf("event profile = %q, want %q", events[0].Profile, "low")
	}
}

func TestOrchestrator_SingleProfileNonZeroExit(t *testing.T) {
	command := operandSink + "exit 3"
	cfg := singleProfileConfig(t, command)

	orch := New(cfg, &collectorSink{}, testLogger())

	err := orch.Run()
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("Run = %v, want *EncodingError", err)
	}
	if encErr.Profile != "low" {
		t.Errorf("failed profile = %q, want %q", encErr.Profile, "low")
	}
}

func TestOrchestrator_SingleProfileErrorLinesDoNotAbort(t *testing.T) {
	command := operandSink +
		"printf 'Error while decoding stream\\n' >&2; " +
		"printf 'segmenter: 1, 1, 1, low\\n' >&2"
	cfg := singleProfileConfig(t, command)

	sink := &collectorSink{}
	orch := New(cfg, sink, testLogger())

	if err := orch.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := len(sink.allEvents()); got != 1 {
		t.Errorf("got %d events, want 1", got)
	}
}

func multiProfileConfig(t *testing.T, sourceCommand string, profileCommand string) *config.Config {
	t.Helper()
	return &config.Config{
		InputLocation:     "input.ts",
		SourceCommand:     sourceCommand,
		SegmenterBinary:   "live_segmenter",
		TempDir:           t.TempDir(),
		SegmentLength:     10,
		IndexSegmentCount: 3,
		SegmentPrefix:     "sample",
		IndexPrefix:       "stream",
		EncodingProfiles: []config.ProfileConfig{
			{Name: "low", Bandwidth: 500000, Command: profileCommand},
			{Name: "high", Bandwidth: 1200000, Command: profileCommand},
		},
	}
}

func TestOrchestrator_MultiRateFansOutAndEmitsPerProfile(t *testing.T) {
	// The master writes a short stream to stdout; each segmenter
	// consumes its copy to EOF and reports one terminal event.
	source := ": %s; printf 'elementary-stream-bytes'"
	profileCmd := operandSink +
		"cat >/dev/null; printf 'segmenter: 1, 1, 1, %[6]s\\n' >&2"
	cfg := multiProfileConfig(t, source, profileCmd)

	sink := &collectorSink{}
	orch := New(cfg, sink, testLogger())

	if err := orch.Run(); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	ops := sink.allOps()
	if len(ops) == 0 || ops[0] != "master-index" {
		t.Fatalf("master index not enqueued first: %v", ops)
	}

	byProfile := make(map[string]model.SegmentEvent)
	for _, ev := range sink.allEvents() {
		byProfile[ev.Profile] = ev
	}
	for _, name := range []string{"low", "high"} {
		ev, ok := byProfile[name]
		if !ok {
			t.Errorf("no event for profile %s", name)
			continue
		}
		if !ev.End || ev.Last != 1 {
			t.Errorf("profile %s event = %+v", name, ev)
		}
	}
}

func TestOrchestrator_MultiRateMasterFailureIsFatal(t *testing.T) {
	source := ": %s; exit 2"
	profileCmd := operandSink + "cat >/dev/null"
	cfg := multiProfileConfig(t, source, profileCmd)

	orch := New(cfg, &collectorSink{}, testLogger())

	err := orch.Run()
	if !errors.Is(err, ErrMasterEncoding) {
		t.Fatalf("Run = %v, want ErrMasterEncoding", err)
	}
}

func TestOrchestrator_MultiRateSegmenterFailureDoesNotAbortSiblings(t *testing.T) {
	source := ": %s; printf 'data'"
	// The low profile exits non-zero; high completes normally.
	profileCmd := operandSink +
		"cat >/dev/null; " +
		"if [ %[6]s = low ]; then exit 1; fi; " +
		"printf 'segmenter: 1, 1, 1, %[6]s\\n' >&2"
	cfg := multiProfileConfig(t, source, profileCmd)

	sink := &collectorSink{}
	orch := New(cfg, sink, testLogger())

	// A single segmenter failure is per-profile and not fatal.
	if err := orch.Run(); err != nil {
		t.Fatalf("Run = %v, want nil", err)
	}

	events := sink.allEvents()
	if len(events) != 1 {
		t.Fatalf("got %d events %v, want 1", len(events), events)
	}
	if events[0].Profile != "high" {
		t.Errorf("surviving profile = %q, want %q", events[0].Profile, "high")
	}
}

func TestOrchestrator_StopDeliversQuitToken(t *testing.T) {
	// The subprocess blocks until it reads one byte on stdin.
	command := operandSink +
		"head -c1 >/dev/null; printf 'segmenter: 1, 1, 1, low\\n' >&2"
	cfg := singleProfileConfig(t, command)

	sink := &collectorSink{}
	orch := New(cfg, sink, testLogger())

	done := make(chan error, 1)
	go func() { done <- orch.Run() }()

	// Give the subprocess a moment to start before signaling.
	time.Sleep(200 * time.Millisecond)
	orch.Stop()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not finish after Stop")
	}

	if got := len(sink.allEvents()); got != 1 {
		t.Errorf("got %d events, want 1", got)
	}
}
