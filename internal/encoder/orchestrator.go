// Package encoder supervises the external transcode and segmenter
// subprocesses and turns their diagnostic output into segment events.
package encoder

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hszk-dev/livecast/internal/config"
	"github.com/hszk-dev/livecast/internal/domain/model"
	"github.com/hszk-dev/livecast/internal/metrics"
)

// masterReadChunk is the read size for the master elementary stream.
const masterReadChunk = 100 * 1024

// EventSink receives segment events and the one-time master index
// request. The publish queue implements it.
type EventSink interface {
	Enqueue(ev model.SegmentEvent)
	EnqueueMasterIndex()
}

// Orchestrator runs one encoding session: a single combined subprocess
// for one profile, or a master transcoder fanned into per-profile
// segmenters for multi-rate runs.
type Orchestrator struct {
	cfg    *config.Config
	sink   EventSink
	logger *slog.Logger

	mu        sync.Mutex
	stopInput io.Writer
}

// New creates an orchestrator. Run may be called once.
func New(cfg *config.Config, sink EventSink, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:    cfg,
		sink:   sink,
		logger: logger,
	}
}

// Run executes the session until the source is exhausted and every
// subprocess has exited. It returns nil on a clean run, an
// *EncodingError for a single-profile failure, or an error wrapping
// ErrMasterEncoding when the master transcoder fails.
func (o *Orchestrator) Run() error {
	profiles := o.cfg.Profiles()
	if len(profiles) == 1 {
		return o.runSingle(profiles[0])
	}
	return o.runMultiRate(profiles)
}

// Stop requests a graceful shutdown by writing the quit token to the
// controlling subprocess's input. It is best-effort: the write is
// ignored if the input is already closed, and subprocesses are never
// force-killed; EOF propagation unwinds the pipeline naturally.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopInput == nil {
		return
	}
	o.logger.Info("stopping encoder")
	if _, err := io.WriteString(o.stopInput, "q"); err != nil {
		o.logger.Debug("quit token not delivered", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) setStopInput(w io.Writer) {
	o.mu.Lock()
	o.stopInput = w
	o.mu.Unlock()
}

// profileCommand expands a profile's command template. Operand order
// follows the template contract: input, segmenter binary, segment
// length, temp dir, segment file prefix, profile name.
func (o *Orchestrator) profileCommand(p model.EncodingProfile, input string) string {
	return fmt.Sprintf(p.Command,
		input,
		o.cfg.SegmenterBinary,
		o.cfg.SegmentLength,
		o.cfg.TempDir,
		o.cfg.SegmentPrefix+"_"+p.Name,
		p.Name,
	)
}

// runSingle spawns one subprocess that transcodes and segments in a
// single pipeline, reading the input location directly.
func (o *Orchestrator) runSingle(p model.EncodingProfile) error {
	command := o.profileCommand(p, o.cfg.InputLocation)
	o.logger.Debug("executing", slog.String("command", command))

	cmd := exec.Command("/bin/sh", "-c", command)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &EncodingError{Profile: p.Name, Err: err}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return &EncodingError{Profile: p.Name, Err: err}
	}

	if err := cmd.Start(); err != nil {
		return &EncodingError{Profile: p.Name, Err: err}
	}
	o.setStopInput(stdin)

	o.logger.Info("encoding started", slog.String("profile", p.Name))
	o.consumeDiagnostics(p.Name, stderr)

	if err := cmd.Wait(); err != nil {
		return &EncodingError{Profile: p.Name, Err: err}
	}
	o.logger.Info("encoding finished", slog.String("profile", p.Name))
	return nil
}

// runMultiRate publishes the master index, starts one segmenter per
// profile and feeds them all from the master transcoder's stdout.
func (o *Orchestrator) runMultiRate(profiles []model.EncodingProfile) error {
	// The master index must be queued before the first segment event
	// can possibly be produced.
	o.sink.EnqueueMasterIndex()

	var g errgroup.Group
	fan := newFanout(o.logger)

	var startErr error
	for _, p := range profiles {
		p := p
		command := o.profileCommand(p, "-")
		o.logger.Debug("executing", slog.String("command", command))

		cmd := exec.Command("/bin/sh", "-c", command)
		stdin, err := cmd.StdinPipe()
		if err != nil {
			startErr = &EncodingError{Profile: p.Name, Err: err}
			break
		}
		stderr, err := cmd.StderrPipe()
		if err != nil {
			startErr = &EncodingError{Profile: p.Name, Err: err}
			break
		}
		if err := cmd.Start(); err != nil {
			startErr = &EncodingError{Profile: p.Name, Err: err}
			break
		}

		fan.add(p.Name, stdin)

		// A failed segmenter is a per-profile loss; siblings keep
		// running off the same master stream.
		g.Go(func() error {
			o.logger.Info("encoding started", slog.String("profile", p.Name))
			o.consumeDiagnostics(p.Name, stderr)
			if err := cmd.Wait(); err != nil {
				encErr := &EncodingError{Profile: p.Name, Err: err}
				o.logger.Error("encoding failed", slog.String("profile", p.Name), slog.String("error", encErr.Error()))
				fan.remove(p.Name)
			} else {
				o.logger.Info("encoding finished", slog.String("profile", p.Name))
			}
			return nil
		})
	}

	if startErr != nil {
		// Already-started segmenters see EOF on their inputs and exit.
		fan.closeAll()
		_ = g.Wait()
		return startErr
	}

	g.Go(func() error {
		return o.runMaster(fan)
	})

	return g.Wait()
}

// runMaster executes the master transcode subprocess and broadcasts
// its stdout to every segmenter until EOF.
func (o *Orchestrator) runMaster(fan *fanout) error {
	command := fmt.Sprintf(o.cfg.SourceCommand, o.cfg.InputLocation)
	o.logger.Debug("executing", slog.String("command", command))

	cmd := exec.Command("/bin/sh", "-c", command)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		fan.closeAll()
		return fmt.Errorf("%w: %v", ErrMasterEncoding, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		fan.closeAll()
		return fmt.Errorf("%w: %v", ErrMasterEncoding, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		fan.closeAll()
		return fmt.Errorf("%w: %v", ErrMasterEncoding, err)
	}

	if err := cmd.Start(); err != nil {
		fan.closeAll()
		return fmt.Errorf("%w: %v", ErrMasterEncoding, err)
	}
	o.setStopInput(stdin)
	o.logger.Info("master encoding started")

	stderrDone := make(chan struct{})
	go func() {
		defer close(stderrDone)
		o.consumeDiagnostics("master", stderr)
	}()

	buf := make([]byte, masterReadChunk)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			fan.broadcast(buf[:n])
		}
		if err != nil {
			if err != io.EOF {
				o.logger.Error("master stream read failed", slog.String("error", err.Error()))
			}
			break
		}
	}

	// EOF propagation: closing every segmenter input lets them finish
	// their final segment and exit on their own.
	fan.closeAll()
	<-stderrDone

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("%w: %v", ErrMasterEncoding, err)
	}
	o.logger.Info("master encoding finished")
	return nil
}

// consumeDiagnostics reads a subprocess diagnostic stream to EOF,
// emitting segment events and logging encoder errors.
func (o *Orchestrator) consumeDiagnostics(profile string, r io.Reader) {
	scanner := newDiagnosticScanner(bufio.NewScanner(r))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}

		kind, payload := classifyLine(line)
		switch kind {
		case lineSegment:
			ev, err := model.ParseSegmentEvent(payload)
			if err != nil {
				o.logger.Warn("unparseable segment event",
					slog.String("profile", profile),
					slog.String("error", err.Error()),
				)
				continue
			}
			if ev.Profile == "" {
				ev.Profile = profile
			}
			o.logger.Debug("segment event",
				slog.String("profile", ev.Profile),
				slog.Int("first", ev.First),
				slog.Int("last", ev.Last),
				slog.Bool("end", ev.End),
			)
			o.sink.Enqueue(ev)
		case lineError:
			metrics.EncoderErrorLinesTotal.WithLabelValues(profile).Inc()
			o.logger.Error("encoder reported error",
				slog.String("profile", profile),
				slog.String("line", line),
			)
		case lineTranscoder:
			o.logger.Debug("encoder output",
				slog.String("profile", profile),
				slog.String("line", line),
			)
		}
	}
	if err := scanner.Err(); err != nil {
		o.logger.Warn("diagnostic stream read failed",
			slog.String("profile", profile),
			slog.String("error", err.Error()),
		)
	}
}
