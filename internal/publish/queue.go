// Package publish turns segment completion events into playlist
// updates and remote transfers. A single worker consumes an ordered
// queue, so per-profile windows need no locking and events for one
// profile are published in emission order.
package publish

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hszk-dev/livecast/internal/domain/model"
	"github.com/hszk-dev/livecast/internal/domain/repository"
	"github.com/hszk-dev/livecast/internal/metrics"
	"github.com/hszk-dev/livecast/internal/playlist"
)

type itemKind int

const (
	itemSegment itemKind = iota
	itemMasterIndex
	itemQuit
)

type item struct {
	kind  itemKind
	event model.SegmentEvent
}

// queueCapacity bounds the channel buffer. Events arrive once per
// segment duration per profile, so this never fills in practice; it
// exists so a hung transport shows up as backpressure instead of
// unbounded memory growth.
const queueCapacity = 256

// Config carries the queue's slice of the stream definition.
type Config struct {
	TempDir       string
	SegmentLength int
	// WindowDepth is how many segments each playlist advertises.
	WindowDepth int
	// Profiles, in master playlist order.
	Profiles []model.EncodingProfile
	// PublishTimeout bounds each transport call.
	PublishTimeout time.Duration
}

// Queue is the ordered publish channel plus its single worker.
type Queue struct {
	cfg       Config
	generator playlist.Generator
	transport repository.Transport
	notifier  repository.Notifier    // optional
	status    repository.StatusStore // optional
	logger    *slog.Logger

	ch   chan item
	done chan struct{}

	// windows is touched only by the worker goroutine.
	windows map[string]*model.SegmentWindow
}

// NewQueue builds a publish queue. Notifier and status store may be
// nil when those integrations are not configured.
func NewQueue(cfg Config, gen playlist.Generator, transport repository.Transport, notifier repository.Notifier, status repository.StatusStore, logger *slog.Logger) *Queue {
	return &Queue{
		cfg:       cfg,
		generator: gen,
		transport: transport,
		notifier:  notifier,
		status:    status,
		logger:    logger,
		ch:        make(chan item, queueCapacity),
		done:      make(chan struct{}),
		windows:   make(map[string]*model.SegmentWindow),
	}
}

// Start launches the worker goroutine.
func (q *Queue) Start() {
	go q.worker()
}

// Enqueue hands a segment event to the worker. It blocks only on
// channel backpressure and may be called from any encoder goroutine.
func (q *Queue) Enqueue(ev model.SegmentEvent) {
	q.ch <- item{kind: itemSegment, event: ev}
	metrics.PublishQueueDepth.Inc()
}

// EnqueueMasterIndex requests a one-time master playlist publish. It
// must be enqueued before any segment event of a multi-rate run.
func (q *Queue) EnqueueMasterIndex() {
	q.ch <- item{kind: itemMasterIndex}
	metrics.PublishQueueDepth.Inc()
}

// Stop enqueues the drain token and waits for the worker to finish all
// previously queued events. It must be called before process exit or
// buffered segments are lost.
func (q *Queue) Stop() {
	q.ch <- item{kind: itemQuit}
	<-q.done
}

func (q *Queue) worker() {
	defer close(q.done)

	q.logger.Info("publish worker started")
	for it := range q.ch {
		if it.kind != itemQuit {
			metrics.PublishQueueDepth.Dec()
		}

		switch it.kind {
		case itemQuit:
			q.logger.Info("publish worker draining complete")
			return
		case itemMasterIndex:
			if err := q.publishMasterIndex(); err != nil {
				q.logger.Error("master index publish failed", slog.String("error", err.Error()))
			}
		case itemSegment:
			q.handleEvent(it.event)
		}
	}
}

func (q *Queue) window(profile string) *model.SegmentWindow {
	w, ok := q.windows[profile]
	if !ok {
		w = model.NewSegmentWindow(profile, q.cfg.WindowDepth)
		q.windows[profile] = w
	}
	return w
}

// handleEvent admits the event's segments, rewrites the profile
// playlist and publishes playlist plus newest segment. A transfer
// failure abandons this attempt, leaves the local files in place for
// manual recovery and never blocks the next event.
func (q *Queue) handleEvent(ev model.SegmentEvent) {
	w := q.window(ev.Profile)

	if w.Closed() {
		q.logger.Warn("event after stream end dropped",
			slog.String("profile", ev.Profile),
			slog.Int("last_segment", ev.Last),
		)
		return
	}

	// The segmenter reports the full range it has produced so far;
	// everything up to the newest admitted segment is already in the
	// window.
	start := ev.First
	if newest, ok := w.Newest(); ok && newest.Sequence >= start {
		start = newest.Sequence + 1
	}

	admitted := 0
	for seq := start; seq <= ev.Last; seq++ {
		seg := model.Segment{
			Profile:  ev.Profile,
			Sequence: seq,
			Duration: q.cfg.SegmentLength,
			Path:     filepath.Join(q.cfg.TempDir, q.generator.SegmentFileName(ev.Profile, seq)),
		}
		if err := w.Admit(seg); err != nil {
			q.logger.Warn("segment not admitted",
				slog.String("profile", ev.Profile),
				slog.Int("sequence", seq),
				slog.String("error", err.Error()),
			)
			continue
		}
		admitted++
	}

	if ev.End {
		w.Close()
	}

	begin := time.Now()
	err := q.publishProfile(w, ev, admitted > 0)
	metrics.PublishDurationSeconds.WithLabelValues(ev.Profile).Observe(time.Since(begin).Seconds())

	if err != nil {
		metrics.SegmentsPublishedTotal.WithLabelValues(ev.Profile, metrics.StatusError).Inc()
		q.logger.Error("publish failed, local files retained",
			slog.String("profile", ev.Profile),
			slog.Int("last_segment", ev.Last),
			slog.String("error", err.Error()),
		)
		return
	}

	metrics.SegmentsPublishedTotal.WithLabelValues(ev.Profile, metrics.StatusSuccess).Inc()
	q.recordStatus(ev)
	q.notifyPublished(ev)
}

// publishProfile renders the window to a temp file, publishes the
// playlist and the newest segment, then deletes the local copies.
func (q *Queue) publishProfile(w *model.SegmentWindow, ev model.SegmentEvent, withSegment bool) error {
	doc := q.generator.RenderProfile(w.Snapshot())

	indexTemp := filepath.Join(q.cfg.TempDir, "tmp.index."+ev.Profile+".m3u8")
	if err := os.WriteFile(indexTemp, []byte(doc), 0644); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.PublishTimeout)
	defer cancel()

	if err := q.transport.Publish(ctx, indexTemp, q.generator.IndexFileName(ev.Profile)); err != nil {
		return err
	}

	var segmentTemp string
	if withSegment {
		if newest, ok := w.Newest(); ok {
			segmentTemp = newest.Path
			if err := q.transport.Publish(ctx, segmentTemp, filepath.Base(segmentTemp)); err != nil {
				return err
			}
		}
	}

	if err := os.Remove(indexTemp); err != nil {
		q.logger.Warn("failed to remove temp index", slog.String("path", indexTemp))
	}
	if segmentTemp != "" {
		if err := os.Remove(segmentTemp); err != nil {
			q.logger.Warn("failed to remove temp segment", slog.String("path", segmentTemp))
		}
	}
	return nil
}

// publishMasterIndex renders and publishes the multi-rate index. This
// happens exactly once per run, before any per-profile event.
func (q *Queue) publishMasterIndex() error {
	doc := q.generator.RenderMaster(q.cfg.Profiles)

	temp := filepath.Join(q.cfg.TempDir, "tmp.index.multi.m3u8")
	if err := os.WriteFile(temp, []byte(doc), 0644); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), q.cfg.PublishTimeout)
	defer cancel()

	if err := q.transport.Publish(ctx, temp, q.generator.MasterIndexFileName()); err != nil {
		return err
	}

	if err := os.Remove(temp); err != nil {
		q.logger.Warn("failed to remove temp index", slog.String("path", temp))
	}

	q.logger.Info("master index published")
	return nil
}

func (q *Queue) recordStatus(ev model.SegmentEvent) {
	if q.status == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if ev.End {
		err = errors.Join(
			q.status.SetSequence(ctx, ev.Profile, ev.Last),
			q.status.SetEnded(ctx, ev.Profile),
		)
	} else {
		err = q.status.SetSequence(ctx, ev.Profile, ev.Last)
	}
	if err != nil {
		q.logger.Warn("status store update failed",
			slog.String("profile", ev.Profile),
			slog.String("error", err.Error()),
		)
	}
}

func (q *Queue) notifyPublished(ev model.SegmentEvent) {
	if q.notifier == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	notice := repository.PublishNotice{
		Profile:     ev.Profile,
		First:       ev.First,
		Last:        ev.Last,
		StreamEnd:   ev.End,
		PublishedAt: time.Now().UTC(),
	}
	if err := q.notifier.SegmentPublished(ctx, notice); err != nil {
		q.logger.Warn("publish notification failed",
			slog.String("profile", ev.Profile),
			slog.String("error", err.Error()),
		)
	}
}
