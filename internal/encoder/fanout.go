package encoder

import (
	"io"
	"log/slog"
	"sync"
)

// chunkBuffer is the per-segmenter chunk queue length. At 100KB reads
// this buffers several seconds of elementary stream per segmenter.
const chunkBuffer = 64

// fanout duplicates the master's output stream to every segmenter
// input. Each segmenter gets its own buffered writer goroutine so one
// stalled segmenter cannot hold up the master reader or its siblings;
// a segmenter whose buffer overflows loses chunks rather than
// propagating backpressure upstream.
type fanout struct {
	logger *slog.Logger

	mu      sync.Mutex
	outputs map[string]*segmenterInput
	closed  bool
}

type segmenterInput struct {
	name      string
	ch        chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func newFanout(logger *slog.Logger) *fanout {
	return &fanout{
		logger:  logger,
		outputs: make(map[string]*segmenterInput),
	}
}

// add registers a segmenter input and starts its writer goroutine.
func (f *fanout) add(name string, w io.WriteCloser) {
	in := &segmenterInput{
		name: name,
		ch:   make(chan []byte, chunkBuffer),
		done: make(chan struct{}),
	}

	go func() {
		defer close(in.done)
		for chunk := range in.ch {
			if _, err := w.Write(chunk); err != nil {
				f.logger.Warn("segmenter input write failed",
					slog.String("profile", name),
					slog.String("error", err.Error()),
				)
				f.remove(name)
				// Keep draining so the broadcaster never blocks on a
				// dead channel.
				for range in.ch {
				}
				break
			}
		}
		_ = w.Close()
	}()

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		in.close()
		return
	}
	f.outputs[name] = in
}

// remove detaches a segmenter from the broadcast, closing its input.
func (f *fanout) remove(name string) {
	f.mu.Lock()
	in, ok := f.outputs[name]
	delete(f.outputs, name)
	f.mu.Unlock()

	if ok {
		in.close()
	}
}

// broadcast hands one chunk to every attached segmenter. The chunk is
// copied once because the caller reuses its read buffer.
func (f *fanout) broadcast(p []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.outputs) == 0 {
		return
	}

	chunk := make([]byte, len(p))
	copy(chunk, p)

	for _, in := range f.outputs {
		select {
		case in.ch <- chunk:
		default:
			f.logger.Warn("segmenter falling behind, dropping chunk",
				slog.String("profile", in.name),
				slog.Int("bytes", len(chunk)),
			)
		}
	}
}

// closeAll closes every segmenter input and waits for the writers to
// drain, so segmenters see EOF once all buffered data is delivered.
func (f *fanout) closeAll() {
	f.mu.Lock()
	f.closed = true
	outputs := make([]*segmenterInput, 0, len(f.outputs))
	for _, in := range f.outputs {
		outputs = append(outputs, in)
	}
	f.outputs = make(map[string]*segmenterInput)
	f.mu.Unlock()

	for _, in := range outputs {
		in.close()
		<-in.done
	}
}

func (in *segmenterInput) close() {
	in.closeOnce.Do(func() { close(in.ch) })
}
