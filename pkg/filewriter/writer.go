package filewriter

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/peakyragnar/nova/pkg/event"
	"github.com/rs/zerolog"
)

// DefaultQueueSize is the async write queue's capacity, the same
// constant value as the teacher's core.Emitter.DefaultBufferSize —
// events are dropped, not blocked, when the queue is full, per spec.md
// §4.8's "writes occur on an internal worker thread to keep ingest
// non-blocking".
const DefaultQueueSize = 1000

// HeaderWriter is implemented by drivers whose output file needs a
// header line written once, before the first row (e.g. CSV).
type HeaderWriter interface {
	Header() []byte
}

// BindingNotifier is called the first time a (systemId, containerId,
// uniqueId, lane, messageType) stream is written, so the caller can
// re-enter ingest with a DriverBinding metadata event.
type BindingNotifier func(binding event.Event) error

// Writer is the real-time file-writer worker: one background goroutine
// draining an async queue, a mutex-guarded set of open file handles
// keyed by (date, systemId, containerId, uniqueId, driverId), and a
// registry resolving which driver owns each stream. Generalizes the
// replay-writer reference's mutex-guarded Writer and the teacher's
// core.Emitter worker-loop shape.
type Writer struct {
	root     string
	registry *Registry
	onBind   BindingNotifier
	clock    func() time.Time
	Logger   zerolog.Logger

	mu      sync.Mutex
	handles map[string]*os.File
	bound   map[string]bool

	queue chan event.Event
	done  chan struct{}
	wg    sync.WaitGroup
}

// New returns a Writer rooted at dataDir. clock defaults to time.Now
// when nil (clock injection mirrors the replay-writer reference's
// NewWriter(root, matchID, clock) signature, for deterministic tests).
func New(dataDir string, registry *Registry, onBind BindingNotifier, clock func() time.Time) *Writer {
	if clock == nil {
		clock = time.Now
	}
	return &Writer{
		root:     dataDir,
		registry: registry,
		onBind:   onBind,
		clock:    clock,
		Logger:   zerolog.Nop(),
		handles:  make(map[string]*os.File),
		bound:    make(map[string]bool),
		queue:    make(chan event.Event, DefaultQueueSize),
		done:     make(chan struct{}),
	}
}

// Start begins the background drain goroutine. Must be called before
// Enqueue.
func (w *Writer) Start() {
	w.wg.Add(1)
	go w.drain()
}

func (w *Writer) drain() {
	defer w.wg.Done()
	for {
		select {
		case e := <-w.queue:
			if err := w.writeOne(e); err != nil {
				w.Logger.Error().Str("eventId", e.EventID).Str("lane", string(e.Lane)).Err(err).Msg("filewriter write failed")
			}
		case <-w.done:
			for {
				select {
				case e := <-w.queue:
					if err := w.writeOne(e); err != nil {
						w.Logger.Error().Str("eventId", e.EventID).Str("lane", string(e.Lane)).Err(err).Msg("filewriter write failed")
					}
				default:
					return
				}
			}
		}
	}
}

// Enqueue queues e for asynchronous writing. Non-blocking: returns
// false and drops e if the queue is full, matching core.Emitter.Emit's
// backpressure policy.
func (w *Writer) Enqueue(e event.Event) bool {
	select {
	case w.queue <- e:
		return true
	default:
		w.Logger.Warn().Str("eventId", e.EventID).Str("lane", string(e.Lane)).Msg("filewriter queue full, dropping event")
		return false
	}
}

// Close signals the drain goroutine to stop after flushing pending
// events, then closes every open file handle.
func (w *Writer) Close() error {
	close(w.done)
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	var firstErr error
	for _, f := range w.handles {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (w *Writer) writeOne(e event.Event) error {
	driver, ok := w.registry.Select(e.Lane, e.MessageType())
	if !ok {
		return nil
	}

	streamKey := e.SystemID + "|" + e.ContainerID + "|" + e.UniqueID + "|" + string(e.Lane) + "|" + e.MessageType()
	if err := w.ensureBinding(streamKey, driver, e); err != nil {
		return err
	}

	date, err := dateOf(e.CanonicalTruthTime)
	if err != nil {
		return err
	}
	path := filepath.Join(w.root, date, e.SystemID, e.ContainerID, e.UniqueID, driver.OutputFilename())

	f, err := w.handleFor(path, driver)
	if err != nil {
		return err
	}
	return driver.Write(f, e)
}

func (w *Writer) ensureBinding(streamKey string, driver Driver, e event.Event) error {
	w.mu.Lock()
	alreadyBound := w.bound[streamKey]
	if !alreadyBound {
		w.bound[streamKey] = true
	}
	w.mu.Unlock()

	if alreadyBound || w.onBind == nil {
		return nil
	}

	binding := event.Event{
		Header: event.Header{
			ScopeID:            e.ScopeID,
			Lane:               event.LaneMetadata,
			SourceTruthTime:    e.CanonicalTruthTime,
			CanonicalTruthTime: e.CanonicalTruthTime,
			Identity:           e.Identity,
		},
		Metadata: &event.MetadataPayload{
			MessageType:   event.MessageTypeDriverBinding,
			EffectiveTime: e.CanonicalTruthTime,
			Payload: map[string]any{
				"lane":        string(e.Lane),
				"messageType": e.MessageType(),
				"driverId":    driver.ID(),
				"version":     driver.Version(),
			},
		},
	}
	return w.onBind(binding)
}

func (w *Writer) handleFor(path string, driver Driver) (*os.File, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if f, ok := w.handles[path]; ok {
		return f, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("filewriter: mkdir %s: %w", filepath.Dir(path), err)
	}

	isNew := true
	if info, err := os.Stat(path); err == nil && info.Size() > 0 {
		isNew = false
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("filewriter: open %s: %w", path, err)
	}

	if isNew {
		if hw, ok := driver.(HeaderWriter); ok {
			if _, err := f.Write(hw.Header()); err != nil {
				f.Close()
				return nil, fmt.Errorf("filewriter: write header %s: %w", path, err)
			}
		}
	}

	w.handles[path] = f
	return f, nil
}

func dateOf(canonicalTruthTime string) (string, error) {
	t, err := time.Parse(time.RFC3339, canonicalTruthTime)
	if err != nil {
		return "", fmt.Errorf("filewriter: parse canonicalTruthTime %q: %w", canonicalTruthTime, err)
	}
	return t.UTC().Format("2006-01-02"), nil
}
