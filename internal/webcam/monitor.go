package webcam

import (
	"context"
	"fmt"
	"sync"
	"time"

	"proctor-go/internal/config"
	"proctor-go/internal/models"

	"go.uber.org/zap"
)

// FrameStore appends frame records to the event store.
type FrameStore interface {
	AppendFrameRecord(ctx context.Context, record *models.WebcamFrameRecord) error
}

// EventRecorder feeds derived security events back into the event
// processor. Satisfied by security.Processor.
type EventRecorder interface {
	Record(ctx context.Context, sessionID, eventType, details string, severity models.Severity) (float64, error)
}

// consecutive over-budget analyses before the monitor starts skipping
// every other frame.
const slowStreakLimit = 3

// Monitor ingests webcam frames per session. Each session gets a bounded
// queue drained by its own worker goroutine; when the queue is full the
// frame is recorded as dropped and the caller returns immediately. Frame
// analysis is best-effort and never a dependency for session progress.
type Monitor struct {
	log      *zap.Logger
	store    FrameStore
	analyzer FrameAnalyzer
	events   EventRecorder
	conf     func() config.ProctoringConfig

	mu      sync.Mutex
	workers map[string]*sessionWorker
	closed  bool
}

func NewMonitor(log *zap.Logger, store FrameStore, analyzer FrameAnalyzer, events EventRecorder, conf func() config.ProctoringConfig) *Monitor {
	return &Monitor{
		log:      log,
		store:    store,
		analyzer: analyzer,
		events:   events,
		conf:     conf,
		workers:  make(map[string]*sessionWorker),
	}
}

type sessionWorker struct {
	sessionID string
	queue     chan Frame
	done      chan struct{}

	mu      sync.Mutex
	lastSeq uint64
	closing bool

	// Worker-goroutine state, no locking needed.
	window      *slidingWindow
	slowStreak  int
	degraded    bool
	skipNext    bool
	noFaceArmed bool
	multiArmed  bool
}

// Ingest accepts one frame. It returns quickly in every case: the frame is
// either queued for analysis or recorded as dropped. Stale or duplicate
// sequence numbers are ignored so the per-session sequence stays strictly
// increasing.
func (m *Monitor) Ingest(ctx context.Context, frame Frame) error {
	worker := m.worker(frame.SessionID)
	if worker == nil {
		return nil // shut down
	}

	worker.mu.Lock()
	if worker.closing {
		worker.mu.Unlock()
		return nil
	}
	if frame.SequenceNumber <= worker.lastSeq {
		lastSeq := worker.lastSeq
		worker.mu.Unlock()
		m.log.Debug("Ignoring stale frame sequence",
			zap.String("sessionID", frame.SessionID),
			zap.Uint64("sequence", frame.SequenceNumber),
			zap.Uint64("lastSequence", lastSeq),
		)
		return nil
	}
	worker.lastSeq = frame.SequenceNumber

	// The send stays under the worker lock: closeWorker flips closing under
	// the same lock before closing the queue, so a send can never hit a
	// closed channel.
	select {
	case worker.queue <- frame:
		worker.mu.Unlock()
		return nil
	default:
		worker.mu.Unlock()
		// Backpressure: the queue is at its bound. Reserve the sequence
		// number and record the drop without blocking the caller.
		return m.recordDropped(ctx, frame)
	}
}

func (m *Monitor) recordDropped(ctx context.Context, frame Frame) error {
	return m.store.AppendFrameRecord(ctx, &models.WebcamFrameRecord{
		SessionID:      frame.SessionID,
		SequenceNumber: frame.SequenceNumber,
		CapturedAt:     frame.CapturedAt,
		Dropped:        true,
	})
}

func (m *Monitor) worker(sessionID string) *sessionWorker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	if worker, ok := m.workers[sessionID]; ok {
		return worker
	}
	worker := &sessionWorker{
		sessionID:   sessionID,
		queue:       make(chan Frame, m.conf().FrameQueueDepth),
		done:        make(chan struct{}),
		window:      newSlidingWindow(m.conf().FrameWindow),
		noFaceArmed: true,
		multiArmed:  true,
	}
	m.workers[sessionID] = worker
	go m.run(worker)
	return worker
}

// CloseSession stops the worker for a session that reached a terminal
// state. Frames already queued are still drained.
func (m *Monitor) CloseSession(sessionID string) {
	m.mu.Lock()
	worker, ok := m.workers[sessionID]
	if ok {
		delete(m.workers, sessionID)
	}
	m.mu.Unlock()
	if ok {
		closeWorker(worker)
	}
}

// Shutdown stops every worker and waits for their queues to drain.
func (m *Monitor) Shutdown() {
	m.mu.Lock()
	m.closed = true
	workers := m.workers
	m.workers = make(map[string]*sessionWorker)
	m.mu.Unlock()

	for _, worker := range workers {
		closeWorker(worker)
	}
}

// closeWorker fences off new sends before closing the queue. An Ingest that
// already holds a worker pointer sees closing and returns instead of
// sending.
func closeWorker(worker *sessionWorker) {
	worker.mu.Lock()
	worker.closing = true
	worker.mu.Unlock()
	close(worker.queue)
	<-worker.done
}

func (m *Monitor) run(worker *sessionWorker) {
	defer close(worker.done)
	for frame := range worker.queue {
		m.process(worker, frame)
	}
}

func (m *Monitor) process(worker *sessionWorker, frame Frame) {
	conf := m.conf()
	ctx := context.Background()

	// When the analyzer keeps blowing the per-frame budget, analyze every
	// other frame instead of violating it. Skipped frames still reserve
	// their sequence number as dropped records.
	if worker.degraded {
		worker.skipNext = !worker.skipNext
		if worker.skipNext {
			if err := m.recordDropped(ctx, frame); err != nil {
				m.log.Error("Failed to record skipped frame", zap.Error(err))
			}
			return
		}
	}

	analysisCtx, cancel := context.WithTimeout(ctx, conf.FrameAnalysisTimeout)
	start := time.Now()
	analysis, err := m.analyzer.Analyze(analysisCtx, frame)
	cancel()
	elapsed := time.Since(start)

	if elapsed > conf.FrameAnalysisTimeout {
		worker.slowStreak++
		if worker.slowStreak >= slowStreakLimit && !worker.degraded {
			worker.degraded = true
			m.log.Warn("Frame analyzer over budget, degrading to half rate",
				zap.String("sessionID", worker.sessionID),
				zap.Duration("elapsed", elapsed),
			)
		}
	} else {
		worker.slowStreak = 0
		if worker.degraded {
			worker.degraded = false
			worker.skipNext = false
		}
	}

	record := &models.WebcamFrameRecord{
		SessionID:      frame.SessionID,
		SequenceNumber: frame.SequenceNumber,
		CapturedAt:     frame.CapturedAt,
	}
	if err != nil {
		// Analyzer failure or timeout degrades to a no-signal record: face
		// assumed present, zero confidence, nothing fed to the window.
		m.log.Warn("Frame analysis failed",
			zap.String("sessionID", frame.SessionID),
			zap.Uint64("sequence", frame.SequenceNumber),
			zap.Error(err),
		)
		record.FaceDetected = true
	} else {
		record.FaceDetected = analysis.FaceDetected
		record.MultipleFacesDetected = analysis.MultipleFacesDetected
		record.Confidence = analysis.Confidence
	}

	if err := m.store.AppendFrameRecord(ctx, record); err != nil {
		m.log.Error("Failed to persist frame record", zap.Error(err))
		return
	}
	if err != nil {
		return
	}

	worker.window.Add(frame.CapturedAt, analysis.FaceDetected, analysis.MultipleFacesDetected)
	m.checkThresholds(ctx, worker, conf)
}

// checkThresholds emits a derived attention_loss security event when the
// rolling window crosses a threshold. Each threshold fires once and then
// re-arms only after the rate falls back under it, so a long absence does
// not turn into a penalty storm.
func (m *Monitor) checkThresholds(ctx context.Context, worker *sessionWorker, conf config.ProctoringConfig) {
	if worker.window.Size() < conf.FrameMinSamples {
		return
	}

	noFaceRate := worker.window.NoFaceRate()
	if noFaceRate > conf.NoFaceThreshold {
		if worker.noFaceArmed {
			worker.noFaceArmed = false
			m.emitAttentionLoss(ctx, worker.sessionID, "no_face", noFaceRate, conf)
		}
	} else {
		worker.noFaceArmed = true
	}

	multiRate := worker.window.MultiFaceRate()
	if multiRate > conf.MultiFaceThreshold {
		if worker.multiArmed {
			worker.multiArmed = false
			m.emitAttentionLoss(ctx, worker.sessionID, "multiple_faces", multiRate, conf)
		}
	} else {
		worker.multiArmed = true
	}
}

func (m *Monitor) emitAttentionLoss(ctx context.Context, sessionID, reason string, rate float64, conf config.ProctoringConfig) {
	details := fmt.Sprintf(`{"reason":%q,"rate":%.2f,"window_seconds":%.0f}`,
		reason, rate, conf.FrameWindow.Seconds())
	if _, err := m.events.Record(ctx, sessionID, models.EventAttentionLoss, details, models.SeverityMedium); err != nil {
		// A terminal session simply stopped accepting events; anything else
		// is worth a warning.
		m.log.Debug("Could not record attention loss event",
			zap.String("sessionID", sessionID),
			zap.Error(err),
		)
	}
}
