package realtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/exam-adp-api/internal/models"
	"github.com/noah-isme/exam-adp-api/internal/service"
	"github.com/noah-isme/exam-adp-api/pkg/config"
)

type answerIngester interface {
	SubmitAnswer(ctx context.Context, claims *models.JWTClaims, req service.SubmitAnswerRequest) (*models.Answer, error)
}

type connectionObserver interface {
	ConnectionOpened()
	ConnectionClosed()
	ObserveAnswer(ackDelay time.Duration)
}

// sessionState tracks the ingestion progress of one session. received is the
// highest sequence number taken off a socket; flushed is the highest sequence
// number whose write is durable and acknowledged. flushed trails received only
// while a write is in flight.
type sessionState struct {
	mu       sync.Mutex
	received uint64
	flushed  uint64
	waiters  []chan struct{}
}

func (st *sessionState) markReceived(seq uint64) {
	st.mu.Lock()
	if seq > st.received {
		st.received = seq
	}
	st.mu.Unlock()
}

func (st *sessionState) markFlushed(seq uint64) {
	st.mu.Lock()
	if seq > st.flushed {
		st.flushed = seq
	}
	if st.flushed >= st.received {
		for _, waiter := range st.waiters {
			close(waiter)
		}
		st.waiters = nil
	}
	st.mu.Unlock()
}

func (st *sessionState) drained() (<-chan struct{}, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.flushed >= st.received {
		return nil, true
	}
	waiter := make(chan struct{})
	st.waiters = append(st.waiters, waiter)
	return waiter, false
}

// Hub is the session-scoped connection registry for the answer channel. One
// session holds at most one live connection; a newer connection for the same
// session evicts the older one. Hub also satisfies the finalization barrier:
// WaitFlushed blocks until every answer received for a session is durable.
type Hub struct {
	ingester answerIngester
	metrics  connectionObserver
	cfg      config.RealtimeConfig
	tick     time.Duration
	logger   *zap.Logger

	mu       sync.RWMutex
	clients  map[string]*Client            // session ID -> live connection
	exams    map[string]map[string]*Client // exam ID -> session ID -> connection
	sessions map[string]*sessionState
	timers   map[string]context.CancelFunc
}

// NewHub constructs Hub. tick is the interval between time-remaining
// broadcasts.
func NewHub(ingester answerIngester, metrics connectionObserver, cfg config.RealtimeConfig, tick time.Duration, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tick <= 0 {
		tick = 30 * time.Second
	}
	return &Hub{
		ingester: ingester,
		metrics:  metrics,
		cfg:      cfg,
		tick:     tick,
		logger:   logger,
		clients:  map[string]*Client{},
		exams:    map[string]map[string]*Client{},
		sessions: map[string]*sessionState{},
		timers:   map[string]context.CancelFunc{},
	}
}

// WaitFlushed blocks until every answer received for the session has been
// durably written, or the context expires. Sessions with no live channel and
// no backlog return immediately.
func (h *Hub) WaitFlushed(ctx context.Context, sessionID string) error {
	h.mu.RLock()
	state := h.sessions[sessionID]
	h.mu.RUnlock()
	if state == nil {
		return nil
	}

	waiter, done := state.drained()
	if done {
		return nil
	}
	select {
	case <-waiter:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register attaches a connection for the session and starts the exam's timer
// broadcast if it is not already running. An existing connection for the same
// session is closed first.
func (h *Hub) Register(client *Client, exam *models.Exam) {
	h.mu.Lock()
	if previous, ok := h.clients[client.sessionID]; ok {
		previous.closeWith("superseded by a newer connection")
	}
	h.clients[client.sessionID] = client

	group, ok := h.exams[exam.ID]
	if !ok {
		group = map[string]*Client{}
		h.exams[exam.ID] = group
	}
	group[client.sessionID] = client

	if _, running := h.timers[exam.ID]; !running {
		ctx, cancel := context.WithCancel(context.Background())
		h.timers[exam.ID] = cancel
		go h.runExamTimer(ctx, exam)
	}

	if _, ok := h.sessions[client.sessionID]; !ok {
		h.sessions[client.sessionID] = &sessionState{}
	}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectionOpened()
	}
	h.logger.Info("ws_connected",
		zap.String("exam_id", exam.ID),
		zap.String("session_id", client.sessionID),
	)
}

// Unregister detaches a connection. Session ingestion state survives so a
// finalize arriving after a disconnect still observes the flushed watermark.
func (h *Hub) Unregister(client *Client, examID string) {
	h.mu.Lock()
	if current, ok := h.clients[client.sessionID]; ok && current == client {
		delete(h.clients, client.sessionID)
	}
	if group, ok := h.exams[examID]; ok {
		if current, ok := group[client.sessionID]; ok && current == client {
			delete(group, client.sessionID)
		}
		if len(group) == 0 {
			delete(h.exams, examID)
			if cancel, ok := h.timers[examID]; ok {
				cancel()
				delete(h.timers, examID)
			}
		}
	}
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.ConnectionClosed()
	}
	h.logger.Info("ws_disconnected",
		zap.String("exam_id", examID),
		zap.String("session_id", client.sessionID),
	)
}

// ingest writes one answer frame and moves the session's flushed watermark.
// The ack is sent only after the write returns, so an acknowledged answer is
// always durable.
func (h *Hub) ingest(ctx context.Context, client *Client, msg InboundMessage) error {
	h.mu.RLock()
	state := h.sessions[client.sessionID]
	h.mu.RUnlock()
	if state == nil {
		state = &sessionState{}
		h.mu.Lock()
		h.sessions[client.sessionID] = state
		h.mu.Unlock()
	}

	state.markReceived(msg.Seq)
	received := time.Now()

	_, err := h.ingester.SubmitAnswer(ctx, client.claims, service.SubmitAnswerRequest{
		SessionID:      client.sessionID,
		QuestionID:     msg.QuestionID,
		SelectedOption: msg.SelectedOption,
	})

	// The watermark advances on failure too: a rejected write is not pending,
	// and finalization must not deadlock on it.
	state.markFlushed(msg.Seq)
	if err != nil {
		return err
	}

	if h.metrics != nil {
		h.metrics.ObserveAnswer(time.Since(received))
	}
	return nil
}

// runExamTimer broadcasts the remaining seconds to every connection of the
// exam until the window ends, then announces the end and closes the group.
func (h *Hub) runExamTimer(ctx context.Context, exam *models.Exam) {
	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	end := exam.EndTime()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			remaining := int64(end.Sub(now) / time.Second)
			if remaining <= 0 {
				h.broadcast(exam.ID, OutboundMessage{Type: TypeExamEnded})
				h.closeExam(exam.ID, "exam window ended")
				return
			}
			h.broadcast(exam.ID, OutboundMessage{Type: TypeTimer, SecondsRemaining: remaining})
		}
	}
}

func (h *Hub) broadcast(examID string, msg OutboundMessage) {
	h.mu.RLock()
	group := h.exams[examID]
	targets := make([]*Client, 0, len(group))
	for _, client := range group {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	for _, client := range targets {
		client.send(msg)
	}
}

func (h *Hub) closeExam(examID, reason string) {
	h.mu.Lock()
	group := h.exams[examID]
	targets := make([]*Client, 0, len(group))
	for _, client := range group {
		targets = append(targets, client)
	}
	delete(h.exams, examID)
	if cancel, ok := h.timers[examID]; ok {
		cancel()
		delete(h.timers, examID)
	}
	h.mu.Unlock()

	for _, client := range targets {
		client.closeWith(reason)
	}
}
