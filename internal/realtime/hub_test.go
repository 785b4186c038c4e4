package realtime

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/exam-adp-api/internal/models"
	"github.com/noah-isme/exam-adp-api/internal/service"
	"github.com/noah-isme/exam-adp-api/pkg/config"
)

type stubIngester struct {
	submitted []service.SubmitAnswerRequest
	err       error
	delay     time.Duration
}

func (s *stubIngester) SubmitAnswer(ctx context.Context, claims *models.JWTClaims, req service.SubmitAnswerRequest) (*models.Answer, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if s.err != nil {
		return nil, s.err
	}
	s.submitted = append(s.submitted, req)
	return &models.Answer{SessionID: req.SessionID, QuestionID: req.QuestionID, SelectedOption: req.SelectedOption}, nil
}

func testHub(ingester *stubIngester) *Hub {
	return NewHub(ingester, nil, config.RealtimeConfig{WriteTimeout: time.Second, PongTimeout: time.Second, PingPeriod: time.Second}, time.Second, nil)
}

func testClient(sessionID string) *Client {
	claims := &models.JWTClaims{Role: models.RoleStudent, StudentID: "stu1"}
	return &Client{
		sessionID: sessionID,
		claims:    claims,
		outbox:    make(chan OutboundMessage, 8),
		closed:    make(chan struct{}),
	}
}

func TestWaitFlushedNoBacklog(t *testing.T) {
	hub := testHub(&stubIngester{})

	// A session the hub has never seen has nothing pending.
	require.NoError(t, hub.WaitFlushed(context.Background(), "unknown"))
}

func TestIngestAdvancesWatermark(t *testing.T) {
	ingester := &stubIngester{}
	hub := testHub(ingester)
	client := testClient("s1")

	err := hub.ingest(context.Background(), client, InboundMessage{Type: TypeAnswer, Seq: 1, QuestionID: "q1", SelectedOption: models.OptionA})
	require.NoError(t, err)
	require.Len(t, ingester.submitted, 1)
	assert.Equal(t, "s1", ingester.submitted[0].SessionID)

	require.NoError(t, hub.WaitFlushed(context.Background(), "s1"))
}

func TestWaitFlushedBlocksUntilDurable(t *testing.T) {
	hub := testHub(&stubIngester{})
	state := &sessionState{}
	hub.sessions["s1"] = state

	state.markReceived(3)
	state.markFlushed(2)

	done := make(chan error, 1)
	go func() {
		done <- hub.WaitFlushed(context.Background(), "s1")
	}()

	select {
	case <-done:
		t.Fatal("barrier released before the backlog was flushed")
	case <-time.After(50 * time.Millisecond):
	}

	state.markFlushed(3)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("barrier never released")
	}
}

func TestWaitFlushedHonorsContext(t *testing.T) {
	hub := testHub(&stubIngester{})
	state := &sessionState{}
	hub.sessions["s1"] = state
	state.markReceived(1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := hub.WaitFlushed(ctx, "s1")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestIngestFailureStillAdvancesWatermark(t *testing.T) {
	hub := testHub(&stubIngester{err: errors.New("storage down")})
	client := testClient("s1")

	err := hub.ingest(context.Background(), client, InboundMessage{Type: TypeAnswer, Seq: 1, QuestionID: "q1", SelectedOption: models.OptionA})
	require.Error(t, err)

	// A rejected write must not wedge finalization.
	require.NoError(t, hub.WaitFlushed(context.Background(), "s1"))
}

func TestWatermarksAreMonotonic(t *testing.T) {
	state := &sessionState{}
	state.markReceived(5)
	state.markReceived(3)
	assert.Equal(t, uint64(5), state.received)

	state.markFlushed(4)
	state.markFlushed(2)
	assert.Equal(t, uint64(4), state.flushed)
}

func TestRegisterEvictsOlderConnection(t *testing.T) {
	hub := testHub(&stubIngester{})
	exam := &models.Exam{ID: "exam1", StartTime: time.Now(), DurationMinutes: 60}

	first := testClient("s1")
	second := testClient("s1")
	hub.Register(first, exam)
	hub.Register(second, exam)

	select {
	case <-first.closed:
	default:
		t.Fatal("older connection for the session was not closed")
	}

	hub.mu.RLock()
	current := hub.clients["s1"]
	hub.mu.RUnlock()
	assert.Same(t, second, current)

	hub.Unregister(second, exam.ID)
	hub.mu.RLock()
	_, stillThere := hub.clients["s1"]
	_, timerRunning := hub.timers[exam.ID]
	hub.mu.RUnlock()
	assert.False(t, stillThere)
	assert.False(t, timerRunning)
}

func TestUnregisterKeepsFlushState(t *testing.T) {
	ingester := &stubIngester{}
	hub := testHub(ingester)
	exam := &models.Exam{ID: "exam1", StartTime: time.Now(), DurationMinutes: 60}

	client := testClient("s1")
	hub.Register(client, exam)
	require.NoError(t, hub.ingest(context.Background(), client, InboundMessage{Type: TypeAnswer, Seq: 1, QuestionID: "q1", SelectedOption: models.OptionA}))
	hub.Unregister(client, exam.ID)

	// Finalize after disconnect still sees a drained session.
	require.NoError(t, hub.WaitFlushed(context.Background(), "s1"))
}
