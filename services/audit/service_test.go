package audit

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// captureSink collects written events for assertions
type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (c *captureSink) Write(event Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
}

func (c *captureSink) all() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func TestService_RecordAndDrain(t *testing.T) {
	sink := &captureSink{}
	svc := NewService(sink, zap.NewNop(), Config{BufferSize: 16, WorkerCount: 2})
	require.NoError(t, svc.Start())

	tenantID := uuid.New()
	svc.Record(Event{TenantID: &tenantID, Decision: DecisionAdmitted, Reason: "admitted"})
	svc.Record(Event{Decision: DecisionRejected, Reason: "origin_rejected"})
	svc.Record(Event{TenantID: &tenantID, Decision: DecisionRejected, Reason: "replayed_token", Elevated: true})

	require.NoError(t, svc.Stop(time.Second))

	events := sink.all()
	require.Len(t, events, 3)

	reasons := make(map[string]Event)
	for _, e := range events {
		reasons[e.Reason] = e
		assert.False(t, e.Timestamp.IsZero(), "timestamps should be filled in on record")
	}
	assert.Equal(t, DecisionAdmitted, reasons["admitted"].Decision)
	assert.Nil(t, reasons["origin_rejected"].TenantID)
	assert.True(t, reasons["replayed_token"].Elevated)
}

func TestService_DoubleStartFails(t *testing.T) {
	svc := NewService(&captureSink{}, zap.NewNop(), DefaultConfig())
	require.NoError(t, svc.Start())
	assert.Error(t, svc.Start())
	require.NoError(t, svc.Stop(time.Second))
}

func TestService_StopWithoutStartFails(t *testing.T) {
	svc := NewService(&captureSink{}, zap.NewNop(), DefaultConfig())
	assert.Error(t, svc.Stop(time.Second))
}

func TestService_RecordNeverBlocksWhenBufferFull(t *testing.T) {
	// Zero workers, so the buffer fills and stays full
	svc := NewService(&captureSink{}, zap.NewNop(), Config{BufferSize: 2, WorkerCount: 0})
	require.NoError(t, svc.Start())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			svc.Record(Event{Decision: DecisionAdmitted, Reason: "admitted"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Record blocked on a full buffer")
	}
}

func TestService_RecordAfterStopIsDropped(t *testing.T) {
	sink := &captureSink{}
	svc := NewService(sink, zap.NewNop(), Config{BufferSize: 4, WorkerCount: 1})
	require.NoError(t, svc.Start())
	require.NoError(t, svc.Stop(time.Second))

	// A request finishing mid-shutdown may still emit a decision; it must be
	// dropped, not sent on the closed channel
	assert.NotPanics(t, func() {
		svc.Record(Event{Decision: DecisionAdmitted, Reason: "admitted"})
	})
	assert.Empty(t, sink.all())
}

func TestService_RecordBeforeStartIsDropped(t *testing.T) {
	sink := &captureSink{}
	svc := NewService(sink, zap.NewNop(), Config{BufferSize: 4, WorkerCount: 1})

	svc.Record(Event{Decision: DecisionAdmitted, Reason: "admitted"})

	require.NoError(t, svc.Start())
	require.NoError(t, svc.Stop(time.Second))
	assert.Empty(t, sink.all())
}

func TestZapSink_WriteDoesNotPanic(t *testing.T) {
	sink := NewZapSink(zap.NewNop())
	tenantID := uuid.New()

	sink.Write(Event{Decision: DecisionAdmitted, Reason: "admitted", Timestamp: time.Now()})
	sink.Write(Event{TenantID: &tenantID, Decision: DecisionRejected, Reason: "replayed_token", Elevated: true})
}
