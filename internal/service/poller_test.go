package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"vetline/internal/database"
	"vetline/pkg/greenapi"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	mu         sync.Mutex
	pending    []*greenapi.Notification
	deleted    []int64
	receiveErr error
	deleteErr  error
	state      string
	stateErr   error
	receives   int
}

func (f *fakeQueue) ReceiveNotification(_ context.Context) (*greenapi.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receives++
	if f.receiveErr != nil {
		return nil, f.receiveErr
	}
	if len(f.pending) == 0 {
		return nil, nil
	}
	n := f.pending[0]
	f.pending = f.pending[1:]
	return n, nil
}

func (f *fakeQueue) DeleteNotification(_ context.Context, receiptID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, receiptID)
	return nil
}

func (f *fakeQueue) GetStateInstance(_ context.Context) (*greenapi.StateInstanceResponse, error) {
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	state := f.state
	if state == "" {
		state = greenapi.StateAuthorized
	}
	return &greenapi.StateInstanceResponse{StateInstance: state}, nil
}

func (f *fakeQueue) deletedReceipts() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, len(f.deleted))
	copy(out, f.deleted)
	return out
}

func queuedNotification(receiptID int64, idMessage, text string) *greenapi.Notification {
	return &greenapi.Notification{
		ReceiptID: receiptID,
		Body:      *incomingPayload(idMessage, "972501234567@c.us", text),
	}
}

func newTestPoller(t *testing.T, queue *fakeQueue, cfg PollerConfig) (*Poller, *database.Database) {
	t.Helper()
	db := newTestStore(t)
	ingest := NewIngestService(db, nil, logrus.New())
	if cfg.ClinicID == "" {
		cfg.ClinicID = "clinic-1"
	}
	return NewPoller(queue, ingest, cfg, logrus.New()), db
}

func TestDrainOncePersistsAndDeletes(t *testing.T) {
	queue := &fakeQueue{pending: []*greenapi.Notification{
		queuedNotification(101, "n-1", "first"),
		queuedNotification(102, "n-2", "second"),
	}}
	poller, db := newTestPoller(t, queue, PollerConfig{})

	poller.DrainOnce(context.Background())

	messages, err := db.GetMessagesByClinic(context.Background(), "clinic-1")
	require.NoError(t, err)
	assert.Len(t, messages, 2)
	assert.Equal(t, []int64{101, 102}, queue.deletedReceipts())
}

func TestDrainOnceDeletesFailedNotifications(t *testing.T) {
	// A queue item the ingest pipeline rejects must still be acknowledged so
	// it cannot wedge the queue.
	bad := queuedNotification(201, "bad-1", "")
	bad.Body.MessageData = greenapi.MessageData{TypeMessage: "imageMessage"}
	queue := &fakeQueue{pending: []*greenapi.Notification{
		bad,
		queuedNotification(202, "good-1", "still processed"),
	}}
	poller, db := newTestPoller(t, queue, PollerConfig{})

	poller.DrainOnce(context.Background())

	messages, err := db.GetMessagesByClinic(context.Background(), "clinic-1")
	require.NoError(t, err)
	assert.Len(t, messages, 1)
	assert.Equal(t, []int64{201, 202}, queue.deletedReceipts())
}

func TestDrainOnceStopsOnDeleteFailure(t *testing.T) {
	queue := &fakeQueue{
		pending: []*greenapi.Notification{
			queuedNotification(301, "n-1", "first"),
			queuedNotification(302, "n-2", "second"),
		},
		deleteErr: errors.New("network down"),
	}
	poller, _ := newTestPoller(t, queue, PollerConfig{})

	poller.DrainOnce(context.Background())

	// One fetch, one failed delete, then the cycle ends. The second item
	// stays queued for the next cycle.
	assert.Empty(t, queue.deletedReceipts())
	queue.mu.Lock()
	defer queue.mu.Unlock()
	assert.Len(t, queue.pending, 1)
}

func TestDrainOnceBoundedByMaxDrain(t *testing.T) {
	queue := &fakeQueue{}
	for i := 0; i < 10; i++ {
		queue.pending = append(queue.pending, queuedNotification(int64(400+i), fmt.Sprintf("bounded-%d", i), "msg"))
	}
	poller, _ := newTestPoller(t, queue, PollerConfig{MaxDrain: 3})

	poller.DrainOnce(context.Background())

	assert.Len(t, queue.deletedReceipts(), 3)
	queue.mu.Lock()
	defer queue.mu.Unlock()
	assert.Len(t, queue.pending, 7)
}

func TestDrainOnceStopsOnEmptyQueue(t *testing.T) {
	queue := &fakeQueue{pending: []*greenapi.Notification{
		queuedNotification(501, "only-1", "last one"),
	}}
	poller, _ := newTestPoller(t, queue, PollerConfig{MaxDrain: 50})

	poller.DrainOnce(context.Background())

	// One item plus the nil that ends the cycle; nowhere near maxDrain.
	queue.mu.Lock()
	defer queue.mu.Unlock()
	assert.Equal(t, 2, queue.receives)
}

// blockingQueue parks ReceiveNotification until the cycle context is
// cancelled, holding a drain cycle in flight.
type blockingQueue struct {
	fakeQueue
	receiving chan struct{}
	once      sync.Once
}

func (b *blockingQueue) ReceiveNotification(ctx context.Context) (*greenapi.Notification, error) {
	b.once.Do(func() { close(b.receiving) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStopReturnsWhileDrainInFlight(t *testing.T) {
	queue := &blockingQueue{receiving: make(chan struct{})}
	db := newTestStore(t)
	ingest := NewIngestService(db, nil, logrus.New())
	poller := NewPoller(queue, ingest, PollerConfig{ClinicID: "clinic-1", PollIntervalSec: 3600}, logrus.New())

	require.NoError(t, poller.Start(context.Background()))
	<-queue.receiving

	stopped := make(chan struct{})
	go func() {
		poller.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return while a drain cycle was in flight")
	}
	assert.False(t, poller.IsRunning())
}

func TestStartGatesOnProviderState(t *testing.T) {
	queue := &fakeQueue{state: greenapi.StateNotAuthorized}
	poller, _ := newTestPoller(t, queue, PollerConfig{})

	err := poller.Start(context.Background())
	require.NoError(t, err)
	assert.False(t, poller.IsRunning())
}

func TestStartFailsWhenStateCheckFails(t *testing.T) {
	queue := &fakeQueue{stateErr: errors.New("timeout")}
	poller, _ := newTestPoller(t, queue, PollerConfig{})

	err := poller.Start(context.Background())
	assert.Error(t, err)
	assert.False(t, poller.IsRunning())
}

func TestStartAndStop(t *testing.T) {
	queue := &fakeQueue{pending: []*greenapi.Notification{
		queuedNotification(601, "loop-1", "drained by the immediate cycle"),
	}}
	poller, db := newTestPoller(t, queue, PollerConfig{PollIntervalSec: 3600})

	require.NoError(t, poller.Start(context.Background()))
	assert.True(t, poller.IsRunning())

	assert.Error(t, poller.Start(context.Background()))

	require.Eventually(t, func() bool {
		messages, err := db.GetMessagesByClinic(context.Background(), "clinic-1")
		return err == nil && len(messages) == 1
	}, 2*time.Second, 10*time.Millisecond)

	poller.Stop()
	assert.False(t, poller.IsRunning())
	poller.Stop()
}
