package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"vetline/internal/constants"
	"vetline/internal/metrics"
	"vetline/pkg/greenapi"

	"github.com/sirupsen/logrus"
)

// NotificationQueue is the subset of the provider API the drainer needs.
type NotificationQueue interface {
	ReceiveNotification(ctx context.Context) (*greenapi.Notification, error)
	DeleteNotification(ctx context.Context, receiptID int64) error
	GetStateInstance(ctx context.Context) (*greenapi.StateInstanceResponse, error)
}

// Poller drains the provider's per-instance notification queue on a fixed
// interval. It is the catch-up path when push delivery is unavailable and the
// primary path for clinics that cannot expose a public webhook endpoint.
type Poller struct {
	queue    NotificationQueue
	ingest   *IngestService
	clinicID string
	interval time.Duration
	maxDrain int
	logger   *logrus.Logger

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
	draining bool
}

type PollerConfig struct {
	ClinicID        string
	PollIntervalSec int
	MaxDrain        int
}

func NewPoller(queue NotificationQueue, ingest *IngestService, cfg PollerConfig, logger *logrus.Logger) *Poller {
	interval := time.Duration(cfg.PollIntervalSec) * time.Second
	if interval <= 0 {
		interval = constants.DefaultPollIntervalSec * time.Second
	}
	maxDrain := cfg.MaxDrain
	if maxDrain <= 0 {
		maxDrain = constants.DefaultMaxDrainPerCycle
	}
	return &Poller{
		queue:    queue,
		ingest:   ingest,
		clinicID: cfg.ClinicID,
		interval: interval,
		maxDrain: maxDrain,
		logger:   logger,
	}
}

// Start begins the background drain loop. When the provider instance is not
// authorized the poller stays stopped; that is a graceful disable, not an
// error.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("poller is already running")
	}

	state, err := p.queue.GetStateInstance(ctx)
	if err != nil {
		return fmt.Errorf("failed to check provider state: %w", err)
	}
	if !state.Authorized() {
		p.logger.WithFields(logrus.Fields{
			LogFieldClinicID: p.clinicID,
			"state":          state.StateInstance,
		}).Warn("Provider instance not authorized, poller disabled")
		return nil
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.running = true

	p.wg.Add(1)
	go p.loop()

	p.logger.WithFields(logrus.Fields{
		LogFieldClinicID: p.clinicID,
		"interval":       p.interval,
	}).Info("Notification poller started")
	return nil
}

// Stop cancels the loop and waits for an in-flight cycle to finish its
// current fetch/delete pair. The mutex is released before waiting: the loop
// goroutine takes it to clear the draining guard, so holding it across the
// wait would deadlock.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	cancel := p.cancel
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
	p.logger.WithField(LogFieldClinicID, p.clinicID).Info("Notification poller stopped")
}

// IsRunning reports whether the drain loop is active.
func (p *Poller) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Poller) loop() {
	defer p.wg.Done()

	// Drain once immediately on activation, then on the interval.
	p.DrainOnce(p.ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.DrainOnce(p.ctx)
		}
	}
}

// DrainOnce runs a single bounded drain cycle. A trigger while a cycle is
// already active is a no-op. Every fetched notification is deleted from the
// provider queue whether or not processing succeeded: a poisoned item must
// not block the queue, and is accepted as lost.
func (p *Poller) DrainOnce(ctx context.Context) {
	p.mu.Lock()
	if p.draining {
		p.mu.Unlock()
		return
	}
	p.draining = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.draining = false
		p.mu.Unlock()
	}()

	cycleCtx, cancel := context.WithTimeout(ctx, constants.DefaultPollDrainTimeoutSec*time.Second)
	defer cancel()

	start := time.Now()
	drained := 0

	for i := 0; i < p.maxDrain; i++ {
		notification, err := p.queue.ReceiveNotification(cycleCtx)
		if err != nil {
			// Transient provider errors are retried implicitly by the next
			// cycle.
			p.logger.WithError(err).WithField(LogFieldClinicID, p.clinicID).Warn("Failed to receive notification")
			break
		}
		if notification == nil {
			break
		}

		if _, err := p.ingest.ProcessNotification(cycleCtx, p.clinicID, &notification.Body); err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				LogFieldClinicID:  p.clinicID,
				LogFieldReceiptID: notification.ReceiptID,
			}).Error("Failed to process drained notification, discarding")
		}

		if err := p.queue.DeleteNotification(cycleCtx, notification.ReceiptID); err != nil {
			p.logger.WithError(err).WithFields(logrus.Fields{
				LogFieldClinicID:  p.clinicID,
				LogFieldReceiptID: notification.ReceiptID,
			}).Warn("Failed to delete notification from provider queue")
			break
		}
		drained++
	}

	metrics.RecordTimer("poll_drain_cycle", time.Since(start), map[string]string{"clinic": p.clinicID}, "Drain cycle duration")
	if drained > 0 {
		metrics.AddToCounter("poll_drained_total", float64(drained), map[string]string{"clinic": p.clinicID}, "Notifications drained from provider queue")
		p.logger.WithFields(logrus.Fields{
			LogFieldClinicID: p.clinicID,
			"count":          drained,
		}).Debug("Drain cycle completed")
	}
}
