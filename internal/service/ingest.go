package service

import (
	"context"
	"fmt"
	"time"

	"vetline/internal/metrics"
	"vetline/internal/models"
	"vetline/internal/phone"
	"vetline/internal/privacy"
	"vetline/pkg/greenapi"

	"github.com/sirupsen/logrus"
)

// MessageStore is the persistence contract the ingestion pipeline consumes:
// insert-if-absent keyed by provider message id, plus the widened identity
// lookups that run at the query boundary.
type MessageStore interface {
	InsertMessageIfAbsent(ctx context.Context, msg *models.Message) (bool, error)
	HasProviderMessage(ctx context.Context, clinicID, providerMessageID string) (bool, error)
	FindClientIDByPhoneSuffix(ctx context.Context, clinicID, suffix string) (*int64, error)
	FindLeadIDByPhoneSuffix(ctx context.Context, clinicID, suffix string) (*int64, error)
}

// Publisher pushes newly persisted rows to realtime subscribers.
type Publisher interface {
	Publish(clinicID string, msg models.Message)
}

// IngestOutcome says what happened to one notification.
type IngestOutcome string

const (
	IngestPersisted IngestOutcome = "persisted"
	IngestDuplicate IngestOutcome = "duplicate"
	IngestIgnored   IngestOutcome = "ignored"
)

// IngestService is the single pipeline both producers (webhook push, poll
// drain) feed. Keeping one code path is what makes the two sources safe to
// overlap.
type IngestService struct {
	store     MessageStore
	publisher Publisher
	logger    *logrus.Logger
}

func NewIngestService(store MessageStore, publisher Publisher, logger *logrus.Logger) *IngestService {
	return &IngestService{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// ProcessNotification runs one provider payload through
// classify → extract → dedup → resolve → persist → publish.
// Payloads that are not incoming text messages are acknowledged and
// discarded; that is an outcome, not an error.
func (s *IngestService) ProcessNotification(ctx context.Context, clinicID string, payload *greenapi.WebhookPayload) (IngestOutcome, error) {
	if payload.TypeWebhook != greenapi.WebhookIncomingMessage {
		s.logger.WithFields(logrus.Fields{
			LogFieldClinicID: clinicID,
			"type_webhook":   payload.TypeWebhook,
		}).Debug("Ignoring non-message webhook event")
		return IngestIgnored, nil
	}

	text, ok := payload.MessageData.Text()
	senderPhone := payload.SenderData.ChatID
	if !ok || senderPhone == "" {
		s.logger.WithFields(logrus.Fields{
			LogFieldClinicID: clinicID,
			"type_message":   payload.MessageData.TypeMessage,
		}).Debug("Ignoring notification without text or sender")
		return IngestIgnored, nil
	}

	if exists, err := s.store.HasProviderMessage(ctx, clinicID, payload.IDMessage); err != nil {
		return IngestIgnored, fmt.Errorf("failed dedup check: %w", err)
	} else if exists {
		metrics.IncrementCounter("ingest_duplicate_total", map[string]string{"clinic": clinicID}, "Duplicate provider deliveries")
		return IngestDuplicate, nil
	}

	msg := models.Message{
		ClinicID:          clinicID,
		Direction:         models.DirectionInbound,
		Content:           text,
		SenderPhone:       senderPhone,
		ProviderMessageID: payload.IDMessage,
		SentAt:            notificationTime(payload.Timestamp),
	}

	// Widened last-9-digit match at the persistence boundary. Best effort:
	// an unresolved sender is stored unlinked and surfaces as an "unknown"
	// conversation.
	suffix := phone.Last9(senderPhone)
	if clientID, err := s.store.FindClientIDByPhoneSuffix(ctx, clinicID, suffix); err != nil {
		s.logger.WithError(err).Warn("Client lookup failed, storing message unlinked")
	} else if clientID != nil {
		msg.LinkedClientID = clientID
	}
	if msg.LinkedClientID == nil {
		if leadID, err := s.store.FindLeadIDByPhoneSuffix(ctx, clinicID, suffix); err != nil {
			s.logger.WithError(err).Warn("Lead lookup failed, storing message unlinked")
		} else if leadID != nil {
			msg.LinkedLeadID = leadID
		}
	}

	inserted, err := s.store.InsertMessageIfAbsent(ctx, &msg)
	if err != nil {
		return IngestIgnored, fmt.Errorf("failed to persist message: %w", err)
	}
	if !inserted {
		// Lost the race with the other ingestion path. Same outcome as the
		// pre-check catching it.
		metrics.IncrementCounter("ingest_duplicate_total", map[string]string{"clinic": clinicID}, "Duplicate provider deliveries")
		return IngestDuplicate, nil
	}

	metrics.IncrementCounter("ingest_persisted_total", map[string]string{"clinic": clinicID}, "Messages persisted from provider")

	fields := logrus.Fields{
		LogFieldClinicID:  clinicID,
		LogFieldMessageID: msg.ProviderMessageID,
		LogFieldPhone:     privacy.MaskChatAddress(senderPhone),
	}
	if IsVerboseLogging(ctx) {
		fields[LogFieldPhone] = senderPhone
	}
	s.logger.WithFields(fields).Info("Inbound message persisted")

	if s.publisher != nil {
		s.publisher.Publish(clinicID, msg)
	}

	return IngestPersisted, nil
}

// notificationTime converts the provider's unix-seconds timestamp; a missing
// timestamp falls back to arrival time so ordering stays defined.
func notificationTime(unixSec int64) time.Time {
	if unixSec <= 0 {
		return time.Now().UTC()
	}
	return time.Unix(unixSec, 0).UTC()
}
