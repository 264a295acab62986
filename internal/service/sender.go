package service

import (
	"context"
	"strings"
	"time"

	"vetline/internal/errors"
	"vetline/internal/metrics"
	"vetline/internal/models"
	"vetline/internal/phone"
	"vetline/internal/privacy"
	"vetline/pkg/greenapi"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TextSender is the outbound half of the provider client.
type TextSender interface {
	SendText(ctx context.Context, chatID, text string) (*greenapi.SendMessageResponse, error)
	GetStateInstance(ctx context.Context) (*greenapi.StateInstanceResponse, error)
}

// OptimisticSink receives placeholder lifecycle events. Every Append is
// eventually matched by exactly one Supersede or Remove for the same temp id.
type OptimisticSink interface {
	Append(clinicID string, msg models.Message)
	Supersede(clinicID, tempID string, msg models.Message)
	Remove(clinicID, tempID string)
}

// SendLink carries the identity the caller is messaging, when known.
type SendLink struct {
	ClientID *int64
	LeadID   *int64
}

// SendResult reports the outcome of a send attempt. On failure OriginalText
// is returned so the caller can restore the composer input.
type SendResult struct {
	Success      bool   `json:"success"`
	MessageID    string `json:"messageId,omitempty"`
	TempID       string `json:"tempId"`
	Error        string `json:"error,omitempty"`
	OriginalText string `json:"originalText,omitempty"`
}

// SendCoordinator runs the optimistic send flow: append a placeholder,
// deliver through the provider, then either supersede the placeholder with
// the persisted row or roll it back.
type SendCoordinator struct {
	sender       TextSender
	store        MessageStore
	sink         OptimisticSink
	logger       *logrus.Logger
	refreshDelay time.Duration
	onRefresh    func(clinicID string)
}

func NewSendCoordinator(sender TextSender, store MessageStore, sink OptimisticSink, refreshDelay time.Duration, logger *logrus.Logger) *SendCoordinator {
	return &SendCoordinator{
		sender:       sender,
		store:        store,
		sink:         sink,
		logger:       logger,
		refreshDelay: refreshDelay,
	}
}

// SetRefreshCallback registers the function scheduled after each successful
// send. The delay gives the provider time to index the message before any
// provider-direct rebuild runs.
func (c *SendCoordinator) SetRefreshCallback(fn func(clinicID string)) {
	c.onRefresh = fn
}

// Send delivers text to a contact's phone. The placeholder is visible to
// subscribers before the provider call starts and is resolved exactly once.
func (c *SendCoordinator) Send(ctx context.Context, clinicID, rawPhone, text string, link SendLink) SendResult {
	start := time.Now()
	defer func() {
		metrics.RecordTimer("send_duration", time.Since(start), map[string]string{"clinic": clinicID}, "Outbound send duration")
	}()

	normalized := phone.Normalize(rawPhone)
	if normalized == "" {
		return SendResult{Success: false, Error: "invalid phone number", OriginalText: text}
	}
	if strings.TrimSpace(text) == "" {
		return SendResult{Success: false, Error: "empty message", OriginalText: text}
	}

	tempID := models.OptimisticIDPrefix + uuid.New().String()
	now := time.Now()
	placeholder := models.Message{
		ID:             tempID,
		ClinicID:       clinicID,
		Direction:      models.DirectionOutbound,
		Content:        text,
		LinkedClientID: link.ClientID,
		LinkedLeadID:   link.LeadID,
		SentAt:         now,
		CreatedAt:      now,
	}
	c.sink.Append(clinicID, placeholder)

	resp, err := c.sender.SendText(ctx, phone.ChatAddress(normalized), text)
	if err != nil {
		c.sink.Remove(clinicID, tempID)
		metrics.IncrementCounter("send_failed_total", map[string]string{"clinic": clinicID}, "Failed outbound sends")
		c.logger.WithFields(logrus.Fields{
			LogFieldClinicID: clinicID,
			LogFieldPhone:    privacy.MaskPhoneNumber(normalized),
		}).WithError(err).Error("Failed to send message")
		return SendResult{
			Success:      false,
			TempID:       tempID,
			Error:        errors.GetUserMessage(err),
			OriginalText: text,
		}
	}

	persisted := placeholder
	persisted.ID = ""
	persisted.ProviderMessageID = resp.IDMessage

	if _, err := c.store.InsertMessageIfAbsent(ctx, &persisted); err != nil {
		// Delivery already happened; surface success but log the store gap.
		c.logger.WithFields(logrus.Fields{
			LogFieldClinicID:  clinicID,
			LogFieldMessageID: resp.IDMessage,
		}).WithError(err).Error("Sent message could not be persisted")
	}
	if persisted.ID == "" {
		persisted.ID = resp.IDMessage
	}

	c.sink.Supersede(clinicID, tempID, persisted)
	metrics.IncrementCounter("send_success_total", map[string]string{"clinic": clinicID}, "Successful outbound sends")

	if c.onRefresh != nil && c.refreshDelay > 0 {
		time.AfterFunc(c.refreshDelay, func() {
			c.onRefresh(clinicID)
		})
	}

	return SendResult{Success: true, MessageID: resp.IDMessage, TempID: tempID}
}

// CheckReady verifies the provider channel is authorized before accepting
// sends for it.
func (c *SendCoordinator) CheckReady(ctx context.Context) error {
	state, err := c.sender.GetStateInstance(ctx)
	if err != nil {
		return errors.WrapRetryable(err, errors.ErrCodeProviderAPI, "failed to query channel state")
	}
	if !state.Authorized() {
		return errors.New(errors.ErrCodeProviderNotReady, "channel is not authorized")
	}
	return nil
}
