package models

import (
	"strings"
	"time"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// ParseDirection folds the two historical spellings ("incoming"/"outgoing"
// and "inbound"/"outbound") into the canonical enum. Unknown values default
// to inbound, which is the safe side for display.
func ParseDirection(s string) Direction {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "outbound", "outgoing":
		return DirectionOutbound
	default:
		return DirectionInbound
	}
}

// OptimisticIDPrefix marks locally generated ids for not-yet-confirmed
// outbound messages.
const OptimisticIDPrefix = "temp-"

type Message struct {
	ID                string     `json:"id"`
	ClinicID          string     `json:"clinicId"`
	Direction         Direction  `json:"direction"`
	Content           string     `json:"content"`
	SenderPhone       string     `json:"senderPhone,omitempty"`
	LinkedClientID    *int64     `json:"linkedClientId,omitempty"`
	LinkedLeadID      *int64     `json:"linkedLeadId,omitempty"`
	ProviderMessageID string     `json:"providerMessageId,omitempty"`
	SentAt            time.Time  `json:"sentAt"`
	CreatedAt         time.Time  `json:"createdAt,omitempty"`
}

// IsOptimistic reports whether the message is a local placeholder awaiting
// provider confirmation.
func (m *Message) IsOptimistic() bool {
	return strings.HasPrefix(m.ID, OptimisticIDPrefix)
}
