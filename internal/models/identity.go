package models

import "strings"

// Lead statuses as stored by the record-management layer. Converted leads are
// superseded by the Client created from them and never resolve.
const (
	LeadStatusNew       = "new"
	LeadStatusOpen      = "open"
	LeadStatusConverted = "converted"
)

type Client struct {
	ID             int64  `json:"id"`
	ClinicID       string `json:"clinicId"`
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	PrimaryPhone   string `json:"primaryPhone"`
	SecondaryPhone string `json:"secondaryPhone,omitempty"`
}

func (c *Client) DisplayName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type Lead struct {
	ID        int64  `json:"id"`
	ClinicID  string `json:"clinicId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	Status    string `json:"status"`
}

func (l *Lead) DisplayName() string {
	return strings.TrimSpace(l.FirstName + " " + l.LastName)
}
