// Package identity maps normalized phone keys onto the two identity pools a
// clinic owns: known clients and open leads.
package identity

import (
	"vetline/internal/models"
	"vetline/internal/phone"
)

// Resolution is the outcome of a lookup. Both fields nil means "unknown",
// which is a valid conversation type, not a failure.
type Resolution struct {
	Client *models.Client
	Lead   *models.Lead
}

// Type applies the client > lead > unknown precedence.
func (r Resolution) Type() models.ConversationType {
	switch {
	case r.Client != nil:
		return models.ConversationTypeClient
	case r.Lead != nil:
		return models.ConversationTypeLead
	default:
		return models.ConversationTypeUnknown
	}
}

// DisplayName returns the identity-derived name, or the fallback (usually the
// raw phone) when unresolved.
func (r Resolution) DisplayName(fallback string) string {
	if r.Client != nil {
		if n := r.Client.DisplayName(); n != "" {
			return n
		}
	}
	if r.Lead != nil {
		if n := r.Lead.DisplayName(); n != "" {
			return n
		}
	}
	return fallback
}

// Resolver holds phone lookup maps built once from an identity snapshot.
// Build it per refresh cycle, not per message.
type Resolver struct {
	clientsByPhone map[string]*models.Client
	leadsByPhone   map[string]*models.Lead
	clientsByID    map[int64]*models.Client
	leadsByID      map[int64]*models.Lead
}

// NewResolver indexes the snapshot. Converted leads are skipped: the client
// created from them owns the phone now. Empty normalized phones are never
// indexed, so an empty key can never match.
func NewResolver(clients []models.Client, leads []models.Lead) *Resolver {
	r := &Resolver{
		clientsByPhone: make(map[string]*models.Client, len(clients)*2),
		leadsByPhone:   make(map[string]*models.Lead, len(leads)),
		clientsByID:    make(map[int64]*models.Client, len(clients)),
		leadsByID:      make(map[int64]*models.Lead, len(leads)),
	}

	for i := range clients {
		c := &clients[i]
		r.clientsByID[c.ID] = c
		for _, raw := range []string{c.PrimaryPhone, c.SecondaryPhone} {
			if key := phone.Normalize(raw); key != "" {
				if _, taken := r.clientsByPhone[key]; !taken {
					r.clientsByPhone[key] = c
				}
			}
		}
	}

	for i := range leads {
		l := &leads[i]
		if l.Status == models.LeadStatusConverted {
			continue
		}
		r.leadsByID[l.ID] = l
		if key := phone.Normalize(l.Phone); key != "" {
			if _, taken := r.leadsByPhone[key]; !taken {
				r.leadsByPhone[key] = l
			}
		}
	}

	return r
}

// Resolve matches exactly on the normalized key. The widened last-9-digit
// match lives at the persistence boundary, not here.
func (r *Resolver) Resolve(normalizedPhone string) Resolution {
	if normalizedPhone == "" {
		return Resolution{}
	}
	return Resolution{
		Client: r.clientsByPhone[normalizedPhone],
		Lead:   r.leadsByPhone[normalizedPhone],
	}
}

// ClientByID returns the snapshot client for a linked message, or nil.
func (r *Resolver) ClientByID(id int64) *models.Client {
	return r.clientsByID[id]
}

// LeadByID returns the snapshot lead for a linked message, or nil.
func (r *Resolver) LeadByID(id int64) *models.Lead {
	return r.leadsByID[id]
}
