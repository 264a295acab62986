package identity

import (
	"testing"

	"vetline/internal/models"
	"vetline/internal/phone"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveClient(t *testing.T) {
	clients := []models.Client{
		{ID: 1, FirstName: "Dana", LastName: "Levi", PrimaryPhone: "050-123-4567"},
	}
	r := NewResolver(clients, nil)

	res := r.Resolve(phone.Normalize("972501234567"))
	require.NotNil(t, res.Client)
	assert.Equal(t, int64(1), res.Client.ID)
	assert.Equal(t, models.ConversationTypeClient, res.Type())
	assert.Equal(t, "Dana Levi", res.DisplayName("0501234567"))
}

func TestResolveSecondaryPhone(t *testing.T) {
	clients := []models.Client{
		{ID: 2, FirstName: "Noa", LastName: "Cohen", PrimaryPhone: "0521111111", SecondaryPhone: "0502222222"},
	}
	r := NewResolver(clients, nil)

	res := r.Resolve("0502222222")
	require.NotNil(t, res.Client)
	assert.Equal(t, int64(2), res.Client.ID)
}

func TestResolvePrecedenceClientOverLead(t *testing.T) {
	clients := []models.Client{{ID: 1, FirstName: "Dana", PrimaryPhone: "0501234567"}}
	leads := []models.Lead{{ID: 9, FirstName: "Someone", Phone: "0501234567", Status: models.LeadStatusOpen}}
	r := NewResolver(clients, leads)

	res := r.Resolve("0501234567")
	assert.NotNil(t, res.Client)
	assert.NotNil(t, res.Lead)
	assert.Equal(t, models.ConversationTypeClient, res.Type())
}

func TestResolveConvertedLeadExcluded(t *testing.T) {
	leads := []models.Lead{{ID: 3, FirstName: "Avi", Phone: "0503333333", Status: models.LeadStatusConverted}}
	r := NewResolver(nil, leads)

	res := r.Resolve("0503333333")
	assert.Nil(t, res.Lead)
	assert.Equal(t, models.ConversationTypeUnknown, res.Type())
}

func TestResolveUnknown(t *testing.T) {
	r := NewResolver(nil, nil)
	res := r.Resolve("0509999999")
	assert.Equal(t, models.ConversationTypeUnknown, res.Type())
	assert.Equal(t, "0509999999", res.DisplayName("0509999999"))
}

func TestResolveEmptyKeyNeverMatches(t *testing.T) {
	// A client with an unparseable phone must not be reachable via the
	// empty key.
	clients := []models.Client{{ID: 4, FirstName: "Ghost", PrimaryPhone: "n/a"}}
	r := NewResolver(clients, nil)

	res := r.Resolve("")
	assert.Nil(t, res.Client)
	assert.Nil(t, res.Lead)
}

func TestByIDLookups(t *testing.T) {
	clients := []models.Client{{ID: 1, FirstName: "Dana", PrimaryPhone: "0501234567"}}
	leads := []models.Lead{{ID: 2, FirstName: "Avi", Phone: "0502222222", Status: models.LeadStatusNew}}
	r := NewResolver(clients, leads)

	require.NotNil(t, r.ClientByID(1))
	require.NotNil(t, r.LeadByID(2))
	assert.Nil(t, r.ClientByID(42))
	assert.Nil(t, r.LeadByID(42))
}
