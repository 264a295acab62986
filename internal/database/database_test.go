package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vetline/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "vetline-test.db")
	db, err := New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func TestInsertMessageIfAbsentIdempotent(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	msg := models.Message{
		ClinicID:          "clinic-1",
		Direction:         models.DirectionInbound,
		Content:           "Hi",
		SenderPhone:       "972501234567@c.us",
		ProviderMessageID: "abc123",
		SentAt:            time.Now().UTC(),
	}

	// Redeliver the same notification several times.
	for i := 0; i < 5; i++ {
		copy := msg
		inserted, err := db.InsertMessageIfAbsent(ctx, &copy)
		require.NoError(t, err)
		assert.Equal(t, i == 0, inserted, "attempt %d", i)
	}

	stored, err := db.GetMessagesByClinic(ctx, "clinic-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "abc123", stored[0].ID)
	assert.Equal(t, "Hi", stored[0].Content)
	assert.Equal(t, models.DirectionInbound, stored[0].Direction)
}

func TestDuplicateProviderIDAllowedAcrossClinics(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, clinic := range []string{"clinic-1", "clinic-2"} {
		msg := models.Message{
			ClinicID:          clinic,
			Direction:         models.DirectionInbound,
			Content:           "Hi",
			ProviderMessageID: "same-id",
			SentAt:            time.Now().UTC(),
		}
		inserted, err := db.InsertMessageIfAbsent(ctx, &msg)
		require.NoError(t, err)
		assert.True(t, inserted)
	}
}

func TestMessagesWithoutProviderIDNotDeduplicated(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		msg := models.Message{
			ClinicID:  "clinic-1",
			Direction: models.DirectionOutbound,
			Content:   "legacy row",
			SentAt:    time.Now().UTC(),
		}
		inserted, err := db.InsertMessageIfAbsent(ctx, &msg)
		require.NoError(t, err)
		assert.True(t, inserted)
	}

	stored, err := db.GetMessagesByClinic(ctx, "clinic-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	assert.NotEqual(t, stored[0].ID, stored[1].ID)
}

func TestHasProviderMessage(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	found, err := db.HasProviderMessage(ctx, "clinic-1", "abc123")
	require.NoError(t, err)
	assert.False(t, found)

	msg := models.Message{
		ClinicID:          "clinic-1",
		Direction:         models.DirectionInbound,
		Content:           "Hi",
		ProviderMessageID: "abc123",
		SentAt:            time.Now().UTC(),
	}
	_, err = db.InsertMessageIfAbsent(ctx, &msg)
	require.NoError(t, err)

	found, err = db.HasProviderMessage(ctx, "clinic-1", "abc123")
	require.NoError(t, err)
	assert.True(t, found)

	// Empty provider id never matches anything.
	found, err = db.HasProviderMessage(ctx, "clinic-1", "")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestFindClientIDByPhoneSuffix(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	client := models.Client{
		ClinicID:     "clinic-1",
		FirstName:    "Dana",
		LastName:     "Levi",
		PrimaryPhone: "050-123-4567",
	}
	require.NoError(t, db.SaveClient(ctx, &client))

	// The international form and the local form share the last 9 digits.
	id, err := db.FindClientIDByPhoneSuffix(ctx, "clinic-1", "501234567")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, client.ID, *id)

	// Widened match never crosses tenants.
	id, err = db.FindClientIDByPhoneSuffix(ctx, "clinic-2", "501234567")
	require.NoError(t, err)
	assert.Nil(t, id)

	// Empty suffix is "no key".
	id, err = db.FindClientIDByPhoneSuffix(ctx, "clinic-1", "")
	require.NoError(t, err)
	assert.Nil(t, id)
}

func TestFindClientIDBySecondaryPhone(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	client := models.Client{
		ClinicID:       "clinic-1",
		FirstName:      "Noa",
		PrimaryPhone:   "0521111111",
		SecondaryPhone: "0502222222",
	}
	require.NoError(t, db.SaveClient(ctx, &client))

	id, err := db.FindClientIDByPhoneSuffix(ctx, "clinic-1", "502222222")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, client.ID, *id)
}

func TestFindLeadIDByPhoneSuffixSkipsConverted(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	converted := models.Lead{ClinicID: "clinic-1", FirstName: "Old", Phone: "0503333333", Status: models.LeadStatusConverted}
	open := models.Lead{ClinicID: "clinic-1", FirstName: "New", Phone: "0504444444", Status: models.LeadStatusOpen}
	require.NoError(t, db.SaveLead(ctx, &converted))
	require.NoError(t, db.SaveLead(ctx, &open))

	id, err := db.FindLeadIDByPhoneSuffix(ctx, "clinic-1", "503333333")
	require.NoError(t, err)
	assert.Nil(t, id)

	id, err = db.FindLeadIDByPhoneSuffix(ctx, "clinic-1", "504444444")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, open.ID, *id)
}

func TestGetIdentitySnapshot(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveClient(ctx, &models.Client{ClinicID: "clinic-1", FirstName: "Dana", PrimaryPhone: "0501234567"}))
	require.NoError(t, db.SaveLead(ctx, &models.Lead{ClinicID: "clinic-1", FirstName: "Avi", Phone: "0502222222", Status: models.LeadStatusOpen}))
	require.NoError(t, db.SaveLead(ctx, &models.Lead{ClinicID: "clinic-1", FirstName: "Gone", Phone: "0503333333", Status: models.LeadStatusConverted}))

	clients, err := db.GetActiveClients(ctx, "clinic-1")
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, "Dana", clients[0].FirstName)

	leads, err := db.GetOpenLeads(ctx, "clinic-1")
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "Avi", leads[0].FirstName)
}

func TestMessagesOrderedBySentAt(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	// Insert out of order; the store returns sent-time order.
	for i, offset := range []time.Duration{3 * time.Minute, 1 * time.Minute, 2 * time.Minute} {
		msg := models.Message{
			ClinicID:          "clinic-1",
			Direction:         models.DirectionInbound,
			Content:           "m",
			SenderPhone:       "0501234567",
			ProviderMessageID: []string{"m3", "m1", "m2"}[i],
			SentAt:            base.Add(offset),
		}
		_, err := db.InsertMessageIfAbsent(ctx, &msg)
		require.NoError(t, err)
	}

	stored, err := db.GetMessagesByClinic(ctx, "clinic-1")
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "m1", stored[0].ID)
	assert.Equal(t, "m2", stored[1].ID)
	assert.Equal(t, "m3", stored[2].ID)
}

func TestInvalidDatabasePath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)

	_, err = New("../escape.db")
	assert.Error(t, err)
}
