package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vetline/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptionDisabledPassthrough(t *testing.T) {
	enc, err := NewEncryptor()
	require.NoError(t, err)

	out, err := enc.EncryptIfEnabled("plain text")
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)

	back, err := enc.DecryptIfEnabled(out)
	require.NoError(t, err)
	assert.Equal(t, "plain text", back)
}

func TestEncryptionRoundTrip(t *testing.T) {
	t.Setenv("VETLINE_ENABLE_ENCRYPTION", "true")
	t.Setenv("VETLINE_ENCRYPTION_SECRET", "0123456789abcdef0123456789abcdef")

	enc, err := NewEncryptor()
	require.NoError(t, err)

	ciphertext, err := enc.EncryptIfEnabled("Hi, this is confidential")
	require.NoError(t, err)
	assert.NotEqual(t, "Hi, this is confidential", ciphertext)

	plaintext, err := enc.DecryptIfEnabled(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "Hi, this is confidential", plaintext)
}

func TestEncryptionRequiresSecret(t *testing.T) {
	t.Setenv("VETLINE_ENABLE_ENCRYPTION", "true")
	t.Setenv("VETLINE_ENCRYPTION_SECRET", "")

	_, err := NewEncryptor()
	assert.Error(t, err)
}

func TestEncryptionRejectsShortSecret(t *testing.T) {
	t.Setenv("VETLINE_ENABLE_ENCRYPTION", "true")
	t.Setenv("VETLINE_ENCRYPTION_SECRET", "too-short")

	_, err := NewEncryptor()
	assert.Error(t, err)
}

func TestEncryptedStoreRoundTrip(t *testing.T) {
	t.Setenv("VETLINE_ENABLE_ENCRYPTION", "true")
	t.Setenv("VETLINE_ENCRYPTION_SECRET", "0123456789abcdef0123456789abcdef")

	dbPath := filepath.Join(t.TempDir(), "encrypted.db")
	db, err := New(dbPath)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	msg := models.Message{
		ClinicID:          "clinic-1",
		Direction:         models.DirectionInbound,
		Content:           "secret message",
		SenderPhone:       "0501234567",
		ProviderMessageID: "enc-1",
		SentAt:            time.Now().UTC(),
	}
	_, err = db.InsertMessageIfAbsent(ctx, &msg)
	require.NoError(t, err)

	stored, err := db.GetMessagesByClinic(ctx, "clinic-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "secret message", stored[0].Content)
}
