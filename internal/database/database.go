// Package database is the persistence boundary: idempotent message inserts
// keyed by provider message id, clinic-scoped message reads, and read-only
// access to the identity snapshot owned by the record-management layer.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"vetline/internal/migrations"
	"vetline/internal/models"
	"vetline/internal/phone"
	"vetline/internal/security"

	_ "github.com/mattn/go-sqlite3"
)

type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if len(dbPath) == 0 || dbPath[0] == '\x00' {
		return nil, fmt.Errorf("invalid database path")
	}

	if err := security.ValidateFilePath(dbPath); err != nil {
		return nil, fmt.Errorf("invalid database path: %w", err)
	}

	file, err := os.OpenFile(dbPath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create database file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to close database file: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(migrations.GetInitialSchema()); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: enc}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// InsertMessageIfAbsent persists a message unless a row with the same
// (clinic, provider message id) already exists. Returns false on duplicate
// delivery, which is not an error.
func (d *Database) InsertMessageIfAbsent(ctx context.Context, msg *models.Message) (bool, error) {
	content, err := d.encryptor.EncryptIfEnabled(msg.Content)
	if err != nil {
		return false, fmt.Errorf("failed to encrypt content: %w", err)
	}

	result, err := d.db.ExecContext(ctx, insertMessageIfAbsentQuery,
		msg.ClinicID,
		string(msg.Direction),
		content,
		nullable(msg.SenderPhone),
		nullable(phone.DigitsOnly(msg.SenderPhone)),
		msg.LinkedClientID,
		msg.LinkedLeadID,
		nullable(msg.ProviderMessageID),
		msg.SentAt.UTC(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert message: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if id, err := result.LastInsertId(); err == nil {
		msg.ID = rowMessageID(id, msg.ProviderMessageID)
	}
	return true, nil
}

// HasProviderMessage reports whether a message with this provider id is
// already stored for the clinic.
func (d *Database) HasProviderMessage(ctx context.Context, clinicID, providerMessageID string) (bool, error) {
	if providerMessageID == "" {
		return false, nil
	}

	var count int
	err := d.db.QueryRowContext(ctx, existsProviderMessageQuery, clinicID, providerMessageID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check provider message id: %w", err)
	}
	return count > 0, nil
}

// GetMessagesByClinic returns all of a clinic's messages ascending by sent
// time.
func (d *Database) GetMessagesByClinic(ctx context.Context, clinicID string) ([]models.Message, error) {
	rows, err := d.db.QueryContext(ctx, selectMessagesByClinicQuery, clinicID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var (
			rowID       int64
			msg         models.Message
			direction   string
			content     string
			senderPhone sql.NullString
			providerID  sql.NullString
			sentAt      time.Time
			createdAt   time.Time
		)
		if err := rows.Scan(
			&rowID,
			&msg.ClinicID,
			&direction,
			&content,
			&senderPhone,
			&msg.LinkedClientID,
			&msg.LinkedLeadID,
			&providerID,
			&sentAt,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}

		msg.Direction = models.ParseDirection(direction)
		msg.SenderPhone = senderPhone.String
		msg.ProviderMessageID = providerID.String
		msg.SentAt = sentAt
		msg.CreatedAt = createdAt
		msg.ID = rowMessageID(rowID, providerID.String)

		msg.Content, err = d.encryptor.DecryptIfEnabled(content)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt content: %w", err)
		}

		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	return messages, nil
}

// FindClientIDByPhoneSuffix performs the widened last-9-digit match against
// both phone columns. Nil means no match, which is not an error.
func (d *Database) FindClientIDByPhoneSuffix(ctx context.Context, clinicID, suffix string) (*int64, error) {
	if suffix == "" {
		return nil, nil
	}

	var id int64
	err := d.db.QueryRowContext(ctx, findClientByPhoneSuffixQuery, clinicID, suffix, suffix).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find client by phone suffix: %w", err)
	}
	return &id, nil
}

// FindLeadIDByPhoneSuffix is the lead-pool counterpart of
// FindClientIDByPhoneSuffix. Converted leads never match.
func (d *Database) FindLeadIDByPhoneSuffix(ctx context.Context, clinicID, suffix string) (*int64, error) {
	if suffix == "" {
		return nil, nil
	}

	var id int64
	err := d.db.QueryRowContext(ctx, findLeadByPhoneSuffixQuery, clinicID, suffix).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find lead by phone suffix: %w", err)
	}
	return &id, nil
}

// GetActiveClients returns the clinic's client pool for identity resolution.
func (d *Database) GetActiveClients(ctx context.Context, clinicID string) ([]models.Client, error) {
	rows, err := d.db.QueryContext(ctx, selectActiveClientsQuery, clinicID)
	if err != nil {
		return nil, fmt.Errorf("failed to query clients: %w", err)
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		var c models.Client
		if err := rows.Scan(&c.ID, &c.ClinicID, &c.FirstName, &c.LastName, &c.PrimaryPhone, &c.SecondaryPhone); err != nil {
			return nil, fmt.Errorf("failed to scan client: %w", err)
		}
		clients = append(clients, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}
	return clients, nil
}

// GetOpenLeads returns the clinic's non-converted leads.
func (d *Database) GetOpenLeads(ctx context.Context, clinicID string) ([]models.Lead, error) {
	rows, err := d.db.QueryContext(ctx, selectOpenLeadsQuery, clinicID)
	if err != nil {
		return nil, fmt.Errorf("failed to query leads: %w", err)
	}
	defer rows.Close()

	var leads []models.Lead
	for rows.Next() {
		var l models.Lead
		if err := rows.Scan(&l.ID, &l.ClinicID, &l.FirstName, &l.LastName, &l.Phone, &l.Status); err != nil {
			return nil, fmt.Errorf("failed to scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leads: %w", err)
	}
	return leads, nil
}

// SaveClient inserts a client row. The record-management layer owns client
// data; this exists for that boundary and for tests.
func (d *Database) SaveClient(ctx context.Context, c *models.Client) error {
	result, err := d.db.ExecContext(ctx, insertClientQuery,
		c.ClinicID, c.FirstName, c.LastName,
		nullable(c.PrimaryPhone), nullable(c.SecondaryPhone),
		nullable(phone.DigitsOnly(c.PrimaryPhone)), nullable(phone.DigitsOnly(c.SecondaryPhone)),
	)
	if err != nil {
		return fmt.Errorf("failed to save client: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		c.ID = id
	}
	return nil
}

// SaveLead inserts a lead row. Same boundary note as SaveClient.
func (d *Database) SaveLead(ctx context.Context, l *models.Lead) error {
	status := l.Status
	if status == "" {
		status = models.LeadStatusNew
	}
	result, err := d.db.ExecContext(ctx, insertLeadQuery,
		l.ClinicID, l.FirstName, l.LastName,
		nullable(l.Phone), nullable(phone.DigitsOnly(l.Phone)), status,
	)
	if err != nil {
		return fmt.Errorf("failed to save lead: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		l.ID = id
	}
	return nil
}

// rowMessageID prefers the provider id as the stable message identifier and
// falls back to the storage row id for legacy rows without one.
func rowMessageID(rowID int64, providerMessageID string) string {
	if providerMessageID != "" {
		return providerMessageID
	}
	return fmt.Sprintf("local-%d", rowID)
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
