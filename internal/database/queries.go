package database

// Message queries. The unique partial index on (clinic_id,
// provider_message_id) makes the insert idempotent under duplicate delivery.
const (
	insertMessageIfAbsentQuery = `
		INSERT OR IGNORE INTO messages (
			clinic_id, direction, content, sender_phone, sender_phone_digits,
			linked_client_id, linked_lead_id, provider_message_id, sent_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectMessagesByClinicQuery = `
		SELECT id, clinic_id, direction, content, sender_phone,
		       linked_client_id, linked_lead_id, provider_message_id,
		       sent_at, created_at
		FROM messages
		WHERE clinic_id = ?
		ORDER BY sent_at ASC, id ASC
	`

	existsProviderMessageQuery = `
		SELECT COUNT(1) FROM messages
		WHERE clinic_id = ? AND provider_message_id = ?
	`
)

// Identity snapshot queries. The digit columns hold the raw digit-stripped
// phone, so suffix matching here is a widened, best-effort match, not
// authoritative identity.
const (
	selectActiveClientsQuery = `
		SELECT id, clinic_id, first_name, last_name,
		       COALESCE(primary_phone, ''), COALESCE(secondary_phone, '')
		FROM clients
		WHERE clinic_id = ? AND active = 1
		ORDER BY id ASC
	`

	selectOpenLeadsQuery = `
		SELECT id, clinic_id, first_name, last_name,
		       COALESCE(phone, ''), status
		FROM leads
		WHERE clinic_id = ? AND status != 'converted'
		ORDER BY id ASC
	`

	findClientByPhoneSuffixQuery = `
		SELECT id FROM clients
		WHERE clinic_id = ? AND active = 1
		  AND (primary_phone_digits LIKE '%' || ?
		       OR secondary_phone_digits LIKE '%' || ?)
		ORDER BY id ASC
		LIMIT 1
	`

	findLeadByPhoneSuffixQuery = `
		SELECT id FROM leads
		WHERE clinic_id = ? AND status != 'converted'
		  AND phone_digits LIKE '%' || ?
		ORDER BY id ASC
		LIMIT 1
	`

	insertClientQuery = `
		INSERT INTO clients (
			clinic_id, first_name, last_name, primary_phone, secondary_phone,
			primary_phone_digits, secondary_phone_digits, active
		) VALUES (?, ?, ?, ?, ?, ?, ?, 1)
	`

	insertLeadQuery = `
		INSERT INTO leads (
			clinic_id, first_name, last_name, phone, phone_digits, status
		) VALUES (?, ?, ?, ?, ?, ?)
	`
)
