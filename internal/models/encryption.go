package models

// Encryption parameters for at-rest message content.
const (
	NonceSize        = 12
	SaltSize         = 16
	KeySize          = 32
	PBKDF2Iterations = 100000
	MinSecretLength  = 32
)
