package constants

// Default ingestion configuration values
const (
	DefaultPollIntervalSec     = 5
	DefaultMaxDrainPerCycle    = 50
	DefaultRecentWindowMinutes = 60
	DefaultSendRefreshDelayMs  = 1500
	DefaultRetryBackoffMs      = 1000
	DefaultMaxBackoffMs        = 60000
	DefaultMaxAttempts         = 5
)

// Default webhook rate limiting values
const (
	DefaultRateLimitWindowMs    = 60000
	DefaultRateLimitMaxRequests = 100
)

// Default timeout values
const (
	DefaultHTTPTimeoutSec         = 30
	DefaultServerPort             = 8082
	DefaultServerReadTimeoutSec   = 15
	DefaultServerWriteTimeoutSec  = 15
	DefaultServerIdleTimeoutSec   = 60
	DefaultGracefulShutdownSec    = 30
	DefaultDatabaseRetryAttempts  = 3
	DefaultPollDrainTimeoutSec    = 30
	ServerErrorChannelSize        = 1
)

// Privacy settings
const (
	DefaultPhoneMaskLength = 4
)

// Israeli phone numbering plan
const (
	CountryCallingCode   = "972"
	TrunkDigit           = "0"
	SubscriberNumberLen  = 9
	CanonicalPhoneLength = 10
	PhoneSuffixMatchLen  = 9
)
