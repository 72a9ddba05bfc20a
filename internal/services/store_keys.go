package services

const (
	KeySession   = "session:%s:%s" // game kind, session id
	KeyRateLimit = "ratelimit:%s:%s"

	SessionSchemaVersion = 1

	DefaultRateLimitStarts  = 30  // starts per minute
	DefaultRateLimitMoves   = 120 // reveals per minute
	DefaultRateLimitCashout = 60  // cashouts per minute
)
