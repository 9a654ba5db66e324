package clientdata

import "time"

// TTL constants for cached client data.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// TTLExchangeRate - currency rates move intraday but the engine only
	// needs them at display precision.
	TTLExchangeRate = time.Hour

	// CleanupGrace - how long expired rows are kept as an API-failure
	// fallback before the cleanup job removes them.
	CleanupGrace = 7 * 24 * time.Hour
)
