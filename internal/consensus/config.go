package consensus

import "time"

// Default config values, matching the original reactor's constants.
const (
	DefaultCapacity          = 256
	DefaultConsensusInterval = 10000 * time.Millisecond
	DefaultHeartbeat         = 500 * time.Millisecond
	DefaultTimeout           = 5000 * time.Millisecond
)

// DefaultGenesis is the default genesis instant: the Unix epoch.
var DefaultGenesis = time.Unix(0, 0).UTC()

// Config holds the reactor's wall-clock and queueing parameters.
type Config struct {
	// Capacity bounds the inbound/outbound queue depth a Moderator
	// implementation should provide.
	Capacity int
	// ConsensusInterval is the wall-clock duration of one round.
	ConsensusInterval time.Duration
	// Genesis is the instant round 0 of height 0 begins.
	Genesis time.Time
	// Heartbeat is how often the reactor drains its inbound queue.
	Heartbeat time.Duration
	// Timeout bounds individual Moderator Outbound/Rebound calls.
	Timeout time.Duration
}

// DefaultConfig returns the reactor's default configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:          DefaultCapacity,
		ConsensusInterval: DefaultConsensusInterval,
		Genesis:           DefaultGenesis,
		Heartbeat:         DefaultHeartbeat,
		Timeout:           DefaultTimeout,
	}
}
