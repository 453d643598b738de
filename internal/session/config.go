package session

import "time"

// Config contains session configuration.
type Config struct {
	OrganizationID    string
	BootstrapTimeout  time.Duration
	BootstrapAttempts int
}

// DefaultConfig returns default session configuration.
func DefaultConfig() Config {
	return Config{
		BootstrapTimeout:  10 * time.Second,
		BootstrapAttempts: 3,
	}
}
