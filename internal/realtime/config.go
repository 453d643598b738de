package realtime

import "time"

// Config contains connection manager configuration.
type Config struct {
	URL                     string
	HandshakeTimeout        time.Duration
	WriteTimeout            time.Duration
	PingInterval            time.Duration
	PongTimeout             time.Duration
	ReconnectAttempts       int
	ReconnectInitialBackoff time.Duration
	ReconnectMaxBackoff     time.Duration
	ReconnectMultiplier     float64
	ReconnectJitter         float64
	EmitRate                float64 // frames per second, 0 disables the limiter
	EmitBurst               int
}

// DefaultConfig returns default connection configuration.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:        10 * time.Second,
		WriteTimeout:            10 * time.Second,
		PingInterval:            25 * time.Second,
		PongTimeout:             20 * time.Second,
		ReconnectAttempts:       5,
		ReconnectInitialBackoff: 1 * time.Second,
		ReconnectMaxBackoff:     5 * time.Second,
		ReconnectMultiplier:     2.0,
		ReconnectJitter:         0.5,
		EmitRate:                50,
		EmitBurst:               20,
	}
}
