package transport

import "time"

// Config tunes a Manager.
type Config struct {
	// DialTimeout bounds the asynchronous connect. Zero means no bound
	// beyond the caller's context.
	DialTimeout time.Duration
	// ResponseTimeout expires callbacks still waiting for an answer. Zero
	// disables expiry.
	ResponseTimeout time.Duration
	// WriteTimeout bounds a single frame write when the stream supports
	// deadlines.
	WriteTimeout time.Duration
	// MaxFrameSize caps one inbound frame, delimiter excluded.
	MaxFrameSize int
}

func DefaultConfig() Config {
	return Config{
		DialTimeout:     10 * time.Second,
		ResponseTimeout: 10 * time.Second,
		WriteTimeout:    5 * time.Second,
		MaxFrameSize:    1024 * 1024, // 1MB
	}
}
