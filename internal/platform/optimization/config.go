// Package optimization provides concurrency tuning for high load.
// Buffer and pool sizes for the websocket fan-out and persistence paths.
package optimization

import (
	"runtime"
)

// Config holds tuned parameters for high-load scenarios.
type Config struct {
	// Channel buffer sizes
	BroadcastChannelBuffer int
	ClientSendBuffer       int

	// Connection pools
	DBMaxOpenConns int
	DBMaxIdleConns int
	RedisPoolSize  int

	// Rate limiting
	MaxActionsPerSecond int
	MaxSessionsPerNode  int
}

// DefaultConfig returns sensible defaults for production.
func DefaultConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		BroadcastChannelBuffer: 256, // Per hub
		ClientSendBuffer:       64,  // Per WebSocket

		DBMaxOpenConns: numCPU * 4, // 4 connections per CPU
		DBMaxIdleConns: numCPU * 2, // Keep half warm

		RedisPoolSize: numCPU * 2,

		// A committed tapper peaks around 12-15 taps/sec; 30 leaves headroom
		// for state queries without letting scripts flood the hub.
		MaxActionsPerSecond: 30,
		MaxSessionsPerNode:  5000,
	}
}

// StressTestConfig returns aggressive settings for stress testing.
func StressTestConfig() *Config {
	numCPU := runtime.NumCPU()

	return &Config{
		BroadcastChannelBuffer: 512,
		ClientSendBuffer:       128,

		DBMaxOpenConns: numCPU * 8,
		DBMaxIdleConns: numCPU * 4,
		RedisPoolSize:  numCPU * 4,

		MaxActionsPerSecond: 200,
		MaxSessionsPerNode:  20000,
	}
}

// LowResourceConfig returns minimal settings for development.
func LowResourceConfig() *Config {
	return &Config{
		BroadcastChannelBuffer: 16,
		ClientSendBuffer:       8,

		DBMaxOpenConns: 5,
		DBMaxIdleConns: 2,
		RedisPoolSize:  5,

		MaxActionsPerSecond: 30,
		MaxSessionsPerNode:  100,
	}
}
