package controller

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestCalculateNextBackoff tests the exponential backoff calculation with jitter
func TestCalculateNextBackoff(t *testing.T) {
	tests := []struct {
		name         string
		current      time.Duration
		max          time.Duration
		factor       float64
		jitterFactor float64
		expectMin    time.Duration
		expectMax    time.Duration
	}{
		{
			name:         "initial backoff doubles",
			current:      1 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.1,
			expectMin:    1800 * time.Millisecond, // 2s - 10% jitter
			expectMax:    2200 * time.Millisecond, // 2s + 10% jitter
		},
		{
			name:         "respects maximum",
			current:      20 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.1,
			expectMin:    27 * time.Second, // 30s - 10% jitter
			expectMax:    30 * time.Second, // capped at max
		},
		{
			name:         "no jitter produces exact value",
			current:      5 * time.Second,
			max:          30 * time.Second,
			factor:       2.0,
			jitterFactor: 0.0,
			expectMin:    10 * time.Second, // exactly 2x
			expectMax:    10 * time.Second, // exactly 2x
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Run multiple times to account for randomness in jitter
			for i := 0; i < 10; i++ {
				result := CalculateNextBackoff(tt.current, tt.max, tt.factor, tt.jitterFactor)
				assert.GreaterOrEqual(t, result, tt.expectMin, "backoff should be >= minimum")
				assert.LessOrEqual(t, result, tt.expectMax, "backoff should be <= maximum")
			}
		})
	}
}

// TestExtractEventKindFromChannel tests parsing the event kind from Redis channel names
func TestExtractEventKindFromChannel(t *testing.T) {
	tests := []struct {
		name     string
		channel  string
		expected string
	}{
		{
			name:     "proposal event",
			channel:  "governance:proposal.created",
			expected: "proposal.created",
		},
		{
			name:     "vote event",
			channel:  "governance:vote.cast",
			expected: "vote.cast",
		},
		{
			name:     "wrong namespace depth",
			channel:  "governance:proposals:closed",
			expected: "",
		},
		{
			name:     "no separator",
			channel:  "governance",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractEventKindFromChannel(tt.channel))
		})
	}
}

// TestClientSubscriptions tests subscription tracking with wildcard support
func TestClientSubscriptions(t *testing.T) {
	subs := NewClientSubscriptions()

	assert.False(t, subs.IsSubscribed("p-1"))

	subs.Subscribe("p-1")
	assert.True(t, subs.IsSubscribed("p-1"))
	assert.False(t, subs.IsSubscribed("p-2"))

	subs.Unsubscribe("p-1")
	assert.False(t, subs.IsSubscribed("p-1"))

	// Wildcard matches everything
	subs.Subscribe("*")
	assert.True(t, subs.IsSubscribed("p-1"))
	assert.True(t, subs.IsSubscribed("p-2"))

	subs.Unsubscribe("*")
	assert.False(t, subs.IsSubscribed("p-2"))
}
