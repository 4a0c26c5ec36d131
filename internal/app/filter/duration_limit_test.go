package filter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/guildbox/internal/domain/track"
)

func TestDurationLimitFilter_Check(t *testing.T) {
	tests := []struct {
		name         string
		minMinutes   float64
		maxMinutes   float64
		track        track.Track
		shouldReject bool
	}{
		{
			name:       "within limits",
			minMinutes: 2, maxMinutes: 5,
			track: track.Track{Duration: 3 * time.Minute},
		},
		{
			name:       "too short",
			minMinutes: 3,
			track:      track.Track{Duration: 2 * time.Minute}, shouldReject: true,
		},
		{
			name:       "too long",
			minMinutes: 1, maxMinutes: 5,
			track: track.Track{Duration: 6 * time.Minute}, shouldReject: true,
		},
		{
			name:       "exact min",
			minMinutes: 3,
			track:      track.Track{Duration: 3 * time.Minute},
		},
		{
			name:       "exact max",
			minMinutes: 1, maxMinutes: 5,
			track: track.Track{Duration: 5 * time.Minute},
		},
		{
			name:       "streams are exempt",
			maxMinutes: 10,
			track:      track.Track{IsStream: true},
		},
		{
			name:  "no limits",
			track: track.Track{Duration: 3 * time.Hour},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewDurationLimitFilter()
			f.config = &DurationLimitConfig{MinMinutes: tt.minMinutes, MaxMinutes: tt.maxMinutes}

			result := f.Check(context.Background(), Request{Track: tt.track})

			if tt.shouldReject {
				assert.False(t, result.Accepted)
				assert.Equal(t, "duration_limit_exceeded", result.Code)
			} else {
				assert.True(t, result.Accepted)
			}
		})
	}
}

func TestDurationLimitFilter_Unconfigured(t *testing.T) {
	result := NewDurationLimitFilter().Check(context.Background(), Request{Track: track.Track{Duration: time.Hour}})
	assert.True(t, result.Accepted)
}

func TestDurationLimitFilter_ValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]any
		wantErr  bool
	}{
		{"valid floats", map[string]any{"min_minutes": 0.5, "max_minutes": 10.0}, false},
		{"valid integers", map[string]any{"min_minutes": 1, "max_minutes": 8}, false},
		{"string numbers", map[string]any{"max_minutes": "12"}, false},
		{"min greater than max", map[string]any{"min_minutes": 10.0, "max_minutes": 5.0}, true},
		{"negative min", map[string]any{"min_minutes": -1.0}, true},
		{"negative max", map[string]any{"max_minutes": -1.0}, true},
		{"zero max means no limit", map[string]any{"max_minutes": 0}, false},
		{"empty settings", map[string]any{}, false},
		{"nil settings", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewDurationLimitFilter().ValidateConfig(tt.settings)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDurationLimitFilter_AppliesTo(t *testing.T) {
	f := NewDurationLimitFilter()
	assert.True(t, f.AppliesTo(track.Requester{ID: "u1"}))
	assert.False(t, f.AppliesTo(track.Requester{ID: "dj", Privileged: true}))
}
