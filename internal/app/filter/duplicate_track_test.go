package filter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/osa030/guildbox/internal/domain/track"
)

func entry(t track.Track, requesterID string) track.QueueEntry {
	return track.NewEntry(t, track.Requester{ID: requesterID, Name: requesterID})
}

func TestDuplicateTrackFilter_ExactKeyMatch(t *testing.T) {
	queued := track.Track{Encoded: "enc-123", Title: "Bohemian Rhapsody", Author: "Queen Official"}
	req := Request{
		Track: track.Track{Encoded: "enc-123", Title: "something else entirely"},
		Queue: []track.QueueEntry{entry(queued, "u1")},
	}

	result := NewDuplicateTrackFilter().Check(context.Background(), req)

	assert.False(t, result.Accepted)
	assert.Equal(t, "duplicate_track", result.Code)
}

func TestDuplicateTrackFilter_MatchesCurrent(t *testing.T) {
	cur := entry(track.Track{Encoded: "enc-1", Title: "Yesterday", Author: "The Beatles"}, "u1")
	req := Request{
		Track:   track.Track{Encoded: "enc-2", Title: "Yesterday (Remastered 2009)", Author: "The Beatles"},
		Current: &cur,
	}

	result := NewDuplicateTrackFilter().Check(context.Background(), req)
	assert.False(t, result.Accepted)
}

func TestDuplicateTrackFilter_TitleVariants(t *testing.T) {
	tests := []struct {
		name         string
		queued       track.Track
		requested    track.Track
		shouldReject bool
	}{
		{
			name:         "remaster of the same song",
			queued:       track.Track{Encoded: "a", Title: "Bohemian Rhapsody", Author: "Queen"},
			requested:    track.Track{Encoded: "b", Title: "Bohemian Rhapsody - 2011 Remaster", Author: "Queen"},
			shouldReject: true,
		},
		{
			name:         "official video upload",
			queued:       track.Track{Encoded: "a", Title: "Never Gonna Give You Up", Author: "Rick Astley - Topic"},
			requested:    track.Track{Encoded: "b", Title: "Never Gonna Give You Up (Official Music Video)", Author: "Rick Astley"},
			shouldReject: true,
		},
		{
			name:         "cover by another author",
			queued:       track.Track{Encoded: "a", Title: "Yesterday", Author: "The Beatles"},
			requested:    track.Track{Encoded: "b", Title: "Yesterday", Author: "Paul McCartney"},
			shouldReject: false,
		},
		{
			name:         "different songs with similar titles",
			queued:       track.Track{Encoded: "a", Title: "Love", Author: "John Lennon"},
			requested:    track.Track{Encoded: "b", Title: "Love Song", Author: "John Lennon"},
			shouldReject: false,
		},
		{
			name:         "radio edit",
			queued:       track.Track{Encoded: "a", Title: "Stairway to Heaven", Author: "Led Zeppelin"},
			requested:    track.Track{Encoded: "b", Title: "Stairway to Heaven (Radio Edit)", Author: "Led Zeppelin"},
			shouldReject: true,
		},
		{
			name:         "live version",
			queued:       track.Track{Encoded: "a", Title: "Hotel California", Author: "Eagles"},
			requested:    track.Track{Encoded: "b", Title: "Hotel California - Live at the Forum", Author: "Eagles"},
			shouldReject: true,
		},
		{
			name:         "remix is a different track",
			queued:       track.Track{Encoded: "a", Title: "Le Freak", Author: "CHIC"},
			requested:    track.Track{Encoded: "b", Title: "Le Freak (Oliver Heldens Remix)", Author: "CHIC"},
			shouldReject: false,
		},
		{
			name:         "unknown authors never match on title",
			queued:       track.Track{Encoded: "a", Title: "Intro"},
			requested:    track.Track{Encoded: "b", Title: "Intro"},
			shouldReject: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := Request{Track: tt.requested, Queue: []track.QueueEntry{entry(tt.queued, "u1")}}
			result := NewDuplicateTrackFilter().Check(context.Background(), req)

			if tt.shouldReject {
				assert.False(t, result.Accepted)
				assert.Equal(t, "duplicate_track", result.Code)
			} else {
				assert.True(t, result.Accepted)
			}
		})
	}
}

func TestDuplicateTrackFilter_EmptySession(t *testing.T) {
	req := Request{Track: track.Track{Encoded: "a", Title: "Any Song", Author: "Any Artist"}}
	assert.True(t, NewDuplicateTrackFilter().Check(context.Background(), req).Accepted)
}

func TestNormalizeTitle(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Bohemian Rhapsody", "bohemian rhapsody"},
		{"Bohemian Rhapsody - 2011 Remaster", "bohemian rhapsody"},
		{"Yesterday (Remastered 2023)", "yesterday"},
		{"Hotel California [Remastered]", "hotel california"},
		{"Stairway to Heaven (Radio Edit)", "stairway to heaven"},
		{"Imagine - Live", "imagine"},
		{"Let It Be (Single Version)", "let it be"},
		{"Hey Jude - Remastered Version", "hey jude"},
		{"Take On Me (Official Video) [4K]", "take on me"},
		{"Alive", "alive"},
		{"Come Together (2019 Mix)", "come together (2019 mix)"},
		{"   Extra   Spaces   ", "extra spaces"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeTitle(tt.input))
		})
	}
}

func TestSameAuthor(t *testing.T) {
	tests := []struct {
		name     string
		a, b     string
		expected bool
	}{
		{"same", "Queen", "Queen", true},
		{"case insensitive", "Queen", "queen", true},
		{"topic channel", "Queen - Topic", "Queen", true},
		{"vevo channel", "QueenVEVO", "Queen", true},
		{"different", "The Beatles", "Paul McCartney", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sameAuthor(track.Track{Author: tt.a}, track.Track{Author: tt.b}))
		})
	}
}
