package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TurnAudio is the archive metadata for one recorded legacy-mode turn.
// The PCM itself is uploaded to object storage; this document keeps the
// pointer plus transcription context for later inspection.
type TurnAudio struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"`
	TurnIndex int64              `bson:"turn_index" json:"turn_index"`

	AudioURL   string `bson:"audio_url,omitempty" json:"audio_url,omitempty"`
	SampleRate int    `bson:"sample_rate" json:"sample_rate"`
	SizeBytes  int64  `bson:"size_bytes" json:"size_bytes"`

	Transcript string `bson:"transcript,omitempty" json:"transcript,omitempty"`
	Status     string `bson:"status" json:"status"` // pending|uploaded|failed

	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"` // TTL index
}
