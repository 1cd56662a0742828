package models

import (
	"time"

	"github.com/pgvector/pgvector-go"
)

type Role string

const (
	RoleUser Role = "user"
	RoleAI   Role = "ai"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeVoice MessageType = "voice"
)

type LatencyType string

const (
	LatencySTT      LatencyType = "stt"      // user utterance transcription time
	LatencyTTS      LatencyType = "tts"      // reply generation + synthesis time
	LatencyResponse LatencyType = "response" // text-only reply generation time
)

type EndedReason string

const (
	EndedNormal       EndedReason = "normal"
	EndedTimeout      EndedReason = "timeout"
	EndedError        EndedReason = "error"
	EndedDisconnected EndedReason = "disconnected"
)

// Log is one conversation log record, created once per session.
type Log struct {
	ID        int64  `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	SessionID string `gorm:"column:session_id;type:varchar(100);not null;index" json:"session_id"`
	UserID    string `gorm:"column:user_id;type:varchar(100);index" json:"user_id"`

	STTModel      string `gorm:"column:stt_model;type:varchar(100)" json:"stt_model"`
	TTSModel      string `gorm:"column:tts_model;type:varchar(100)" json:"tts_model"`
	ResponseModel string `gorm:"column:response_model;type:varchar(100)" json:"response_model"`
	RealtimeModel string `gorm:"column:realtime_model;type:varchar(100)" json:"realtime_model"`

	EndedAt     *time.Time  `gorm:"column:ended_at;type:timestamptz" json:"ended_at,omitempty"`
	EndedReason EndedReason `gorm:"column:ended_reason;type:text" json:"ended_reason,omitempty"`
	CreatedAt   time.Time   `gorm:"column:created_at;type:timestamptz" json:"created_at"`

	Messages []Message `gorm:"foreignKey:LogID" json:"messages,omitempty"`
}

func (Log) TableName() string { return "tb_logs" }

// Message is one persisted half-turn (user utterance or assistant
// reply). Append-only.
type Message struct {
	ID    int64 `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	LogID int64 `gorm:"column:log_id;not null;index" json:"log_id"`

	Role        Role        `gorm:"column:role;type:text;not null" json:"role"`
	MessageType MessageType `gorm:"column:message_type;type:text;not null" json:"message_type"`
	Message     string      `gorm:"column:message;type:text;not null" json:"message"`

	Tokens      int          `gorm:"column:tokens" json:"tokens"`
	LatencyMS   *int64       `gorm:"column:latency_ms" json:"latency_ms,omitempty"`
	LatencyType *LatencyType `gorm:"column:latency_type;type:text" json:"latency_type,omitempty"`

	// Embedding is filled best-effort for admin semantic search; a
	// zero vector means embedding was skipped or failed.
	Embedding pgvector.Vector `gorm:"column:embedding;type:vector(1536)" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Message) TableName() string { return "tb_messages" }
