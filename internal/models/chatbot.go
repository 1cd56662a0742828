package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type DataType string

const (
	DataTypeText DataType = "text"
	DataTypeFile DataType = "file"
)

// Chatbot is the admin-managed bot configuration consumed by the relay
// when it builds a session's base instruction.
type Chatbot struct {
	ID              int64    `gorm:"column:id;primaryKey;autoIncrement" json:"id"`
	Name            string   `gorm:"column:name;type:varchar(100);not null" json:"name"`
	Description     string   `gorm:"column:description;type:text" json:"description"`
	GreetingMessage string   `gorm:"column:greeting_message;type:varchar(100)" json:"greeting_message"`
	STTModel        string   `gorm:"column:stt_model;type:varchar(100)" json:"stt_model"`
	TTSModel        string   `gorm:"column:tts_model;type:varchar(100)" json:"tts_model"`
	ResponseModel   string   `gorm:"column:response_model;type:varchar(100)" json:"response_model"`
	RealtimeModel   string   `gorm:"column:realtime_model;type:varchar(100)" json:"realtime_model"`
	DataType        DataType `gorm:"column:data_type;type:text" json:"data_type"`
	TextData        string   `gorm:"column:text_data;type:text" json:"text_data"`

	// External retrieval index (file_search) metadata.
	VectorStoreID   string         `gorm:"column:vector_store_id;type:varchar(100)" json:"vector_store_id"`
	VectorFileIDs   pq.StringArray `gorm:"column:vector_file_ids;type:text[]" json:"vector_file_ids"`
	VectorFileNames datatypes.JSON `gorm:"column:vector_file_names;type:jsonb" json:"vector_file_names"`

	// When fallback is enabled the bot must answer with FallbackText
	// only; otherwise it may fall back to general knowledge.
	FallbackType bool   `gorm:"column:fallback_type" json:"fallback_type"`
	FallbackText string `gorm:"column:fallback_text;type:varchar(255)" json:"fallback_text"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (Chatbot) TableName() string { return "tb_chatbots" }
