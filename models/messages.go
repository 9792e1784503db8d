package models

import "time"

const (
	// MaxMessageLength is the hard cap on message content
	MaxMessageLength = 5000
	// EditWindow is how long a sender may edit a message after creation
	EditWindow = 15 * time.Minute
	// DeleteWindow is how long a sender may delete a message after creation
	DeleteWindow = time.Hour
)

type Message struct {
	Model
	ConversationID  uint       `gorm:"not null;index" json:"conversation_id"`
	SenderID        uint       `gorm:"not null;index" json:"sender_id"`
	Sender          User       `gorm:"foreignKey:SenderID" json:"sender"`
	Content         string     `json:"content"`
	FilteredContent string     `json:"filtered_content,omitempty"`
	IsDelivered     bool       `gorm:"default:false" json:"is_delivered"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
	IsRead          bool       `gorm:"default:false" json:"is_read"`
	ReadAt          *time.Time `json:"read_at,omitempty"`
	IsEdited        bool       `gorm:"default:false" json:"is_edited"`
	EditedAt        *time.Time `json:"edited_at,omitempty"`
	IsDeleted       bool       `gorm:"default:false;index" json:"is_deleted"`
	DeletedAt       *time.Time `json:"deleted_at,omitempty"`
	Metadata        string     `gorm:"type:jsonb;default:null" json:"metadata,omitempty"`
}

// CanEdit reports whether the message is still inside its edit window at now.
func (m *Message) CanEdit(now time.Time) bool {
	return now.Sub(m.CreatedAt) < EditWindow
}

// CanDelete reports whether the message is still inside its delete window at now.
func (m *Message) CanDelete(now time.Time) bool {
	return now.Sub(m.CreatedAt) < DeleteWindow
}
