package models

import "time"

const (
	ConversationStatusActive   = "active"
	ConversationStatusArchived = "archived"
	ConversationStatusFlagged  = "flagged"
)

type Conversation struct {
	Model
	Participants  []User    `gorm:"many2many:conversation_participants;" json:"participants"`
	ListingID     *uint     `gorm:"index" json:"listing_id,omitempty"`
	Status        string    `gorm:"default:active;index" json:"status"`
	LastMessage   string    `json:"last_message"`
	LastMessageAt time.Time `gorm:"index" json:"last_message_at"`
}

// HasParticipant reports whether userID is part of the conversation.
// Participants must be preloaded.
func (c *Conversation) HasParticipant(userID uint) bool {
	for _, p := range c.Participants {
		if p.ID == userID {
			return true
		}
	}
	return false
}

// OtherParticipantIDs returns every participant id except userID.
func (c *Conversation) OtherParticipantIDs(userID uint) []uint {
	var ids []uint
	for _, p := range c.Participants {
		if p.ID != userID {
			ids = append(ids, p.ID)
		}
	}
	return ids
}

type StartConversationRequest struct {
	ParticipantID uint  `json:"participant_id" binding:"required"`
	ListingID     *uint `json:"listing_id"`
}
