package db

import (
	"log"
	"time"

	"github.com/dormside/dormside/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type ConversationRepository interface {
	FindByID(id uint) (*models.Conversation, error)
	FindOrCreateDirect(userID, participantID uint, listingID *uint) (*models.Conversation, error)
	ListByUser(userID uint) ([]models.Conversation, error)
	TouchLastActivity(id uint, preview string, at time.Time) error
	SetStatus(id uint, status string) error
	ArchiveInactive(idleFor time.Duration) (int64, error)
	PurgeArchived(retention time.Duration) (int64, error)
}

type conversationRepo struct {
	DB *gorm.DB
}

func NewConversationRepo(db *GormDB) ConversationRepository {
	return &conversationRepo{db.DB}
}

func (r *conversationRepo) FindByID(id uint) (*models.Conversation, error) {
	var conv models.Conversation
	err := r.DB.Preload("Participants").First(&conv, id).Error
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// FindOrCreateDirect returns the existing two-party conversation between the
// users (for the same listing, when given), creating it when absent.
func (r *conversationRepo) FindOrCreateDirect(userID, participantID uint, listingID *uint) (*models.Conversation, error) {
	var conv models.Conversation
	query := r.DB.
		Joins("JOIN conversation_participants cp1 ON cp1.conversation_id = conversations.id AND cp1.user_id = ?", userID).
		Joins("JOIN conversation_participants cp2 ON cp2.conversation_id = conversations.id AND cp2.user_id = ?", participantID)
	if listingID != nil {
		query = query.Where("conversations.listing_id = ?", *listingID)
	}
	err := query.Preload("Participants").First(&conv).Error
	if err == nil {
		return &conv, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errors.Wrap(err, "gorm lookup error")
	}

	var users []models.User
	if err := r.DB.Where("id IN ?", []uint{userID, participantID}).Find(&users).Error; err != nil {
		return nil, errors.Wrap(err, "gorm find users error")
	}
	if len(users) != 2 {
		return nil, errors.New("participant not found")
	}

	conv = models.Conversation{
		Participants:  users,
		ListingID:     listingID,
		Status:        models.ConversationStatusActive,
		LastMessageAt: time.Now(),
	}
	if err := r.DB.Create(&conv).Error; err != nil {
		log.Printf("FindOrCreateDirect create error: %v", err)
		return nil, err
	}
	return &conv, nil
}

func (r *conversationRepo) ListByUser(userID uint) ([]models.Conversation, error) {
	var convs []models.Conversation
	err := r.DB.
		Joins("JOIN conversation_participants cp ON cp.conversation_id = conversations.id AND cp.user_id = ?", userID).
		Preload("Participants").
		Order("last_message_at DESC").
		Find(&convs).Error
	if err != nil {
		return nil, errors.Wrap(err, "gorm list error")
	}
	return convs, nil
}

func (r *conversationRepo) TouchLastActivity(id uint, preview string, at time.Time) error {
	return r.DB.Model(&models.Conversation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"last_message":    preview,
		"last_message_at": at,
	}).Error
}

func (r *conversationRepo) SetStatus(id uint, status string) error {
	return r.DB.Model(&models.Conversation{}).Where("id = ?", id).Update("status", status).Error
}

// ArchiveInactive flips long-idle active conversations to archived.
func (r *conversationRepo) ArchiveInactive(idleFor time.Duration) (int64, error) {
	cutoff := time.Now().Add(-idleFor)
	result := r.DB.Model(&models.Conversation{}).
		Where("status = ? AND last_message_at < ?", models.ConversationStatusActive, cutoff).
		Update("status", models.ConversationStatusArchived)
	return result.RowsAffected, result.Error
}

// PurgeArchived hard-deletes archived conversations, but only those with no
// message younger than the retention threshold.
func (r *conversationRepo) PurgeArchived(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	result := r.DB.
		Where("status = ?", models.ConversationStatusArchived).
		Where("NOT EXISTS (SELECT 1 FROM messages m WHERE m.conversation_id = conversations.id AND m.created_at > ?)", cutoff).
		Delete(&models.Conversation{})
	return result.RowsAffected, result.Error
}
