package db

import (
	"time"

	"github.com/dormside/dormside/models"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

type MessageRepository interface {
	SaveMessage(msg *models.Message) error
	FindByID(id uint) (*models.Message, error)
	ListHistory(conversationID, beforeID uint, limit int) ([]models.Message, error)
	ListRecentBySender(conversationID, senderID uint, limit int) ([]string, error)
	UpdateContent(id uint, content, filteredContent, metadata string) error
	SoftDelete(id uint) error
	MarkRead(conversationID uint, ids []uint, readerID uint) ([]uint, error)
	MarkAllRead(conversationID, readerID uint) ([]uint, error)
	MarkDelivered(conversationID, userID uint) error
}

type messageRepo struct {
	DB *gorm.DB
}

func NewMessageRepo(db *GormDB) MessageRepository {
	return &messageRepo{db.DB}
}

// notDeleted excludes soft-deleted rows; deletion is modelled as a flag so
// the audit trail survives, and the exclusion lives here at the query layer.
func (r *messageRepo) notDeleted() *gorm.DB {
	return r.DB.Where("is_deleted = ?", false)
}

func (r *messageRepo) SaveMessage(msg *models.Message) error {
	if msg == nil {
		return errors.New("message is nil")
	}
	return r.DB.Create(msg).Error
}

func (r *messageRepo) FindByID(id uint) (*models.Message, error) {
	var msg models.Message
	err := r.notDeleted().First(&msg, id).Error
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListHistory returns up to limit messages older than beforeID (all messages
// when beforeID is zero), oldest first.
func (r *messageRepo) ListHistory(conversationID, beforeID uint, limit int) ([]models.Message, error) {
	query := r.notDeleted().Where("conversation_id = ?", conversationID)
	if beforeID > 0 {
		query = query.Where("id < ?", beforeID)
	}
	var msgs []models.Message
	err := query.Order("created_at DESC").Limit(limit).Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "gorm history error")
	}
	// flip to oldest-first
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// ListRecentBySender returns the content of the sender's latest messages,
// newest first. The content filter uses it for cross-message correlation.
func (r *messageRepo) ListRecentBySender(conversationID, senderID uint, limit int) ([]string, error) {
	var msgs []models.Message
	err := r.notDeleted().
		Where("conversation_id = ? AND sender_id = ?", conversationID, senderID).
		Order("created_at DESC").
		Limit(limit).
		Find(&msgs).Error
	if err != nil {
		return nil, errors.Wrap(err, "gorm recent error")
	}
	contents := make([]string, 0, len(msgs))
	for i := range msgs {
		contents = append(contents, msgs[i].Content)
	}
	return contents, nil
}

func (r *messageRepo) UpdateContent(id uint, content, filteredContent, metadata string) error {
	now := time.Now()
	return r.DB.Model(&models.Message{}).Where("id = ?", id).Updates(map[string]interface{}{
		"content":          content,
		"filtered_content": filteredContent,
		"metadata":         metadata,
		"is_edited":        true,
		"edited_at":        &now,
	}).Error
}

func (r *messageRepo) SoftDelete(id uint) error {
	now := time.Now()
	return r.DB.Model(&models.Message{}).Where("id = ?", id).Updates(map[string]interface{}{
		"is_deleted": true,
		"deleted_at": &now,
	}).Error
}

// MarkRead flags the given messages read, skipping the reader's own messages,
// and returns the ids actually updated.
func (r *messageRepo) MarkRead(conversationID uint, ids []uint, readerID uint) ([]uint, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var targets []uint
	err := r.notDeleted().Model(&models.Message{}).
		Where("conversation_id = ? AND id IN ? AND sender_id <> ? AND is_read = ?", conversationID, ids, readerID, false).
		Pluck("id", &targets).Error
	if err != nil {
		return nil, errors.Wrap(err, "gorm pluck error")
	}
	if len(targets) == 0 {
		return nil, nil
	}
	now := time.Now()
	err = r.DB.Model(&models.Message{}).Where("id IN ?", targets).Updates(map[string]interface{}{
		"is_read": true,
		"read_at": &now,
	}).Error
	if err != nil {
		return nil, errors.Wrap(err, "gorm mark read error")
	}
	return targets, nil
}

// MarkAllRead flags every unread message in the conversation not authored by
// the reader, and returns the ids updated.
func (r *messageRepo) MarkAllRead(conversationID, readerID uint) ([]uint, error) {
	var targets []uint
	err := r.notDeleted().Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_read = ?", conversationID, readerID, false).
		Pluck("id", &targets).Error
	if err != nil {
		return nil, errors.Wrap(err, "gorm pluck error")
	}
	if len(targets) == 0 {
		return nil, nil
	}
	now := time.Now()
	err = r.DB.Model(&models.Message{}).Where("id IN ?", targets).Updates(map[string]interface{}{
		"is_read": true,
		"read_at": &now,
	}).Error
	if err != nil {
		return nil, errors.Wrap(err, "gorm mark read error")
	}
	return targets, nil
}

// MarkDelivered flags messages addressed to userID as delivered.
func (r *messageRepo) MarkDelivered(conversationID, userID uint) error {
	now := time.Now()
	return r.DB.Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND is_delivered = ?", conversationID, userID, false).
		Updates(map[string]interface{}{
			"is_delivered": true,
			"delivered_at": &now,
		}).Error
}
