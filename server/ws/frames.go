package ws

import (
	"encoding/json"
	"time"

	"github.com/dormside/dormside/models"
	"github.com/dormside/dormside/services"
)

// Close codes are a contract with the clients and must not change.
const (
	CloseInternalError = 1011
	CloseAuthRequired  = 4001
	CloseAccessDenied  = 4003
)

// CommandType tags every inbound frame
type CommandType string

const (
	CmdPing           CommandType = "ping"
	CmdSendMessage    CommandType = "send_message"
	CmdMarkRead       CommandType = "mark_read"
	CmdTypingStart    CommandType = "typing_start"
	CmdTypingStop     CommandType = "typing_stop"
	CmdRequestHistory CommandType = "request_history"
	CmdEditMessage    CommandType = "edit_message"
	CmdDeleteMessage  CommandType = "delete_message"
)

// Command is the decoded inbound frame: the tag plus exactly one non-nil
// payload. Handlers switch on Type exhaustively.
type Command struct {
	Type           CommandType
	SendMessage    *SendMessagePayload
	MarkRead       *MarkReadPayload
	RequestHistory *RequestHistoryPayload
	EditMessage    *EditMessagePayload
	DeleteMessage  *DeleteMessagePayload
}

type SendMessagePayload struct {
	Content  string `json:"content"`
	ClientID string `json:"client_id"`
	Subtype  string `json:"subtype"`
}

type MarkReadPayload struct {
	MessageIDs []uint `json:"message_ids"`
}

type RequestHistoryPayload struct {
	Limit    int  `json:"limit"`
	BeforeID uint `json:"before_id"`
}

type EditMessagePayload struct {
	MessageID uint   `json:"message_id"`
	Content   string `json:"content"`
}

type DeleteMessagePayload struct {
	MessageID uint `json:"message_id"`
}

// DecodeCommand parses an inbound frame into a typed command. Unknown tags
// come back as-is so the session can answer with an error frame instead of
// closing.
func DecodeCommand(data []byte) (*Command, error) {
	var envelope struct {
		Type CommandType `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, err
	}

	cmd := &Command{Type: envelope.Type}
	switch envelope.Type {
	case CmdSendMessage:
		cmd.SendMessage = &SendMessagePayload{}
		return cmd, json.Unmarshal(data, cmd.SendMessage)
	case CmdMarkRead:
		cmd.MarkRead = &MarkReadPayload{}
		return cmd, json.Unmarshal(data, cmd.MarkRead)
	case CmdRequestHistory:
		cmd.RequestHistory = &RequestHistoryPayload{}
		return cmd, json.Unmarshal(data, cmd.RequestHistory)
	case CmdEditMessage:
		cmd.EditMessage = &EditMessagePayload{}
		return cmd, json.Unmarshal(data, cmd.EditMessage)
	case CmdDeleteMessage:
		cmd.DeleteMessage = &DeleteMessagePayload{}
		return cmd, json.Unmarshal(data, cmd.DeleteMessage)
	default:
		return cmd, nil
	}
}

// EventType tags every outbound frame
type EventType string

const (
	EventPong               EventType = "pong"
	EventError              EventType = "error"
	EventChatMessage        EventType = "chat_message"
	EventMessageSent        EventType = "message_sent"
	EventMessageBlocked     EventType = "message_blocked"
	EventMessageEdited      EventType = "message_edited"
	EventEditBlocked        EventType = "edit_blocked"
	EventMessageDeleted     EventType = "message_deleted"
	EventTypingIndicator    EventType = "typing_indicator"
	EventReadReceipt        EventType = "read_receipt"
	EventMessageHistory     EventType = "message_history"
	EventPresence           EventType = "presence"
	EventNewMessage         EventType = "new_message"
	EventConversationUpdate EventType = "conversation_updated"
	EventConversationStatus EventType = "conversation_status_changed"
)

type baseEvent struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

func newBaseEvent(t EventType) baseEvent {
	return baseEvent{Type: t, Timestamp: time.Now().UTC()}
}

type ErrorEvent struct {
	baseEvent
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func NewErrorEvent(message, code string) ErrorEvent {
	return ErrorEvent{baseEvent: newBaseEvent(EventError), Message: message, Code: code}
}

type PongEvent struct {
	baseEvent
}

func NewPongEvent() PongEvent {
	return PongEvent{baseEvent: newBaseEvent(EventPong)}
}

// MessageSummary is the message shape carried by chat frames
type MessageSummary struct {
	ID              uint       `json:"id"`
	ConversationID  uint       `json:"conversation_id"`
	SenderID        uint       `json:"sender_id"`
	Content         string     `json:"content"`
	FilteredContent string     `json:"filtered_content,omitempty"`
	IsEdited        bool       `json:"is_edited"`
	IsRead          bool       `json:"is_read"`
	CreatedAt       time.Time  `json:"created_at"`
	EditedAt        *time.Time `json:"edited_at,omitempty"`
}

func SummarizeMessage(m *models.Message) MessageSummary {
	return MessageSummary{
		ID:              m.ID,
		ConversationID:  m.ConversationID,
		SenderID:        m.SenderID,
		Content:         m.Content,
		FilteredContent: m.FilteredContent,
		IsEdited:        m.IsEdited,
		IsRead:          m.IsRead,
		CreatedAt:       m.CreatedAt,
		EditedAt:        m.EditedAt,
	}
}

type ChatMessageEvent struct {
	baseEvent
	Message MessageSummary     `json:"message"`
	Sender  models.UserSummary `json:"sender"`
}

func NewChatMessageEvent(msg MessageSummary, sender models.UserSummary) ChatMessageEvent {
	return ChatMessageEvent{baseEvent: newBaseEvent(EventChatMessage), Message: msg, Sender: sender}
}

type MessageSentEvent struct {
	baseEvent
	MessageID uint   `json:"message_id"`
	ClientID  string `json:"client_id,omitempty"`
}

func NewMessageSentEvent(messageID uint, clientID string) MessageSentEvent {
	return MessageSentEvent{baseEvent: newBaseEvent(EventMessageSent), MessageID: messageID, ClientID: clientID}
}

type MessageBlockedEvent struct {
	baseEvent
	ClientID   string               `json:"client_id,omitempty"`
	Reason     string               `json:"reason"`
	Violations []services.Violation `json:"violations"`
}

func NewMessageBlockedEvent(clientID, reason string, violations []services.Violation) MessageBlockedEvent {
	return MessageBlockedEvent{baseEvent: newBaseEvent(EventMessageBlocked), ClientID: clientID, Reason: reason, Violations: violations}
}

type EditBlockedEvent struct {
	baseEvent
	MessageID  uint                 `json:"message_id"`
	Reason     string               `json:"reason"`
	Violations []services.Violation `json:"violations"`
}

func NewEditBlockedEvent(messageID uint, reason string, violations []services.Violation) EditBlockedEvent {
	return EditBlockedEvent{baseEvent: newBaseEvent(EventEditBlocked), MessageID: messageID, Reason: reason, Violations: violations}
}

type MessageEditedEvent struct {
	baseEvent
	Message MessageSummary `json:"message"`
}

func NewMessageEditedEvent(msg MessageSummary) MessageEditedEvent {
	return MessageEditedEvent{baseEvent: newBaseEvent(EventMessageEdited), Message: msg}
}

type MessageDeletedEvent struct {
	baseEvent
	MessageID      uint `json:"message_id"`
	ConversationID uint `json:"conversation_id"`
}

func NewMessageDeletedEvent(messageID, conversationID uint) MessageDeletedEvent {
	return MessageDeletedEvent{baseEvent: newBaseEvent(EventMessageDeleted), MessageID: messageID, ConversationID: conversationID}
}

type TypingIndicatorEvent struct {
	baseEvent
	ConversationID uint `json:"conversation_id"`
	UserID         uint `json:"user_id"`
	IsTyping       bool `json:"is_typing"`
}

func NewTypingIndicatorEvent(conversationID, userID uint, isTyping bool) TypingIndicatorEvent {
	return TypingIndicatorEvent{baseEvent: newBaseEvent(EventTypingIndicator), ConversationID: conversationID, UserID: userID, IsTyping: isTyping}
}

type ReadReceiptEvent struct {
	baseEvent
	ConversationID uint   `json:"conversation_id"`
	ReaderID       uint   `json:"reader_id"`
	MessageIDs     []uint `json:"message_ids"`
}

func NewReadReceiptEvent(conversationID, readerID uint, messageIDs []uint) ReadReceiptEvent {
	return ReadReceiptEvent{baseEvent: newBaseEvent(EventReadReceipt), ConversationID: conversationID, ReaderID: readerID, MessageIDs: messageIDs}
}

type MessageHistoryEvent struct {
	baseEvent
	ConversationID uint             `json:"conversation_id"`
	Messages       []MessageSummary `json:"messages"`
	HasMore        bool             `json:"has_more"`
}

func NewMessageHistoryEvent(conversationID uint, messages []MessageSummary, hasMore bool) MessageHistoryEvent {
	return MessageHistoryEvent{baseEvent: newBaseEvent(EventMessageHistory), ConversationID: conversationID, Messages: messages, HasMore: hasMore}
}

type PresenceEvent struct {
	baseEvent
	ConversationID uint                 `json:"conversation_id"`
	OnlineUsers    []models.UserSummary `json:"online_users"`
}

func NewPresenceEvent(conversationID uint, online []models.UserSummary) PresenceEvent {
	return PresenceEvent{baseEvent: newBaseEvent(EventPresence), ConversationID: conversationID, OnlineUsers: online}
}

type NewMessageEvent struct {
	baseEvent
	ConversationID uint               `json:"conversation_id"`
	Message        MessageSummary     `json:"message"`
	Sender         models.UserSummary `json:"sender"`
}

func NewNewMessageEvent(conversationID uint, msg MessageSummary, sender models.UserSummary) NewMessageEvent {
	return NewMessageEvent{baseEvent: newBaseEvent(EventNewMessage), ConversationID: conversationID, Message: msg, Sender: sender}
}

type ConversationUpdatedEvent struct {
	baseEvent
	ConversationID uint   `json:"conversation_id"`
	LastMessage    string `json:"last_message,omitempty"`
}

func NewConversationUpdatedEvent(conversationID uint, lastMessage string) ConversationUpdatedEvent {
	return ConversationUpdatedEvent{baseEvent: newBaseEvent(EventConversationUpdate), ConversationID: conversationID, LastMessage: lastMessage}
}

type ConversationStatusEvent struct {
	baseEvent
	ConversationID uint   `json:"conversation_id"`
	Status         string `json:"status"`
}

func NewConversationStatusEvent(conversationID uint, status string) ConversationStatusEvent {
	return ConversationStatusEvent{baseEvent: newBaseEvent(EventConversationStatus), ConversationID: conversationID, Status: status}
}
