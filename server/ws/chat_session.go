package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/dormside/dormside/db"
	"github.com/dormside/dormside/models"
	"github.com/dormside/dormside/services"
	"github.com/gorilla/websocket"
)

// Session lifecycle states. Transitions only move forward.
const (
	StateConnecting int32 = iota
	StateAuthenticating
	StateJoined
	StateClosing
	StateClosed
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxFrameSize   = 64 * 1024
	sendBufferSize = 256

	defaultHistoryLimit = 50
	maxHistoryLimit     = 100

	previewLength = 80
)

// typingAutoStopDelay bounds how long a typing indicator survives without a
// typing_stop from the client.
var typingAutoStopDelay = 10 * time.Second

// SessionDeps carries everything a session needs. Now is an injectable clock;
// nil means time.Now.
type SessionDeps struct {
	Auth        *Authenticator
	Hub         Broadcaster
	ConvRepo    db.ConversationRepository
	MsgRepo     db.MessageRepository
	AuthRepo    db.AuthRepository
	Filter      services.ContentFilterService
	RateLimiter services.RateLimitService
	Presence    services.PresenceService
	Notifier    services.NotificationService
	Now         func() time.Time
}

func (d *SessionDeps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// ChatSession is one websocket connection bound to one conversation. All
// command handling happens on the read pump goroutine; the write pump only
// drains the send channel, so handlers never touch the socket directly.
type ChatSession struct {
	deps           SessionDeps
	conn           *websocket.Conn
	conversationID uint

	user         *models.User
	conversation *models.Conversation

	send  chan []byte
	state int32

	ctx    context.Context
	cancel context.CancelFunc

	typingMu    sync.Mutex
	typingTimer *time.Timer

	closeOnce sync.Once
}

// NewChatSession wires a session around an already-upgraded connection.
// conn may be nil in tests; frames then accumulate on the send channel.
func NewChatSession(deps SessionDeps, conn *websocket.Conn, conversationID uint) *ChatSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &ChatSession{
		deps:           deps,
		conn:           conn,
		conversationID: conversationID,
		send:           make(chan []byte, sendBufferSize),
		state:          StateConnecting,
		ctx:            ctx,
		cancel:         cancel,
	}
}

func (s *ChatSession) UserID() uint {
	if s.user == nil {
		return 0
	}
	return s.user.ID
}

// Enqueue queues a frame for the write pump without blocking
func (s *ChatSession) Enqueue(payload []byte) bool {
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (s *ChatSession) State() int32 {
	return atomic.LoadInt32(&s.state)
}

// Run drives the session to completion: authenticate, join, then pump
// frames until the connection drops.
func (s *ChatSession) Run(token string) {
	if code, reason, ok := s.open(token); !ok {
		s.closeWith(code, reason)
		return
	}

	go s.writePump()
	s.announceJoin()
	s.readPump()
}

// open validates the token and conversation membership. The connection is
// already accepted at this point; failures are reported through a close
// frame rather than an HTTP status.
func (s *ChatSession) open(token string) (closeCode int, reason string, ok bool) {
	atomic.StoreInt32(&s.state, StateAuthenticating)

	identity := s.deps.Auth.Authenticate(token)
	if identity.Anonymous() {
		return CloseAuthRequired, "authentication required", false
	}
	s.user = identity.User

	conv, err := s.deps.ConvRepo.FindByID(s.conversationID)
	if err != nil {
		return CloseAccessDenied, "access denied", false
	}
	if !conv.HasParticipant(s.user.ID) {
		return CloseAccessDenied, "access denied", false
	}
	s.conversation = conv

	s.deps.Hub.Join(ConversationGroup(s.conversationID), s)
	s.deps.Hub.Join(UserGroup(s.user.ID), s)
	atomic.StoreInt32(&s.state, StateJoined)
	return 0, "", true
}

// announceJoin performs the post-join side effects: presence, pending
// delivery receipts, and the initial presence snapshot for this client.
func (s *ChatSession) announceJoin() {
	s.deps.Presence.MarkOnline(s.ctx, s.conversationID, s.user.ID)

	if err := s.deps.MsgRepo.MarkDelivered(s.conversationID, s.user.ID); err != nil {
		log.Printf("MarkDelivered error for conversation %d: %v", s.conversationID, err)
	}

	online := s.deps.Presence.ListOnline(s.ctx, s.conversationID)
	s.deps.Hub.Publish(s.ctx, ConversationGroup(s.conversationID), NewPresenceEvent(s.conversationID, online), 0)
}

func (s *ChatSession) readPump() {
	defer s.teardown()

	if s.conn == nil {
		return
	}
	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("Unexpected websocket close (user %d): %v", s.UserID(), err)
			}
			return
		}
		s.handleInbound(data)
	}
}

func (s *ChatSession) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case payload, ok := <-s.send:
			if s.conn == nil {
				continue
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			if s.conn == nil {
				continue
			}
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.ctx.Done():
			return
		}
	}
}

// handleInbound decodes one frame and dispatches it. Malformed or unknown
// frames get an error frame back; they never end the session.
func (s *ChatSession) handleInbound(data []byte) {
	cmd, err := DecodeCommand(data)
	if err != nil {
		s.enqueueEvent(NewErrorEvent("Invalid JSON format", "invalid_json"))
		return
	}

	switch cmd.Type {
	case CmdPing:
		s.enqueueEvent(NewPongEvent())
	case CmdSendMessage:
		s.handleSendMessage(cmd.SendMessage)
	case CmdMarkRead:
		s.handleMarkRead(cmd.MarkRead)
	case CmdTypingStart:
		s.handleTypingStart()
	case CmdTypingStop:
		s.handleTypingStop()
	case CmdRequestHistory:
		s.handleRequestHistory(cmd.RequestHistory)
	case CmdEditMessage:
		s.handleEditMessage(cmd.EditMessage)
	case CmdDeleteMessage:
		s.handleDeleteMessage(cmd.DeleteMessage)
	default:
		s.enqueueEvent(NewErrorEvent(fmt.Sprintf("Unknown message type: %s", cmd.Type), "unknown_type"))
	}
}

func (s *ChatSession) handleSendMessage(cmd *SendMessagePayload) {
	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		s.enqueueEvent(NewErrorEvent("Message content cannot be empty", "empty_message"))
		return
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		s.enqueueEvent(NewErrorEvent(fmt.Sprintf("Message exceeds maximum length of %d characters", models.MaxMessageLength), "message_too_long"))
		return
	}

	if !s.deps.RateLimiter.Allow(s.ctx, s.user.ID) {
		s.enqueueEvent(NewErrorEvent("Rate limit exceeded. Please slow down.", "rate_limited"))
		return
	}

	history, err := s.deps.MsgRepo.ListRecentBySender(s.conversationID, s.user.ID, 5)
	if err != nil {
		log.Printf("ListRecentBySender error for conversation %d: %v", s.conversationID, err)
	}

	result := s.deps.Filter.Analyze(content, history)
	if result.Action == services.ActionBlock {
		s.enqueueEvent(NewMessageBlockedEvent(cmd.ClientID,
			"Message blocked: sharing contact details or payment terms outside the platform is not allowed",
			result.Violations))
		s.flagConversation()
		return
	}

	msg := &models.Message{
		ConversationID: s.conversationID,
		SenderID:       s.user.ID,
		Content:        content,
	}
	if result.Action == services.ActionWarn || result.Action == services.ActionEducate {
		msg.FilteredContent = result.FilteredContent
	}
	if meta := buildMetadata(cmd.Subtype, result); meta != "" {
		msg.Metadata = meta
	}

	if err := s.deps.MsgRepo.SaveMessage(msg); err != nil {
		log.Printf("SaveMessage error for conversation %d: %v", s.conversationID, err)
		s.enqueueEvent(NewErrorEvent("Failed to send message", "send_failed"))
		return
	}

	preview := content
	if msg.FilteredContent != "" {
		preview = msg.FilteredContent
	}
	if len(preview) > previewLength {
		preview = preview[:previewLength]
	}
	if err := s.deps.ConvRepo.TouchLastActivity(s.conversationID, preview, s.deps.now()); err != nil {
		log.Printf("TouchLastActivity error for conversation %d: %v", s.conversationID, err)
	}

	s.enqueueEvent(NewMessageSentEvent(msg.ID, cmd.ClientID))

	summary := SummarizeMessage(msg)
	sender := s.user.Summary()
	s.deps.Hub.Publish(s.ctx, ConversationGroup(s.conversationID), NewChatMessageEvent(summary, sender), s.user.ID)

	for _, pid := range s.conversation.OtherParticipantIDs(s.user.ID) {
		s.deps.Hub.Publish(s.ctx, UserGroup(pid), NewNewMessageEvent(s.conversationID, summary, sender), 0)
		if !s.deps.Presence.IsOnline(s.ctx, s.conversationID, pid) {
			go s.pushOffline(pid, sender.Fullname, preview)
		}
	}
}

// pushOffline sends a push notification to a participant with no live
// connection. Failures are logged and forgotten.
func (s *ChatSession) pushOffline(userID uint, senderName, preview string) {
	user, err := s.deps.AuthRepo.FindUserByID(userID)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.deps.Notifier.NotifyNewMessage(ctx, user.DeviceToken, senderName, preview, s.conversationID); err != nil {
		log.Printf("Push notification error for user %d: %v", userID, err)
	}
}

// flagConversation marks the conversation for moderation review after a
// blocked message and tells both participants' list sessions.
func (s *ChatSession) flagConversation() {
	if err := s.deps.ConvRepo.SetStatus(s.conversationID, models.ConversationStatusFlagged); err != nil {
		log.Printf("SetStatus error for conversation %d: %v", s.conversationID, err)
		return
	}
	evt := NewConversationStatusEvent(s.conversationID, models.ConversationStatusFlagged)
	for _, u := range s.conversation.Participants {
		s.deps.Hub.Publish(s.ctx, UserGroup(u.ID), evt, 0)
	}
}

func (s *ChatSession) handleMarkRead(cmd *MarkReadPayload) {
	var updated []uint
	var err error
	if len(cmd.MessageIDs) > 0 {
		updated, err = s.deps.MsgRepo.MarkRead(s.conversationID, cmd.MessageIDs, s.user.ID)
	} else {
		updated, err = s.deps.MsgRepo.MarkAllRead(s.conversationID, s.user.ID)
	}
	if err != nil {
		log.Printf("MarkRead error for conversation %d: %v", s.conversationID, err)
		s.enqueueEvent(NewErrorEvent("Failed to mark messages read", "mark_read_failed"))
		return
	}
	if len(updated) == 0 {
		return
	}
	s.deps.Hub.Publish(s.ctx, ConversationGroup(s.conversationID), NewReadReceiptEvent(s.conversationID, s.user.ID, updated), s.user.ID)
}

func (s *ChatSession) handleTypingStart() {
	s.deps.Hub.Publish(s.ctx, ConversationGroup(s.conversationID), NewTypingIndicatorEvent(s.conversationID, s.user.ID, true), s.user.ID)

	s.typingMu.Lock()
	defer s.typingMu.Unlock()
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(typingAutoStopDelay, func() {
		s.deps.Hub.Publish(s.ctx, ConversationGroup(s.conversationID), NewTypingIndicatorEvent(s.conversationID, s.user.ID, false), s.user.ID)
	})
}

func (s *ChatSession) handleTypingStop() {
	s.stopTypingTimer()
	s.deps.Hub.Publish(s.ctx, ConversationGroup(s.conversationID), NewTypingIndicatorEvent(s.conversationID, s.user.ID, false), s.user.ID)
}

func (s *ChatSession) stopTypingTimer() {
	s.typingMu.Lock()
	defer s.typingMu.Unlock()
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
}

func (s *ChatSession) handleRequestHistory(cmd *RequestHistoryPayload) {
	limit := cmd.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	msgs, err := s.deps.MsgRepo.ListHistory(s.conversationID, cmd.BeforeID, limit)
	if err != nil {
		log.Printf("ListHistory error for conversation %d: %v", s.conversationID, err)
		s.enqueueEvent(NewErrorEvent("Failed to load history", "history_failed"))
		return
	}

	summaries := make([]MessageSummary, 0, len(msgs))
	for i := range msgs {
		summaries = append(summaries, SummarizeMessage(&msgs[i]))
	}
	hasMore := len(msgs) == limit
	s.enqueueEvent(NewMessageHistoryEvent(s.conversationID, summaries, hasMore))
}

func (s *ChatSession) handleEditMessage(cmd *EditMessagePayload) {
	msg, err := s.deps.MsgRepo.FindByID(cmd.MessageID)
	if err != nil || msg.ConversationID != s.conversationID {
		s.enqueueEvent(NewErrorEvent("Message not found", "not_found"))
		return
	}
	if msg.SenderID != s.user.ID {
		s.enqueueEvent(NewErrorEvent("You can only edit your own messages", "forbidden"))
		return
	}
	if !msg.CanEdit(s.deps.now()) {
		s.enqueueEvent(NewErrorEvent("Edit window has expired", "edit_window_expired"))
		return
	}

	content := strings.TrimSpace(cmd.Content)
	if content == "" {
		s.enqueueEvent(NewErrorEvent("Message content cannot be empty", "empty_message"))
		return
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		s.enqueueEvent(NewErrorEvent(fmt.Sprintf("Message exceeds maximum length of %d characters", models.MaxMessageLength), "message_too_long"))
		return
	}

	// Edited content passes through the same filter as new messages.
	result := s.deps.Filter.Analyze(content, nil)
	if result.Action == services.ActionBlock {
		s.enqueueEvent(NewEditBlockedEvent(msg.ID,
			"Edit blocked: sharing contact details or payment terms outside the platform is not allowed",
			result.Violations))
		s.flagConversation()
		return
	}

	filtered := ""
	if result.Action == services.ActionWarn || result.Action == services.ActionEducate {
		filtered = result.FilteredContent
	}
	meta := buildMetadata("", result)
	if err := s.deps.MsgRepo.UpdateContent(msg.ID, content, filtered, meta); err != nil {
		log.Printf("UpdateContent error for message %d: %v", msg.ID, err)
		s.enqueueEvent(NewErrorEvent("Failed to edit message", "edit_failed"))
		return
	}

	now := s.deps.now()
	msg.Content = content
	msg.FilteredContent = filtered
	msg.IsEdited = true
	msg.EditedAt = &now

	s.deps.Hub.Publish(s.ctx, ConversationGroup(s.conversationID), NewMessageEditedEvent(SummarizeMessage(msg)), 0)
	s.notifyListUpdate(content)
}

func (s *ChatSession) handleDeleteMessage(cmd *DeleteMessagePayload) {
	msg, err := s.deps.MsgRepo.FindByID(cmd.MessageID)
	if err != nil || msg.ConversationID != s.conversationID {
		s.enqueueEvent(NewErrorEvent("Message not found", "not_found"))
		return
	}
	if msg.SenderID != s.user.ID {
		s.enqueueEvent(NewErrorEvent("You can only delete your own messages", "forbidden"))
		return
	}
	if !msg.CanDelete(s.deps.now()) {
		s.enqueueEvent(NewErrorEvent("Delete window has expired", "delete_window_expired"))
		return
	}

	if err := s.deps.MsgRepo.SoftDelete(msg.ID); err != nil {
		log.Printf("SoftDelete error for message %d: %v", msg.ID, err)
		s.enqueueEvent(NewErrorEvent("Failed to delete message", "delete_failed"))
		return
	}

	s.deps.Hub.Publish(s.ctx, ConversationGroup(s.conversationID), NewMessageDeletedEvent(msg.ID, s.conversationID), 0)
	s.notifyListUpdate("")
}

// notifyListUpdate refreshes the other participants' conversation lists
// after an edit or delete changed what the latest message looks like.
func (s *ChatSession) notifyListUpdate(lastMessage string) {
	evt := NewConversationUpdatedEvent(s.conversationID, lastMessage)
	for _, pid := range s.conversation.OtherParticipantIDs(s.user.ID) {
		s.deps.Hub.Publish(s.ctx, UserGroup(pid), evt, 0)
	}
}

func (s *ChatSession) enqueueEvent(event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling event: %v", err)
		return
	}
	if !s.Enqueue(payload) {
		log.Printf("Send buffer full for user %d, dropping frame", s.UserID())
	}
}

// closeWith sends a close frame with the given code before tearing down
func (s *ChatSession) closeWith(code int, reason string) {
	if s.conn != nil {
		deadline := time.Now().Add(writeWait)
		s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	}
	s.teardown()
}

// teardown runs exactly once. Each step is independently guarded so one
// failing collaborator never blocks the rest of the cleanup.
func (s *ChatSession) teardown() {
	s.closeOnce.Do(func() {
		atomic.StoreInt32(&s.state, StateClosing)

		s.stopTypingTimer()

		if s.user != nil && s.conversation != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			s.deps.Presence.MarkOffline(ctx, s.conversationID, s.user.ID)

			online := s.deps.Presence.ListOnline(ctx, s.conversationID)
			s.deps.Hub.Publish(ctx, ConversationGroup(s.conversationID), NewPresenceEvent(s.conversationID, online), s.user.ID)
			cancel()

			s.deps.Hub.Leave(ConversationGroup(s.conversationID), s)
			s.deps.Hub.Leave(UserGroup(s.user.ID), s)
		}

		s.cancel()
		if s.conn != nil {
			s.conn.Close()
		}
		atomic.StoreInt32(&s.state, StateClosed)
	})
}

// buildMetadata serializes filter outcomes and the optional client subtype
// into the message metadata column. Empty when there is nothing to record.
func buildMetadata(subtype string, result services.FilterResult) string {
	meta := map[string]interface{}{}
	if subtype != "" {
		meta["subtype"] = subtype
	}
	if result.Action == services.ActionWarn || result.Action == services.ActionEducate {
		meta["warnings"] = result.Violations
		meta["severity_score"] = result.SeverityScore
	}
	if len(meta) == 0 {
		return ""
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return ""
	}
	return string(data)
}
