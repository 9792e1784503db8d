package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dormside/dormside/models"
	"github.com/gorilla/websocket"
)

// ListSession is one websocket connection watching a user's conversation
// list. It carries no conversation state; it only relays new_message,
// conversation_updated and conversation_status_changed frames fanned out to
// the user's group.
type ListSession struct {
	deps SessionDeps
	conn *websocket.Conn

	user *models.User

	send  chan []byte
	state int32

	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
}

func NewListSession(deps SessionDeps, conn *websocket.Conn) *ListSession {
	ctx, cancel := context.WithCancel(context.Background())
	return &ListSession{
		deps:   deps,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		state:  StateConnecting,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *ListSession) UserID() uint {
	if s.user == nil {
		return 0
	}
	return s.user.ID
}

func (s *ListSession) Enqueue(payload []byte) bool {
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

func (s *ListSession) State() int32 {
	return atomic.LoadInt32(&s.state)
}

func (s *ListSession) Run(token string) {
	atomic.StoreInt32(&s.state, StateAuthenticating)

	identity := s.deps.Auth.Authenticate(token)
	if identity.Anonymous() {
		s.closeWith(CloseAuthRequired, "authentication required")
		return
	}
	s.user = identity.User

	s.deps.Hub.Join(UserGroup(s.user.ID), s)
	atomic.StoreInt32(&s.state, StateJoined)

	go s.writePump()
	s.readPump()
}

func (s *ListSession) readPump() {
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
			return
		}
		s.handleInbound(data)
	}
}

// handleInbound accepts ping only; the list surface is read-mostly
func (s *ListSession) handleInbound(data []byte) {
	cmd, err := DecodeCommand(data)
	if err != nil {
		s.enqueueEvent(NewErrorEvent("Invalid JSON format", "invalid_json"))
		return
	}
	switch cmd.Type {
	case CmdPing:
		s.enqueueEvent(NewPongEvent())
	default:
		s.enqueueEvent(NewErrorEvent(fmt.Sprintf("Unknown message type: %s", cmd.Type), "unknown_type"))
	}
}

func (s *ListSession) writePump() {
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

func (s *ListSession) enqueueEvent(event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Printf("Error marshalling event: %v", err)
		return
	}
	if !s.Enqueue(payload) {
		log.Printf("Send buffer full for user %d, dropping frame", s.UserID())
	}
}

func (s *ListSession) closeWith(code int, reason string) {
	if s.conn != nil {
		deadline := time.Now().Add(writeWait)
		s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	}
	s.teardown()
}

func (s *ListSession) teardown() {
	s.closeOnce.Do(func() {
		atomic.StoreInt32(&s.state, StateClosing)
		if s.user != nil {
			s.deps.Hub.Leave(UserGroup(s.user.ID), s)
		}
		s.cancel()
		if s.conn != nil {
			s.conn.Close()
		}
		atomic.StoreInt32(&s.state, StateClosed)
	})
}
