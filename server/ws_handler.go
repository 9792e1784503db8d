package server

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	errs "github.com/dormside/dormside/errors"
	"github.com/dormside/dormside/server/response"
	"github.com/dormside/dormside/server/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) sessionDeps() ws.SessionDeps {
	return ws.SessionDeps{
		Auth:        s.Authenticator,
		Hub:         s.Hub,
		ConvRepo:    s.ConversationRepository,
		MsgRepo:     s.MessageRepository,
		AuthRepo:    s.AuthRepository,
		Filter:      s.ContentFilter,
		RateLimiter: s.RateLimitService,
		Presence:    s.PresenceService,
		Notifier:    s.NotificationService,
	}
}

// handleChatSocket upgrades the connection and hands it to a chat session.
// The upgrade always succeeds first; authentication failures come back as
// close frames so browser clients can read the code.
func (s *Server) handleChatSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		conversationID, err := strconv.ParseUint(c.Param("conversationID"), 10, 32)
		if err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New("invalid conversation id", http.StatusBadRequest))
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("websocket upgrade error: %v", err)
			return
		}

		session := ws.NewChatSession(s.sessionDeps(), conn, uint(conversationID))
		go session.Run(c.Query("token"))
	}
}

func (s *Server) handleConversationListSocket() gin.HandlerFunc {
	return func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Printf("websocket upgrade error: %v", err)
			return
		}

		session := ws.NewListSession(s.sessionDeps(), conn)
		go session.Run(c.Query("token"))
	}
}
