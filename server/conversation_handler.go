package server

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	errs "github.com/dormside/dormside/errors"
	"github.com/dormside/dormside/models"
	"github.com/dormside/dormside/server/response"
)

func (s *Server) handleListConversations() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userID")
		conversations, err := s.ConversationRepository.ListByUser(userID)
		if err != nil {
			log.Printf("ListByUser error: %v", err)
			response.JSON(c, "", http.StatusInternalServerError, nil, errs.ErrInternalServerError)
			return
		}
		response.JSON(c, "", http.StatusOK, conversations, nil)
	}
}

func (s *Server) handleStartConversation() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetUint("userID")

		var req models.StartConversationRequest
		if err := decode(c, &req); err != nil {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.ErrBadRequest)
			return
		}
		if req.ParticipantID == userID {
			response.JSON(c, "", http.StatusBadRequest, nil, errs.New("cannot start a conversation with yourself", http.StatusBadRequest))
			return
		}

		conversation, err := s.ConversationRepository.FindOrCreateDirect(userID, req.ParticipantID, req.ListingID)
		if err != nil {
			log.Printf("FindOrCreateDirect error: %v", err)
			response.JSON(c, "", http.StatusInternalServerError, nil, errs.ErrInternalServerError)
			return
		}
		response.JSON(c, "conversation ready", http.StatusOK, conversation, nil)
	}
}
