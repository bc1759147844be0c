package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	conversationdomain "github.com/mentorly/sessionmeter/internal/conversation/domain"
	usagedomain "github.com/mentorly/sessionmeter/internal/usage/domain"
	"go.uber.org/zap"
)

// conversationResponse joins the conversation with its usage detail so a
// caller sees the billed completion state alongside the raw status.
type conversationResponse struct {
	*conversationdomain.Conversation
	Usage *usagedomain.ConversationUsageDetail `json:"usage,omitempty"`
}

func (s *Server) CreateConversation(c *gin.Context) {
	var req conversationdomain.CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	conv, err := s.convSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

func (s *Server) GetConversation(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	conv, err := s.convSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	detail, err := s.usageSvc.GetConversationUsage(c.Request.Context(), conv.ID)
	if err != nil {
		// The conversation itself is authoritative. A detail lookup error
		// degrades the response instead of failing it.
		s.log.Warn("conversation usage lookup failed",
			zap.String("conversation_id", conv.ID.String()),
			zap.Error(err),
		)
		detail = nil
	}

	c.JSON(http.StatusOK, conversationResponse{Conversation: conv, Usage: detail})
}
