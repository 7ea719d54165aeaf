package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/callsim/callsim/internal/chat"
	"github.com/callsim/callsim/internal/common"
	"github.com/callsim/callsim/internal/httpapi/middleware"
)

type chatReq struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// Chat handles one conversation turn. The reply always succeeds: upstream
// generation problems degrade to canned responses, never to errors.
func (h *Handler) Chat(c *gin.Context) {
	var req chatReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeValidation, "invalid json body")
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" {
		common.Fail(c, http.StatusBadRequest, common.CodeValidation, "message is required")
		return
	}

	user := middleware.CurrentUser(c)
	reply, err := h.ChatSvc.Respond(c.Request.Context(), user.ID, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, common.CodeNotFound, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "chat failed")
		return
	}

	common.OK(c, http.StatusOK, gin.H{
		"response":   reply,
		"session_id": req.SessionID,
	})
}

// SessionMessages returns the ordered transcript of an owned session.
func (h *Handler) SessionMessages(c *gin.Context) {
	user := middleware.CurrentUser(c)
	msgs, err := h.ChatSvc.History(c.Request.Context(), user.ID, c.Param("id"))
	if err != nil {
		if errors.Is(err, chat.ErrSessionNotFound) {
			common.Fail(c, http.StatusNotFound, common.CodeNotFound, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "failed to load messages")
		return
	}

	common.OK(c, http.StatusOK, gin.H{"messages": msgs})
}
