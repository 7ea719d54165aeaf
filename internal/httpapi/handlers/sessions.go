package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/callsim/callsim/internal/common"
	"github.com/callsim/callsim/internal/httpapi/middleware"
	"github.com/callsim/callsim/internal/session"
)

type startSessionReq struct {
	CallerInfo map[string]any `json:"caller_info"`
}

func (h *Handler) StartSession(c *gin.Context) {
	var req startSessionReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			common.Fail(c, http.StatusBadRequest, common.CodeValidation, "invalid json body")
			return
		}
	}

	user := middleware.CurrentUser(c)
	res, err := h.SessionSvc.Start(c.Request.Context(), user.ID, req.CallerInfo, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "failed to start session")
		return
	}

	common.OK(c, http.StatusCreated, gin.H{
		"session":       res.Session,
		"session_token": res.Token,
		"greeting":      res.Greeting,
	})
}

func (h *Handler) EndSession(c *gin.Context) {
	user := middleware.CurrentUser(c)
	res, err := h.SessionSvc.End(c.Request.Context(), c.Param("id"), user.ID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			common.Fail(c, http.StatusNotFound, common.CodeNotFound, "session not found")
			return
		}
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "failed to end session")
		return
	}

	common.OK(c, http.StatusOK, gin.H{
		"session":    res.Session,
		"transcript": res.Transcript,
	})
}

func (h *Handler) ListSessions(c *gin.Context) {
	user := middleware.CurrentUser(c)

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", "20"))
	status := c.Query("status")

	res, err := h.SessionSvc.List(c.Request.Context(), user.ID, status, page, perPage)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "failed to list sessions")
		return
	}

	common.OK(c, http.StatusOK, gin.H{
		"sessions": res.Sessions,
		"page":     res.Page,
		"per_page": res.PerPage,
		"total":    res.Total,
		"pages":    res.Pages,
	})
}

func (h *Handler) EvaluateSession(c *gin.Context) {
	var scores session.Scores
	if err := c.ShouldBindJSON(&scores); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeValidation, "invalid json body")
		return
	}

	user := middleware.CurrentUser(c)
	sess, err := h.SessionSvc.Evaluate(c.Request.Context(), c.Param("id"), scores, user.ID, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidScore):
			common.Fail(c, http.StatusBadRequest, common.CodeValidation, err.Error())
		case errors.Is(err, session.ErrNotFound):
			common.Fail(c, http.StatusNotFound, common.CodeNotFound, "session not found")
		default:
			common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "evaluation failed")
		}
		return
	}

	common.OK(c, http.StatusOK, gin.H{"session": sess})
}
