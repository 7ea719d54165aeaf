package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/callsim/callsim/internal/common"
	"github.com/callsim/callsim/internal/models"
)

// ListUsers is the admin roster: optional role filter, newest first.
func (h *Handler) ListUsers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := h.DB.WithContext(c.Request.Context()).Model(&models.User{})
	if role := c.Query("role"); role != "" {
		q = q.Where("role = ?", role)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "failed to list users")
		return
	}

	var users []models.User
	if err := q.Order("created_at DESC").Limit(limit).Find(&users).Error; err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "failed to list users")
		return
	}

	common.OK(c, http.StatusOK, gin.H{"users": users, "total": total})
}

// ListEvaluations feeds the scoring view: sessions with transcripts.
func (h *Handler) ListEvaluations(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	evals, err := h.SessionSvc.Evaluations(c.Request.Context(), c.Query("status"), c.Query("user_id"), limit)
	if err != nil {
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "failed to list evaluations")
		return
	}

	common.OK(c, http.StatusOK, gin.H{"evaluations": evals, "count": len(evals)})
}
