package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/callsim/callsim/internal/auth"
	"github.com/callsim/callsim/internal/common"
	"github.com/callsim/callsim/internal/httpapi/middleware"
)

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

func (h *Handler) Register(c *gin.Context) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeValidation, "invalid json body")
		return
	}

	user, pair, err := h.AuthSvc.Register(c.Request.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
		Role:     req.Role,
	}, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		var verr *auth.ValidationError
		switch {
		case errors.As(err, &verr):
			common.FailDetails(c, http.StatusBadRequest, common.CodeValidation, "validation failed", verr.Fields)
		case errors.Is(err, auth.ErrAlreadyExists):
			common.Fail(c, http.StatusConflict, common.CodeConflict, err.Error())
		default:
			common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "registration failed")
		}
		return
	}

	common.OK(c, http.StatusCreated, gin.H{
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeValidation, "invalid json body")
		return
	}

	user, pair, err := h.AuthSvc.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			common.Fail(c, http.StatusUnauthorized, common.CodeUnauthorized, err.Error())
		case errors.Is(err, auth.ErrInactiveAccount):
			common.Fail(c, http.StatusForbidden, common.CodeForbidden, err.Error())
		default:
			common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "login failed")
		}
		return
	}

	common.OK(c, http.StatusOK, gin.H{
		"user":          user,
		"access_token":  pair.AccessToken,
		"refresh_token": pair.RefreshToken,
	})
}

func (h *Handler) Me(c *gin.Context) {
	common.OK(c, http.StatusOK, gin.H{"user": middleware.CurrentUser(c)})
}
