package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/callsim/callsim/internal/common"
	"github.com/callsim/callsim/internal/logger"
	"github.com/callsim/callsim/internal/tts"
)

type ttsReq struct {
	Text string `json:"text"`
	Lang string `json:"lang"`
}

// Synthesize renders text to MP3. Unsupported languages fall back to the
// default quietly; the resolved language is reported in a response header.
func (h *Handler) Synthesize(c *gin.Context) {
	var req ttsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, http.StatusBadRequest, common.CodeValidation, "invalid json body")
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		common.Fail(c, http.StatusBadRequest, common.CodeValidation, "text is required")
		return
	}

	audio, lang, err := h.Synth.Synthesize(c.Request.Context(), req.Text, req.Lang)
	if err != nil {
		var synErr *tts.SynthesisError
		if errors.As(err, &synErr) {
			logger.L.WithError(err).Warn("speech synthesis failed")
		}
		common.Fail(c, http.StatusInternalServerError, common.CodeInternal, "speech synthesis failed")
		return
	}

	c.Header("X-TTS-Language", lang)
	c.Data(http.StatusOK, "audio/mpeg", audio)
}

func (h *Handler) Voices(c *gin.Context) {
	common.OK(c, http.StatusOK, gin.H{
		"languages": tts.Voices(),
		"default":   tts.DefaultLanguage,
	})
}
