// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdiddy/mtb-analyzer/internal/store"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

func errInvalidThreshold(v string) error {
	return fmt.Errorf("invalid threshold %q, want a number from 0 to 100", v)
}

// SettingsResponse is the stored settings with the credential redacted.
type SettingsResponse struct {
	types.Settings
	HasAPIKey bool `json:"has_api_key"`
}

type roleBody struct {
	RoleDescription string `json:"role_description"`
}

type thresholdBody struct {
	Threshold *float64 `json:"threshold"`
}

func (h *Handler) settings(c *gin.Context) (types.Settings, bool) {
	s, err := h.store.Settings(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return s, false
	}
	return s, true
}

// GetSettings returns all operator settings.
func (h *Handler) GetSettings(c *gin.Context) {
	s, ok := h.settings(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, SettingsResponse{Settings: s, HasAPIKey: h.apiKey != ""})
}

// GetRole returns the role description.
func (h *Handler) GetRole(c *gin.Context) {
	s, ok := h.settings(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, roleBody{RoleDescription: s.RoleDescription})
}

// PutRole replaces the role description. It takes effect at the next
// analyze run.
func (h *Handler) PutRole(c *gin.Context) {
	var body roleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, fmt.Errorf("decoding body: %w", err))
		return
	}
	role := strings.TrimSpace(body.RoleDescription)
	if role == "" {
		badRequest(c, errors.New("role_description is required"))
		return
	}
	if err := h.store.PutSetting(c.Request.Context(), store.SettingRole, role); err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("role description updated", zap.Int("length", len(role)))
	c.JSON(http.StatusOK, roleBody{RoleDescription: role})
}

// GetThreshold returns the relevance threshold.
func (h *Handler) GetThreshold(c *gin.Context) {
	s, ok := h.settings(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"threshold": s.Threshold})
}

// PutThreshold replaces the relevance threshold.
func (h *Handler) PutThreshold(c *gin.Context) {
	var body thresholdBody
	if err := c.ShouldBindJSON(&body); err != nil {
		badRequest(c, fmt.Errorf("decoding body: %w", err))
		return
	}
	if body.Threshold == nil {
		badRequest(c, errors.New("threshold is required"))
		return
	}
	t := *body.Threshold
	v := strconv.FormatFloat(t, 'f', -1, 64)
	if t < 0 || t > 100 {
		badRequest(c, errInvalidThreshold(v))
		return
	}
	if err := h.store.PutSetting(c.Request.Context(), store.SettingThreshold, v); err != nil {
		h.fail(c, err)
		return
	}
	h.log.Info("threshold updated", zap.Float64("threshold", t))
	c.JSON(http.StatusOK, gin.H{"threshold": t})
}

// Stats returns edition and item counts at the stored threshold.
func (h *Handler) Stats(c *gin.Context) {
	s, ok := h.settings(c)
	if !ok {
		return
	}
	st, err := h.store.Stats(c.Request.Context(), s.Threshold)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// Shutdown asks the server to stop after this response.
func (h *Handler) Shutdown(c *gin.Context) {
	if h.shutdown == nil {
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: "shutdown not available"})
		return
	}
	h.log.Info("shutdown requested")
	c.JSON(http.StatusOK, gin.H{"shutting_down": true})
	h.shutdown()
}
