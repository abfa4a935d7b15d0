// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdiddy/mtb-analyzer/internal/pipeline"
	"github.com/pdiddy/mtb-analyzer/internal/task"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

const busyMessage = "Another task is running"

// StartResponse answers a task start request.
type StartResponse struct {
	Started bool   `json:"started"`
	Task    string `json:"task,omitempty"`
	Error   string `json:"error,omitempty"`
}

// StartTask returns a handler that starts kind on the engine.
func (h *Handler) StartTask(kind pipeline.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := taskRequest(c, kind)
		if err != nil {
			badRequest(c, err)
			return
		}
		name, fn, err := h.jobs.Job(req)
		if err != nil {
			badRequest(c, err)
			return
		}
		if !h.engine.Start(name, fn) {
			c.JSON(http.StatusConflict, StartResponse{Error: busyMessage})
			return
		}
		h.log.Info("task started", zap.String("task", name))
		c.JSON(http.StatusOK, StartResponse{Started: true, Task: name})
	}
}

func taskRequest(c *gin.Context, kind pipeline.Kind) (pipeline.Request, error) {
	req := pipeline.Request{Kind: kind}
	var err error
	if req.From, err = parseDate(c.Query("date_from")); err != nil {
		return req, err
	}
	if req.To, err = parseDate(c.Query("date_to")); err != nil {
		return req, err
	}
	if req.From != nil && req.To != nil && req.To.Before(*req.From) {
		return req, errors.New("date_to is before date_from")
	}
	if v := c.Query("edition"); v != "" {
		id, err := types.ParseEditionID(v)
		if err != nil {
			return req, err
		}
		req.Edition = &id
	}
	if req.Force, err = parseBool(c, "force"); err != nil {
		return req, err
	}
	if req.Full, err = parseBool(c, "full"); err != nil {
		return req, err
	}
	return req, nil
}

// Status returns the current task state.
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Status())
}

// ClearLogs empties the task log.
func (h *Handler) ClearLogs(c *gin.Context) {
	h.engine.ClearLogs()
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

// ResetEdition returns an edition to Discovered. It is refused while a task
// runs.
func (h *Handler) ResetEdition(c *gin.Context) {
	id, err := editionParam(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	err = h.jobs.Reset(c.Request.Context(), h.engine, id)
	switch {
	case errors.Is(err, task.ErrBusy):
		c.JSON(http.StatusConflict, gin.H{"reset": false, "error": busyMessage})
		return
	case err != nil:
		h.fail(c, err)
		return
	}
	h.log.Info("edition reset", zap.String("edition", id.String()))
	c.JSON(http.StatusOK, gin.H{"reset": true, "edition": id.String()})
}
