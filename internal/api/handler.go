// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package api exposes the task engine, the edition browser and the operator
// settings over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pdiddy/mtb-analyzer/internal/pipeline"
	"github.com/pdiddy/mtb-analyzer/internal/store"
	"github.com/pdiddy/mtb-analyzer/internal/task"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

const defaultRecentLimit = 10

// Jobs is the part of the pipeline the handlers drive.
type Jobs interface {
	Job(req pipeline.Request) (string, task.Func, error)
	Reset(ctx context.Context, e *task.Engine, id types.EditionID) error
	DeepAnalyze(ctx context.Context, attachmentID int64) (types.AttachmentRef, error)
}

// Store is the read side of persistence plus the settings writes.
type Store interface {
	GetEdition(ctx context.Context, id types.EditionID) (types.Edition, error)
	ListEditions(ctx context.Context, f store.EditionFilter) ([]types.Edition, error)
	ListItems(ctx context.Context, f store.ItemFilter) ([]types.Item, error)
	GetItem(ctx context.Context, itemID int64) (types.Item, error)
	MarkRead(ctx context.Context, itemID int64) (types.Item, error)
	Settings(ctx context.Context) (types.Settings, error)
	PutSetting(ctx context.Context, key, value string) error
	Stats(ctx context.Context, threshold float64) (types.Stats, error)
}

// Handler serves the control surface.
type Handler struct {
	engine   *task.Engine
	jobs     Jobs
	store    Store
	log      *zap.Logger
	apiKey   string
	shutdown func()
}

// NewHandler returns a handler. apiKey is only reported as present or
// absent. shutdown is called by the shutdown endpoint and may be nil.
func NewHandler(engine *task.Engine, jobs Jobs, st Store, apiKey string, shutdown func(), log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		engine:   engine,
		jobs:     jobs,
		store:    st,
		log:      log.With(zap.String("component", "api")),
		apiKey:   apiKey,
		shutdown: shutdown,
	}
}

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail maps err to a status code and writes it.
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, types.ErrEditionNotFound),
		errors.Is(err, types.ErrItemNotFound),
		errors.Is(err, types.ErrAttachmentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, types.ErrInvalidEditionID):
		status = http.StatusBadRequest
	case errors.Is(err, task.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, pipeline.ErrNotConfigured):
		status = http.StatusBadRequest
	case errors.Is(err, pipeline.ErrDeepUnavailable):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func editionParam(c *gin.Context) (types.EditionID, error) {
	return types.ParseEditionID(c.Param("id"))
}

func int64Param(c *gin.Context, name string) (int64, error) {
	v, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || v < 1 {
		return 0, errors.New("invalid " + name + " " + strconv.Quote(c.Param(name)))
	}
	return v, nil
}

// parseDate accepts YYYY-MM-DD and MM/DD/YYYY. An empty value is no bound.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, errors.New("invalid date " + strconv.Quote(s) + ", want YYYY-MM-DD or MM/DD/YYYY")
}

// parseBool treats an absent parameter as false.
func parseBool(c *gin.Context, name string) (bool, error) {
	v := c.Query(name)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.New("invalid " + name + " " + strconv.Quote(v))
	}
	return b, nil
}

func parseInt(c *gin.Context, name string) (int, error) {
	v := c.Query(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, errors.New("invalid " + name + " " + strconv.Quote(v))
	}
	return n, nil
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}
