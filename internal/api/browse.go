// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pdiddy/mtb-analyzer/internal/store"
)

// ListEditions lists editions, newest first, optionally for one year.
func (h *Handler) ListEditions(c *gin.Context) {
	year, err := parseInt(c, "year")
	if err != nil {
		badRequest(c, err)
		return
	}
	editions, err := h.store.ListEditions(c.Request.Context(), store.EditionFilter{Year: year})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, editions)
}

// GetEdition returns one edition.
func (h *Handler) GetEdition(c *gin.Context) {
	id, err := editionParam(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	e, err := h.store.GetEdition(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, e)
}

// EditionItems returns the items of one edition in source order.
func (h *Handler) EditionItems(c *gin.Context) {
	id, err := editionParam(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if _, err := h.store.GetEdition(ctx, id); err != nil {
		h.fail(c, err)
		return
	}
	items, err := h.store.ListItems(ctx, store.ItemFilter{Edition: &id})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// threshold reads ?threshold= or falls back to the stored setting.
func (h *Handler) threshold(c *gin.Context) (float64, bool) {
	if v := c.Query("threshold"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil || t < 0 || t > 100 {
			badRequest(c, errInvalidThreshold(v))
			return 0, false
		}
		return t, true
	}
	s, err := h.store.Settings(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return 0, false
	}
	return s.Threshold, true
}

// ListItems lists relevant items: analyzed items scoring at least the
// threshold.
func (h *Handler) ListItems(c *gin.Context) {
	threshold, ok := h.threshold(c)
	if !ok {
		return
	}
	unread, err := parseBool(c, "unread")
	if err != nil {
		badRequest(c, err)
		return
	}
	limit, err := parseInt(c, "limit")
	if err != nil {
		badRequest(c, err)
		return
	}
	h.listItems(c, store.ItemFilter{MinScore: &threshold, Unread: unread, Limit: limit})
}

// RecentItems lists the newest relevant items.
func (h *Handler) RecentItems(c *gin.Context) {
	threshold, ok := h.threshold(c)
	if !ok {
		return
	}
	limit, err := parseInt(c, "limit")
	if err != nil {
		badRequest(c, err)
		return
	}
	if limit == 0 {
		limit = defaultRecentLimit
	}
	h.listItems(c, store.ItemFilter{MinScore: &threshold, Limit: limit})
}

func (h *Handler) listItems(c *gin.Context, f store.ItemFilter) {
	items, err := h.store.ListItems(c.Request.Context(), f)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// GetItem returns one item.
func (h *Handler) GetItem(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	it, err := h.store.GetItem(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

// MarkRead records the first read of an item. Later calls keep the first
// timestamp.
func (h *Handler) MarkRead(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	it, err := h.store.MarkRead(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": true, "item_id": id, "read_at": it.ReadAt})
}

// AnalyzeAttachment runs deep analysis of one attachment. It does not take
// the task engine, so it can run next to a sync.
func (h *Handler) AnalyzeAttachment(c *gin.Context) {
	id, err := int64Param(c, "id")
	if err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.jobs.DeepAnalyze(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
