// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/pdiddy/mtb-analyzer/internal/classify"
	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

// ErrDeepUnavailable is returned when no downloader or converter is wired.
var ErrDeepUnavailable = errors.New("attachment analysis unavailable")

// DeepAnalyze downloads an attachment, converts it to text and asks the
// classifier for a summary covering the item and the attachment. The
// result is stored on the attachment. It neither takes the task engine nor
// touches the item's analysis or the edition's stage.
func (p *Pipeline) DeepAnalyze(ctx context.Context, attachmentID int64) (types.AttachmentRef, error) {
	if p.downloader == nil || p.converter == nil {
		return types.AttachmentRef{}, ErrDeepUnavailable
	}

	att, err := p.store.GetAttachment(ctx, attachmentID)
	if err != nil {
		return types.AttachmentRef{}, err
	}
	item, err := p.store.GetItem(ctx, att.ItemID)
	if err != nil {
		return types.AttachmentRef{}, err
	}
	settings, err := p.settings(ctx)
	if err != nil {
		return types.AttachmentRef{}, err
	}

	fctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	path, err := p.downloader.Download(fctx, att)
	cancel()
	if err != nil {
		return types.AttachmentRef{}, err
	}
	if path != att.CachedPath {
		if err := p.store.SetAttachmentCache(ctx, att.ID, path); err != nil {
			return types.AttachmentRef{}, err
		}
		att.CachedPath = path
	}

	text, err := p.converter.Convert(ctx, path)
	if err != nil {
		return types.AttachmentRef{}, err
	}

	cctx, cancel := context.WithTimeout(ctx, p.analysisTimeout)
	defer cancel()
	deep, err := p.classifier.DeepAnalyze(cctx, classify.DeepRequest{
		Item:           item,
		AttachmentName: att.Name,
		AttachmentText: text,
		Role:           settings.RoleDescription,
		Model:          settings.DeepModel,
	})
	if err != nil {
		return types.AttachmentRef{}, fmt.Errorf("analyzing attachment %d: %w", att.ID, err)
	}
	if err := p.store.SaveDeepAnalysis(ctx, att.ID, deep); err != nil {
		return types.AttachmentRef{}, err
	}

	p.log.Info("attachment analyzed", zap.Int64("attachment", att.ID), zap.String("model", deep.Model))
	att.DeepAnalysis = &deep
	return att, nil
}
