package extract

// This file contains the export of attachment payloads flagged for
// extraction.

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/xctools/xctools/model"
	"github.com/xctools/xctools/normalize"
)

// exportAttachments exports every attachment that still needs extraction
// into dir, running at most workers exports at a time.
func (e *Extractor) exportAttachments(ctx context.Context, atts []*model.Attachment, dir string, workers int) error {
	if workers <= 0 {
		workers = defaultWorkers
	}

	var pending []*model.Attachment
	for _, att := range atts {
		if !att.NeedsExtraction {
			continue
		}
		if att.Raw == nil {
			return &normalize.PreconditionViolation{
				Description: fmt.Sprintf("attachment %q needs extraction but has no raw record", attachmentName(att)),
			}
		}
		pending = append(pending, att)
	}

	e.logger.Debug().
		Int("attachments", len(pending)).
		Int("workers", workers).
		Msg("Exporting attachments")

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, att := range pending {
		g.Go(func() error {
			_, err := e.bundle.ExportAttachment(gctx, att.Raw, dir)
			return err
		})
	}
	return g.Wait()
}

func attachmentName(att *model.Attachment) string {
	if att.Name != nil {
		return *att.Name
	}
	if att.Filename != nil {
		return *att.Filename
	}
	return "<unnamed>"
}
