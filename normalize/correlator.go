package normalize

// This file contains the screen recording correlator: the cursor tracking the
// first recording of a test, and the derivation of a screenshot from it when
// the test fails.

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/xctools/xctools/model"
)

type recording struct {
	attachment model.Attachment
	// anchor is the start time of the step holding the recording.
	anchor time.Time
}

// recordingCursor is either idle or armed with one recording. It lives for
// the traversal of a single test.
type recordingCursor struct {
	armed bool
	rec   recording
}

// arm starts tracking att. It returns false, leaving the cursor unchanged,
// when a recording is already tracked.
func (c *recordingCursor) arm(att model.Attachment, anchor time.Time) bool {
	if c.armed {
		return false
	}
	c.armed = true
	c.rec = recording{attachment: att, anchor: anchor}
	return true
}

// take returns the tracked recording, if any, and leaves the cursor idle.
func (c *recordingCursor) take() (recording, bool) {
	if !c.armed {
		return recording{}, false
	}
	rec := c.rec
	c.reset()
	return rec, true
}

func (c *recordingCursor) reset() {
	c.armed = false
	c.rec = recording{}
}

// screenshot extracts the frame of rec shown at the given instant, writes it
// next to the other attachments and returns the attachment describing it.
func (n *Normalizer) screenshot(ctx context.Context, rec recording, name, uuid string, at time.Time) (model.Attachment, error) {
	video := rec.attachment
	if video.Filename == nil || *video.Filename == "" {
		return model.Attachment{}, &ExtractionError{Reason: "recording has no filename"}
	}
	filename := *video.Filename
	if video.Raw == nil {
		return model.Attachment{}, &PreconditionViolation{
			Description: fmt.Sprintf("recording %q has no raw attachment to export", filename),
		}
	}
	if n.cfg.Exporter == nil || n.cfg.Frames == nil || n.cfg.Images == nil {
		return model.Attachment{}, &PreconditionViolation{Description: "screenshot derivation requires an exporter, a frame extractor and an image writer"}
	}

	offset := at.Sub(rec.anchor).Seconds()

	scratch, err := os.MkdirTemp(n.scratchDir, "recording-*")
	if err != nil {
		return model.Attachment{}, &ExtractionError{Recording: filename, Reason: "failed to create scratch directory", Err: err}
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			n.logger.Warn().Err(err).Str("path", scratch).Msg("Failed to remove scratch directory")
		}
	}()

	videoPath, err := n.cfg.Exporter.ExportAttachment(ctx, video.Raw, scratch)
	if err != nil {
		return model.Attachment{}, &ExtractionError{Recording: filename, Reason: "failed to export recording", Err: err}
	}

	img, err := n.cfg.Frames.ExtractFrame(ctx, offset, videoPath)
	if err != nil {
		return model.Attachment{}, &ExtractionError{Recording: filename, Reason: fmt.Sprintf("failed to extract frame at %.3fs", offset), Err: err}
	}
	if img == nil {
		return model.Attachment{}, &ExtractionError{Recording: filename, Reason: fmt.Sprintf("no frame at %.3fs", offset)}
	}

	imageName := model.ImageFilename(filename)
	imagePath := filepath.Join(n.cfg.AttachmentsDir, imageName)
	if err := n.cfg.Images.WriteImage(img, imagePath); err != nil {
		return model.Attachment{}, &ExtractionError{Recording: filename, Reason: "failed to write screenshot", Err: err}
	}

	n.logger.Debug().
		Str("recording", filename).
		Float64("offset", offset).
		Str("path", imagePath).
		Msg("Derived screenshot from recording")

	return model.Attachment{
		Name:                  &name,
		UUID:                  &uuid,
		UniformTypeIdentifier: model.UTIPNG,
		Timestamp:             &offset,
		Filename:              &imageName,
	}, nil
}
