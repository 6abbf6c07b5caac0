package normalize

// This file contains the projection of raw bundle attachments into report
// attachments.

import (
	"time"

	"github.com/xctools/xctools/model"
	"github.com/xctools/xctools/xcresult"
)

// projectAttachment converts raw into a report attachment whose timestamp is
// relative to anchor. Synthesized event records are dropped; every other
// type, including unknown ones, is kept.
func projectAttachment(raw xcresult.ActionTestAttachment, anchor time.Time) (model.Attachment, bool) {
	uti := model.ParseUniformTypeIdentifier(raw.UniformTypeIdentifier)
	if uti == model.UTIEventRecord {
		return model.Attachment{}, false
	}

	att := model.Attachment{
		Name:                  raw.Name,
		UUID:                  raw.UUID,
		UniformTypeIdentifier: uti,
		Filename:              raw.Filename,
		UserInfo:              model.CoerceMetadata(raw.UserInfo),
		NeedsExtraction:       true,
		Raw:                   &raw,
	}
	if raw.Timestamp != nil {
		offset := raw.Timestamp.Sub(anchor).Seconds()
		att.Timestamp = &offset
	}
	return att, true
}

func projectAttachments(raws []xcresult.ActionTestAttachment, anchor time.Time) []model.Attachment {
	out := make([]model.Attachment, 0, len(raws))
	for _, raw := range raws {
		if att, ok := projectAttachment(raw, anchor); ok {
			out = append(out, att)
		}
	}
	return out
}

func firstRecording(atts []model.Attachment) (model.Attachment, bool) {
	for _, att := range atts {
		if att.UniformTypeIdentifier == model.UTIMPEG4 {
			return att, true
		}
	}
	return model.Attachment{}, false
}
