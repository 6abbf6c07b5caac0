package model

import (
	"path/filepath"
	"strings"

	"github.com/xctools/xctools/xcresult"
)

// UniformTypeIdentifier is the content type of an attachment.
type UniformTypeIdentifier string

const (
	UTIPNG         UniformTypeIdentifier = "public.png"
	UTIMPEG4       UniformTypeIdentifier = "public.mpeg-4"
	UTIEventRecord UniformTypeIdentifier = "com.apple.dt.xctest.synthesized-event-record"
	UTIUnknown     UniformTypeIdentifier = "com.genexus.ios.uniform-type.unknown"
)

// ParseUniformTypeIdentifier maps a raw type identifier to a known value.
func ParseUniformTypeIdentifier(raw string) UniformTypeIdentifier {
	switch u := UniformTypeIdentifier(raw); u {
	case UTIPNG, UTIMPEG4, UTIEventRecord:
		return u
	default:
		return UTIUnknown
	}
}

// Attachment is a normalized attachment reference.
type Attachment struct {
	Name                  *string               `json:"name,omitempty"`
	UUID                  *string               `json:"uuid,omitempty"`
	UniformTypeIdentifier UniformTypeIdentifier `json:"uniformTypeIdentifier"`
	// Seconds relative to the start of the owning step or failure. May be
	// negative.
	Timestamp *float64 `json:"timestamp,omitempty"`
	Filename  *string  `json:"filename,omitempty"`
	UserInfo  Metadata `json:"userInfo,omitempty"`

	// NeedsExtraction is set when the payload still has to be exported from
	// the result bundle. Raw is the handle used to export it.
	NeedsExtraction bool                           `json:"-"`
	Raw             *xcresult.ActionTestAttachment `json:"-"`
}

// ImageFilename returns filename with its extension replaced by ".png".
func ImageFilename(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".png"
}
