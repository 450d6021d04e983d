package domain

import (
	"path/filepath"
	"strings"
)

// ContentClass selects the rendering treatment for an attachment.
type ContentClass int

const (
	ContentClassImage ContentClass = iota
	ContentClassVideo
	ContentClassOther
)

// String returns the lowercase class name.
func (c ContentClass) String() string {
	switch c {
	case ContentClassImage:
		return "image"
	case ContentClassVideo:
		return "video"
	default:
		return "other"
	}
}

// ClassifyAttachment infers the content class from a filename extension.
func ClassifyAttachment(filename string) ContentClass {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png", ".jpg", ".jpeg", ".gif":
		return ContentClassImage
	case ".mp4", ".mov", ".webm":
		return ContentClassVideo
	default:
		return ContentClassOther
	}
}

// TranscriptMessage is one conversation record, ordered oldest-first when
// assembled by the collector. Content may be empty for attachment-only posts.
type TranscriptMessage struct {
	Author  string
	Content string
}

// AttachmentRef points at a remote attachment discovered in the conversation.
type AttachmentRef struct {
	ID       string
	URL      string
	Filename string
	Class    ContentClass
}

// ArchivedAttachment is a remote attachment successfully copied to local
// storage. Failed fetches never produce one.
type ArchivedAttachment struct {
	Path  string
	URL   string
	Class ContentClass
}
