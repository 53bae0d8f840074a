package domain

import "strings"

type MediaKind string

const (
	MediaKindPhoto     MediaKind = "photo"
	MediaKindVideo     MediaKind = "video"
	MediaKindVideoNote MediaKind = "video_note"
	MediaKindVoice     MediaKind = "voice"
	MediaKindAudio     MediaKind = "audio"
	MediaKindDocument  MediaKind = "document"
)

// SupportsCaption is false for round video notes, which carry no caption.
func (k MediaKind) SupportsCaption() bool {
	return k != MediaKindVideoNote
}

// Placeholder is the caption shown for media sent without one.
func (k MediaKind) Placeholder() string {
	switch k {
	case MediaKindPhoto:
		return "📷 Photo"
	case MediaKindVideo:
		return "🎬 Video"
	case MediaKindVideoNote:
		return "⭕ Video message"
	case MediaKindVoice:
		return "🎤 Voice message"
	case MediaKindAudio:
		return "🎵 Audio"
	case MediaKindDocument:
		return "📎 Document"
	}
	return "Media"
}

// ApplicantContent is a private message from an applicant, either text or media.
type ApplicantContent interface {
	// Summary is the transcript form of the content.
	Summary() string
	isApplicantContent()
}

type TextContent struct {
	Text string
}

func (c TextContent) Summary() string { return c.Text }

func (TextContent) isApplicantContent() {}

type MediaContent struct {
	Kind    MediaKind
	FileID  string
	Caption string
}

func (c MediaContent) Summary() string {
	caption := strings.TrimSpace(c.Caption)
	if caption == "" {
		return "[" + string(c.Kind) + "]"
	}
	return "[" + string(c.Kind) + "] " + caption
}

func (MediaContent) isApplicantContent() {}
