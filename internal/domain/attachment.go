package domain

import (
	"strings"
)

// Attachment is stored inline with its message.
type Attachment struct {
	Kind         AttachmentKind `json:"kind"`
	URL          string         `json:"url,omitempty"`
	FileID       string         `json:"fileId,omitempty"`
	Name         string         `json:"name"`
	MimeType     string         `json:"mimeType"`
	Size         *int64         `json:"size,omitempty"`
	Width        *int           `json:"width,omitempty"`
	Height       *int           `json:"height,omitempty"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
}

func (a Attachment) IsImage() bool {
	return a.Kind == AttachmentKindImage
}

// RawAttachment is an attachment as submitted by a client.
type RawAttachment struct {
	Kind         string `json:"kind"`
	URL          string `json:"url"`
	FileID       string `json:"fileId"`
	Name         string `json:"name"`
	MimeType     string `json:"mimeType"`
	Size         *int64 `json:"size"`
	Width        *int   `json:"width"`
	Height       *int   `json:"height"`
	ThumbnailURL string `json:"thumbnailUrl"`
}

// ResolveAttachmentKind uses the declared kind when it is exactly "image" or
// "file" and falls back to the mime type prefix otherwise.
func ResolveAttachmentKind(declared, mimeType string) AttachmentKind {
	switch AttachmentKind(declared) {
	case AttachmentKindImage:
		return AttachmentKindImage
	case AttachmentKindFile:
		return AttachmentKindFile
	}
	if strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return AttachmentKindImage
	}
	return AttachmentKindFile
}

// NormalizeAttachments resolves kinds and drops nil entries. Dimensions are
// only kept for images.
func NormalizeAttachments(raw []*RawAttachment) []Attachment {
	out := make([]Attachment, 0, len(raw))
	for _, r := range raw {
		if r == nil {
			continue
		}
		a := Attachment{
			Kind:         ResolveAttachmentKind(r.Kind, r.MimeType),
			URL:          strings.TrimSpace(r.URL),
			FileID:       r.FileID,
			Name:         r.Name,
			MimeType:     r.MimeType,
			Size:         r.Size,
			ThumbnailURL: r.ThumbnailURL,
		}
		if a.IsImage() {
			a.Width = r.Width
			a.Height = r.Height
		}
		out = append(out, a)
	}
	return out
}

func attachmentMix(attachments []Attachment) (hasImage, hasOther bool) {
	for _, a := range attachments {
		if a.IsImage() {
			hasImage = true
		} else {
			hasOther = true
		}
	}
	return hasImage, hasOther
}

// ResolveMessageType derives the message type from the trimmed body and the
// normalized attachments. It never returns text when attachments exist.
func ResolveMessageType(body string, attachments []Attachment) MessageType {
	if len(attachments) == 0 {
		return MessageTypeText
	}
	if strings.TrimSpace(body) != "" {
		return MessageTypeMixed
	}
	hasImage, hasOther := attachmentMix(attachments)
	switch {
	case hasImage && hasOther:
		return MessageTypeMixed
	case hasOther:
		return MessageTypeFile
	default:
		return MessageTypeImage
	}
}

// PreviewText is the conversation-list preview for a message, with a label
// standing in for an empty body.
func PreviewText(body string, attachments []Attachment) string {
	if text := strings.TrimSpace(body); text != "" {
		return text
	}
	if len(attachments) == 0 {
		return ""
	}
	hasImage, hasOther := attachmentMix(attachments)
	switch {
	case hasImage && hasOther:
		return "Shared attachments"
	case hasOther:
		if len(attachments) > 1 {
			return "Shared files"
		}
		return "Shared a file"
	default:
		if len(attachments) > 1 {
			return "Shared photos"
		}
		return "Shared a photo"
	}
}
