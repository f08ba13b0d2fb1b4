package domain

import "time"

// MaxImageBytes is the upper bound for a single uploaded or captured image.
const MaxImageBytes = 4 * 1024 * 1024

type ImageSource string

const (
	SourceUpload ImageSource = "upload"
	SourceCamera ImageSource = "camera"
)

// Upload is a raw file handed to the capture adapter before validation.
type Upload struct {
	Filename string
	MimeType string
	Size     int64
	Data     []byte
}

// ImageEntry is an accepted image. Entries are never mutated after creation.
type ImageEntry struct {
	ID             string      `json:"id"`
	Filename       string      `json:"filename"`
	MimeType       string      `json:"mime_type"`
	Size           int64       `json:"size"`
	Source         ImageSource `json:"source"`
	Data           []byte      `json:"-"`
	EncodedPayload string      `json:"-"`
	CreatedAt      time.Time   `json:"created_at"`
}

// ImagePreview is the displayable form of one entry.
type ImagePreview struct {
	Index        int         `json:"index"`
	EntryID      string      `json:"entry_id"`
	Filename     string      `json:"filename"`
	MimeType     string      `json:"mime_type"`
	Size         int64       `json:"size"`
	Source       ImageSource `json:"source"`
	ImageDataURL string      `json:"image_data_url"`
}

// FileRejection explains why a single upload did not become an ImageEntry.
type FileRejection struct {
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	Message  string `json:"message"`
	Err      error  `json:"-"`
}

// CaptureOutcome reports which uploads were accepted and dispatched and which were rejected.
type CaptureOutcome struct {
	Accepted []ImageEntry    `json:"accepted"`
	Rejected []FileRejection `json:"rejected"`
}
