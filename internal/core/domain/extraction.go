package domain

import "time"

type ExtractionStatus string

const (
	ExtractionReady  ExtractionStatus = "ready"
	ExtractionFailed ExtractionStatus = "failed"
)

const (
	NoTextFoundText      = "No text found in the image."
	ExtractionFailedText = "Text extraction failed for this image."
)

// OCRInput is what an OCR engine receives for one image.
type OCRInput struct {
	EntryID        string
	MimeType       string
	Data           []byte
	EncodedPayload string
}

// OCROutput is the engine's answer for one image.
type OCROutput struct {
	Text   string
	Engine string
}

// ExtractionResult is the settled outcome of one dispatched OCR request.
type ExtractionResult struct {
	EntryID     string           `json:"entry_id"`
	Ordinal     int              `json:"ordinal"`
	Filename    string           `json:"filename"`
	Text        string           `json:"text"`
	Status      ExtractionStatus `json:"status"`
	Engine      string           `json:"engine,omitempty"`
	DurationMS  float64          `json:"duration_ms"`
	CompletedAt time.Time        `json:"completed_at"`
}

func (r ExtractionResult) Failed() bool {
	return r.Status == ExtractionFailed
}
