package domain

import "time"

// SessionSnapshot is a read-only copy of a capture session's state.
type SessionSnapshot struct {
	ID           string             `json:"id"`
	Entries      []ImageEntry       `json:"entries"`
	Results      []ExtractionResult `json:"results"`
	Outstanding  int                `json:"outstanding"`
	Extracting   bool               `json:"extracting"`
	Error        string             `json:"error,omitempty"`
	CameraActive bool               `json:"camera_active"`
	LastCopied   string             `json:"last_copied,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// User-facing messages surfaced through the session error state.
const (
	MsgFileTooLarge      = "Image size should be less than 4MB."
	MsgUnsupportedMedia  = "Only image files and PDF documents are supported."
	MsgNoImage           = "Please select or capture an image first."
	MsgExtractionFailed  = "Failed to extract text. The image might be too complex or not contain clearly visible text. Please try another image."
	MsgCameraDenied      = "Camera access was denied or is unavailable. Please check your camera permissions."
	MsgCameraUnsupported = "Camera access is not supported on this device."
	MsgCameraInactive    = "Camera is not active. Start the camera before capturing."
	MsgCameraFrame       = "Could not read an image from the camera. Please try again."
	MsgNothingToExport   = "No text to export."
	MsgCopyFailed        = "Could not copy text to clipboard."
)
