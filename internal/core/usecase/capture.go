package usecase

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/core/ports"
)

const mimePDF = "application/pdf"

// CaptureValidator normalizes uploads and camera frames into image entries.
type CaptureValidator struct {
	codec    ports.ImageCodec
	maxBytes int64
	now      func() time.Time
}

func NewCaptureValidator(codec ports.ImageCodec, maxBytes int64) *CaptureValidator {
	if maxBytes <= 0 {
		maxBytes = domain.MaxImageBytes
	}
	return &CaptureValidator{
		codec:    codec,
		maxBytes: maxBytes,
		now:      time.Now,
	}
}

// SelectFiles validates every upload independently. Rejected files never become entries.
func (v *CaptureValidator) SelectFiles(uploads []domain.Upload) domain.CaptureOutcome {
	outcome := domain.CaptureOutcome{
		Accepted: make([]domain.ImageEntry, 0, len(uploads)),
		Rejected: []domain.FileRejection{},
	}
	for _, upload := range uploads {
		entry, err := v.accept(upload, domain.SourceUpload)
		if err != nil {
			outcome.Rejected = append(outcome.Rejected, domain.FileRejection{
				Filename: upload.Filename,
				Size:     uploadSize(upload),
				Message:  rejectionMessage(upload.Filename, err),
				Err:      err,
			})
			continue
		}
		outcome.Accepted = append(outcome.Accepted, entry)
	}
	return outcome
}

// FromFrame rasterizes a camera frame to PNG and wraps it as a synthesized file. Frames are
// bounded by the codec's pixel cap, not by the upload byte limit.
func (v *CaptureValidator) FromFrame(frame []byte, seq int) (domain.ImageEntry, error) {
	if len(frame) == 0 {
		return domain.ImageEntry{}, domain.WrapError(domain.ErrInvalidInput, "capture frame", errors.New("empty frame"))
	}
	png, err := v.codec.Rasterize(frame)
	if err != nil {
		return domain.ImageEntry{}, domain.WrapError(domain.ErrUnsupportedMedia, "rasterize frame", err)
	}
	return v.accept(domain.Upload{
		Filename: fmt.Sprintf("capture-%d.png", seq),
		MimeType: "image/png",
		Size:     int64(len(png)),
		Data:     png,
	}, domain.SourceCamera)
}

func (v *CaptureValidator) accept(upload domain.Upload, source domain.ImageSource) (domain.ImageEntry, error) {
	size := uploadSize(upload)
	if size == 0 {
		return domain.ImageEntry{}, domain.WrapError(domain.ErrInvalidInput, "validate file", errors.New("empty file"))
	}
	if source == domain.SourceUpload && size > v.maxBytes {
		return domain.ImageEntry{}, domain.WrapError(
			domain.ErrFileTooLarge,
			"validate file",
			fmt.Errorf("%d bytes exceeds limit of %d", size, v.maxBytes),
		)
	}

	data := upload.Data
	mimeType := v.codec.Sniff(data)
	switch {
	case mimeType == mimePDF:
	case isPassThroughImage(mimeType):
	case strings.HasPrefix(mimeType, "image/"):
		png, err := v.codec.Rasterize(data)
		if err != nil {
			return domain.ImageEntry{}, domain.WrapError(domain.ErrUnsupportedMedia, "normalize image", err)
		}
		data = png
		mimeType = "image/png"
	default:
		return domain.ImageEntry{}, domain.WrapError(
			domain.ErrUnsupportedMedia,
			"validate file",
			fmt.Errorf("content type %q", mimeType),
		)
	}

	filename := filepath.Base(strings.TrimSpace(upload.Filename))
	if filename == "" || filename == "." || filename == "/" {
		filename = "image"
	}

	return domain.ImageEntry{
		ID:             uuid.NewString(),
		Filename:       filename,
		MimeType:       mimeType,
		Size:           int64(len(data)),
		Source:         source,
		Data:           data,
		EncodedPayload: EncodePayload(mimeType, data),
		CreatedAt:      v.now().UTC(),
	}, nil
}

// EncodePayload renders data as a base64 data URL.
func EncodePayload(mimeType string, data []byte) string {
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func isPassThroughImage(mimeType string) bool {
	switch mimeType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func uploadSize(upload domain.Upload) int64 {
	if n := int64(len(upload.Data)); n > upload.Size {
		return n
	}
	return upload.Size
}

func rejectionMessage(filename string, err error) string {
	var msg string
	switch {
	case domain.IsKind(err, domain.ErrFileTooLarge):
		msg = domain.MsgFileTooLarge
	case domain.IsKind(err, domain.ErrUnsupportedMedia):
		msg = domain.MsgUnsupportedMedia
	default:
		msg = domain.MsgNoImage
	}
	if strings.TrimSpace(filename) == "" {
		return msg
	}
	return filename + ": " + msg
}
