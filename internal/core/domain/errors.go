package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrSessionNotFound   = errors.New("session not found")
	ErrExportNotFound    = errors.New("export not found")
	ErrFileTooLarge      = errors.New("file too large")
	ErrUnsupportedMedia  = errors.New("unsupported media type")
	ErrCameraDenied      = errors.New("camera access denied")
	ErrCameraUnsupported = errors.New("camera unsupported")
	ErrCameraInactive    = errors.New("camera not active")
	ErrNothingToExport   = errors.New("nothing to export")
	ErrTemporary         = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
