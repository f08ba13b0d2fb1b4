package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/textify/internal/core/domain"
	"github.com/kirillkom/textify/internal/core/ports"
)

const maxFrameBytes = 16 << 20

// Camera grabs still frames from a network camera's snapshot endpoint
// (e.g. an IP camera's /snapshot.jpg). A test request on Open stands in for the
// permission prompt: 401/403 means access denied, no URL or no answer means unsupported.
type Camera struct {
	url        string
	httpClient *http.Client
}

func New(url string, timeout time.Duration) *Camera {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Camera{
		url:        strings.TrimSpace(url),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Camera) Open(ctx context.Context) (ports.MediaStream, error) {
	if c.url == "" {
		return nil, domain.WrapError(domain.ErrCameraUnsupported, "open camera", errors.New("no camera configured"))
	}
	if _, err := c.grab(ctx); err != nil {
		return nil, err
	}
	return &stream{camera: c}, nil
}

func (c *Camera) grab(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCameraUnsupported, "camera request", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCameraUnsupported, "camera request", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, domain.WrapError(domain.ErrCameraDenied, "camera request", fmt.Errorf("status %s", resp.Status))
	case resp.StatusCode >= 300:
		return nil, domain.WrapError(domain.ErrCameraUnsupported, "camera request", fmt.Errorf("status %s", resp.Status))
	}

	frame, err := io.ReadAll(io.LimitReader(resp.Body, maxFrameBytes+1))
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "read camera frame", err)
	}
	if len(frame) > maxFrameBytes {
		return nil, domain.WrapError(domain.ErrFileTooLarge, "read camera frame", fmt.Errorf("frame exceeds %d bytes", maxFrameBytes))
	}
	return frame, nil
}

type stream struct {
	camera *Camera

	mu      sync.Mutex
	stopped bool
}

func (s *stream) Frame(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return nil, domain.WrapError(domain.ErrCameraInactive, "camera frame", errors.New("stream stopped"))
	}
	return s.camera.grab(ctx)
}

func (s *stream) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}
