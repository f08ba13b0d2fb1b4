package clipboard

import (
	"context"
	"fmt"
	"sync"

	"github.com/atotto/clipboard"
)

// Memory is a per-process clipboard for headless deployments; the HTTP
// response carries the copied text back to the caller.
type Memory struct {
	mu   sync.Mutex
	text string
}

func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Copy(_ context.Context, text string) error {
	m.mu.Lock()
	m.text = text
	m.mu.Unlock()
	return nil
}

func (m *Memory) Last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// System writes to the host clipboard (xclip/xsel, pbcopy or the Windows API).
type System struct{}

func NewSystem() *System { return &System{} }

// Available reports whether the host has a usable clipboard utility.
func (System) Available() bool { return !clipboard.Unsupported }

func (System) Copy(_ context.Context, text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write system clipboard: %w", err)
	}
	return nil
}
