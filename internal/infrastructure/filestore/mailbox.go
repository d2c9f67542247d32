// Package filestore keeps the pending checkout on local disk so it survives a
// process restart while the cashier is on the hosted payment page.
package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	domain "github.com/Zhima-Mochi/coffeerealm-pos/internal/domain/payment"
)

// Mailbox stores one JSON document at Dir/<MailboxKey>.json.
type Mailbox struct {
	mu   sync.Mutex
	path string
}

func NewMailbox(dir string) (*Mailbox, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("filestore: prepare %s: %w", dir, err)
	}
	return &Mailbox{path: filepath.Join(dir, domain.MailboxKey+".json")}, nil
}

func (m *Mailbox) Path() string { return m.path }

// Save replaces the slot atomically via a temp file and rename.
func (m *Mailbox) Save(ctx context.Context, p domain.PendingCheckout) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("filestore: encode: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(m.path), ".pending-*")
	if err != nil {
		return fmt.Errorf("filestore: temp file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("filestore: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("filestore: close: %w", err)
	}
	if err := os.Rename(tmp.Name(), m.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("filestore: rename: %w", err)
	}
	return nil
}

// Take reads and removes the slot. A corrupt document is removed and reported
// as empty together with the decode error.
func (m *Mailbox) Take(ctx context.Context) (*domain.PendingCheckout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	raw, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filestore: read: %w", err)
	}
	if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("filestore: remove: %w", err)
	}

	var p domain.PendingCheckout
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("filestore: decode: %w", err)
	}
	return &p, nil
}

func (m *Mailbox) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := os.Remove(m.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("filestore: remove: %w", err)
	}
	return nil
}
