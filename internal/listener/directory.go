// Package listener provides a name-indexed registry of webhook targets
// for the HTTP surface: callers address a listener by a human-chosen name
// ("billing-service"), not by its in-memory identity. This is entirely
// separate from dispatch's internal Registry, which keys by listener
// reference identity and has no notion of names — Directory exists only
// to give the HTTP API something stable to accept in a JSON request body.
package listener

import (
	"fmt"
	"sync"

	"github.com/notifyhub/dispatcher/internal/invoker"
)

// Directory maps a caller-chosen name to the *invoker.WebhookTarget that
// name resolves to. The same *invoker.WebhookTarget pointer is always
// returned for a given name, so repeated lookups hit the same dispatch
// task rather than spawning a new one per request.
type Directory struct {
	mu        sync.RWMutex
	listeners map[string]*invoker.WebhookTarget
}

// NewDirectory returns an empty Directory.
func NewDirectory() *Directory {
	return &Directory{listeners: make(map[string]*invoker.WebhookTarget)}
}

// Register adds or replaces the target for name. Replacing an existing
// name creates a new listener identity — any notifications still queued
// against the old *WebhookTarget belong to a task that will drain and
// retire independently; they are not migrated.
func (d *Directory) Register(name string, target *invoker.WebhookTarget) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[name] = target
}

// Lookup returns the target registered under name.
func (d *Directory) Lookup(name string) (*invoker.WebhookTarget, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	target, ok := d.listeners[name]
	if !ok {
		return nil, fmt.Errorf("listener: no target registered under name %q", name)
	}
	return target, nil
}

// Names returns every registered listener name, in no particular order.
func (d *Directory) Names() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.listeners))
	for name := range d.listeners {
		names = append(names, name)
	}
	return names
}
