// Package notify bridges session notifications to desktop toasts.
package notify

import (
	"log"
	"sync"
	"time"

	"github.com/gen2brain/beeep"
)

// dedupeWindow suppresses repeat notifications carrying the same tag.
const dedupeWindow = 10 * time.Second

// Desktop sends best-effort desktop notifications. Failures are logged and
// otherwise ignored.
type Desktop struct {
	mu       sync.Mutex
	iconPath string
	logger   *log.Logger
	lastTag  string
	lastAt   time.Time
}

// New creates a Desktop notifier. iconPath may be empty.
func New(iconPath string, logger *log.Logger) *Desktop {
	return &Desktop{iconPath: iconPath, logger: logger}
}

// Notify shows a desktop notification. Messages with the tag of the
// previous notification inside the dedupe window are dropped.
func (d *Desktop) Notify(title, body, tag string, timeout bool) {
	d.mu.Lock()
	if tag != "" && tag == d.lastTag && time.Since(d.lastAt) < dedupeWindow {
		d.mu.Unlock()
		return
	}
	d.lastTag = tag
	d.lastAt = time.Now()
	d.mu.Unlock()

	if len(body) > 100 {
		body = body[:97] + "..."
	}

	if err := beeep.Notify(title, body, d.iconPath); err != nil && d.logger != nil {
		d.logger.Printf("desktop notification failed: %v", err)
	}
}
