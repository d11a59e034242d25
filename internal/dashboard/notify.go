package dashboard

import (
	"sync"

	"github.com/kjstillabower/weather-dashboard/internal/models"
	"github.com/kjstillabower/weather-dashboard/internal/observability"
)

// Notification variants.
const (
	VariantDestructive = "destructive"
	VariantDefault     = "default"
)

// Notifier receives user-facing notifications. Notify must not block.
type Notifier interface {
	Notify(n models.Notification)
}

// Inbox is an in-process Notifier holding pending notifications until drained.
// When full the oldest notification is dropped.
type Inbox struct {
	mu    sync.Mutex
	items []models.Notification
	max   int
}

// NewInbox returns an Inbox keeping at most max pending notifications (default 20).
func NewInbox(max int) *Inbox {
	if max <= 0 {
		max = 20
	}
	return &Inbox{max: max}
}

func (i *Inbox) Notify(n models.Notification) {
	observability.NotificationsTotal.WithLabelValues(n.Variant).Inc()
	i.mu.Lock()
	defer i.mu.Unlock()
	if len(i.items) == i.max {
		i.items = append(i.items[:0], i.items[1:]...)
	}
	i.items = append(i.items, n)
}

// Drain returns pending notifications oldest first and clears the inbox.
func (i *Inbox) Drain() []models.Notification {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := i.items
	i.items = nil
	if out == nil {
		out = []models.Notification{}
	}
	return out
}

// Len returns the number of pending notifications.
func (i *Inbox) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.items)
}
