package queue

import (
	"strings"
	"sync"
	"time"
)

type batch struct {
	msgs     []string
	expireAt time.Time
}

// NotifyQueue holds notifications per chat for a short while so a burst
// of events (several contacts on the same item, say) lands in Telegram
// as one message instead of many.
type NotifyQueue struct {
	mu      *sync.Mutex
	pending map[int64]*batch
	stopCh  chan struct{}

	holdFor  time.Duration // how long to hold a batch open
	ttlCheck time.Duration // how often to look for ripe batches
}

type Config struct {
	HoldFor  time.Duration
	TtlCheck time.Duration
}

func NewNotifyQueue(cfg Config) *NotifyQueue {
	if cfg.HoldFor == 0 {
		cfg.HoldFor = 2 * time.Second
	}
	if cfg.TtlCheck == 0 {
		cfg.TtlCheck = 1 * time.Second
	}
	return &NotifyQueue{
		mu:       &sync.Mutex{},
		pending:  make(map[int64]*batch),
		stopCh:   make(chan struct{}, 1),
		holdFor:  cfg.HoldFor,
		ttlCheck: cfg.TtlCheck,
	}
}

// Add appends a message to the chat's open batch and pushes the batch
// deadline forward.
func (q *NotifyQueue) Add(chatID int64, msg string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	b, ok := q.pending[chatID]
	if !ok {
		b = &batch{}
	}
	b.msgs = append(b.msgs, msg)
	b.expireAt = time.Now().Add(q.holdFor)
	q.pending[chatID] = b
}

func (q *NotifyQueue) Stop() {
	q.stopCh <- struct{}{}
}

// Run delivers ripe batches through onReady, one call per chat, messages
// joined with blank lines.
func (q *NotifyQueue) Run(onReady func(chatID int64, text string)) {
	go func() {
		ticker := time.NewTicker(q.ttlCheck)
		defer ticker.Stop()
		for {
			select {
			case <-q.stopCh:
				return
			case now := <-ticker.C:
				for chatID, b := range q.collectRipe(now) {
					onReady(chatID, strings.Join(b.msgs, "\n\n"))
				}
			}
		}
	}()
}

func (q *NotifyQueue) collectRipe(now time.Time) map[int64]*batch {
	ripe := make(map[int64]*batch)
	q.mu.Lock()
	defer q.mu.Unlock()
	for chatID, b := range q.pending {
		if !b.expireAt.After(now) {
			delete(q.pending, chatID)
			ripe[chatID] = b
		}
	}
	return ripe
}
