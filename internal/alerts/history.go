package alerts

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

// AlertRecord captures one delivered alert for status display.
type AlertRecord struct {
	Timestamp    time.Time
	Chain        registry.Chain
	Token        string
	Symbol       string
	UsdValue     decimal.Decimal
	ChatID       int64
	TxHash       string
	RenderedText string
}

// History keeps the most recent delivered alerts, bounded in memory.
type History struct {
	mu      sync.Mutex
	max     int
	records []AlertRecord
}

func NewHistory(max int) *History {
	if max <= 0 {
		max = 100
	}
	return &History{max: max}
}

func (h *History) Add(rec AlertRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.records = append(h.records, rec)
	if len(h.records) > h.max {
		h.records = h.records[len(h.records)-h.max:]
	}
}

// Recent returns up to n records, newest first.
func (h *History) Recent(n int) []AlertRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if n <= 0 || n > len(h.records) {
		n = len(h.records)
	}

	out := make([]AlertRecord, 0, n)
	for i := len(h.records) - 1; i >= len(h.records)-n; i-- {
		out = append(out, h.records[i])
	}
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.records)
}
