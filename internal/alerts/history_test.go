package alerts

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/registry"
)

func record(i int) AlertRecord {
	return AlertRecord{
		Timestamp: time.Now().UTC(),
		Chain:     registry.ChainEthereum,
		Token:     "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984",
		Symbol:    "UNI",
		UsdValue:  decimal.NewFromInt(int64(i)),
		ChatID:    int64(i),
	}
}

func TestHistoryBounded(t *testing.T) {
	h := NewHistory(3)

	for i := 1; i <= 5; i++ {
		h.Add(record(i))
	}

	assert.Equal(t, 3, h.Len())

	// only the three most recent survive, newest first
	recent := h.Recent(0)
	require.Len(t, recent, 3)
	assert.Equal(t, int64(5), recent[0].ChatID)
	assert.Equal(t, int64(4), recent[1].ChatID)
	assert.Equal(t, int64(3), recent[2].ChatID)
}

func TestHistoryRecentLimit(t *testing.T) {
	h := NewHistory(10)
	for i := 1; i <= 5; i++ {
		h.Add(record(i))
	}

	recent := h.Recent(2)
	require.Len(t, recent, 2)
	assert.Equal(t, int64(5), recent[0].ChatID)
	assert.Equal(t, int64(4), recent[1].ChatID)
}

func TestHistoryEmpty(t *testing.T) {
	h := NewHistory(10)
	assert.Equal(t, 0, h.Len())
	assert.Empty(t, h.Recent(5))
}
