package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CrypTokGlobal/tickertrendingbot/internal/infra/fs"
)

func newTestRegistry(t *testing.T) (*Registry, string) {
	t.Helper()
	dir := t.TempDir()
	return NewRegistry(fs.NewStore(dir)), dir
}

func TestTrackAndList(t *testing.T) {
	reg, _ := newTestRegistry(t)

	tok, err := reg.Track(100, ChainEthereum, uniAddress, "Uniswap", "UNI", decimal.NewFromInt(500))
	require.NoError(t, err)
	assert.Equal(t, "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984", tok.Address)
	assert.Equal(t, int64(100), tok.ChatID)
	assert.False(t, tok.AddedAt.IsZero())

	list := reg.List(100)
	require.Len(t, list, 1)
	assert.Equal(t, "UNI", list[0].Symbol)

	// other chats see nothing
	assert.Empty(t, reg.List(200))
}

func TestTrackDuplicate(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Track(100, ChainEthereum, uniAddress, "Uniswap", "UNI", decimal.Zero)
	require.NoError(t, err)

	// same token with different case is still a duplicate
	_, err = reg.Track(100, ChainEthereum, "0x1F9840A85D5AF5BF1D1762F925BDADDC4201F984", "Uniswap", "UNI", decimal.NewFromInt(10))
	assert.ErrorIs(t, err, ErrAlreadyTracked)

	// same address in another chat is fine
	_, err = reg.Track(200, ChainEthereum, uniAddress, "Uniswap", "UNI", decimal.Zero)
	assert.NoError(t, err)
}

func TestTrackValidation(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Track(100, ChainEthereum, "not-an-address", "X", "X", decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = reg.Track(100, Chain("dogecoin"), uniAddress, "X", "X", decimal.Zero)
	assert.ErrorIs(t, err, ErrInvalidChain)

	_, err = reg.Track(100, ChainEthereum, uniAddress, "X", "X", decimal.NewFromInt(-1))
	assert.ErrorIs(t, err, ErrInvalidThreshold)
}

func TestUntrack(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Track(100, ChainEthereum, uniAddress, "Uniswap", "UNI", decimal.Zero)
	require.NoError(t, err)

	err = reg.Untrack(100, ChainEthereum, uniAddress)
	require.NoError(t, err)
	assert.Empty(t, reg.List(100))

	err = reg.Untrack(100, ChainEthereum, uniAddress)
	assert.ErrorIs(t, err, ErrNotTracked)
}

func TestFindTrackersAcrossChats(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Track(100, ChainEthereum, uniAddress, "Uniswap", "UNI", decimal.NewFromInt(5))
	require.NoError(t, err)
	_, err = reg.Track(200, ChainEthereum, uniAddress, "Uniswap", "UNI", decimal.NewFromInt(1000))
	require.NoError(t, err)
	_, err = reg.Track(300, ChainSolana, usdcSolMint, "USD Coin", "USDC", decimal.Zero)
	require.NoError(t, err)

	trackers := reg.FindTrackers(ChainEthereum, uniAddress)
	require.Len(t, trackers, 2)

	// each chat keeps its own threshold
	thresholds := map[int64]string{}
	for _, tok := range trackers {
		thresholds[tok.ChatID] = tok.MinUsdThreshold.String()
	}
	assert.Equal(t, "5", thresholds[100])
	assert.Equal(t, "1000", thresholds[200])

	assert.Empty(t, reg.FindTrackers(ChainBSC, uniAddress))
}

func TestAddressesDeduplicatesAcrossChats(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Track(100, ChainEthereum, uniAddress, "Uniswap", "UNI", decimal.Zero)
	require.NoError(t, err)
	_, err = reg.Track(200, ChainEthereum, uniAddress, "Uniswap", "UNI", decimal.NewFromInt(5))
	require.NoError(t, err)
	_, err = reg.Track(100, ChainSolana, usdcSolMint, "USD Coin", "USDC", decimal.Zero)
	require.NoError(t, err)

	eth := reg.Addresses(ChainEthereum)
	require.Len(t, eth, 1)
	assert.Equal(t, "0x1f9840a85d5af5bf1d1762f925bdaddc4201f984", eth[0])

	assert.Len(t, reg.Addresses(ChainSolana), 1)
	assert.Empty(t, reg.Addresses(ChainBSC))
}

func TestSetCustomization(t *testing.T) {
	reg, _ := newTestRegistry(t)

	_, err := reg.Track(100, ChainEthereum, uniAddress, "Uniswap", "UNI", decimal.Zero)
	require.NoError(t, err)

	err = reg.SetCustomization(100, ChainEthereum, uniAddress, Customization{Emojis: "🦄🦄", Website: "https://uniswap.org"})
	require.NoError(t, err)

	tok, ok := reg.Get(100, ChainEthereum, uniAddress)
	require.True(t, ok)
	require.NotNil(t, tok.Customization)
	assert.Equal(t, "🦄🦄", tok.Customization.Emojis)

	err = reg.SetCustomization(100, ChainSolana, usdcSolMint, Customization{})
	assert.ErrorIs(t, err, ErrNotTracked)
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()

	reg := NewRegistry(fs.NewStore(dir))
	reg.RegisterChat(50) // empty subscription must survive too
	_, err := reg.Track(100, ChainEthereum, uniAddress, "Uniswap", "UNI", decimal.NewFromInt(500))
	require.NoError(t, err)
	require.NoError(t, reg.SetCustomization(100, ChainEthereum, uniAddress, Customization{Emojis: "🦄"}))

	reloaded := NewRegistry(fs.NewStore(dir))
	require.NoError(t, reloaded.Load())

	assert.Equal(t, 2, reloaded.ChatCount())
	assert.Equal(t, 1, reloaded.Count())

	tok, ok := reloaded.Get(100, ChainEthereum, uniAddress)
	require.True(t, ok)
	assert.Equal(t, "UNI", tok.Symbol)
	assert.Equal(t, "500", tok.MinUsdThreshold.String())
	require.NotNil(t, tok.Customization)
	assert.Equal(t, "🦄", tok.Customization.Emojis)
}

func TestLoadMalformedFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tracked_tokens.json"), []byte("{not json"), 0o644))

	reg := NewRegistry(fs.NewStore(dir))
	require.NoError(t, reg.Load())
	assert.Equal(t, 0, reg.Count())
}

func TestLoadMissingFileStartsEmpty(t *testing.T) {
	reg := NewRegistry(fs.NewStore(t.TempDir()))
	require.NoError(t, reg.Load())
	assert.Equal(t, 0, reg.Count())
	assert.Equal(t, 0, reg.ChatCount())
}
