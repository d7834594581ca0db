package types

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	sdkmath "cosmossdk.io/math"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketID(t *testing.T) {
	a := NewMarketID("uatom", "uusdc", 30)
	assert.Equal(t, a, NewMarketID("uatom", "uusdc", 30))
	assert.NotEqual(t, a, NewMarketID("uatom", "uusdc", 5))
	assert.NotEqual(t, a, NewMarketID("uusdc", "uatom", 30))
	assert.NotEqual(t, NewMarketID("ab", "c", 1), NewMarketID("a", "bc", 1))
	assert.False(t, a.IsZero())
	assert.True(t, MarketID{}.IsZero())

	parsed, err := ParseMarketID(a.String())
	require.NoError(t, err)
	assert.Equal(t, a, parsed)
	assert.Len(t, a.String(), 64)

	_, err = ParseMarketID("abc")
	assert.Error(t, err)
	_, err = ParseMarketID(fmt.Sprintf("%064s", "zz"))
	assert.Error(t, err)
}

func TestMarketIDAsMapKey(t *testing.T) {
	id := NewMarketID("uosmo", "uusdc", 5)
	raw, err := json.Marshal(map[MarketID]int{id: 7})
	require.NoError(t, err)

	var decoded map[MarketID]int
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, 7, decoded[id])
}

func TestAmounts(t *testing.T) {
	a := NewAmounts(10, 20)
	b := NewAmounts(3, 25)

	assert.True(t, a.Add(b).Equal(NewAmounts(13, 45)))
	assert.True(t, a.Sub(b).Equal(NewAmounts(7, -5)))
	assert.True(t, a.Sub(b).IsAnyNegative())
	assert.False(t, a.IsAnyNegative())
	assert.False(t, a.GTE(b))
	assert.True(t, a.GTE(NewAmounts(10, 20)))
	assert.Equal(t, "(10, 20)", a.String())

	var unset Amounts
	assert.True(t, unset.IsZero())
	assert.True(t, unset.Equal(ZeroAmounts()))
	assert.True(t, unset.Add(a).Equal(a))

	coins := NewAmounts(0, 5).Coins("ubase", "uquote")
	require.Len(t, coins, 1)
	assert.Equal(t, "uquote", coins[0].Denom)
	assert.Equal(t, int64(5), coins[0].Amount.Int64())
}

func TestPositionValidate(t *testing.T) {
	tests := []struct {
		name    string
		pos     Position
		wantErr bool
	}{
		{"ok", NewPosition(-100, 100, sdkmath.NewInt(5)), false},
		{"single tick", NewPosition(7, 7, sdkmath.ZeroInt()), false},
		{"inverted", NewPosition(100, -100, sdkmath.NewInt(5)), true},
		{"below min tick", NewPosition(MinTick-1, 0, sdkmath.NewInt(5)), true},
		{"above max tick", NewPosition(0, MaxTick+1, sdkmath.NewInt(5)), true},
		{"negative liquidity", NewPosition(-1, 1, sdkmath.NewInt(-1)), true},
		{"nil liquidity", Position{Lower: -1, Upper: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pos.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestPositionEqual(t *testing.T) {
	p := NewPosition(-10, 10, sdkmath.NewInt(3))
	assert.True(t, p.Equal(NewPosition(-10, 10, sdkmath.NewInt(3))))
	assert.False(t, p.Equal(NewPosition(-10, 20, sdkmath.NewInt(3))))
	assert.False(t, p.Equal(NewPosition(-10, 10, sdkmath.NewInt(4))))
	assert.True(t, Position{Lower: 1, Upper: 2}.Equal(NewPosition(1, 2, sdkmath.ZeroInt())))
	assert.Equal(t, "[-10, 10]@3", p.String())

	assert.True(t, EqualPositions(nil, []Position{}))
	assert.False(t, EqualPositions([]Position{p}, nil))
	assert.True(t, EqualPositions([]Position{p}, []Position{NewPosition(-10, 10, sdkmath.NewInt(3))}))
}

func TestTradeParamsHasAmount(t *testing.T) {
	assert.False(t, TradeParams{}.HasAmount())
	assert.False(t, TradeParams{Amount: sdkmath.ZeroInt()}.HasAmount())
	assert.True(t, TradeParams{Amount: sdkmath.NewInt(1)}.HasAmount())
}

func TestKindOf(t *testing.T) {
	assert.Nil(t, KindOf(nil))
	assert.Nil(t, KindOf(errors.New("plain")))

	assert.Same(t, ErrUnauthorized, KindOf(ErrOnlyOwner))
	assert.Same(t, ErrInvalidAmount, KindOf(ErrAmountZero.Wrap("base")))
	assert.Same(t, ErrInvalidState, KindOf(ErrReentrantCall))
	assert.Same(t, ErrInvalidState, KindOf(ErrCallInFlight.Wrap("deposit")))
	assert.Same(t, ErrInsufficientBalance, KindOf(ErrInsuffShares.Wrapf("have %d", 1)))
	assert.Same(t, ErrInvalidConfig, KindOf(ErrFeeOverflow))
	assert.Same(t, ErrExternalFailure, KindOf(errors.Join(ErrVenueFailure, errors.New("timeout"))))
	assert.Same(t, ErrInvalidConfig, KindOf(ErrInvalidConfig.Wrap("bad")))
}

func TestKindsCoverEverySpecificError(t *testing.T) {
	seen := make(map[uint32]bool)
	for _, k := range kinds {
		assert.False(t, seen[k.specific.ABCICode()], "duplicate entry for %s", k.specific)
		seen[k.specific.ABCICode()] = true
		assert.Equal(t, ModuleName, k.specific.Codespace())
	}
	assert.Len(t, seen, 22)
}
