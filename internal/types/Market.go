/*

Market identifiers and the venue-side market descriptor.

A market is the unit of isolation for all vault accounting. Its identifier is computed by the venue
(pair of assets + fee tier) and every per-market record in the vault is keyed by it.

*/

package types

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/shopspring/decimal"
)

// MarketID is the opaque fixed-size key of a market.
type MarketID [32]byte

// NewMarketID derives the identifier of a (base, quote, fee tier) market.
func NewMarketID(baseAsset, quoteAsset string, feeTierBps uint32) MarketID {
	h := sha256.New()
	h.Write([]byte(baseAsset))
	h.Write([]byte{0})
	h.Write([]byte(quoteAsset))
	var tier [4]byte
	binary.BigEndian.PutUint32(tier[:], feeTierBps)
	h.Write(tier[:])

	var id MarketID
	copy(id[:], h.Sum(nil))
	return id
}

// ParseMarketID decodes a hex encoded market identifier.
func ParseMarketID(s string) (MarketID, error) {
	var id MarketID
	if err := id.UnmarshalText([]byte(s)); err != nil {
		return MarketID{}, err
	}
	return id, nil
}

func (m MarketID) String() string {
	return hex.EncodeToString(m[:])
}

// IsZero reports whether the identifier is unset.
func (m MarketID) IsZero() bool {
	return m == MarketID{}
}

func (m MarketID) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *MarketID) UnmarshalText(text []byte) error {
	if len(text) != hex.EncodedLen(len(m)) {
		return fmt.Errorf("market id must be %d hex characters, got %d", hex.EncodedLen(len(m)), len(text))
	}
	if _, err := hex.Decode(m[:], text); err != nil {
		return fmt.Errorf("invalid market id: %w", err)
	}
	return nil
}

// MarketInfo is the descriptor the venue reports for a market.
type MarketInfo struct {
	ID          MarketID        `json:"id"`
	BaseAsset   string          `json:"base_asset"`  // e.g., "uatom"
	QuoteAsset  string          `json:"quote_asset"` // e.g., "uusdc"
	Tick        int32           `json:"tick"`        // current price tick
	SqrtPrice   decimal.Decimal `json:"sqrt_price"`  // exact square-root price; zero when the venue only reports the tick
	TickSpacing int32           `json:"tick_spacing"`
	FeeTierBps  uint32          `json:"fee_tier_bps"`
}
