/*

This file contains the position types shared by the position store, the strategy and the venue.

A Position is a concentrated-liquidity range order. Placed positions additionally remember the
principal the vault handed to the venue so committed liquidity can be valued without asking the venue.

*/

package types

import (
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Tick bounds accepted by the venue.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// Position is a liquidity range held (or to be held) at the venue.
type Position struct {
	Lower     int32       `json:"lower"`
	Upper     int32       `json:"upper"`
	Liquidity sdkmath.Int `json:"liquidity"`
}

// NewPosition builds a position from its bounds and liquidity.
func NewPosition(lower, upper int32, liquidity sdkmath.Int) Position {
	return Position{Lower: lower, Upper: upper, Liquidity: liquidity}
}

// Validate checks the bounds ordering and the liquidity sign.
func (p Position) Validate() error {
	if p.Lower > p.Upper {
		return fmt.Errorf("lower bound %d above upper bound %d", p.Lower, p.Upper)
	}
	if p.Lower < MinTick || p.Upper > MaxTick {
		return fmt.Errorf("bounds [%d, %d] outside [%d, %d]", p.Lower, p.Upper, MinTick, MaxTick)
	}
	if p.Liquidity.IsNil() || p.Liquidity.IsNegative() {
		return fmt.Errorf("liquidity must be non-negative")
	}
	return nil
}

// IsZero reports whether the position holds no liquidity.
func (p Position) IsZero() bool {
	return p.Liquidity.IsNil() || p.Liquidity.IsZero()
}

// Equal compares all three fields.
func (p Position) Equal(o Position) bool {
	if p.Lower != o.Lower || p.Upper != o.Upper {
		return false
	}
	if p.Liquidity.IsNil() || o.Liquidity.IsNil() {
		return p.IsZero() && o.IsZero()
	}
	return p.Liquidity.Equal(o.Liquidity)
}

func (p Position) String() string {
	return fmt.Sprintf("[%d, %d]@%s", p.Lower, p.Upper, p.Liquidity)
}

// EqualPositions compares two ordered position lists element by element.
func EqualPositions(a, b []Position) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// PlacedPosition is a position held at the venue together with the amounts it consumed.
type PlacedPosition struct {
	Position  Position `json:"position"`
	Principal Amounts  `json:"principal"`
}
