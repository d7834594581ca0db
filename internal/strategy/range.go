/*

Centered range planner.

The planner keeps a single concentrated position around the current tick. Liquidity is the most the
market's assets can fund over the range at the current square-root price, so a queued position is
always affordable once the placed positions are withdrawn. The placed range is kept while the tick
stays inside it (minus a buffer) and its liquidity stays within a tolerance of that target; otherwise
the range is re-centred, skewed towards where the incoming trade pushes the price.

*/

package strategy

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/elys-network/ammvault/internal/curve"
	"github.com/elys-network/ammvault/internal/types"
	"github.com/elys-network/ammvault/internal/utils"
)

// RangeParams configures CenteredRange.
type RangeParams struct {
	HalfWidthTicks       int32 `json:"half_width_ticks"`       // distance from the centre to each bound
	RebalanceBufferTicks int32 `json:"rebalance_buffer_ticks"` // how close to a bound the tick may get before re-centring
	SkewTicks            int32 `json:"skew_ticks"`             // shift applied in the direction of the incoming trade

	// ResizeToleranceBps is how far the placed liquidity may drift from the target before the
	// position is replaced.
	ResizeToleranceBps uint32 `json:"resize_tolerance_bps"`
}

// Validate checks the parameter relationships.
func (p RangeParams) Validate() error {
	if p.HalfWidthTicks <= 0 {
		return fmt.Errorf("half width must be positive, got %d", p.HalfWidthTicks)
	}
	if p.RebalanceBufferTicks < 0 || p.RebalanceBufferTicks >= p.HalfWidthTicks {
		return fmt.Errorf("rebalance buffer must be in [0, %d), got %d", p.HalfWidthTicks, p.RebalanceBufferTicks)
	}
	if p.SkewTicks < 0 || p.SkewTicks > p.HalfWidthTicks {
		return fmt.Errorf("skew must be in [0, %d], got %d", p.HalfWidthTicks, p.SkewTicks)
	}
	if p.ResizeToleranceBps > bpsDenominator {
		return fmt.Errorf("resize tolerance must be at most %d bps, got %d", bpsDenominator, p.ResizeToleranceBps)
	}
	return nil
}

// CenteredRange is the default Planner.
type CenteredRange struct {
	params RangeParams
}

var _ Planner = (*CenteredRange)(nil)

// NewCenteredRange validates params and returns the planner.
func NewCenteredRange(params RangeParams) (*CenteredRange, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &CenteredRange{params: params}, nil
}

// Params returns the planner configuration.
func (c *CenteredRange) Params() RangeParams {
	return c.params
}

// DeriveQueue implements Planner.
func (c *CenteredRange) DeriveQueue(in QueueInput) ([]types.Position, error) {
	assets := in.Assets.Normalize()
	if assets.IsAnyNegative() {
		return nil, fmt.Errorf("derive queue: negative assets %s", assets)
	}
	if assets.Base.IsZero() || assets.Quote.IsZero() {
		return nil, nil
	}

	sp := in.Market.SqrtPrice
	if !sp.IsPositive() {
		sp = curve.SqrtPriceAtTick(in.Market.Tick)
	}

	tick := in.Market.Tick
	if len(in.Placed) == 1 {
		p := in.Placed[0]
		inside := int64(tick) >= int64(p.Lower)+int64(c.params.RebalanceBufferTicks) &&
			int64(tick) < int64(p.Upper)-int64(c.params.RebalanceBufferTicks)
		if inside {
			keep, err := c.withinTolerance(p, curve.LiquidityForAmounts(assets, p.Lower, p.Upper, sp))
			if err != nil {
				return nil, fmt.Errorf("derive queue: %w", err)
			}
			if keep {
				return []types.Position{p}, nil
			}
		}
	}

	spacing := in.Market.TickSpacing
	if spacing <= 0 {
		spacing = 1
	}

	centre := int64(tick)
	if in.Trade.HasAmount() {
		if in.Trade.BaseForQuote {
			centre -= int64(c.params.SkewTicks)
		} else {
			centre += int64(c.params.SkewTicks)
		}
	}
	centre = floorTo(centre, int64(spacing))
	half := ceilTo(int64(c.params.HalfWidthTicks), int64(spacing))

	lower := clamp(centre-half, int64(spacing))
	upper := clamp(centre+half, int64(spacing))
	if lower >= upper {
		return nil, fmt.Errorf("derive queue: empty range around tick %d", tick)
	}

	liquidity := curve.LiquidityForAmounts(assets, int32(lower), int32(upper), sp)
	if liquidity.IsZero() {
		return nil, nil
	}
	return []types.Position{types.NewPosition(int32(lower), int32(upper), liquidity)}, nil
}

const bpsDenominator = 10_000

// withinTolerance reports whether p's liquidity is within ResizeToleranceBps of target.
func (c *CenteredRange) withinTolerance(p types.Position, target sdkmath.Int) (bool, error) {
	if p.Liquidity.IsNil() || !p.Liquidity.IsPositive() || !target.IsPositive() {
		return false, nil
	}
	allowed, err := utils.MulDivFloor(p.Liquidity, sdkmath.NewIntFromUint64(uint64(c.params.ResizeToleranceBps)), sdkmath.NewInt(bpsDenominator))
	if err != nil {
		return false, err
	}
	return target.Sub(p.Liquidity).Abs().LTE(allowed), nil
}

func floorTo(v, step int64) int64 {
	q := v / step
	if v%step != 0 && v < 0 {
		q--
	}
	return q * step
}

func ceilTo(v, step int64) int64 {
	return -floorTo(-v, step)
}

// clamp keeps a bound inside the venue tick range while staying on the spacing grid.
func clamp(v, spacing int64) int64 {
	minTick := ceilTo(int64(types.MinTick), spacing)
	maxTick := floorTo(int64(types.MaxTick), spacing)
	if v < minTick {
		return minTick
	}
	if v > maxTick {
		return maxTick
	}
	return v
}
