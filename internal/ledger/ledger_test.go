package ledger

import (
	"math/rand"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elys-network/ammvault/internal/fee"
	"github.com/elys-network/ammvault/internal/types"
)

var (
	testMarket = types.NewMarketID("ubase", "uquote", 30)
	alice      = sdk.AccAddress([]byte("alice_______________"))
	bob        = sdk.AccAddress([]byte("bob_________________"))
	carol      = sdk.AccAddress([]byte("carol_______________"))
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l := New(nil)
	require.NoError(t, l.AddMarket(testMarket, "ubase", "uquote"))
	return l
}

func bootstrap(t *testing.T, l *Ledger) sdkmath.Int {
	t.Helper()
	shares, err := l.DepositInitial(testMarket, alice, types.NewAmounts(1000, 2000))
	require.NoError(t, err)
	return shares
}

func sumShares(t *testing.T, l *Ledger, id types.MarketID) sdkmath.Int {
	t.Helper()
	state, err := l.ExportMarket(id)
	require.NoError(t, err)
	sum := sdkmath.ZeroInt()
	for _, v := range state.Shares {
		sum = sum.Add(v)
	}
	return sum
}

func TestAddMarket(t *testing.T) {
	l := newTestLedger(t)

	assert.True(t, l.HasMarket(testMarket))
	assert.ErrorIs(t, l.AddMarket(testMarket, "ubase", "uquote"), types.ErrMarketExists)

	total, err := l.TotalShares(testMarket)
	require.NoError(t, err)
	assert.True(t, total.IsZero())

	_, err = l.TotalShares(types.NewMarketID("a", "b", 1))
	assert.ErrorIs(t, err, types.ErrUnknownMarket)
}

func TestDepositInitial(t *testing.T) {
	l := newTestLedger(t)

	shares := bootstrap(t, l)
	assert.Equal(t, int64(1414), shares.Int64())

	total, _ := l.TotalShares(testMarket)
	user, _ := l.UserShares(testMarket, alice)
	reserves, _ := l.Reserves(testMarket)
	assert.True(t, total.Equal(shares))
	assert.True(t, user.Equal(shares))
	assert.True(t, reserves.Equal(types.NewAmounts(1000, 2000)))

	_, err := l.DepositInitial(testMarket, bob, types.NewAmounts(1, 1))
	assert.ErrorIs(t, err, types.ErrUseDeposit)
}

func TestDepositInitialZeroAmount(t *testing.T) {
	l := newTestLedger(t)

	for _, amounts := range []types.Amounts{types.NewAmounts(0, 10), types.NewAmounts(10, 0), {}} {
		_, err := l.DepositInitial(testMarket, alice, amounts)
		assert.ErrorIs(t, err, types.ErrAmountZero)
	}
	total, _ := l.TotalShares(testMarket)
	assert.True(t, total.IsZero())
}

func TestDepositBeforeBootstrap(t *testing.T) {
	l := newTestLedger(t)

	_, _, err := l.Deposit(testMarket, bob, types.NewAmounts(500, 1000), types.ZeroAmounts())
	assert.ErrorIs(t, err, types.ErrUseDepositInitial)
	assert.Equal(t, types.ErrInvalidState, types.KindOf(err))

	user, _ := l.UserShares(testMarket, bob)
	assert.True(t, user.IsZero())
}

func TestDeposit(t *testing.T) {
	l := newTestLedger(t)
	bootstrap(t, l)

	_, _, err := l.Deposit(testMarket, bob, types.ZeroAmounts(), types.ZeroAmounts())
	assert.ErrorIs(t, err, types.ErrAmountZero)

	used, shares, err := l.Deposit(testMarket, bob, types.NewAmounts(500, 1000), types.ZeroAmounts())
	require.NoError(t, err)
	assert.Equal(t, int64(707), shares.Int64())
	assert.True(t, used.Equal(types.NewAmounts(500, 1000)))

	total, _ := l.TotalShares(testMarket)
	assert.Equal(t, int64(2121), total.Int64())
	assert.True(t, sumShares(t, l, testMarket).Equal(total))
}

func TestDepositCountsDeployedValue(t *testing.T) {
	l := newTestLedger(t)
	bootstrap(t, l)

	// Half of the market sits at the venue: reserves (500, 1000), deployed (500, 1000).
	require.NoError(t, l.DebitReserves(testMarket, types.NewAmounts(500, 1000)))

	_, shares, err := l.Deposit(testMarket, bob, types.NewAmounts(500, 1000), types.NewAmounts(500, 1000))
	require.NoError(t, err)
	assert.Equal(t, int64(707), shares.Int64())

	// the deployed half doubled in value: the same offer buys fewer shares
	_, shares, err = l.Deposit(testMarket, carol, types.NewAmounts(500, 1000), types.NewAmounts(1500, 3000))
	require.NoError(t, err)
	assert.Less(t, shares.Int64(), int64(707))
}

func TestWithdrawWithFee(t *testing.T) {
	l := newTestLedger(t)
	bootstrap(t, l)
	require.NoError(t, l.SetWithdrawFee(testMarket, 100, 1000))

	w, err := l.Withdraw(testMarket, alice, sdkmath.NewInt(142), types.ZeroAmounts())
	require.NoError(t, err)
	assert.True(t, w.Gross.Equal(types.NewAmounts(100, 200)))
	assert.True(t, w.Fee.Equal(types.NewAmounts(1, 2)))
	assert.True(t, w.Net.Equal(types.NewAmounts(99, 198)))

	assert.Equal(t, int64(1), l.AccruedFees("ubase").Int64())
	assert.Equal(t, int64(2), l.AccruedFees("uquote").Int64())

	reserves, _ := l.Reserves(testMarket)
	assert.True(t, reserves.Equal(types.NewAmounts(900, 1800)))
	user, _ := l.UserShares(testMarket, alice)
	assert.Equal(t, int64(1272), user.Int64())
}

func TestWithdrawErrors(t *testing.T) {
	l := newTestLedger(t)
	bootstrap(t, l)

	_, err := l.Withdraw(testMarket, alice, sdkmath.ZeroInt(), types.ZeroAmounts())
	assert.ErrorIs(t, err, types.ErrSharesZero)

	_, err = l.Withdraw(testMarket, bob, sdkmath.NewInt(1), types.ZeroAmounts())
	assert.ErrorIs(t, err, types.ErrInsuffShares)
	assert.Equal(t, types.ErrInsufficientBalance, types.KindOf(err))

	require.NoError(t, l.DebitReserves(testMarket, types.NewAmounts(900, 1800)))
	_, err = l.Withdraw(testMarket, alice, sdkmath.NewInt(1000), types.NewAmounts(900, 1800))
	assert.ErrorIs(t, err, types.ErrInsuffReserves)

	total, _ := l.TotalShares(testMarket)
	assert.Equal(t, int64(1414), total.Int64())
}

func TestPreviewWithdrawMatchesWithdraw(t *testing.T) {
	l := newTestLedger(t)
	bootstrap(t, l)
	require.NoError(t, l.SetWithdrawFee(testMarket, 250, 1000))

	preview, err := l.PreviewWithdraw(testMarket, alice, sdkmath.NewInt(500), types.ZeroAmounts())
	require.NoError(t, err)
	w, err := l.Withdraw(testMarket, alice, sdkmath.NewInt(500), types.ZeroAmounts())
	require.NoError(t, err)
	assert.Equal(t, preview, w)
}

func TestFullExitAllowsRebootstrap(t *testing.T) {
	l := newTestLedger(t)
	shares := bootstrap(t, l)

	_, err := l.Withdraw(testMarket, alice, shares, types.ZeroAmounts())
	require.NoError(t, err)

	total, _ := l.TotalShares(testMarket)
	assert.True(t, total.IsZero())
	reserves, _ := l.Reserves(testMarket)
	assert.True(t, reserves.IsZero())

	_, err = l.DepositInitial(testMarket, bob, types.NewAmounts(10, 10))
	require.NoError(t, err)
}

func TestSetWithdrawFee(t *testing.T) {
	l := newTestLedger(t)

	assert.ErrorIs(t, l.SetWithdrawFee(testMarket, 0, 1000), types.ErrFeeUnchanged)
	require.NoError(t, l.SetWithdrawFee(testMarket, 50, 1000))
	assert.ErrorIs(t, l.SetWithdrawFee(testMarket, 50, 1000), types.ErrFeeUnchanged)
	assert.ErrorIs(t, l.SetWithdrawFee(testMarket, 1001, 1000), types.ErrFeeOverflow)
	// a limit above 100% is still capped
	assert.ErrorIs(t, l.SetWithdrawFee(testMarket, fee.MaxRateBps+1, fee.MaxRateBps+10), types.ErrFeeOverflow)

	rate, err := l.WithdrawFeeRate(testMarket)
	require.NoError(t, err)
	assert.Equal(t, uint32(50), rate)
}

func TestCollectFees(t *testing.T) {
	l := newTestLedger(t)
	bootstrap(t, l)
	require.NoError(t, l.SetWithdrawFee(testMarket, 100, 1000))
	_, err := l.Withdraw(testMarket, alice, sdkmath.NewInt(707), types.ZeroAmounts())
	require.NoError(t, err)

	accrued := l.AccruedFees("ubase")
	assert.Equal(t, int64(5), accrued.Int64())

	assert.ErrorIs(t, l.CollectFees("ubase", sdkmath.ZeroInt()), types.ErrAmountZero)
	assert.ErrorIs(t, l.CollectFees("ubase", accrued.AddRaw(1)), types.ErrInsuffFees)
	assert.ErrorIs(t, l.CollectFees("unknown", sdkmath.OneInt()), types.ErrInsuffFees)

	require.NoError(t, l.CollectFees("ubase", sdkmath.NewInt(2)))
	assert.Equal(t, int64(3), l.AccruedFees("ubase").Int64())
	assert.Equal(t, []string{"ubase", "uquote"}, l.FeeAssets())
}

func TestCheckpointRevert(t *testing.T) {
	l := newTestLedger(t)
	bootstrap(t, l)
	require.NoError(t, l.SetWithdrawFee(testMarket, 100, 1000))

	cp := l.Checkpoint(testMarket)
	_, err := l.Withdraw(testMarket, alice, sdkmath.NewInt(142), types.ZeroAmounts())
	require.NoError(t, err)
	_, _, err = l.Deposit(testMarket, bob, types.NewAmounts(10, 20), types.ZeroAmounts())
	require.NoError(t, err)

	l.Revert(cp)

	user, _ := l.UserShares(testMarket, alice)
	assert.Equal(t, int64(1414), user.Int64())
	bobShares, _ := l.UserShares(testMarket, bob)
	assert.True(t, bobShares.IsZero())
	assert.True(t, l.AccruedFees("ubase").IsZero())
	reserves, _ := l.Reserves(testMarket)
	assert.True(t, reserves.Equal(types.NewAmounts(1000, 2000)))
}

func TestCheckpointRevertRemovesNewMarket(t *testing.T) {
	l := New(nil)
	cp := l.Checkpoint(testMarket)
	require.NoError(t, l.AddMarket(testMarket, "ubase", "uquote"))

	l.Revert(cp)
	assert.False(t, l.HasMarket(testMarket))
}

func TestExportImport(t *testing.T) {
	l := newTestLedger(t)
	bootstrap(t, l)
	_, _, err := l.Deposit(testMarket, bob, types.NewAmounts(100, 200), types.ZeroAmounts())
	require.NoError(t, err)

	state, err := l.ExportMarket(testMarket)
	require.NoError(t, err)

	restored := New(nil)
	require.NoError(t, restored.ImportMarket(state))
	again, err := restored.ExportMarket(testMarket)
	require.NoError(t, err)
	assert.Equal(t, state, again)

	state.TotalShares = state.TotalShares.AddRaw(1)
	assert.ErrorIs(t, New(nil).ImportMarket(state), types.ErrInvalidState)
}

func TestMarketsAreIsolated(t *testing.T) {
	l := newTestLedger(t)
	other := types.NewMarketID("ubase", "uother", 30)
	require.NoError(t, l.AddMarket(other, "ubase", "uother"))
	bootstrap(t, l)

	total, _ := l.TotalShares(other)
	assert.True(t, total.IsZero())
	_, _, err := l.Deposit(other, bob, types.NewAmounts(1, 1), types.ZeroAmounts())
	assert.ErrorIs(t, err, types.ErrUseDepositInitial)
	assert.Len(t, l.Markets(), 2)
}

// Random deposit/withdraw sequences must keep balances summing to the supply, must never pay out more
// than was deposited, and must never lower the per-share value seen by the remaining holders.
func TestConservationUnderRandomSequences(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	accounts := []sdk.AccAddress{alice, bob, carol}

	for round := 0; round < 20; round++ {
		l := newTestLedger(t)
		_, err := l.DepositInitial(testMarket, alice, types.NewAmounts(rng.Int63n(1_000_000)+1, rng.Int63n(1_000_000)+1))
		require.NoError(t, err)
		require.NoError(t, l.SetWithdrawFee(testMarket, uint32(rng.Intn(500)+1), 1000))

		deposited, _ := l.Reserves(testMarket)
		paid := types.ZeroAmounts()

		for step := 0; step < 200; step++ {
			account := accounts[rng.Intn(len(accounts))]
			before, _ := l.Reserves(testMarket)
			totalBefore, _ := l.TotalShares(testMarket)

			if rng.Intn(2) == 0 {
				offer := types.NewAmounts(rng.Int63n(50_000), rng.Int63n(50_000))
				used, _, err := l.Deposit(testMarket, account, offer, types.ZeroAmounts())
				if err != nil {
					continue
				}
				deposited = deposited.Add(used)
			} else {
				balance, _ := l.UserShares(testMarket, account)
				if !balance.IsPositive() {
					continue
				}
				shares := sdkmath.NewInt(rng.Int63n(balance.Int64()) + 1)
				w, err := l.Withdraw(testMarket, account, shares, types.ZeroAmounts())
				require.NoError(t, err)
				paid = paid.Add(w.Gross)
			}

			total, _ := l.TotalShares(testMarket)
			require.True(t, sumShares(t, l, testMarket).Equal(total))

			after, _ := l.Reserves(testMarket)
			if totalBefore.IsPositive() && total.IsPositive() {
				// after/total >= before/totalBefore on both legs
				require.True(t, after.Base.Mul(totalBefore).GTE(before.Base.Mul(total)))
				require.True(t, after.Quote.Mul(totalBefore).GTE(before.Quote.Mul(total)))
			}
		}

		require.True(t, deposited.GTE(paid))
	}
}

func TestProportionalPayoutAcrossDepositors(t *testing.T) {
	l := newTestLedger(t)
	bootstrap(t, l)
	_, shares, err := l.Deposit(testMarket, bob, types.NewAmounts(1000, 2000), types.ZeroAmounts())
	require.NoError(t, err)
	require.Equal(t, int64(1414), shares.Int64())

	a, err := l.PreviewWithdraw(testMarket, alice, sdkmath.NewInt(300), types.ZeroAmounts())
	require.NoError(t, err)
	b, err := l.PreviewWithdraw(testMarket, bob, sdkmath.NewInt(300), types.ZeroAmounts())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}
