// Package swappath implements the Swap Path Executor: walking an
// ordered list of markets, swapping the token held for the opposite pool
// token at each step, applying price impact and the market's swap fee.
package swappath

import (
	"math/big"

	"github.com/holiman/uint256"

	coreerrors "gmsolcore/core/errors"
	"gmsolcore/core/types"
	"gmsolcore/oracle"
)

// Stream is one of the (primary, secondary) output channels a decrease
// order's dual-stream routing needs.
type Stream struct {
	TokenIn    string
	AmountIn   *big.Int
	ExpectedOut *big.Int
}

// StepReport records one hop's swap math for trade-event reconstruction.
type StepReport struct {
	MarketTokenID string
	TokenIn       string
	TokenOut      string
	AmountIn      *big.Int
	AmountOut     *big.Int
	FeeAmount     *big.Int
	ImpactAmount  *big.Int
}

// Result is the swap path executor's output: the two streams' final output
// amounts plus the per-step trail for auditing/trade-event population.
type Result struct {
	AmountOutPrimary   *big.Int
	AmountOutSecondary *big.Int
	Steps              []StepReport
}

// Execute walks path, swapping each stream's current token for the
// opposite pool token of the market at that step. A nil secondary stream is
// permitted for single-stream callers (plain swap orders); decrease orders
// supply both.
func Execute(markets map[string]*types.Market, prices oracle.Prices, path []string, primary, secondary *Stream) (*Result, error) {
	result := &Result{AmountOutPrimary: big.NewInt(0), AmountOutSecondary: big.NewInt(0)}

	runStream := func(stream *Stream) (*big.Int, error) {
		if stream == nil {
			return big.NewInt(0), nil
		}
		currentToken := stream.TokenIn
		currentAmount := new(big.Int).Set(stream.AmountIn)
		for _, marketID := range path {
			m, ok := markets[marketID]
			if !ok || m == nil {
				return nil, coreerrors.New(coreerrors.CodeMarketAccountIsNotProvided, "swap path market not provided").WithAccount(marketID)
			}
			if !m.Enabled {
				return nil, coreerrors.New(coreerrors.CodeDisabledMarket, "swap path market is disabled").WithAccount(marketID)
			}
			outToken, outAmount, fee, impact, err := swapStep(m, prices, currentToken, currentAmount)
			if err != nil {
				return nil, err
			}
			result.Steps = append(result.Steps, StepReport{
				MarketTokenID: marketID,
				TokenIn:       currentToken,
				TokenOut:      outToken,
				AmountIn:      currentAmount,
				AmountOut:     outAmount,
				FeeAmount:     fee,
				ImpactAmount:  impact,
			})
			currentToken = outToken
			currentAmount = outAmount
		}
		if stream.ExpectedOut != nil && currentAmount.Cmp(stream.ExpectedOut) < 0 {
			return nil, coreerrors.New(coreerrors.CodeInsufficientOutputAmount, "swap path output below expected amount")
		}
		return currentAmount, nil
	}

	primaryOut, err := runStream(primary)
	if err != nil {
		return nil, err
	}
	result.AmountOutPrimary = primaryOut

	secondaryOut, err := runStream(secondary)
	if err != nil {
		return nil, err
	}
	result.AmountOutSecondary = secondaryOut

	return result, nil
}

// swapStep routes amountIn of tokenIn through market m, selecting the pool
// counterside by which of the market's two tokens tokenIn matches, and
// applying the market's swap fee and a simple price-impact curve on the
// imbalance the swap introduces.
func swapStep(m *types.Market, prices oracle.Prices, tokenIn string, amountIn *big.Int) (tokenOut string, amountOut, fee, impact *big.Int, err error) {
	var isLongIn bool
	switch tokenIn {
	case m.LongToken:
		tokenOut = m.ShortToken
		isLongIn = true
	case m.ShortToken:
		tokenOut = m.LongToken
		isLongIn = false
	default:
		return "", nil, nil, nil, coreerrors.New(coreerrors.CodeInvalidSwapPath, "token routed at step does not match producing pool").WithAccount(m.MarketTokenID)
	}

	priceIn, err := prices.For(tokenIn)
	if err != nil {
		return "", nil, nil, nil, err
	}
	priceOut, err := prices.For(tokenOut)
	if err != nil {
		return "", nil, nil, nil, err
	}

	valueIn := new(big.Int).Mul(amountIn, priceIn.Pick(false))
	grossOut := new(big.Int).Div(valueIn, priceOut.Pick(true))

	feeBps := big.NewInt(int64(m.Config.SwapFeeFactorBps))
	fee = new(big.Int).Mul(grossOut, feeBps)
	fee.Div(fee, big.NewInt(10_000))

	impact = priceImpact(m, isLongIn, amountIn)

	amountOut = new(big.Int).Sub(grossOut, fee)
	amountOut.Sub(amountOut, impact)
	if amountOut.Sign() < 0 {
		amountOut = big.NewInt(0)
	}

	pool := m.Pool(!isLongIn)
	out256, overflow := uint256.FromBig(amountOut)
	if overflow {
		return "", nil, nil, nil, coreerrors.New(coreerrors.CodeTokenAmountOverflow, "swap output exceeds uint256 range")
	}
	if pool.PrimaryPool.Cmp(out256) < 0 {
		return "", nil, nil, nil, coreerrors.New(coreerrors.CodeNotEnoughTokenAmount, "swap path market has insufficient liquidity").WithAccount(m.MarketTokenID)
	}

	inPool := m.Pool(isLongIn)
	in256, overflow := uint256.FromBig(amountIn)
	if overflow {
		return "", nil, nil, nil, coreerrors.New(coreerrors.CodeTokenAmountOverflow, "swap input exceeds uint256 range")
	}
	inPool.PrimaryPool.Add(inPool.PrimaryPool, in256)
	pool.PrimaryPool.Sub(pool.PrimaryPool, out256)

	claimableFee, overflow := uint256.FromBig(fee)
	if !overflow {
		m.ClaimableFeePool.Add(m.ClaimableFeePool, claimableFee)
	}

	return tokenOut, amountOut, fee, impact, nil
}

// priceImpact applies a simple bps-of-notional impact curve proportional to
// the swap's size against the producing pool's primary-pool depth.
func priceImpact(m *types.Market, isLongIn bool, amountIn *big.Int) *big.Int {
	pool := m.Pool(isLongIn)
	if pool.PrimaryPool == nil || pool.PrimaryPool.IsZero() {
		return big.NewInt(0)
	}
	exponent := m.Config.PositionImpactExponent
	if exponent == 0 {
		exponent = 1
	}
	depth := pool.PrimaryPool.ToBig()
	impact := new(big.Int).Mul(amountIn, amountIn)
	impact.Div(impact, depth)
	impact.Mul(impact, big.NewInt(int64(exponent)))
	impact.Div(impact, big.NewInt(10_000))
	return impact
}
