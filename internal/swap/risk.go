package swap

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/model"
)

// CheckOutcome 校验兑换结果是否在调用方可接受的范围内
//
// 最低期望:  from * rate * 10^quote_decimals
// 实际得到:  to * 10^from_decimals * 10^quote_decimals + spill 折算
// 两者统一到 decimals(from)+decimals(to)+decimals(quote) 精度后比较。
// spill 按第二段的成交价折算成目标资产，strict 时不计入。
func CheckOutcome(o model.SwapOutcome) error {
	if o.FromMint == o.ToMint {
		return domain.ErrSwapTokensCannotMatch
	}
	if o.ToAmount == 0 {
		return domain.ErrZeroSwap
	}

	rate := o.MinExchangeRate
	if rate == nil {
		return nil
	}

	fromScale := pow10(rate.FromDecimals)
	quoteScale := pow10(rate.QuoteDecimals)

	minExpected := amount(o.FromAmount).Mul(amount(rate.Rate)).Mul(quoteScale)
	effective := amount(o.ToAmount).Mul(fromScale).Mul(quoteScale).Add(spillSurplus(o, fromScale, quoteScale))

	if effective.LessThan(minExpected) {
		return fmt.Errorf("effective %s < expected %s: %w", effective, minExpected, domain.ErrSlippageExceeded)
	}
	return nil
}

func spillSurplus(o model.SwapOutcome, fromScale, quoteScale decimal.Decimal) decimal.Decimal {
	if o.SpillAmount == 0 || o.MinExchangeRate.Strict || o.QuoteAmount <= o.SpillAmount {
		return decimal.Zero
	}
	spent := amount(o.QuoteAmount - o.SpillAmount)
	num := amount(o.ToAmount).Mul(amount(o.SpillAmount)).Mul(fromScale).Mul(quoteScale)
	q, _ := num.QuoRem(spent, 0)
	return q
}

func amount(v uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(v), 0)
}

func pow10(d uint8) decimal.Decimal {
	return decimal.New(1, int32(d))
}
