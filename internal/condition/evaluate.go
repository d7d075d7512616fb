package condition

// EvaluatePrice 用实际成交得到的数量判断买入条件
func EvaluatePrice(c PriceCondition, amount uint64) bool {
	switch c.Operator {
	case PriceGT:
		return amount > c.Value
	case PriceGTE:
		return amount >= c.Value
	case PriceLT:
		return amount < c.Value
	case PriceLTE:
		return amount <= c.Value
	case PriceEQ:
		return amount == c.Value
	case PriceNEQ:
		return amount != c.Value
	case PriceBW:
		return amount >= c.FromValue && amount <= c.ToValue
	case PriceNBW:
		return amount < c.FromValue || amount > c.ToValue
	}
	return false
}

// SpentBase 累计存入减去当前余额，最小为 0
func (p Progress) SpentBase() uint64 {
	if p.TotalBaseDeposit < p.BaseBalance {
		return 0
	}
	return p.TotalBaseDeposit - p.BaseBalance
}

func (p Progress) SpentQuote() uint64 {
	if p.TotalQuoteDeposit < p.QuoteBalance {
		return 0
	}
	return p.TotalQuoteDeposit - p.QuoteBalance
}

// StopReached 判断单个停止条件是否达成
func StopReached(c StopCondition, p Progress) bool {
	switch c.Kind {
	case StopEndTime:
		return p.Now >= 0 && uint64(p.Now) >= c.Value
	case StopBaseTokenReach:
		return p.BaseBalance >= c.Value
	case StopQuoteTokenReach:
		return p.QuoteBalance >= c.Value
	case StopSpentBaseTokenReach:
		return p.SpentBase() >= c.Value
	case StopSpentQuoteTokenReach:
		return p.SpentQuote() >= c.Value
	case StopBatchAmountReach:
		return p.ExecutedBatchAmount >= c.Value
	}
	return false
}

// FirstReached 停止条件之间是 OR 关系，不区分 primary 标记
// 返回第一个达成的条件
func FirstReached(stops []StopCondition, p Progress) (StopCondition, bool) {
	for _, s := range stops {
		if StopReached(s, p) {
			return s, true
		}
	}
	return StopCondition{}, false
}
