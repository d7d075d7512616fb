package condition

import "fmt"

// ValidPrice 校验买入条件: 阈值必须 > 0，区间需满足 to >= from > 0
func ValidPrice(c PriceCondition) bool {
	switch c.Operator {
	case PriceGT, PriceGTE, PriceLT, PriceLTE, PriceEQ, PriceNEQ:
		return c.Value > 0
	case PriceBW, PriceNBW:
		return c.ToValue >= c.FromValue && c.FromValue > 0
	default:
		return false
	}
}

// ValidStop 校验单个停止条件
func ValidStop(c StopCondition) bool {
	switch c.Kind {
	case StopEndTime, StopBaseTokenReach, StopQuoteTokenReach,
		StopSpentBaseTokenReach, StopSpentQuoteTokenReach, StopBatchAmountReach:
		return c.Value > 0
	default:
		return false
	}
}

// ValidateStops 逐个校验停止条件，且最多只能有一个 primary
func ValidateStops(stops []StopCondition) error {
	primaries := 0
	for i, s := range stops {
		if !ValidStop(s) {
			return fmt.Errorf("stop condition #%d (%s): %w", i, s.Kind, ErrInvalidStopCondition)
		}
		if s.IsPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		return ErrMultiplePrimary
	}
	return nil
}

// ValidateBuy 校验可选的买入条件 (nil 视为合法)
func ValidateBuy(c *PriceCondition) error {
	if c == nil {
		return nil
	}
	if !ValidPrice(*c) {
		return fmt.Errorf("%s: %w", c.Operator, ErrInvalidBuyCondition)
	}
	return nil
}
