package service

import (
	"fmt"
	"time"

	"pockettrade.com/internal/condition"
	"pockettrade.com/internal/domain"
	"pockettrade.com/internal/model"
)

// 频率上限一百年，保证 hours*3600 不溢出
const maxFrequencyHours = 24 * 365 * 100

func validatePocketInput(owner string, in domain.CreatePocketInput, now time.Time) error {
	var reason string
	switch {
	case owner == "":
		reason = "owner is required"
	case in.ID == "":
		reason = "id is required"
	case in.Name == "":
		reason = "name is required"
	case in.BaseMint == "" || in.QuoteMint == "":
		reason = "base and quote mint are required"
	case in.BaseMint == in.QuoteMint:
		reason = "base and quote mint must differ"
	case in.MarketKey == "":
		reason = "market key is required"
	case in.Side != model.TradeSideBuy && in.Side != model.TradeSideSell:
		reason = fmt.Sprintf("unknown side %q", in.Side)
	case in.BatchVolume == 0:
		reason = "batch volume must be positive"
	case in.FrequencyHours == 0:
		reason = "frequency hours must be positive"
	case in.FrequencyHours > maxFrequencyHours:
		reason = "frequency hours is too large"
	case in.StartAt < now.Unix():
		reason = "start_at must not be in the past"
	}
	if reason != "" {
		return domain.NewValidationError(reason, domain.ErrInvalidPocket)
	}

	if err := condition.ValidateBuy(in.BuyCondition); err != nil {
		return domain.NewValidationError("invalid buy condition", fmt.Errorf("%w: %w", domain.ErrInvalidPocket, err))
	}
	if err := condition.ValidateStops(in.StopConditions); err != nil {
		return domain.NewValidationError("invalid stop conditions", fmt.Errorf("%w: %w", domain.ErrInvalidPocket, err))
	}
	return nil
}
