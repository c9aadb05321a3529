package settingsdelivery

import (
	"github.com/go-petr/marketrush/internal/settingsservice"
	"github.com/go-playground/validator/v10"
)

// ValidRewardInterval validates whether the reward interval is supported.
var ValidRewardInterval validator.Func = func(fl validator.FieldLevel) bool {
	if interval, ok := fl.Field().Interface().(string); ok {
		return settingsservice.ValidRewardInterval(interval)
	}

	return false
}
