package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 24, cfg.Business.ClarificationWindowHours)
	assert.Equal(t, float64(10), cfg.Business.ReferrerBonusPercent)
	assert.Equal(t, float64(5), cfg.Business.ReferredDiscountPercent)
	assert.Equal(t, int64(490), cfg.Business.DefaultServicePrice)
	assert.Equal(t, int64(100), cfg.Business.CurrencySubunitFactor)
	assert.Equal(t, "RUB", cfg.Business.Currency)
	assert.Equal(t, "2.1", cfg.Business.AgreementVersion)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CLARIFICATION_WINDOW_HOURS", "48")
	t.Setenv("REFERRER_BONUS_PERCENT", "12.5")

	cfg := Load()

	assert.Equal(t, 48, cfg.Business.ClarificationWindowHours)
	assert.Equal(t, 12.5, cfg.Business.ReferrerBonusPercent)
}
