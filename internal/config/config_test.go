package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENV", "")
	cfg := Load()

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, time.Hour, cfg.Security.BanBaseDuration)
	assert.Equal(t, 6, cfg.Security.BanMaxMultiplier)
	assert.Equal(t, 2, cfg.Security.BanNotifyThreshold)
	assert.Equal(t, 3, cfg.Security.CaptchaThreshold)
	assert.Equal(t, 5, cfg.Security.BanThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Security.AttemptSweepInterval)
	assert.Equal(t, 10*time.Minute, cfg.Security.AttemptStaleAfter)
	assert.Equal(t, 10*time.Minute, cfg.Security.RateLimitWindow)
	assert.Equal(t, 10, cfg.Security.RateLimitMax)
	assert.Equal(t, 0.5, cfg.Captcha.MinScore)
	assert.False(t, cfg.Captcha.Production)
	assert.True(t, cfg.Orders.USDCMin.Equal(decimal.NewFromInt(10)))
	assert.True(t, cfg.Orders.USDCMax.Equal(decimal.NewFromInt(200000)))
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("BAN_BASE_DURATION", "30m")
	t.Setenv("BAN_MAX_MULTIPLIER", "4")
	t.Setenv("CAPTCHA_MIN_SCORE", "0.7")
	t.Setenv("USDC_RATE", "0.92")
	t.Setenv("REDIS_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, 30*time.Minute, cfg.Security.BanBaseDuration)
	assert.Equal(t, 4, cfg.Security.BanMaxMultiplier)
	assert.Equal(t, 0.7, cfg.Captcha.MinScore)
	assert.True(t, cfg.Captcha.Production)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "0.92", cfg.Orders.USDCRate.String())
}

func TestEnvHelpers_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SOME_INT", "abc")
	t.Setenv("SOME_DURATION", "-5m")
	t.Setenv("SOME_BOOL", "maybe")
	t.Setenv("SOME_DECIMAL", "1,5")

	assert.Equal(t, 7, GetIntEnv("SOME_INT", 7))
	assert.Equal(t, time.Minute, GetDurationEnv("SOME_DURATION", time.Minute))
	assert.True(t, GetBoolEnv("SOME_BOOL", true))
	assert.True(t, GetDecimalEnv("SOME_DECIMAL", decimal.NewFromInt(2)).Equal(decimal.NewFromInt(2)))
	assert.Equal(t, "fallback", GetEnv("DOES_NOT_EXIST_XYZ", "fallback"))
}
