package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xauti/content_go_server/config"
	"github.com/xauti/content_go_server/internal/model"
)

func TestResolveTier(t *testing.T) {
	rules := config.DefaultTiers()

	tests := []struct {
		name string
		tags []string
		want Tier
	}{
		{"no tags", nil, model.TierFree},
		{"unrelated tags", []string{"newsletter", "lead"}, model.TierFree},
		{"basic keyword", []string{"Basic Plan"}, model.TierBasic},
		{"basic price", []string{"paid $3"}, model.TierBasic},
		{"pro keyword mixed case", []string{"XAUTI PRO"}, model.TierPro},
		{"pro price", []string{"$27 monthly"}, model.TierPro},
		{"unlimited keyword", []string{"unlimited"}, model.TierUnlimited},
		{"unlimited price", []string{"plan-99"}, model.TierUnlimited},
		{"highest wins regardless of order", []string{"basic", "unlimited", "pro"}, model.TierUnlimited},
		{"pro beats basic", []string{"basic", "pro"}, model.TierPro},
		{"blank tags ignored", []string{"", "  "}, model.TierFree},
		{"prospect is not pro", []string{"prospect"}, model.TierFree},
		{"promo list is not pro", []string{"promo-list"}, model.TierFree},
		{"product webinar is not pro", []string{"product-launch-webinar"}, model.TierFree},
		{"basics course is not basic", []string{"basics-course"}, model.TierFree},
		{"pro between separators", []string{"xauti-pro-monthly"}, model.TierPro},
		{"crm product tag", []string{"Xauti PRO $27"}, model.TierPro},
		{"unlimited with price", []string{"Unlimited $99"}, model.TierUnlimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveTier(tt.tags, rules))
		})
	}
}

func TestResolveTier_Monotonic(t *testing.T) {
	rules := config.DefaultTiers()
	rank := map[Tier]int{model.TierFree: 0, model.TierBasic: 1, model.TierPro: 2, model.TierUnlimited: 3}

	base := []string{"basic"}
	before := ResolveTier(base, rules)
	for _, extra := range []string{"lead", "pro", "unlimited", "basic"} {
		after := ResolveTier(append(append([]string{}, base...), extra), rules)
		assert.GreaterOrEqual(t, rank[after], rank[before], "adding %q lowered the tier", extra)
	}
}

func TestResolveTier_CustomRules(t *testing.T) {
	rules := map[string]config.TierRule{
		model.TierFree:  {GenerationsLimit: 0},
		model.TierBasic: {Keywords: []string{"starter"}, GenerationsLimit: 3},
	}

	assert.Equal(t, Tier(model.TierBasic), ResolveTier([]string{"Starter"}, rules))
	assert.Equal(t, Tier(model.TierFree), ResolveTier([]string{"pro"}, rules))
}

func TestTier_AllowsScripts(t *testing.T) {
	assert.False(t, Tier(model.TierFree).AllowsScripts())
	assert.False(t, Tier(model.TierBasic).AllowsScripts())
	assert.True(t, Tier(model.TierPro).AllowsScripts())
	assert.True(t, Tier(model.TierUnlimited).AllowsScripts())
}
