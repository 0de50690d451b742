package budget

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/ScriptBreakdown/internal/models"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{"RM 8,000", 8000},
		{"8000", 8000},
		{"RM 1,250,000.50", 1250000.5},
		{"  RM\t450000 ", 450000},
		{"$12,345", 12345},
		{"USD 10,000", 10000},
		{"€2,500.5", 2500.5},
		{"12abc", 12},
		{"-300", -300},
		{"1.5e3", 1500},
		{"not a number", 0},
		{"", 0},
		{"High", 0},
		{".", 0},
		{42.5, 42.5},
		{7, 7},
		{json.Number("99"), 99},
		{nil, 0},
		{true, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ParseAmount(c.in), "input %#v", c.in)
	}
}

func TestParseAmountMatchesDigitsAlone(t *testing.T) {
	for _, digits := range []string{"0", "5", "1000", "2500000", "37.25"} {
		want := ParseAmount(digits)
		for _, decorated := range []string{"RM " + digits, " " + digits + " ", "RM" + digits, "$ " + digits} {
			assert.Equal(t, want, ParseAmount(decorated), decorated)
		}
	}
	assert.Equal(t, ParseAmount("1250000"), ParseAmount("RM 1,250,000"))
}

func TestParseAmountReadsFormattedPrefixes(t *testing.T) {
	for _, prefix := range []string{"RM", "USD", "SGD", "$", "€"} {
		assert.Equal(t, 1234.5, ParseAmount(FormatAmountWith(prefix, 1234.5)), prefix)
		assert.Equal(t, 0.0, ParseAmount(FormatAmountWith(prefix, 0)), prefix)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "RM 0", FormatAmount(0))
	assert.Equal(t, "RM 1,250,000", FormatAmount(1250000))
	assert.Equal(t, "RM 950", FormatAmount(950))
	assert.Equal(t, "RM 1,234.5", FormatAmount(1234.5))
	assert.Equal(t, "USD 0", FormatAmountWith("USD", 0))
	assert.Equal(t, "USD 10,000", FormatAmountWith("USD", 10000))
}

func TestFromDemoTotalIsSum(t *testing.T) {
	raw := map[string]string{
		"talent":         "RM 450000",
		"location":       "RM 380000",
		"propsSet":       "RM 320000",
		"wardrobeMakeup": "RM 280000",
		"sfxVfx":         "RM 650000",
		"crew":           "RM 350000",
		"miscellaneous":  "RM 70000",
	}
	b := FromDemo(raw)
	assert.Equal(t, float64(450000), b.Talent)
	assert.Equal(t, float64(650000), b.SfxVfx)
	assert.Equal(t, float64(2500000), b.Total)
	assert.Equal(t, b.Sum(), b.Total)

	partial := FromDemo(map[string]string{"talent": "garbage", "crew": "RM 1,000", "unknown": "RM 5"})
	assert.Equal(t, float64(0), partial.Talent)
	assert.Equal(t, float64(1000), partial.Total)
	assert.Equal(t, partial.Sum(), partial.Total)

	assert.Equal(t, Zero(), FromDemo(nil))
}

func TestFromDemoClampsNegative(t *testing.T) {
	b := FromDemo(map[string]string{"talent": "-500", "crew": "RM 200"})
	assert.Equal(t, float64(0), b.Talent)
	assert.Equal(t, float64(200), b.Total)
}

func TestFromScenesEmpty(t *testing.T) {
	assert.Equal(t, Zero(), FromScenes(nil))
	assert.Equal(t, Zero(), FromScenes([]models.Scene{}))
}

func TestFromScenesApportions(t *testing.T) {
	b := FromScenes([]models.Scene{{Budget: "RM 600"}, {EstimatedBudget: 400}})

	assert.Equal(t, float64(350), b.Talent)
	assert.Equal(t, float64(150), b.Location)
	assert.Equal(t, float64(120), b.PropsSet)
	assert.Equal(t, float64(80), b.WardrobeMakeup)
	assert.Equal(t, float64(200), b.SfxVfx)
	assert.Equal(t, float64(80), b.Crew)
	assert.Equal(t, float64(20), b.Miscellaneous)
	assert.Equal(t, float64(1000), b.Total)
}

func TestFromScenesRoundingResidue(t *testing.T) {
	b := FromScenes([]models.Scene{{Budget: "RM 1,003"}})

	assert.Equal(t, float64(1003), b.Total)
	// 351.05, 150.45, 120.36, 80.24, 200.6, 80.24, 20.06 rounded independently
	assert.Equal(t, float64(351), b.Talent)
	assert.Equal(t, float64(201), b.SfxVfx)
	assert.InDelta(t, b.Total, b.Sum(), 7)
	assert.Equal(t, float64(1002), b.Sum())
}

func TestFromScenesQualitativeBudgetIsZero(t *testing.T) {
	b := FromScenes([]models.Scene{{Budget: "High"}, {Budget: "Medium"}})
	assert.Equal(t, Zero(), b)
}

func TestLocateCostBreakdownPaths(t *testing.T) {
	cb := map[string]any{"total_cast_costs": 100.0}

	found, src := LocateCostBreakdown(map[string]any{"cost_breakdown": cb})
	assert.Equal(t, SourceDirect, src)
	assert.Equal(t, cb, found)

	found, src = LocateCostBreakdown(map[string]any{
		"cost_breakdown":         map[string]any{},
		"comprehensive_analysis": map[string]any{"cost_breakdown": cb},
	})
	assert.Equal(t, SourceComprehensive, src)
	assert.Equal(t, cb, found)

	found, src = LocateCostBreakdown(map[string]any{
		"data": map[string]any{"comprehensive_analysis": map[string]any{"cost_breakdown": cb}},
	})
	assert.Equal(t, SourceNestedData, src)
	assert.Equal(t, cb, found)

	found, src = LocateCostBreakdown(map[string]any{"cost_breakdown": "n/a"})
	assert.Equal(t, SourceNone, src)
	assert.Empty(t, found)
	assert.Equal(t, "none", src.String())
}

func TestFromAPIMapping(t *testing.T) {
	raw := decode(t, `{
		"cost_breakdown": {
			"total_cast_costs": 120000,
			"total_location_costs": "RM 30,000",
			"total_crew_costs": 45000,
			"total_equipment_costs": 10000,
			"total_props_costs": 5000,
			"total_wardrobe_costs": 8000,
			"total_sfx_costs": 0,
			"total_vfx_costs": 22000,
			"total_other_costs": 1500,
			"total_cost": 999999999
		}
	}`)

	b := FromAPI(raw)
	assert.Equal(t, float64(120000), b.Talent)
	assert.Equal(t, float64(30000), b.Location)
	assert.Equal(t, float64(45000), b.Crew)
	assert.Equal(t, float64(15000), b.PropsSet)
	assert.Equal(t, float64(8000), b.WardrobeMakeup)
	assert.Equal(t, float64(22000), b.SfxVfx)
	assert.Equal(t, float64(1500), b.Miscellaneous)
	// remote total_cost is ignored
	assert.Equal(t, float64(241500), b.Total)
	assert.Equal(t, b.Sum(), b.Total)
}

func TestFromAPIPrefersPrimaryFields(t *testing.T) {
	b := FromAPI(decode(t, `{"comprehensive_analysis":{"cost_breakdown":{
		"total_sfx_costs": 700, "total_vfx_costs": 900,
		"total_miscellaneous_costs": 50, "total_other_costs": 60}}}`))
	assert.Equal(t, float64(700), b.SfxVfx)
	assert.Equal(t, float64(50), b.Miscellaneous)
	assert.Equal(t, float64(750), b.Total)
}

func TestFromAPIWithoutBreakdown(t *testing.T) {
	assert.Equal(t, Zero(), FromAPI(map[string]any{}))
	assert.Equal(t, Zero(), FromAPI(nil))
}

func TestCategories(t *testing.T) {
	b := FromDemo(map[string]string{"talent": "750", "crew": "250"})
	rows := Categories(b)
	require.Len(t, rows, 7)
	assert.Equal(t, "talent", rows[0].Key)
	assert.Equal(t, "Talent", rows[0].Name)
	assert.Equal(t, 75.0, rows[0].Percentage)
	assert.Equal(t, "RM 750", rows[0].Formatted)
	assert.Equal(t, 25.0, rows[5].Percentage)
	assert.Equal(t, 0.0, rows[1].Percentage)

	for _, r := range Categories(Zero()) {
		assert.Equal(t, 0.0, r.Percentage)
		assert.Equal(t, "RM 0", r.Formatted)
	}
	assert.True(t, IsCategory("sfxVfx"))
	assert.False(t, IsCategory("total"))
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}
