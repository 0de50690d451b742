// internal/budget/breakdown.go
package budget

import (
	"math"

	"github.com/Corphon/ScriptBreakdown/internal/models"
)

// Category keys, as used in demo budgets
const (
	KeyTalent         = "talent"
	KeyLocation       = "location"
	KeyPropsSet       = "propsSet"
	KeyWardrobeMakeup = "wardrobeMakeup"
	KeySfxVfx         = "sfxVfx"
	KeyCrew           = "crew"
	KeyMiscellaneous  = "miscellaneous"
)

// Keys lists the seven categories in display order
var Keys = []string{
	KeyTalent, KeyLocation, KeyPropsSet, KeyWardrobeMakeup, KeySfxVfx, KeyCrew, KeyMiscellaneous,
}

// Breakdown is the canonical budget view. It is computed on demand and
// never persisted.
type Breakdown struct {
	Talent         float64 `json:"talent"`
	Location       float64 `json:"location"`
	PropsSet       float64 `json:"propsSet"`
	WardrobeMakeup float64 `json:"wardrobeMakeup"`
	SfxVfx         float64 `json:"sfxVfx"`
	Crew           float64 `json:"crew"`
	Miscellaneous  float64 `json:"miscellaneous"`
	Total          float64 `json:"total"`
}

// Category is one display row of a breakdown
type Category struct {
	Key        string  `json:"key"`
	Name       string  `json:"name"`
	Amount     float64 `json:"amount"`
	Formatted  string  `json:"formatted"`
	Percentage float64 `json:"percentage"`
}

var categoryNames = map[string]string{
	KeyTalent:         "Talent",
	KeyLocation:       "Location",
	KeyPropsSet:       "Props & Set",
	KeyWardrobeMakeup: "Wardrobe & Makeup",
	KeySfxVfx:         "SFX/VFX",
	KeyCrew:           "Crew",
	KeyMiscellaneous:  "Miscellaneous",
}

// scene-based apportioning, sums to 100%
var sceneShares = map[string]float64{
	KeyTalent:         0.35,
	KeyLocation:       0.15,
	KeyPropsSet:       0.12,
	KeyWardrobeMakeup: 0.08,
	KeySfxVfx:         0.20,
	KeyCrew:           0.08,
	KeyMiscellaneous:  0.02,
}

// Zero returns an all-zero breakdown
func Zero() Breakdown {
	return Breakdown{}
}

// Sum adds the seven categories
func (b Breakdown) Sum() float64 {
	return b.Talent + b.Location + b.PropsSet + b.WardrobeMakeup + b.SfxVfx + b.Crew + b.Miscellaneous
}

// Get returns the amount of a category key
func (b Breakdown) Get(key string) (float64, bool) {
	switch key {
	case KeyTalent:
		return b.Talent, true
	case KeyLocation:
		return b.Location, true
	case KeyPropsSet:
		return b.PropsSet, true
	case KeyWardrobeMakeup:
		return b.WardrobeMakeup, true
	case KeySfxVfx:
		return b.SfxVfx, true
	case KeyCrew:
		return b.Crew, true
	case KeyMiscellaneous:
		return b.Miscellaneous, true
	}
	return 0, false
}

func (b *Breakdown) set(key string, v float64) {
	v = clamp(v)
	switch key {
	case KeyTalent:
		b.Talent = v
	case KeyLocation:
		b.Location = v
	case KeyPropsSet:
		b.PropsSet = v
	case KeyWardrobeMakeup:
		b.WardrobeMakeup = v
	case KeySfxVfx:
		b.SfxVfx = v
	case KeyCrew:
		b.Crew = v
	case KeyMiscellaneous:
		b.Miscellaneous = v
	}
}

// IsCategory reports whether key names one of the seven categories
func IsCategory(key string) bool {
	_, ok := categoryNames[key]
	return ok
}

// FromDemo converts a demo budget of display strings
func FromDemo(raw map[string]string) Breakdown {
	var b Breakdown
	for _, key := range Keys {
		b.set(key, ParseAmount(raw[key]))
	}
	b.Total = b.Sum()
	return b
}

// FromScenes estimates a breakdown from per-scene budgets. Each category
// is rounded on its own, so the categories may not add up to Total.
func FromScenes(scenes []models.Scene) Breakdown {
	if len(scenes) == 0 {
		return Zero()
	}

	var total float64
	for _, s := range scenes {
		if s.Budget != "" {
			total += ParseAmount(s.Budget)
		} else {
			total += ParseAmount(s.EstimatedBudget)
		}
	}
	total = clamp(total)

	var b Breakdown
	for _, key := range Keys {
		b.set(key, roundHalfUp(total*sceneShares[key]))
	}
	b.Total = total
	return b
}

// Categories returns the display rows of b. Percentages are of b.Total.
func Categories(b Breakdown) []Category {
	return CategoriesWith(DefaultCurrency, b)
}

// CategoriesWith is Categories with a custom currency prefix
func CategoriesWith(prefix string, b Breakdown) []Category {
	out := make([]Category, 0, len(Keys))
	for _, key := range Keys {
		amount, _ := b.Get(key)
		pct := 0.0
		if b.Total > 0 {
			pct = math.Round(amount/b.Total*1000) / 10
		}
		out = append(out, Category{
			Key:        key,
			Name:       categoryNames[key],
			Amount:     amount,
			Formatted:  FormatAmountWith(prefix, amount),
			Percentage: pct,
		})
	}
	return out
}

func clamp(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	return v
}

func roundHalfUp(v float64) float64 {
	return math.Floor(v + 0.5)
}
