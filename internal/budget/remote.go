// internal/budget/remote.go
package budget

// CostSource tells where LocateCostBreakdown found the cost breakdown
type CostSource int

const (
	SourceNone CostSource = iota
	// cost_breakdown
	SourceDirect
	// comprehensive_analysis.cost_breakdown
	SourceComprehensive
	// data.comprehensive_analysis.cost_breakdown
	SourceNestedData
)

func (s CostSource) String() string {
	switch s {
	case SourceDirect:
		return "cost_breakdown"
	case SourceComprehensive:
		return "comprehensive_analysis.cost_breakdown"
	case SourceNestedData:
		return "data.comprehensive_analysis.cost_breakdown"
	default:
		return "none"
	}
}

// LocateCostBreakdown tries the known nesting paths in priority order.
// A direct cost_breakdown only counts when it is a non-empty object.
func LocateCostBreakdown(raw map[string]any) (map[string]any, CostSource) {
	if cb := object(raw["cost_breakdown"]); len(cb) > 0 {
		return cb, SourceDirect
	}
	if cb := object(object(raw["comprehensive_analysis"])["cost_breakdown"]); cb != nil {
		return cb, SourceComprehensive
	}
	data := object(raw["data"])
	if cb := object(object(data["comprehensive_analysis"])["cost_breakdown"]); cb != nil {
		return cb, SourceNestedData
	}
	return map[string]any{}, SourceNone
}

// remote cost field -> category; later fields in a slice are fallbacks,
// used only when the earlier ones are absent or zero
var remoteFields = []struct {
	key      string
	fields   []string
	additive bool
}{
	{KeyTalent, []string{"total_cast_costs"}, false},
	{KeyLocation, []string{"total_location_costs"}, false},
	{KeyCrew, []string{"total_crew_costs"}, false},
	{KeyPropsSet, []string{"total_equipment_costs", "total_props_costs"}, true},
	{KeyWardrobeMakeup, []string{"total_wardrobe_costs"}, false},
	{KeySfxVfx, []string{"total_sfx_costs", "total_vfx_costs"}, false},
	{KeyMiscellaneous, []string{"total_miscellaneous_costs", "total_other_costs"}, false},
}

// FromAPI converts a remote analysis payload. The total is always the
// local sum; any total reported by the remote side is ignored.
func FromAPI(raw map[string]any) Breakdown {
	cb, _ := LocateCostBreakdown(raw)
	return FromCostBreakdown(cb)
}

// FromCostBreakdown maps an already located cost breakdown
func FromCostBreakdown(cb map[string]any) Breakdown {
	var b Breakdown
	for _, m := range remoteFields {
		var v float64
		if m.additive {
			for _, f := range m.fields {
				v += ParseAmount(cb[f])
			}
		} else {
			for _, f := range m.fields {
				if present(cb[f]) {
					v = ParseAmount(cb[f])
					break
				}
			}
		}
		b.set(m.key, v)
	}
	b.Total = b.Sum()
	return b
}

func object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// present reports whether v carries a value: not nil, not zero, not ""
func present(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case float64:
		return val != 0
	case int:
		return val != 0
	}
	return true
}
