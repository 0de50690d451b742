// internal/mockapi/analysis.go
package mockapi

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/Corphon/ScriptBreakdown/internal/models"
)

// sceneTemplate is one of the canned scenes handed out by the mock analysis
type sceneTemplate struct {
	header     string
	location   string
	time       string
	characters []string
	props      []string
	action     string
	dialogue   string
}

var sceneTemplates = []sceneTemplate{
	{"INT. APARTMENT - NIGHT", "Apartment", "NIGHT", []string{"AMIRA", "DANIEL"}, []string{"laptop", "coffee mug"},
		"Amira paces while Daniel reads the letter.", "AMIRA: We can't stay here."},
	{"EXT. CITY STREET - DAY", "City Street", "DAY", []string{"DANIEL"}, []string{"bicycle"},
		"Daniel weaves through traffic.", "DANIEL: Almost there."},
	{"INT. POLICE STATION - DAY", "Police Station", "DAY", []string{"AMIRA", "INSPECTOR LIM"}, []string{"case file", "badge"},
		"The inspector slides a photograph across the desk.", "INSPECTOR LIM: Recognise him?"},
	{"EXT. ROOFTOP - NIGHT", "Rooftop", "NIGHT", []string{"AMIRA", "DANIEL", "STRANGER"}, []string{"flare gun"},
		"Rain hammers the rooftop as the stranger steps forward.", "STRANGER: You found me."},
	{"INT. WAREHOUSE - NIGHT", "Warehouse", "NIGHT", []string{"INSPECTOR LIM", "STRANGER"}, []string{"crates", "torch"},
		"Crates explode in a burst of sparks.", "INSPECTOR LIM: Down!"},
	{"EXT. BEACH - DAWN", "Beach", "DAWN", []string{"AMIRA"}, []string{"letter"},
		"Amira burns the letter as the sun rises.", ""},
}

// cost shares of the scene total, in percent
var costShares = []struct {
	field string
	share float64
}{
	{"total_cast_costs", 35},
	{"total_location_costs", 15},
	{"total_equipment_costs", 7},
	{"total_props_costs", 5},
	{"total_wardrobe_costs", 8},
	{"total_vfx_costs", 20},
	{"total_crew_costs", 8},
	{"total_other_costs", 2},
}

// cannedAnalysis builds a deterministic breakdown for an uploaded file.
// The scene count depends on the file size only.
func cannedAnalysis(filename string, size int64) models.AnalysisData {
	n := 3 + int(size%4)
	if size < 0 {
		n = 3
	}

	scenes := make([]models.APIScene, n)
	characters := map[string]int{}
	locations := map[string]int{}
	props := map[string]int{}
	var sceneTotal float64
	for i := 0; i < n; i++ {
		t := sceneTemplates[i%len(sceneTemplates)]
		budget := float64(1500 + 500*i)
		sceneTotal += budget
		scene := models.APIScene{
			SceneNumber:       i + 1,
			SceneHeader:       t.header,
			Location:          t.location,
			TimeOfDay:         t.time,
			CharactersPresent: t.characters,
			PropsMentioned:    t.props,
			ActionLines:       []string{t.action},
			DialogueLines:     []string{},
			EstimatedBudget:   budget,
		}
		if t.dialogue != "" {
			scene.DialogueLines = []string{t.dialogue}
		}
		scenes[i] = scene
		for _, c := range t.characters {
			characters[c]++
		}
		for _, p := range t.props {
			props[p]++
		}
		locations[t.location]++
	}

	costs := map[string]any{}
	var total float64
	for _, s := range costShares {
		v := math.Round(sceneTotal * s.share / 100)
		costs[s.field] = v
		total += v
	}
	costs["total_cost"] = total
	costs["budget_category"] = budgetCategory(total)
	costs["currency"] = "MYR"

	castNames := sortedKeys(characters)
	cast := make([]map[string]any, 0, len(castNames))
	for _, name := range castNames {
		cast = append(cast, map[string]any{"character": name, "scene_count": characters[name]})
	}
	locationNames := sortedKeys(locations)

	return models.AnalysisData{
		ScriptData: mustJSON(map[string]any{
			"title":            filename,
			"scenes":           scenes,
			"total_characters": castNames,
			"total_locations":  locationNames,
		}),
		CastBreakdown:     mustJSON(map[string]any{"characters": cast}),
		CostBreakdown:     mustJSON(costs),
		LocationBreakdown: mustJSON(map[string]any{"locations": locationNames}),
		PropsBreakdown:    mustJSON(map[string]any{"props": sortedKeys(props)}),
	}
}

func budgetCategory(total float64) string {
	switch {
	case total < 10000:
		return "Low"
	case total < 50000:
		return "Medium"
	default:
		return "High"
	}
}

// summarize derives the list columns of a saved script from its analysis
func summarize(script *models.Script, a models.AnalysisData) {
	var sd struct {
		Scenes          []json.RawMessage `json:"scenes"`
		TotalCharacters []string          `json:"total_characters"`
		TotalLocations  []string          `json:"total_locations"`
	}
	if len(a.ScriptData) > 0 {
		json.Unmarshal(a.ScriptData, &sd)
	}
	script.TotalScenes = len(sd.Scenes)
	script.TotalCharacters = len(sd.TotalCharacters)
	script.TotalLocations = len(sd.TotalLocations)

	var cb struct {
		TotalCost      float64 `json:"total_cost"`
		TotalCosts     float64 `json:"total_costs"`
		BudgetCategory string  `json:"budget_category"`
	}
	if len(a.CostBreakdown) > 0 {
		json.Unmarshal(a.CostBreakdown, &cb)
	}
	script.EstimatedBudget = cb.TotalCost
	if script.EstimatedBudget == 0 {
		script.EstimatedBudget = cb.TotalCosts
	}
	script.BudgetCategory = cb.BudgetCategory
	if script.BudgetCategory == "" {
		script.BudgetCategory = "Medium"
	}
}

// chatReply produces the assistant answer for a script
func chatReply(script models.Script, message string) string {
	return fmt.Sprintf(
		"About %q: the breakdown lists %d scenes, %d characters and %d locations with an estimated budget of RM %.0f (%s). You asked: %s",
		script.Filename, script.TotalScenes, script.TotalCharacters, script.TotalLocations,
		script.EstimatedBudget, script.BudgetCategory, message,
	)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mockapi: marshal canned analysis: %v", err))
	}
	return data
}
