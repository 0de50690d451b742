// internal/models/scene.go
package models

import (
	"strconv"
	"strings"
)

// Scene is the unified scene shape shared by demo breakdowns and
// standardized remote analysis.
type Scene struct {
	Number            int      `json:"number" yaml:"number"`
	Heading           string   `json:"heading" yaml:"heading"`
	Location          string   `json:"location" yaml:"location"`
	Time              string   `json:"time" yaml:"time"`
	Characters        []string `json:"characters" yaml:"characters"`
	Props             []string `json:"props" yaml:"props"`
	Wardrobe          []string `json:"wardrobe" yaml:"wardrobe"`
	SFX               []string `json:"sfx" yaml:"sfx"`
	Notes             string   `json:"notes" yaml:"notes"`
	Budget            string   `json:"budget" yaml:"budget"`
	EstimatedBudget   float64  `json:"estimated_budget,omitempty" yaml:"-"`
	Dialogues         []string `json:"dialogues" yaml:"dialogues"`
	EstimatedDuration string   `json:"estimatedDuration,omitempty" yaml:"estimated_duration"`
}

// APIScene is a scene as produced by the remote analysis
type APIScene struct {
	SceneNumber       int      `json:"scene_number"`
	SceneHeader       string   `json:"scene_header"`
	Location          string   `json:"location"`
	TimeOfDay         string   `json:"time_of_day"`
	CharactersPresent []string `json:"characters_present"`
	PropsMentioned    []string `json:"props_mentioned"`
	ActionLines       []string `json:"action_lines"`
	DialogueLines     []string `json:"dialogue_lines"`
	EstimatedBudget   float64  `json:"estimated_budget"`
}

// ToScene converts a remote scene to the unified shape
func (a APIScene) ToScene() Scene {
	s := Scene{
		Number:     a.SceneNumber,
		Heading:    a.SceneHeader,
		Location:   a.Location,
		Time:       a.TimeOfDay,
		Characters: nonNil(a.CharactersPresent),
		Props:      nonNil(a.PropsMentioned),
		Notes:      strings.Join(a.ActionLines, " "),
		Dialogues:  nonNil(a.DialogueLines),
		Wardrobe:   []string{},
		SFX:        []string{},
	}
	if a.EstimatedBudget != 0 {
		s.Budget = "RM " + strconv.FormatFloat(a.EstimatedBudget, 'f', -1, 64)
	}
	return s
}

// Normalize fills the empty list fields of a demo scene
func (s Scene) Normalize() Scene {
	s.Characters = nonNil(s.Characters)
	s.Props = nonNil(s.Props)
	s.Wardrobe = nonNil(s.Wardrobe)
	s.SFX = nonNil(s.SFX)
	s.Dialogues = nonNil(s.Dialogues)
	return s
}

// Clone returns a deep copy
func (s Scene) Clone() Scene {
	c := s
	c.Characters = cloneStrings(s.Characters)
	c.Props = cloneStrings(s.Props)
	c.Wardrobe = cloneStrings(s.Wardrobe)
	c.SFX = cloneStrings(s.SFX)
	c.Dialogues = cloneStrings(s.Dialogues)
	return c
}

// StandardizeAPIScenes converts remote scenes
func StandardizeAPIScenes(scenes []APIScene) []Scene {
	out := make([]Scene, 0, len(scenes))
	for _, s := range scenes {
		out = append(out, s.ToScene())
	}
	return out
}

// StandardizeScenes normalizes demo scenes
func StandardizeScenes(scenes []Scene) []Scene {
	out := make([]Scene, 0, len(scenes))
	for _, s := range scenes {
		out = append(out, s.Normalize())
	}
	return out
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}

func cloneStrings(v []string) []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v...)
}
