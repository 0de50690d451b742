// internal/demo/demo.go
package demo

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/Corphon/ScriptBreakdown/internal/models"
)

//go:embed projects.yaml
var projectsYAML []byte

var (
	loadOnce sync.Once
	fixtures []*models.Project
	loadErr  error
)

func load() {
	var projects []*models.Project
	if err := yaml.Unmarshal(projectsYAML, &projects); err != nil {
		loadErr = fmt.Errorf("decode demo projects: %w", err)
		return
	}
	for _, p := range projects {
		if p.ScriptBreakdown != nil {
			p.ScriptBreakdown.Scenes = models.StandardizeScenes(p.ScriptBreakdown.Scenes)
		}
	}
	fixtures = projects
}

// Projects returns a fresh copy of the demo dataset; callers may mutate it.
// The embedded file is part of the binary, so a decode failure is a
// programming error and panics.
func Projects() []*models.Project {
	loadOnce.Do(load)
	if loadErr != nil {
		panic(loadErr)
	}
	out := make([]*models.Project, len(fixtures))
	for i, p := range fixtures {
		out[i] = p.Clone()
	}
	return out
}

// Titles returns the demo project titles
func Titles() map[string]bool {
	titles := make(map[string]bool)
	for _, p := range Projects() {
		titles[p.Title] = true
	}
	return titles
}
