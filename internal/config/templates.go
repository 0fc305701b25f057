package config

import (
	"maps"

	"github.com/loanward/loantrack/internal/domain"
)

// Templates merges checklist overrides over the built-in tables. A stage or
// program listed in the config replaces that table entry wholesale; anything
// unlisted keeps its default.
func (c ChecklistsConfig) Templates() domain.Templates {
	templates := domain.DefaultTemplates()
	for stage, items := range c.Stages {
		parsed, err := domain.ParseStage(stage)
		if err != nil {
			continue
		}
		templates.Base[parsed] = templateItems(items)
	}
	for program, stages := range c.Extras {
		parsedProgram, err := domain.ParseProgram(program)
		if err != nil {
			continue
		}
		// Copy-on-write: default extras tables may be shared by several
		// programs, so never mutate them in place.
		if templates.Extras[parsedProgram] == nil {
			templates.Extras[parsedProgram] = map[domain.Stage][]domain.TemplateItem{}
		} else {
			templates.Extras[parsedProgram] = maps.Clone(templates.Extras[parsedProgram])
		}
		for stage, items := range stages {
			parsedStage, err := domain.ParseStage(stage)
			if err != nil {
				continue
			}
			templates.Extras[parsedProgram][parsedStage] = templateItems(items)
		}
	}
	return templates
}

func templateItems(items []ItemConfig) []domain.TemplateItem {
	out := make([]domain.TemplateItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.TemplateItem{
			Key:      item.Key,
			Label:    item.Label,
			Required: item.Required,
		})
	}
	return out
}
