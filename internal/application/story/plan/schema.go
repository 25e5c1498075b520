package plan

import (
	"fmt"

	"bedtime-story-api/internal/application/story/structured"
	"bedtime-story-api/internal/domain/entity"
)

func planSchema(pageCount int) structured.Schema[entity.StoryPlan] {
	character := structured.Object(map[string]any{
		"name":   structured.String(),
		"role":   structured.String(),
		"traits": structured.StringArray(),
	})
	beat := structured.Object(map[string]any{
		"pageNumber":     map[string]any{"type": "integer"},
		"beatGoal":       structured.String(),
		"mustInclude":    structured.StringArray(),
		"mustNotInclude": structured.StringArray(),
		"transition":     structured.String(),
	})
	return structured.Schema[entity.StoryPlan]{
		Name: "story_plan",
		Description: "{storyBible:{title,audience_age,tone,setting,rules[],characters[{name,role,traits[]}]," +
			"allowed_entities[],forbidden[],ending_goal},beatSheet:{page_count,pages[{pageNumber,beatGoal," +
			"mustInclude[],mustNotInclude[],transition}]},continuityLedger:{established_facts[],open_threads[]}}",
		JSONSchema: structured.Object(map[string]any{
			"storyBible": structured.Object(map[string]any{
				"title":            structured.String(),
				"audience_age":     structured.String(),
				"tone":             structured.String(),
				"setting":          structured.String(),
				"rules":            structured.StringArray(),
				"characters":       map[string]any{"type": "array", "items": character},
				"allowed_entities": structured.StringArray(),
				"forbidden":        structured.StringArray(),
				"ending_goal":      structured.String(),
			}),
			"beatSheet": structured.Object(map[string]any{
				"page_count": map[string]any{"type": "integer"},
				"pages":      map[string]any{"type": "array", "items": beat},
			}),
			"continuityLedger": structured.Object(map[string]any{
				"established_facts": structured.StringArray(),
				"open_threads":      structured.StringArray(),
			}),
		}),
		Validate: func(sp *entity.StoryPlan) []string {
			return validatePlan(sp, pageCount)
		},
	}
}

// validatePlan 校验规划的结构性不变量
func validatePlan(sp *entity.StoryPlan, pageCount int) []string {
	var is structured.Issues
	b := sp.Bible
	is.Require("storyBible.title", b.Title)
	is.Require("storyBible.audience_age", b.AudienceAge)
	is.Require("storyBible.tone", b.Tone)
	is.Require("storyBible.setting", b.Setting)
	is.Require("storyBible.ending_goal", b.EndingGoal)
	is.RequireList("storyBible.rules", b.Rules)
	is.RequireList("storyBible.allowed_entities", b.AllowedEntities)
	is.RequireList("storyBible.forbidden", b.Forbidden)
	if len(b.Characters) == 0 {
		is.Addf("storyBible.characters must contain at least one entry")
	}
	for i, c := range b.Characters {
		is.Require(indexed("storyBible.characters", i, "name"), c.Name)
	}

	if sp.BeatSheet.PageCount != pageCount {
		is.Addf("beatSheet.page_count must be %d, got %d", pageCount, sp.BeatSheet.PageCount)
	}
	if len(sp.BeatSheet.Pages) != pageCount {
		is.Addf("beatSheet.pages must contain exactly %d entries, got %d", pageCount, len(sp.BeatSheet.Pages))
	}
	for i, beat := range sp.BeatSheet.Pages {
		is.Require(indexed("beatSheet.pages", i, "beatGoal"), beat.BeatGoal)
	}

	is.RequireList("continuityLedger.established_facts", sp.Ledger.EstablishedFacts)
	return is
}

func indexed(prefix string, i int, field string) string {
	return fmt.Sprintf("%s[%d].%s", prefix, i, field)
}
