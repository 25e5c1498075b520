package illustration

import (
	"sort"
	"strings"

	"bedtime-story-api/internal/application/story/identity"
	"bedtime-story-api/internal/domain/entity"
)

const negativeBlock = "No text, letters, captions, logos or watermarks. " +
	"No drift from the art style above. " +
	"Keep every character's face, hair, body and outfit exactly as described on every page. " +
	"No extra limbs or distorted anatomy. " +
	"Nothing frightening, violent or unsafe for young children."

// CharacterSheet 单个角色在本次任务中的外观与服装
type CharacterSheet struct {
	Name     string
	Identity *entity.IdentityBible
	Outfit   *entity.StoryCharacterOutfit
	// Portrait 参考肖像字节，可为空
	Portrait []byte
}

// PromptParts 插画提示词组成部分
type PromptParts struct {
	Style      StyleBible
	Characters []CharacterSheet
	Scene      *entity.SceneDescription
}

// AssemblePrompt 固定顺序拼接：风格 → 角色（按名字排序）→ 场景 → 禁止项
func AssemblePrompt(p PromptParts) string {
	sheets := append([]CharacterSheet{}, p.Characters...)
	sort.SliceStable(sheets, func(i, j int) bool { return sheets[i].Name < sheets[j].Name })

	var b strings.Builder
	b.WriteString("STYLE BIBLE\n")
	b.WriteString(p.Style.Render())

	b.WriteString("\n\nCHARACTER BIBLE\n")
	if len(sheets) == 0 {
		b.WriteString("- No recurring characters in this picture.")
	}
	for i, s := range sheets {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(s.Name)
		if s.Identity != nil {
			b.WriteString(": ")
			b.WriteString(identity.Describe(s.Identity))
		}
	}

	b.WriteString("\n\nSCENE\n")
	b.WriteString(sceneBlock(p.Scene, sheets))

	b.WriteString("\n\nNEGATIVE CONSTRAINTS\n")
	b.WriteString(negativeBlock)
	return b.String()
}

func sceneBlock(scene *entity.SceneDescription, sheets []CharacterSheet) string {
	if scene == nil {
		scene = &entity.SceneDescription{}
	}
	lines := []string{
		"Setting: " + orDefault(scene.Setting, "a cozy storybook world"),
		"Action: " + orDefault(scene.Action, "the characters share a quiet moment"),
		"Mood: " + orDefault(scene.Mood, "calm"),
		"Time of day: " + orDefault(scene.TimeOfDay, "evening"),
		"Camera: " + orDefault(scene.CameraFraming, "medium shot"),
	}
	for _, s := range sheets {
		if outfit := identity.DescribeOutfit(s.Outfit); outfit != "" {
			lines = append(lines, s.Name+" wears "+outfit)
		}
	}
	if len(scene.Props) > 0 {
		lines = append(lines, "Props: "+strings.Join(scene.Props, ", "))
	}
	return strings.Join(lines, "\n")
}

// CoverScene 封面场景
func CoverScene(story *entity.Story, names []string) *entity.SceneDescription {
	setting := story.Setting
	if story.Bible != nil && story.Bible.Setting != "" {
		setting = story.Bible.Setting
	}
	return &entity.SceneDescription{
		Setting:       setting,
		Action:        "the main characters together on the cover of a picture book titled \"" + story.Title + "\", leaving calm space at the top",
		Mood:          "inviting and warm",
		TimeOfDay:     "dusk",
		CameraFraming: "wide establishing shot",
		Characters:    names,
		Props:         []string{},
	}
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}
