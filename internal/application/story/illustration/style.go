// Package illustration 编排整本故事的插画生成
package illustration

import (
	"strconv"
	"strings"
	"unicode"

	"bedtime-story-api/internal/domain/entity"
)

// StyleBible 单个故事内所有插画共享的风格规则
type StyleBible struct {
	Medium      string `json:"medium"`
	Palette     string `json:"palette"`
	Lighting    string `json:"lighting"`
	Linework    string `json:"linework"`
	Proportions string `json:"proportions"`
	Mood        string `json:"mood"`
}

// BuildStyleBible 由受众年龄与基调推导风格
func BuildStyleBible(story *entity.Story) StyleBible {
	age := youngestAge(story.AudienceAge)
	tone := strings.ToLower(story.Tone)
	if story.Bible != nil && tone == "" {
		tone = strings.ToLower(story.Bible.Tone)
	}

	s := StyleBible{
		Medium:      "soft watercolor and colored pencil children's picture book illustration",
		Linework:    "gentle hand-drawn outlines",
		Proportions: "rounded, friendly characters with slightly large heads and expressive eyes",
	}
	switch {
	case age > 0 && age <= 4:
		s.Medium = "simple gouache picture book illustration with bold shapes"
		s.Linework = "thick soft outlines, minimal background detail"
		s.Proportions = "chubby, very rounded characters with big heads and tiny hands"
	case age >= 8:
		s.Medium = "detailed storybook illustration in watercolor and ink"
		s.Linework = "fine ink lines with textured shading"
		s.Proportions = "natural child proportions with expressive poses"
	}

	switch {
	case containsAny(tone, "silly", "funny", "playful", "goofy"):
		s.Palette = "bright cheerful colors softened with creamy whites"
		s.Lighting = "warm even light"
		s.Mood = "playful and light-hearted"
	case containsAny(tone, "magic", "wonder", "dream", "enchant"):
		s.Palette = "dusky pastels with lavender, rose and starlight gold"
		s.Lighting = "soft magical glow with gentle sparkles"
		s.Mood = "dreamy and full of wonder"
	case containsAny(tone, "brave", "advent", "exciting"):
		s.Palette = "warm saturated earth tones with sky blue accents"
		s.Lighting = "golden hour light"
		s.Mood = "hopeful and adventurous but safe"
	default:
		s.Palette = "warm muted tones, honey, sage and dusty blue"
		s.Lighting = "cozy lamplight and moonlight, low contrast"
		s.Mood = "calm, cozy and reassuring"
	}
	return s
}

// Render 风格块文本
func (s StyleBible) Render() string {
	return strings.Join([]string{
		"Medium: " + s.Medium,
		"Palette: " + s.Palette,
		"Lighting: " + s.Lighting,
		"Linework: " + s.Linework,
		"Characters: " + s.Proportions,
		"Mood: " + s.Mood,
	}, "\n")
}

// youngestAge 提取年龄描述中的第一个数字，如 "4-6" 返回 4
func youngestAge(s string) int {
	start := -1
	for i, r := range s {
		if unicode.IsDigit(r) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			n, _ := strconv.Atoi(s[start:i])
			return n
		}
	}
	if start >= 0 {
		n, _ := strconv.Atoi(s[start:])
		return n
	}
	return 0
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
