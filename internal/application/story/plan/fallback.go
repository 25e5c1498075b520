package plan

import (
	"fmt"
	"strings"

	"bedtime-story-api/internal/domain/entity"
)

var interludes = []string{
	"%[1]s pauses to listen to the crickets humming in %[2]s",
	"a sleepy owl calls hello and %[1]s waves back",
	"%[1]s counts the first stars appearing one by one",
	"a warm breeze carries the smell of blossoms past %[1]s",
	"%[1]s shares a snack with a friend on a mossy log",
	"fireflies draw soft shapes in the air around %[1]s",
	"%[1]s hums a little tune that echoes across %[2]s",
	"a curious rabbit hops alongside %[1]s for a while",
	"%[1]s stops by a stream to watch the water sparkle",
	"the moon peeks out from behind a cloud to watch %[1]s",
	"%[1]s finds a smooth pebble and tucks it into a pocket",
	"a gentle hill gives %[1]s a view of all of %[2]s",
	"%[1]s helps a beetle turn right side up again",
	"lanterns glow in the windows as %[1]s passes by",
	"%[1]s tells a friend a secret about the sky",
	"the leaves whisper a lullaby over %[1]s",
	"%[1]s traces the shape of a cloud that looks like a boat",
	"a hedgehog shows %[1]s a shortcut through the ferns",
	"%[1]s yawns once and giggles about it",
	"the path curls past a pond where frogs sing softly to %[1]s",
	"%[1]s wraps a scarf a little tighter against the cool air",
	"a shooting star streaks across the sky above %[2]s",
	"%[1]s remembers something funny from breakfast",
	"a family of ducks paddles past %[1]s in a neat line",
}

// FallbackPlan 不依赖模型的模板规划，满足全部结构不变量
func FallbackPlan(in Input, pageCount int) *entity.StoryPlan {
	in = withDefaults(in)
	if pageCount < minPages {
		pageCount = minPages
	}
	arc := arcFor(in.Spark)
	hero := in.Characters[0].Name
	setting := in.Setting

	characters := make([]entity.BibleCharacter, 0, len(in.Characters))
	for _, c := range in.Characters {
		traits := c.Traits
		if len(traits) == 0 {
			traits = []string{"gentle", "curious"}
		}
		characters = append(characters, entity.BibleCharacter{Name: c.Name, Role: c.Role, Traits: append([]string{}, traits...)})
	}

	title := in.TitleHint
	if strings.TrimSpace(title) == "" {
		title = fmt.Sprintf(arc.Title, hero)
	}

	bible := entity.StoryBible{
		Title:       title,
		AudienceAge: in.AudienceAge,
		Tone:        in.Tone,
		Setting:     setting,
		Rules: []string{
			"The world is gentle and safe",
			"Animals may speak in soft voices",
			"Evening arrives slowly and nothing is ever truly dangerous",
		},
		Characters:      characters,
		AllowedEntities: nil,
		Forbidden:       []string{"violence", "scary monsters", "brand names", "real-world places"},
		EndingGoal:      fmt.Sprintf("%s falls asleep feeling safe and loved", hero),
	}
	bible.AllowedEntities = dedupeFold(append(bible.CharacterNames(), setting))

	return &entity.StoryPlan{
		Bible:     bible,
		BeatSheet: entity.BeatSheet{PageCount: pageCount, Pages: fallbackBeats(arc, hero, setting, pageCount)},
		Ledger: entity.ContinuityLedger{
			EstablishedFacts: []string{
				fmt.Sprintf("%s lives in %s", hero, setting),
				"It is early evening",
			},
			OpenThreads: []string{arc.Checklist[0]},
		},
		FromFallback: true,
	}
}

func fallbackBeats(arc sparkArc, hero, setting string, pageCount int) []entity.Beat {
	middle := pageCount - 3
	goals := middleGoals(arc, middle)
	beats := make([]entity.Beat, 0, pageCount)

	beats = append(beats, entity.Beat{
		BeatGoal:    fmt.Sprintf("Introduce %s at home in %s as the evening begins", hero, setting),
		MustInclude: []string{hero, setting},
	})
	for j := 0; j < middle; j++ {
		beats = append(beats, entity.Beat{
			BeatGoal:    fillBeat(goals[j], hero, setting),
			MustInclude: checklistFor(arc.Checklist, j, middle),
		})
	}
	beats = append(beats,
		entity.Beat{
			BeatGoal:    fmt.Sprintf("Everyone heads home through %s, calm and content", setting),
			MustInclude: []string{"a calm, cozy feeling"},
		},
		entity.Beat{
			BeatGoal:    fmt.Sprintf("%s snuggles into bed, remembers the day and drifts to sleep", hero),
			MustInclude: []string{"a goodnight"},
		},
	)

	for i := range beats {
		beats[i].PageNumber = i + 1
		beats[i].MustNotInclude = []string{"scary imagery", "new named characters"}
		if i == len(beats)-1 {
			beats[i].Transition = "ends with a quiet goodnight"
		} else {
			beats[i].Transition = "leads gently into the next moment"
		}
	}
	return beats
}

// middleGoals 将弧线节拍均匀铺入中段，空位以过场节拍填充
func middleGoals(arc sparkArc, slots int) []string {
	goals := make([]string, slots)
	if slots <= len(arc.Beats) {
		for j := 0; j < slots; j++ {
			goals[j] = arc.Beats[j*len(arc.Beats)/slots]
		}
		return goals
	}
	taken := make([]bool, slots)
	for k, beat := range arc.Beats {
		pos := k * slots / len(arc.Beats)
		goals[pos] = beat
		taken[pos] = true
	}
	next := 0
	for j := range goals {
		if taken[j] {
			continue
		}
		goals[j] = interludes[next%len(interludes)]
		next++
	}
	return goals
}

// checklistFor 将清单项分配到中段页面，保证每项至少出现一次
func checklistFor(checklist []string, j, slots int) []string {
	out := []string{}
	for k, item := range checklist {
		if k*slots/len(checklist) == j {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		out = append(out, "a small kind moment")
	}
	return out
}

// fillBeat 替换节拍模板中的主角与场景占位符
func fillBeat(tpl, hero, setting string) string {
	return strings.NewReplacer("%[1]s", hero, "%[2]s", setting).Replace(tpl)
}
