package plan

import "bedtime-story-api/internal/domain/entity"

// sparkArc 灵感类型对应的叙事弧线
type sparkArc struct {
	Summary   string
	Checklist []string
	// Beats 兜底大纲中段使用的节拍模板，%[1]s 为主角名，%[2]s 为场景
	Beats []string
	Title string
}

var sparkArcs = map[entity.SparkType]sparkArc{
	entity.SparkAdventure: {
		Summary: "a small journey away from home and back again",
		Checklist: []string{
			"a clear goal that pulls the hero out of the ordinary",
			"a journey through at least two distinct places",
			"a gentle obstacle overcome with cleverness or kindness",
			"a safe return home that feels earned",
		},
		Beats: []string{
			"%[1]s notices something unusual at the edge of %[2]s and decides to follow it",
			"%[1]s crosses into a new part of %[2]s, full of soft lights and quiet sounds",
			"a fallen branch blocks the path and %[1]s finds a clever way around it",
			"%[1]s reaches the goal and discovers it is even gentler than expected",
			"%[1]s retraces the path home, waving goodbye to each friendly place",
		},
		Title: "%s and the Moonlit Path",
	},
	entity.SparkMystery: {
		Summary: "a cozy puzzle solved one clue at a time",
		Checklist: []string{
			"a small puzzle introduced early",
			"a false assumption the hero makes first",
			"clues that progress from vague to clear",
			"a warm reveal that explains every clue",
		},
		Beats: []string{
			"%[1]s finds a puzzle in %[2]s: something small has gone missing",
			"%[1]s guesses the wrong answer at first and feels a little silly",
			"a first clue appears, faint and easy to overlook",
			"a second clue makes the answer clearer",
			"the reveal: the mystery has a kind and simple explanation",
		},
		Title: "%s and the Quiet Clue",
	},
	entity.SparkBrave: {
		Summary: "a small fear faced gently and overcome",
		Checklist: []string{
			"a named fear that feels real but small",
			"a supportive helper or comforting object",
			"a moment of choosing courage",
			"a calm aftermath where the fear feels smaller",
		},
		Beats: []string{
			"%[1]s feels nervous about something in %[2]s",
			"a friend reminds %[1]s of a time they were brave before",
			"%[1]s takes one small step toward the thing that felt scary",
			"the scary thing turns out to be gentle and %[1]s smiles",
			"%[1]s feels taller and calmer than before",
		},
		Title: "Brave Little %s",
	},
	entity.SparkFriendship: {
		Summary: "two characters learning to understand each other",
		Checklist: []string{
			"a meeting or reunion between friends",
			"a small misunderstanding",
			"an act of listening or sharing",
			"a renewed friendship shown through a shared activity",
		},
		Beats: []string{
			"%[1]s meets a friend in %[2]s and they start a game together",
			"the friends want different things and the game stalls",
			"%[1]s listens carefully and understands how the friend feels",
			"they share an idea that makes the game better for both",
			"the friends laugh together as the light fades",
		},
		Title: "%s and a Friend",
	},
	entity.SparkSilly: {
		Summary: "playful nonsense that grows and then settles",
		Checklist: []string{
			"an ordinary moment that turns delightfully odd",
			"a silly escalation with a repeating pattern",
			"a funny turning point",
			"a calm return to ordinary with a smile",
		},
		Beats: []string{
			"something ordinary in %[2]s starts behaving in a silly way around %[1]s",
			"the silliness grows: one odd thing leads to another",
			"%[1]s tries to fix it and makes it even sillier",
			"a funny surprise makes everyone giggle",
			"the silliness settles down as quietly as it began",
		},
		Title: "%s and the Very Silly Evening",
	},
	entity.SparkDiscovery: {
		Summary: "curiosity leading to a small wonder of the natural world",
		Checklist: []string{
			"a question the hero wonders about",
			"careful observation of details",
			"a small experiment or exploration",
			"a wonder-filled discovery shared with someone",
		},
		Beats: []string{
			"%[1]s wonders about something small in %[2]s",
			"%[1]s looks closely and notices colors, shapes and sounds",
			"%[1]s tries a gentle experiment to learn more",
			"the answer appears and it is wonderful",
			"%[1]s shares the discovery with someone they love",
		},
		Title: "%s Wonders Why",
	},
	entity.SparkHelper: {
		Summary: "noticing someone who needs help and helping kindly",
		Checklist: []string{
			"a character who needs help",
			"the hero noticing and choosing to help",
			"a helpful plan carried out step by step",
			"gratitude and a warm feeling afterwards",
		},
		Beats: []string{
			"someone in %[2]s needs a little help and %[1]s notices",
			"%[1]s thinks of a plan to help",
			"%[1]s carries out the plan one careful step at a time",
			"the plan works and the helped friend is grateful",
			"%[1]s feels warm inside from helping",
		},
		Title: "%s the Helper",
	},
	entity.SparkMagic: {
		Summary: "a gentle enchantment with one clear rule",
		Checklist: []string{
			"a magical element introduced with one clear rule",
			"the rule tested or nearly broken",
			"magic used kindly",
			"the magic fading softly as sleep arrives",
		},
		Beats: []string{
			"a soft glow appears in %[2]s and %[1]s finds a little bit of magic",
			"%[1]s learns the one rule the magic follows",
			"%[1]s almost forgets the rule and remembers just in time",
			"%[1]s uses the magic to do something kind",
			"the magic dims gently, like a night light",
		},
		Title: "%s and the Sleepy Spell",
	},
}

// arcFor 返回灵感类型的叙事弧线，未知类型按 adventure 处理
func arcFor(spark entity.SparkType) sparkArc {
	if arc, ok := sparkArcs[spark]; ok {
		return arc
	}
	return sparkArcs[entity.SparkAdventure]
}

// Checklist 返回灵感类型的必备叙事要素
func Checklist(spark entity.SparkType) []string {
	return append([]string{}, arcFor(spark).Checklist...)
}
