package draft

import (
	"strings"
	"unicode"

	"bedtime-story-api/internal/domain/entity"
	"bedtime-story-api/internal/workflow/node"
)

// fillerSentences 兜底页面的舒缓填充句，{hero} 为主角占位符
var fillerSentences = []string{
	"{hero} took a slow, happy breath of the cool evening air.",
	"Somewhere nearby, a cricket began its soft little song.",
	"The sky turned from gold to lavender, then to deep blue.",
	"A gentle breeze rustled the leaves like a whispered secret.",
	"{hero} smiled, feeling safe and warm and very curious.",
	"Tiny fireflies blinked on and off like friendly lanterns.",
	"The grass was soft and damp beneath small careful feet.",
	"An owl hooted once, as if to say good evening.",
	"{hero} listened closely and heard the world settling down.",
	"The moon rose round and bright above the sleepy hills.",
	"Everything smelled of clover, pine and warm bread.",
	"{hero} hummed a quiet tune that nobody else knew.",
	"Little stars appeared, one after another, shy at first.",
	"A sleepy bird fluffed its feathers and tucked in its head.",
	"The path glowed silver wherever the moonlight touched it.",
	"{hero} noticed how calm and slow everything had become.",
	"Far away, a window glowed with a cozy yellow light.",
	"The wind sighed softly and then grew very still.",
	"{hero} wiggled cold toes and laughed a small laugh.",
	"Even the pond seemed to be holding its breath.",
	"A leaf drifted down and landed right on a shoulder.",
	"{hero} felt brave and gentle at the very same time.",
	"Clouds floated by like soft pillows in the sky.",
	"A rabbit peeked out, twitched its nose, and hopped away.",
	"The evening was quiet enough to hear a heartbeat.",
	"{hero} remembered that home was never very far.",
	"Dew sparkled on the flowers like tiny scattered jewels.",
	"The trees stood tall, keeping watch like kind giants.",
	"{hero} yawned a tiny yawn and rubbed sleepy eyes.",
	"A frog croaked twice and then politely stopped.",
	"Warm light spilled across the ground in long stripes.",
	"{hero} thought about all the good things that day.",
	"The night air wrapped around everything like a blanket.",
	"Moths danced slowly around a glowing flower.",
	"{hero} took one more look and felt very content.",
	"The world seemed to whisper that all was well.",
}

// closingSentences 整篇长度不足时追加的收尾句
var closingSentences = []string{
	"Outside, the night grew softer and quieter.",
	"The stars kept their gentle watch over every sleepy house.",
	"The moon hummed a silent lullaby to the hills.",
	"Every little creature curled up in its own cozy nest.",
	"The last light in the window blinked off.",
	"A warm blanket of dreams settled over {hero}.",
	"Breathing slowly, {hero} felt safe, warm and loved.",
	"Tomorrow would bring new adventures, but now it was time to rest.",
	"The house creaked gently, like it was yawning too.",
	"Soft moonbeams drifted across the pillow.",
	"Somewhere, an owl whispered goodnight to the trees.",
	"And the whole world slept, peaceful and still.",
}

// FallbackPage 根据节拍生成确定性页面，长度达到单页目标
func FallbackPage(beat entity.Beat, hero string, target WordTargets) string {
	hero = strings.TrimSpace(hero)
	if hero == "" {
		hero = "Our friend"
	}

	sentences := []string{sentence(beat.BeatGoal)}
	goal := strings.ToLower(beat.BeatGoal)
	for _, item := range beat.MustInclude {
		item = strings.TrimSpace(item)
		if item == "" || strings.Contains(goal, strings.ToLower(item)) {
			continue
		}
		sentences = append(sentences, sentence("Along the way there was "+item))
	}

	text := strings.Join(sentences, " ")
	offset := beat.PageNumber * 7
	for k := 0; node.CountWords(text) < target.Target && k < len(fillerSentences); k++ {
		s := fillerSentences[(offset+k)%len(fillerSentences)]
		text += " " + strings.ReplaceAll(s, "{hero}", hero)
	}
	return text
}

// padStory 在末页追加收尾句直至整篇达到下限，返回追加后的页面
func padStory(pages []string, hero string, min int) []string {
	if len(pages) == 0 {
		return pages
	}
	out := append([]string{}, pages...)
	total := countPages(out)
	last := len(out) - 1
	for i := 0; total < min && i < len(closingSentences); i++ {
		s := strings.ReplaceAll(closingSentences[i], "{hero}", hero)
		out[last] = strings.TrimSpace(out[last]) + " " + s
		total += node.CountWords(s)
	}
	return out
}

func countPages(pages []string) int {
	n := 0
	for _, p := range pages {
		n += node.CountWords(p)
	}
	return n
}

func sentence(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	s = string(r)
	if !strings.HasSuffix(s, ".") && !strings.HasSuffix(s, "!") && !strings.HasSuffix(s, "?") {
		s += "."
	}
	return s
}
