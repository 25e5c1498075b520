package identity

import (
	"strings"

	"bedtime-story-api/internal/application/story/structured"
	"bedtime-story-api/internal/domain/entity"
)

// 档案属性中可覆盖提取结果的键
const (
	AttrHair            = "hair"
	AttrEyes            = "eyes"
	AttrSkinTone        = "skin_tone"
	AttrFaceFeatures    = "face_features"
	AttrBodyProportions = "body_proportions"
	AttrMustKeep        = "must_keep"
	AttrMustNot         = "must_not"
	AttrTraits          = "traits"
	AttrSpecies         = "species"
	AttrAge             = "age"
)

// Traits 角色外观字段
type Traits struct {
	Hair            string   `json:"hair"`
	Eyes            string   `json:"eyes"`
	SkinTone        string   `json:"skin_tone"`
	FaceFeatures    string   `json:"face_features"`
	BodyProportions string   `json:"body_proportions"`
	MustKeep        []string `json:"must_keep"`
	MustNot         []string `json:"must_not"`
}

var traitsSchema = structured.Schema[Traits]{
	Name:        "identity_traits",
	Description: "{hair, eyes, skin_tone, face_features, body_proportions, must_keep:string[], must_not:string[]}",
	JSONSchema: structured.Object(map[string]any{
		"hair":             structured.String(),
		"eyes":             structured.String(),
		"skin_tone":        structured.String(),
		"face_features":    structured.String(),
		"body_proportions": structured.String(),
		"must_keep":        structured.StringArray(),
		"must_not":         structured.StringArray(),
	}),
	Validate: func(t *Traits) []string {
		var is structured.Issues
		is.Require("hair", t.Hair)
		is.Require("eyes", t.Eyes)
		is.Require("face_features", t.FaceFeatures)
		is.Require("body_proportions", t.BodyProportions)
		return is
	},
}

var (
	kidHair   = []string{"short curly brown hair", "straight black hair in a bob", "wavy auburn hair to the shoulders", "sandy blond hair with a cowlick", "dark hair in two puffs", "light brown hair in a ponytail"}
	adultHair = []string{"short dark hair", "long wavy brown hair", "silver hair in a neat bun", "cropped blond hair", "black hair tied back"}
	furColors = []string{"soft golden fur", "fluffy white fur with grey patches", "sleek black fur", "ginger fur with a white chest", "speckled brown and cream fur"}
	eyeColors = []string{"warm brown eyes", "bright green eyes", "deep blue eyes", "hazel eyes", "dark amber eyes"}
	skinTones = []string{"light peach skin", "warm olive skin", "medium tan skin", "deep brown skin", "light golden skin"}
)

// DeterministicTraits 不依赖模型的外观，按种子选取并以档案属性为准
func DeterministicTraits(profile *entity.CharacterProfile, seed int64) Traits {
	pick := func(options []string, salt int64) string {
		return options[int((seed+salt)%int64(len(options)))]
	}

	var t Traits
	switch profile.Kind {
	case entity.ProfileKindPet:
		species := valueOr(profile.Attributes[AttrSpecies], "puppy")
		t = Traits{
			Hair:            pick(furColors, 0),
			Eyes:            pick(eyeColors, 1),
			FaceFeatures:    "friendly " + species + " face with a small nose",
			BodyProportions: "small " + species + " proportions, soft and round",
		}
	case entity.ProfileKindAdult:
		t = Traits{
			Hair:            pick(adultHair, 0),
			Eyes:            pick(eyeColors, 1),
			SkinTone:        pick(skinTones, 2),
			FaceFeatures:    "kind face with gentle smile lines",
			BodyProportions: "adult proportions, tall next to the children",
		}
	default:
		age := valueOr(profile.Attributes[AttrAge], "five")
		t = Traits{
			Hair:            pick(kidHair, 0),
			Eyes:            pick(eyeColors, 1),
			SkinTone:        pick(skinTones, 2),
			FaceFeatures:    "round cheerful face with rosy cheeks",
			BodyProportions: "small child proportions, about " + age + " years old",
		}
	}

	if traits := strings.TrimSpace(profile.Attributes[AttrTraits]); traits != "" {
		t.MustKeep = append(t.MustKeep, "looks "+traits)
	}
	t.MustNot = []string{"changing hair color or length between pages", "adult features on children"}
	return t
}

// MergeExplicit 档案中显式填写的属性逐字段覆盖提取结果
func MergeExplicit(t Traits, attrs map[string]string) Traits {
	override := func(dst *string, key string) {
		if v := strings.TrimSpace(attrs[key]); v != "" {
			*dst = v
		}
	}
	override(&t.Hair, AttrHair)
	override(&t.Eyes, AttrEyes)
	override(&t.SkinTone, AttrSkinTone)
	override(&t.FaceFeatures, AttrFaceFeatures)
	override(&t.BodyProportions, AttrBodyProportions)
	if v := splitList(attrs[AttrMustKeep]); len(v) > 0 {
		t.MustKeep = v
	}
	if v := splitList(attrs[AttrMustNot]); len(v) > 0 {
		t.MustNot = v
	}
	return t
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func valueOr(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}
