package entity

import "strings"

// SparkType 故事灵感类型，决定叙事弧线规则
type SparkType string

const (
	SparkAdventure  SparkType = "adventure"
	SparkMystery    SparkType = "mystery"
	SparkBrave      SparkType = "brave"
	SparkFriendship SparkType = "friendship"
	SparkSilly      SparkType = "silly"
	SparkDiscovery  SparkType = "discovery"
	SparkHelper     SparkType = "helper"
	SparkMagic      SparkType = "magic"
)

// ParseSpark 解析灵感类型，未知值返回 adventure
func ParseSpark(s string) SparkType {
	switch SparkType(strings.ToLower(strings.TrimSpace(s))) {
	case SparkMystery:
		return SparkMystery
	case SparkBrave:
		return SparkBrave
	case SparkFriendship:
		return SparkFriendship
	case SparkSilly:
		return SparkSilly
	case SparkDiscovery:
		return SparkDiscovery
	case SparkHelper:
		return SparkHelper
	case SparkMagic:
		return SparkMagic
	default:
		return SparkAdventure
	}
}

// BibleCharacter 故事圣经中的角色
type BibleCharacter struct {
	Name   string   `json:"name"`
	Role   string   `json:"role"`
	Traits []string `json:"traits"`
}

// StoryBible 故事圣经，整篇故事的不变设定
type StoryBible struct {
	Title           string           `json:"title"`
	AudienceAge     string           `json:"audience_age"`
	Tone            string           `json:"tone"`
	Setting         string           `json:"setting"`
	Rules           []string         `json:"rules"`
	Characters      []BibleCharacter `json:"characters"`
	AllowedEntities []string         `json:"allowed_entities"`
	Forbidden       []string         `json:"forbidden"`
	EndingGoal      string           `json:"ending_goal"`
}

// CharacterNames 返回角色名列表
func (b *StoryBible) CharacterNames() []string {
	names := make([]string, 0, len(b.Characters))
	for _, c := range b.Characters {
		names = append(names, c.Name)
	}
	return names
}

// Beat 单页节拍
type Beat struct {
	PageNumber     int      `json:"pageNumber"`
	BeatGoal       string   `json:"beatGoal"`
	MustInclude    []string `json:"mustInclude"`
	MustNotInclude []string `json:"mustNotInclude"`
	Transition     string   `json:"transition"`
}

// BeatSheet 节拍表，页数与节拍数一致
type BeatSheet struct {
	PageCount int    `json:"page_count"`
	Pages     []Beat `json:"pages"`
}

// ContinuityLedger 连续性账本
type ContinuityLedger struct {
	EstablishedFacts []string `json:"established_facts"`
	OpenThreads      []string `json:"open_threads"`
}

// Clone 深拷贝
func (l ContinuityLedger) Clone() ContinuityLedger {
	return ContinuityLedger{
		EstablishedFacts: append([]string{}, l.EstablishedFacts...),
		OpenThreads:      append([]string{}, l.OpenThreads...),
	}
}

// StoryPlan 规划阶段产物
type StoryPlan struct {
	Bible     StoryBible       `json:"storyBible"`
	BeatSheet BeatSheet        `json:"beatSheet"`
	Ledger    ContinuityLedger `json:"continuityLedger"`
	// FromFallback 仅用于日志，下游不得据此分支
	FromFallback bool `json:"-"`
}
