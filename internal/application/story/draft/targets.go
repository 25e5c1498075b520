// Package draft 逐页起草故事正文并执行改写与长度校正
package draft

import "math"

// DefaultWordsPerMinute 朗读语速
const DefaultWordsPerMinute = 170

// WordTargets 字数目标区间
type WordTargets struct {
	Target int `json:"target"`
	Min    int `json:"min"`
	Max    int `json:"max"`
}

// Contains 字数是否落在区间内
func (w WordTargets) Contains(n int) bool {
	return n >= w.Min && n <= w.Max
}

// GetWordTargets 朗读时长对应的整篇字数目标，下限 85%，上限 115%
func GetWordTargets(minutes int) WordTargets {
	return WordTargetsFor(minutes, DefaultWordsPerMinute)
}

// WordTargetsFor 指定语速下的整篇字数目标
func WordTargetsFor(minutes, wordsPerMinute int) WordTargets {
	if minutes < 1 {
		minutes = 1
	}
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}
	target := minutes * wordsPerMinute
	return WordTargets{
		Target: target,
		Min:    int(math.Round(float64(target) * 0.85)),
		Max:    int(math.Round(float64(target) * 1.15)),
	}
}

// PageTargets 单页字数目标，max(floor, overall/pageCount)，区间 [0.8x, 1.2x]
func PageTargets(overall WordTargets, pageCount, floor int) WordTargets {
	if pageCount < 1 {
		pageCount = 1
	}
	target := overall.Target / pageCount
	if target < floor {
		target = floor
	}
	return WordTargets{
		Target: target,
		Min:    int(math.Round(float64(target) * 0.8)),
		Max:    int(math.Round(float64(target) * 1.2)),
	}
}
