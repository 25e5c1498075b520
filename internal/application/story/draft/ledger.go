package draft

import (
	"strings"

	"bedtime-story-api/internal/domain/entity"
)

// LedgerUpdate 单页产生的账本增量
type LedgerUpdate struct {
	NewFacts        []string `json:"new_facts"`
	NewOpenThreads  []string `json:"new_open_threads"`
	ResolvedThreads []string `json:"resolved_threads"`
}

// MergeLedger 合并账本增量：大小写不敏感去重，超出上限时淘汰最旧条目
// 重复出现的条目移到末尾视为最新
func MergeLedger(base entity.ContinuityLedger, u LedgerUpdate, factsCap, threadsCap int) entity.ContinuityLedger {
	facts := appendRecent(base.EstablishedFacts, u.NewFacts)
	threads := appendRecent(base.OpenThreads, u.NewOpenThreads)
	threads = removeFold(threads, u.ResolvedThreads)
	return entity.ContinuityLedger{
		EstablishedFacts: keepLast(facts, factsCap),
		OpenThreads:      keepLast(threads, threadsCap),
	}
}

func appendRecent(existing, incoming []string) []string {
	out := make([]string, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))
	push := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		key := strings.ToLower(s)
		if i, ok := index[key]; ok {
			out[i] = ""
		}
		index[key] = len(out)
		out = append(out, s)
	}
	for _, s := range existing {
		push(s)
	}
	for _, s := range incoming {
		push(s)
	}

	compacted := out[:0]
	for _, s := range out {
		if s != "" {
			compacted = append(compacted, s)
		}
	}
	return compacted
}

func removeFold(items, remove []string) []string {
	if len(remove) == 0 {
		return items
	}
	drop := make(map[string]bool, len(remove))
	for _, r := range remove {
		drop[strings.ToLower(strings.TrimSpace(r))] = true
	}
	out := items[:0]
	for _, s := range items {
		if !drop[strings.ToLower(s)] {
			out = append(out, s)
		}
	}
	return out
}

func keepLast(items []string, limit int) []string {
	if limit > 0 && len(items) > limit {
		items = items[len(items)-limit:]
	}
	return append([]string{}, items...)
}
