package draft

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"bedtime-story-api/internal/workflow/node"
)

var paragraphSplit = regexp.MustCompile(`\n\s*\n`)

// RepetitionThresholds 重复检测阈值
type RepetitionThresholds struct {
	TrigramRatio           float64
	MaxDuplicateParagraphs int
}

// DefaultRepetitionThresholds 三元组重复率 2%，不允许任何重复段落
var DefaultRepetitionThresholds = RepetitionThresholds{TrigramRatio: 0.02, MaxDuplicateParagraphs: 0}

// RepetitionReport 重复检测结果
type RepetitionReport struct {
	TrigramRepeatRatio  float64  `json:"trigramRepeatRatio"`
	RepeatedTrigrams    []string `json:"repeatedTrigrams"`
	DuplicateParagraphs []string `json:"duplicateParagraphs"`
	HasProblem          bool     `json:"hasProblem"`
}

// Problems 供改写提示使用的问题描述
func (r RepetitionReport) Problems(th RepetitionThresholds) []string {
	var out []string
	if r.TrigramRepeatRatio > th.TrigramRatio {
		out = append(out, fmt.Sprintf("repeated three-word phrases make up %.1f%% of the text (limit %.1f%%)",
			r.TrigramRepeatRatio*100, th.TrigramRatio*100))
		for _, t := range r.RepeatedTrigrams {
			out = append(out, fmt.Sprintf("repeated phrase: %q", t))
		}
	}
	for _, p := range r.DuplicateParagraphs {
		out = append(out, fmt.Sprintf("duplicate paragraph: %q", node.TruncateByRunes(p, 80)))
	}
	return out
}

// DetectRepetition 统计三元组重复率与完全重复段落
func DetectRepetition(text string, th RepetitionThresholds) RepetitionReport {
	report := RepetitionReport{RepeatedTrigrams: []string{}, DuplicateParagraphs: []string{}}

	words := node.Words(text)
	if len(words) >= 3 {
		counts := make(map[string]int, len(words))
		for i := 0; i+2 < len(words); i++ {
			counts[words[i]+" "+words[i+1]+" "+words[i+2]]++
		}
		total := len(words) - 2
		repeated := 0
		var top []string
		for tri, c := range counts {
			if c > 1 {
				repeated += c - 1
				top = append(top, tri)
			}
		}
		sort.Slice(top, func(i, j int) bool {
			if counts[top[i]] != counts[top[j]] {
				return counts[top[i]] > counts[top[j]]
			}
			return top[i] < top[j]
		})
		if len(top) > 5 {
			top = top[:5]
		}
		report.RepeatedTrigrams = append(report.RepeatedTrigrams, top...)
		report.TrigramRepeatRatio = float64(repeated) / float64(total)
	}

	seen := make(map[string]bool)
	for _, p := range paragraphSplit.Split(text, -1) {
		norm := strings.Join(strings.Fields(strings.ToLower(p)), " ")
		if norm == "" {
			continue
		}
		if seen[norm] {
			report.DuplicateParagraphs = append(report.DuplicateParagraphs, strings.TrimSpace(p))
			continue
		}
		seen[norm] = true
	}

	report.HasProblem = report.TrigramRepeatRatio > th.TrigramRatio ||
		len(report.DuplicateParagraphs) > th.MaxDuplicateParagraphs
	return report
}
