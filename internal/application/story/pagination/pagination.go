// Package pagination 将故事正文切分为插画页面
package pagination

import (
	"regexp"
	"strings"
	"unicode"
)

var blankLine = regexp.MustCompile(`\n\s*\n`)

// PageText 切分后的页面，PageIndex 从 0 开始连续
type PageText struct {
	PageIndex int    `json:"page_index"`
	Text      string `json:"text"`
}

// PageLimit 内容页上限，clamp(minutes*2, 2, 120) - 1，预留一页给封面
func PageLimit(minutes int) int {
	n := minutes * 2
	if n < 2 {
		n = 2
	}
	if n > 120 {
		n = 120
	}
	return n - 1
}

// BuildStoryPageTexts 按空行切段（无空行时按句子），均匀分入 min(PageLimit, 段数) 页
func BuildStoryPageTexts(content string, minutes int) []PageText {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	if content == "" {
		return []PageText{}
	}

	units, sep := splitParagraphs(content), "\n\n"
	if len(units) <= 1 {
		units, sep = SplitSentences(content), " "
	}

	count := PageLimit(minutes)
	if len(units) < count {
		count = len(units)
	}

	pages := make([]PageText, 0, count)
	for i := 0; i < count; i++ {
		start := i * len(units) / count
		end := (i + 1) * len(units) / count
		pages = append(pages, PageText{
			PageIndex: i,
			Text:      strings.Join(units[start:end], sep),
		})
	}
	return pages
}

func splitParagraphs(content string) []string {
	var out []string
	for _, p := range blankLine.Split(content, -1) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitSentences 按句末标点切句，保留标点及紧随的引号；后接小写字母时不切分
func SplitSentences(text string) []string {
	var out []string
	runes := []rune(strings.TrimSpace(text))
	start := 0
	for i := 0; i < len(runes); i++ {
		if !isTerminal(runes[i]) {
			continue
		}
		end := i + 1
		for end < len(runes) && (isTerminal(runes[end]) || isClosing(runes[end])) {
			end++
		}
		if end < len(runes) && !isSpace(runes[end]) {
			i = end - 1
			continue
		}
		if next := nextNonSpace(runes, end); next >= 0 && unicode.IsLower(runes[next]) {
			i = end - 1
			continue
		}
		if s := strings.TrimSpace(string(runes[start:end])); s != "" {
			out = append(out, s)
		}
		start = end
		i = end - 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func isTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isClosing(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == '”' || r == '’'
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\n' || r == '\t'
}

func nextNonSpace(runes []rune, from int) int {
	for j := from; j < len(runes); j++ {
		if !isSpace(runes[j]) {
			return j
		}
	}
	return -1
}
