package node

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// TruncateByRunes 按字符数截断
func TruncateByRunes(s string, maxRunes int) string {
	if maxRunes <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= maxRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == maxRunes {
			return s[:i]
		}
		n++
	}
	return s
}

// CountWords 以空白分隔统计单词数
func CountWords(s string) int {
	return len(strings.Fields(s))
}

// Words 小写化并去掉首尾标点后的单词序列
func Words(s string) []string {
	fields := strings.Fields(strings.ToLower(s))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

// BulletList 以 "- " 前缀逐行渲染，空列表返回 fallback
func BulletList(items []string, fallback string) string {
	var b strings.Builder
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(it)
	}
	if b.Len() == 0 {
		return fallback
	}
	return b.String()
}
