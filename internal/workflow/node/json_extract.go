// Package node 提供 LLM 输出的通用处理工具
package node

import (
	"strings"
)

// StripCodeFences 去掉 Markdown 代码块围栏，保留其中内容
func StripCodeFences(s string) string {
	raw := strings.TrimSpace(s)
	if !strings.Contains(raw, "```") {
		return raw
	}
	start := strings.Index(raw, "```")
	body := raw[start+3:]
	// 跳过语言标记，例如 ```json
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		lang := strings.TrimSpace(body[:nl])
		if !strings.ContainsAny(lang, "{[") {
			body = body[nl+1:]
		}
	}
	if end := strings.Index(body, "```"); end >= 0 {
		body = body[:end]
	}
	return strings.TrimSpace(body)
}

// ExtractJSONObject 从模型输出中截取第一个完整的顶层 JSON 对象
// 会先去除代码围栏；字符串内的括号与转义字符不参与配对。找不到时返回空串
func ExtractJSONObject(s string) string {
	raw := StripCodeFences(s)
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return ""
}
