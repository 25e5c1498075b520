package structured

import (
	"fmt"
	"sort"
	"strings"
)

// Issues 收集校验问题
type Issues []string

// Require 字段为空时记录问题
func (is *Issues) Require(field, value string) {
	if strings.TrimSpace(value) == "" {
		*is = append(*is, fmt.Sprintf("%s is required", field))
	}
}

// RequireList 列表为空时记录问题
func (is *Issues) RequireList(field string, values []string) {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return
		}
	}
	*is = append(*is, fmt.Sprintf("%s must contain at least one entry", field))
}

// Addf 记录格式化问题
func (is *Issues) Addf(format string, args ...any) {
	*is = append(*is, fmt.Sprintf(format, args...))
}

// StringArray JSON Schema 字符串数组片段
func StringArray() map[string]any {
	return map[string]any{"type": "array", "items": map[string]any{"type": "string"}}
}

// String JSON Schema 字符串片段
func String() map[string]any {
	return map[string]any{"type": "string"}
}

// Object JSON Schema 对象片段，所有属性均为必填
func Object(props map[string]any) map[string]any {
	required := make([]string, 0, len(props))
	for k := range props {
		required = append(required, k)
	}
	sort.Strings(required)
	return map[string]any{
		"type":                 "object",
		"properties":           props,
		"required":             required,
		"additionalProperties": false,
	}
}
