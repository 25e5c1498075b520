// Package identity 维护角色稳定外观与故事内服装
package identity

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"regexp"
	"strings"
)

// SourceHash sha256(photoRef ‖ 规范化属性 JSON)，属性键按字典序
func SourceHash(photoRef string, attrs map[string]string) string {
	normalized := make(map[string]string, len(attrs))
	for k, v := range attrs {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		normalized[k] = v
	}
	// encoding/json 按键排序输出 map
	canonical, _ := json.Marshal(normalized)

	h := sha256.New()
	h.Write([]byte(strings.TrimSpace(photoRef)))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// SeedFromHash 从哈希派生非负随机种子
func SeedFromHash(hash string) int64 {
	b, err := hex.DecodeString(hash)
	if err != nil || len(b) < 8 {
		sum := sha256.Sum256([]byte(hash))
		b = sum[:]
	}
	return int64(binary.BigEndian.Uint64(b[:8]) >> 1)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug 角色名转为档案 ID 片段
func Slug(name string) string {
	s := nonSlug.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "character"
	}
	return s
}
