package dto

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bedtime-story-api/internal/domain/repository"
)

// BindPagination 从查询参数绑定分页
func BindPagination(c *gin.Context) repository.Pagination {
	return repository.NewPagination(
		parseIntWithDefault(c.Query("page"), 1),
		parseIntWithDefault(c.Query("page_size"), 50),
	)
}

// BindStoryID 路径参数 :sid
func BindStoryID(c *gin.Context) (string, error) {
	id := strings.TrimSpace(c.Param("sid"))
	if id == "" {
		return "", fmt.Errorf("story id is required")
	}
	return id, nil
}

// BindPageIndex 路径参数 :index，0 起
func BindPageIndex(c *gin.Context) (int, error) {
	idx, err := strconv.Atoi(c.Param("index"))
	if err != nil || idx < 0 {
		return 0, fmt.Errorf("page index must be a non-negative integer")
	}
	return idx, nil
}

func parseIntWithDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
