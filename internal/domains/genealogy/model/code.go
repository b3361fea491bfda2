package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// =====================================================
// HIERARCHICAL CODE FORMAT
// =====================================================
// Root:     {prefix}-{seq:03d}          G1-001
// Non-root: {parentCode}.{seq:03d}      G1-001.002.001
//
// %03d chỉ là độ rộng tối thiểu, seq > 999 vẫn hợp lệ (G1-1000).

const (
	rootSeparator  = "-"
	childSeparator = "."

	// placeholderPrefix không thể xuất hiện trong code thật vì prefix chỉ gồm [A-Z0-9]
	placeholderPrefix = "~"
)

var codePrefixPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{0,9}$`)

// IsValidCodePrefix checks a family group prefix.
func IsValidCodePrefix(prefix string) bool {
	return codePrefixPattern.MatchString(prefix)
}

func RootCode(prefix string, seq int) string {
	return fmt.Sprintf("%s%s%03d", prefix, rootSeparator, seq)
}

func ChildCode(parentCode string, seq int) string {
	return fmt.Sprintf("%s%s%03d", parentCode, childSeparator, seq)
}

// PlaceholderCode là code tạm dùng trong phase 1 của renumbering.
// Dẫn xuất từ member id nên không thể trùng giữa hai member.
func PlaceholderCode(memberID int64) string {
	return placeholderPrefix + strconv.FormatInt(memberID, 10)
}

func IsPlaceholderCode(code string) bool {
	return strings.HasPrefix(code, placeholderPrefix)
}

// RootSeq parses the sequence of a root code belonging to prefix.
// ok is false when code is not a root code of that prefix.
func RootSeq(prefix, code string) (seq int, ok bool) {
	head := prefix + rootSeparator
	if !strings.HasPrefix(code, head) {
		return 0, false
	}
	rest := code[len(head):]
	if strings.Contains(rest, childSeparator) {
		return 0, false
	}
	return parseSeq(rest)
}

// ChildSeq parses the last segment of code when code is a direct child of parentCode.
func ChildSeq(parentCode, code string) (seq int, ok bool) {
	head := parentCode + childSeparator
	if parentCode == "" || !strings.HasPrefix(code, head) {
		return 0, false
	}
	rest := code[len(head):]
	if strings.Contains(rest, childSeparator) {
		return 0, false
	}
	return parseSeq(rest)
}

// IsDescendantCode reports whether code lies strictly below ancestorCode.
func IsDescendantCode(ancestorCode, code string) bool {
	return ancestorCode != "" && strings.HasPrefix(code, ancestorCode+childSeparator)
}

// CodeDepth trả về số generation tính từ root (root = 0)
func CodeDepth(code string) int {
	if code == "" {
		return -1
	}
	return strings.Count(code, childSeparator)
}

func parseSeq(s string) (int, bool) {
	if len(s) < 3 {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
