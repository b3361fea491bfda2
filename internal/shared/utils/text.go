package utils

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims, collapses inner whitespace and converts to NFC so the
// same name typed on different keyboards is stored identically.
func NormalizeName(name string) string {
	return norm.NFC.String(strings.Join(strings.Fields(name), " "))
}

// FoldName bỏ dấu + lowercase để search không phân biệt dấu
// "Nguyễn Văn Đức" -> "nguyen van duc"
func FoldName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, name)
	if err != nil {
		folded = name
	}
	// đ/Đ không phải dấu kết hợp nên NFD không tách được
	folded = strings.NewReplacer("đ", "d", "Đ", "D").Replace(folded)
	return strings.ToLower(NormalizeName(folded))
}

// ContainsFolded reports whether needle occurs in haystack ignoring case and accents.
func ContainsFolded(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(FoldName(haystack), FoldName(needle))
}
