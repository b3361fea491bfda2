package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidCodePrefix(t *testing.T) {
	for _, p := range []string{"G", "NGUYEN", "H2", "ABCDEFGHIJ"} {
		assert.True(t, IsValidCodePrefix(p), p)
	}
	for _, p := range []string{"", "g1", "1G", "G-1", "ABCDEFGHIJK", "Đ"} {
		assert.False(t, IsValidCodePrefix(p), p)
	}
}

func TestCodeFormat(t *testing.T) {
	assert.Equal(t, "G1-001", RootCode("G1", 1))
	assert.Equal(t, "G1-1000", RootCode("G1", 1000))
	assert.Equal(t, "G1-001.002", ChildCode("G1-001", 2))
	assert.Equal(t, "G1-001.002.010", ChildCode("G1-001.002", 10))
}

func TestRootSeq(t *testing.T) {
	seq, ok := RootSeq("G1", "G1-007")
	assert.True(t, ok)
	assert.Equal(t, 7, seq)

	seq, ok = RootSeq("G1", "G1-1000")
	assert.True(t, ok)
	assert.Equal(t, 1000, seq)

	for _, c := range []string{"G1-001.001", "G2-001", "G1-07", "G1-000", "G1-abc", ""} {
		_, ok := RootSeq("G1", c)
		assert.False(t, ok, c)
	}
}

func TestChildSeq(t *testing.T) {
	seq, ok := ChildSeq("G1-001", "G1-001.003")
	assert.True(t, ok)
	assert.Equal(t, 3, seq)

	for _, c := range []string{"G1-001.003.001", "G1-002.003", "G1-001", "G1-0010.001"} {
		_, ok := ChildSeq("G1-001", c)
		assert.False(t, ok, c)
	}
	_, ok = ChildSeq("", ".001")
	assert.False(t, ok)
}

func TestPlaceholderCode(t *testing.T) {
	c := PlaceholderCode(42)
	assert.Equal(t, "~42", c)
	assert.True(t, IsPlaceholderCode(c))
	assert.False(t, IsPlaceholderCode("G-001"))
	assert.False(t, IsValidCodePrefix(c))
}

func TestIsDescendantCode(t *testing.T) {
	assert.True(t, IsDescendantCode("G-001", "G-001.002"))
	assert.True(t, IsDescendantCode("G-001", "G-001.002.003"))
	assert.False(t, IsDescendantCode("G-001", "G-001"))
	assert.False(t, IsDescendantCode("G-001", "G-0010.001"))
	assert.False(t, IsDescendantCode("", "G-001"))
}

func TestCodeDepth(t *testing.T) {
	assert.Equal(t, -1, CodeDepth(""))
	assert.Equal(t, 0, CodeDepth("G-001"))
	assert.Equal(t, 2, CodeDepth("G-001.002.003"))
}
