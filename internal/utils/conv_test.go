package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStringToInt(t *testing.T) {
	assert.Equal(t, 42, StringToInt("42"))
	assert.Equal(t, 0, StringToInt(""))
	assert.Equal(t, 0, StringToInt("abc"))
	assert.Equal(t, -7, StringToInt("-7"))
}

func TestStrToBool(t *testing.T) {
	assert.True(t, StrToBool("true"))
	assert.True(t, StrToBool("True"))
	assert.True(t, StrToBool("1"))
	assert.True(t, StrToBool(" true "))
	assert.False(t, StrToBool("false"))
	assert.False(t, StrToBool(""))
	assert.False(t, StrToBool("yes"))
}

func TestSplitCSV(t *testing.T) {
	assert.Nil(t, SplitCSV(""))
	assert.Equal(t, []string{"a", "b"}, SplitCSV("a,b"))
	assert.Equal(t, []string{"a", "b"}, SplitCSV(" a , , b "))
}

func TestSplitCSVInts(t *testing.T) {
	assert.Empty(t, SplitCSVInts(""))
	assert.Equal(t, []int{1, 2, 3}, SplitCSVInts("1,2,3"))
	assert.Equal(t, []int{1, 3}, SplitCSVInts("1,x,3"))
}
