package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "$1", Placeholder("postgresql", 1))
	assert.Equal(t, "$3", Placeholder("postgresql", 3))
	assert.Equal(t, "?", Placeholder("mysql", 1))
	assert.Equal(t, "?", Placeholder("mysql", 2))
}

func TestValidIdentifier(t *testing.T) {
	testCases := []struct {
		name string
		out  bool
		msg  string
	}{
		{"cydime_scores", true, "snake case"},
		{"Alerts2", true, "mixed case with digit"},
		{"_private", true, "leading underscore"},
		{"2fast", false, "leading digit"},
		{"scores; DROP TABLE x", false, "injection"},
		{"a.b", false, "qualified name"},
		{"", false, "empty"},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.out, ValidIdentifier(testCase.name), testCase.msg)
	}
}

func TestOpenSQLUnsupported(t *testing.T) {
	_, err := OpenSQL("sqlite", "file.db")
	assert.Error(t, err)

	_, err = OpenSQL("mysql", "")
	assert.Error(t, err)
}
