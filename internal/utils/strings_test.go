package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	assert.Nil(t, ParseCSV(""))
	assert.Nil(t, ParseCSV("  , ,"))
	assert.Equal(t, []string{"a"}, ParseCSV("a"))
	assert.Equal(t, []string{"a", "b"}, ParseCSV("a, b"))
	assert.Equal(t, []string{"BALANCE_DELTA", "RATES_UPDATED"}, ParseCSV(" BALANCE_DELTA ,RATES_UPDATED,"))
}
