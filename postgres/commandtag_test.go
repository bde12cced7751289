package postgres

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseCommandTagSelect(t *testing.T) {
	cmd, rows := parseCommandTag("SELECT 3")
	require.Equal(t, "SELECT", cmd)
	require.Equal(t, int64(3), rows)
}

func TestParseCommandTagInsert(t *testing.T) {
	cmd, rows := parseCommandTag("INSERT 0 5")
	require.Equal(t, "INSERT", cmd)
	require.Equal(t, int64(5), rows)
}

func TestParseCommandTagUpdate(t *testing.T) {
	cmd, rows := parseCommandTag("UPDATE 42")
	require.Equal(t, "UPDATE", cmd)
	require.Equal(t, int64(42), rows)
}

func TestParseCommandTagNoCount(t *testing.T) {
	cmd, rows := parseCommandTag("BEGIN")
	require.Equal(t, "BEGIN", cmd)
	require.Equal(t, int64(0), rows)
}
