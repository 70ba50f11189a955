package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	cmd, err := lookup([]string{" UP "})
	require.NoError(t, err)
	assert.Equal(t, "up", cmd.name)

	cmd, err = lookup([]string{"down", "1"})
	require.NoError(t, err)
	assert.Equal(t, "down", cmd.name)

	for _, args := range [][]string{nil, {"down"}, {"drop"}} {
		_, err := lookup(args)
		assert.ErrorIs(t, err, errUsage, "%v", args)
	}
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("000001")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	for _, raw := range []string{"", "0", "-3", "init"} {
		_, err := parseVersion(raw)
		assert.Error(t, err, raw)
	}
}

func TestPrintUsageListsEveryCommand(t *testing.T) {
	var buf bytes.Buffer
	printUsage(&buf)
	out := buf.String()

	assert.Contains(t, out, "GoraHrib")
	for _, c := range commands {
		assert.Contains(t, out, c.name)
		assert.Contains(t, out, c.summary)
	}
	assert.Contains(t, out, "down <version>")
}
