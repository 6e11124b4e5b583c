package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	root := newRootCommand()

	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"submit", "history", "retry", "discard", "reconcile", "category", "account", "serve"} {
		assert.True(t, names[want], want)
	}
}

func TestSubmit_RequiresCategoryFlags(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"submit", "lesson.mp4"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "category")
}

func TestParseItemID(t *testing.T) {
	id, err := parseItemID("1700000000123")
	require.NoError(t, err)
	assert.Equal(t, int64(1700000000123), id)

	for _, bad := range []string{"", "abc", "-5", "0"} {
		_, err := parseItemID(bad)
		assert.Error(t, err, bad)
	}
}
