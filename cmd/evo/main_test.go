package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandWiring(t *testing.T) {
	names := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}

	assert.True(t, names["collect"])
	assert.True(t, names["events"])
	assert.True(t, names["serve"])
}

func TestEventsRejectsArbitraryCap(t *testing.T) {
	eventsMax = 123
	defer func() { eventsMax = 50 }()

	err := runEvents(eventsCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--max-events")
}
