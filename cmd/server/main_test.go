package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"api", "worker", "migrate"})

	worker, _, err := root.Find([]string{"worker"})
	require.NoError(t, err)
	assert.NotNil(t, worker.Flags().Lookup("type"))
	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}

func TestWorkerRejectsUnknownType(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"worker", "--type", "video"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unsupported worker type "video"`)
}

func TestWorkerRequiresType(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"worker"})

	require.Error(t, root.Execute())
}

func TestMigrateRejectsUnknownCommand(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"migrate", "sideways"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid argument")
}
