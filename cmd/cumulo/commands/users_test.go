package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewUsersCommand(t *testing.T) {
	cmd := NewUsersCommand()
	assert.Equal(t, "users", cmd.Use)
	assert.Equal(t, []string{"user"}, cmd.Aliases)
	assert.Equal(t, "Manage identity users", cmd.Short)

	subcommands := cmd.Commands()
	assert.Len(t, subcommands, 4)

	var commandNames []string
	for _, subcmd := range subcommands {
		commandNames = append(commandNames, subcmd.Name())
	}

	assert.Contains(t, commandNames, "list")
	assert.Contains(t, commandNames, "get")
	assert.Contains(t, commandNames, "create")
	assert.Contains(t, commandNames, "delete")
}

func TestNewAccessKeysCommand(t *testing.T) {
	cmd := NewAccessKeysCommand()
	assert.Equal(t, "access-keys", cmd.Use)
	assert.Contains(t, cmd.Aliases, "access-key")

	subcommands := cmd.Commands()
	assert.Len(t, subcommands, 3)

	for _, subcmd := range subcommands {
		assert.NotNil(t, subcmd.Flags().Lookup("user"), "%s must take --user", subcmd.Name())
	}
}

func TestNewCallCommand(t *testing.T) {
	cmd := NewCallCommand()
	assert.Equal(t, "call <service> <action>", cmd.Use)
	assert.Equal(t, "Execute a raw API action", cmd.Short)
	assert.NotNil(t, cmd.RunE)
	assert.NotNil(t, cmd.Args)
	assert.NotNil(t, cmd.Flags().Lookup("param"))
}
