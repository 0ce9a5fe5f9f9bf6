package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

var (
	userHeaders = []string{"User Name", "User ID", "Created"}
	userAttrs   = []string{"user_name", "user_id", "create_date"}
)

// NewUsersCommand creates the users command group
func NewUsersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "Manage identity users",
		Long:    "List, inspect, create and delete Cumulo identity users",
	}

	cmd.AddCommand(newUsersListCommand())
	cmd.AddCommand(newUsersGetCommand())
	cmd.AddCommand(newUsersCreateCommand())
	cmd.AddCommand(newUsersDeleteCommand())

	return cmd
}

func newUsersListCommand() *cobra.Command {
	return newListCommand(listConfig{
		short:    "List users",
		long:     "List identity users, optionally following the pagination cursor",
		listAttr: "users",
		headers:  userHeaders,
		attrs:    userAttrs,
		describe: func(ctx context.Context, client cumulo.Client, params *cumulo.Params) (cumulo.AttributeTree, error) {
			return client.Identity().ListUsers(ctx, params)
		},
		collect: func(client cumulo.Client, params *cumulo.Params) *cumulo.Collection {
			return client.Identity().Users(params)
		},
	})
}

func newUsersGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <user-name>",
		Short: "Show one user",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			tree, err := client.Identity().GetUser(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to get user: %w", err)
			}

			user := tree.Tree("user")

			return renderOutput(user, []string{"Property", "Value"}, kvRows(user))
		},
	}
}

func newUsersCreateCommand() *cobra.Command {
	var (
		path       string
		paramFlags []string
	)

	cmd := &cobra.Command{
		Use:   "create <user-name>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			params, err := parseParams(paramFlags)
			if err != nil {
				return err
			}

			if path != "" {
				params.Set("path", path)
			}

			tree, err := client.Identity().CreateUser(context.Background(), args[0], params)
			if err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}

			user := tree.Tree("user")

			return renderOutput(user, []string{"Property", "Value"}, kvRows(user))
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "organizational path for the user")
	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "additional request parameter (name=value, repeatable)")

	return cmd
}

func newUsersDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <user-name>",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			if err := client.Identity().DeleteUser(context.Background(), args[0]); err != nil {
				return fmt.Errorf("failed to delete user: %w", err)
			}

			fmt.Printf("User %s deleted\n", args[0])

			return nil
		},
	}
}
