package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	accessKeyHeaders = []string{"Access Key ID", "User", "Status", "Created"}
	accessKeyAttrs   = []string{"access_key_id", "user_name", "status", "create_date"}
)

// NewAccessKeysCommand creates the access-keys command group
func NewAccessKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "access-keys",
		Aliases: []string{"access-key", "keys"},
		Short:   "Manage access keys",
		Long:    "List, create and delete access keys for an identity user",
	}

	cmd.AddCommand(newAccessKeysListCommand())
	cmd.AddCommand(newAccessKeysCreateCommand())
	cmd.AddCommand(newAccessKeysDeleteCommand())

	return cmd
}

func newAccessKeysListCommand() *cobra.Command {
	var userName string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's access keys",
		RunE: func(_ *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			tree, err := client.Identity().ListAccessKeys(context.Background(), userName)
			if err != nil {
				return fmt.Errorf("failed to list access keys: %w", err)
			}

			items := tree.Trees("access_keys")

			return renderOutput(items, accessKeyHeaders, itemRows(items, accessKeyAttrs))
		},
	}

	cmd.Flags().StringVarP(&userName, "user", "u", "", "user name (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newAccessKeysCreateCommand() *cobra.Command {
	var userName string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an access key",
		Long:  "Create an access key for a user. The secret is shown once and cannot be retrieved again.",
		RunE: func(_ *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			tree, err := client.Identity().CreateAccessKey(context.Background(), userName)
			if err != nil {
				return fmt.Errorf("failed to create access key: %w", err)
			}

			key := tree.Tree("access_key")

			return renderOutput(key, []string{"Property", "Value"}, kvRows(key))
		},
	}

	cmd.Flags().StringVarP(&userName, "user", "u", "", "user name (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newAccessKeysDeleteCommand() *cobra.Command {
	var userName string

	cmd := &cobra.Command{
		Use:   "delete <access-key-id>",
		Short: "Delete an access key",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			if err := client.Identity().DeleteAccessKey(context.Background(), userName, args[0]); err != nil {
				return fmt.Errorf("failed to delete access key: %w", err)
			}

			fmt.Printf("Access key %s deleted\n", args[0])

			return nil
		},
	}

	cmd.Flags().StringVarP(&userName, "user", "u", "", "user name (required)")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}
