package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewCallCommand creates the raw API call command
func NewCallCommand() *cobra.Command {
	var paramFlags []string

	cmd := &cobra.Command{
		Use:   "call <service> <action>",
		Short: "Execute a raw API action",
		Long: `Execute any API action against a service and print the parsed response.

Useful for actions the resource commands do not cover:

  cumulo call compute DescribeInstances --param instance_id=i-0abc12de
  cumulo call identity ListGroups -o json`,
		Args: cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			params, err := parseParams(paramFlags)
			if err != nil {
				return err
			}

			tree, err := client.Call(context.Background(), args[0], args[1], params)
			if err != nil {
				return fmt.Errorf("failed to call %s.%s: %w", args[0], args[1], err)
			}

			return renderOutput(tree, []string{"Property", "Value"}, kvRows(tree))
		},
	}

	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "request parameter (name=value, repeatable)")

	return cmd
}
