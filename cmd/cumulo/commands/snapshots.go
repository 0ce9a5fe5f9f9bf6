package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

var (
	snapshotHeaders = []string{"Snapshot ID", "Volume ID", "State", "Progress"}
	snapshotAttrs   = []string{"snapshot_id", "volume_id", "state", "progress"}
)

// NewSnapshotsCommand creates the snapshots command group
func NewSnapshotsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "snapshots",
		Aliases: []string{"snapshot"},
		Short:   "Manage volume snapshots",
		Long:    "List, create and delete Cumulo volume snapshots",
	}

	cmd.AddCommand(newSnapshotsListCommand())
	cmd.AddCommand(newSnapshotsCreateCommand())
	cmd.AddCommand(newSnapshotsDeleteCommand())

	return cmd
}

func newSnapshotsListCommand() *cobra.Command {
	return newListCommand(listConfig{
		short:    "List snapshots",
		long:     "List volume snapshots, optionally following the pagination cursor",
		listAttr: "snapshots",
		headers:  snapshotHeaders,
		attrs:    snapshotAttrs,
		describe: func(ctx context.Context, client cumulo.Client, params *cumulo.Params) (cumulo.AttributeTree, error) {
			return client.Compute().DescribeSnapshots(ctx, params)
		},
		collect: func(client cumulo.Client, params *cumulo.Params) *cumulo.Collection {
			return client.Compute().Snapshots(params)
		},
	})
}

func newSnapshotsCreateCommand() *cobra.Command {
	var (
		description string
		paramFlags  []string
	)

	cmd := &cobra.Command{
		Use:   "create <volume-id>",
		Short: "Create a snapshot of a volume",
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

			if description != "" {
				params.Set("description", description)
			}

			tree, err := client.Compute().CreateSnapshot(context.Background(), args[0], params)
			if err != nil {
				return fmt.Errorf("failed to create snapshot: %w", err)
			}

			return renderOutput(tree, []string{"Property", "Value"}, kvRows(tree))
		},
	}

	cmd.Flags().StringVar(&description, "description", "", "snapshot description")
	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "additional request parameter (name=value, repeatable)")

	return cmd
}

func newSnapshotsDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <snapshot-id>",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			if err := client.Compute().DeleteSnapshot(context.Background(), args[0]); err != nil {
				return fmt.Errorf("failed to delete snapshot: %w", err)
			}

			fmt.Printf("Snapshot %s deleted\n", args[0])

			return nil
		},
	}
}
