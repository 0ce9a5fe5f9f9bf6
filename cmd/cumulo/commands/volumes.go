package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

var (
	volumeHeaders = []string{"Volume ID", "Size (GiB)", "State", "Zone"}
	volumeAttrs   = []string{"volume_id", "size", "state", "availability_zone"}
)

// NewVolumesCommand creates the volumes command group
func NewVolumesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "volumes",
		Aliases: []string{"volume"},
		Short:   "Manage block storage volumes",
		Long:    "List, create, attach and delete Cumulo block storage volumes",
	}

	cmd.AddCommand(newVolumesListCommand())
	cmd.AddCommand(newVolumesCreateCommand())
	cmd.AddCommand(newVolumesDeleteCommand())
	cmd.AddCommand(newVolumesAttachCommand())
	cmd.AddCommand(newVolumesDetachCommand())

	return cmd
}

func newVolumesListCommand() *cobra.Command {
	return newListCommand(listConfig{
		short:    "List volumes",
		long:     "List block storage volumes, optionally following the pagination cursor",
		listAttr: "volumes",
		headers:  volumeHeaders,
		attrs:    volumeAttrs,
		describe: func(ctx context.Context, client cumulo.Client, params *cumulo.Params) (cumulo.AttributeTree, error) {
			return client.Compute().DescribeVolumes(ctx, params)
		},
		collect: func(client cumulo.Client, params *cumulo.Params) *cumulo.Collection {
			return client.Compute().Volumes(params)
		},
	})
}

func newVolumesCreateCommand() *cobra.Command {
	var (
		size       int
		zone       string
		volumeType string
		paramFlags []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a volume",
		RunE: func(_ *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			params, err := parseParams(paramFlags)
			if err != nil {
				return err
			}

			params.Set("size", size)

			if zone != "" {
				params.Set("availability_zone", zone)
			}

			if volumeType != "" {
				params.Set("volume_type", volumeType)
			}

			tree, err := client.Compute().CreateVolume(context.Background(), params)
			if err != nil {
				return fmt.Errorf("failed to create volume: %w", err)
			}

			return renderOutput(tree, []string{"Property", "Value"}, kvRows(tree))
		},
	}

	cmd.Flags().IntVar(&size, "size", 0, "volume size in GiB")
	cmd.Flags().StringVar(&zone, "zone", "", "availability zone")
	cmd.Flags().StringVar(&volumeType, "type", "", "volume type")
	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "additional request parameter (name=value, repeatable)")
	_ = cmd.MarkFlagRequired("size")

	return cmd
}

func newVolumesDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <volume-id>",
		Short: "Delete a volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			if err := client.Compute().DeleteVolume(context.Background(), args[0]); err != nil {
				return fmt.Errorf("failed to delete volume: %w", err)
			}

			fmt.Printf("Volume %s deleted\n", args[0])

			return nil
		},
	}
}

func newVolumesAttachCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "attach <volume-id> <instance-id> <device>",
		Short: "Attach a volume to an instance",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			tree, err := client.Compute().AttachVolume(context.Background(), args[0], args[1], args[2])
			if err != nil {
				return fmt.Errorf("failed to attach volume: %w", err)
			}

			return renderOutput(tree, []string{"Property", "Value"}, kvRows(tree))
		},
	}
}

func newVolumesDetachCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "detach <volume-id>",
		Short: "Detach a volume",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			tree, err := client.Compute().DetachVolume(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("failed to detach volume: %w", err)
			}

			return renderOutput(tree, []string{"Property", "Value"}, kvRows(tree))
		},
	}
}
