package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

var (
	instanceHeaders = []string{"Instance ID", "State", "Type", "Zone"}
	instanceAttrs   = []string{"instance_id", "state", "instance_type", "availability_zone"}

	instanceStateHeaders = []string{"Instance ID", "State"}
	instanceStateAttrs   = []string{"instance_id", "state"}
)

// NewInstancesCommand creates the instances command group
func NewInstancesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "instances",
		Aliases: []string{"instance"},
		Short:   "Manage compute instances",
		Long:    "List, launch and manage Cumulo compute instances",
	}

	cmd.AddCommand(newInstancesListCommand())
	cmd.AddCommand(newInstancesRunCommand())
	cmd.AddCommand(newInstanceStateCommand("start", "Start stopped instances", startInstances))
	cmd.AddCommand(newInstanceStateCommand("stop", "Stop running instances", stopInstances))
	cmd.AddCommand(newInstanceStateCommand("terminate", "Terminate instances", terminateInstances))

	return cmd
}

func newInstancesListCommand() *cobra.Command {
	return newListCommand(listConfig{
		short:    "List instances",
		long:     "List compute instances, optionally following the pagination cursor",
		listAttr: "instances",
		headers:  instanceHeaders,
		attrs:    instanceAttrs,
		describe: func(ctx context.Context, client cumulo.Client, params *cumulo.Params) (cumulo.AttributeTree, error) {
			return client.Compute().DescribeInstances(ctx, params)
		},
		collect: func(client cumulo.Client, params *cumulo.Params) *cumulo.Collection {
			return client.Compute().Instances(params)
		},
	})
}

func newInstancesRunCommand() *cobra.Command {
	var (
		imageID      string
		instanceType string
		count        int
		paramFlags   []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Launch instances",
		Long:  "Launch one or more instances from an image",
		RunE: func(_ *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			params, err := parseParams(paramFlags)
			if err != nil {
				return err
			}

			params.Set("image_id", imageID)

			if instanceType != "" {
				params.Set("instance_type", instanceType)
			}

			if count > 0 {
				params.Set("count", count)
			}

			tree, err := client.Compute().RunInstances(context.Background(), params)
			if err != nil {
				return fmt.Errorf("failed to launch instances: %w", err)
			}

			items := tree.Trees("instances")

			return renderOutput(items, instanceStateHeaders, itemRows(items, instanceStateAttrs))
		},
	}

	cmd.Flags().StringVar(&imageID, "image", "", "image ID to launch from")
	cmd.Flags().StringVar(&instanceType, "type", "", "instance type")
	cmd.Flags().IntVar(&count, "count", 1, "number of instances")
	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "additional request parameter (name=value, repeatable)")
	_ = cmd.MarkFlagRequired("image")

	return cmd
}

func newInstanceStateCommand(use, short string, change func(ctx context.Context, client cumulo.Client, ids []string) (cumulo.AttributeTree, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <instance-id>...",
		Short: short,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			tree, err := change(context.Background(), client, args)
			if err != nil {
				return fmt.Errorf("failed to %s instances: %w", use, err)
			}

			items := tree.Trees("instances")

			return renderOutput(items, instanceStateHeaders, itemRows(items, instanceStateAttrs))
		},
	}
}

func startInstances(ctx context.Context, client cumulo.Client, ids []string) (cumulo.AttributeTree, error) {
	return client.Compute().StartInstances(ctx, ids...)
}

func stopInstances(ctx context.Context, client cumulo.Client, ids []string) (cumulo.AttributeTree, error) {
	return client.Compute().StopInstances(ctx, ids...)
}

func terminateInstances(ctx context.Context, client cumulo.Client, ids []string) (cumulo.AttributeTree, error) {
	return client.Compute().TerminateInstances(ctx, ids...)
}
