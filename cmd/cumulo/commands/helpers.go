// Package commands implements the cumulo CLI commands.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/cumulo-io/cumulo-client/internal/constants"
	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
	"github.com/cumulo-io/cumulo-client/pkg/cumuloclient"
)

var errInvalidParam = errors.New("invalid parameter")

// newClient builds an API client from the resolved CLI configuration
// (flags, environment, config file).
func newClient() (cumulo.Client, error) {
	config := &cumulo.Config{
		Endpoint: viper.GetString("endpoint"),
		Region:   viper.GetString("region"),
		Protocol: cumulo.Protocol(viper.GetString("protocol")),
		Debug:    viper.GetBool("debug"),
		Credentials: &cumulo.Credentials{
			AccessKeyID:     viper.GetString("access_key_id"),
			SecretAccessKey: viper.GetString("secret_access_key"),
			SessionToken:    viper.GetString("session_token"),
		},
	}

	if viper.GetBool("cache") {
		config.Cache = &cumulo.CacheConfig{Type: cumulo.CacheTypeMemory}
	}

	client, err := cumuloclient.New(config)
	if err != nil {
		return nil, fmt.Errorf("creating client: %w", err)
	}

	return client, nil
}

// parseParams converts repeated name=value flags into request parameters.
func parseParams(pairs []string) (*cumulo.Params, error) {
	params := cumulo.NewParams()

	for _, pair := range pairs {
		name, value, found := strings.Cut(pair, "=")
		if !found || name == "" {
			return nil, fmt.Errorf("%w: %q (want name=value)", errInvalidParam, pair)
		}

		params.Set(name, value)
	}

	return params, nil
}

// renderOutput writes value as JSON or YAML when configured, otherwise as a
// table built from headers and rows.
func renderOutput(value interface{}, headers []string, rows [][]string) error {
	switch viper.GetString("output") {
	case constants.FormatJSON:
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", strings.Repeat(" ", constants.JSONIndentSize))

		return encoder.Encode(value)
	case constants.FormatYAML:
		return yaml.NewEncoder(os.Stdout).Encode(value)
	default:
		return renderTable(headers, rows)
	}
}

func renderTable(headers []string, rows [][]string) error {
	table := tablewriter.NewWriter(os.Stdout)

	headerCells := make([]interface{}, len(headers))
	for i, header := range headers {
		headerCells[i] = header
	}

	table.Header(headerCells...)

	for _, row := range rows {
		cells := make([]interface{}, len(row))
		for i, cell := range row {
			cells[i] = cell
		}

		_ = table.Append(cells...)
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}

	return nil
}

// itemRows projects list items onto table columns, one row per item.
func itemRows(items []cumulo.AttributeTree, attrs []string) [][]string {
	rows := make([][]string, 0, len(items))

	for _, item := range items {
		row := make([]string, len(attrs))
		for i, attr := range attrs {
			row[i] = displayValue(item, attr)
		}

		rows = append(rows, row)
	}

	return rows
}

// kvRows flattens a tree into sorted property/value rows.
func kvRows(tree cumulo.AttributeTree) [][]string {
	keys := tree.Keys()
	rows := make([][]string, 0, len(keys))

	for _, key := range keys {
		rows = append(rows, []string{key, displayValue(tree, key)})
	}

	return rows
}

// listConfig parameterizes newListCommand for one resource listing.
type listConfig struct {
	short    string
	long     string
	listAttr string
	headers  []string
	attrs    []string
	describe func(ctx context.Context, client cumulo.Client, params *cumulo.Params) (cumulo.AttributeTree, error)
	collect  func(client cumulo.Client, params *cumulo.Params) *cumulo.Collection
}

// newListCommand builds a list subcommand with the shared paging flags. With
// --all it follows the pagination cursor; otherwise it fetches one page.
func newListCommand(config listConfig) *cobra.Command {
	var (
		allPages   bool
		maxResults int
		paramFlags []string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: config.short,
		Long:  config.long,
		RunE: func(_ *cobra.Command, _ []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}

			params, err := parseParams(paramFlags)
			if err != nil {
				return err
			}

			if maxResults > 0 {
				params.Set("max_results", maxResults)
			}

			ctx := context.Background()

			var items []cumulo.AttributeTree

			if allPages {
				items, err = config.collect(client, params).All(ctx)
			} else {
				var tree cumulo.AttributeTree

				tree, err = config.describe(ctx, client, params)
				if tree != nil {
					items = tree.Trees(config.listAttr)
				}
			}

			if err != nil {
				return fmt.Errorf("failed to list %s: %w", config.listAttr, err)
			}

			return renderOutput(items, config.headers, itemRows(items, config.attrs))
		},
	}

	cmd.Flags().BoolVar(&allPages, "all", false, "fetch all pages")
	cmd.Flags().IntVar(&maxResults, "max-results", 0, "results per page")
	cmd.Flags().StringArrayVar(&paramFlags, "param", nil, "additional request parameter (name=value, repeatable)")

	return cmd
}

// displayValue renders one attribute for table output. Nested values are
// shown as compact JSON.
func displayValue(tree cumulo.AttributeTree, attr string) string {
	value, ok := tree.Lookup(attr)
	if !ok || value == nil {
		return constants.NotAvailable
	}

	switch value.(type) {
	case string, bool, int, int64, float64:
		return cast.ToString(value)
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return cast.ToString(value)
		}

		return string(encoded)
	}
}
