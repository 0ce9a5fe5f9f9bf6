package commands

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/cumulo-io/cumulo-client/internal/constants"
)

// cliConfig is the shape of ~/.cumulo/config.yml. Field names line up with
// the viper keys the commands read.
type cliConfig struct {
	Endpoint        string `yaml:"endpoint,omitempty"`
	Region          string `yaml:"region,omitempty"`
	AccessKeyID     string `yaml:"access_key_id,omitempty"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty"`
	SessionToken    string `yaml:"session_token,omitempty"`
	Protocol        string `yaml:"protocol,omitempty"`
	Output          string `yaml:"output,omitempty"`
}

// NewConfigureCommand creates the configure command
func NewConfigureCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Configure credentials and defaults",
		Long:  "Interactively store credentials, region and output defaults in the config file",
		RunE: func(_ *cobra.Command, _ []string) error {
			return runConfigure()
		},
	}

	cmd.AddCommand(newConfigureShowCommand())

	return cmd
}

func runConfigure() error {
	reader := bufio.NewReader(os.Stdin)

	accessKey := promptString(reader, "Access key ID", viper.GetString("access_key_id"), false)

	secret, err := promptSecret("Secret access key", viper.GetString("secret_access_key"))
	if err != nil {
		return err
	}

	region := promptString(reader, "Region", viper.GetString("region"), false)
	output := promptString(reader, "Output format (table, json, yaml)", viper.GetString("output"), false)

	config := cliConfig{
		Endpoint:        viper.GetString("endpoint"),
		Region:          region,
		AccessKeyID:     accessKey,
		SecretAccessKey: secret,
		SessionToken:    viper.GetString("session_token"),
		Protocol:        viper.GetString("protocol"),
		Output:          output,
	}

	return saveConfig(config)
}

// promptString asks for one value, keeping the current one on empty input.
// The current value is masked when secret is true.
func promptString(reader *bufio.Reader, label, current string, secret bool) string {
	shown := current
	if secret && current != "" {
		shown = constants.MaskedSecret
	}

	if shown != "" {
		fmt.Printf("%s [%s]: ", label, shown)
	} else {
		fmt.Printf("%s: ", label)
	}

	input, _ := reader.ReadString('\n')

	input = strings.TrimSpace(input)
	if input == "" {
		return current
	}

	return input
}

// promptSecret reads a value without echoing it, keeping the current one on
// empty input.
func promptSecret(label, current string) (string, error) {
	if current != "" {
		fmt.Printf("%s [%s]: ", label, constants.MaskedSecret)
	} else {
		fmt.Printf("%s: ", label)
	}

	raw, err := term.ReadPassword(int(syscall.Stdin))

	fmt.Println()

	if err != nil {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}

	input := strings.TrimSpace(string(raw))
	if input == "" {
		return current, nil
	}

	return input, nil
}

func configFilePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}

	return filepath.Join(home, ".cumulo", "config.yml"), nil
}

func saveConfig(config cliConfig) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), constants.ConfigDirPerm); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(path, data, constants.ConfigFilePerm); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Println("Configuration written to", path)

	return nil
}

func newConfigureShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the resolved configuration",
		Long:  "Show the configuration after merging flags, environment and the config file, with secrets masked",
		RunE: func(_ *cobra.Command, _ []string) error {
			config := cliConfig{
				Endpoint:     viper.GetString("endpoint"),
				Region:       viper.GetString("region"),
				AccessKeyID:  viper.GetString("access_key_id"),
				SessionToken: viper.GetString("session_token"),
				Protocol:     viper.GetString("protocol"),
				Output:       viper.GetString("output"),
			}

			if viper.GetString("secret_access_key") != "" {
				config.SecretAccessKey = constants.MaskedSecret
			}

			rows := [][]string{
				{"endpoint", valueOrNA(config.Endpoint)},
				{"region", valueOrNA(config.Region)},
				{"access_key_id", valueOrNA(config.AccessKeyID)},
				{"secret_access_key", valueOrNA(config.SecretAccessKey)},
				{"session_token", valueOrNA(config.SessionToken)},
				{"protocol", valueOrNA(config.Protocol)},
				{"output", valueOrNA(config.Output)},
			}

			return renderOutput(config, []string{"Setting", "Value"}, rows)
		},
	}
}

func valueOrNA(value string) string {
	if value == "" {
		return constants.NotAvailable
	}

	return value
}
