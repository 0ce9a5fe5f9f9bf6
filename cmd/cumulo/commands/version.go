package commands

import (
	"github.com/spf13/cobra"
)

// NewVersionCommand creates the version command
func NewVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Display version information",
		Long:  "Display detailed version information about the cumulo CLI",
		RunE: func(_ *cobra.Command, _ []string) error {
			type versionInfo struct {
				Version string `json:"version" yaml:"version"`
				Commit  string `json:"commit"  yaml:"commit"`
				Built   string `json:"built"   yaml:"built"`
			}

			info := versionInfo{
				Version: version,
				Commit:  commit,
				Built:   date,
			}

			rows := [][]string{
				{"Version", version},
				{"Commit", commit},
				{"Built", date},
			}

			return renderOutput(info, []string{"Property", "Value"}, rows)
		},
	}
}
