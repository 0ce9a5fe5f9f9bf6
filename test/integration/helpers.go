//go:build integration

package integration

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
	"github.com/cumulo-io/cumulo-client/pkg/cumuloclient"
)

// TestConfig holds configuration for integration tests
type TestConfig struct {
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	BinaryPath      string
	Verbose         bool
}

// LoadTestConfig loads configuration from environment variables
func LoadTestConfig() *TestConfig {
	return &TestConfig{
		Endpoint:        os.Getenv("CUMULO_TEST_ENDPOINT"),
		Region:          os.Getenv("CUMULO_TEST_REGION"),
		AccessKeyID:     os.Getenv("CUMULO_TEST_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("CUMULO_TEST_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("CUMULO_TEST_SESSION_TOKEN"),
		BinaryPath:      getBinaryPath(),
		Verbose:         os.Getenv("CUMULO_VERBOSE") == "true",
	}
}

// getBinaryPath determines the path to the cumulo binary
func getBinaryPath() string {
	if path := os.Getenv("CUMULO_BINARY_PATH"); path != "" {
		return path
	}

	// Try common locations
	candidates := []string{
		"../../cumulo",
		"./cumulo",
		"../cumulo",
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}

	return "cumulo" // Fallback to PATH
}

// SkipIfMissingConfig skips test if required config is missing
func (config *TestConfig) SkipIfMissingConfig(t *testing.T) {
	if config.Endpoint == "" && config.Region == "" {
		t.Skip("CUMULO_TEST_ENDPOINT or CUMULO_TEST_REGION not set, skipping integration test")
	}

	if config.AccessKeyID == "" || config.SecretAccessKey == "" {
		t.Skip("CUMULO_TEST_ACCESS_KEY_ID / CUMULO_TEST_SECRET_ACCESS_KEY not set, skipping integration test")
	}
}

// SkipIfMissingBinary skips test if the cumulo binary is not available
func (config *TestConfig) SkipIfMissingBinary(t *testing.T) {
	if _, err := os.Stat(config.BinaryPath); os.IsNotExist(err) {
		t.Skipf("cumulo binary not found at %s, skipping integration test", config.BinaryPath)
	}
}

// NewClient creates a library client for the configured test environment
func (config *TestConfig) NewClient(t *testing.T) cumulo.Client {
	client, err := cumuloclient.New(&cumulo.Config{
		Endpoint: config.Endpoint,
		Region:   config.Region,
		Credentials: &cumulo.Credentials{
			AccessKeyID:     config.AccessKeyID,
			SecretAccessKey: config.SecretAccessKey,
			SessionToken:    config.SessionToken,
		},
	})
	if err != nil {
		t.Fatalf("Failed to create test client: %v", err)
	}

	return client
}

// CommandRunner provides utilities for running cumulo CLI commands
type CommandRunner struct {
	config *TestConfig
	t      *testing.T
}

// NewCommandRunner creates a new command runner
func NewCommandRunner(config *TestConfig, t *testing.T) *CommandRunner {
	return &CommandRunner{
		config: config,
		t:      t,
	}
}

// Run executes a cumulo command and returns output. The test environment is
// passed to the binary through CUMULO_* variables so no config file is
// needed.
func (runner *CommandRunner) Run(args ...string) (stdout, stderr string, err error) {
	cmd := exec.Command(runner.config.BinaryPath, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf
	cmd.Env = append(os.Environ(),
		"CUMULO_ENDPOINT="+runner.config.Endpoint,
		"CUMULO_REGION="+runner.config.Region,
		"CUMULO_ACCESS_KEY_ID="+runner.config.AccessKeyID,
		"CUMULO_SECRET_ACCESS_KEY="+runner.config.SecretAccessKey,
		"CUMULO_SESSION_TOKEN="+runner.config.SessionToken,
	)

	if runner.config.Verbose {
		runner.t.Logf("Running: %s %s", runner.config.BinaryPath, strings.Join(args, " "))
	}

	err = cmd.Run()
	stdout = stdoutBuf.String()
	stderr = stderrBuf.String()

	if runner.config.Verbose && err != nil {
		runner.t.Logf("Command failed: %v\nStdout: %s\nStderr: %s", err, stdout, stderr)
	}

	return stdout, stderr, err
}

// GenerateTestName creates a unique test resource name
func GenerateTestName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().Unix())
}

// WaitForState polls a model until its attribute reaches the wanted value
func WaitForState(t *testing.T, model *cumulo.Model, attr, want string, timeout time.Duration) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	timeoutChan := time.After(timeout)

	for {
		select {
		case <-ticker.C:
			model.Refresh()

			state, err := model.StringAttribute(context.Background(), attr)
			if err == nil && state == want {
				return
			}
		case <-timeoutChan:
			t.Fatalf("Timeout waiting for %s to reach %q", model.ID(), want)
		}
	}
}

// AssertJSONOutput verifies command output is valid JSON
func AssertJSONOutput(t *testing.T, output string) {
	output = strings.TrimSpace(output)
	if !strings.HasPrefix(output, "{") && !strings.HasPrefix(output, "[") {
		t.Errorf("Output does not appear to be JSON: %s", output)
	}
}
