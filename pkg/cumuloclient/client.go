// Package cumuloclient provides the main entry point for creating Cumulo API clients
package cumuloclient

import (
	"fmt"
	"os"
	"strings"

	"github.com/cumulo-io/cumulo-client/internal/client"
	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

// New creates a new Cumulo API client from config.
func New(config *cumulo.Config) (cumulo.Client, error) {
	if config == nil {
		return nil, cumulo.ErrConfigRequired
	}

	if config.Endpoint != "" {
		endpoint := strings.TrimSuffix(config.Endpoint, "/")
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			endpoint = "https://" + endpoint
		}

		config.Endpoint = endpoint
	}

	apiClient, err := client.New(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create new client: %w", err)
	}

	return apiClient, nil
}

// NewWithCredentials creates a new client for an explicit endpoint.
func NewWithCredentials(endpoint, accessKeyID, secretAccessKey string) (cumulo.Client, error) {
	return New(&cumulo.Config{
		Endpoint: endpoint,
		Credentials: &cumulo.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
		},
	})
}

// NewWithRegion creates a new client using region-derived service endpoints.
func NewWithRegion(region, accessKeyID, secretAccessKey string) (cumulo.Client, error) {
	return New(&cumulo.Config{
		Region: region,
		Credentials: &cumulo.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
		},
	})
}

// NewWithSessionToken creates a new client using temporary credentials.
func NewWithSessionToken(region, accessKeyID, secretAccessKey, sessionToken string) (cumulo.Client, error) {
	return New(&cumulo.Config{
		Region: region,
		Credentials: &cumulo.Credentials{
			AccessKeyID:     accessKeyID,
			SecretAccessKey: secretAccessKey,
			SessionToken:    sessionToken,
		},
	})
}

// NewFromEnv creates a new client from CUMULO_ENDPOINT, CUMULO_REGION,
// CUMULO_ACCESS_KEY_ID, CUMULO_SECRET_ACCESS_KEY and CUMULO_SESSION_TOKEN.
func NewFromEnv() (cumulo.Client, error) {
	return New(&cumulo.Config{
		Endpoint: os.Getenv("CUMULO_ENDPOINT"),
		Region:   os.Getenv("CUMULO_REGION"),
		Credentials: &cumulo.Credentials{
			AccessKeyID:     os.Getenv("CUMULO_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("CUMULO_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("CUMULO_SESSION_TOKEN"),
		},
	})
}
