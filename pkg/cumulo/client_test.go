package cumulo_test

import (
	"testing"

	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
	"github.com/stretchr/testify/assert"
)

func TestCredentials_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		credentials *cumulo.Credentials
		want        bool
	}{
		{
			name: "complete",
			credentials: &cumulo.Credentials{
				AccessKeyID:     "CMKEXAMPLE",
				SecretAccessKey: "secret",
			},
			want: true,
		},
		{
			name: "with session token",
			credentials: &cumulo.Credentials{
				AccessKeyID:     "CMKEXAMPLE",
				SecretAccessKey: "secret",
				SessionToken:    "token",
			},
			want: true,
		},
		{
			name:        "missing secret",
			credentials: &cumulo.Credentials{AccessKeyID: "CMKEXAMPLE"},
			want:        false,
		},
		{
			name:        "missing access key",
			credentials: &cumulo.Credentials{SecretAccessKey: "secret"},
			want:        false,
		},
		{
			name:        "empty",
			credentials: &cumulo.Credentials{},
			want:        false,
		},
		{
			name:        "nil",
			credentials: nil,
			want:        false,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, test.want, test.credentials.Valid())
		})
	}
}
