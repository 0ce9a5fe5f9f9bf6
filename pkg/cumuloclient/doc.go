// Package cumuloclient provides the primary entry point for constructing a
// Cumulo API client that implements the cumulo.Client interface.
//
// It layers endpoint resolution, request signing, retries, caching and
// response parsing on top of the types defined in the cumulo package. Most
// applications should import cumuloclient to build a client, then use the
// returned cumulo.Client to access the service facades Compute() and
// Identity(), or the generic Call method for actions the facades do not
// cover.
//
// Quick start
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/cumulo-io/cumulo-client/pkg/cumulo"
//	  "github.com/cumulo-io/cumulo-client/pkg/cumuloclient"
//	)
//
//	func example() {
//	  ctx := context.Background()
//
//	  // Region-derived endpoints, static credentials.
//	  cli, err := cumuloclient.NewWithRegion("us-central-1", "CMKEXAMPLE", "secret")
//	  if err != nil { log.Fatal(err) }
//
//	  // Or with a full config:
//	  cli, err = cumuloclient.New(&cumulo.Config{
//	    Region: "us-central-1",
//	    Credentials: &cumulo.Credentials{
//	      AccessKeyID:     "CMKEXAMPLE",
//	      SecretAccessKey: "secret",
//	    },
//	    Protocol: cumulo.ProtocolJSON,
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  // Use the service facades via the cumulo.Client interface.
//	  volumes, err := cli.Compute().DescribeVolumes(ctx, nil)
//	  if err != nil { log.Fatal(err) }
//	  _ = volumes
//	}
//
// # Endpoints
//
// When Config.Endpoint is set, it is used verbatim for every service after
// normalization (a missing scheme defaults to https, a trailing slash is
// trimmed). When only Config.Region is set, each service resolves its own
// endpoint as "https://<service>.<region>.cumulo.dev".
//
// # Helpers
//
// The package also provides convenience constructors NewWithCredentials,
// NewWithRegion, NewWithSessionToken, and NewFromEnv that wrap New with the
// appropriate configuration.
package cumuloclient
