// Package cumulo provides types, interfaces, and helpers for working with
// the Cumulo API.
//
// # Overview
//
// The cumulo package defines the generic building blocks every Cumulo call
// runs through: request parameters (Params), parsed response attributes
// (AttributeTree), lazily fetched entity views (Model), cursor-driven lazy
// pagination (Collection), and the error taxonomy the retry policy keys on.
// A concrete implementation of the Client interface is provided by the
// cumuloclient package, which wires configuration, signing, transport, and
// response parsing. Most consumers should import cumuloclient to construct a
// client and then interact with the service client interfaces exposed here.
//
// Getting a client
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
//	  cli, err := cumuloclient.New(&cumulo.Config{
//	    Region: "us-central-1",
//	    Credentials: &cumulo.Credentials{
//	      AccessKeyID:     "CMAKEXAMPLE",
//	      SecretAccessKey: "secret",
//	    },
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  // Describe volumes larger than 100 GiB
//	  out, err := cli.Compute().DescribeVolumes(ctx,
//	    cumulo.NewParams().WithFilter("size", "100"))
//	  if err != nil { log.Fatal(err) }
//	  _ = out
//	}
//
// # Parameters and pagination
//
// Params carries call parameters under local snake_case names; the wire
// layer translates them to the remote casing and encoding. List actions
// return one page at a time; Collection follows the service's continuation
// cursor lazily:
//
//	volumes := cli.Compute().Volumes(nil)
//	for volumes.HasNext() {
//	  volume, err := volumes.Next(ctx)
//	  if err != nil { break }
//	  _ = volume.String("volume_id")
//	}
//
// or fetch everything at once with volumes.All(ctx), or stream page-wise
// with volumes.Stream(ctx).
//
// # Models
//
// Model gives a cached, lazily fetched view of one entity. Construction is
// free of network activity; the first attribute read fetches and caches the
// full attribute set, and concurrent first reads share a single in-flight
// fetch:
//
//	volume := cli.Compute().Volume("vol-0c12de3f")
//	size, err := volume.IntAttribute(ctx, "size")
//
// # Errors
//
// Remote failures are represented by APIError; transport failures that
// exhausted their retries arrive wrapped in RequestError with the attempt
// count. Helpers such as IsNotFound, IsThrottling, and IsRetryable make it
// easy to branch on common cases.
//
// # Interceptors and caching
//
// The package includes generic building blocks such as request/response
// interceptors (for logging, headers, metrics, rate limiting, circuit
// breaking) and a simple pluggable Cache abstraction with memory and NATS
// key-value backends. The cumuloclient package composes these pieces for a
// sensible default client; applications with advanced needs can also use
// these primitives directly.
package cumulo
