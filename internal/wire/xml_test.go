package wire_test

import (
	"encoding/xml"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cumulo-io/cumulo-client/internal/inflect"
	"github.com/cumulo-io/cumulo-client/internal/wire"
	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

func TestQueryParser_Decode_DescribeVolumes(t *testing.T) {
	t.Parallel()

	body := `<?xml version="1.0" encoding="UTF-8"?>
<DescribeVolumesResponse>
  <requestId>req-8f1a</requestId>
  <volumes>
    <item>
      <volumeId>vol-123</volumeId>
      <size>8</size>
      <state>available</state>
      <encrypted>true</encrypted>
      <attachments>
        <item>
          <instanceId>i-0abc</instanceId>
          <device>/dev/sdf</device>
        </item>
      </attachments>
    </item>
    <item>
      <volumeId>vol-456</volumeId>
      <size>100</size>
      <state>in-use</state>
    </item>
  </volumes>
  <nextToken>tok-2</nextToken>
</DescribeVolumesResponse>`

	parser := wire.NewQueryParser()

	tree, err := parser.Decode([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "req-8f1a", tree.String("request_id"))
	assert.Equal(t, "tok-2", tree.String("next_token"))

	volumes := tree.Trees("volumes")
	require.Len(t, volumes, 2)

	assert.Equal(t, "vol-123", volumes[0].String("volume_id"))
	assert.Equal(t, 8, volumes[0].Int("size"))
	assert.Equal(t, "available", volumes[0].String("state"))
	assert.True(t, volumes[0].Bool("encrypted"))

	attachments := volumes[0].Trees("attachments")
	require.Len(t, attachments, 1)
	assert.Equal(t, "i-0abc", attachments[0].String("instance_id"))
	assert.Equal(t, "/dev/sdf", attachments[0].String("device"))

	assert.Equal(t, "vol-456", volumes[1].String("volume_id"))
	assert.Equal(t, "in-use", volumes[1].String("state"))
}

func TestQueryParser_Decode_ScalarsStayStrings(t *testing.T) {
	t.Parallel()

	body := `<CreateVolumeResponse>
  <requestId>req-77</requestId>
  <volumeId>vol-new</volumeId>
  <size>8</size>
  <encrypted>false</encrypted>
</CreateVolumeResponse>`

	parser := wire.NewQueryParser()

	tree, err := parser.Decode([]byte(body))
	require.NoError(t, err)

	size, ok := tree.Lookup("size")
	require.True(t, ok)
	assert.Equal(t, "8", size)

	encrypted, ok := tree.Lookup("encrypted")
	require.True(t, ok)
	assert.Equal(t, "false", encrypted)

	// The tree accessors do the coercion.
	assert.Equal(t, 8, tree.Int("size"))
	assert.False(t, tree.Bool("encrypted"))
}

func TestQueryParser_Decode_SingleItemIsStillASequence(t *testing.T) {
	t.Parallel()

	body := `<RunInstancesResponse>
  <requestId>req-1</requestId>
  <instances>
    <item>
      <instanceId>i-solo</instanceId>
      <state>pending</state>
    </item>
  </instances>
</RunInstancesResponse>`

	parser := wire.NewQueryParser()

	tree, err := parser.Decode([]byte(body))
	require.NoError(t, err)

	instances := tree.Trees("instances")
	require.Len(t, instances, 1)
	assert.Equal(t, "i-solo", instances[0].String("instance_id"))
}

func TestQueryParser_Decode_RepeatedSiblingsBecomeASequence(t *testing.T) {
	t.Parallel()

	body := `<DescribeTagsResponse>
  <requestId>req-5</requestId>
  <tag>
    <key>env</key>
    <value>prod</value>
  </tag>
  <tag>
    <key>team</key>
    <value>storage</value>
  </tag>
</DescribeTagsResponse>`

	parser := wire.NewQueryParser()

	tree, err := parser.Decode([]byte(body))
	require.NoError(t, err)

	tags := tree.Trees("tag")
	require.Len(t, tags, 2)
	assert.Equal(t, "env", tags[0].String("key"))
	assert.Equal(t, "prod", tags[0].String("value"))
	assert.Equal(t, "team", tags[1].String("key"))
	assert.Equal(t, "storage", tags[1].String("value"))
}

func TestQueryParser_Decode_EntitiesAndWhitespace(t *testing.T) {
	t.Parallel()

	body := `<GetConsoleOutputResponse>
  <requestId>req-9</requestId>
  <output>
    5 &lt; 10 &amp; true
  </output>
</GetConsoleOutputResponse>`

	parser := wire.NewQueryParser()

	tree, err := parser.Decode([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, "5 < 10 & true", tree.String("output"))
}

func TestQueryParser_Decode_TextOnlyRoot(t *testing.T) {
	t.Parallel()

	parser := wire.NewQueryParser()

	tree, err := parser.Decode([]byte(`<PingResponse>pong</PingResponse>`))
	require.NoError(t, err)

	assert.Equal(t, "pong", tree.String("ping_response"))
}

func TestQueryParser_Decode_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{name: "empty body", body: ""},
		{name: "whitespace only", body: "   \n\t"},
		{name: "truncated envelope", body: "<DescribeVolumesResponse><volumes><item>"},
		{name: "not xml", body: "upstream proxy error"},
		{name: "mismatched close", body: "<a><b></a></b>"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			parser := wire.NewQueryParser()

			tree, err := parser.Decode([]byte(tc.body))
			require.Error(t, err)
			assert.Nil(t, tree)

			malformedErr := &cumulo.MalformedResponseError{}
			require.ErrorAs(t, err, &malformedErr)

			if tc.body != "" {
				assert.NotEmpty(t, malformedErr.Snippet)
			}
		})
	}
}

func TestQueryParser_Decode_EmptyBodySentinel(t *testing.T) {
	t.Parallel()

	parser := wire.NewQueryParser()

	_, err := parser.Decode(nil)
	assert.ErrorIs(t, err, cumulo.ErrEmptyResponse)
}

func TestQueryParser_DecodeError(t *testing.T) {
	t.Parallel()

	errorBody := `<ErrorResponse>
  <Error>
    <Code>InvalidParameterValue</Code>
    <Message>Value 8000 for parameter size exceeds the quota</Message>
  </Error>
  <RequestId>req-err-1</RequestId>
</ErrorResponse>`

	tests := []struct {
		name       string
		statusCode int
		body       string
		want       *cumulo.APIError
	}{
		{
			name:       "error envelope",
			statusCode: 400,
			body:       errorBody,
			want: &cumulo.APIError{
				Code:       "InvalidParameterValue",
				Message:    "Value 8000 for parameter size exceeds the quota",
				RequestID:  "req-err-1",
				StatusCode: 400,
			},
		},
		{
			name:       "error envelope with ok status",
			statusCode: 200,
			body:       `<ErrorResponse><Error><Code>Throttling</Code><Message>slow down</Message></Error><RequestId>req-t</RequestId></ErrorResponse>`,
			want: &cumulo.APIError{
				Code:       "Throttling",
				Message:    "slow down",
				RequestID:  "req-t",
				StatusCode: 200,
			},
		},
		{
			name:       "success envelope",
			statusCode: 200,
			body:       `<DescribeVolumesResponse><requestId>req-1</requestId></DescribeVolumesResponse>`,
			want:       nil,
		},
		{
			name:       "envelope without a code",
			statusCode: 500,
			body:       `<ErrorResponse><Error><Message>no code</Message></Error></ErrorResponse>`,
			want:       nil,
		},
		{
			name:       "not xml",
			statusCode: 502,
			body:       "bad gateway",
			want:       nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			parser := wire.NewQueryParser()

			got := parser.DecodeError(tc.statusCode, []byte(tc.body))
			assert.Equal(t, tc.want, got)
		})
	}
}

// renderXML writes a tree back out the way the service encodes it, so the
// decode tests can assert a faithful round trip.
func renderXML(builder *strings.Builder, name string, value interface{}) {
	builder.WriteString("<" + name + ">")

	switch typed := value.(type) {
	case cumulo.AttributeTree:
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}

		sort.Strings(keys)

		for _, key := range keys {
			renderXML(builder, inflect.ToRemoteLower(key), typed[key])
		}
	case []interface{}:
		for _, item := range typed {
			renderXML(builder, "item", item)
		}
	case string:
		_ = xml.EscapeText(builder, []byte(typed))
	}

	builder.WriteString("</" + name + ">")
}

func TestQueryParser_Decode_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		tree cumulo.AttributeTree
	}{
		{
			name: "flat scalars",
			tree: cumulo.AttributeTree{
				"request_id": "req-1",
				"volume_id":  "vol-9",
				"size":       "8",
			},
		},
		{
			name: "nested sequences",
			tree: cumulo.AttributeTree{
				"request_id": "req-2",
				"instances": []interface{}{
					cumulo.AttributeTree{
						"instance_id": "i-1",
						"state":       "running",
						"tags": []interface{}{
							cumulo.AttributeTree{"key": "env", "value": "prod"},
						},
					},
					cumulo.AttributeTree{
						"instance_id": "i-2",
						"state":       "pending",
					},
				},
				"next_token": "page & 2",
			},
		},
		{
			name: "sequence of scalars",
			tree: cumulo.AttributeTree{
				"request_id": "req-3",
				"zones":      []interface{}{"us-central-1a", "us-central-1b"},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var builder strings.Builder
			renderXML(&builder, "RoundTripResponse", tc.tree)

			parser := wire.NewQueryParser()

			decoded, err := parser.Decode([]byte(builder.String()))
			require.NoError(t, err)
			assert.Equal(t, tc.tree, decoded)
		})
	}
}

func TestQueryParser_Decode_MalformedIsNotRetryable(t *testing.T) {
	t.Parallel()

	parser := wire.NewQueryParser()

	_, err := parser.Decode([]byte("<broken"))
	require.Error(t, err)

	assert.False(t, cumulo.IsRetryable(err))
	assert.False(t, errors.Is(err, cumulo.ErrEmptyResponse))
}
