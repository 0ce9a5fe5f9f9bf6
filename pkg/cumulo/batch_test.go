package cumulo_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errCallBroken = errors.New("call broken")

type recordedCall struct {
	Service string
	Action  string
	Params  *cumulo.Params
}

// fakeClient implements cumulo.Client with a programmable Call.
type fakeClient struct {
	mu      sync.Mutex
	calls   []recordedCall
	handler func(service, action string, params *cumulo.Params) (cumulo.AttributeTree, error)
}

func (c *fakeClient) Compute() cumulo.ComputeClient { return nil }

func (c *fakeClient) Identity() cumulo.IdentityClient { return nil }

func (c *fakeClient) Call(ctx context.Context, service, action string, params *cumulo.Params) (cumulo.AttributeTree, error) {
	c.mu.Lock()
	c.calls = append(c.calls, recordedCall{Service: service, Action: action, Params: params})
	c.mu.Unlock()

	if c.handler != nil {
		return c.handler(service, action, params)
	}

	return cumulo.AttributeTree{}, nil
}

func (c *fakeClient) recorded() []recordedCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]recordedCall(nil), c.calls...)
}

func (c *fakeClient) findCall(action string) (recordedCall, bool) {
	for _, call := range c.recorded() {
		if call.Action == action {
			return call, true
		}
	}

	return recordedCall{}, false
}

func TestBatchExecutor_ResultsInSubmissionOrder(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		handler: func(service, action string, params *cumulo.Params) (cumulo.AttributeTree, error) {
			// Earlier operations finish later.
			if action == "DescribeVolumes" {
				time.Sleep(30 * time.Millisecond)
			}

			return cumulo.AttributeTree{"action": action}, nil
		},
	}

	executor := cumulo.NewBatchExecutor(client, 4)

	operations := []cumulo.BatchOperation{
		{ID: "op-1", Service: "compute", Action: "DescribeVolumes"},
		{ID: "op-2", Service: "compute", Action: "DescribeInstances"},
		{ID: "op-3", Service: "identity", Action: "ListUsers"},
	}

	results, err := executor.Execute(context.Background(), operations)
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "op-1", results[0].ID)
	assert.Equal(t, "op-2", results[1].ID)
	assert.Equal(t, "op-3", results[2].ID)

	for _, result := range results {
		assert.True(t, result.Success)
		assert.Positive(t, result.Duration)
	}
}

func TestBatchExecutor_BoundsConcurrency(t *testing.T) {
	t.Parallel()

	var inFlight, peak atomic.Int32

	client := &fakeClient{
		handler: func(service, action string, params *cumulo.Params) (cumulo.AttributeTree, error) {
			current := inFlight.Add(1)
			defer inFlight.Add(-1)

			for {
				observed := peak.Load()
				if current <= observed || peak.CompareAndSwap(observed, current) {
					break
				}
			}

			time.Sleep(20 * time.Millisecond)

			return cumulo.AttributeTree{}, nil
		},
	}

	executor := cumulo.NewBatchExecutor(client, 2)

	operations := make([]cumulo.BatchOperation, 6)
	for i := range operations {
		operations[i] = cumulo.BatchOperation{ID: "op", Service: "compute", Action: "DescribeVolumes"}
	}

	_, err := executor.Execute(context.Background(), operations)
	require.NoError(t, err)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestBatchExecutor_MissingActionFails(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	executor := cumulo.NewBatchExecutor(client, 0)

	results, err := executor.Execute(context.Background(), []cumulo.BatchOperation{
		{ID: "bad", Service: "compute"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)

	assert.False(t, results[0].Success)
	require.ErrorIs(t, results[0].Error, cumulo.ErrBatchActionRequired)
	assert.Empty(t, client.recorded())
}

func TestBatchExecutor_ReportsCallError(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		handler: func(service, action string, params *cumulo.Params) (cumulo.AttributeTree, error) {
			return nil, errCallBroken
		},
	}
	executor := cumulo.NewBatchExecutor(client, 1)

	results, err := executor.Execute(context.Background(), []cumulo.BatchOperation{
		{ID: "op-1", Service: "compute", Action: "DescribeVolumes"},
	})
	require.NoError(t, err)

	assert.False(t, results[0].Success)
	require.ErrorIs(t, results[0].Error, errCallBroken)
}

func TestBatchExecutor_Callback(t *testing.T) {
	t.Parallel()

	client := &fakeClient{}
	executor := cumulo.NewBatchExecutor(client, 1)

	var (
		mu        sync.Mutex
		callbacks []string
	)

	_, err := executor.Execute(context.Background(), []cumulo.BatchOperation{
		{
			ID:      "op-1",
			Service: "compute",
			Action:  "DescribeVolumes",
			Callback: func(result *cumulo.BatchResult) {
				mu.Lock()
				callbacks = append(callbacks, result.ID)
				mu.Unlock()
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"op-1"}, callbacks)
}

func TestBatchBuilder(t *testing.T) {
	t.Parallel()

	operations := cumulo.NewBatchBuilder().
		AddRunInstances("launch", cumulo.NewParams().Set("image_id", "img-1")).
		AddTerminateInstances("terminate", "i-1", "i-2").
		AddCreateVolume("volume", cumulo.NewParams().Set("size", 8)).
		AddDeleteVolume("cleanup", "vol-9").
		AddCreateSnapshot("snapshot", "vol-1").
		AddCreateUser("user", "alice").
		AddDeleteUser("remove", "bob").
		AddOperation(cumulo.BatchOperation{ID: "custom", Service: "compute", Action: "DescribeRegions"}).
		Build()

	require.Len(t, operations, 8)

	assert.Equal(t, "RunInstances", operations[0].Action)
	assert.Equal(t, "compute", operations[0].Service)

	assert.Equal(t, "TerminateInstances", operations[1].Action)
	ids, _ := operations[1].Params.Get("instance_id")
	assert.Equal(t, []string{"i-1", "i-2"}, ids)

	assert.Equal(t, "CreateUser", operations[5].Action)
	assert.Equal(t, "identity", operations[5].Service)

	name, _ := operations[5].Params.Get("user_name")
	assert.Equal(t, "alice", name)

	assert.Equal(t, "custom", operations[7].ID)
}

func TestBatchTransaction_RollsBackCreations(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		handler: func(service, action string, params *cumulo.Params) (cumulo.AttributeTree, error) {
			switch action {
			case "CreateVolume":
				return cumulo.AttributeTree{"volume_id": "vol-new"}, nil
			case "CreateUser":
				name, _ := params.Get("user_name")

				return cumulo.AttributeTree{
					"user": cumulo.AttributeTree{"user_name": name},
				}, nil
			case "RunInstances":
				return nil, errCallBroken
			default:
				return cumulo.AttributeTree{}, nil
			}
		},
	}

	executor := cumulo.NewBatchExecutor(client, 1)
	transaction := cumulo.NewBatchTransaction(executor).
		Add(cumulo.BatchOperation{ID: "volume", Service: "compute", Action: "CreateVolume",
			Params: cumulo.NewParams().Set("size", 8)}).
		Add(cumulo.BatchOperation{ID: "user", Service: "identity", Action: "CreateUser",
			Params: cumulo.NewParams().Set("user_name", "alice")}).
		Add(cumulo.BatchOperation{ID: "launch", Service: "compute", Action: "RunInstances",
			Params: cumulo.NewParams().Set("image_id", "img-1")})

	results, err := transaction.Execute(context.Background())
	require.ErrorIs(t, err, cumulo.ErrBatchTransactionFail)
	assert.Contains(t, err.Error(), "launch")
	require.Len(t, results, 3)

	// The successful creations were undone.
	deleteVolume, ok := client.findCall("DeleteVolume")
	require.True(t, ok)

	volumeID, _ := deleteVolume.Params.Get("volume_id")
	assert.Equal(t, "vol-new", volumeID)

	deleteUser, ok := client.findCall("DeleteUser")
	require.True(t, ok)

	userName, _ := deleteUser.Params.Get("user_name")
	assert.Equal(t, "alice", userName)
}

func TestBatchTransaction_RollbackDisabled(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		handler: func(service, action string, params *cumulo.Params) (cumulo.AttributeTree, error) {
			if action == "RunInstances" {
				return nil, errCallBroken
			}

			return cumulo.AttributeTree{"volume_id": "vol-new"}, nil
		},
	}

	executor := cumulo.NewBatchExecutor(client, 1)
	transaction := cumulo.NewBatchTransaction(executor).
		SetRollback(false).
		Add(cumulo.BatchOperation{ID: "volume", Service: "compute", Action: "CreateVolume"}).
		Add(cumulo.BatchOperation{ID: "launch", Service: "compute", Action: "RunInstances"})

	_, err := transaction.Execute(context.Background())
	require.NoError(t, err)

	_, rolledBack := client.findCall("DeleteVolume")
	assert.False(t, rolledBack)
}

func TestBatchTransaction_AllSucceed(t *testing.T) {
	t.Parallel()

	client := &fakeClient{
		handler: func(service, action string, params *cumulo.Params) (cumulo.AttributeTree, error) {
			return cumulo.AttributeTree{"volume_id": "vol-new"}, nil
		},
	}

	executor := cumulo.NewBatchExecutor(client, 2)
	transaction := cumulo.NewBatchTransaction(executor).
		Add(cumulo.BatchOperation{ID: "a", Service: "compute", Action: "CreateVolume"}).
		Add(cumulo.BatchOperation{ID: "b", Service: "compute", Action: "CreateVolume"})

	results, err := transaction.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, result := range results {
		assert.True(t, result.Success)
	}

	assert.Len(t, client.recorded(), 2)
}
