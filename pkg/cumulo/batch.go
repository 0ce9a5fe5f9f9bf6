package cumulo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cumulo-io/cumulo-client/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrBatchActionRequired  = errors.New("batch operation needs a service and action")
	ErrBatchTransactionFail = errors.New("transaction failed")
)

// BatchOperation represents a single API call in a batch.
type BatchOperation struct {
	// ID correlates the operation with its result. Caller-chosen.
	ID string
	// Service and Action name the API call.
	Service string
	Action  string
	// Params are the call parameters; nil means none.
	Params *Params
	// Callback, if set, runs as soon as this operation finishes.
	Callback func(result *BatchResult)
}

// BatchResult represents the result of a batch operation.
type BatchResult struct {
	ID       string
	Success  bool
	Data     AttributeTree
	Error    error
	Duration time.Duration
}

// BatchExecutor runs independent API calls concurrently with a bounded
// worker count. Results come back in submission order regardless of
// completion order.
type BatchExecutor struct {
	client      Client
	concurrency int
	timeout     time.Duration
}

// NewBatchExecutor creates a new batch executor.
func NewBatchExecutor(client Client, concurrency int) *BatchExecutor {
	if concurrency <= 0 {
		concurrency = constants.DefaultConcurrencyLimit
	}

	return &BatchExecutor{
		client:      client,
		concurrency: concurrency,
		timeout:     constants.DefaultHTTPTimeout,
	}
}

// SetTimeout sets the per-operation timeout.
func (b *BatchExecutor) SetTimeout(timeout time.Duration) {
	b.timeout = timeout
}

// Execute runs a batch of operations.
func (b *BatchExecutor) Execute(ctx context.Context, operations []BatchOperation) ([]BatchResult, error) {
	results := make([]BatchResult, len(operations))

	var waitGroup sync.WaitGroup

	semaphore := make(chan struct{}, b.concurrency)

	for index, operation := range operations {
		waitGroup.Add(1)

		go func(index int, operation BatchOperation) {
			defer waitGroup.Done()

			// Acquire semaphore
			semaphore <- struct{}{}

			defer func() { <-semaphore }()

			opCtx, cancel := context.WithTimeout(ctx, b.timeout)
			defer cancel()

			start := time.Now()
			result := b.executeOperation(opCtx, operation)
			result.Duration = time.Since(start)
			results[index] = *result

			if operation.Callback != nil {
				operation.Callback(result)
			}
		}(index, operation)
	}

	waitGroup.Wait()

	return results, nil
}

// executeOperation executes a single operation.
func (b *BatchExecutor) executeOperation(ctx context.Context, operation BatchOperation) *BatchResult {
	result := &BatchResult{
		ID: operation.ID,
	}

	if operation.Service == "" || operation.Action == "" {
		result.Error = fmt.Errorf("%w: %q", ErrBatchActionRequired, operation.ID)

		return result
	}

	data, err := b.client.Call(ctx, operation.Service, operation.Action, operation.Params)
	result.Success = err == nil
	result.Data = data
	result.Error = err

	return result
}

// BatchBuilder helps build batch operations.
type BatchBuilder struct {
	operations []BatchOperation
}

// NewBatchBuilder creates a new batch builder.
func NewBatchBuilder() *BatchBuilder {
	return &BatchBuilder{
		operations: make([]BatchOperation, 0),
	}
}

// AddRunInstances adds an instance launch operation.
func (b *BatchBuilder) AddRunInstances(id string, params *Params) *BatchBuilder {
	return b.add(id, constants.ComputeService, "RunInstances", params)
}

// AddTerminateInstances adds an instance termination operation.
func (b *BatchBuilder) AddTerminateInstances(id string, instanceIDs ...string) *BatchBuilder {
	return b.add(id, constants.ComputeService, "TerminateInstances",
		NewParams().Set("instance_id", instanceIDs))
}

// AddCreateVolume adds a volume creation operation.
func (b *BatchBuilder) AddCreateVolume(id string, params *Params) *BatchBuilder {
	return b.add(id, constants.ComputeService, "CreateVolume", params)
}

// AddDeleteVolume adds a volume deletion operation.
func (b *BatchBuilder) AddDeleteVolume(id, volumeID string) *BatchBuilder {
	return b.add(id, constants.ComputeService, "DeleteVolume",
		NewParams().Set("volume_id", volumeID))
}

// AddCreateSnapshot adds a snapshot creation operation.
func (b *BatchBuilder) AddCreateSnapshot(id, volumeID string) *BatchBuilder {
	return b.add(id, constants.ComputeService, "CreateSnapshot",
		NewParams().Set("volume_id", volumeID))
}

// AddCreateUser adds a user creation operation.
func (b *BatchBuilder) AddCreateUser(id, userName string) *BatchBuilder {
	return b.add(id, constants.IdentityService, "CreateUser",
		NewParams().Set("user_name", userName))
}

// AddDeleteUser adds a user deletion operation.
func (b *BatchBuilder) AddDeleteUser(id, userName string) *BatchBuilder {
	return b.add(id, constants.IdentityService, "DeleteUser",
		NewParams().Set("user_name", userName))
}

// AddOperation adds a custom operation.
func (b *BatchBuilder) AddOperation(operation BatchOperation) *BatchBuilder {
	b.operations = append(b.operations, operation)

	return b
}

// Build returns the built operations.
func (b *BatchBuilder) Build() []BatchOperation {
	return b.operations
}

func (b *BatchBuilder) add(id, service, action string, params *Params) *BatchBuilder {
	b.operations = append(b.operations, BatchOperation{
		ID:      id,
		Service: service,
		Action:  action,
		Params:  params,
	})

	return b
}

// BatchTransaction represents a batch whose creations are undone when any
// operation in the batch fails. Deletions and mutations cannot be undone;
// they are left as-is and reported.
type BatchTransaction struct {
	operations []BatchOperation
	results    []BatchResult
	executor   *BatchExecutor
	rollback   bool
}

// NewBatchTransaction creates a new batch transaction.
func NewBatchTransaction(executor *BatchExecutor) *BatchTransaction {
	return &BatchTransaction{
		executor:   executor,
		operations: make([]BatchOperation, 0),
		rollback:   true,
	}
}

// Add adds an operation to the transaction.
func (t *BatchTransaction) Add(operation BatchOperation) *BatchTransaction {
	t.operations = append(t.operations, operation)

	return t
}

// SetRollback sets whether to rollback on failure.
func (t *BatchTransaction) SetRollback(rollback bool) *BatchTransaction {
	t.rollback = rollback

	return t
}

// Execute executes the transaction.
func (t *BatchTransaction) Execute(ctx context.Context) ([]BatchResult, error) {
	results, err := t.executor.Execute(ctx, t.operations)
	t.results = results

	var failedOps []string

	for _, result := range results {
		if !result.Success {
			failedOps = append(failedOps, result.ID)
		}
	}

	if len(failedOps) > 0 && t.rollback {
		t.performRollback(ctx)

		return results, fmt.Errorf("%w, %d operations failed: %v", ErrBatchTransactionFail, len(failedOps), failedOps)
	}

	return results, err
}

// performRollback deletes the resources the successful creations produced.
func (t *BatchTransaction) performRollback(ctx context.Context) {
	var rollbackOps []BatchOperation

	for i, result := range t.results {
		if !result.Success {
			continue
		}

		original := t.operations[i]

		inverse, ok := inverseOperation(original, result.Data)
		if ok {
			rollbackOps = append(rollbackOps, inverse)
		}
	}

	if len(rollbackOps) > 0 {
		_, _ = t.executor.Execute(ctx, rollbackOps)
	}
}

// inverseOperation builds the deletion that undoes a creation, extracting
// the created identifier from the response attributes.
func inverseOperation(original BatchOperation, data AttributeTree) (BatchOperation, bool) {
	inverse := BatchOperation{
		ID:      "rollback_" + original.ID,
		Service: original.Service,
	}

	switch original.Action {
	case "RunInstances":
		var instanceIDs []string

		for _, instance := range data.Trees("instances") {
			if id := instance.String("instance_id"); id != "" {
				instanceIDs = append(instanceIDs, id)
			}
		}

		if len(instanceIDs) == 0 {
			return BatchOperation{}, false
		}

		inverse.Action = "TerminateInstances"
		inverse.Params = NewParams().Set("instance_id", instanceIDs)

	case "CreateVolume":
		volumeID := data.String("volume_id")
		if volumeID == "" {
			return BatchOperation{}, false
		}

		inverse.Action = "DeleteVolume"
		inverse.Params = NewParams().Set("volume_id", volumeID)

	case "CreateSnapshot":
		snapshotID := data.String("snapshot_id")
		if snapshotID == "" {
			return BatchOperation{}, false
		}

		inverse.Action = "DeleteSnapshot"
		inverse.Params = NewParams().Set("snapshot_id", snapshotID)

	case "CreateUser":
		userName := data.Tree("user").String("user_name")
		if userName == "" {
			return BatchOperation{}, false
		}

		inverse.Action = "DeleteUser"
		inverse.Params = NewParams().Set("user_name", userName)

	case "CreateAccessKey":
		key := data.Tree("access_key")

		userName := key.String("user_name")
		keyID := key.String("access_key_id")

		if userName == "" || keyID == "" {
			return BatchOperation{}, false
		}

		inverse.Action = "DeleteAccessKey"
		inverse.Params = NewParams().
			Set("user_name", userName).
			Set("access_key_id", keyID)

	default:
		// Deletions and mutations have no safe inverse.
		return BatchOperation{}, false
	}

	return inverse, true
}
