package client

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/cumulo-io/cumulo-client/internal/constants"
	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

// ComputeClient implements cumulo.ComputeClient. It keeps the Models it has
// handed out so mutations through the facade invalidate outstanding handles.
type ComputeClient struct {
	client *Client

	mu     sync.Mutex
	models map[string]*cumulo.Model
}

func newComputeClient(client *Client) *ComputeClient {
	return &ComputeClient{
		client: client,
		models: make(map[string]*cumulo.Model),
	}
}

func (c *ComputeClient) call(ctx context.Context, action string, params *cumulo.Params) (cumulo.AttributeTree, error) {
	return c.client.Call(ctx, constants.ComputeService, action, params)
}

// DescribeInstances lists instances matching params.
func (c *ComputeClient) DescribeInstances(ctx context.Context, params *cumulo.Params) (cumulo.AttributeTree, error) {
	tree, err := c.call(ctx, "DescribeInstances", params)
	if err != nil {
		return nil, fmt.Errorf("describing instances: %w", err)
	}

	return tree, nil
}

// RunInstances launches instances. A client token is generated when params
// do not carry one, making accidental re-submission idempotent.
func (c *ComputeClient) RunInstances(ctx context.Context, params *cumulo.Params) (cumulo.AttributeTree, error) {
	tree, err := c.call(ctx, "RunInstances", withClientToken(params))
	if err != nil {
		return nil, fmt.Errorf("running instances: %w", err)
	}

	return tree, nil
}

// StartInstances starts the named instances.
func (c *ComputeClient) StartInstances(ctx context.Context, instanceIDs ...string) (cumulo.AttributeTree, error) {
	return c.instanceStateChange(ctx, "StartInstances", "starting instances", instanceIDs)
}

// StopInstances stops the named instances.
func (c *ComputeClient) StopInstances(ctx context.Context, instanceIDs ...string) (cumulo.AttributeTree, error) {
	return c.instanceStateChange(ctx, "StopInstances", "stopping instances", instanceIDs)
}

// TerminateInstances terminates the named instances.
func (c *ComputeClient) TerminateInstances(ctx context.Context, instanceIDs ...string) (cumulo.AttributeTree, error) {
	return c.instanceStateChange(ctx, "TerminateInstances", "terminating instances", instanceIDs)
}

func (c *ComputeClient) instanceStateChange(ctx context.Context, action, doing string, instanceIDs []string) (cumulo.AttributeTree, error) {
	if len(instanceIDs) == 0 {
		return nil, fmt.Errorf("%s: %w", doing, cumulo.ErrIdentifierRequired)
	}

	params := cumulo.NewParams().Set("instance_id", instanceIDs)

	tree, err := c.call(ctx, action, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", doing, err)
	}

	c.invalidate("instance", instanceIDs...)

	return tree, nil
}

// DescribeVolumes lists volumes matching params.
func (c *ComputeClient) DescribeVolumes(ctx context.Context, params *cumulo.Params) (cumulo.AttributeTree, error) {
	tree, err := c.call(ctx, "DescribeVolumes", params)
	if err != nil {
		return nil, fmt.Errorf("describing volumes: %w", err)
	}

	return tree, nil
}

// CreateVolume creates a volume. A client token is generated when params do
// not carry one.
func (c *ComputeClient) CreateVolume(ctx context.Context, params *cumulo.Params) (cumulo.AttributeTree, error) {
	tree, err := c.call(ctx, "CreateVolume", withClientToken(params))
	if err != nil {
		return nil, fmt.Errorf("creating volume: %w", err)
	}

	return tree, nil
}

// DeleteVolume deletes one volume.
func (c *ComputeClient) DeleteVolume(ctx context.Context, volumeID string) error {
	if volumeID == "" {
		return fmt.Errorf("deleting volume: %w", cumulo.ErrIdentifierRequired)
	}

	params := cumulo.NewParams().Set("volume_id", volumeID)

	if _, err := c.call(ctx, "DeleteVolume", params); err != nil {
		return fmt.Errorf("deleting volume: %w", err)
	}

	c.invalidate("volume", volumeID)

	return nil
}

// AttachVolume attaches a volume to an instance at the given device path.
func (c *ComputeClient) AttachVolume(ctx context.Context, volumeID, instanceID, device string) (cumulo.AttributeTree, error) {
	if volumeID == "" || instanceID == "" {
		return nil, fmt.Errorf("attaching volume: %w", cumulo.ErrIdentifierRequired)
	}

	params := cumulo.NewParams().
		Set("volume_id", volumeID).
		Set("instance_id", instanceID).
		Set("device", device)

	tree, err := c.call(ctx, "AttachVolume", params)
	if err != nil {
		return nil, fmt.Errorf("attaching volume: %w", err)
	}

	c.invalidate("volume", volumeID)
	c.invalidate("instance", instanceID)

	return tree, nil
}

// DetachVolume detaches a volume from whatever instance holds it.
func (c *ComputeClient) DetachVolume(ctx context.Context, volumeID string) (cumulo.AttributeTree, error) {
	if volumeID == "" {
		return nil, fmt.Errorf("detaching volume: %w", cumulo.ErrIdentifierRequired)
	}

	params := cumulo.NewParams().Set("volume_id", volumeID)

	tree, err := c.call(ctx, "DetachVolume", params)
	if err != nil {
		return nil, fmt.Errorf("detaching volume: %w", err)
	}

	c.invalidate("volume", volumeID)

	return tree, nil
}

// DescribeSnapshots lists snapshots matching params.
func (c *ComputeClient) DescribeSnapshots(ctx context.Context, params *cumulo.Params) (cumulo.AttributeTree, error) {
	tree, err := c.call(ctx, "DescribeSnapshots", params)
	if err != nil {
		return nil, fmt.Errorf("describing snapshots: %w", err)
	}

	return tree, nil
}

// CreateSnapshot snapshots one volume. A client token is generated when
// params do not carry one.
func (c *ComputeClient) CreateSnapshot(ctx context.Context, volumeID string, params *cumulo.Params) (cumulo.AttributeTree, error) {
	if volumeID == "" {
		return nil, fmt.Errorf("creating snapshot: %w", cumulo.ErrIdentifierRequired)
	}

	snapParams := withClientToken(params).Set("volume_id", volumeID)

	tree, err := c.call(ctx, "CreateSnapshot", snapParams)
	if err != nil {
		return nil, fmt.Errorf("creating snapshot: %w", err)
	}

	return tree, nil
}

// DeleteSnapshot deletes one snapshot.
func (c *ComputeClient) DeleteSnapshot(ctx context.Context, snapshotID string) error {
	if snapshotID == "" {
		return fmt.Errorf("deleting snapshot: %w", cumulo.ErrIdentifierRequired)
	}

	params := cumulo.NewParams().Set("snapshot_id", snapshotID)

	if _, err := c.call(ctx, "DeleteSnapshot", params); err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}

	c.invalidate("snapshot", snapshotID)

	return nil
}

// Instances returns a lazy collection over DescribeInstances.
func (c *ComputeClient) Instances(params *cumulo.Params) *cumulo.Collection {
	return c.client.collection(constants.ComputeService, "DescribeInstances", "instances", params)
}

// Volumes returns a lazy collection over DescribeVolumes.
func (c *ComputeClient) Volumes(params *cumulo.Params) *cumulo.Collection {
	return c.client.collection(constants.ComputeService, "DescribeVolumes", "volumes", params)
}

// Snapshots returns a lazy collection over DescribeSnapshots.
func (c *ComputeClient) Snapshots(params *cumulo.Params) *cumulo.Collection {
	return c.client.collection(constants.ComputeService, "DescribeSnapshots", "snapshots", params)
}

// Instance returns a lazily fetched view of one instance. Repeated calls
// with the same ID share a single Model.
func (c *ComputeClient) Instance(instanceID string) *cumulo.Model {
	return c.model("instance", instanceID, func(ctx context.Context) (cumulo.AttributeTree, error) {
		return c.fetchOne(ctx, "DescribeInstances", "instances", "instance_id", instanceID)
	})
}

// Volume returns a lazily fetched view of one volume.
func (c *ComputeClient) Volume(volumeID string) *cumulo.Model {
	return c.model("volume", volumeID, func(ctx context.Context) (cumulo.AttributeTree, error) {
		return c.fetchOne(ctx, "DescribeVolumes", "volumes", "volume_id", volumeID)
	})
}

// Snapshot returns a lazily fetched view of one snapshot.
func (c *ComputeClient) Snapshot(snapshotID string) *cumulo.Model {
	return c.model("snapshot", snapshotID, func(ctx context.Context) (cumulo.AttributeTree, error) {
		return c.fetchOne(ctx, "DescribeSnapshots", "snapshots", "snapshot_id", snapshotID)
	})
}

// fetchOne describes a single resource and unwraps the first returned item.
func (c *ComputeClient) fetchOne(ctx context.Context, action, listAttr, idAttr, id string) (cumulo.AttributeTree, error) {
	params := cumulo.NewParams().Set(idAttr, id)

	tree, err := c.call(ctx, action, params)
	if err != nil {
		return nil, err
	}

	items := tree.Trees(listAttr)
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: %s %q", cumulo.ErrResourceNotFound, strings.TrimSuffix(idAttr, "_id"), id)
	}

	return items[0], nil
}

func (c *ComputeClient) model(kind, id string, fetch cumulo.FetchFunc) *cumulo.Model {
	key := kind + "/" + id

	c.mu.Lock()
	defer c.mu.Unlock()

	if model, ok := c.models[key]; ok {
		return model
	}

	model := cumulo.NewModel(id, fetch)
	c.models[key] = model

	return model
}

// invalidate drops cached attributes on models this facade handed out, so
// the next read after a mutation refetches.
func (c *ComputeClient) invalidate(kind string, ids ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, id := range ids {
		if model, ok := c.models[kind+"/"+id]; ok {
			model.Invalidate()
		}
	}
}

// withClientToken returns a copy of params carrying a client token,
// generating one when the caller did not supply it.
func withClientToken(params *cumulo.Params) *cumulo.Params {
	tokenParams := params.Clone()

	if !tokenParams.Has("client_token") {
		tokenParams.Set("client_token", uuid.NewString())
	}

	return tokenParams
}
