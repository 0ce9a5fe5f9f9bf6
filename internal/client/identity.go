package client

import (
	"context"
	"fmt"
	"sync"

	"github.com/cumulo-io/cumulo-client/internal/constants"
	"github.com/cumulo-io/cumulo-client/pkg/cumulo"
)

// IdentityClient implements cumulo.IdentityClient.
type IdentityClient struct {
	client *Client

	mu     sync.Mutex
	models map[string]*cumulo.Model
}

func newIdentityClient(client *Client) *IdentityClient {
	return &IdentityClient{
		client: client,
		models: make(map[string]*cumulo.Model),
	}
}

func (c *IdentityClient) call(ctx context.Context, action string, params *cumulo.Params) (cumulo.AttributeTree, error) {
	return c.client.Call(ctx, constants.IdentityService, action, params)
}

// ListUsers lists users matching params.
func (c *IdentityClient) ListUsers(ctx context.Context, params *cumulo.Params) (cumulo.AttributeTree, error) {
	tree, err := c.call(ctx, "ListUsers", params)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	return tree, nil
}

// GetUser returns one user by name.
func (c *IdentityClient) GetUser(ctx context.Context, userName string) (cumulo.AttributeTree, error) {
	if userName == "" {
		return nil, fmt.Errorf("getting user: %w", cumulo.ErrUserNameRequired)
	}

	params := cumulo.NewParams().Set("user_name", userName)

	tree, err := c.call(ctx, "GetUser", params)
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}

	return tree, nil
}

// CreateUser creates a user.
func (c *IdentityClient) CreateUser(ctx context.Context, userName string, params *cumulo.Params) (cumulo.AttributeTree, error) {
	if userName == "" {
		return nil, fmt.Errorf("creating user: %w", cumulo.ErrUserNameRequired)
	}

	userParams := params.Clone().Set("user_name", userName)

	tree, err := c.call(ctx, "CreateUser", userParams)
	if err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}

	c.invalidate(userName)

	return tree, nil
}

// DeleteUser deletes a user.
func (c *IdentityClient) DeleteUser(ctx context.Context, userName string) error {
	if userName == "" {
		return fmt.Errorf("deleting user: %w", cumulo.ErrUserNameRequired)
	}

	params := cumulo.NewParams().Set("user_name", userName)

	if _, err := c.call(ctx, "DeleteUser", params); err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}

	c.invalidate(userName)

	return nil
}

// ListGroups lists groups matching params.
func (c *IdentityClient) ListGroups(ctx context.Context, params *cumulo.Params) (cumulo.AttributeTree, error) {
	tree, err := c.call(ctx, "ListGroups", params)
	if err != nil {
		return nil, fmt.Errorf("listing groups: %w", err)
	}

	return tree, nil
}

// ListAccessKeys lists the access keys of one user.
func (c *IdentityClient) ListAccessKeys(ctx context.Context, userName string) (cumulo.AttributeTree, error) {
	if userName == "" {
		return nil, fmt.Errorf("listing access keys: %w", cumulo.ErrUserNameRequired)
	}

	params := cumulo.NewParams().Set("user_name", userName)

	tree, err := c.call(ctx, "ListAccessKeys", params)
	if err != nil {
		return nil, fmt.Errorf("listing access keys: %w", err)
	}

	return tree, nil
}

// CreateAccessKey mints a new access key for one user. The response is the
// only time the secret is available.
func (c *IdentityClient) CreateAccessKey(ctx context.Context, userName string) (cumulo.AttributeTree, error) {
	if userName == "" {
		return nil, fmt.Errorf("creating access key: %w", cumulo.ErrUserNameRequired)
	}

	params := cumulo.NewParams().Set("user_name", userName)

	tree, err := c.call(ctx, "CreateAccessKey", params)
	if err != nil {
		return nil, fmt.Errorf("creating access key: %w", err)
	}

	return tree, nil
}

// DeleteAccessKey revokes one access key.
func (c *IdentityClient) DeleteAccessKey(ctx context.Context, userName, accessKeyID string) error {
	if userName == "" {
		return fmt.Errorf("deleting access key: %w", cumulo.ErrUserNameRequired)
	}

	if accessKeyID == "" {
		return fmt.Errorf("deleting access key: %w", cumulo.ErrIdentifierRequired)
	}

	params := cumulo.NewParams().
		Set("user_name", userName).
		Set("access_key_id", accessKeyID)

	if _, err := c.call(ctx, "DeleteAccessKey", params); err != nil {
		return fmt.Errorf("deleting access key: %w", err)
	}

	return nil
}

// Users returns a lazy collection over ListUsers.
func (c *IdentityClient) Users(params *cumulo.Params) *cumulo.Collection {
	return c.client.collection(constants.IdentityService, "ListUsers", "users", params)
}

// Groups returns a lazy collection over ListGroups.
func (c *IdentityClient) Groups(params *cumulo.Params) *cumulo.Collection {
	return c.client.collection(constants.IdentityService, "ListGroups", "groups", params)
}

// AccessKeys returns a lazy collection over ListAccessKeys for one user.
func (c *IdentityClient) AccessKeys(userName string) *cumulo.Collection {
	params := cumulo.NewParams().Set("user_name", userName)

	return c.client.collection(constants.IdentityService, "ListAccessKeys", "access_keys", params)
}

// User returns a lazily fetched view of one user. Repeated calls with the
// same name share a single Model.
func (c *IdentityClient) User(userName string) *cumulo.Model {
	c.mu.Lock()
	defer c.mu.Unlock()

	if model, ok := c.models[userName]; ok {
		return model
	}

	model := cumulo.NewModel(userName, func(ctx context.Context) (cumulo.AttributeTree, error) {
		tree, err := c.GetUser(ctx, userName)
		if err != nil {
			return nil, err
		}

		user := tree.Tree("user")
		if len(user) == 0 {
			return nil, fmt.Errorf("%w: user %q", cumulo.ErrResourceNotFound, userName)
		}

		return user, nil
	})
	c.models[userName] = model

	return model
}

// invalidate drops cached attributes on a user model this facade handed out.
func (c *IdentityClient) invalidate(userName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if model, ok := c.models[userName]; ok {
		model.Invalidate()
	}
}
