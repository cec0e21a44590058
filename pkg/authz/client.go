package authz

import (
	"context"
	"fmt"
	"strings"
	"time"

	ofgaclient "github.com/openfga/go-sdk/client"

	"github.com/c10r/freetool-sub006/pkg/observability"
	"github.com/google/uuid"
)

// Client is the boundary to the external relationship store. Every operation
// is a remote call; callers treat failures as soft unless documented
// otherwise (only store/model bootstrap may be fatal, and only at startup).
type Client interface {
	// CreateRelationships writes tuples with idempotent-create semantics:
	// re-adding an existing tuple is a no-op, not an error.
	CreateRelationships(ctx context.Context, tuples []Tuple) error

	// DeleteRelationships removes tuples; deleting a tuple that does not
	// exist is a no-op.
	DeleteRelationships(ctx context.Context, tuples []Tuple) error

	// CheckPermission answers a point query: does subject hold relation on
	// object, directly or transitively.
	CheckPermission(ctx context.Context, subject Subject, relation Relation, object Object) (bool, error)

	// InitializeOrganization bootstraps the admin relationship for an
	// organization. Idempotent.
	InitializeOrganization(ctx context.Context, orgID string, adminUserID uuid.UUID) error
}

// FGAClient implements Client against an OpenFGA-compatible server.
type FGAClient struct {
	apiURL    string
	storeName string
	handle    *StoreHandle
	logger    *observability.Logger
	metrics   *observability.Metrics
}

// NewFGAClient creates a client for the relationship store at apiURL. The
// store and authorization model are not resolved until Initialize is called.
func NewFGAClient(apiURL, storeName string, refreshTTL time.Duration, logger *observability.Logger, metrics *observability.Metrics) *FGAClient {
	return &FGAClient{
		apiURL:    apiURL,
		storeName: storeName,
		handle:    NewStoreHandle(refreshTTL),
		logger:    logger,
		metrics:   metrics,
	}
}

// Initialize resolves (creating if needed) the store and authorization model.
// Callers should treat an error here as fatal to process start.
func (c *FGAClient) Initialize(ctx context.Context) error {
	if _, err := c.handle.Get(ctx, c.resolve); err != nil {
		return fmt.Errorf("authz store bootstrap failed: %w", err)
	}
	return nil
}

// Ping reports whether the store is currently reachable. Used by readiness
// probes only.
func (c *FGAClient) Ping(ctx context.Context) error {
	_, _, err := c.StoreExists(ctx, c.storeName)
	return err
}

// api returns a request-scoped SDK client bound to the current store and
// model ids, refreshing them when the handle has expired.
func (c *FGAClient) api(ctx context.Context) (*ofgaclient.OpenFgaClient, error) {
	ids, err := c.handle.Get(ctx, c.resolve)
	if err != nil {
		return nil, err
	}
	return ofgaclient.NewSdkClient(&ofgaclient.ClientConfiguration{
		ApiUrl:               c.apiURL,
		StoreId:              ids.StoreID,
		AuthorizationModelId: ids.ModelID,
	})
}

// bareAPI returns an SDK client without store scoping, for store-level
// lifecycle calls.
func (c *FGAClient) bareAPI() (*ofgaclient.OpenFgaClient, error) {
	return ofgaclient.NewSdkClient(&ofgaclient.ClientConfiguration{ApiUrl: c.apiURL})
}

// resolve finds or creates the named store and ensures an authorization model
// is written, returning both ids.
func (c *FGAClient) resolve(ctx context.Context) (StoreIDs, error) {
	storeID, found, err := c.StoreExists(ctx, c.storeName)
	if err != nil {
		return StoreIDs{}, err
	}
	if !found {
		storeID, err = c.CreateStore(ctx, c.storeName)
		if err != nil {
			return StoreIDs{}, err
		}
		c.logger.WithField("store_id", storeID).Info("created authorization store")
	}

	modelID, err := c.latestModelID(ctx, storeID)
	if err != nil {
		return StoreIDs{}, err
	}
	if modelID == "" {
		modelID, err = c.WriteAuthorizationModel(ctx, storeID)
		if err != nil {
			return StoreIDs{}, err
		}
		c.logger.WithField("model_id", modelID).Info("wrote authorization model")
	}

	return StoreIDs{StoreID: storeID, ModelID: modelID}, nil
}

// CreateStore creates a store and returns its id.
func (c *FGAClient) CreateStore(ctx context.Context, name string) (string, error) {
	api, err := c.bareAPI()
	if err != nil {
		return "", err
	}
	resp, err := api.CreateStore(ctx).Body(ofgaclient.ClientCreateStoreRequest{Name: name}).Execute()
	if err != nil {
		return "", fmt.Errorf("failed to create store %q: %w", name, err)
	}
	return resp.GetId(), nil
}

// StoreExists looks a store up by name, returning its id when found.
func (c *FGAClient) StoreExists(ctx context.Context, name string) (string, bool, error) {
	api, err := c.bareAPI()
	if err != nil {
		return "", false, err
	}
	resp, err := api.ListStores(ctx).Execute()
	if err != nil {
		return "", false, fmt.Errorf("failed to list stores: %w", err)
	}
	for _, store := range resp.GetStores() {
		if store.GetName() == name {
			return store.GetId(), true, nil
		}
	}
	return "", false, nil
}

// WriteAuthorizationModel writes the embedded authorization model to the
// given store and returns the new model id.
func (c *FGAClient) WriteAuthorizationModel(ctx context.Context, storeID string) (string, error) {
	body, err := loadAuthorizationModel()
	if err != nil {
		return "", err
	}
	api, err := ofgaclient.NewSdkClient(&ofgaclient.ClientConfiguration{ApiUrl: c.apiURL, StoreId: storeID})
	if err != nil {
		return "", err
	}
	resp, err := api.WriteAuthorizationModel(ctx).Body(body).Execute()
	if err != nil {
		return "", fmt.Errorf("failed to write authorization model: %w", err)
	}
	return resp.GetAuthorizationModelId(), nil
}

// latestModelID returns the most recent authorization model id for the store,
// or "" when none has been written yet.
func (c *FGAClient) latestModelID(ctx context.Context, storeID string) (string, error) {
	api, err := ofgaclient.NewSdkClient(&ofgaclient.ClientConfiguration{ApiUrl: c.apiURL, StoreId: storeID})
	if err != nil {
		return "", err
	}
	resp, err := api.ReadAuthorizationModels(ctx).Execute()
	if err != nil {
		return "", fmt.Errorf("failed to read authorization models: %w", err)
	}
	models := resp.GetAuthorizationModels()
	if len(models) == 0 {
		return "", nil
	}
	return models[0].GetId(), nil
}

// CreateRelationships writes the given tuples. Duplicate writes are treated
// as success.
func (c *FGAClient) CreateRelationships(ctx context.Context, tuples []Tuple) error {
	if len(tuples) == 0 {
		return nil
	}
	writes := make([]ofgaclient.ClientTupleKey, 0, len(tuples))
	for _, t := range tuples {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("invalid tuple: %w", err)
		}
		writes = append(writes, ofgaclient.ClientTupleKey{
			User:     t.Subject.String(),
			Relation: string(t.Relation),
			Object:   t.Object.String(),
		})
	}

	api, err := c.api(ctx)
	if err != nil {
		return err
	}
	_, err = api.Write(ctx).Body(ofgaclient.ClientWriteRequest{Writes: writes}).Execute()
	if err != nil && !isTupleNoop(err) {
		c.countTupleWrite("create", "error", len(tuples))
		return fmt.Errorf("failed to write %d relationship tuple(s): %w", len(tuples), err)
	}
	c.countTupleWrite("create", "ok", len(tuples))
	return nil
}

// DeleteRelationships removes the given tuples. Deletes of missing tuples are
// treated as success.
func (c *FGAClient) DeleteRelationships(ctx context.Context, tuples []Tuple) error {
	if len(tuples) == 0 {
		return nil
	}
	deletes := make([]ofgaclient.ClientTupleKeyWithoutCondition, 0, len(tuples))
	for _, t := range tuples {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("invalid tuple: %w", err)
		}
		deletes = append(deletes, ofgaclient.ClientTupleKeyWithoutCondition{
			User:     t.Subject.String(),
			Relation: string(t.Relation),
			Object:   t.Object.String(),
		})
	}

	api, err := c.api(ctx)
	if err != nil {
		return err
	}
	_, err = api.Write(ctx).Body(ofgaclient.ClientWriteRequest{Deletes: deletes}).Execute()
	if err != nil && !isTupleNoop(err) {
		c.countTupleWrite("delete", "error", len(tuples))
		return fmt.Errorf("failed to delete %d relationship tuple(s): %w", len(tuples), err)
	}
	c.countTupleWrite("delete", "ok", len(tuples))
	return nil
}

// CheckPermission performs a point permission check.
func (c *FGAClient) CheckPermission(ctx context.Context, subject Subject, relation Relation, object Object) (bool, error) {
	api, err := c.api(ctx)
	if err != nil {
		return false, err
	}
	resp, err := api.Check(ctx).Body(ofgaclient.ClientCheckRequest{
		User:     subject.String(),
		Relation: string(relation),
		Object:   object.String(),
	}).Execute()
	if err != nil {
		return false, fmt.Errorf("permission check failed: %w", err)
	}
	return resp.GetAllowed(), nil
}

// InitializeOrganization grants adminUserID the admin relation on the
// organization. Safe to call repeatedly.
func (c *FGAClient) InitializeOrganization(ctx context.Context, orgID string, adminUserID uuid.UUID) error {
	return c.CreateRelationships(ctx, []Tuple{OrganizationAdminTuple(adminUserID, orgID)})
}

func (c *FGAClient) countTupleWrite(op, status string, n int) {
	if c.metrics == nil {
		return
	}
	c.metrics.TupleWritesTotal.WithLabelValues(op, status).Add(float64(n))
}

// isTupleNoop reports whether err is the server rejecting a write because the
// tuple already exists, or a delete because it never did. The server phrases
// these as validation errors ("cannot write a tuple which already exists",
// "cannot delete a tuple which does not exist").
func isTupleNoop(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "duplicate")
}
