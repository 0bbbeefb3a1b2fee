package typesense

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/typesense/typesense-go/v2/typesense"
	"github.com/typesense/typesense-go/v2/typesense/api"
	"github.com/typesense/typesense-go/v2/typesense/api/pointer"
	"github.com/zatekoja/pharmacyclaims/pkg/config"
	"github.com/zatekoja/pharmacyclaims/pkg/retry"
)

const (
	ClaimsCollection = "claims"
)

// Client represents a Typesense client
type Client struct {
	client *typesense.Client
}

// NewClient creates a new Typesense client with exponential backoff retry
func NewClient(cfg *config.TypesenseConfig) (*Client, error) {
	client := typesense.NewClient(
		typesense.WithServer(cfg.URL),
		typesense.WithAPIKey(cfg.APIKey),
		typesense.WithConnectionTimeout(5*time.Second),
	)

	err := retry.DoWithLog(
		context.Background(),
		retry.DefaultConfig(),
		"Typesense",
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_, err := client.Health(ctx, 2*time.Second)
			return err
		},
		func(attempt int, err error, nextDelay time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", nextDelay).Msg("Typesense connection attempt failed")
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Typesense after retries: %w", err)
	}

	log.Info().Str("url", cfg.URL).Msg("Successfully connected to Typesense")
	return &Client{client: client}, nil
}

// Client returns the underlying Typesense client
func (c *Client) Client() *typesense.Client {
	return c.client
}

// ClaimsSchema describes the claims collection
func ClaimsSchema() *api.CollectionSchema {
	return &api.CollectionSchema{
		Name: ClaimsCollection,
		Fields: []api.Field{
			{Name: "id", Type: "string"},
			{Name: "claim_number", Type: "string"},
			{Name: "patient_id", Type: "string"},
			{Name: "provider_id", Type: "string", Facet: pointer.True()},
			{Name: "plan_id", Type: "string", Facet: pointer.True()},
			{Name: "status", Type: "string", Facet: pointer.True()},
			{Name: "item_ids", Type: "string[]", Optional: pointer.True()},
			{Name: "notes", Type: "string", Optional: pointer.True()},
			{Name: "total_amount", Type: "float"},
			{Name: "covered_amount", Type: "float"},
			{Name: "approval_required", Type: "bool", Facet: pointer.True()},
			{Name: "submitted_at", Type: "int64"},
		},
		DefaultSortingField: pointer.String("submitted_at"),
	}
}

// InitSchema ensures the claims collection exists
func (c *Client) InitSchema(ctx context.Context) error {
	collections, err := c.client.Collections().Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve collections: %w", err)
	}

	for _, col := range collections {
		if col.Name == ClaimsCollection {
			log.Debug().Str("collection", ClaimsCollection).Msg("Typesense collection already exists")
			return nil
		}
	}

	if _, err := c.client.Collections().Create(ctx, ClaimsSchema()); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	log.Info().Str("collection", ClaimsCollection).Msg("Created Typesense collection")
	return nil
}

// DropSchema deletes the claims collection if it exists
func (c *Client) DropSchema(ctx context.Context) error {
	if _, err := c.client.Collection(ClaimsCollection).Delete(ctx); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}
