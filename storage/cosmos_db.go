package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"govor-biljaka/model"
)

// cosmosKind is the partition key value of every observation document; the
// container is expected to be partitioned on /kind.
const cosmosKind = "observation"

type cosmosDoc struct {
	model.Observation
	Kind string `json:"kind"`
}

// CosmosObservationDB stores observations in an Azure Cosmos DB (NoSQL API)
// container.
type CosmosObservationDB struct {
	container *azcosmos.ContainerClient
	pk        azcosmos.PartitionKey
	log       *zap.Logger
}

type CosmosOptions struct {
	Endpoint         string
	Key              string
	ConnectionString string
	Database         string
	Container        string
}

// NewCosmosObservationDB authenticates with the connection string when one
// is given, otherwise with endpoint and account key.
func NewCosmosObservationDB(opts CosmosOptions, log *zap.Logger) (*CosmosObservationDB, error) {
	var (
		client *azcosmos.Client
		err    error
	)
	if opts.ConnectionString != "" {
		client, err = azcosmos.NewClientFromConnectionString(opts.ConnectionString, nil)
	} else {
		var cred azcosmos.KeyCredential
		cred, err = azcosmos.NewKeyCredential(opts.Key)
		if err != nil {
			return nil, fmt.Errorf("cosmos key: %w", err)
		}
		client, err = azcosmos.NewClientWithKey(opts.Endpoint, cred, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("cosmos client: %w", err)
	}

	container, err := client.NewContainer(opts.Database, opts.Container)
	if err != nil {
		return nil, fmt.Errorf("cosmos container %s/%s: %w", opts.Database, opts.Container, err)
	}
	log.Info("using Cosmos DB container",
		zap.String("database", opts.Database),
		zap.String("container", opts.Container),
	)
	return &CosmosObservationDB{
		container: container,
		pk:        azcosmos.NewPartitionKeyString(cosmosKind),
		log:       log,
	}, nil
}

func (db *CosmosObservationDB) SaveObservation(ctx context.Context, obs *model.Observation) (*model.Observation, error) {
	doc := cosmosDoc{Observation: *obs, Kind: cosmosKind}
	doc.ID = uuid.NewString()
	body, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	if _, err := db.container.CreateItem(ctx, db.pk, body, nil); err != nil {
		return nil, err
	}
	saved := doc.Observation
	return &saved, nil
}

func (db *CosmosObservationDB) ListObservations(ctx context.Context) ([]model.Observation, error) {
	out := []model.Observation{}
	pager := db.container.NewQueryItemsPager("SELECT * FROM c ORDER BY c.timestamp DESC", db.pk, nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		for _, item := range page.Items {
			var doc cosmosDoc
			if err := json.Unmarshal(item, &doc); err != nil {
				db.log.Warn("skipping undecodable cosmos item", zap.Error(err))
				continue
			}
			out = append(out, doc.Observation)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func (db *CosmosObservationDB) GetObservation(ctx context.Context, id string) (*model.Observation, error) {
	resp, err := db.container.ReadItem(ctx, db.pk, id, nil)
	if err != nil {
		return nil, cosmosNotFound(err)
	}
	var doc cosmosDoc
	if err := json.Unmarshal(resp.Value, &doc); err != nil {
		return nil, fmt.Errorf("decode observation %s: %w", id, err)
	}
	return &doc.Observation, nil
}

func (db *CosmosObservationDB) DeleteObservation(ctx context.Context, id string) error {
	_, err := db.container.DeleteItem(ctx, db.pk, id, nil)
	return cosmosNotFound(err)
}

func (db *CosmosObservationDB) Close() error {
	return nil
}

func cosmosNotFound(err error) error {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}
