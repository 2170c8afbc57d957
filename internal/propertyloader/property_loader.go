package propertyloader

import (
	"context"
	"fmt"
	"time"

	"github.com/rpattn/rowql/internal/domain"
	"github.com/rpattn/rowql/internal/repository"

	"github.com/google/uuid"
	"github.com/graph-gophers/dataloader"
)

// PropertyLoader batches property lookups made while serving one request.
type PropertyLoader struct {
	Loader *dataloader.Loader
}

func NewPropertyLoader(repo repository.PropertyRepository) *PropertyLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]uuid.UUID, len(keys))
		for i, k := range keys {
			id, err := uuid.Parse(k.String())
			if err != nil {
				results := make([]*dataloader.Result, len(keys))
				for j := range results {
					results[j] = &dataloader.Result{Error: fmt.Errorf("invalid property id %q: %w", k.String(), err)}
				}
				return results
			}
			ids[i] = id
		}

		properties, err := repo.GetByIDs(ctx, ids)
		if err != nil {
			results := make([]*dataloader.Result, len(keys))
			for i := range results {
				results[i] = &dataloader.Result{Error: err}
			}
			return results
		}

		byID := make(map[uuid.UUID]domain.Property, len(properties))
		for _, p := range properties {
			byID[p.ID] = p
		}

		// Results must line up with keys; unknown ids yield nil data.
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if p, ok := byID[id]; ok {
				results[i] = &dataloader.Result{Data: p}
			} else {
				results[i] = &dataloader.Result{Data: nil}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(2*time.Millisecond))
	return &PropertyLoader{Loader: loader}
}

// LoadMany resolves the ids through the loader, skipping unknown ones.
func LoadMany(ctx context.Context, loader *dataloader.Loader, ids []uuid.UUID) ([]domain.Property, error) {
	keys := make(dataloader.Keys, len(ids))
	for i, id := range ids {
		keys[i] = dataloader.StringKey(id.String())
	}

	data, errs := loader.LoadMany(ctx, keys)()
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	properties := make([]domain.Property, 0, len(data))
	for _, item := range data {
		if p, ok := item.(domain.Property); ok {
			properties = append(properties, p)
		}
	}
	return properties, nil
}
