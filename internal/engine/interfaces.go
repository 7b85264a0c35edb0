package engine

import (
	"context"

	"mabacktester/types"
)

type dataStore interface {
	GetSeries(ctx context.Context, symbol string) ([]types.PriceSample, error)
}

type reportArchive interface {
	Save(ctx context.Context, report *Report) error
}
