package query

import (
	"context"

	"github.com/goliatone/go-bca/core"
	"github.com/goliatone/go-bca/forex"
)

type ForexRatesReader interface {
	Rates(ctx context.Context, filter forex.Filter) (forex.RateTable, error)
}

type GetForexRatesQuery struct {
	reader ForexRatesReader
}

func NewGetForexRatesQuery(reader ForexRatesReader) *GetForexRatesQuery {
	return &GetForexRatesQuery{reader: reader}
}

func (q *GetForexRatesQuery) Query(ctx context.Context, msg GetForexRatesMessage) (forex.RateTable, error) {
	if q == nil || q.reader == nil {
		return forex.RateTable{}, queryDependencyError("query: forex reader is required")
	}
	return q.reader.Rates(ctx, msg.Filter)
}

type ListActivityQuery struct {
	reader core.ActivityReader
}

func NewListActivityQuery(reader core.ActivityReader) *ListActivityQuery {
	return &ListActivityQuery{reader: reader}
}

func (q *ListActivityQuery) Query(ctx context.Context, msg ListActivityMessage) (core.ActivityPage, error) {
	if q == nil || q.reader == nil {
		return core.ActivityPage{}, queryDependencyError("query: activity reader is required")
	}
	return q.reader.List(ctx, msg.Filter)
}
