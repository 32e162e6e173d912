package query

import (
	"github.com/goliatone/go-bca/core"
	"github.com/goliatone/go-bca/forex"
	gocmd "github.com/goliatone/go-command"
)

var (
	_ gocmd.Querier[GetForexRatesMessage, forex.RateTable] = (*GetForexRatesQuery)(nil)
	_ gocmd.Querier[ListActivityMessage, core.ActivityPage] = (*ListActivityQuery)(nil)
	_ ForexRatesReader                                      = (*forex.Client)(nil)
)
