package query

import (
	"strings"

	"github.com/goliatone/go-bca/core"
	"github.com/goliatone/go-bca/forex"
)

const (
	TypeGetForexRates = "bca.query.forex.rates"
	TypeListActivity  = "bca.query.activity.list"
)

type GetForexRatesMessage struct {
	Filter forex.Filter
}

func (GetForexRatesMessage) Type() string { return TypeGetForexRates }

func (m GetForexRatesMessage) Validate() error {
	if code := strings.TrimSpace(m.Filter.CurrencyCode); code != "" && len(code) != 3 {
		return queryValidationError("currency_code", "must be a three letter ISO code")
	}
	return nil
}

type ListActivityMessage struct {
	Filter core.ActivityFilter
}

func (ListActivityMessage) Type() string { return TypeListActivity }

func (m ListActivityMessage) Validate() error {
	if m.Filter.Page < 0 {
		return queryValidationError("page", "must be >= 0")
	}
	if m.Filter.PerPage < 0 {
		return queryValidationError("per_page", "must be >= 0")
	}
	if m.Filter.From != nil && m.Filter.To != nil && m.Filter.To.Before(*m.Filter.From) {
		return queryValidationError("to", "must not be before from")
	}
	return nil
}
