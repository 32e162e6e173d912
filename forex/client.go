// Package forex reads BCA foreign exchange rates through a signed executor.
package forex

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/goliatone/go-bca/core"
)

const RatesPath = "/general/rate/forex"

const (
	RateTypeERate = "e-rate"
	RateTypeTT    = "tt"
	RateTypeBN    = "bn"
)

// Filter narrows the rate table. Empty fields are omitted from the query.
type Filter struct {
	RateType     string
	CurrencyCode string
}

type RateDetail struct {
	RateType   string `json:"RateType"`
	BuyRate    string `json:"BuyRate"`
	SellRate   string `json:"SellRate"`
	LastUpdate string `json:"LastUpdate"`
}

type Currency struct {
	CurrencyCode string       `json:"CurrencyCode"`
	RateDetail   []RateDetail `json:"RateDetail"`
}

type RateTable struct {
	Currencies    []Currency `json:"Currencies"`
	InvoiceNumber string     `json:"InvoiceNumber,omitempty"`
}

// Rate returns the detail for currency and rate type, if present.
func (t RateTable) Rate(currencyCode string, rateType string) (RateDetail, bool) {
	for _, currency := range t.Currencies {
		if !strings.EqualFold(currency.CurrencyCode, currencyCode) {
			continue
		}
		for _, detail := range currency.RateDetail {
			if strings.EqualFold(detail.RateType, rateType) {
				return detail, true
			}
		}
	}
	return RateDetail{}, false
}

type Client struct {
	executor core.Executor
}

func NewClient(executor core.Executor) *Client {
	return &Client{executor: executor}
}

func (c *Client) Rates(ctx context.Context, filter Filter) (RateTable, error) {
	if c == nil || c.executor == nil {
		return RateTable{}, core.NewInternalError("forex: executor is required", nil, nil)
	}
	res, err := c.executor.Do(ctx, core.Request{
		Method: http.MethodGet,
		Path:   RatesPath + filter.encode(),
	})
	if err != nil {
		return RateTable{}, err
	}
	var table RateTable
	if err := res.Decode(&table); err != nil {
		return RateTable{}, core.NewTransportError(
			"forex: decode rate table",
			err,
			http.StatusBadGateway,
			map[string]any{"status_code": res.StatusCode},
		)
	}
	return table, nil
}

// encode renders the query string with keys sorted so the signed path is
// stable across calls.
func (f Filter) encode() string {
	values := map[string]string{}
	if v := strings.TrimSpace(f.RateType); v != "" {
		values["RateType"] = v
	}
	if v := strings.TrimSpace(f.CurrencyCode); v != "" {
		values["CurrencyCode"] = strings.ToUpper(v)
	}
	if len(values) == 0 {
		return ""
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, url.QueryEscape(key)+"="+url.QueryEscape(values[key]))
	}
	return "?" + strings.Join(parts, "&")
}
