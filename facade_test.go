package bca

import (
	"context"
	"net/http"
	"testing"

	bcacommand "github.com/goliatone/go-bca/command"
	"github.com/goliatone/go-bca/core"
	"github.com/goliatone/go-bca/forex"
	bcaquery "github.com/goliatone/go-bca/query"
	gocmd "github.com/goliatone/go-command"
)

type stubActivityReader struct {
	calls int
}

func (s *stubActivityReader) List(context.Context, core.ActivityFilter) (core.ActivityPage, error) {
	s.calls++
	return core.ActivityPage{Total: 3}, nil
}

func TestNewFacade_WiresCommandsAndQueries(t *testing.T) {
	fake := newFakeBCA(t)
	client, err := New(context.Background(), testClientConfig(fake.server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	reader := &stubActivityReader{}
	facade, err := NewFacade(client, WithActivityReader(reader))
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	commands := facade.Commands()
	if commands.ExecuteRequest == nil || commands.RefreshToken == nil {
		t.Fatalf("expected command handlers to be wired")
	}
	queries := facade.Queries()
	if queries.GetForexRates == nil || queries.ListActivity == nil {
		t.Fatalf("expected query handlers to be wired")
	}

	page, err := queries.ListActivity.Query(context.Background(), bcaquery.ListActivityMessage{})
	if err != nil {
		t.Fatalf("list activity: %v", err)
	}
	if page.Total != 3 || reader.calls != 1 {
		t.Fatalf("expected activity reader delegation")
	}

	if _, err := NewFacade(nil); err == nil {
		t.Fatalf("expected missing client error")
	}
}

func TestFacade_CommandAndQueryDelegation(t *testing.T) {
	fake := newFakeBCA(t)
	client, err := New(context.Background(), testClientConfig(fake.server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	facade, err := NewFacade(client)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}

	collector := gocmd.NewResult[core.Response]()
	ctx := gocmd.ContextWithResult(context.Background(), collector)
	err = facade.Commands().ExecuteRequest.Execute(ctx, bcacommand.ExecuteRequestMessage{
		Request: core.Request{Method: http.MethodGet, Path: forex.RatesPath},
	})
	if err != nil {
		t.Fatalf("execute request command: %v", err)
	}
	res, ok := collector.Load()
	if !ok || res.StatusCode != http.StatusOK {
		t.Fatalf("expected stored response, got %#v", res)
	}

	table, err := facade.Queries().GetForexRates.Query(context.Background(), bcaquery.GetForexRatesMessage{})
	if err != nil {
		t.Fatalf("forex query: %v", err)
	}
	if len(table.Currencies) != 1 {
		t.Fatalf("unexpected forex table %#v", table)
	}

	if _, err := facade.Queries().ListActivity.Query(context.Background(), bcaquery.ListActivityMessage{}); core.TextCode(err) != core.ErrorInternal {
		t.Fatalf("expected missing activity reader error, got %v", err)
	}
}

func TestFacade_RegisterOnDispatcher(t *testing.T) {
	fake := newFakeBCA(t)
	client, err := New(context.Background(), testClientConfig(fake.server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	facade, err := NewFacade(client)
	if err != nil {
		t.Fatalf("new facade: %v", err)
	}
	subscriptions, err := facade.Register(bcacommand.NewRegistryAdapter(nil))
	if err != nil {
		t.Fatalf("register facade: %v", err)
	}
	t.Cleanup(func() {
		for _, sub := range subscriptions {
			sub.Unsubscribe()
		}
	})
	if len(subscriptions) != 4 {
		t.Fatalf("expected four subscriptions, got %d", len(subscriptions))
	}

	status, err := bcacommand.DispatchWithResult[bcacommand.RefreshTokenMessage, bcacommand.TokenStatus](
		context.Background(),
		bcacommand.RefreshTokenMessage{},
	)
	if err != nil {
		t.Fatalf("dispatch refresh: %v", err)
	}
	if status.TokenType != "Bearer" || status.ExpiresAt == "" {
		t.Fatalf("unexpected token status %#v", status)
	}

	table, err := bcacommand.Query[bcaquery.GetForexRatesMessage, forex.RateTable](
		context.Background(),
		bcaquery.GetForexRatesMessage{Filter: forex.Filter{CurrencyCode: "USD"}},
	)
	if err != nil {
		t.Fatalf("query forex: %v", err)
	}
	if len(table.Currencies) != 1 {
		t.Fatalf("unexpected forex table %#v", table)
	}
	if n := len(fake.requestsTo(forex.RatesPath + "?CurrencyCode=USD")); n != 1 {
		t.Fatalf("expected filtered forex request, got %d", n)
	}
}
