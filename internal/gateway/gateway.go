// Package gateway talks to the upstream world service over GraphQL: it
// fetches the country roster at startup and posts event logs after each
// turn. Roster failures are fatal to startup; event posting is best effort.
package gateway

import (
	"context"
	"fmt"

	"github.com/machinebox/graphql"

	"github.com/bruno7317/cloudweave-sim/internal/country"
	"github.com/bruno7317/cloudweave-sim/internal/engine"
)

const countriesQuery = `
query {
	countries {
		name
		money_reserves
		resources {
			stockpile
			production
			consumption
		}
	}
}`

const addEventsMutation = `
mutation AddEvents($events: [EventInput!]!) {
	addEvents(events: $events)
}`

// Client wraps the upstream GraphQL endpoint.
type Client struct {
	gql *graphql.Client
	url string
}

// NewClient creates a gateway client for the given GraphQL endpoint.
func NewClient(url string) *Client {
	return &Client{gql: graphql.NewClient(url), url: url}
}

type rawCountry struct {
	Name          string `json:"name"`
	MoneyReserves int    `json:"money_reserves"`
	Resources     []struct {
		Stockpile   int `json:"stockpile"`
		Production  int `json:"production"`
		Consumption int `json:"consumption"`
	} `json:"resources"`
}

// FetchCountries loads the roster from upstream. Zero countries or an entry
// without a resource block is an error: the simulation must not start on a
// malformed roster.
func (c *Client) FetchCountries(ctx context.Context) ([]country.Options, error) {
	var resp struct {
		Countries []rawCountry `json:"countries"`
	}
	if err := c.gql.Run(ctx, graphql.NewRequest(countriesQuery), &resp); err != nil {
		return nil, fmt.Errorf("fetch countries from %s: %w", c.url, err)
	}
	if len(resp.Countries) == 0 {
		return nil, fmt.Errorf("fetch countries: %s returned no countries", c.url)
	}

	out := make([]country.Options, 0, len(resp.Countries))
	for _, raw := range resp.Countries {
		if len(raw.Resources) == 0 {
			return nil, fmt.Errorf("fetch countries: no resource block for %q", raw.Name)
		}
		res := raw.Resources[0]
		out = append(out, country.Options{
			Name:            raw.Name,
			MoneyReserves:   raw.MoneyReserves,
			Stockpile:       res.Stockpile,
			ProductionRate:  res.Production,
			ConsumptionRate: res.Consumption,
		})
	}
	return out, nil
}

// PostEvents pushes a turn's event log upstream. The caller logs and
// continues on failure; a lost batch never rolls back or blocks a turn.
func (c *Client) PostEvents(ctx context.Context, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	req := graphql.NewRequest(addEventsMutation)
	req.Var("events", events)

	var resp struct {
		AddEvents bool `json:"addEvents"`
	}
	if err := c.gql.Run(ctx, req, &resp); err != nil {
		return fmt.Errorf("post events to %s: %w", c.url, err)
	}
	if !resp.AddEvents {
		return fmt.Errorf("post events: %s rejected batch of %d", c.url, len(events))
	}
	return nil
}
