// Package engine orchestrates the simulation: the per-turn state machine
// that sequences production, consumption, trading and settlement into a
// deterministic, replayable event log.
package engine

// Action identifies what a country did in an event.
type Action string

const (
	ActionProduce Action = "produce"
	ActionConsume Action = "consume"
	ActionBuy     Action = "buy"
	ActionSell    Action = "sell"
)

// Event is one entry of the per-turn event log. The log is append-only and
// write-only from the core's point of view: it feeds external sinks and is
// never read back. Unit price and counterparty are set on trade actions
// only.
type Event struct {
	Turn         int    `json:"turn" db:"turn"`
	Actor        string `json:"actor" db:"actor"`
	Action       Action `json:"action" db:"action"`
	Resource     string `json:"resource_kind" db:"resource"`
	Quantity     int    `json:"quantity" db:"quantity"`
	UnitPrice    int    `json:"unit_price,omitempty" db:"unit_price"`
	Counterparty string `json:"counterparty,omitempty" db:"counterparty"`
}
