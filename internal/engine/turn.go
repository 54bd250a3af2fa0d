// Turn orchestration — one full cycle of produce, consume, trade and settle
// for every country in the roster.
package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/bruno7317/cloudweave-sim/internal/country"
	"github.com/bruno7317/cloudweave-sim/internal/market"
)

var (
	// ErrUnsettleableOffer is returned when settlement is attempted on an
	// offer still missing a counterparty. It signals an orchestration bug
	// and fails that offer only, never the whole turn.
	ErrUnsettleableOffer = errors.New("offer is not ready to process")
	// ErrCountryNotFound is returned when a trade references a country
	// absent from the roster.
	ErrCountryNotFound = errors.New("country not found")
)

// ClearingMode selects the authoritative settlement path. Exactly one mode
// runs per simulation; mixing them could settle the same offer twice.
type ClearingMode string

const (
	// ClearDirect settles the resting offers each agent accepts during its
	// strategy pass. This is the default.
	ClearDirect ClearingMode = "direct"
	// ClearBook hides the book from agents (they always post fallback
	// offers) and clears everything in one price-cross pass per turn.
	ClearBook ClearingMode = "book"
)

// TurnConfig carries the knobs the orchestrator runs with.
type TurnConfig struct {
	Resource string       // Commodity kind recorded on events
	OfferTTL int          // Turns an offer rests before expiring
	Clearing ClearingMode // Settlement path for the whole run
}

// TurnManager drives one simulated turn at a time over a fixed roster. The
// roster is owned explicitly by the manager and iterated in insertion order,
// which keeps repeated runs byte-for-byte reproducible.
type TurnManager struct {
	countries []*country.Country
	index     map[string]*country.Country
	book      *market.Book
	cfg       TurnConfig
	turn      int
}

// NewTurnManager wires a roster and an order book into an orchestrator.
func NewTurnManager(countries []*country.Country, book *market.Book, cfg TurnConfig) *TurnManager {
	if cfg.Resource == "" {
		cfg.Resource = "oil"
	}
	if cfg.OfferTTL <= 0 {
		cfg.OfferTTL = 3
	}
	if cfg.Clearing == "" {
		cfg.Clearing = ClearDirect
	}

	index := make(map[string]*country.Country, len(countries))
	for _, c := range countries {
		index[c.Name()] = c
	}
	return &TurnManager{
		countries: countries,
		index:     index,
		book:      book,
		cfg:       cfg,
	}
}

// Turn returns the number of completed turns.
func (tm *TurnManager) Turn() int { return tm.turn }

// Book returns the order book.
func (tm *TurnManager) Book() *market.Book { return tm.book }

// Resource returns the commodity kind this simulation trades.
func (tm *TurnManager) Resource() string { return tm.cfg.Resource }

// Countries returns the roster in insertion order.
func (tm *TurnManager) Countries() []*country.Country {
	out := make([]*country.Country, len(tm.countries))
	copy(out, tm.countries)
	return out
}

// CountryByName looks a country up by its roster name.
func (tm *TurnManager) CountryByName(name string) (*country.Country, error) {
	c, ok := tm.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCountryNotFound, name)
	}
	return c, nil
}

func (tm *TurnManager) accounts() []market.Account {
	accounts := make([]market.Account, len(tm.countries))
	for i, c := range tm.countries {
		accounts[i] = c
	}
	return accounts
}

// PerformTurn runs one full simulation turn and returns its ordered event
// log. Per-country and per-offer failures degrade to missing events; only
// the host stopping the loop ends the run.
func (tm *TurnManager) PerformTurn() []Event {
	tm.turn++
	slog.Debug("turn starting", "turn", tm.turn)

	if expired := tm.book.RemoveExpired(tm.turn); expired > 0 {
		slog.Debug("expired offers removed", "turn", tm.turn, "count", expired)
	}

	var events []Event
	for _, c := range tm.countries {
		events = append(events, tm.runCountry(c)...)
	}

	if tm.cfg.Clearing == ClearBook {
		events = append(events, tm.clearBook()...)
	}

	slog.Debug("turn complete", "turn", tm.turn, "events", len(events))
	return events
}

// runCountry executes one country's slice of the turn: produce, consume,
// strategize, then settle whatever the strategy matched.
func (tm *TurnManager) runCountry(c *country.Country) []Event {
	basePrice := tm.book.BasePrice(tm.accounts())

	events := []Event{
		{Turn: tm.turn, Actor: c.Name(), Action: ActionProduce, Resource: tm.cfg.Resource, Quantity: c.Produce()},
		{Turn: tm.turn, Actor: c.Name(), Action: ActionConsume, Resource: tm.cfg.Resource, Quantity: c.Consume()},
	}

	available := tm.book.Offers()
	if tm.cfg.Clearing == ClearBook {
		// Agents never pre-match in book mode; the crossing pass owns
		// settlement, so the strategy only sees the reference price.
		available = nil
	}

	for _, offer := range c.StrategizeTrade(available, basePrice) {
		offer.Stamp(tm.turn, tm.cfg.OfferTTL)
		if offer.IsReadyToProcess() {
			evts, err := tm.processTrade(offer)
			if err != nil {
				slog.Warn("trade failed", "offer", offer.ID(), "error", err)
				continue
			}
			events = append(events, evts...)
			continue
		}
		tm.book.AddOffer(offer)
	}

	if tm.cfg.Clearing == ClearDirect {
		events = append(events, tm.settleAccepted()...)
	}
	return events
}

// settleAccepted processes every resting offer the last strategy pass
// matched, then retires those offers from the book. Offers whose settlement
// fails are retired too: an accepted offer must never rest in the book
// again.
func (tm *TurnManager) settleAccepted() []Event {
	var events []Event
	var settled []*market.TradeOffer
	for _, offer := range tm.book.Offers() {
		if !offer.IsReadyToProcess() {
			continue
		}
		settled = append(settled, offer)
		evts, err := tm.processTrade(offer)
		if err != nil {
			slog.Warn("settlement failed, retiring offer", "offer", offer.ID(), "error", err)
			continue
		}
		events = append(events, evts...)
	}
	tm.book.RemoveOffers(settled)
	return events
}

// clearBook settles the fills produced by the book-wide crossing pass.
func (tm *TurnManager) clearBook() []Event {
	var events []Event
	for _, f := range tm.book.Match() {
		evts, err := tm.transfer(f.Buyer, f.Seller, f.Quantity, f.UnitPrice)
		if err != nil {
			slog.Warn("fill settlement failed", "buyer", f.Buyer, "seller", f.Seller, "error", err)
			continue
		}
		events = append(events, evts...)
	}
	return events
}

// processTrade settles a fully matched offer: the four-way transfer of
// resource and money between its buyer and seller.
func (tm *TurnManager) processTrade(offer *market.TradeOffer) ([]Event, error) {
	if !offer.IsReadyToProcess() {
		return nil, fmt.Errorf("%w: buyer %q, seller %q", ErrUnsettleableOffer, offer.Buyer(), offer.Seller())
	}
	return tm.transfer(offer.Buyer(), offer.Seller(), offer.Quantity(), offer.UnitPrice())
}

// transfer applies the four-way ledger move between a matched pair. Every
// leg is validated before any leg mutates state, so the transfer is
// all-or-nothing and no event is emitted for a failed trade.
func (tm *TurnManager) transfer(buyerName, sellerName string, quantity, unitPrice int) ([]Event, error) {
	buyer, err := tm.CountryByName(buyerName)
	if err != nil {
		return nil, err
	}
	seller, err := tm.CountryByName(sellerName)
	if err != nil {
		return nil, err
	}
	if quantity <= 0 || unitPrice <= 0 {
		return nil, fmt.Errorf("%w: %d units at %d", country.ErrInvalidAmount, quantity, unitPrice)
	}
	total := quantity * unitPrice

	// The guarded resource withdrawal is the only leg that can fail; it runs
	// first, before anything mutates. Money debits are unguarded (credit
	// line) and deposits of positive amounts cannot fail.
	if err := seller.WithdrawResource(quantity); err != nil {
		return nil, err
	}
	_ = buyer.DebitMoney(total)
	_ = seller.DepositMoney(total)
	_ = buyer.DepositResource(quantity)

	slog.Info("trade settled",
		"turn", tm.turn,
		"buyer", buyerName,
		"seller", sellerName,
		"quantity", quantity,
		"unit_price", unitPrice,
		"total", total,
	)

	return []Event{
		{Turn: tm.turn, Actor: buyerName, Action: ActionBuy, Resource: tm.cfg.Resource, Quantity: quantity, UnitPrice: unitPrice, Counterparty: sellerName},
		{Turn: tm.turn, Actor: sellerName, Action: ActionSell, Resource: tm.cfg.Resource, Quantity: quantity, UnitPrice: unitPrice, Counterparty: buyerName},
	}, nil
}
