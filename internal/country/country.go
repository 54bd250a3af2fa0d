// Package country implements the trading agents: per-turn production and
// consumption, a guarded resource/money ledger, and the strategy that turns
// a resource imbalance into trade offers.
package country

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/bruno7317/cloudweave-sim/internal/market"
)

var (
	// ErrInvalidAmount is returned when a ledger operation receives a
	// non-positive amount.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientResource is returned when a withdrawal exceeds the
	// stockpile. Resource balances never go negative.
	ErrInsufficientResource = errors.New("insufficient resource")
	// ErrInsufficientFunds is returned by the guarded money withdrawal when
	// the reserves cannot cover it.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Options carries the roster tuple a Country is built from.
type Options struct {
	Name            string `json:"name"`
	Stockpile       int    `json:"stockpile"`
	MoneyReserves   int    `json:"money_reserves"`
	ProductionRate  int    `json:"production_rate"`
	ConsumptionRate int    `json:"consumption_rate"`
}

// Validate rejects malformed roster entries before a simulation starts.
func (o Options) Validate() error {
	if o.Name == "" {
		return errors.New("missing country name")
	}
	if o.Stockpile < 0 {
		return fmt.Errorf("country %q: negative stockpile %d", o.Name, o.Stockpile)
	}
	if o.ProductionRate < 0 {
		return fmt.Errorf("country %q: negative production rate %d", o.Name, o.ProductionRate)
	}
	if o.ConsumptionRate < 0 {
		return fmt.Errorf("country %q: negative consumption rate %d", o.Name, o.ConsumptionRate)
	}
	return nil
}

// Country is one market participant. All state changes go through methods so
// the ledger invariants hold: the stockpile never goes negative, while money
// reserves may (a line of credit, see DebitMoney).
type Country struct {
	name            string
	stockpile       int
	moneyReserves   int
	productionRate  int
	consumptionRate int
	instability     int
}

// New builds a country from a roster entry.
func New(opts Options) *Country {
	return &Country{
		name:            opts.Name,
		stockpile:       opts.Stockpile,
		moneyReserves:   opts.MoneyReserves,
		productionRate:  opts.ProductionRate,
		consumptionRate: opts.ConsumptionRate,
	}
}

// Name returns the country's stable identity.
func (c *Country) Name() string { return c.name }

// Stockpile returns the resource units currently held.
func (c *Country) Stockpile() int { return c.stockpile }

// MoneyReserves returns the money balance, which may be negative.
func (c *Country) MoneyReserves() int { return c.moneyReserves }

// ProductionRate returns the units produced per turn.
func (c *Country) ProductionRate() int { return c.productionRate }

// ConsumptionRate returns the units consumed per turn.
func (c *Country) ConsumptionRate() int { return c.consumptionRate }

// Instability counts the turns where consumption outran the stockpile.
func (c *Country) Instability() int { return c.instability }

// ResourceBalance is the stockpile minus the next turn's consumption: the
// margin the trading strategy works with.
func (c *Country) ResourceBalance() int {
	return c.stockpile - c.consumptionRate
}

// HasSurplus reports whether the country holds more than it will consume.
func (c *Country) HasSurplus() bool { return c.ResourceBalance() > 0 }

// HasDeficit reports whether the country will run short next turn.
func (c *Country) HasDeficit() bool { return c.ResourceBalance() < 0 }

// ResourceSurplus is the amount available to sell.
func (c *Country) ResourceSurplus() int {
	return max(0, c.ResourceBalance())
}

// ResourceDemand is the amount needed to cover the shortfall.
func (c *Country) ResourceDemand() int {
	return max(0, -c.ResourceBalance())
}

// Produce adds one turn of production to the stockpile and returns the
// amount produced.
func (c *Country) Produce() int {
	c.stockpile += c.productionRate
	slog.Debug("produced",
		"country", c.name,
		"units", c.productionRate,
		"stockpile", c.stockpile,
	)
	return c.productionRate
}

// Consume removes one turn of consumption from the stockpile and returns the
// amount actually consumed. When consumption outruns the stockpile the
// stockpile clamps at zero and the instability counter advances.
func (c *Country) Consume() int {
	consumed := c.consumptionRate
	if consumed > c.stockpile {
		consumed = c.stockpile
		c.instability++
		slog.Warn("consumption exceeded stockpile",
			"country", c.name,
			"shortfall", c.consumptionRate-consumed,
			"instability", c.instability,
		)
	}
	c.stockpile -= consumed
	slog.Debug("consumed",
		"country", c.name,
		"units", consumed,
		"stockpile", c.stockpile,
	)
	return consumed
}

// DepositResource adds units to the stockpile.
func (c *Country) DepositResource(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: resource deposit of %d", ErrInvalidAmount, quantity)
	}
	c.stockpile += quantity
	slog.Debug("resource deposit", "country", c.name, "units", quantity, "stockpile", c.stockpile)
	return nil
}

// WithdrawResource removes units from the stockpile. The stockpile can never
// be driven negative: callers must hold what they withdraw.
func (c *Country) WithdrawResource(quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: resource withdrawal of %d", ErrInvalidAmount, quantity)
	}
	if c.stockpile < quantity {
		return fmt.Errorf("%w: %s holds %d of %d requested", ErrInsufficientResource, c.name, c.stockpile, quantity)
	}
	c.stockpile -= quantity
	slog.Debug("resource withdrawal", "country", c.name, "units", quantity, "stockpile", c.stockpile)
	return nil
}

// DepositMoney adds to the money reserves.
func (c *Country) DepositMoney(amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: money deposit of %d", ErrInvalidAmount, amount)
	}
	c.moneyReserves += amount
	slog.Debug("money deposit", "country", c.name, "amount", amount, "reserves", c.moneyReserves)
	return nil
}

// WithdrawMoney removes from the money reserves, guarded against overdraft.
func (c *Country) WithdrawMoney(amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: money withdrawal of %d", ErrInvalidAmount, amount)
	}
	if c.moneyReserves < amount {
		return fmt.Errorf("%w: %s holds %d of %d requested", ErrInsufficientFunds, c.name, c.moneyReserves, amount)
	}
	c.moneyReserves -= amount
	slog.Debug("money withdrawal", "country", c.name, "amount", amount, "reserves", c.moneyReserves)
	return nil
}

// DebitMoney removes from the money reserves with no overdraft guard: a
// settlement may push reserves negative, modeling a line of credit. The
// resource side of a trade stays strictly guarded.
func (c *Country) DebitMoney(amount int) error {
	if amount <= 0 {
		return fmt.Errorf("%w: money debit of %d", ErrInvalidAmount, amount)
	}
	c.moneyReserves -= amount
	if c.moneyReserves < 0 {
		slog.Warn("reserves went negative", "country", c.name, "reserves", c.moneyReserves)
	}
	return nil
}

// Snapshot is the externally visible state of a country.
type Snapshot struct {
	Name            string `json:"name"`
	Stockpile       int    `json:"stockpile"`
	MoneyReserves   int    `json:"money_reserves"`
	ProductionRate  int    `json:"production_rate"`
	ConsumptionRate int    `json:"consumption_rate"`
	Instability     int    `json:"instability"`
}

// Snapshot returns a copy of the country's current state for reporting.
func (c *Country) Snapshot() Snapshot {
	return Snapshot{
		Name:            c.name,
		Stockpile:       c.stockpile,
		MoneyReserves:   c.moneyReserves,
		ProductionRate:  c.productionRate,
		ConsumptionRate: c.consumptionRate,
		Instability:     c.instability,
	}
}

// assessMarket partitions the open offers into seller listings (cheapest
// first) and buyer listings (richest first). The country's own offers are
// excluded so it can never trade against itself.
func (c *Country) assessMarket(available []*market.TradeOffer) (sellers, buyers []*market.TradeOffer) {
	for _, o := range available {
		if o.Author() == c.name {
			continue
		}
		switch o.Side() {
		case market.Sell:
			sellers = append(sellers, o)
		case market.Buy:
			buyers = append(buyers, o)
		}
	}
	sort.Slice(sellers, func(i, j int) bool { return sellers[i].UnitPrice() < sellers[j].UnitPrice() })
	sort.Slice(buyers, func(i, j int) bool { return buyers[i].UnitPrice() > buyers[j].UnitPrice() })
	return sellers, buyers
}

// StrategizeTrade reads the open offers and the advisory base price and
// decides this turn's trade action. Resting offers may be accepted directly,
// after which the orchestrator settles them; any returned offers still need
// to be posted to the market.
func (c *Country) StrategizeTrade(available []*market.TradeOffer, basePrice int) []*market.TradeOffer {
	sellers, buyers := c.assessMarket(available)

	switch {
	case c.HasDeficit():
		return c.decideBuy(sellers, basePrice)
	case c.HasSurplus():
		return c.decideSell(buyers, basePrice)
	default:
		slog.Debug("no trade this turn", "country", c.name)
		return nil
	}
}

// decideBuy covers a deficit: accept resting sell offers cheapest-first,
// then place a buy offer for whatever demand remains.
func (c *Country) decideBuy(sellers []*market.TradeOffer, basePrice int) []*market.TradeOffer {
	remaining := c.ResourceDemand()
	slog.Debug("covering deficit", "country", c.name, "demand", remaining, "listings", len(sellers))

	for _, o := range sellers {
		if remaining <= 0 {
			break
		}
		o.Accept(c.name)
		remaining -= o.Quantity()
		slog.Info("accepted sell offer",
			"country", c.name,
			"seller", o.Seller(),
			"quantity", o.Quantity(),
			"unit_price", o.UnitPrice(),
		)
	}
	if remaining <= 0 {
		return nil
	}

	price := basePrice
	quantity := remaining
	if len(sellers) > 0 {
		// Competing sellers were visible: bid above the reference price and
		// cap the order by what current reserves can fund.
		price = basePrice + 1
		affordable := 0
		if basePrice > 0 {
			affordable = c.moneyReserves / basePrice
		}
		if quantity > affordable {
			quantity = affordable
		}
		if quantity <= 0 {
			slog.Debug("cannot fund buy offer", "country", c.name, "demand", remaining, "reserves", c.moneyReserves)
			return nil
		}
	}

	offer, err := market.NewOffer(market.Buy, quantity, price, c.name)
	if err != nil {
		slog.Warn("discarding buy offer", "country", c.name, "error", err)
		return nil
	}
	slog.Debug("posting buy offer", "country", c.name, "quantity", quantity, "unit_price", price)
	return []*market.TradeOffer{offer}
}

// decideSell moves a surplus: accept resting buy offers richest-first, then
// list whatever surplus remains, undercutting the best visible buyer.
func (c *Country) decideSell(buyers []*market.TradeOffer, basePrice int) []*market.TradeOffer {
	remaining := c.ResourceSurplus()
	slog.Debug("moving surplus", "country", c.name, "surplus", remaining, "listings", len(buyers))

	bestBuyerPrice := 0
	if len(buyers) > 0 {
		bestBuyerPrice = buyers[0].UnitPrice()
	}

	for _, o := range buyers {
		if remaining <= 0 {
			break
		}
		o.Accept(c.name)
		remaining -= o.Quantity()
		slog.Info("accepted buy offer",
			"country", c.name,
			"buyer", o.Buyer(),
			"quantity", o.Quantity(),
			"unit_price", o.UnitPrice(),
		)
	}
	if remaining <= 0 {
		return nil
	}

	price := basePrice
	if bestBuyerPrice > 0 {
		price = max(basePrice, bestBuyerPrice-1)
	}

	offer, err := market.NewOffer(market.Sell, remaining, price, c.name)
	if err != nil {
		slog.Warn("discarding sell offer", "country", c.name, "error", err)
		return nil
	}
	slog.Debug("posting sell offer", "country", c.name, "quantity", remaining, "unit_price", price)
	return []*market.TradeOffer{offer}
}
