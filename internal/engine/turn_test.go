package engine

import (
	"errors"
	"reflect"
	"testing"

	"github.com/bruno7317/cloudweave-sim/internal/country"
	"github.com/bruno7317/cloudweave-sim/internal/market"
)

func testRoster(t *testing.T) []*country.Country {
	t.Helper()
	return []*country.Country{
		country.New(country.Options{Name: "Canada", Stockpile: 10, MoneyReserves: 100, ProductionRate: 3, ConsumptionRate: 1}),
		country.New(country.Options{Name: "USA", Stockpile: 2, MoneyReserves: 100, ProductionRate: 1, ConsumptionRate: 4}),
	}
}

func newTestManager(t *testing.T, clearing ClearingMode) (*TurnManager, []*country.Country) {
	t.Helper()
	roster := testRoster(t)
	tm := NewTurnManager(roster, market.NewBook(), TurnConfig{
		Resource: "oil",
		OfferTTL: 3,
		Clearing: clearing,
	})
	return tm, roster
}

func mustOffer(t *testing.T, side market.Side, quantity, unitPrice int, author string) *market.TradeOffer {
	t.Helper()
	o, err := market.NewOffer(side, quantity, unitPrice, author)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestPerformTurnScenario(t *testing.T) {
	tm, roster := newTestManager(t, ClearDirect)
	canada, usa := roster[0], roster[1]

	events := tm.PerformTurn()

	want := []Event{
		{Turn: 1, Actor: "Canada", Action: ActionProduce, Resource: "oil", Quantity: 3},
		{Turn: 1, Actor: "Canada", Action: ActionConsume, Resource: "oil", Quantity: 1},
		{Turn: 1, Actor: "USA", Action: ActionProduce, Resource: "oil", Quantity: 1},
		{Turn: 1, Actor: "USA", Action: ActionConsume, Resource: "oil", Quantity: 3},
		{Turn: 1, Actor: "USA", Action: ActionBuy, Resource: "oil", Quantity: 11, UnitPrice: 8, Counterparty: "Canada"},
		{Turn: 1, Actor: "Canada", Action: ActionSell, Resource: "oil", Quantity: 11, UnitPrice: 8, Counterparty: "USA"},
	}
	if !reflect.DeepEqual(events, want) {
		t.Errorf("event log mismatch:\ngot  %+v\nwant %+v", events, want)
	}

	// Canada sold its 11-unit surplus at 8; the four-way transfer moved 88
	// money against 11 units.
	if canada.Stockpile() != 1 || canada.MoneyReserves() != 188 {
		t.Errorf("Canada = %d units / %d money, want 1 / 188", canada.Stockpile(), canada.MoneyReserves())
	}
	if usa.Stockpile() != 11 || usa.MoneyReserves() != 12 {
		t.Errorf("USA = %d units / %d money, want 11 / 12", usa.Stockpile(), usa.MoneyReserves())
	}
	if usa.Instability() != 1 {
		t.Errorf("USA instability = %d, want 1 (shortage before trading)", usa.Instability())
	}
	if tm.Book().Len() != 0 {
		t.Errorf("book holds %d offers after settlement, want 0", tm.Book().Len())
	}
}

func TestPerformTurnIsDeterministic(t *testing.T) {
	const turns = 5

	run := func() ([]Event, []country.Snapshot) {
		tm, roster := newTestManager(t, ClearDirect)
		var log []Event
		for i := 0; i < turns; i++ {
			log = append(log, tm.PerformTurn()...)
		}
		snaps := make([]country.Snapshot, len(roster))
		for i, c := range roster {
			snaps[i] = c.Snapshot()
		}
		return log, snaps
	}

	log1, snaps1 := run()
	log2, snaps2 := run()

	if !reflect.DeepEqual(log1, log2) {
		t.Error("identical runs produced different event logs")
	}
	if !reflect.DeepEqual(snaps1, snaps2) {
		t.Error("identical runs produced different final states")
	}
}

func TestTurnCounterAdvances(t *testing.T) {
	tm, _ := newTestManager(t, ClearDirect)
	for i := 1; i <= 4; i++ {
		tm.PerformTurn()
		if tm.Turn() != i {
			t.Fatalf("turn = %d after %d turns", tm.Turn(), i)
		}
	}
}

func TestProcessTradeRequiresCounterparty(t *testing.T) {
	tm, _ := newTestManager(t, ClearDirect)
	offer := mustOffer(t, market.Sell, 5, 3, "Canada")

	if _, err := tm.processTrade(offer); !errors.Is(err, ErrUnsettleableOffer) {
		t.Errorf("processTrade on a half-open offer = %v, want ErrUnsettleableOffer", err)
	}
}

func TestProcessTradeUnknownCountry(t *testing.T) {
	tm, _ := newTestManager(t, ClearDirect)
	offer := mustOffer(t, market.Sell, 5, 3, "Atlantis")
	offer.Accept("USA")

	if _, err := tm.processTrade(offer); !errors.Is(err, ErrCountryNotFound) {
		t.Errorf("processTrade = %v, want ErrCountryNotFound", err)
	}
}

func TestTransferIsAllOrNothing(t *testing.T) {
	roster := []*country.Country{
		country.New(country.Options{Name: "Canada", Stockpile: 1, MoneyReserves: 100}),
		country.New(country.Options{Name: "USA", Stockpile: 0, MoneyReserves: 100}),
	}
	tm := NewTurnManager(roster, market.NewBook(), TurnConfig{})

	// Canada cannot cover 5 units; no leg of the transfer may run.
	offer := mustOffer(t, market.Sell, 5, 3, "Canada")
	offer.Accept("USA")
	_, err := tm.processTrade(offer)
	if !errors.Is(err, country.ErrInsufficientResource) {
		t.Fatalf("processTrade = %v, want ErrInsufficientResource", err)
	}

	canada, usa := roster[0], roster[1]
	if canada.Stockpile() != 1 || canada.MoneyReserves() != 100 {
		t.Errorf("Canada mutated by a failed trade: %d units / %d money", canada.Stockpile(), canada.MoneyReserves())
	}
	if usa.Stockpile() != 0 || usa.MoneyReserves() != 100 {
		t.Errorf("USA mutated by a failed trade: %d units / %d money", usa.Stockpile(), usa.MoneyReserves())
	}
}

func TestTransferFourWay(t *testing.T) {
	roster := []*country.Country{
		country.New(country.Options{Name: "Canada", Stockpile: 20, MoneyReserves: 50}),
		country.New(country.Options{Name: "USA", Stockpile: 0, MoneyReserves: 10}),
	}
	tm := NewTurnManager(roster, market.NewBook(), TurnConfig{})

	events, err := tm.transfer("USA", "Canada", 6, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 2 {
		t.Fatalf("got %d events, want a buy and a sell", len(events))
	}

	canada, usa := roster[0], roster[1]
	if canada.Stockpile() != 14 || canada.MoneyReserves() != 74 {
		t.Errorf("Canada = %d units / %d money, want 14 / 74", canada.Stockpile(), canada.MoneyReserves())
	}
	// The buyer overdraws: 10 - 24 = -14, a line of credit.
	if usa.Stockpile() != 6 || usa.MoneyReserves() != -14 {
		t.Errorf("USA = %d units / %d money, want 6 / -14", usa.Stockpile(), usa.MoneyReserves())
	}
}

func TestBookClearingSettlesFills(t *testing.T) {
	roster := []*country.Country{
		country.New(country.Options{Name: "Canada", Stockpile: 20, MoneyReserves: 0}),
		country.New(country.Options{Name: "USA", Stockpile: 0, MoneyReserves: 100}),
	}
	tm := NewTurnManager(roster, market.NewBook(), TurnConfig{Clearing: ClearBook})

	tm.book.AddOffer(mustOffer(t, market.Sell, 5, 8, "Canada"))
	tm.book.AddOffer(mustOffer(t, market.Buy, 5, 10, "USA"))

	events := tm.clearBook()
	if len(events) != 2 {
		t.Fatalf("got %d events, want 2 from one settled fill", len(events))
	}

	canada, usa := roster[0], roster[1]
	if canada.Stockpile() != 15 || canada.MoneyReserves() != 40 {
		t.Errorf("Canada = %d units / %d money, want 15 / 40 (filled at the ask)", canada.Stockpile(), canada.MoneyReserves())
	}
	if usa.Stockpile() != 5 || usa.MoneyReserves() != 60 {
		t.Errorf("USA = %d units / %d money, want 5 / 60", usa.Stockpile(), usa.MoneyReserves())
	}
}

func TestBookModeBlocksDirectAccepts(t *testing.T) {
	tm, _ := newTestManager(t, ClearBook)

	tm.PerformTurn()

	// In book mode agents see no listings, so Canada's sell and USA's buy
	// both rest at their fallback prices, which do not cross this turn.
	offers := tm.Book().Offers()
	if len(offers) != 2 {
		t.Fatalf("book holds %d offers, want 2 resting fallback offers", len(offers))
	}
	for _, o := range offers {
		if o.IsReadyToProcess() {
			t.Errorf("offer by %s gained a counterparty in book mode", o.Author())
		}
	}
}

func TestCountryByName(t *testing.T) {
	tm, roster := newTestManager(t, ClearDirect)

	got, err := tm.CountryByName("Canada")
	if err != nil || got != roster[0] {
		t.Errorf("CountryByName(Canada) = %v, %v", got, err)
	}
	if _, err := tm.CountryByName("Atlantis"); !errors.Is(err, ErrCountryNotFound) {
		t.Errorf("CountryByName(Atlantis) = %v, want ErrCountryNotFound", err)
	}
}
