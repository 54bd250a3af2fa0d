// Order book — open offer storage, reference pricing, expiry and the
// book-wide clearing pass.
package market

import (
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"
)

// Account is the read-only balance-sheet view price discovery reads. It is
// satisfied by the country type without the book ever holding country state.
type Account interface {
	Stockpile() int
	MoneyReserves() int
}

// Book holds the set of open trade offers.
type Book struct {
	offers []*TradeOffer
}

// NewBook creates an empty order book.
func NewBook() *Book {
	return &Book{}
}

// Len returns the number of open offers.
func (b *Book) Len() int {
	return len(b.offers)
}

// AddOffer inserts an offer into the book, replacing any open offer from the
// same author on the same side. Offers with non-positive quantity or price
// are rejected and never stored.
func (b *Book) AddOffer(offer *TradeOffer) {
	if offer == nil {
		return
	}
	if offer.quantity <= 0 || offer.unitPrice <= 0 {
		slog.Warn("rejecting invalid offer",
			"author", offer.Author(),
			"side", offer.side,
			"quantity", offer.quantity,
			"unit_price", offer.unitPrice,
		)
		return
	}

	for i, o := range b.offers {
		if o.Author() == offer.Author() && o.side == offer.side {
			slog.Debug("replacing open offer", "author", offer.Author(), "side", offer.side)
			b.offers = append(b.offers[:i], b.offers[i+1:]...)
			break
		}
	}

	b.offers = append(b.offers, offer)
	slog.Debug("offer added",
		"author", offer.Author(),
		"side", offer.side,
		"quantity", offer.quantity,
		"unit_price", offer.unitPrice,
	)
}

// Offers returns a snapshot of the open offers in insertion order.
func (b *Book) Offers() []*TradeOffer {
	out := make([]*TradeOffer, len(b.offers))
	copy(out, b.offers)
	return out
}

// RemoveExpired drops every offer whose age reached its TTL and returns how
// many were dropped.
func (b *Book) RemoveExpired(currentTurn int) int {
	kept := b.offers[:0]
	removed := 0
	for _, o := range b.offers {
		if o.IsExpired(currentTurn) {
			removed++
			slog.Debug("offer expired",
				"author", o.Author(),
				"side", o.side,
				"created_turn", o.createdTurn,
				"turn", currentTurn,
			)
			continue
		}
		kept = append(kept, o)
	}
	b.offers = kept
	return removed
}

// RemoveOffers bulk-removes offers by identity. Offers not present in the
// book are ignored.
func (b *Book) RemoveOffers(offers []*TradeOffer) {
	if len(offers) == 0 {
		return
	}
	drop := make(map[uuid.UUID]struct{}, len(offers))
	for _, o := range offers {
		drop[o.id] = struct{}{}
	}
	kept := b.offers[:0]
	for _, o := range b.offers {
		if _, gone := drop[o.id]; gone {
			continue
		}
		kept = append(kept, o)
	}
	b.offers = kept
}

// BasePrice computes the advisory reference price from aggregate country
// state: the average effective money per country divided by the total
// stockpile, floored at 1. Negative reserves count as zero so debt never
// pulls the price down, and an empty world prices at 1 rather than dividing
// by zero. The price seeds agents' fallback offers; it is not a clearing
// mechanism.
func (b *Book) BasePrice(accounts []Account) int {
	if len(accounts) == 0 {
		return 1
	}

	totalStockpile := 0
	totalMoney := 0.0
	for _, a := range accounts {
		totalStockpile += a.Stockpile()
		if m := a.MoneyReserves(); m > 0 {
			totalMoney += float64(m)
		}
	}
	if totalStockpile <= 0 {
		return 1
	}

	avgMoney := totalMoney / float64(len(accounts))
	price := int(math.Round(avgMoney / float64(totalStockpile)))
	if price < 1 {
		price = 1
	}
	return price
}

// Fill records one price-crossed match produced by the clearing pass.
type Fill struct {
	Buyer     string
	Seller    string
	Quantity  int
	UnitPrice int
}

// Match runs the book-wide clearing pass: buys richest-first against sells
// cheapest-first, trading min(buy, sell) whenever the buy price covers the
// sell price. Same-author pairs never match. Quantities are decremented on
// both sides, filled offers are purged, and the resulting fills are returned
// for the orchestrator to settle. Must not run in the same simulation as
// agent-driven direct settlement.
func (b *Book) Match() []Fill {
	var buys, sells []*TradeOffer
	for _, o := range b.offers {
		switch o.side {
		case Buy:
			buys = append(buys, o)
		case Sell:
			sells = append(sells, o)
		}
	}
	sort.Slice(buys, func(i, j int) bool { return buys[i].unitPrice > buys[j].unitPrice })
	sort.Slice(sells, func(i, j int) bool { return sells[i].unitPrice < sells[j].unitPrice })

	var fills []Fill
	for _, buy := range buys {
		for _, sell := range sells {
			if buy.quantity <= 0 {
				break
			}
			if sell.quantity <= 0 || buy.buyer == sell.seller {
				continue
			}
			if buy.unitPrice < sell.unitPrice {
				// Sells are sorted ascending: nothing further can cross.
				break
			}

			traded := min(buy.quantity, sell.quantity)
			buy.quantity -= traded
			sell.quantity -= traded
			fills = append(fills, Fill{
				Buyer:     buy.buyer,
				Seller:    sell.seller,
				Quantity:  traded,
				UnitPrice: sell.unitPrice,
			})
			slog.Debug("offers crossed",
				"buyer", buy.buyer,
				"seller", sell.seller,
				"quantity", traded,
				"unit_price", sell.unitPrice,
			)
		}
	}

	kept := b.offers[:0]
	for _, o := range b.offers {
		if o.quantity > 0 {
			kept = append(kept, o)
		}
	}
	b.offers = kept

	return fills
}
