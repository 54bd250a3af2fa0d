// Package market provides the order book and price discovery for a single
// fungible commodity traded between countries.
package market

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Side says whether an offer wants to buy or sell the commodity.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// ErrInvalidOffer is returned when an offer is created with a non-positive
// quantity or unit price.
var ErrInvalidOffer = errors.New("invalid offer")

// TradeOffer is a standing intent to buy or sell a fixed quantity at a fixed
// unit price. Side, unit price and author never change after creation.
// Quantity shrinks on partial fills, and the missing half of the buyer/seller
// pair is filled in by Accept once a counterparty takes the offer.
type TradeOffer struct {
	id          uuid.UUID
	side        Side
	quantity    int
	unitPrice   int
	buyer       string
	seller      string
	createdTurn int
	ttl         int
}

// NewOffer creates an open offer authored by the given country.
func NewOffer(side Side, quantity, unitPrice int, author string) (*TradeOffer, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("%w: quantity %d", ErrInvalidOffer, quantity)
	}
	if unitPrice <= 0 {
		return nil, fmt.Errorf("%w: unit price %d", ErrInvalidOffer, unitPrice)
	}

	o := &TradeOffer{
		id:        uuid.New(),
		side:      side,
		quantity:  quantity,
		unitPrice: unitPrice,
	}
	if side == Buy {
		o.buyer = author
	} else {
		o.seller = author
	}
	return o, nil
}

// ID returns the offer's unique identity, used for removal by reference.
func (o *TradeOffer) ID() uuid.UUID { return o.id }

// Side returns whether this is a buy or a sell offer.
func (o *TradeOffer) Side() Side { return o.side }

// Quantity returns the units still open on this offer.
func (o *TradeOffer) Quantity() int { return o.quantity }

// UnitPrice returns the price per unit.
func (o *TradeOffer) UnitPrice() int { return o.unitPrice }

// Buyer returns the buying country's name, or "" if no buyer yet.
func (o *TradeOffer) Buyer() string { return o.buyer }

// Seller returns the selling country's name, or "" if no seller yet.
func (o *TradeOffer) Seller() string { return o.seller }

// CreatedTurn returns the turn the offer was posted on.
func (o *TradeOffer) CreatedTurn() int { return o.createdTurn }

// Author returns the country that created the offer.
func (o *TradeOffer) Author() string {
	if o.side == Buy {
		return o.buyer
	}
	return o.seller
}

// Accept fills in the missing half of the buyer/seller pair. Accepting an
// already-accepted offer overwrites the previous counterparty.
func (o *TradeOffer) Accept(counterparty string) {
	if o.side == Buy {
		o.seller = counterparty
	} else {
		o.buyer = counterparty
	}
}

// IsReadyToProcess reports whether both sides of the pair are set, which
// makes the offer settleable exactly once.
func (o *TradeOffer) IsReadyToProcess() bool {
	return o.buyer != "" && o.seller != ""
}

// Stamp records the turn the offer entered the market and how many turns it
// stays valid for.
func (o *TradeOffer) Stamp(turn, ttl int) {
	o.createdTurn = turn
	o.ttl = ttl
}

// IsExpired reports whether the offer's age reached its TTL. Offers that
// were never stamped do not expire.
func (o *TradeOffer) IsExpired(currentTurn int) bool {
	return o.ttl > 0 && currentTurn-o.createdTurn >= o.ttl
}

// TotalCost returns the money that changes hands when the offer settles in
// full.
func (o *TradeOffer) TotalCost() int {
	return o.quantity * o.unitPrice
}

// OfferView is the externally visible state of an offer.
type OfferView struct {
	ID          string `json:"id"`
	Side        Side   `json:"side"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int    `json:"unit_price"`
	Author      string `json:"author"`
	Buyer       string `json:"buyer,omitempty"`
	Seller      string `json:"seller,omitempty"`
	CreatedTurn int    `json:"created_turn"`
}

// View returns a serializable snapshot of the offer.
func (o *TradeOffer) View() OfferView {
	return OfferView{
		ID:          o.id.String(),
		Side:        o.side,
		Quantity:    o.quantity,
		UnitPrice:   o.unitPrice,
		Author:      o.Author(),
		Buyer:       o.buyer,
		Seller:      o.seller,
		CreatedTurn: o.createdTurn,
	}
}
