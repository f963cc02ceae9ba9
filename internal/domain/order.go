package domain

import "time"

// Side indicates which claim asset an order trades.
type Side string

const (
	SideYes Side = "yes"
	SideNo  Side = "no"
)

// Valid reports whether s is a recognized side.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// Order is a resting limit sell in a market's order book. Quantity is the
// remaining unfilled amount; the backing claim tokens sit escrowed in the
// book's side-vault until the order fills or is removed.
type Order struct {
	ID            uint64
	Owner         string
	PayoutAccount AccountID // receives collateral when the order fills
	Price         uint64    // scaled integer, see the price package
	Quantity      uint64
	Side          Side
}

// Fill records one match between a buy request and a resting order.
type Fill struct {
	MarketID  string
	OrderID   uint64
	Side      Side
	Price     uint64
	Quantity  uint64
	Cost      uint64 // collateral paid for this fill
	Buyer     string
	Seller    string
	CreatedAt time.Time
}

// BookSnapshot is a read-only view of an order book. Order position is
// positional, not chronological: removals swap the last order into the freed
// slot, so iteration order carries no placement-time meaning.
type BookSnapshot struct {
	MarketID    string
	NextOrderID uint64
	Capacity    int
	Orders      []Order
	YesVault    AccountID
	NoVault     AccountID
	EscrowedYes uint64
	EscrowedNo  uint64
	Timestamp   time.Time
}

// SideQuantity sums the resident quantity on one side of the book.
func (s BookSnapshot) SideQuantity(side Side) uint64 {
	var total uint64
	for _, o := range s.Orders {
		if o.Side == side {
			total += o.Quantity
		}
	}
	return total
}
