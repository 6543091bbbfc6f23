package store

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
)

// ErrOutOfStock rejects adding a product whose last-known stock is zero.
var ErrOutOfStock = errors.New("store: product is out of stock")

// Cart is the cart view of an App. Quantities never exceed the stock
// recorded on the line's product snapshot.
type Cart struct{ app *App }

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []CartLine {
	var out []CartLine
	c.app.read(func(st *snapshot) { out = append([]CartLine(nil), st.Cart...) })
	return out
}

// Add puts quantity of p in the cart, merging with an existing line. The
// snapshot is refreshed from p.
func (c *Cart) Add(p models.Product, quantity int) error {
	if p.Stock <= 0 {
		return ErrOutOfStock
	}
	if quantity < 1 {
		quantity = 1
	}
	return c.app.update(CartChanged, func(st *snapshot) error {
		for i := range st.Cart {
			if st.Cart[i].Product.ID == p.ID {
				st.Cart[i].Product = p
				st.Cart[i].Quantity = min(st.Cart[i].Quantity+quantity, p.Stock)
				return nil
			}
		}
		st.Cart = append(st.Cart, CartLine{Product: p, Quantity: min(quantity, p.Stock)})
		return nil
	})
}

// SetQuantity changes a line's quantity; zero or less removes it.
func (c *Cart) SetQuantity(productID string, quantity int) error {
	if quantity <= 0 {
		return c.Remove(productID)
	}
	return c.app.update(CartChanged, func(st *snapshot) error {
		for i := range st.Cart {
			if st.Cart[i].Product.ID.Hex() == productID {
				st.Cart[i].Quantity = min(quantity, st.Cart[i].Product.Stock)
			}
		}
		return nil
	})
}

func (c *Cart) Remove(productID string) error {
	return c.app.update(CartChanged, func(st *snapshot) error {
		kept := st.Cart[:0]
		for _, line := range st.Cart {
			if line.Product.ID.Hex() != productID {
				kept = append(kept, line)
			}
		}
		st.Cart = kept
		return nil
	})
}

func (c *Cart) Clear() error {
	return c.app.update(CartChanged, func(st *snapshot) error {
		st.Cart = nil
		return nil
	})
}

// TotalItems is the sum of quantities.
func (c *Cart) TotalItems() int {
	n := 0
	c.app.read(func(st *snapshot) {
		for _, line := range st.Cart {
			n += line.Quantity
		}
	})
	return n
}

// TotalPrice is the sum of snapshot price times quantity.
func (c *Cart) TotalPrice() decimal.Decimal {
	total := decimal.Zero
	c.app.read(func(st *snapshot) {
		for _, line := range st.Cart {
			total = total.Add(decimal.NewFromFloat(line.Product.Price).Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
	})
	return total
}

// OrderLines converts the cart into a checkout payload.
func (c *Cart) OrderLines() []services.OrderLineInput {
	items := c.Items()
	out := make([]services.OrderLineInput, len(items))
	for i, line := range items {
		out[i] = services.OrderLineInput{Product: line.Product.ID.Hex(), Quantity: line.Quantity}
	}
	return out
}
