package store

import (
	"context"
	"errors"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/client"
)

var ErrEmptyCart = errors.New("store: cart is empty")

// Checkout places the cart as an order and clears the cart once the
// server accepts it. A rejected order leaves the cart untouched.
func (a *App) Checkout(ctx context.Context, api *client.Client, addr models.ShippingAddress) (*models.Order, error) {
	lines := a.Cart().OrderLines()
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}
	order, err := api.PlaceOrder(ctx, services.PlaceOrderInput{Items: lines, ShippingAddress: addr})
	if err != nil {
		return nil, err
	}
	return order, a.Cart().Clear()
}
