package controllers

import (
	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/ctx"
)

type OrderController struct {
	orders *services.OrderService
}

func NewOrderController(orders *services.OrderService) *OrderController {
	return &OrderController{orders: orders}
}

// Store  POST /api/orders
func (h *OrderController) Store(c *ctx.Context) {
	var in services.PlaceOrderInput
	if !c.BindJSON(&in) {
		return
	}
	order, err := h.orders.Place(c.Context(), c.Subject().ID, in)
	if err != nil {
		abort(c, err, "Server error creating order")
		return
	}
	c.Created("Order placed successfully", M{"order": order})
}

// Index  GET /api/orders
func (h *OrderController) Index(c *ctx.Context) {
	orders, err := h.orders.ListMine(c.Context(), c.Subject().ID)
	if err != nil {
		abort(c, err, "Server error fetching orders")
		return
	}
	c.Success(M{"orders": orders})
}

// Show  GET /api/orders/{id}
func (h *OrderController) Show(c *ctx.Context) {
	order, err := h.orders.Get(c.Context(), c.Subject(), c.Param("id"))
	if err != nil {
		abort(c, err, "Server error fetching order")
		return
	}
	c.Success(M{"order": order})
}
