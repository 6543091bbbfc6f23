package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/config"
	"github.com/shashiranjanraj/storefront/pkg/event"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/rbac"
)

// EventOrderPlaced fires with a models.Order after a checkout is persisted.
const EventOrderPlaced = "order.placed"

type OrderLineInput struct {
	Product  string `json:"product"  validate:"required,objectid" msg:"Valid product id is required"`
	Quantity int    `json:"quantity" validate:"required,gte=1"    msg:"Quantity must be at least 1"`
}

type PlaceOrderInput struct {
	Items           []OrderLineInput       `json:"items"           validate:"required,min=1,dive" msg:"Order must have at least one item"`
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
}

type OrderService struct {
	products repositories.ProductRepository
	orders   repositories.OrderRepository
	users    repositories.UserRepository
	catalog  *CatalogService
	events   *event.Bus
	policy   string
}

// NewOrderService wires checkout. catalog and events may be nil. policy is
// config.StockPolicyCompensate or config.StockPolicyNone; anything else
// behaves as none.
func NewOrderService(store *repositories.Store, catalog *CatalogService, events *event.Bus, policy string) *OrderService {
	return &OrderService{
		products: store.Products,
		orders:   store.Orders,
		users:    store.Users,
		catalog:  catalog,
		events:   events,
		policy:   policy,
	}
}

const orderIDAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewOrderID returns ORD-<unix millis>-<4 uppercase alphanumerics>.
func NewOrderID(now time.Time) string {
	suffix := make([]byte, 4)
	size := big.NewInt(int64(len(orderIDAlphabet)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, size)
		if err != nil {
			n = big.NewInt(now.UnixNano() % int64(len(orderIDAlphabet)))
		}
		suffix[i] = orderIDAlphabet[n.Int64()]
	}
	return fmt.Sprintf("ORD-%d-%s", now.UnixMilli(), suffix)
}

// Place checks every line against live stock, snapshots it and takes the
// stock with a conditional decrement, then persists the order as Pending.
//
// Lines are processed in order. When a later line or the final insert
// fails, earlier decrements stay taken under the none policy; the
// compensate policy restores them.
func (s *OrderService) Place(ctx context.Context, userID string, in PlaceOrderInput) (*models.Order, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, ErrUserNotFound
	}
	log := logger.WithCtx(ctx)

	var taken []models.OrderItem
	fail := func(err error) (*models.Order, error) {
		reason := "persist"
		var oe *OrderError
		if errors.As(err, &oe) {
			reason = oe.Reason
		}
		metrics.OrderRejections.WithLabelValues(reason).Inc()
		if len(taken) == 0 {
			return nil, err
		}
		if s.policy == config.StockPolicyCompensate {
			s.restore(ctx, taken)
		} else {
			log.Warn("order rejected after partial stock decrement", "lines_decremented", len(taken), "error", err)
		}
		// stock moved either way, so cached product reads are stale
		if s.catalog != nil {
			s.catalog.Invalidate(context.WithoutCancel(ctx))
		}
		return nil, err
	}

	items := make([]models.OrderItem, 0, len(in.Items))
	total := decimal.Zero
	for _, line := range in.Items {
		pid, err := primitive.ObjectIDFromHex(line.Product)
		if err != nil {
			return fail(productMissing(line.Product))
		}
		p, err := s.products.FindByID(ctx, pid, false)
		if errors.Is(err, repositories.ErrNotFound) {
			return fail(productMissing(line.Product))
		}
		if err != nil {
			return fail(err)
		}
		if p.Stock < line.Quantity {
			return fail(outOfStock(p.Name, p.Stock))
		}

		item := models.OrderItem{
			Product:  p.ID,
			Name:     p.Name,
			Price:    p.Price,
			Quantity: line.Quantity,
			Image:    p.FirstImage(),
		}
		total = total.Add(decimal.NewFromFloat(p.Price).Mul(decimal.NewFromInt(int64(line.Quantity))))

		if err := s.products.DecrementStock(ctx, p.ID, line.Quantity); err != nil {
			if !errors.Is(err, repositories.ErrInsufficientStock) {
				return fail(err)
			}
			// another checkout took the stock between the read and the write
			available := 0
			if fresh, ferr := s.products.FindByID(ctx, p.ID, false); ferr == nil {
				available = fresh.Stock
			}
			return fail(outOfStock(p.Name, available))
		}
		taken = append(taken, item)
		items = append(items, item)
	}

	order := &models.Order{
		UserID:          uid,
		Items:           items,
		ShippingAddress: in.ShippingAddress,
		TotalAmount:     total.InexactFloat64(),
		Status:          models.StatusPending,
		AdminNotes:      []models.AdminNote{},
	}
	for attempt := 0; ; attempt++ {
		order.OrderID = NewOrderID(time.Now())
		err = s.orders.Create(ctx, order)
		if !errors.Is(err, repositories.ErrDuplicate) || attempt == 2 {
			break
		}
	}
	if err != nil {
		return fail(fmt.Errorf("orders: persist: %w", err))
	}

	metrics.OrdersPlaced.Inc()
	if s.catalog != nil {
		s.catalog.Invalidate(ctx)
	}
	populate(ctx, s.users, []*models.Order{order})
	log.Info("order placed", "order_id", order.OrderID, "items", len(items), "total", order.TotalAmount)

	if s.events != nil {
		s.events.FireAsync(EventOrderPlaced, *order)
	}
	return order, nil
}

func (s *OrderService) restore(ctx context.Context, taken []models.OrderItem) {
	// the request may already be cancelled; compensation must still run
	ctx = context.WithoutCancel(ctx)
	for _, item := range taken {
		if err := s.products.IncrementStock(ctx, item.Product, item.Quantity); err != nil {
			logger.WithCtx(ctx).Error("stock compensation failed",
				"product", item.Product.Hex(), "quantity", item.Quantity, "error", err)
			continue
		}
		metrics.StockCompensations.Inc()
	}
}

// ListMine returns the caller's orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, userID string) ([]models.Order, error) {
	uid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return []models.Order{}, nil
	}
	return s.orders.ListByUser(ctx, uid)
}

// Get returns one order to its owner or to a subject allowed to view any
// order.
func (s *OrderService) Get(ctx context.Context, subject *rbac.Subject, id string) (*models.Order, error) {
	o, err := findOrder(ctx, s.orders, id)
	if err != nil {
		return nil, err
	}
	if o.UserID.Hex() != subject.ID && !subject.Can(rbac.ViewAnyOrder) {
		return nil, ErrForbidden
	}
	populate(ctx, s.users, []*models.Order{o})
	return o, nil
}

func findOrder(ctx context.Context, orders repositories.OrderRepository, id string) (*models.Order, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	o, err := orders.FindByID(ctx, oid)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	return o, nil
}

// populate fills Customer on each order. Missing users leave it nil.
func populate(ctx context.Context, users repositories.UserRepository, orders []*models.Order) {
	if len(orders) == 0 {
		return
	}
	seen := make(map[primitive.ObjectID]bool, len(orders))
	ids := make([]primitive.ObjectID, 0, len(orders))
	for _, o := range orders {
		if !seen[o.UserID] {
			seen[o.UserID] = true
			ids = append(ids, o.UserID)
		}
	}
	found, err := users.FindByIDs(ctx, ids)
	if err != nil {
		logger.WithCtx(ctx).Warn("populate order customers failed", "error", err)
		return
	}
	for _, o := range orders {
		if u, ok := found[o.UserID]; ok {
			o.Customer = u.Customer()
		}
	}
}

func refs(orders []models.Order) []*models.Order {
	out := make([]*models.Order, len(orders))
	for i := range orders {
		out[i] = &orders[i]
	}
	return out
}
