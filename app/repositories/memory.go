package repositories

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/pkg/collection"
)

// NewMemoryStore returns a process-local backend used by tests and by
// DB_DRIVER=memory. Every read returns copies.
func NewMemoryStore() *Store {
	m := &memory{}
	return &Store{
		Users:    &memoryUsers{m},
		Products: &memoryProducts{m},
		Orders:   &memoryOrders{m},
		Driver:   "memory",
		Ping:     func(context.Context) error { return nil },
		Close:    func(context.Context) error { return nil },
	}
}

type memory struct {
	mu       sync.RWMutex
	users    []models.User
	products []models.Product
	orders   []models.Order
}

// stamp returns a creation time strictly after every earlier one so that
// newest-first ordering is deterministic.
func stamp(last time.Time) time.Time {
	now := time.Now().UTC()
	if !now.After(last) {
		now = last.Add(time.Microsecond)
	}
	return now
}

// newestFirst reverses insertion order, then sorts by CreatedAt descending.
func newestFirst[T any](s []T, created func(T) time.Time) []T {
	out := make([]T, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return collection.SortBy(out, func(a, b T) bool { return created(a).After(created(b)) })
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

// ── users ────────────────────────────────────────────────────────────────

type memoryUsers struct{ m *memory }

func cloneUser(u models.User) *models.User {
	u.ShippingAddresses = append([]models.ShippingAddress(nil), u.ShippingAddresses...)
	return &u
}

func (r *memoryUsers) Create(_ context.Context, u *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	email := strings.ToLower(u.Email)
	if _, ok := collection.First(r.m.users, func(x models.User) bool { return x.Email == email }); ok {
		return ErrDuplicate
	}
	var last time.Time
	if n := len(r.m.users); n > 0 {
		last = r.m.users[n-1].CreatedAt
	}
	u.ID = primitive.NewObjectID()
	u.Email = email
	u.CreatedAt = stamp(last)
	u.UpdatedAt = u.CreatedAt
	r.m.users = append(r.m.users, *cloneUser(*u))
	return nil
}

func (r *memoryUsers) find(match func(models.User) bool) (*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	u, ok := collection.First(r.m.users, match)
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *memoryUsers) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.ID == id })
}

func (r *memoryUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.find(func(u models.User) bool { return u.Email == email })
}

func (r *memoryUsers) FindByIDs(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	byID := collection.KeyBy(r.m.users, func(u models.User) primitive.ObjectID { return u.ID })
	out := make(map[primitive.ObjectID]*models.User, len(ids))
	for _, id := range ids {
		if u, ok := byID[id]; ok {
			out[id] = cloneUser(u)
		}
	}
	return out, nil
}

func (r *memoryUsers) Update(_ context.Context, u *models.User) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := range r.m.users {
		if r.m.users[i].ID == u.ID {
			u.UpdatedAt = time.Now().UTC()
			r.m.users[i] = *cloneUser(*u)
			return nil
		}
	}
	return ErrNotFound
}

// ── products ─────────────────────────────────────────────────────────────

type memoryProducts struct{ m *memory }

func cloneProduct(p models.Product) models.Product {
	p.Images = append([]string(nil), p.Images...)
	return p
}

func (r *memoryProducts) Create(_ context.Context, p *models.Product) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := collection.First(r.m.products, func(x models.Product) bool { return x.Slug == p.Slug }); ok {
		return ErrDuplicate
	}
	var last time.Time
	if n := len(r.m.products); n > 0 {
		last = r.m.products[n-1].CreatedAt
	}
	p.ID = primitive.NewObjectID()
	p.CreatedAt = stamp(last)
	p.UpdatedAt = p.CreatedAt
	r.m.products = append(r.m.products, cloneProduct(*p))
	return nil
}

func (r *memoryProducts) find(includeDeleted bool, match func(models.Product) bool) (*models.Product, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	p, ok := collection.First(r.m.products, func(p models.Product) bool {
		return (includeDeleted || !p.IsDeleted) && match(p)
	})
	if !ok {
		return nil, ErrNotFound
	}
	c := cloneProduct(p)
	return &c, nil
}

func (r *memoryProducts) FindByID(_ context.Context, id primitive.ObjectID, includeDeleted bool) (*models.Product, error) {
	return r.find(includeDeleted, func(p models.Product) bool { return p.ID == id })
}

func (r *memoryProducts) FindBySlug(_ context.Context, slug string, includeDeleted bool) (*models.Product, error) {
	return r.find(includeDeleted, func(p models.Product) bool { return p.Slug == slug })
}

func matchProduct(f models.ProductFilter) func(models.Product) bool {
	return func(p models.Product) bool {
		if !f.IncludeDeleted && p.IsDeleted {
			return false
		}
		if f.Category != "" && p.Category != f.Category {
			return false
		}
		if f.Search != "" {
			hit := containsFold(p.Name, f.Search) || containsFold(p.Description, f.Search)
			if f.MatchSlug {
				hit = hit || containsFold(p.Slug, f.Search)
			}
			if !hit {
				return false
			}
		}
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			return false
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			return false
		}
		return true
	}
}

func (r *memoryProducts) List(_ context.Context, f models.ProductFilter) ([]models.Product, int64, error) {
	r.m.mu.RLock()
	matched := collection.Filter(r.m.products, matchProduct(f))
	r.m.mu.RUnlock()

	matched = newestFirst(matched, func(p models.Product) time.Time { return p.CreatedAt })
	page := collection.Map(collection.Paginate(matched, f.Page, f.Limit), cloneProduct)
	return page, int64(len(matched)), nil
}

func (r *memoryProducts) update(id primitive.ObjectID, fn func(p *models.Product) error) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := range r.m.products {
		if r.m.products[i].ID == id {
			if err := fn(&r.m.products[i]); err != nil {
				return err
			}
			r.m.products[i].UpdatedAt = time.Now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

func (r *memoryProducts) Update(_ context.Context, p *models.Product) error {
	return r.update(p.ID, func(cur *models.Product) error {
		// r.m.mu is held by update.
		if _, taken := collection.First(r.m.products, func(x models.Product) bool {
			return x.Slug == p.Slug && x.ID != p.ID
		}); taken {
			return ErrDuplicate
		}
		created := cur.CreatedAt
		*cur = cloneProduct(*p)
		cur.CreatedAt = created
		return nil
	})
}

func (r *memoryProducts) SoftDelete(_ context.Context, id primitive.ObjectID) error {
	return r.update(id, func(p *models.Product) error {
		p.IsDeleted = true
		return nil
	})
}

func (r *memoryProducts) DecrementStock(_ context.Context, id primitive.ObjectID, qty int) error {
	err := r.update(id, func(p *models.Product) error {
		if p.IsDeleted || p.Stock < qty {
			return ErrInsufficientStock
		}
		p.Stock -= qty
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return ErrInsufficientStock
	}
	return err
}

func (r *memoryProducts) IncrementStock(_ context.Context, id primitive.ObjectID, qty int) error {
	return r.update(id, func(p *models.Product) error {
		p.Stock += qty
		return nil
	})
}

func (r *memoryProducts) CountActive(_ context.Context) (int64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return int64(len(collection.Filter(r.m.products, func(p models.Product) bool { return !p.IsDeleted }))), nil
}

func (r *memoryProducts) LowStock(_ context.Context, threshold int) ([]models.Product, error) {
	r.m.mu.RLock()
	low := collection.Filter(r.m.products, func(p models.Product) bool { return !p.IsDeleted && p.Stock <= threshold })
	r.m.mu.RUnlock()
	return collection.SortBy(collection.Map(low, cloneProduct), func(a, b models.Product) bool { return a.Stock < b.Stock }), nil
}

func (r *memoryProducts) Categories(_ context.Context) ([]models.Category, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	present := collection.CountBy(
		collection.Filter(r.m.products, func(p models.Product) bool { return !p.IsDeleted }),
		func(p models.Product) models.Category { return p.Category },
	)
	return collection.Filter(models.Categories, func(c models.Category) bool { return present[c] > 0 }), nil
}

// ── orders ───────────────────────────────────────────────────────────────

type memoryOrders struct{ m *memory }

func cloneOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem(nil), o.Items...)
	o.AdminNotes = append([]models.AdminNote(nil), o.AdminNotes...)
	o.Customer = nil
	return o
}

func orderCreated(o models.Order) time.Time { return o.CreatedAt }

func (r *memoryOrders) Create(_ context.Context, o *models.Order) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := collection.First(r.m.orders, func(x models.Order) bool { return x.OrderID == o.OrderID }); ok {
		return ErrDuplicate
	}
	var last time.Time
	if n := len(r.m.orders); n > 0 {
		last = r.m.orders[n-1].CreatedAt
	}
	o.ID = primitive.NewObjectID()
	o.CreatedAt = stamp(last)
	o.UpdatedAt = o.CreatedAt
	if o.AdminNotes == nil {
		o.AdminNotes = []models.AdminNote{}
	}
	r.m.orders = append(r.m.orders, cloneOrder(*o))
	return nil
}

func (r *memoryOrders) snapshot(match func(models.Order) bool) []models.Order {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()
	return collection.Map(collection.Filter(r.m.orders, match), cloneOrder)
}

func (r *memoryOrders) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	found := r.snapshot(func(o models.Order) bool { return o.ID == id })
	if len(found) == 0 {
		return nil, ErrNotFound
	}
	return &found[0], nil
}

func (r *memoryOrders) ListByUser(_ context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return newestFirst(r.snapshot(func(o models.Order) bool { return o.UserID == userID }), orderCreated), nil
}

func matchOrder(f models.OrderFilter) func(models.Order) bool {
	return func(o models.Order) bool {
		if f.Status != "" && o.Status != f.Status {
			return false
		}
		if f.Search != "" && !containsFold(o.OrderID, f.Search) {
			return false
		}
		if f.StartDate != nil && o.CreatedAt.Before(*f.StartDate) {
			return false
		}
		if f.EndDate != nil && o.CreatedAt.After(*f.EndDate) {
			return false
		}
		return true
	}
}

func (r *memoryOrders) List(_ context.Context, f models.OrderFilter) ([]models.Order, int64, error) {
	matched := newestFirst(r.snapshot(matchOrder(f)), orderCreated)
	return collection.Paginate(matched, f.Page, f.Limit), int64(len(matched)), nil
}

func (r *memoryOrders) Summary(_ context.Context, f models.OrderFilter) (models.OrderSummary, error) {
	matched := r.snapshot(matchOrder(f))
	return models.OrderSummary{
		TotalRevenue: collection.Sum(matched, func(o models.Order) float64 { return o.TotalAmount }),
		TotalOrders:  int64(len(matched)),
	}, nil
}

func (r *memoryOrders) CountByStatus(_ context.Context) ([]models.StatusCount, error) {
	counts := collection.CountBy(r.snapshot(func(models.Order) bool { return true }),
		func(o models.Order) models.OrderStatus { return o.Status })
	out := make([]models.StatusCount, 0, len(counts))
	for _, s := range models.OrderStatuses {
		if n := counts[s]; n > 0 {
			out = append(out, models.StatusCount{Status: s, Count: n})
		}
	}
	return out, nil
}

func (r *memoryOrders) Recent(_ context.Context, n int) ([]models.Order, error) {
	all := newestFirst(r.snapshot(func(models.Order) bool { return true }), orderCreated)
	return collection.Take(all, n), nil
}

func (r *memoryOrders) update(id primitive.ObjectID, fn func(o *models.Order)) (*models.Order, error) {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	for i := range r.m.orders {
		if r.m.orders[i].ID == id {
			fn(&r.m.orders[i])
			r.m.orders[i].UpdatedAt = time.Now().UTC()
			o := cloneOrder(r.m.orders[i])
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (r *memoryOrders) UpdateStatus(_ context.Context, id primitive.ObjectID, status models.OrderStatus) (*models.Order, error) {
	return r.update(id, func(o *models.Order) { o.Status = status })
}

func (r *memoryOrders) AddNote(_ context.Context, id primitive.ObjectID, note models.AdminNote) (*models.Order, error) {
	return r.update(id, func(o *models.Order) { o.AdminNotes = append(o.AdminNotes, note) })
}

func (r *memoryOrders) FindForExport(_ context.Context, ids []primitive.ObjectID) ([]models.Order, error) {
	match := func(models.Order) bool { return true }
	if len(ids) > 0 {
		want := collection.KeyBy(ids, func(id primitive.ObjectID) primitive.ObjectID { return id })
		match = func(o models.Order) bool { _, ok := want[o.ID]; return ok }
	}
	return newestFirst(r.snapshot(match), orderCreated), nil
}
