package repositories

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"gorm.io/gorm"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/pkg/database"
	"github.com/shashiranjanraj/storefront/pkg/orm"
)

// NewSQLStore builds the gorm backend. The schema comes from the migrations
// in database/migrations.
func NewSQLStore(db *gorm.DB, driver string) *Store {
	return &Store{
		Users:    &sqlUsers{db},
		Products: &sqlProducts{db},
		Orders:   &sqlOrders{db},
		Driver:   driver,
		Ping:     database.PingSQL(db),
		Close: func(context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	}
}

func sqlErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, orm.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	}
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate") {
		return ErrDuplicate
	}
	return err
}

func hexes(ids []primitive.ObjectID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.Hex()
	}
	return out
}

// ── users ────────────────────────────────────────────────────────────────

type sqlUsers struct{ db *gorm.DB }

func (r *sqlUsers) Create(ctx context.Context, u *models.User) error {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt, u.UpdatedAt = now, now
	row := toUserRow(u)
	return sqlErr(r.db.WithContext(ctx).Create(&row).Error)
}

func (r *sqlUsers) first(ctx context.Context, query string, arg interface{}) (*models.User, error) {
	var row UserRow
	if err := orm.On(ctx, r.db).Model(&UserRow{}).Where(query, arg).First(&row); err != nil {
		return nil, sqlErr(err)
	}
	return row.model(), nil
}

func (r *sqlUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.first(ctx, "id = ?", id.Hex())
}

func (r *sqlUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *sqlUsers) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	out := make(map[primitive.ObjectID]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []UserRow
	if err := orm.On(ctx, r.db).Model(&UserRow{}).Where("id IN ?", hexes(ids)).Get(&rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		u := row.model()
		out[u.ID] = u
	}
	return out, nil
}

func (r *sqlUsers) Update(ctx context.Context, u *models.User) error {
	u.UpdatedAt = time.Now().UTC()
	row := toUserRow(u)
	res := r.db.WithContext(ctx).Model(&UserRow{}).Where("id = ?", row.ID).
		Select("name", "password", "role", "shipping_addresses", "updated_at").
		Updates(&row)
	if res.Error != nil {
		return sqlErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ── products ─────────────────────────────────────────────────────────────

type sqlProducts struct{ db *gorm.DB }

func (r *sqlProducts) Create(ctx context.Context, p *models.Product) error {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Images == nil {
		p.Images = []string{}
	}
	row := toProductRow(p)
	return sqlErr(r.db.WithContext(ctx).Create(&row).Error)
}

func (r *sqlProducts) first(ctx context.Context, includeDeleted bool, query string, arg interface{}) (*models.Product, error) {
	q := orm.On(ctx, r.db).Model(&ProductRow{}).Where(query, arg)
	if !includeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	var row ProductRow
	if err := q.First(&row); err != nil {
		return nil, sqlErr(err)
	}
	p := row.model()
	return &p, nil
}

func (r *sqlProducts) FindByID(ctx context.Context, id primitive.ObjectID, includeDeleted bool) (*models.Product, error) {
	return r.first(ctx, includeDeleted, "id = ?", id.Hex())
}

func (r *sqlProducts) FindBySlug(ctx context.Context, slug string, includeDeleted bool) (*models.Product, error) {
	return r.first(ctx, includeDeleted, "slug = ?", slug)
}

func (r *sqlProducts) List(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, error) {
	q := orm.On(ctx, r.db).Model(&ProductRow{})
	if !f.IncludeDeleted {
		q = q.Where("is_deleted = ?", false)
	}
	if f.Category != "" {
		q = q.Where("category = ?", string(f.Category))
	}
	if f.MatchSlug {
		q = q.WhereLike(f.Search, "name", "description", "slug")
	} else {
		q = q.WhereLike(f.Search, "name", "description")
	}
	if f.MinPrice != nil {
		q = q.Where("price >= ?", *f.MinPrice)
	}
	if f.MaxPrice != nil {
		q = q.Where("price <= ?", *f.MaxPrice)
	}

	var rows []ProductRow
	total, err := q.Order("created_at desc").Paginate(f.Page, f.Limit, &rows)
	if err != nil {
		return nil, 0, err
	}
	return productModels(rows), total, nil
}

func (r *sqlProducts) Update(ctx context.Context, p *models.Product) error {
	p.UpdatedAt = time.Now().UTC()
	row := toProductRow(p)
	res := r.db.WithContext(ctx).Model(&ProductRow{}).Where("id = ?", row.ID).
		Select("name", "slug", "description", "price", "category", "weight", "stock", "images", "is_deleted", "updated_at").
		Updates(&row)
	if res.Error != nil {
		return sqlErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlProducts) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	res := r.db.WithContext(ctx).Model(&ProductRow{}).Where("id = ?", id.Hex()).
		Updates(map[string]interface{}{"is_deleted": true, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlProducts) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	res := r.db.WithContext(ctx).Model(&ProductRow{}).
		Where("id = ? AND is_deleted = ? AND stock >= ?", id.Hex(), false, qty).
		Updates(map[string]interface{}{"stock": gorm.Expr("stock - ?", qty), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *sqlProducts) IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	res := r.db.WithContext(ctx).Model(&ProductRow{}).Where("id = ?", id.Hex()).
		Updates(map[string]interface{}{"stock": gorm.Expr("stock + ?", qty), "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *sqlProducts) CountActive(ctx context.Context) (int64, error) {
	return orm.On(ctx, r.db).Model(&ProductRow{}).Where("is_deleted = ?", false).Count()
}

func (r *sqlProducts) LowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	var rows []ProductRow
	err := orm.On(ctx, r.db).Model(&ProductRow{}).
		Where("is_deleted = ? AND stock <= ?", false, threshold).
		Order("stock asc").
		Get(&rows)
	if err != nil {
		return nil, err
	}
	return productModels(rows), nil
}

func (r *sqlProducts) Categories(ctx context.Context) ([]models.Category, error) {
	var names []string
	if err := orm.On(ctx, r.db).Model(&ProductRow{}).Where("is_deleted = ?", false).Pluck("category", &names); err != nil {
		return nil, err
	}
	present := make(map[models.Category]bool, len(names))
	for _, n := range names {
		present[models.Category(n)] = true
	}
	out := make([]models.Category, 0, len(present))
	for _, c := range models.Categories {
		if present[c] {
			out = append(out, c)
		}
	}
	return out, nil
}

// ── orders ───────────────────────────────────────────────────────────────

type sqlOrders struct{ db *gorm.DB }

func (r *sqlOrders) Create(ctx context.Context, o *models.Order) error {
	now := time.Now().UTC()
	o.ID = primitive.NewObjectID()
	o.CreatedAt, o.UpdatedAt = now, now
	if o.AdminNotes == nil {
		o.AdminNotes = []models.AdminNote{}
	}
	row := toOrderRow(o)
	return sqlErr(r.db.WithContext(ctx).Create(&row).Error)
}

func (r *sqlOrders) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var row OrderRow
	if err := orm.On(ctx, r.db).Model(&OrderRow{}).Where("id = ?", id.Hex()).First(&row); err != nil {
		return nil, sqlErr(err)
	}
	o := row.model()
	return &o, nil
}

func (r *sqlOrders) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	var rows []OrderRow
	err := orm.On(ctx, r.db).Model(&OrderRow{}).Where("user_id = ?", userID.Hex()).Order("created_at desc").Get(&rows)
	if err != nil {
		return nil, err
	}
	return orderModels(rows), nil
}

func (r *sqlOrders) filtered(ctx context.Context, f models.OrderFilter) *orm.Query {
	q := orm.On(ctx, r.db).Model(&OrderRow{})
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	q = q.WhereLike(f.Search, "order_id")
	if f.StartDate != nil {
		q = q.Where("created_at >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("created_at <= ?", *f.EndDate)
	}
	return q
}

func (r *sqlOrders) List(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, error) {
	var rows []OrderRow
	total, err := r.filtered(ctx, f).Order("created_at desc").Paginate(f.Page, f.Limit, &rows)
	if err != nil {
		return nil, 0, err
	}
	return orderModels(rows), total, nil
}

func (r *sqlOrders) Summary(ctx context.Context, f models.OrderFilter) (models.OrderSummary, error) {
	var row struct {
		TotalRevenue float64
		TotalOrders  int64
	}
	err := r.filtered(ctx, f).
		Select("COALESCE(SUM(total_amount), 0) AS total_revenue, COUNT(*) AS total_orders").
		Scan(&row)
	if err != nil {
		return models.OrderSummary{}, err
	}
	return models.OrderSummary{TotalRevenue: row.TotalRevenue, TotalOrders: row.TotalOrders}, nil
}

func (r *sqlOrders) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	var rows []struct {
		Status string
		Count  int64
	}
	err := orm.On(ctx, r.db).Model(&OrderRow{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows)
	if err != nil {
		return nil, err
	}
	counts := make(map[models.OrderStatus]int64, len(rows))
	for _, row := range rows {
		counts[models.OrderStatus(row.Status)] = row.Count
	}
	out := make([]models.StatusCount, 0, len(rows))
	for _, s := range models.OrderStatuses {
		if n := counts[s]; n > 0 {
			out = append(out, models.StatusCount{Status: s, Count: n})
		}
	}
	return out, nil
}

func (r *sqlOrders) Recent(ctx context.Context, n int) ([]models.Order, error) {
	var rows []OrderRow
	if err := orm.On(ctx, r.db).Model(&OrderRow{}).Order("created_at desc").Limit(n).Get(&rows); err != nil {
		return nil, err
	}
	return orderModels(rows), nil
}

// modify loads the order, applies fn and writes it back in one transaction.
func (r *sqlOrders) modify(ctx context.Context, id primitive.ObjectID, fn func(o *OrderRow)) (*models.Order, error) {
	var row OrderRow
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id.Hex()).First(&row).Error; err != nil {
			return err
		}
		fn(&row)
		row.UpdatedAt = time.Now().UTC()
		return tx.Model(&OrderRow{}).Where("id = ?", row.ID).
			Select("status", "admin_notes", "updated_at").
			Updates(&row).Error
	})
	if err != nil {
		return nil, sqlErr(err)
	}
	o := row.model()
	return &o, nil
}

func (r *sqlOrders) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus) (*models.Order, error) {
	return r.modify(ctx, id, func(o *OrderRow) { o.Status = string(status) })
}

func (r *sqlOrders) AddNote(ctx context.Context, id primitive.ObjectID, note models.AdminNote) (*models.Order, error) {
	return r.modify(ctx, id, func(o *OrderRow) { o.AdminNotes = append(o.AdminNotes, note) })
}

func (r *sqlOrders) FindForExport(ctx context.Context, ids []primitive.ObjectID) ([]models.Order, error) {
	q := orm.On(ctx, r.db).Model(&OrderRow{})
	if len(ids) > 0 {
		q = q.Where("id IN ?", hexes(ids))
	}
	var rows []OrderRow
	if err := q.Order("created_at desc").Get(&rows); err != nil {
		return nil, err
	}
	return orderModels(rows), nil
}
