package repositories

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/pkg/database"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
)

const mongoOpTimeout = 5 * time.Second

// NewMongoStore builds the Mongo backend on db and ensures the unique
// indexes on users.email, products.slug and orders.orderId.
func NewMongoStore(ctx context.Context, db *mongo.Database) (*Store, error) {
	if err := ensureIndexes(ctx, db); err != nil {
		return nil, err
	}
	return &Store{
		Users:    &mongoUsers{col: db.Collection("users")},
		Products: &mongoProducts{col: db.Collection("products")},
		Orders:   &mongoOrders{col: db.Collection("orders")},
		Driver:   "mongo",
		Ping:     database.PingMongo(db),
		Close:    func(ctx context.Context) error { return db.Client().Disconnect(ctx) },
	}, nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		"users": {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		"products": {
			{Keys: bson.D{{Key: "slug", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "isDeleted", Value: 1}, {Key: "category", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		"orders": {
			{Keys: bson.D{{Key: "orderId", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user", Value: 1}, {Key: "createdAt", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
		},
	}
	for name, idx := range specs {
		c, cancel := context.WithTimeout(ctx, mongoOpTimeout)
		_, err := db.Collection(name).Indexes().CreateMany(c, idx)
		cancel()
		if err != nil {
			return fmt.Errorf("repositories: indexes on %s: %w", name, err)
		}
	}
	return nil
}

// op bounds a single driver call and records its latency.
func op(ctx context.Context, col *mongo.Collection, name string) (context.Context, func()) {
	c, cancel := context.WithTimeout(ctx, mongoOpTimeout)
	start := time.Now()
	return c, func() {
		cancel()
		metrics.ObserveDBQuery(col.Name(), name, start)
	}
}

func mongoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return ErrDuplicate
	}
	return err
}

// literal builds a case-insensitive regex that matches term verbatim.
func literal(term string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(term), Options: "i"}
}

var newest = bson.D{{Key: "createdAt", Value: -1}}

// ── users ────────────────────────────────────────────────────────────────

type mongoUsers struct{ col *mongo.Collection }

func (r *mongoUsers) Create(ctx context.Context, u *models.User) error {
	c, done := op(ctx, r.col, "insert")
	defer done()
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt, u.UpdatedAt = now, now
	if u.ShippingAddresses == nil {
		u.ShippingAddresses = []models.ShippingAddress{}
	}
	_, err := r.col.InsertOne(c, u)
	return mongoErr(err)
}

func (r *mongoUsers) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	c, done := op(ctx, r.col, "find")
	defer done()
	var u models.User
	if err := r.col.FindOne(c, filter).Decode(&u); err != nil {
		return nil, mongoErr(err)
	}
	return &u, nil
}

func (r *mongoUsers) FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoUsers) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))})
}

func (r *mongoUsers) FindByIDs(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]*models.User, error) {
	out := make(map[primitive.ObjectID]*models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	c, done := op(ctx, r.col, "find")
	defer done()
	cur, err := r.col.Find(c, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetProjection(bson.M{"password": 0}))
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := cur.All(c, &users); err != nil {
		return nil, err
	}
	for i := range users {
		out[users[i].ID] = &users[i]
	}
	return out, nil
}

func (r *mongoUsers) Update(ctx context.Context, u *models.User) error {
	c, done := op(ctx, r.col, "update")
	defer done()
	u.UpdatedAt = time.Now().UTC()
	res, err := r.col.UpdateByID(c, u.ID, bson.M{"$set": bson.M{
		"name":              u.Name,
		"shippingAddresses": u.ShippingAddresses,
		"role":              u.Role,
		"password":          u.Password,
		"updatedAt":         u.UpdatedAt,
	}})
	if err != nil {
		return mongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ── products ─────────────────────────────────────────────────────────────

type mongoProducts struct{ col *mongo.Collection }

func live(filter bson.M, includeDeleted bool) bson.M {
	if !includeDeleted {
		filter["isDeleted"] = false
	}
	return filter
}

func (r *mongoProducts) Create(ctx context.Context, p *models.Product) error {
	c, done := op(ctx, r.col, "insert")
	defer done()
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Images == nil {
		p.Images = []string{}
	}
	_, err := r.col.InsertOne(c, p)
	return mongoErr(err)
}

func (r *mongoProducts) findOne(ctx context.Context, filter bson.M) (*models.Product, error) {
	c, done := op(ctx, r.col, "find")
	defer done()
	var p models.Product
	if err := r.col.FindOne(c, filter).Decode(&p); err != nil {
		return nil, mongoErr(err)
	}
	return &p, nil
}

func (r *mongoProducts) FindByID(ctx context.Context, id primitive.ObjectID, includeDeleted bool) (*models.Product, error) {
	return r.findOne(ctx, live(bson.M{"_id": id}, includeDeleted))
}

func (r *mongoProducts) FindBySlug(ctx context.Context, slug string, includeDeleted bool) (*models.Product, error) {
	return r.findOne(ctx, live(bson.M{"slug": slug}, includeDeleted))
}

func productQuery(f models.ProductFilter) bson.M {
	q := live(bson.M{}, f.IncludeDeleted)
	if f.Category != "" {
		q["category"] = f.Category
	}
	if f.Search != "" {
		re := literal(f.Search)
		or := bson.A{bson.M{"name": re}, bson.M{"description": re}}
		if f.MatchSlug {
			or = append(or, bson.M{"slug": re})
		}
		q["$or"] = or
	}
	if f.MinPrice != nil || f.MaxPrice != nil {
		price := bson.M{}
		if f.MinPrice != nil {
			price["$gte"] = *f.MinPrice
		}
		if f.MaxPrice != nil {
			price["$lte"] = *f.MaxPrice
		}
		q["price"] = price
	}
	return q
}

func (r *mongoProducts) List(ctx context.Context, f models.ProductFilter) ([]models.Product, int64, error) {
	c, done := op(ctx, r.col, "list")
	defer done()
	q := productQuery(f)
	total, err := r.col.CountDocuments(c, q)
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(newest).SetSkip(int64(f.Skip()))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cur, err := r.col.Find(c, q, opts)
	if err != nil {
		return nil, 0, err
	}
	products := []models.Product{}
	if err := cur.All(c, &products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *mongoProducts) Update(ctx context.Context, p *models.Product) error {
	c, done := op(ctx, r.col, "update")
	defer done()
	p.UpdatedAt = time.Now().UTC()
	res, err := r.col.UpdateByID(c, p.ID, bson.M{"$set": bson.M{
		"name":        p.Name,
		"slug":        p.Slug,
		"description": p.Description,
		"price":       p.Price,
		"category":    p.Category,
		"weight":      p.Weight,
		"stock":       p.Stock,
		"images":      p.Images,
		"isDeleted":   p.IsDeleted,
		"updatedAt":   p.UpdatedAt,
	}})
	if err != nil {
		return mongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoProducts) SoftDelete(ctx context.Context, id primitive.ObjectID) error {
	c, done := op(ctx, r.col, "update")
	defer done()
	res, err := r.col.UpdateByID(c, id, bson.M{"$set": bson.M{"isDeleted": true, "updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoProducts) DecrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	c, done := op(ctx, r.col, "update")
	defer done()
	res, err := r.col.UpdateOne(c,
		bson.M{"_id": id, "isDeleted": false, "stock": bson.M{"$gte": qty}},
		bson.M{"$inc": bson.M{"stock": -qty}, "$set": bson.M{"updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrInsufficientStock
	}
	return nil
}

func (r *mongoProducts) IncrementStock(ctx context.Context, id primitive.ObjectID, qty int) error {
	c, done := op(ctx, r.col, "update")
	defer done()
	res, err := r.col.UpdateByID(c, id,
		bson.M{"$inc": bson.M{"stock": qty}, "$set": bson.M{"updatedAt": time.Now().UTC()}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *mongoProducts) CountActive(ctx context.Context) (int64, error) {
	c, done := op(ctx, r.col, "count")
	defer done()
	return r.col.CountDocuments(c, bson.M{"isDeleted": false})
}

func (r *mongoProducts) LowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	c, done := op(ctx, r.col, "find")
	defer done()
	cur, err := r.col.Find(c, bson.M{"isDeleted": false, "stock": bson.M{"$lte": threshold}},
		options.Find().SetSort(bson.D{{Key: "stock", Value: 1}}))
	if err != nil {
		return nil, err
	}
	products := []models.Product{}
	if err := cur.All(c, &products); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *mongoProducts) Categories(ctx context.Context) ([]models.Category, error) {
	c, done := op(ctx, r.col, "distinct")
	defer done()
	raw, err := r.col.Distinct(c, "category", bson.M{"isDeleted": false})
	if err != nil {
		return nil, err
	}
	present := make(map[models.Category]bool, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			present[models.Category(s)] = true
		}
	}
	out := make([]models.Category, 0, len(present))
	for _, cat := range models.Categories {
		if present[cat] {
			out = append(out, cat)
		}
	}
	return out, nil
}

// ── orders ───────────────────────────────────────────────────────────────

type mongoOrders struct{ col *mongo.Collection }

func (r *mongoOrders) Create(ctx context.Context, o *models.Order) error {
	c, done := op(ctx, r.col, "insert")
	defer done()
	now := time.Now().UTC()
	o.ID = primitive.NewObjectID()
	o.CreatedAt, o.UpdatedAt = now, now
	if o.AdminNotes == nil {
		o.AdminNotes = []models.AdminNote{}
	}
	_, err := r.col.InsertOne(c, o)
	return mongoErr(err)
}

func (r *mongoOrders) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Order, error) {
	c, done := op(ctx, r.col, "find")
	defer done()
	cur, err := r.col.Find(c, filter, opts)
	if err != nil {
		return nil, err
	}
	orders := []models.Order{}
	if err := cur.All(c, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *mongoOrders) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	c, done := op(ctx, r.col, "find")
	defer done()
	var o models.Order
	if err := r.col.FindOne(c, bson.M{"_id": id}).Decode(&o); err != nil {
		return nil, mongoErr(err)
	}
	return &o, nil
}

func (r *mongoOrders) ListByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return r.find(ctx, bson.M{"user": userID}, options.Find().SetSort(newest))
}

func orderQuery(f models.OrderFilter) bson.M {
	q := bson.M{}
	if f.Status != "" {
		q["status"] = f.Status
	}
	if f.Search != "" {
		q["orderId"] = literal(f.Search)
	}
	if f.StartDate != nil || f.EndDate != nil {
		created := bson.M{}
		if f.StartDate != nil {
			created["$gte"] = *f.StartDate
		}
		if f.EndDate != nil {
			created["$lte"] = *f.EndDate
		}
		q["createdAt"] = created
	}
	return q
}

func (r *mongoOrders) List(ctx context.Context, f models.OrderFilter) ([]models.Order, int64, error) {
	q := orderQuery(f)
	c, done := op(ctx, r.col, "count")
	total, err := r.col.CountDocuments(c, q)
	done()
	if err != nil {
		return nil, 0, err
	}
	opts := options.Find().SetSort(newest).SetSkip(int64(f.Skip()))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	orders, err := r.find(ctx, q, opts)
	return orders, total, err
}

func (r *mongoOrders) Summary(ctx context.Context, f models.OrderFilter) (models.OrderSummary, error) {
	c, done := op(ctx, r.col, "aggregate")
	defer done()
	cur, err := r.col.Aggregate(c, mongo.Pipeline{
		{{Key: "$match", Value: orderQuery(f)}},
		{{Key: "$group", Value: bson.M{
			"_id":          nil,
			"totalRevenue": bson.M{"$sum": "$totalAmount"},
			"totalOrders":  bson.M{"$sum": 1},
		}}},
	})
	if err != nil {
		return models.OrderSummary{}, err
	}
	var rows []struct {
		TotalRevenue float64 `bson:"totalRevenue"`
		TotalOrders  int64   `bson:"totalOrders"`
	}
	if err := cur.All(c, &rows); err != nil || len(rows) == 0 {
		return models.OrderSummary{}, err
	}
	return models.OrderSummary{TotalRevenue: rows[0].TotalRevenue, TotalOrders: rows[0].TotalOrders}, nil
}

func (r *mongoOrders) CountByStatus(ctx context.Context) ([]models.StatusCount, error) {
	c, done := op(ctx, r.col, "aggregate")
	defer done()
	cur, err := r.col.Aggregate(c, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": "$status", "count": bson.M{"$sum": 1}}}},
	})
	if err != nil {
		return nil, err
	}
	var rows []struct {
		Status models.OrderStatus `bson:"_id"`
		Count  int64              `bson:"count"`
	}
	if err := cur.All(c, &rows); err != nil {
		return nil, err
	}
	counts := make(map[models.OrderStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	out := make([]models.StatusCount, 0, len(rows))
	for _, s := range models.OrderStatuses {
		if n := counts[s]; n > 0 {
			out = append(out, models.StatusCount{Status: s, Count: n})
		}
	}
	return out, nil
}

func (r *mongoOrders) Recent(ctx context.Context, n int) ([]models.Order, error) {
	return r.find(ctx, bson.M{}, options.Find().SetSort(newest).SetLimit(int64(n)))
}

func (r *mongoOrders) modify(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.Order, error) {
	c, done := op(ctx, r.col, "update")
	defer done()
	var o models.Order
	err := r.col.FindOneAndUpdate(c, bson.M{"_id": id}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&o)
	if err != nil {
		return nil, mongoErr(err)
	}
	return &o, nil
}

func (r *mongoOrders) UpdateStatus(ctx context.Context, id primitive.ObjectID, status models.OrderStatus) (*models.Order, error) {
	return r.modify(ctx, id, bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}})
}

func (r *mongoOrders) AddNote(ctx context.Context, id primitive.ObjectID, note models.AdminNote) (*models.Order, error) {
	return r.modify(ctx, id, bson.M{
		"$push": bson.M{"adminNotes": note},
		"$set":  bson.M{"updatedAt": time.Now().UTC()},
	})
}

func (r *mongoOrders) FindForExport(ctx context.Context, ids []primitive.ObjectID) ([]models.Order, error) {
	q := bson.M{}
	if len(ids) > 0 {
		q["_id"] = bson.M{"$in": ids}
	}
	return r.find(ctx, q, options.Find().SetSort(newest))
}
