package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/metrics"
	"github.com/shashiranjanraj/storefront/pkg/rbac"
	"github.com/shashiranjanraj/storefront/pkg/response"
	"github.com/shashiranjanraj/storefront/pkg/storage"
	"github.com/shashiranjanraj/storefront/pkg/workerpool"
)

const recentOrders = 5

// OrderQuery is the parsed query string of the admin order list.
type OrderQuery struct {
	Status    string
	Search    string
	StartDate string
	EndDate   string
	Page      int
	Limit     int
}

type OrderPage struct {
	Orders     []models.Order      `json:"orders"`
	Pagination response.Pagination `json:"pagination"`
	Stats      models.OrderSummary `json:"stats"`
}

type DashboardStats struct {
	TotalOrders    int64                `json:"totalOrders"`
	PendingOrders  int64                `json:"pendingOrders"`
	TotalRevenue   float64              `json:"totalRevenue"`
	TotalProducts  int64                `json:"totalProducts"`
	OrdersByStatus []models.StatusCount `json:"ordersByStatus"`
	RecentOrders   []models.Order       `json:"recentOrders"`
}

// Export is a rendered CSV file.
type Export struct {
	Filename string
	Content  []byte
	Rows     int
}

// ReportService backs the admin order console.
type ReportService struct {
	orders   repositories.OrderRepository
	products repositories.ProductRepository
	users    repositories.UserRepository
	archive  storage.Disk
	pool     *workerpool.Pool
}

// NewReportService builds the admin reports. archive may be nil; when set,
// every export is also written to it, on pool when pool is non-nil.
func NewReportService(store *repositories.Store, archive storage.Disk, pool *workerpool.Pool) *ReportService {
	return &ReportService{
		orders:   store.Orders,
		products: store.Products,
		users:    store.Users,
		archive:  archive,
		pool:     pool,
	}
}

// parseDate accepts RFC 3339 or a bare YYYY-MM-DD (midnight UTC).
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, ErrInvalidDate
}

func (q OrderQuery) filter() (models.OrderFilter, error) {
	page, limit := pageOf(q.Page, q.Limit, adminPageSize)
	f := models.OrderFilter{Search: strings.TrimSpace(q.Search), Page: page, Limit: limit}
	if q.Status != "" && q.Status != models.All {
		f.Status = models.OrderStatus(q.Status)
	}
	var err error
	if f.StartDate, err = parseDate(q.StartDate); err != nil {
		return f, err
	}
	if f.EndDate, err = parseDate(q.EndDate); err != nil {
		return f, err
	}
	return f, nil
}

// List pages through orders and totals revenue over the whole filter.
func (s *ReportService) List(ctx context.Context, q OrderQuery) (*OrderPage, error) {
	f, err := q.filter()
	if err != nil {
		return nil, err
	}
	orders, total, err := s.orders.List(ctx, f)
	if err != nil {
		return nil, err
	}
	stats, err := s.orders.Summary(ctx, f)
	if err != nil {
		return nil, err
	}
	populate(ctx, s.users, refs(orders))
	return &OrderPage{
		Orders:     orders,
		Pagination: response.NewPagination(f.Page, f.Limit, total),
		Stats:      stats,
	}, nil
}

func (s *ReportService) Dashboard(ctx context.Context) (*DashboardStats, error) {
	all, err := s.orders.Summary(ctx, models.OrderFilter{})
	if err != nil {
		return nil, err
	}
	pending, err := s.orders.Summary(ctx, models.OrderFilter{Status: models.StatusPending})
	if err != nil {
		return nil, err
	}
	products, err := s.products.CountActive(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.orders.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.orders.Recent(ctx, recentOrders)
	if err != nil {
		return nil, err
	}
	populate(ctx, s.users, refs(recent))

	return &DashboardStats{
		TotalOrders:    all.TotalOrders,
		PendingOrders:  pending.TotalOrders,
		TotalRevenue:   all.TotalRevenue,
		TotalProducts:  products,
		OrdersByStatus: byStatus,
		RecentOrders:   recent,
	}, nil
}

func (s *ReportService) Get(ctx context.Context, id string) (*models.Order, error) {
	o, err := findOrder(ctx, s.orders, id)
	if err != nil {
		return nil, err
	}
	populate(ctx, s.users, []*models.Order{o})
	return o, nil
}

// UpdateStatus sets any valid status; there is no transition table.
func (s *ReportService) UpdateStatus(ctx context.Context, id, status string) (*models.Order, error) {
	st := models.OrderStatus(status)
	if !st.Valid() {
		return nil, ErrInvalidStatus
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	o, err := s.orders.UpdateStatus(ctx, oid, st)
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	populate(ctx, s.users, []*models.Order{o})
	logger.WithCtx(ctx).Info("order status updated", "order_id", o.OrderID, "status", st)
	return o, nil
}

// AddNote appends an admin note signed by author.
func (s *ReportService) AddNote(ctx context.Context, author *rbac.Subject, id, note string) (*models.Order, error) {
	note = strings.TrimSpace(note)
	if note == "" {
		return nil, ErrNoteRequired
	}
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	by, _ := primitive.ObjectIDFromHex(author.ID)
	o, err := s.orders.AddNote(ctx, oid, models.AdminNote{
		Note:       note,
		CreatedBy:  by,
		AuthorName: author.Name,
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		return nil, notFound(err, ErrOrderNotFound)
	}
	populate(ctx, s.users, []*models.Order{o})
	return o, nil
}

// CSVHeader is the first line of every export.
const CSVHeader = "Order ID,Customer Name,Customer Email,Total Amount,Status,Items Count,Date"

// Export renders the listed orders, or all orders when ids is empty, as
// CSV. Ids that are not valid identifiers are ignored.
func (s *ReportService) Export(ctx context.Context, ids []string) (*Export, error) {
	oids := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			oids = append(oids, oid)
		}
	}

	orders := []models.Order{}
	if len(ids) == 0 || len(oids) > 0 {
		var err error
		if orders, err = s.orders.FindForExport(ctx, oids); err != nil {
			return nil, err
		}
	}
	populate(ctx, s.users, refs(orders))

	now := time.Now()
	out := &Export{
		Filename: fmt.Sprintf("orders-%d.csv", now.UnixMilli()),
		Content:  []byte(RenderCSV(orders)),
		Rows:     len(orders),
	}
	metrics.CSVRowsExported.Add(float64(out.Rows))
	s.archiveExport(ctx, out)
	return out, nil
}

// RenderCSV writes the header unquoted and every data cell double-quoted,
// one order per line, lines joined by "\n".
func RenderCSV(orders []models.Order) string {
	lines := make([]string, 0, len(orders)+1)
	lines = append(lines, CSVHeader)
	for _, o := range orders {
		name, email := "N/A", "N/A"
		if o.Customer != nil {
			if o.Customer.Name != "" {
				name = o.Customer.Name
			}
			if o.Customer.Email != "" {
				email = o.Customer.Email
			}
		}
		cells := []string{
			o.OrderID,
			name,
			email,
			decimal.NewFromFloat(o.TotalAmount).StringFixed(2),
			string(o.Status),
			strconv.Itoa(o.ItemCount()),
			o.CreatedAt.UTC().Format("1/2/2006"),
		}
		for i, c := range cells {
			cells[i] = `"` + strings.ReplaceAll(c, `"`, `""`) + `"`
		}
		lines = append(lines, strings.Join(cells, ","))
	}
	return strings.Join(lines, "\n")
}

func (s *ReportService) archiveExport(ctx context.Context, e *Export) {
	if s.archive == nil {
		return
	}
	path := "exports/" + strings.TrimSuffix(e.Filename, ".csv") + "-" + uuid.NewString()[:8] + ".csv"
	log := logger.WithCtx(ctx)
	write := func(base context.Context) {
		c, cancel := context.WithTimeout(base, 30*time.Second)
		defer cancel()
		if err := s.archive.Put(c, path, e.Content, "text/csv"); err != nil {
			log.Error("export archive failed", "path", path, "error", err)
			return
		}
		log.Info("export archived", "path", path, "rows", e.Rows)
	}
	if s.pool == nil {
		write(context.WithoutCancel(ctx))
		return
	}
	switch err := s.pool.Submit(write); {
	case errors.Is(err, workerpool.ErrPoolFull):
		write(context.WithoutCancel(ctx))
	case err != nil:
		log.Warn("export archive skipped", "error", err)
	}
}
