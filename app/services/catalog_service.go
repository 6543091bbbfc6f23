package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/repositories"
	"github.com/shashiranjanraj/storefront/pkg/cache"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/response"
	"github.com/shashiranjanraj/storefront/pkg/validate"
)

const (
	publicPageSize = 12
	adminPageSize  = 10
	maxPageSize    = 100

	catalogVersionKey = "catalog:version"
)

// ProductQuery is the parsed query string of a catalog listing.
type ProductQuery struct {
	Category       string
	Search         string
	MinPrice       *float64
	MaxPrice       *float64
	Page           int
	Limit          int
	IncludeDeleted bool
}

type ProductPage struct {
	Products   []models.Product    `json:"products"`
	Pagination response.Pagination `json:"pagination"`
}

// ProductInput is the admin create payload.
type ProductInput struct {
	Name        string          `json:"name"        validate:"required"       msg:"Product name is required"`
	Slug        string          `json:"slug"        validate:"required"       msg:"Slug is required"`
	Description string          `json:"description" validate:"required"       msg:"Description is required"`
	Price       *float64        `json:"price"       validate:"required,gte=0" msg:"Price must be a positive number"`
	Category    models.Category `json:"category"    validate:"required"       msg:"Category is required"`
	Weight      *float64        `json:"weight"      validate:"required,gte=0" msg:"Weight must be a positive number"`
	Stock       *int            `json:"stock"       validate:"required,gte=0" msg:"Stock must be a non-negative integer"`
	Images      []string        `json:"images"`
}

// ProductPatch is the admin update payload. Absent or blank fields are kept.
type ProductPatch struct {
	Name        *string          `json:"name"`
	Slug        *string          `json:"slug"`
	Description *string          `json:"description"`
	Price       *float64         `json:"price"       validate:"nullable,gte=0" msg:"Price must be a positive number"`
	Category    *models.Category `json:"category"`
	Weight      *float64         `json:"weight"      validate:"nullable,gte=0" msg:"Weight must be a positive number"`
	Stock       *int             `json:"stock"       validate:"nullable,gte=0" msg:"Stock must be a non-negative integer"`
	Images      []string         `json:"images"`
}

type CatalogService struct {
	products repositories.ProductRepository
	cache    cache.Store
	ttl      time.Duration
}

// NewCatalogService builds the catalog. store may be nil to disable caching.
func NewCatalogService(products repositories.ProductRepository, store cache.Store, ttl time.Duration) *CatalogService {
	return &CatalogService{products: products, cache: store, ttl: ttl}
}

func pageOf(page, limit, def int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit
}

func (q ProductQuery) filter(def int) models.ProductFilter {
	page, limit := pageOf(q.Page, q.Limit, def)
	f := models.ProductFilter{
		Search:         strings.TrimSpace(q.Search),
		MinPrice:       q.MinPrice,
		MaxPrice:       q.MaxPrice,
		IncludeDeleted: q.IncludeDeleted,
		Page:           page,
		Limit:          limit,
	}
	if q.Category != "" && q.Category != models.All {
		f.Category = models.Category(q.Category)
	}
	return f
}

// version namespaces cached reads; writes bump it instead of deleting keys.
func (s *CatalogService) version(ctx context.Context) int64 {
	var v int64
	if s.cache != nil {
		s.cache.Get(ctx, catalogVersionKey, &v)
	}
	return v
}

func (s *CatalogService) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Incr(ctx, catalogVersionKey); err != nil {
		logger.WithCtx(ctx).Warn("catalog: cache invalidation failed", "error", err)
	}
}

func (s *CatalogService) list(ctx context.Context, f models.ProductFilter) (*ProductPage, error) {
	products, total, err := s.products.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return &ProductPage{Products: products, Pagination: response.NewPagination(f.Page, f.Limit, total)}, nil
}

// List is the public catalog: live products only, cached per filter.
func (s *CatalogService) List(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	f := q.filter(publicPageSize)
	f.IncludeDeleted = false
	key := fmt.Sprintf("catalog:v%d:list:%s:%q:%v:%v:%d:%d",
		s.version(ctx), f.Category, f.Search, floatKey(f.MinPrice), floatKey(f.MaxPrice), f.Page, f.Limit)
	return cache.Remember(ctx, s.cache, key, s.ttl, func() (*ProductPage, error) {
		return s.list(ctx, f)
	})
}

func floatKey(f *float64) string {
	if f == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *f)
}

// Get resolves a live product by id or slug.
func (s *CatalogService) Get(ctx context.Context, identifier string) (*models.Product, error) {
	key := fmt.Sprintf("catalog:v%d:product:%s", s.version(ctx), identifier)
	return cache.Remember(ctx, s.cache, key, s.ttl, func() (*models.Product, error) {
		var (
			p   *models.Product
			err error
		)
		if validate.IsObjectID(identifier) {
			id, _ := primitive.ObjectIDFromHex(identifier)
			p, err = s.products.FindByID(ctx, id, false)
		} else {
			p, err = s.products.FindBySlug(ctx, strings.ToLower(identifier), false)
		}
		if err != nil {
			return nil, notFound(err, ErrProductNotFound)
		}
		return p, nil
	})
}

// AdminList searches slugs too and can include soft-deleted products.
func (s *CatalogService) AdminList(ctx context.Context, q ProductQuery) (*ProductPage, error) {
	f := q.filter(adminPageSize)
	f.MatchSlug = true
	return s.list(ctx, f)
}

func (s *CatalogService) AdminGet(ctx context.Context, id string) (*models.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrProductNotFound
	}
	p, err := s.products.FindByID(ctx, oid, true)
	if err != nil {
		return nil, notFound(err, ErrProductNotFound)
	}
	return p, nil
}

func (s *CatalogService) Create(ctx context.Context, in ProductInput, createdBy string) (*models.Product, error) {
	if !in.Category.Valid() {
		return nil, ErrInvalidCategory
	}
	slug := strings.ToLower(strings.TrimSpace(in.Slug))
	if _, err := s.products.FindBySlug(ctx, slug, true); err == nil {
		return nil, ErrSlugTaken
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return nil, err
	}

	p := &models.Product{
		Name:        strings.TrimSpace(in.Name),
		Slug:        slug,
		Description: strings.TrimSpace(in.Description),
		Price:       *in.Price,
		Category:    in.Category,
		Weight:      *in.Weight,
		Stock:       *in.Stock,
		Images:      in.Images,
	}
	if p.Images == nil {
		p.Images = []string{}
	}
	if by, err := primitive.ObjectIDFromHex(createdBy); err == nil {
		p.CreatedBy = &by
	}
	if err := s.products.Create(ctx, p); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}
	s.invalidate(ctx)
	return p, nil
}

func (s *CatalogService) Update(ctx context.Context, id string, in ProductPatch) (*models.Product, error) {
	p, err := s.AdminGet(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Slug != nil {
		if slug := strings.ToLower(strings.TrimSpace(*in.Slug)); slug != "" && slug != p.Slug {
			other, err := s.products.FindBySlug(ctx, slug, true)
			switch {
			case err == nil && other.ID != p.ID:
				return nil, ErrSlugTaken
			case err != nil && !errors.Is(err, repositories.ErrNotFound):
				return nil, err
			}
			p.Slug = slug
		}
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
		p.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil && strings.TrimSpace(*in.Description) != "" {
		p.Description = strings.TrimSpace(*in.Description)
	}
	if in.Price != nil {
		p.Price = *in.Price
	}
	if in.Category != nil && *in.Category != "" {
		if !in.Category.Valid() {
			return nil, ErrInvalidCategory
		}
		p.Category = *in.Category
	}
	if in.Weight != nil {
		p.Weight = *in.Weight
	}
	if in.Stock != nil {
		p.Stock = *in.Stock
	}
	if in.Images != nil {
		p.Images = in.Images
	}

	if err := s.products.Update(ctx, p); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			return nil, ErrSlugTaken
		}
		return nil, notFound(err, ErrProductNotFound)
	}
	s.invalidate(ctx)
	return p, nil
}

// Delete soft-deletes the product so past orders keep their reference.
func (s *CatalogService) Delete(ctx context.Context, id string) (*models.Product, error) {
	p, err := s.AdminGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.products.SoftDelete(ctx, p.ID); err != nil {
		return nil, notFound(err, ErrProductNotFound)
	}
	p.IsDeleted = true
	s.invalidate(ctx)
	return p, nil
}

func (s *CatalogService) LowStock(ctx context.Context, threshold int) ([]models.Product, error) {
	return s.products.LowStock(ctx, threshold)
}

// Categories lists the categories that currently have live products.
func (s *CatalogService) Categories(ctx context.Context) ([]models.Category, error) {
	key := fmt.Sprintf("catalog:v%d:categories", s.version(ctx))
	return cache.Remember(ctx, s.cache, key, s.ttl, func() ([]models.Category, error) {
		return s.products.Categories(ctx)
	})
}

// Invalidate drops every cached catalog read. Checkout calls it after
// stock changes.
func (s *CatalogService) Invalidate(ctx context.Context) { s.invalidate(ctx) }
