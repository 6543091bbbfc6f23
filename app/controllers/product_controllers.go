package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/shashiranjanraj/storefront/app/services"
	"github.com/shashiranjanraj/storefront/pkg/ctx"
)

type ProductController struct {
	catalog  *services.CatalogService
	importer *services.ImportService
}

func NewProductController(catalog *services.CatalogService, importer *services.ImportService) *ProductController {
	return &ProductController{catalog: catalog, importer: importer}
}

func productQuery(c *ctx.Context, limit int) services.ProductQuery {
	return services.ProductQuery{
		Category:       c.Query("category"),
		Search:         c.Query("search"),
		MinPrice:       c.QueryFloat("minPrice"),
		MaxPrice:       c.QueryFloat("maxPrice"),
		Page:           c.QueryInt("page", 1),
		Limit:          c.QueryInt("limit", limit),
		IncludeDeleted: c.QueryBool("includeDeleted"),
	}
}

// Index  GET /api/products
func (h *ProductController) Index(c *ctx.Context) {
	q := productQuery(c, 12)
	q.IncludeDeleted = false
	page, err := h.catalog.List(c.Context(), q)
	if err != nil {
		abort(c, err, "Server error fetching products")
		return
	}
	c.Success(page)
}

// Show  GET /api/products/{identifier}
func (h *ProductController) Show(c *ctx.Context) {
	p, err := h.catalog.Get(c.Context(), c.Param("identifier"))
	if err != nil {
		abort(c, err, "Server error fetching product")
		return
	}
	c.Success(M{"product": p})
}

// AdminIndex  GET /api/admin/products
func (h *ProductController) AdminIndex(c *ctx.Context) {
	page, err := h.catalog.AdminList(c.Context(), productQuery(c, 10))
	if err != nil {
		abort(c, err, "Server error fetching products")
		return
	}
	c.Success(page)
}

// AdminShow  GET /api/admin/products/{id}
func (h *ProductController) AdminShow(c *ctx.Context) {
	p, err := h.catalog.AdminGet(c.Context(), c.Param("id"))
	if err != nil {
		abort(c, err, "Server error fetching product")
		return
	}
	c.Success(M{"product": p})
}

// Store  POST /api/admin/products
func (h *ProductController) Store(c *ctx.Context) {
	var in services.ProductInput
	if !c.BindJSON(&in) {
		return
	}
	p, err := h.catalog.Create(c.Context(), in, c.Subject().ID)
	if err != nil {
		abort(c, err, "Server error creating product")
		return
	}
	c.Created("Product created successfully", M{"product": p})
}

// Update  PUT /api/admin/products/{id}
func (h *ProductController) Update(c *ctx.Context) {
	var in services.ProductPatch
	if !c.BindJSON(&in) {
		return
	}
	p, err := h.catalog.Update(c.Context(), c.Param("id"), in)
	if err != nil {
		abort(c, err, "Server error updating product")
		return
	}
	c.Respond(http.StatusOK, "Product updated successfully", M{"product": p})
}

// Destroy  DELETE /api/admin/products/{id}
func (h *ProductController) Destroy(c *ctx.Context) {
	p, err := h.catalog.Delete(c.Context(), c.Param("id"))
	if err != nil {
		abort(c, err, "Server error deleting product")
		return
	}
	c.Respond(http.StatusOK, "Product deleted successfully", M{"product": p})
}

// Import  POST /api/admin/products/import
func (h *ProductController) Import(c *ctx.Context) {
	var body struct {
		Products json.RawMessage `json:"products"`
	}
	if !c.BindJSON(&body) {
		return
	}
	res, err := h.importer.Import(c.Context(), body.Products, c.Subject().ID)
	if err != nil {
		abort(c, err, "Server error importing products")
		return
	}
	c.Respond(http.StatusOK, res.Message, res)
}
