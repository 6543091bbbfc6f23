package services_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/app/services"
)

func TestImport(t *testing.T) {
	f := newFixture(t)
	f.product(t, "yoga-mat-pro", 59.99, 5)
	svc := services.NewImportService(f.catalog)

	raw := json.RawMessage(`[
		{"name":"Yoga Mat Pro","slug":"yoga-mat-pro","description":"d","price":1,"category":"Sports","weight":1,"stock":1},
		{"name":"Kit","slug":"educational-stem-kit","description":"STEM","price":69.99,"category":"Toys","weight":1.5,"stock":40},
		{"name":"","slug":"nameless","description":"d","price":1,"category":"Toys","weight":1,"stock":1},
		{"name":"Beans","slug":"organic-coffee-beans","description":"d","price":-1,"category":"Food","weight":0.5,"stock":1}
	]`)
	res, err := svc.Import(context.Background(), raw, f.admin.ID.Hex())
	require.NoError(t, err)

	assert.Equal(t, "Imported 1 products", res.Message)
	assert.Equal(t, 1, res.Imported)
	assert.Equal(t, 3, res.Errors)
	assert.NotEmpty(t, res.BatchID)
	require.Len(t, res.Details.Imported, 1)
	assert.Equal(t, "educational-stem-kit", res.Details.Imported[0].Slug)
	assert.Equal(t, []services.ImportError{
		{Slug: "yoga-mat-pro", Error: "Product already exists"},
		{Slug: "nameless", Error: "Product name is required"},
		{Slug: "organic-coffee-beans", Error: "Price must be a positive number"},
	}, res.Details.Errors)
}

func TestImportRequiresArray(t *testing.T) {
	svc := services.NewImportService(newFixture(t).catalog)
	for _, raw := range []string{`[]`, `{"slug":"x"}`, `null`, ``} {
		_, err := svc.Import(context.Background(), json.RawMessage(raw), "")
		assert.ErrorIs(t, err, services.ErrImportEmpty, raw)
	}
}
