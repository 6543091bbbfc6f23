// Package graph exposes the public catalog as a read-only GraphQL schema.
//
//	{ products(category: "Sports", limit: 5) { total products { name slug price stock } } }
//	{ product(identifier: "yoga-mat-pro") { name images } }
package graph

import (
	"errors"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/app/services"
	gql "github.com/shashiranjanraj/storefront/pkg/graphql"
)

var productType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Product",
	Fields: graphql.Fields{
		"id": &graphql.Field{
			Type: graphql.NewNonNull(graphql.ID),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return p.Source.(models.Product).ID.Hex(), nil
			},
		},
		"name":        &graphql.Field{Type: graphql.String},
		"slug":        &graphql.Field{Type: graphql.String},
		"description": &graphql.Field{Type: graphql.String},
		"price":       &graphql.Field{Type: graphql.Float},
		"category":    &graphql.Field{Type: graphql.String},
		"weight":      &graphql.Field{Type: graphql.Float},
		"stock":       &graphql.Field{Type: graphql.Int},
		"images":      &graphql.Field{Type: graphql.NewList(graphql.String)},
		"createdAt":   &graphql.Field{Type: graphql.DateTime},
	},
})

var productPageType = graphql.NewObject(graphql.ObjectConfig{
	Name: "ProductPage",
	Fields: graphql.Fields{
		"products": &graphql.Field{
			Type: graphql.NewList(productType),
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return p.Source.(*services.ProductPage).Products, nil
			},
		},
		"page":  pageField(func(pg *services.ProductPage) any { return pg.Pagination.Page }),
		"limit": pageField(func(pg *services.ProductPage) any { return pg.Pagination.Limit }),
		"total": pageField(func(pg *services.ProductPage) any { return int(pg.Pagination.Total) }),
		"pages": pageField(func(pg *services.ProductPage) any { return pg.Pagination.Pages }),
	},
})

func pageField(get func(*services.ProductPage) any) *graphql.Field {
	return &graphql.Field{
		Type: graphql.Int,
		Resolve: func(p graphql.ResolveParams) (any, error) {
			return get(p.Source.(*services.ProductPage)), nil
		},
	}
}

// NewSchema builds the catalog schema over catalog.
func NewSchema(catalog *services.CatalogService) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"products": &graphql.Field{
				Type: productPageType,
				Args: graphql.FieldConfigArgument{
					"category": &graphql.ArgumentConfig{Type: graphql.String},
					"search":   &graphql.ArgumentConfig{Type: graphql.String},
					"minPrice": &graphql.ArgumentConfig{Type: graphql.Float},
					"maxPrice": &graphql.ArgumentConfig{Type: graphql.Float},
					"page":     &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 1},
					"limit":    &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 12},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					q := services.ProductQuery{}
					q.Category, _ = p.Args["category"].(string)
					q.Search, _ = p.Args["search"].(string)
					q.Page, _ = p.Args["page"].(int)
					q.Limit, _ = p.Args["limit"].(int)
					if v, ok := p.Args["minPrice"].(float64); ok {
						q.MinPrice = &v
					}
					if v, ok := p.Args["maxPrice"].(float64); ok {
						q.MaxPrice = &v
					}
					return catalog.List(p.Context, q)
				},
			},
			"product": &graphql.Field{
				Type: productType,
				Args: graphql.FieldConfigArgument{
					"identifier": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, _ := p.Args["identifier"].(string)
					product, err := catalog.Get(p.Context, id)
					if errors.Is(err, services.ErrProductNotFound) {
						return nil, nil
					}
					if err != nil {
						return nil, err
					}
					return *product, nil
				},
			},
			"categories": &graphql.Field{
				Type: graphql.NewList(graphql.String),
				Resolve: func(p graphql.ResolveParams) (any, error) {
					cats, err := catalog.Categories(p.Context)
					if err != nil {
						return nil, err
					}
					out := make([]string, len(cats))
					for i, c := range cats {
						out[i] = string(c)
					}
					return out, nil
				},
			},
		},
	})
	return gql.NewSchema(query)
}
