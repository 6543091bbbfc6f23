package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shashiranjanraj/storefront/app/models"
	"github.com/shashiranjanraj/storefront/pkg/logger"
	"github.com/shashiranjanraj/storefront/pkg/validate"
)

type ImportError struct {
	Slug  string `json:"slug"`
	Error string `json:"error"`
}

type ImportDetails struct {
	Imported []models.Product `json:"imported"`
	Errors   []ImportError    `json:"errors"`
}

type ImportResult struct {
	Message  string        `json:"message"`
	BatchID  string        `json:"batchId"`
	Imported int           `json:"imported"`
	Errors   int           `json:"errors"`
	Details  ImportDetails `json:"details"`
}

// ImportService creates products in bulk. One bad item never stops the
// batch; its failure is reported next to its slug.
type ImportService struct {
	catalog *CatalogService
}

func NewImportService(catalog *CatalogService) *ImportService {
	return &ImportService{catalog: catalog}
}

// Import takes the raw "products" value of the request body.
func (s *ImportService) Import(ctx context.Context, raw json.RawMessage, createdBy string) (*ImportResult, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil || len(items) == 0 {
		return nil, ErrImportEmpty
	}

	batch := uuid.NewString()
	log := logger.WithCtx(ctx).With("batch_id", batch)
	res := &ImportResult{
		BatchID: batch,
		Details: ImportDetails{Imported: []models.Product{}, Errors: []ImportError{}},
	}

	for _, item := range items {
		var in ProductInput
		if err := json.Unmarshal(item, &in); err != nil {
			res.Details.Errors = append(res.Details.Errors, ImportError{Slug: in.Slug, Error: "Invalid product payload"})
			continue
		}
		if errs := validate.Struct(in); validate.HasErrors(errs) {
			res.Details.Errors = append(res.Details.Errors, ImportError{Slug: in.Slug, Error: validate.List(errs)[0].Message})
			continue
		}
		p, err := s.catalog.Create(ctx, in, createdBy)
		switch {
		case errors.Is(err, ErrSlugTaken):
			res.Details.Errors = append(res.Details.Errors, ImportError{Slug: in.Slug, Error: errProductAlreadyExist.Error()})
		case err != nil:
			res.Details.Errors = append(res.Details.Errors, ImportError{Slug: in.Slug, Error: err.Error()})
		default:
			res.Details.Imported = append(res.Details.Imported, *p)
		}
	}

	res.Imported = len(res.Details.Imported)
	res.Errors = len(res.Details.Errors)
	res.Message = fmt.Sprintf("Imported %d products", res.Imported)
	log.Info("catalog import finished", "imported", res.Imported, "errors", res.Errors)
	return res, nil
}
