package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	"github.com/RANAPRINCE06/Watch/internal/repositories"
)

// ErrProductInvalidInput signals an admin product payload failed validation.
var ErrProductInvalidInput = errors.New("product: invalid input")

// ProductAdminServiceDeps bundles collaborators for the product admin service.
type ProductAdminServiceDeps struct {
	Products    repositories.ProductRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type productAdminService struct {
	products  repositories.ProductRepository
	clock     func() time.Time
	newID     func() string
	logger    func(ctx context.Context, event string, fields map[string]any)
	sanitizer *bluemonday.Policy
}

// NewProductAdminService wires a ProductAdminService.
func NewProductAdminService(deps ProductAdminServiceDeps) (ProductAdminService, error) {
	if deps.Products == nil {
		return nil, errCatalogRepositoryMissing
	}
	svc := &productAdminService{
		products:  deps.Products,
		clock:     utcClock(deps.Clock),
		newID:     deps.IDGenerator,
		logger:    deps.Logger,
		sanitizer: bluemonday.UGCPolicy(),
	}
	if svc.newID == nil {
		svc.newID = func() string { return ulid.Make().String() }
	}
	if svc.logger == nil {
		svc.logger = noopLogger
	}
	return svc, nil
}

func (s *productAdminService) ListProducts(ctx context.Context) ([]Product, error) {
	return s.products.List(ctx, repositories.ProductQuery{})
}

func (s *productAdminService) CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	now := s.clock()
	product, err := s.apply(Product{}, cmd)
	if err != nil {
		return Product{}, err
	}
	product.ID = s.newID()
	product.CreatedAt = now
	product.UpdatedAt = now

	saved, err := s.products.Insert(ctx, product)
	if err != nil {
		return Product{}, err
	}
	s.logger(ctx, "product.created", map[string]any{"productId": saved.ID})
	return saved, nil
}

func (s *productAdminService) UpdateProduct(ctx context.Context, productID string, cmd UpsertProductCommand) (Product, error) {
	existing, err := s.products.Get(ctx, productID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	product, err := s.apply(existing, cmd)
	if err != nil {
		return Product{}, err
	}
	product.UpdatedAt = s.clock()

	saved, err := s.products.Update(ctx, product)
	if err != nil {
		if repositories.IsNotFound(err) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, err
	}
	s.logger(ctx, "product.updated", map[string]any{"productId": saved.ID})
	return saved, nil
}

func (s *productAdminService) DeleteProduct(ctx context.Context, productID string) error {
	if err := s.products.Delete(ctx, productID); err != nil {
		if repositories.IsNotFound(err) {
			return ErrProductNotFound
		}
		return err
	}
	s.logger(ctx, "product.deleted", map[string]any{"productId": productID})
	return nil
}

// apply merges cmd onto base and validates the result.
func (s *productAdminService) apply(base Product, cmd UpsertProductCommand) (Product, error) {
	product := base
	if cmd.Name != nil {
		product.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.Model != nil {
		product.Model = strings.TrimSpace(*cmd.Model)
	}
	if cmd.Description != nil {
		product.Description = s.sanitizer.Sanitize(*cmd.Description)
	}
	if cmd.Price != nil {
		product.Price = *cmd.Price
	}
	if cmd.Category != nil {
		product.Category = strings.TrimSpace(*cmd.Category)
	}
	if cmd.Stock != nil {
		product.Stock = *cmd.Stock
	}
	if cmd.Featured != nil {
		product.Featured = *cmd.Featured
	}
	product.Specifications = patchSpecifications(base.Specifications, cmd.Specifications)

	images := cleanImages(cmd.Images)
	if len(images) == 0 {
		images = append(images, base.Images...)
	}
	product.Images = append(images, cleanImages(cmd.NewImages)...)

	switch {
	case product.Name == "":
		return Product{}, fmt.Errorf("%w: name is required", ErrProductInvalidInput)
	case product.Price < 0:
		return Product{}, fmt.Errorf("%w: price cannot be negative", ErrProductInvalidInput)
	case product.Stock < 0:
		return Product{}, fmt.Errorf("%w: stock cannot be negative", ErrProductInvalidInput)
	}
	return product, nil
}

func patchSpecifications(specs ProductSpecifications, patch ProductSpecificationsPatch) ProductSpecifications {
	set := func(dst *string, src *string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
		}
	}
	set(&specs.CaseSize, patch.CaseSize)
	set(&specs.Movement, patch.Movement)
	set(&specs.WaterResistance, patch.WaterResistance)
	set(&specs.StrapType, patch.StrapType)
	set(&specs.DialColor, patch.DialColor)
	set(&specs.CaseMaterial, patch.CaseMaterial)
	return specs
}

func cleanImages(values []string) []string {
	images := make([]string, 0, len(values))
	for _, img := range values {
		if img = strings.TrimSpace(img); img != "" {
			images = append(images, img)
		}
	}
	return images
}
