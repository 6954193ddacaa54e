package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/RANAPRINCE06/Watch/internal/domain"
	pfirestore "github.com/RANAPRINCE06/Watch/internal/platform/firestore"
	"github.com/RANAPRINCE06/Watch/internal/repositories"
)

const productsCollection = "products"

const productBatchSize = 100

type productDocument struct {
	Name           string                `firestore:"name"`
	Model          string                `firestore:"model"`
	Description    string                `firestore:"description"`
	Price          int64                 `firestore:"price"`
	Images         []string              `firestore:"images"`
	Category       string                `firestore:"category"`
	Stock          int                   `firestore:"stock"`
	Specifications specificationDocument `firestore:"specifications"`
	Featured       bool                  `firestore:"featured"`
	CreatedAt      time.Time             `firestore:"createdAt"`
	UpdatedAt      time.Time             `firestore:"updatedAt"`
}

type specificationDocument struct {
	CaseSize        string `firestore:"caseSize,omitempty"`
	Movement        string `firestore:"movement,omitempty"`
	WaterResistance string `firestore:"waterResistance,omitempty"`
	StrapType       string `firestore:"strapType,omitempty"`
	DialColor       string `firestore:"dialColor,omitempty"`
	CaseMaterial    string `firestore:"caseMaterial,omitempty"`
}

// ProductRepository stores the catalog in the products collection.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.Collection[productDocument]
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewCollection[productDocument](provider, productsCollection),
	}, nil
}

// List returns products newest first.
func (r *ProductRepository) List(ctx context.Context, query repositories.ProductQuery) ([]domain.Product, error) {
	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		if query.FeaturedOnly {
			q = q.Where("featured", "==", true)
		}
		q = q.OrderBy("createdAt", firestore.Desc)
		if query.Limit > 0 {
			q = q.Limit(query.Limit)
		}
		return q
	})
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data.toDomain(doc.ID))
	}
	return products, nil
}

// Get loads one product.
func (r *ProductRepository) Get(ctx context.Context, id string) (domain.Product, error) {
	doc, err := r.products.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// GetMany loads the products for ids in batches and skips ids that do not exist.
func (r *ProductRepository) GetMany(ctx context.Context, ids []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}

	refs := make([]*firestore.DocumentRef, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, client.Collection(productsCollection).Doc(id))
	}

	for start := 0; start < len(refs); start += productBatchSize {
		end := start + productBatchSize
		if end > len(refs) {
			end = len(refs)
		}
		snaps, err := client.GetAll(ctx, refs[start:end])
		if err != nil {
			return nil, pfirestore.WrapError("products.getMany", err)
		}
		for _, snap := range snaps {
			if snap == nil || !snap.Exists() {
				continue
			}
			doc, err := pfirestore.Decode[productDocument](snap)
			if err != nil {
				return nil, err
			}
			result[doc.ID] = doc.Data.toDomain(doc.ID)
		}
	}
	return result, nil
}

// Insert creates a product; the id must be unused.
func (r *ProductRepository) Insert(ctx context.Context, product domain.Product) (domain.Product, error) {
	if strings.TrimSpace(product.ID) == "" {
		return domain.Product{}, errors.New("product repository: id is required")
	}
	if err := r.products.Create(ctx, product.ID, newProductDocument(product)); err != nil {
		return domain.Product{}, err
	}
	return product, nil
}

// Update replaces an existing product.
func (r *ProductRepository) Update(ctx context.Context, product domain.Product) (domain.Product, error) {
	ref, err := r.products.Doc(ctx, product.ID)
	if err != nil {
		return domain.Product{}, err
	}
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil {
			return err
		}
		current, err := pfirestore.Decode[productDocument](snap)
		if err != nil {
			return err
		}
		doc := newProductDocument(product)
		doc.CreatedAt = current.Data.CreatedAt
		product.CreatedAt = current.Data.CreatedAt
		return tx.Set(ref, doc)
	})
	if err != nil {
		return domain.Product{}, pfirestore.WrapError("products.update", err)
	}
	return product, nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	return r.products.Delete(ctx, strings.TrimSpace(id))
}

func newProductDocument(p domain.Product) productDocument {
	return productDocument{
		Name:        p.Name,
		Model:       p.Model,
		Description: p.Description,
		Price:       p.Price,
		Images:      append([]string(nil), p.Images...),
		Category:    p.Category,
		Stock:       p.Stock,
		Specifications: specificationDocument{
			CaseSize:        p.Specifications.CaseSize,
			Movement:        p.Specifications.Movement,
			WaterResistance: p.Specifications.WaterResistance,
			StrapType:       p.Specifications.StrapType,
			DialColor:       p.Specifications.DialColor,
			CaseMaterial:    p.Specifications.CaseMaterial,
		},
		Featured:  p.Featured,
		CreatedAt: p.CreatedAt.UTC(),
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        d.Name,
		Model:       d.Model,
		Description: d.Description,
		Price:       d.Price,
		Images:      append([]string(nil), d.Images...),
		Category:    d.Category,
		Stock:       d.Stock,
		Specifications: domain.ProductSpecifications{
			CaseSize:        d.Specifications.CaseSize,
			Movement:        d.Specifications.Movement,
			WaterResistance: d.Specifications.WaterResistance,
			StrapType:       d.Specifications.StrapType,
			DialColor:       d.Specifications.DialColor,
			CaseMaterial:    d.Specifications.CaseMaterial,
		},
		Featured:  d.Featured,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}
