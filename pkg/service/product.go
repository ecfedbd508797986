package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/nimburion/docstore/pkg/failure"
	"github.com/nimburion/docstore/pkg/filter"
	"github.com/nimburion/docstore/pkg/observability/logger"
	"github.com/nimburion/docstore/pkg/repository/document"
)

// Product is the public view of a stored product.
type Product struct {
	ProductID   string     `json:"productId"`
	ProductName string     `json:"productName"`
	Amount      int64      `json:"amount"`
	RequestedBy string     `json:"requestedBy"`
	UserID      int64      `json:"userId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   *time.Time `json:"updatedAt,omitempty"`
}

func productFromDocument(doc document.Document) Product {
	p := Product{
		ProductID:   asString(doc["productId"]),
		ProductName: asString(doc["productName"]),
		RequestedBy: asString(doc["requestedBy"]),
		CreatedAt:   asTime(doc["createdAt"]),
	}
	if t := asTime(doc["updatedAt"]); !t.IsZero() {
		p.UpdatedAt = &t
	}
	p.Amount, _ = asInt64(doc["amount"])
	p.UserID, _ = asInt64(doc["userId"])
	return p
}

// ProductService manages products.
type ProductService struct {
	repo      *document.Repository
	ids       IDSource
	validator *Validator
	logger    logger.Logger
	now       func() time.Time
}

// NewProductService returns a ProductService. ids must have a binding for ProductsEntity.
func NewProductService(repo *document.Repository, ids IDSource, v *Validator, log logger.Logger) *ProductService {
	if v == nil {
		v = NewValidator()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ProductService{repo: repo, ids: ids, validator: v, logger: log, now: time.Now}
}

// Create stores a product under a fresh product id. When the requester is a known user the
// product also records that user's id.
func (s *ProductService) Create(ctx context.Context, in CreateProductInput) (Product, error) {
	in.ProductName = strings.TrimSpace(in.ProductName)
	if err := s.validator.Struct(in); err != nil {
		return Product{}, err
	}

	id, err := s.ids.Next(ctx, ProductsEntity)
	if err != nil {
		return Product{}, err
	}
	product := Product{
		ProductID:   strconv.FormatInt(id, 10),
		ProductName: in.ProductName,
		Amount:      in.Amount,
		RequestedBy: in.RequestedBy,
		CreatedAt:   s.now().UTC(),
	}

	owner, err := s.repo.GetOne(ctx, usersCollection, equals("email", filter.String(in.RequestedBy)))
	switch {
	case err == nil:
		product.UserID, _ = asInt64(owner["userId"])
	case !failure.IsKind(err, failure.KindNotFound):
		return Product{}, err
	}

	doc := document.Document{
		"productId":   product.ProductID,
		"productName": product.ProductName,
		"amount":      product.Amount,
		"requestedBy": product.RequestedBy,
		"createdAt":   product.CreatedAt,
	}
	if product.UserID != 0 {
		doc["userId"] = product.UserID
	}
	if _, err := s.repo.InsertMany(ctx, productsCollection, []document.Document{doc}); err != nil {
		return Product{}, err
	}
	s.logger.WithContext(ctx).Info("product created", "product_id", product.ProductID)
	return product, nil
}

// List returns one page of products, newest first. An empty page is NotFound.
func (s *ProductService) List(ctx context.Context, pageNumber int64) (document.Page, error) {
	return listPage(ctx, s.repo, productsCollection, pageNumber)
}

// Update replaces name, amount and requester of an existing product.
func (s *ProductService) Update(ctx context.Context, in UpdateProductInput) (document.UpdateResult, error) {
	in.ProductID = strings.TrimSpace(in.ProductID)
	in.ProductName = strings.TrimSpace(in.ProductName)
	if err := s.validator.Struct(in); err != nil {
		return document.UpdateResult{}, err
	}

	expr := equals("productId", filter.String(in.ProductID))
	if _, err := s.repo.GetOne(ctx, productsCollection, expr); err != nil {
		if failure.IsKind(err, failure.KindNotFound) {
			return document.UpdateResult{}, failure.Newf(failure.KindNotFound, "product %s not found", in.ProductID)
		}
		return document.UpdateResult{}, err
	}
	return s.repo.UpdateOne(ctx, productsCollection, expr, document.Document{
		"productName": in.ProductName,
		"amount":      in.Amount,
		"requestedBy": in.RequestedBy,
		"updatedAt":   s.now().UTC(),
	})
}

// Delete removes the product with the given document id.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, productsCollection, id); err != nil {
		if failure.IsKind(err, failure.KindNotFound) {
			return failure.New(failure.KindNotFound, "product not found")
		}
		return err
	}
	_, err := s.repo.DeleteByID(ctx, productsCollection, id)
	return err
}

// Latest returns the most recently created product requested by email.
func (s *ProductService) Latest(ctx context.Context, requestedBy string) (Product, error) {
	requestedBy = strings.TrimSpace(requestedBy)
	if err := s.validator.Var("requestedBy", requestedBy, "required,email"); err != nil {
		return Product{}, err
	}
	doc, err := s.repo.GetLatest(ctx, productsCollection, equals("requestedBy", filter.String(requestedBy)))
	if err != nil {
		return Product{}, err
	}
	return productFromDocument(doc), nil
}
