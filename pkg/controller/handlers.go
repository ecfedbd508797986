package controller

import (
	"github.com/gin-gonic/gin"

	"github.com/nimburion/docstore/pkg/observability/logger"
	"github.com/nimburion/docstore/pkg/service"
)

// Handlers exposes the user and product services over HTTP.
type Handlers struct {
	users    *service.UserService
	products *service.ProductService
	logger   logger.Logger
}

// NewHandlers wires the services into HTTP handlers.
func NewHandlers(users *service.UserService, products *service.ProductService, log logger.Logger) *Handlers {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handlers{users: users, products: products, logger: log}
}

// Register mounts every route on r. Unknown routes answer 501.
func (h *Handlers) Register(r *gin.Engine) {
	r.POST("/create/user", h.CreateUser)
	r.GET("/get/all/users", h.ListUsers)
	r.DELETE("/user/:id", h.DeleteUser)
	r.POST("/verify/user", h.VerifyUser)
	r.GET("/userfilterData", h.FilterUsers)
	r.GET("/user/:userId/products/count", h.CountUserProducts)

	r.POST("/create/product", h.CreateProduct)
	r.GET("/get/all/products", h.ListProducts)
	r.PUT("/update/product/details", h.UpdateProduct)
	r.DELETE("/product/:id", h.DeleteProduct)
	r.GET("/get/latest/product", h.LatestProduct)

	r.NoRoute(NotImplemented)
	r.NoMethod(NotImplemented)
}

func (h *Handlers) CreateUser(c *gin.Context) {
	var in service.CreateUserInput
	if err := bindJSON(c, &in); err != nil {
		Error(c, err)
		return
	}
	user, err := h.users.Create(c.Request.Context(), in)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, "User has been created successfully", user)
}

func (h *Handlers) VerifyUser(c *gin.Context) {
	var in service.VerifyUserInput
	if err := bindJSON(c, &in); err != nil {
		Error(c, err)
		return
	}
	user, err := h.users.Verify(c.Request.Context(), in)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, "User verified successfully", user)
}

func (h *Handlers) ListUsers(c *gin.Context) {
	page, err := h.users.List(c.Request.Context(), pageNumber(c))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, "Records found successfully", page)
}

func (h *Handlers) DeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		Error(c, err)
		return
	}
	Success(c, "User deleted successfully", nil)
}

func (h *Handlers) FilterUsers(c *gin.Context) {
	userID, err := int64Param("userId", c.Query("userId"))
	if err != nil {
		Error(c, err)
		return
	}
	results, err := h.users.Filter(c.Request.Context(), service.UserFilterQuery{
		Email:       c.Query("email"),
		UserID:      userID,
		Name:        c.Query("name"),
		Mobile:      c.Query("mobile"),
		ProductName: c.Query("productName"),
	})
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, "Data found successfully", results)
}

func (h *Handlers) CountUserProducts(c *gin.Context) {
	userID, err := int64Param("userId", c.Param("userId"))
	if err != nil {
		Error(c, err)
		return
	}
	n, err := h.users.ProductCount(c.Request.Context(), userID)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, "Product count found successfully", gin.H{"userId": userID, "productCount": n})
}

func (h *Handlers) CreateProduct(c *gin.Context) {
	var in service.CreateProductInput
	if err := bindJSON(c, &in); err != nil {
		Error(c, err)
		return
	}
	product, err := h.products.Create(c.Request.Context(), in)
	if err != nil {
		Error(c, err)
		return
	}
	Created(c, "Product has been created successfully", product)
}

func (h *Handlers) ListProducts(c *gin.Context) {
	page, err := h.products.List(c.Request.Context(), pageNumber(c))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, "Records found successfully", page)
}

func (h *Handlers) UpdateProduct(c *gin.Context) {
	var in service.UpdateProductInput
	if err := bindJSON(c, &in); err != nil {
		Error(c, err)
		return
	}
	res, err := h.products.Update(c.Request.Context(), in)
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, "Product updated successfully", res)
}

func (h *Handlers) DeleteProduct(c *gin.Context) {
	if err := h.products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		Error(c, err)
		return
	}
	Success(c, "Product deleted successfully", nil)
}

func (h *Handlers) LatestProduct(c *gin.Context) {
	product, err := h.products.Latest(c.Request.Context(), c.Query("requestedBy"))
	if err != nil {
		Error(c, err)
		return
	}
	Success(c, "Latest product found successfully", product)
}
