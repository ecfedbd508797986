package service

import (
	"context"
	"strings"
	"time"

	"github.com/nimburion/docstore/pkg/failure"
	"github.com/nimburion/docstore/pkg/filter"
	"github.com/nimburion/docstore/pkg/observability/logger"
	"github.com/nimburion/docstore/pkg/repository/document"
)

// User is the public view of a stored user.
type User struct {
	UserID    int64     `json:"userId"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Mobile    string    `json:"mobile"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func userFromDocument(doc document.Document) User {
	u := User{
		Name:      asString(doc["name"]),
		Email:     asString(doc["email"]),
		Mobile:    asString(doc["mobile"]),
		Role:      asString(doc["role"]),
		CreatedAt: asTime(doc["createdAt"]),
	}
	u.UserID, _ = asInt64(doc["userId"])
	u.IsActive, _ = doc["isActive"].(bool)
	return u
}

// UserService manages users.
type UserService struct {
	repo      *document.Repository
	ids       IDSource
	validator *Validator
	logger    logger.Logger
	now       func() time.Time
}

// NewUserService returns a UserService. ids must have a binding for UsersEntity.
func NewUserService(repo *document.Repository, ids IDSource, v *Validator, log logger.Logger) *UserService {
	if v == nil {
		v = NewValidator()
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &UserService{repo: repo, ids: ids, validator: v, logger: log, now: time.Now}
}

// Create stores a new active user. An email already in use fails with DuplicateKey.
func (s *UserService) Create(ctx context.Context, in CreateUserInput) (User, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Role == "" {
		in.Role = "user"
	}
	if err := s.validator.Struct(in); err != nil {
		return User{}, err
	}

	_, err := s.repo.GetOne(ctx, usersCollection, equals("email", filter.String(in.Email)))
	switch {
	case err == nil:
		return User{}, failure.Newf(failure.KindDuplicateKey, "user %s already exists", in.Email)
	case !failure.IsKind(err, failure.KindNotFound):
		return User{}, err
	}

	id, err := s.ids.Next(ctx, UsersEntity)
	if err != nil {
		return User{}, err
	}

	user := User{
		UserID:    id,
		Name:      in.Name,
		Email:     in.Email,
		Mobile:    in.Mobile,
		Role:      in.Role,
		IsActive:  true,
		CreatedAt: s.now().UTC(),
	}
	_, err = s.repo.InsertMany(ctx, usersCollection, []document.Document{{
		"userId":    user.UserID,
		"name":      user.Name,
		"email":     user.Email,
		"mobile":    user.Mobile,
		"role":      user.Role,
		"isActive":  user.IsActive,
		"createdAt": user.CreatedAt,
	}})
	if err != nil {
		return User{}, err
	}
	s.logger.WithContext(ctx).Info("user created", "user_id", user.UserID)
	return user, nil
}

// Verify returns the user registered under email.
func (s *UserService) Verify(ctx context.Context, in VerifyUserInput) (User, error) {
	if err := s.validator.Struct(in); err != nil {
		return User{}, err
	}
	doc, err := s.repo.GetOne(ctx, usersCollection, equals("email", filter.String(in.Email)))
	if err != nil {
		if failure.IsKind(err, failure.KindNotFound) {
			return User{}, failure.Newf(failure.KindNotFound, "user %s doesn't exist, please create the user first", in.Email)
		}
		return User{}, err
	}
	return userFromDocument(doc), nil
}

// List returns one page of users, newest first. An empty page is NotFound; the page is
// returned alongside the error and its totals travel in the error details.
func (s *UserService) List(ctx context.Context, pageNumber int64) (document.Page, error) {
	return listPage(ctx, s.repo, usersCollection, pageNumber)
}

// Delete removes the user with the given document id.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetByID(ctx, usersCollection, id); err != nil {
		if failure.IsKind(err, failure.KindNotFound) {
			return failure.New(failure.KindNotFound, "user not found")
		}
		return err
	}
	_, err := s.repo.DeleteByID(ctx, usersCollection, id)
	return err
}

// Filter returns users matching q together with the products each one requested.
func (s *UserService) Filter(ctx context.Context, q UserFilterQuery) ([]document.Document, error) {
	q.Email = strings.TrimSpace(q.Email)
	if q.Email == "" {
		return nil, failure.New(failure.KindInvalid, "email is required for filtering")
	}
	docs, err := s.repo.Aggregate(ctx, usersCollection, UserProductsPipeline(q))
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		if d["products"] == nil {
			d["products"] = []interface{}{}
		}
		if _, ok := d["productCount"]; !ok {
			d["productCount"] = 0
		}
	}
	return docs, nil
}

// ProductCount returns how many products are owned by userID.
func (s *UserService) ProductCount(ctx context.Context, userID int64) (int64, error) {
	if userID <= 0 {
		return 0, failure.Newf(failure.KindInvalid, "invalid user id %d", userID)
	}
	return s.repo.CountByOwner(ctx, productsCollection, userID)
}

func listPage(ctx context.Context, repo *document.Repository, collection string, pageNumber int64) (document.Page, error) {
	page, err := repo.Paginate(ctx, collection, document.Filter{}, pageNumber, DefaultPageSize)
	if err != nil {
		return document.Page{}, err
	}
	if len(page.Records) == 0 {
		return page, failure.New(failure.KindNotFound, "no records found").WithDetails(map[string]interface{}{
			"pageNumber":   page.PageNumber,
			"pageSize":     page.PageSize,
			"totalRecords": page.TotalRecords,
		})
	}
	return page, nil
}
