package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/nimburion/docstore/pkg/failure"
)

// forbiddenPrefixes are rejected at the start of free-text values, compared case-insensitively.
var forbiddenPrefixes = []string{"http", "https", "npm", "module", "<", "ahref"}

// CreateUserInput is the payload for creating a user.
type CreateUserInput struct {
	Name   string `json:"name" validate:"required,min=1,max=30,safetext"`
	Email  string `json:"email" validate:"required,min=5,max=50,email,safetext"`
	Mobile string `json:"mobile" validate:"required,min=7,max=15,safetext"`
	Role   string `json:"role" validate:"omitempty,max=30,safetext"`
}

// VerifyUserInput is the payload for checking that a user exists.
type VerifyUserInput struct {
	Email string `json:"email" validate:"required,min=5,max=50,email,safetext"`
}

// CreateProductInput is the payload for creating a product.
type CreateProductInput struct {
	ProductName string `json:"productName" validate:"required,min=1,max=30,safetext"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	RequestedBy string `json:"requestedBy" validate:"required,min=5,max=50,email,safetext"`
}

// UpdateProductInput replaces the mutable fields of an existing product.
type UpdateProductInput struct {
	ProductID   string `json:"productId" validate:"required,len=10"`
	ProductName string `json:"productName" validate:"required,min=1,max=30,safetext"`
	Amount      int64  `json:"amount" validate:"required,gt=0"`
	RequestedBy string `json:"requestedBy" validate:"required,min=5,max=50,email,safetext"`
}

// Validator checks payloads against their struct tags.
type Validator struct {
	validate *validator.Validate
}

// NewValidator returns a validator with the safetext rule registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	if err := v.RegisterValidation("safetext", validateSafeText); err != nil {
		panic(fmt.Sprintf("failed to register safetext validator: %v", err))
	}
	return &Validator{validate: v}
}

// Struct validates payload. Failures are Invalid with one message per field in Details.
func (v *Validator) Struct(payload interface{}) error {
	err := v.validate.Struct(payload)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return failure.Wrap(failure.KindInvalid, err, "invalid payload")
	}
	fields := make(map[string]interface{}, len(verrs))
	first := ""
	for _, fe := range verrs {
		msg := fieldMessage(fe)
		fields[fe.Field()] = msg
		if first == "" {
			first = msg
		}
	}
	return failure.New(failure.KindInvalid, first).WithDetails(fields)
}

// Var validates a single value against tag.
func (v *Validator) Var(field string, value interface{}, tag string) error {
	if err := v.validate.Var(value, tag); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			msg := fmt.Sprintf("%s %s", field, describe(verrs[0].Tag(), verrs[0].Param()))
			return failure.New(failure.KindInvalid, msg).WithDetails(map[string]interface{}{field: msg})
		}
		return failure.Wrap(failure.KindInvalid, err, field+" is invalid")
	}
	return nil
}

func validateSafeText(fl validator.FieldLevel) bool {
	value := strings.ToLower(fl.Field().String())
	for _, p := range forbiddenPrefixes {
		if strings.HasPrefix(value, p) {
			return false
		}
	}
	return !strings.Contains(value, ">")
}

func fieldMessage(fe validator.FieldError) string {
	return fmt.Sprintf("%s %s", fe.Field(), describe(fe.Tag(), fe.Param()))
}

func describe(tag, param string) string {
	switch tag {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", param)
	case "max":
		return fmt.Sprintf("cannot exceed %s characters", param)
	case "len":
		return fmt.Sprintf("must be exactly %s characters long", param)
	case "email":
		return "must be a valid email address"
	case "gt":
		return fmt.Sprintf("must be greater than %s", param)
	case "safetext":
		return "contains URLs or unexpected values"
	default:
		return "is invalid"
	}
}
