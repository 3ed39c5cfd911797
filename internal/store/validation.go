package store

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/erazemk/popis/internal/model"
)

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
}

type categoryFields struct {
	Name  string `json:"name" validate:"required"`
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

type itemFields struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	CategoryID  string `json:"categoryId" validate:"required"`
	Location    string `json:"location"`
	Quantity    int    `json:"quantity"`
}

func newCategoryFields(name, color, icon string) (categoryFields, error) {
	f := categoryFields{
		Name:  strings.TrimSpace(name),
		Color: strings.TrimSpace(color),
		Icon:  strings.TrimSpace(icon),
	}
	return f, check(f)
}

func newItemFields(name, description, categoryID, location string, quantity int) (itemFields, error) {
	f := itemFields{
		Name:        strings.TrimSpace(name),
		Description: strings.TrimSpace(description),
		CategoryID:  strings.TrimSpace(categoryID),
		Location:    strings.TrimSpace(location),
		Quantity:    model.NormalizeQuantity(quantity),
	}
	return f, check(f)
}

func check(fields any) error {
	if err := validate.Struct(fields); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// FieldErrors maps each invalid field of a validation error to a readable message.
// It returns an empty map for errors that carry no field details.
func FieldErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, e := range ve {
			fields[e.Field()] = fieldMessage(e)
		}
	}
	if errors.Is(err, ErrUnknownCategory) {
		fields["categoryId"] = "Category does not exist"
	}
	return fields
}

func fieldMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	default:
		return fmt.Sprintf("Validation failed on '%s'", e.Tag())
	}
}
