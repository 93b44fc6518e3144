package core

import (
	"log/slog"

	"github.com/go-playground/validator/v10"

	"hydrachat/internal/types"
)

// Validator wraps go-playground/validator to translate struct validation
// failures into the application error taxonomy.
type Validator struct {
	logger   *slog.Logger
	validate *validator.Validate
}

// NewValidator creates a new Validator.
func NewValidator(logger *slog.Logger) *Validator {
	return &Validator{
		logger:   logger,
		validate: validator.New(),
	}
}

// ValidateStruct runs the struct-tag validation rules against dst and returns
// a *types.AppError describing the first failure, or nil if the struct is
// valid. Field names are reported lowercased so they match JSON field naming.
func (v *Validator) ValidateStruct(dst interface{}) error {
	err := v.validate.Struct(dst)
	if err == nil {
		return nil
	}

	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		// InvalidValidationError means dst was not a struct; a programming
		// error rather than bad input.
		return types.NewAppError(types.ErrCodeInternalUnexpected, "validation could not be performed", err)
	}

	first := validationErrs[0]
	field := first.Field()

	switch first.Tag() {
	case "required":
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			"missing required field",
			err,
			map[string]any{"field": field},
		)
	case "email":
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationInvalidEmail,
			"invalid email address",
			err,
			map[string]any{"field": field},
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrCodeValidationMissingField,
			"invalid value for field",
			err,
			map[string]any{"field": field, "rule": first.Tag()},
		)
	}
}
