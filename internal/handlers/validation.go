package handlers

import (
	"fmt"

	"commerce_backend/internal/models"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RegisterValidators adds the domain binding rules to gin's validator:
// "audit_type" and "order_status" accept only the known enum spellings.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return fmt.Errorf("unexpected binding engine %T", binding.Validator.Engine())
	}
	return registerRules(v)
}

func registerRules(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"audit_type": func(fl validator.FieldLevel) bool {
			return models.IsValidAuditType(fl.Field().String())
		},
		"order_status": func(fl validator.FieldLevel) bool {
			return models.IsValidOrderStatus(fl.Field().String())
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("registering %q validation: %w", tag, err)
		}
	}
	return nil
}
