package validation

import (
	"fmt"
	"strings"

	"github.com/benvon/away-reply/internal/logger"
	"github.com/benvon/away-reply/internal/models"
	"github.com/benvon/away-reply/internal/storage"
	"github.com/benvon/away-reply/internal/store"
	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

func init() {
	Validate = validator.New()

	// Enum validators; registration only fails on a programming error
	register("reply_policy", oneOf(store.PolicyCooldown, store.PolicyOneShot))
	register("storage_backend", oneOf(storage.BackendFile, storage.BackendSQLite, storage.BackendPostgres, storage.BackendRedis))
	register("activity_source", oneOf(string(models.SourceOutgoing), string(models.SourceRead)))
	register("log_format", oneOf(logger.FormatJSON, logger.FormatConsole))
}

func register(tag string, fn validator.Func) {
	if err := Validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("failed to register %s validator: %v", tag, err))
	}
}

func oneOf(allowed ...string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		for _, a := range allowed {
			if value == a {
				return true
			}
		}
		return false
	}
}

// Struct validates s and flattens validator errors into one readable message
func Struct(s any) error {
	err := Validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return fmt.Sprintf("%s is required", fe.Field())
	case "reply_policy":
		return fmt.Sprintf("%s %q must be 'cooldown' or 'oneshot'", fe.Field(), fe.Value())
	case "storage_backend":
		return fmt.Sprintf("%s %q must be 'file', 'sqlite', 'postgres' or 'redis'", fe.Field(), fe.Value())
	case "activity_source":
		return fmt.Sprintf("%s %q must be 'outgoing' or 'read'", fe.Field(), fe.Value())
	case "log_format":
		return fmt.Sprintf("%s %q must be 'json' or 'console'", fe.Field(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}
