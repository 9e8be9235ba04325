// Package validation wraps go-playground/validator with the request rules
// used by the handlers. Field names in messages follow the JSON tags.
package validation

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"regexp"
	"strings"

	apperrors "exchange/internal/errors"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	ibanPattern   = regexp.MustCompile(`^[A-Z]{2}[0-9]{2}[A-Z0-9]{11,30}$`)
	base58Pattern = regexp.MustCompile(`^[1-9A-HJ-NP-Za-km-z]+$`)
	tronPattern   = regexp.MustCompile(`^T[1-9A-HJ-NP-Za-km-z]{33}$`)
	evmPattern    = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

var defaultValidator = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("iban", func(fl validator.FieldLevel) bool {
		return ValidIBAN(fl.Field().String())
	})
	_ = v.RegisterValidation("solana_address", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return len(s) >= 32 && len(s) <= 44 && base58Pattern.MatchString(s)
	})
	_ = v.RegisterValidation("usdt_address", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return tronPattern.MatchString(s) || evmPattern.MatchString(s)
	})
	return v
}

// Validate checks req and returns a validation DomainError listing every
// offending field.
func Validate(req any) error {
	err := defaultValidator.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return apperrors.Validation("Invalid request body")
	}

	fields := make([]string, 0, len(validationErrs))
	messages := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		fields = append(fields, fe.Field())
		messages = append(messages, fieldMessage(fe))
	}
	return apperrors.Validation("Invalid request: "+strings.Join(messages, ", ")).With("fields", fields)
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.ActualTag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "notblank":
		return fmt.Sprintf("%s must not be blank", field)
	case "min", "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "ip":
		return fmt.Sprintf("%s must be a valid IP address", field)
	case "iban":
		return fmt.Sprintf("%s must be a valid IBAN", field)
	case "solana_address":
		return fmt.Sprintf("%s must be a valid USDC (Solana) address", field)
	case "usdt_address":
		return fmt.Sprintf("%s must be a valid USDT (TRC20 or ERC20) address", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// ValidIBAN checks shape and the ISO 13616 mod-97 checksum.
func ValidIBAN(raw string) bool {
	iban := strings.ToUpper(strings.ReplaceAll(raw, " ", ""))
	if !ibanPattern.MatchString(iban) {
		return false
	}
	rearranged := iban[4:] + iban[:4]
	var digits strings.Builder
	for _, r := range rearranged {
		if r >= 'A' && r <= 'Z' {
			fmt.Fprintf(&digits, "%d", r-'A'+10)
			continue
		}
		digits.WriteRune(r)
	}
	n, ok := new(big.Int).SetString(digits.String(), 10)
	if !ok {
		return false
	}
	return new(big.Int).Mod(n, big.NewInt(97)).Int64() == 1
}
