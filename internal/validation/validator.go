package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	validatorv10 "github.com/go-playground/validator/v10"
)

// New returns a configured validator. Field names in errors follow the JSON tags.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(placeOrderStructValidation, PlaceOrderRequest{})
	v.RegisterStructValidation(shippingSettingsStructValidation, ShippingSettingsRequest{})

	return v
}

// placeOrderStructValidation requires a strictly positive amount.
func placeOrderStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(PlaceOrderRequest)
	if !req.Amount.IsPositive() {
		sl.ReportError(req.Amount, "amount", "Amount", "positive_amount", "")
	}
}

func shippingSettingsStructValidation(sl validatorv10.StructLevel) {
	req := sl.Current().Interface().(ShippingSettingsRequest)
	if !req.Enabled {
		return
	}
	if strings.TrimSpace(req.Email) == "" {
		sl.ReportError(req.Email, "email", "Email", "required", "")
	}
	if strings.TrimSpace(req.PickupLocation) == "" {
		sl.ReportError(req.PickupLocation, "pickupLocation", "PickupLocation", "required", "")
	}
}

// FieldErrors flattens a validator error into field -> message.
func FieldErrors(err error) map[string]string {
	out := map[string]string{}
	var ve validatorv10.ValidationErrors
	if !errors.As(err, &ve) {
		out["request"] = err.Error()
		return out
	}
	for _, fe := range ve {
		out[fieldPath(fe)] = message(fe)
	}
	return out
}

func fieldPath(fe validatorv10.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func message(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "numeric":
		return "must contain digits only"
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "positive_amount":
		return "must be greater than zero"
	case "gte":
		return "must not be negative"
	default:
		return "is invalid"
	}
}
