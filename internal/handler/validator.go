package handler

import (
    "errors"
    "fmt"
    "reflect"
    "strings"

    "github.com/go-playground/validator/v10"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/storefront-api/internal/service"
)

// RequestValidator adapts go-playground/validator to echo.Validator.
// Field names in messages are the JSON names.
type RequestValidator struct {
    v *validator.Validate
}

func NewValidator() *RequestValidator {
    v := validator.New(validator.WithRequiredStructEnabled())
    v.RegisterTagNameFunc(func(f reflect.StructField) string {
        name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
        if name == "-" || name == "" {
            return f.Name
        }
        return name
    })
    return &RequestValidator{v: v}
}

// Validate returns an error wrapping service.ErrValidation.
func (r *RequestValidator) Validate(i interface{}) error {
    err := r.v.Struct(i)
    if err == nil {
        return nil
    }
    var verrs validator.ValidationErrors
    if !errors.As(err, &verrs) {
        return fmt.Errorf("%w: %v", service.ErrValidation, err)
    }
    msgs := make([]string, 0, len(verrs))
    for _, fe := range verrs {
        msgs = append(msgs, fieldMessage(fe))
    }
    return fmt.Errorf("%w: %s", service.ErrValidation, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
    switch fe.Tag() {
    case "required":
        return fe.Field() + " is required"
    case "email":
        return fe.Field() + " must be a valid email address"
    case "min":
        return fmt.Sprintf("%s must be at least %s", fe.Field(), fe.Param())
    case "max":
        return fmt.Sprintf("%s must be at most %s", fe.Field(), fe.Param())
    case "gt":
        return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
    case "oneof":
        return fmt.Sprintf("%s must be one of: %s", fe.Field(), fe.Param())
    }
    return fmt.Sprintf("%s failed %s validation", fe.Field(), fe.Tag())
}

var errInvalidBody = fmt.Errorf("%w: invalid body", service.ErrValidation)

// bindAndValidate decodes the body into req and runs the validator.
func bindAndValidate(c echo.Context, req interface{}) error {
    if err := c.Bind(req); err != nil {
        return errInvalidBody
    }
    return c.Validate(req)
}
