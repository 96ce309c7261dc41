package http

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// newValidator valida bodies y query params; los errores usan el nombre json/query del campo.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
		}
		return name
	})
	return v
}

// validationDetail primer campo inválido en texto legible.
func validationDetail(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "entrada inválida"
	}
	e := verrs[0]
	switch e.Tag() {
	case "required":
		return e.Field() + " es requerido"
	case "email":
		return e.Field() + " no es un email válido"
	case "min":
		return e.Field() + " debe ser al menos " + e.Param()
	case "max":
		return e.Field() + " debe ser como máximo " + e.Param()
	default:
		return e.Field() + " inválido"
	}
}
