// Package validation turns gin binding failures into field errors and registers the
// store's custom tags.
package validation

import (
	"errors"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/apperr"
	"github.com/specieecommerce-del/spice-shelf-harmony-sub000/internal/shared/taxid"
)

type FieldErrors map[string]string

// Register adds the cpfcnpj tag to gin's validator.
func Register() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("validation: unexpected validator engine")
	}
	v.RegisterTagNameFunc(jsonName)
	return v.RegisterValidation("cpfcnpj", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return s == "" || taxid.Valid(s)
	})
}

// BindError wraps a ShouldBindJSON failure as an invalid-input error.
func BindError(err error) error {
	return apperr.InvalidErr("Verifique os dados informados.", FromBindError(err))
}

func FromBindError(err error) FieldErrors {
	out := FieldErrors{}

	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			out[fieldKey(fe)] = messageForTag(fe.Tag(), fe.Param())
		}
		return out
	}

	out["_"] = "JSON inválido."
	return out
}

// fieldKey is the namespace without the root struct, e.g. items[0].quantity.
func fieldKey(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		ns = ns[i+1:]
	}
	if ns == "" {
		return strings.ToLower(fe.Field())
	}
	return ns
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func messageForTag(tag, param string) string {
	switch tag {
	case "required":
		return "Campo obrigatório."
	case "email":
		return "Informe um e-mail válido."
	case "cpfcnpj":
		return "Informe um CPF ou CNPJ válido."
	case "min":
		return "Valor mínimo: " + param + "."
	case "max":
		return "Valor máximo: " + param + "."
	case "gt", "gte":
		return "Deve ser maior que " + param + "."
	case "oneof":
		return "Valores aceitos: " + param + "."
	default:
		return "Valor inválido."
	}
}
