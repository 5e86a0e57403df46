package dto

import (
	"html"
	"reflect"
	"regexp"
	"strings"

	"lexpay/internal/core/domain"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Document identifiers are lower snake case; whether one exists is the catalog's call.
var docTypeRe = regexp.MustCompile(`^[a-z][a-z0-9_]{1,63}$`)

func init() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("doc_type", validateDocType)
		_ = v.RegisterValidation("cm_phone", validateCameroonPhone)
		_ = v.RegisterValidation("mm_network", validateNetwork)
	}
}

func validateDocType(fl validator.FieldLevel) bool {
	return docTypeRe.MatchString(strings.TrimSpace(fl.Field().String()))
}

// validateCameroonPhone accepts any formatting NormalizePhone understands.
func validateCameroonPhone(fl validator.FieldLevel) bool {
	_, err := domain.NormalizePhone(fl.Field().String())
	return err == nil
}

func validateNetwork(fl validator.FieldLevel) bool {
	_, err := domain.ParseNetwork(fl.Field().String())
	return err == nil
}

// SanitizeStruct trims whitespace and HTML-escapes every exported string
// field (including *string) of a struct pointer.
func SanitizeStruct(v interface{}) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.Elem().Kind() != reflect.Struct {
		return
	}
	sanitizeFields(rv.Elem())
}

func sanitizeFields(rv reflect.Value) {
	for i := 0; i < rv.NumField(); i++ {
		f := rv.Field(i)
		if !f.CanSet() {
			continue
		}
		switch f.Kind() {
		case reflect.String:
			f.SetString(sanitize(f.String()))
		case reflect.Ptr:
			if f.IsNil() {
				continue
			}
			elem := f.Elem()
			if elem.Kind() == reflect.String {
				elem.SetString(sanitize(elem.String()))
			}
		}
	}
}

func sanitize(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}
