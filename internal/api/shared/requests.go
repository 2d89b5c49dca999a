package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxBodyBytes caps request bodies read by DecodeJSON.
const MaxBodyBytes = 1 << 20

// validate reports field names by their json tag.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// DecodeJSON decodes the request body into v. Unknown fields are rejected,
// as is anything after the first JSON value.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, MaxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// ValidateRequest validates v with its own Validate method if it has one,
// or with its struct tags otherwise.
func ValidateRequest(v any) error {
	if custom, ok := v.(interface{ Validate() error }); ok {
		return custom.Validate()
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}
