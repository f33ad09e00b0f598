package endpoints

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/schema"

	"github.com/doodlesbykumbi/membership-gateway/pkg/errs"
	"github.com/doodlesbykumbi/membership-gateway/pkg/identity"
)

const maxBodyBytes = 1 << 20

var (
	validate     = newValidator()
	queryDecoder = newQueryDecoder()
)

func newQueryDecoder() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		for _, tag := range []string{f.Tag.Get("json"), f.Tag.Get("schema")} {
			name, _, _ := strings.Cut(tag, ",")
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return f.Name
	})
	return v
}

// decodeBody reads a JSON body into dst and validates it.
func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errs.Validation("request body is required")
		}
		return errs.Validation("malformed JSON body: %v", err)
	}
	return validateStruct(dst)
}

// decodeQuery fills dst from query parameters by schema tag and validates it.
// Unknown parameters are ignored.
func decodeQuery(r *http.Request, dst interface{}) error {
	if err := queryDecoder.Decode(dst, r.URL.Query()); err != nil {
		var merr schema.MultiError
		if !errors.As(err, &merr) {
			return errs.Validation("invalid query: %v", err)
		}
		details := make(map[string]string, len(merr))
		for key, ferr := range merr {
			details[key] = ferr.Error()
		}
		return errs.ValidationDetails("invalid query", details)
	}
	return validateStruct(dst)
}

func validateStruct(dst interface{}) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errs.Validation("invalid request: %v", err)
	}
	details := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		details[fe.Field()] = describe(fe)
	}
	return errs.ValidationDetails("invalid request", details)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "max":
		return "must be at most " + fe.Param() + " characters"
	}
	return "failed " + fe.Tag() + " validation"
}

// operatorID returns the authenticated operator of the request.
func operatorID(r *http.Request) (string, error) {
	id, ok := identity.Get(r.Context())
	if !ok || id.OperatorID == "" {
		return "", errs.Authentication("unable to determine identity")
	}
	return id.OperatorID, nil
}
