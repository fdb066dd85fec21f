package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ValidationError describes one rejected request field.
type ValidationError struct {
	Code    string                 `json:"code"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// readAndValidateRequest decodes the JSON body into req, applies struct-tag defaults and
// validates it. A nil slice means the request is valid.
func readAndValidateRequest(r *http.Request, req interface{}) []ValidationError {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(req); err != nil {
		return validatorDefaultRules(fmt.Errorf("invalid JSON body: %w", err))
	}

	if err := defaults.Set(req); err != nil {
		return validatorDefaultRules(err)
	}

	if err := validate.StructCtx(r.Context(), req); err != nil {
		return validatorDefaultRules(err)
	}

	return nil
}

func validatorDefaultRules(err error) []ValidationError {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		errs := make([]ValidationError, 0, len(validationErrors))
		for _, e := range validationErrors {
			errs = append(errs, ValidationError{
				Code:    "ERR_" + strings.ToUpper(e.Tag()),
				Field:   e.Namespace(),
				Message: getErrorMessage(e),
				Params:  getErrorParams(e),
			})
		}
		return errs
	}

	return []ValidationError{{
		Code:    "ERR_UNKNOWN",
		Message: err.Error(),
	}}
}

func getErrorMessage(fe validator.FieldError) string {
	field := fe.Field()
	switch fe.Tag() {
	case "required", "required_without":
		return fmt.Sprintf("%s is required", field)
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s items", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed validation: %s", field, fe.Tag())
	}
}

func getErrorParams(fe validator.FieldError) map[string]interface{} {
	params := make(map[string]interface{})

	switch fe.Tag() {
	case "min", "gte":
		params["min"] = fe.Param()
	case "max", "lte":
		params["max"] = fe.Param()
	case "gt", "lt":
		params["value"] = fe.Param()
	case "oneof":
		params["options"] = strings.Split(fe.Param(), " ")
	}

	if len(params) == 0 {
		return nil
	}
	return params
}
