package utils

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// ValidateStruct checks the `validate` tags on inbound payloads that do not
// pass through gin's binding layer (socket frames).
func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}
