package validator

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()

	// Use JSON tag names in error messages
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	registerCustomValidations()
}

func registerCustomValidations() {
	// Interaction event type
	validate.RegisterValidation("event_type", func(fl validator.FieldLevel) bool {
		t := fl.Field().String()
		validTypes := []string{
			"post_like", "video_like",
			"post_comment", "video_comment",
			"comment_like", "reply", "reply_like",
		}
		for _, v := range validTypes {
			if t == v {
				return true
			}
		}
		return false
	})

	// Event action (contribution or reversal)
	validate.RegisterValidation("event_action", func(fl validator.FieldLevel) bool {
		a := fl.Field().String()
		return a == "add" || a == "remove"
	})

	// Saved/interaction content kind
	validate.RegisterValidation("content_type", func(fl validator.FieldLevel) bool {
		c := fl.Field().String()
		return c == "post" || c == "video"
	})
}

// Validate validates a struct and returns a map of field errors
func Validate(s interface{}) map[string]string {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	errors := make(map[string]string)
	for _, err := range err.(validator.ValidationErrors) {
		field := err.Field()
		switch err.Tag() {
		case "required":
			errors[field] = "This field is required"
		case "uuid":
			errors[field] = "Must be a valid UUID"
		case "event_type":
			errors[field] = "Unknown interaction event type"
		case "event_action":
			errors[field] = "Action must be add or remove"
		case "content_type":
			errors[field] = "Content type must be post or video"
		case "min":
			errors[field] = "Value is too small"
		case "max":
			errors[field] = "Value is too large"
		default:
			errors[field] = "Invalid value"
		}
	}
	return errors
}
