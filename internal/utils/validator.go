// Package utils provides utility functions used throughout the application.
package utils

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// validate is a singleton validator instance
	validate *validator.Validate

	// usernameRegex defines valid username characters (letters, numbers, underscores, hyphens)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// youtubeURLRegex accepts youtube.com and youtu.be URLs
	youtubeURLRegex = regexp.MustCompile(`^(https?://)?(www\.|m\.)?(youtube\.com|youtu\.be)/.+$`)

	// validationErrorMessages maps validator tags to user-facing messages
	validationErrorMessages = map[string]string{
		"required":    "This field is required",
		"email":       "Invalid email address",
		"min":         "Value must be greater than or equal to %s",
		"max":         "Value must be less than or equal to %s",
		"len":         "Length must be exactly %s",
		"oneof":       "Value must be one of: %s",
		"username":    "Username must contain only letters, numbers, underscores or hyphens",
		"password":    "Password must be at least 8 characters and contain uppercase, lowercase, and numbers",
		"url":         "Must be a valid URL",
		"youtube_url": "Must be a valid YouTube URL",
	}
)

func init() {
	validate = validator.New()

	// Report field names from json tags
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("username", validateUsername)
	_ = validate.RegisterValidation("password", validatePassword)
	_ = validate.RegisterValidation("youtube_url", validateYouTubeURL)
}

// Validate performs validation on the given struct and returns validation errors.
func Validate(s any) error {
	return validate.Struct(s)
}

// ValidateVar validates a single variable with the given tag.
func ValidateVar(field any, tag string) error {
	return validate.Var(field, tag)
}

// FormatValidationErrors formats validation errors into a field-to-message map.
func FormatValidationErrors(err error) map[string]string {
	if err == nil {
		return nil
	}

	validationErrors := make(map[string]string)
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		validationErrors["_error"] = err.Error()
		return validationErrors
	}

	for _, ferr := range verrs {
		message, exists := validationErrorMessages[ferr.Tag()]
		if !exists {
			message = "Invalid value"
		}
		if param := ferr.Param(); param != "" && strings.Contains(message, "%s") {
			message = strings.Replace(message, "%s", param, 1)
		}
		validationErrors[ferr.Field()] = message
	}

	return validationErrors
}

// validateUsername checks if a string is a valid username.
func validateUsername(fl validator.FieldLevel) bool {
	return usernameRegex.MatchString(fl.Field().String())
}

// validatePassword checks password strength: at least 8 characters with
// uppercase, lowercase, and numbers.
func validatePassword(fl validator.FieldLevel) bool {
	password := fl.Field().String()
	if len(password) < 8 {
		return false
	}

	var hasUpper, hasLower, hasNumber bool
	for _, char := range password {
		switch {
		case 'A' <= char && char <= 'Z':
			hasUpper = true
		case 'a' <= char && char <= 'z':
			hasLower = true
		case '0' <= char && char <= '9':
			hasNumber = true
		}
	}

	return hasUpper && hasLower && hasNumber
}

// validateYouTubeURL checks if a string looks like a YouTube URL.
func validateYouTubeURL(fl validator.FieldLevel) bool {
	return youtubeURLRegex.MatchString(fl.Field().String())
}

// GetValidator returns the validator instance.
func GetValidator() *validator.Validate {
	return validate
}
