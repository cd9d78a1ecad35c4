package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
)

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves the whole process.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON name ("code_content", not "CodeContent"),
	// which is also what clients send.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	// notblank: non-empty after trimming whitespace. "required" alone
	// accepts "   ".
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("language", func(fl validator.FieldLevel) bool {
		return model.IsLanguage(fl.Field().String())
	})

	return v
}

// fieldMessages maps "<json field>.<tag>" to the text shown to users.
var fieldMessages = map[string]string{
	"title.notblank":        "Title is required",
	"title.max":             fmt.Sprintf("Title must be %d characters or less", MaxTitleLength),
	"code_content.notblank": "Code content is required",
	"code_content.max":      fmt.Sprintf("Code content must be %d characters or less", MaxCodeLength),
	"description.max":       fmt.Sprintf("Description must be %d characters or less", MaxDescriptionLength),
	"language.language":     "Unsupported language",
	"email.required":        "Email is required",
	"email.email":           "Unable to validate email address: invalid format",
	"password.required":     "Password is required",
	"password.min":          "Password should be at least 6 characters",
	"password.max":          "Password must be 72 bytes or fewer",
}

// validateStruct runs the validator and converts the first failure into an
// apperror.ValidationFailed carrying a user-facing message. Fields are
// checked in declaration order, so title problems are reported before code.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("service: validating %T: %w", s, err)
	}

	fe := verrs[0]
	msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
	if !ok {
		msg = fmt.Sprintf("%s failed the %q rule", fe.Field(), fe.Tag())
	}
	return apperror.ValidationFailed(fe.Field(), msg)
}
