// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 StudentDiary Contributors

package auth

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// MaxUsernameLength caps usernames. No other syntax rule applies beyond
// rejecting control characters.
const MaxUsernameLength = 256

// RegisterRequest is the input to Service.Register.
type RegisterRequest struct {
	Username        string `label:"username" validate:"required,max=256,nocontrol"`
	Email           string `label:"email" validate:"required,email,max=254"`
	Password        string `label:"password" validate:"required,max=1024"`
	ConfirmPassword string `label:"password confirmation"`
	FirstName       string `label:"first name" validate:"max=100"`
	LastName        string `label:"last name" validate:"max=100"`
}

// ProfileUpdate is the input to Service.UpdateProfile. Blank fields are left unchanged.
type ProfileUpdate struct {
	FirstName string `label:"first name" validate:"max=100"`
	LastName  string `label:"last name" validate:"max=100"`
	Email     string `label:"email" validate:"omitempty,email,max=254"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if label := f.Tag.Get("label"); label != "" {
			return label
		}
		return f.Name
	})
	if err := v.RegisterValidation("nocontrol", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), unicode.IsControl)
	}); err != nil {
		panic(err)
	}
	return v
}

// validationMessage validates s and returns a user-facing message for the
// first violation, or "" when s is valid.
func validationMessage(s any) string {
	err := validate.Struct(s)
	if err == nil {
		return ""
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid input."
	}
	return describeFieldError(verrs[0])
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("The %s is required.", fe.Field())
	case "min":
		return fmt.Sprintf("The %s must be at least %s characters.", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("The %s must be at most %s characters.", fe.Field(), fe.Param())
	case "email":
		return "The email address is not valid."
	case "nocontrol":
		return fmt.Sprintf("The %s must not contain control characters.", fe.Field())
	default:
		return fmt.Sprintf("The %s is not valid.", fe.Field())
	}
}
