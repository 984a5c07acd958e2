package provisioning

import (
	"errors"
	"qittMarket/domain"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator that knows the registration form rules,
// including the department catalogue.
func NewValidator() *validator.Validate {
	v := validator.New()
	RegisterValidations(v)
	return v
}

// RegisterValidations installs the "department" tag and reports field names
// by their json name so they can be shown to the user as-is.
func RegisterValidations(v *validator.Validate) {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("department", func(fl validator.FieldLevel) bool {
		return slices.Contains(domain.Departments, fl.Field().String())
	})
}

// NormalizeContext trims every field of the registration context.
func NormalizeContext(rc domain.RegistrationContext) domain.RegistrationContext {
	rc.Name = strings.TrimSpace(rc.Name)
	rc.School = strings.TrimSpace(rc.School)
	rc.Department = strings.TrimSpace(rc.Department)
	rc.Level = strings.ToLower(strings.TrimSpace(rc.Level))
	return rc
}

// invalidFields returns the json names of every field that is empty or not
// one of the accepted values, in declaration order.
func invalidFields(v *validator.Validate, rc *domain.RegistrationContext) ([]string, error) {
	if rc == nil {
		return []string{"name", "school", "department", "level"}, nil
	}

	err := v.Struct(rc)
	if err == nil {
		return nil, nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if !slices.Contains(fields, fe.Field()) {
			fields = append(fields, fe.Field())
		}
	}
	return fields, nil
}
