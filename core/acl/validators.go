package acl

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomo-lms/core"
	"github.com/trezcool/masomo-lms/core/course"
	"github.com/trezcool/masomo-lms/core/user"
)

var (
	aclPermTag  = "aclperm"
	aclPermText = "must be one of view, manage or delete"

	aclResourceTag  = "aclresource"
	aclResourceText = "unknown resource type"

	granteeTag  = "aclgrantee"
	granteeText = "unknown role"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(aclPermTag, oneOfValidation(Permissions))
	core.RegisterCustomTranslation(validate, translator, aclPermTag, aclPermText)

	_ = validate.RegisterValidation(aclResourceTag, oneOfValidation(ResourceTypes))
	core.RegisterCustomTranslation(validate, translator, aclResourceTag, aclResourceText)

	validate.RegisterStructValidation(entryStructValidation, NewEntry{})
	core.RegisterCustomTranslation(validate, translator, granteeTag, granteeText)
}

func oneOfValidation(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, a := range allowed {
			if val == a {
				return true
			}
		}
		return false
	}
}

// entryStructValidation checks that role grantees name a course or user role.
// User grantees must be IDs.
func entryStructValidation(sl validator.StructLevel) {
	ne := sl.Current().Interface().(NewEntry)
	switch ne.GranteeType {
	case GranteeRole:
		for _, r := range course.EnrollmentRoles {
			if ne.Grantee == r {
				return
			}
		}
		for _, r := range user.AllRoles {
			if ne.Grantee == r {
				return
			}
		}
		sl.ReportError(ne.Grantee, "grantee", "Grantee", granteeTag, "")
	case GranteeUser:
		if !core.IsID(ne.Grantee) {
			sl.ReportError(ne.Grantee, "grantee", "Grantee", "uuid", "")
		}
	}
}
