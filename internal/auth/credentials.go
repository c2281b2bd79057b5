package auth

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

const tokenPath = "/oauth/token"

// Credentials are the OAuth2 client credentials of a UAA service binding.
// The field names follow the binding's JSON layout.
type Credentials struct {
	URL          string `json:"url" yaml:"url" validate:"required,url"`
	ClientID     string `json:"clientid" yaml:"clientid" validate:"required"`
	ClientSecret string `json:"clientsecret" yaml:"clientsecret" validate:"required"`
	XSAppName    string `json:"xsappname,omitempty" yaml:"xsappname,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// report fields by their binding names rather than Go names
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return v
}

// Validate returns a *ConfigurationError naming every missing or malformed
// field.
func (c Credentials) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}

	fields := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		fields = append(fields, fe.Field())
	}

	return &ConfigurationError{Fields: fields}
}

// TokenEndpoint returns the OAuth2 token endpoint of the UAA. Bindings carry
// the UAA base URL, but an URL that already names the endpoint is used as-is.
func (c Credentials) TokenEndpoint() string {
	base := strings.TrimRight(c.URL, "/")
	if strings.HasSuffix(base, tokenPath) {
		return base
	}
	return base + tokenPath
}

// IsZero reports whether no credential data has been supplied at all.
func (c Credentials) IsZero() bool {
	return c == Credentials{}
}
