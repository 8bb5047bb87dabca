// Package dsconfig validates data source connection configs against the
// schema registered for their declared type. Validation is pure: it takes a
// loosely-typed field mapping and returns either a strongly-typed config with
// per-type defaults filled in, or a field-identified validation failure.
// The declared type is never re-derived from the blob.
package dsconfig

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/kosix-io/datahub/pkg/apperrors"
	"github.com/kosix-io/datahub/pkg/models"
)

// PasswordMask replaces the password field in every outward-facing response.
const PasswordMask = "********"

// DefaultConnectTimeout is applied when connect_timeout is absent (seconds).
const DefaultConnectTimeout = 10

// DefaultMySQLCharset is applied when charset is absent.
const DefaultMySQLCharset = "utf8mb4"

// Config is a validated, strongly-typed data source configuration.
type Config interface {
	// Type returns the data source type this config belongs to.
	Type() models.DataSourceType
	// Map renders the config back to a field mapping with defaults applied,
	// suitable for persistence.
	Map() map[string]any
}

// CommonConfig holds the connection fields shared by all database types.
type CommonConfig struct {
	Host     string `json:"host" validate:"required,max=255"`
	Port     int    `json:"port" validate:"required,gt=0,lte=65535"`
	Username string `json:"username" validate:"required,max=255"`
	Password string `json:"password" validate:"required"`
}

// PostgresConfig is the schema for type "postgresql".
type PostgresConfig struct {
	CommonConfig
	Database        string `json:"database" validate:"required,max=255"`
	SSL             bool   `json:"ssl"`
	SSLMode         string `json:"ssl_mode,omitempty" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
	ConnectTimeout  int    `json:"connect_timeout" validate:"gte=1,lte=300"`
	ApplicationName string `json:"application_name,omitempty" validate:"omitempty,max=255"`
}

func (PostgresConfig) Type() models.DataSourceType { return models.TypePostgreSQL }
func (c PostgresConfig) Map() map[string]any       { return toMap(c) }

// MySQLConfig is the schema for type "mysql".
type MySQLConfig struct {
	CommonConfig
	Database       string `json:"database" validate:"required,max=255"`
	SSL            bool   `json:"ssl"`
	Charset        string `json:"charset" validate:"max=50"`
	ConnectTimeout int    `json:"connect_timeout" validate:"gte=1,lte=300"`
}

func (MySQLConfig) Type() models.DataSourceType { return models.TypeMySQL }
func (c MySQLConfig) Map() map[string]any       { return toMap(c) }

// OracleConfig is the schema for type "oracle".
type OracleConfig struct {
	CommonConfig
	ServiceName string `json:"service_name" validate:"required,max=255"`
}

func (OracleConfig) Type() models.DataSourceType { return models.TypeOracle }
func (c OracleConfig) Map() map[string]any       { return toMap(c) }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report failures under the JSON field name clients actually sent.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks a loose config mapping against the schema registered for
// dsType. Absent optional fields receive their per-type defaults; the
// returned Config carries the normalized values. Unknown type tags and any
// field violating its constraint are rejected with a ValidationError.
func Validate(dsType models.DataSourceType, raw map[string]any) (Config, error) {
	if raw == nil {
		raw = map[string]any{}
	}

	switch dsType {
	case models.TypePostgreSQL:
		cfg := PostgresConfig{ConnectTimeout: DefaultConnectTimeout}
		if err := decodeAndCheck(raw, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case models.TypeMySQL:
		cfg := MySQLConfig{Charset: DefaultMySQLCharset, ConnectTimeout: DefaultConnectTimeout}
		if err := decodeAndCheck(raw, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	case models.TypeOracle:
		var cfg OracleConfig
		if err := decodeAndCheck(raw, &cfg); err != nil {
			return nil, err
		}
		return cfg, nil
	default:
		return nil, apperrors.NewValidationError("type", fmt.Sprintf("unsupported data source type %q", dsType))
	}
}

// MaskPassword returns a copy of the config mapping with the password field
// replaced by the fixed mask. Configs without a password key pass through
// unchanged; the input is never mutated.
func MaskPassword(cfg map[string]any) map[string]any {
	if cfg == nil {
		return nil
	}
	masked := make(map[string]any, len(cfg))
	for k, v := range cfg {
		masked[k] = v
	}
	if _, ok := masked["password"]; ok {
		masked["password"] = PasswordMask
	}
	return masked
}

// decodeAndCheck fills the typed config from the raw mapping and runs the
// schema constraints. Fields absent from raw keep the defaults preset by the
// caller; fields present in raw always apply, even when zero-valued.
func decodeAndCheck(raw map[string]any, out Config) error {
	b, err := json.Marshal(raw)
	if err != nil {
		return apperrors.NewValidationError("config", "config is not a valid field mapping")
	}
	if err := json.Unmarshal(b, out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return apperrors.NewValidationError(typeErr.Field, fmt.Sprintf("expected %s value", typeErr.Type))
		}
		return apperrors.NewValidationError("config", "malformed config")
	}

	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperrors.NewValidationError(fe.Field(), constraintMessage(fe))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

func constraintMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "field is required"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	default:
		return fmt.Sprintf("failed %s constraint", fe.Tag())
	}
}

// toMap renders a typed config as a field mapping via its JSON form.
func toMap(cfg Config) map[string]any {
	b, err := json.Marshal(cfg)
	if err != nil {
		// Config structs contain only marshalable scalar fields.
		panic(fmt.Sprintf("dsconfig: marshal %T: %v", cfg, err))
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		panic(fmt.Sprintf("dsconfig: unmarshal %T: %v", cfg, err))
	}
	return m
}
