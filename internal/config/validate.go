package config

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error with context.
type ValidationError struct {
	Field   string
	Message string
	Hint    string
}

func (e ValidationError) Error() string {
	if e.Hint != "" {
		return fmt.Sprintf("%s: %s (hint: %s)", e.Field, e.Message, e.Hint)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Field   string
	Message string
	Hint    string
}

// ValidationResult contains the results of configuration validation.
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// Error returns a combined error message if there are validation errors.
func (r *ValidationResult) Error() string {
	if !r.HasErrors() {
		return ""
	}
	var msgs []string
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for errors and returns validation results.
// It returns both errors (fatal) and warnings (non-fatal issues).
func (c *Config) Validate() *ValidationResult {
	result := &ValidationResult{}

	// Validate database config
	c.Database.validate(result)

	// Validate server config
	c.Server.validate(result)

	// Validate observability config
	c.Observability.validate(result)

	// Validate record declarations
	validateRecords(result, c.Records)

	return result
}

func (d *DatabaseConfig) validate(result *ValidationResult) {
	if strings.TrimSpace(d.ConnectionString) == "" && (d.Port < 1 || d.Port > 65535) {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.port",
			Message: fmt.Sprintf("port %d is out of valid range (1-65535)", d.Port),
		})
	}

	validModes := map[string]bool{"": true, "off": true, "skip-verify": true, "verify-ca": true, "verify-full": true}
	if !validModes[d.TLS.Mode] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.tls.mode",
			Message: fmt.Sprintf("invalid TLS mode %q", d.TLS.Mode),
			Hint:    "valid values are: off, skip-verify, verify-ca, verify-full",
		})
	}

	if d.Pool.MaxOpen < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_open",
			Message: "max_open cannot be negative",
		})
	}
	if d.Pool.MaxIdle < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.pool.max_idle",
			Message: "max_idle cannot be negative",
		})
	}
	if d.Pool.MaxIdle > d.Pool.MaxOpen && d.Pool.MaxOpen > 0 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "database.pool.max_idle",
			Message: "max_idle is greater than max_open",
			Hint:    "idle connections will be limited to max_open",
		})
	}
	if d.ConnectionTimeout < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "database.connection_timeout",
			Message: "connection_timeout cannot be negative",
		})
	}

	effectiveDatabase, err := d.EffectiveDatabaseName()
	if err != nil {
		field := "database.database"
		if strings.HasPrefix(err.Error(), "database.dsn") {
			field = "database.dsn"
		}
		result.Errors = append(result.Errors, ValidationError{
			Field:   field,
			Message: err.Error(),
			Hint:    "set database.database or include a /database in database.dsn",
		})
		return
	}
	d.Database = effectiveDatabase
}

func (s *ServerConfig) validate(result *ValidationResult) {
	if s.Port < 1 || s.Port > 65535 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port %d is out of valid range (1-65535)", s.Port),
		})
	}

	durations := []struct {
		field string
		value time.Duration
	}{
		{"server.read_timeout", s.ReadTimeout},
		{"server.write_timeout", s.WriteTimeout},
		{"server.idle_timeout", s.IdleTimeout},
		{"server.shutdown_timeout", s.ShutdownTimeout},
		{"server.health_check_timeout", s.HealthCheckTimeout},
	}
	for _, d := range durations {
		if d.value < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   d.field,
				Message: "timeout cannot be negative",
			})
		}
	}

	if s.DefaultLimit < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.default_limit",
			Message: "default_limit cannot be negative",
		})
	}
	if s.MaxLimit < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "server.max_limit",
			Message: "max_limit cannot be negative",
		})
	}
	if s.MaxLimit > 0 && s.DefaultLimit > s.MaxLimit {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "server.default_limit",
			Message: "default_limit is greater than max_limit",
			Hint:    "requests without a limit will be capped at max_limit",
		})
	}
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

func validateRecords(result *ValidationResult, records []RecordConfig) {
	if len(records) == 0 {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "records",
			Message: "no record types configured",
			Hint:    "every /records request will return 404",
		})
		return
	}

	seen := make(map[string]bool, len(records))
	for i, rec := range records {
		field := fmt.Sprintf("records[%d]", i)
		if !identifierPattern.MatchString(rec.Name) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("invalid record name %q", rec.Name),
				Hint:    "use letters, digits and underscores",
			})
		} else if seen[rec.Name] {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("record %q is declared more than once", rec.Name),
			})
		}
		seen[rec.Name] = true

		if len(rec.Attributes) == 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field + ".attributes",
				Message: "at least one attribute is required",
			})
		}
		validateAssociations(result, field, rec)
	}
}

func validateAssociations(result *ValidationResult, prefix string, rec RecordConfig) {
	seen := make(map[string]bool, len(rec.Associations))
	for i, a := range rec.Associations {
		field := fmt.Sprintf("%s.associations[%d]", prefix, i)
		if !identifierPattern.MatchString(a.Name) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("invalid association name %q", a.Name),
			})
		} else if seen[a.Name] {
			result.Errors = append(result.Errors, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("%s already declares association %s", rec.Name, a.Name),
			})
		}
		seen[a.Name] = true

		a.Source.validate(field+".source", result)
	}
}

func (s *SourceConfig) validate(prefix string, result *ValidationResult) {
	switch s.Kind {
	case "sql":
		if s.URL != "" {
			result.Warnings = append(result.Warnings, ValidationWarning{
				Field:   prefix + ".url",
				Message: "url is ignored for sql sources",
			})
		}
		if s.MaxKeysPerQuery < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   prefix + ".max_keys_per_query",
				Message: "max_keys_per_query cannot be negative",
			})
		}
	case "http":
		parsed, err := url.Parse(s.URL)
		if s.URL == "" || err != nil || parsed.Scheme == "" || parsed.Host == "" {
			result.Errors = append(result.Errors, ValidationError{
				Field:   prefix + ".url",
				Message: fmt.Sprintf("invalid source url %q", s.URL),
				Hint:    "use an absolute http(s) URL",
			})
		}
		if s.Timeout < 0 {
			result.Errors = append(result.Errors, ValidationError{
				Field:   prefix + ".timeout",
				Message: "timeout cannot be negative",
			})
		}
	default:
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".kind",
			Message: fmt.Sprintf("invalid source kind %q", s.Kind),
			Hint:    "valid values are: sql, http",
		})
	}
}

func (o *ObservabilityConfig) validate(result *ValidationResult) {
	// Log level validation
	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[o.Logging.Level] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.level",
			Message: fmt.Sprintf("invalid log level %q", o.Logging.Level),
			Hint:    "valid values are: debug, info, warn, error",
		})
	}

	// Log format validation
	validLogFormats := map[string]bool{"json": true, "text": true}
	if !validLogFormats[o.Logging.Format] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.logging.format",
			Message: fmt.Sprintf("invalid log format %q", o.Logging.Format),
			Hint:    "valid values are: json, text",
		})
	}

	// OTLP protocol validation
	o.OTLP.validate("observability.otlp", result)

	// Signal-specific OTLP validation
	if o.Traces != nil {
		o.Traces.validate("observability.traces", result)
	}
	if o.Logs != nil {
		o.Logs.validate("observability.logs", result)
	}

	if o.TraceSampleRatio < 0 || o.TraceSampleRatio > 1 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   "observability.trace_sample_ratio",
			Message: fmt.Sprintf("trace_sample_ratio %v is out of range (0-1)", o.TraceSampleRatio),
		})
	}
	if !o.TracingEnabled && o.Logging.ExportsEnabled && o.OTLP.Endpoint == "" {
		result.Warnings = append(result.Warnings, ValidationWarning{
			Field:   "observability.otlp.endpoint",
			Message: "log export is enabled without an OTLP endpoint",
			Hint:    "set observability.otlp.endpoint or disable observability.logging.exports_enabled",
		})
	}
}

func (o *OTLPConfig) validate(prefix string, result *ValidationResult) {
	validProtocols := map[string]bool{"": true, "grpc": true, "http/protobuf": true}
	if !validProtocols[o.Protocol] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".protocol",
			Message: fmt.Sprintf("invalid OTLP protocol %q", o.Protocol),
			Hint:    "valid values are: grpc, http/protobuf",
		})
	}

	if o.Protocol == "http/protobuf" {
		if !validOTLPEndpoint(o.Endpoint) {
			result.Errors = append(result.Errors, ValidationError{
				Field:   prefix + ".endpoint",
				Message: fmt.Sprintf("invalid OTLP endpoint %q for http/protobuf", o.Endpoint),
				Hint:    "use host:port or a full URL",
			})
		}
	}

	validCompressions := map[string]bool{"": true, "none": true, "gzip": true}
	if !validCompressions[o.Compression] {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".compression",
			Message: fmt.Sprintf("invalid OTLP compression %q", o.Compression),
			Hint:    "valid values are: none, gzip",
		})
	}

	if o.RetryMaxAttempts < 0 {
		result.Errors = append(result.Errors, ValidationError{
			Field:   prefix + ".retry_max_attempts",
			Message: "retry_max_attempts cannot be negative",
		})
	}
}

func validOTLPEndpoint(endpoint string) bool {
	if endpoint == "" {
		return false
	}
	if strings.Contains(endpoint, "://") {
		parsed, err := url.Parse(endpoint)
		if err != nil {
			return false
		}
		return parsed.Host != ""
	}
	_, _, err := net.SplitHostPort(endpoint)
	return err == nil
}
