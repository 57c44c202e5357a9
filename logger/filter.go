package logger

import (
	"net/http"
	"net/url"
	"strings"
)

// DefaultMaskValue replaces sensitive values in log output.
const DefaultMaskValue = "***"

// FilterConfig defines the configuration for sensitive data filtering
type FilterConfig struct {
	// SensitiveFields holds key fragments; any key containing one is masked.
	SensitiveFields []string
	// MaskValue replaces sensitive data (default: "***")
	MaskValue string
}

// DefaultFilterConfig covers credentials that travel with admin API calls.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password", "passwd", "secret",
			"token", "bearer", "jwt",
			"api_key", "apikey",
			"authorization", "cookie",
			"credential",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks values whose keys look like credentials.
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a new filter with the given configuration
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString filters sensitive data from string values
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if f.isSensitiveField(key) {
		return f.maskString(value)
	}
	return value
}

// FilterValue masks value when key is sensitive and otherwise descends one
// level into string-keyed maps and HTTP headers.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	if f.isSensitiveField(key) {
		if s, ok := value.(string); ok {
			return f.maskString(s)
		}
		return f.config.MaskValue
	}

	switch v := value.(type) {
	case map[string]any:
		return f.FilterFields(v)
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[k] = f.FilterString(k, s)
		}
		return out
	case http.Header:
		out := make(http.Header, len(v))
		for k, vals := range v {
			if f.isSensitiveField(k) {
				out[k] = []string{f.config.MaskValue}
				continue
			}
			out[k] = append([]string(nil), vals...)
		}
		return out
	default:
		return value
	}
}

// FilterFields filters a map of fields for sensitive data
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for key, value := range fields {
		filtered[key] = f.FilterValue(key, value)
	}
	return filtered
}

func (f *SensitiveDataFilter) isSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, sensitive := range f.config.SensitiveFields {
		if strings.Contains(lower, strings.ToLower(sensitive)) {
			return true
		}
	}
	return false
}

func (f *SensitiveDataFilter) maskString(value string) string {
	if value == "" {
		return value
	}
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return f.maskURL(value)
	}
	return f.config.MaskValue
}

// maskURL hides a password in the user info and keeps the rest of the URL.
// URLs without a password are returned unchanged.
func (f *SensitiveDataFilter) maskURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return f.config.MaskValue
	}
	if parsed.User == nil {
		return raw
	}
	if _, hasPassword := parsed.User.Password(); !hasPassword {
		return raw
	}

	var b strings.Builder
	b.WriteString(parsed.Scheme)
	b.WriteString("://")
	b.WriteString(parsed.User.Username())
	b.WriteByte(':')
	b.WriteString(f.config.MaskValue)
	b.WriteByte('@')
	b.WriteString(parsed.Host)
	b.WriteString(parsed.EscapedPath())
	if parsed.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(parsed.RawQuery)
	}
	if parsed.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(parsed.Fragment)
	}
	return b.String()
}
