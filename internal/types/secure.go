package types

const redactedPlaceholder = "***REDACTED***"

var redactedJSON = []byte(`"` + redactedPlaceholder + `"`)

// SecretString holds credentials (API keys, DSNs) loaded from config. It
// renders as a placeholder through fmt and encoding/json so that config
// dumps and structured logs never carry the raw value.
type SecretString string

// String returns the redacted placeholder.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw value. Call sites are limited to building
// Authorization headers and connection strings.
func (s SecretString) Unmask() string {
	return string(s)
}
