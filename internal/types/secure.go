package types

import "log/slog"

const redactedPlaceholder = "***REDACTED***"

// SecretString holds credentials such as the database URL or the weather
// provider key. fmt and encoding/json both see a placeholder; call Unmask at
// the single point where the raw value is handed to a driver or client.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(`"` + redactedPlaceholder + `"`), nil
}

// LogValue keeps slog from printing the secret when a config struct is logged.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

// Unmask returns the raw plaintext value of the secret.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsEmpty reports whether no secret was configured.
func (s SecretString) IsEmpty() bool {
	return s == ""
}
