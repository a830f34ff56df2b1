package types

// redactedPlaceholder is the string used to replace secret values in logs
// and serialization.
const redactedPlaceholder = "***REDACTED***"

// redactedJSON is the pre-computed JSON encoding of the redacted placeholder.
var redactedJSON = []byte(`"***REDACTED***"`)

// SecretString is a string type that prevents accidental logging or
// serialization of sensitive values (the payload sealing key, the
// database URL). It overrides String() and MarshalJSON() to return a
// redacted placeholder.
//
// Use Unmask() to retrieve the raw plaintext value when it is genuinely
// needed, e.g. deriving the sealing key or opening a database pool.
type SecretString string

// String returns a redacted placeholder instead of the raw value.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value of the secret. Usage should be
// limited to the call sites that hand the value to a driver or cipher.
func (s SecretString) Unmask() string {
	return string(s)
}
