package observability

import "go.uber.org/zap"

// redacted is what every secret renders as in logs and evidence.
const redacted = "***"

// Secret returns a log field whose value is always redacted. Attach this
// instead of the raw value whenever a credential or proxy password would
// otherwise end up in structured output.
func Secret(key string) zap.Field {
	return zap.String(key, redacted)
}

// RedactString collapses a non-empty secret to the redaction marker while
// keeping empty values empty, so logs still show whether a secret was set.
func RedactString(s string) string {
	if s == "" {
		return ""
	}
	return redacted
}
