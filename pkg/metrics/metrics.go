package metrics

// Namespace prefixes every metric this service exports.
const Namespace = "tinytales"

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
