package stream

// TagUnknown is the tag for payloads with no recognizable shape.
const TagUnknown = "UNKNOWN"

// Classify maps a decoded payload to a short type tag. Array-shaped
// messages are tagged by their leading verb ("EVENT", "EOSE", "NOTICE",
// ...), object-shaped messages by their "type" field. The tag is for
// display and filtering only, never for protocol logic.
func Classify(payload any) string {
	switch v := payload.(type) {
	case []any:
		if len(v) == 0 {
			return TagUnknown
		}
		if verb, ok := v[0].(string); ok && verb != "" {
			return verb
		}
		return TagUnknown
	case map[string]any:
		if t, ok := v["type"].(string); ok && t != "" {
			return t
		}
		return TagUnknown
	default:
		return TagUnknown
	}
}
