package protocol

const (
	// MaxFrameSize is the largest inbound frame accepted. Larger frames are
	// rejected by the transport before they reach the decoder.
	MaxFrameSize = 64 * 1024

	// MaxPayloadDepth limits JSON nesting inside an envelope payload.
	MaxPayloadDepth = 64
)

// payloadDepth returns the maximum object/array nesting depth of raw JSON.
// Brackets inside string literals are ignored.
func payloadDepth(raw []byte) int {
	depth, max := 0, 0
	inString, escaped := false, false
	for _, b := range raw {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > max {
				max = depth
			}
		case '}', ']':
			depth--
		}
	}
	return max
}
