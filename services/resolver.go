package services

import (
	"encoding/json"
	"strconv"
	"strings"

	"ticketpass/models"
)

// identifierKeys are checked in order against a structured QR payload. The
// ticket QR payloads carry tokenId; id/ticketId cover manually built codes.
var identifierKeys = []string{"id", "ticketId", "tokenId"}

// ResolveTicketCode canonicalizes a scanned or typed ticket code into a
// lookup key. JSON object payloads must carry an identifier field; any
// non-object input is taken verbatim (trimmed) so manual entry keeps working.
// It fails only when the payload parses as an object but holds no usable
// identifier.
func ResolveTicketCode(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", models.ErrMalformedCode
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		// Not a structured payload; the code itself is the key.
		return trimmed, nil
	}

	for _, key := range identifierKeys {
		if id, ok := identifierValue(payload[key]); ok {
			return id, nil
		}
	}
	return "", models.ErrMalformedCode
}

func identifierValue(v any) (string, bool) {
	switch id := v.(type) {
	case string:
		if s := strings.TrimSpace(id); s != "" {
			return s, true
		}
	case float64:
		// QR payloads encode numeric token ids as JSON numbers.
		return strconv.FormatInt(int64(id), 10), true
	}
	return "", false
}
