package utils

import (
	"fmt"
	"log"
	"strings"
)

// LogEvent prints one standardized line with module, action and request id.
// Keep QR contents and passenger details out of message.
func LogEvent(requestID, module, action, message string) {
	req := strings.TrimSpace(requestID)
	if req == "" {
		req = "-"
	}
	log.Printf("[%s] action=%s request_id=%s msg=%s", strings.ToUpper(module), action, req, message)
}

// Fields renders alternating keys and values as "k=v k=v". Empty values are
// skipped; a trailing key without a value is ignored.
func Fields(kv ...any) string {
	parts := make([]string, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		v := fmt.Sprint(kv[i+1])
		if v == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%v=%s", kv[i], v))
	}
	return strings.Join(parts, " ")
}
