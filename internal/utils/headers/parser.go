package headers

import (
	"fmt"
	"net/http"
	"strings"
)

// ParseHeaders converts "Key: Value" strings into a map of canonical header
// names. Malformed entries are returned as an error so bad flags fail early.
func ParseHeaders(h []string) (map[string]string, error) {
	m := make(map[string]string, len(h))
	for _, hdr := range h {
		parts := strings.SplitN(hdr, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid header %q: expected \"Key: Value\"", hdr)
		}
		name := strings.TrimSpace(parts[0])
		if name == "" || strings.ContainsAny(name, " \t") {
			return nil, fmt.Errorf("invalid header name in %q", hdr)
		}
		m[http.CanonicalHeaderKey(name)] = strings.TrimSpace(parts[1])
	}
	return m, nil
}

// ToInterfaceMap adapts headers to the shape the DevTools protocol expects
func ToInterfaceMap(h map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
