package payment

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Fingerprint hashes an action and its payload into the input hash bound to a
// payment instrument. Binding the instrument to the exact requested work
// prevents payload substitution after the request is priced.
func Fingerprint(action string, payload json.RawMessage) string {
	h := sha256.New()
	h.Write([]byte(action))
	h.Write([]byte{0})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}
