package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/contextguard/contextguard/internal/assert"
	"github.com/ucarion/jcs"
)

// CalculateEventHash links a SecurityEvent into the append-only chain:
// SHA-256(prevHash || RFC8785-canonical-JSON(payload)). Canonicalizing
// the payload before hashing means two events that are structurally
// identical but serialize with a different key order still chain to the
// same hash, so the chain can't be defeated by re-marshaling.
//
// prevHash must be a 64-character hex string (the genesis event's
// prevHash is 64 zeros); payload must not be nil.
func CalculateEventHash(prevHash string, payload interface{}) (string, error) {
	if err := assert.Check(prevHash != "", "prevHash must be non-empty"); err != nil {
		return "", err
	}
	if err := assert.Check(len(prevHash) == 64, "prevHash must be a 64-character hex digest"); err != nil {
		return "", err
	}
	if err := assert.Check(payload != nil, "payload must not be nil"); err != nil {
		return "", err
	}

	asJSON, err := json.Marshal(payload)
	if err := assert.Check(err == nil, "marshaling event payload: %v", err); err != nil {
		return "", err
	}

	// Round-trip through interface{} so jcs.Format sees plain JSON values
	// rather than whatever concrete struct/map type the caller passed.
	var generic interface{}
	if err := json.Unmarshal(asJSON, &generic); err != nil {
		return "", assert.Check(false, "re-parsing event payload for canonicalization: %v", err)
	}

	canonical, err := jcs.Format(generic)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil)), nil
}
