package eventid

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/peakyragnar/nova/pkg/event"
)

// Prefix is the domain separator for the EventId hash construction,
// preventing collisions with unrelated SHA-256 uses in the system.
const Prefix = "eidV1"

// Compute returns the 64-hex EventId for e, per Interface-Pack §3:
//
//	eventId = SHA256("eidV1" || scopeId || lane || entityIdentityKey
//	                  || sourceTruthTime || canonicalPayload)
//
// canonicalPayload is the raw bytes for the Raw lane, or the RFC-8785
// canonical JSON of payload/data for the other four lanes. This function
// is pure and must produce byte-identical output to any conforming
// implementation in any language (Testable Property 1).
func Compute(e event.Event) (string, error) {
	hashKey, err := e.HashKey()
	if err != nil {
		return "", err
	}

	payload, err := e.CanonicalPayload()
	if err != nil {
		return "", err
	}
	canonicalPayload, err := CanonicalizeAny(payload)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(Prefix))
	h.Write([]byte(e.ScopeID))
	h.Write([]byte(e.Lane))
	h.Write([]byte(hashKey))
	h.Write([]byte(e.SourceTruthTime))
	h.Write(canonicalPayload)

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Verify computes e's EventId and reports whether it matches e.EventID.
// An empty e.EventID is not a match (callers should assign rather than
// verify in that case).
func Verify(e event.Event) (computed string, matches bool, err error) {
	computed, err = Compute(e)
	if err != nil {
		return "", false, err
	}
	return computed, computed == e.EventID, nil
}
