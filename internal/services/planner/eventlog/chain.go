package eventlog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
)

// ComputeHash hashes an entry's content together with its predecessor's hash.
func ComputeHash(prevHash string, e Entry) string {
	h := sha256.New()
	for _, part := range []string{
		prevHash,
		strconv.FormatUint(e.Seq, 10),
		string(e.EntityKind),
		e.EntityID,
		string(e.Kind),
		strconv.FormatInt(e.OccurredAt.UTC().UnixMilli(), 10),
		string(e.Payload),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Seal assigns seq and chain hashes to an entry following prevHash.
func Seal(e Entry, seq uint64, prevHash string) Entry {
	e.Seq = seq
	e.PrevHash = prevHash
	e.Hash = ComputeHash(prevHash, e)
	return e
}

// ChainError reports the first entry whose linkage or content hash is wrong.
type ChainError struct {
	Seq    uint64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("event chain broken at seq %d: %s", e.Seq, e.Reason)
}

// Verifier checks entries one at a time, in order.
type Verifier struct {
	lastSeq  uint64
	lastHash string
}

// NewVerifier starts verification after a known seq and hash; use zero
// values to verify from the beginning of the log.
func NewVerifier(afterSeq uint64, afterHash string) *Verifier {
	return &Verifier{lastSeq: afterSeq, lastHash: afterHash}
}

// Check verifies the next entry and advances the verifier.
func (v *Verifier) Check(e Entry) error {
	if e.Seq != v.lastSeq+1 {
		return &ChainError{Seq: e.Seq, Reason: fmt.Sprintf("expected seq %d", v.lastSeq+1)}
	}
	if e.PrevHash != v.lastHash {
		return &ChainError{Seq: e.Seq, Reason: "previous hash mismatch"}
	}
	if ComputeHash(e.PrevHash, e) != e.Hash {
		return &ChainError{Seq: e.Seq, Reason: "content hash mismatch"}
	}
	v.lastSeq = e.Seq
	v.lastHash = e.Hash
	return nil
}

// Last returns the last verified seq and hash.
func (v *Verifier) Last() (uint64, string) {
	return v.lastSeq, v.lastHash
}
