// Package ledger is a single-node development ledger: a transaction pool that
// admits unsigned transactions through the runtime's validation rule, and a
// block producer that executes them in order and publishes blocks with their
// events.
package ledger

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/StrathCole/ocw-bridge/pkg/signing"
)

// Hash identifies a transaction or a block.
type Hash [32]byte

// String renders the hash as 0x-prefixed hex.
func (h Hash) String() string {
	return "0x" + hex.EncodeToString(h[:])
}

// MarshalJSON encodes the hash as a hex string.
func (h Hash) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.String())
}

// UnmarshalJSON decodes a hex string, with or without the 0x prefix.
func (h *Hash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseHash(s)
	if err != nil {
		return err
	}
	*h = parsed
	return nil
}

// ParseHash parses a 32 byte hex hash.
func ParseHash(s string) (Hash, error) {
	var h Hash
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return h, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) != len(h) {
		return h, fmt.Errorf("invalid hash %q: want %d bytes, got %d", s, len(h), len(b))
	}
	copy(h[:], b)
	return h, nil
}

// TransactionSource says where a transaction came from.
type TransactionSource int

const (
	// SourceInBlock marks a transaction being re-checked during block production.
	SourceInBlock TransactionSource = iota
	// SourceLocal marks a transaction submitted by this node's own worker.
	SourceLocal
	// SourceExternal marks a transaction received from another party.
	SourceExternal
)

func (s TransactionSource) String() string {
	switch s {
	case SourceInBlock:
		return "in_block"
	case SourceLocal:
		return "local"
	case SourceExternal:
		return "external"
	}
	return "unknown"
}

// Call is a dispatchable runtime operation.
type Call interface {
	// CallName is the operation name.
	CallName() string
	// Encode returns the canonical bytes of the call arguments.
	Encode() []byte
}

// Event is emitted by a successful dispatch.
type Event interface {
	EventName() string
}

// Origin is the dispatch origin: none for unsigned transactions, or a signed
// account.
type Origin struct {
	account *signing.Public
}

// NoneOrigin is the origin of unsigned transactions.
func NoneOrigin() Origin { return Origin{} }

// SignedOrigin is the origin of a transaction signed by account.
func SignedOrigin(account signing.Public) Origin { return Origin{account: &account} }

// IsNone reports whether the origin carries no account.
func (o Origin) IsNone() bool { return o.account == nil }

// Account returns the signing account, if any.
func (o Origin) Account() (signing.Public, bool) {
	if o.account == nil {
		return signing.Public{}, false
	}
	return *o.account, true
}

// Transaction is an unsigned transaction. Any proof of origin lives inside the call.
type Transaction struct {
	Call Call
}

// NewUnsignedTransaction wraps call in an unsigned transaction.
func NewUnsignedTransaction(call Call) Transaction {
	return Transaction{Call: call}
}

// Hash is blake2b-256 over the call name and its encoding.
func (t Transaction) Hash() Hash {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(t.Call.CallName()))
	h.Write([]byte{0})
	h.Write(t.Call.Encode())

	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Tag is a de-duplication key. At most one pending transaction may provide a
// given tag.
type Tag string

// ValidTransaction is the admission decision for an accepted transaction.
type ValidTransaction struct {
	Priority  uint64
	Provides  []Tag
	Longevity uint64 // blocks
	Propagate bool
}

// ValidTransactionBuilder builds a ValidTransaction whose tags share a prefix.
type ValidTransactionBuilder struct {
	prefix string
	vt     ValidTransaction
}

// ValidTransactionWithTagPrefix starts a builder. Every tag added with
// AndProvides is prefixed with prefix.
func ValidTransactionWithTagPrefix(prefix string) *ValidTransactionBuilder {
	return &ValidTransactionBuilder{prefix: prefix, vt: ValidTransaction{Longevity: 1}}
}

// Priority sets the priority.
func (b *ValidTransactionBuilder) Priority(p uint64) *ValidTransactionBuilder {
	b.vt.Priority = p
	return b
}

// AndProvides adds a provided tag.
func (b *ValidTransactionBuilder) AndProvides(data string) *ValidTransactionBuilder {
	b.vt.Provides = append(b.vt.Provides, Tag(b.prefix+"/"+data))
	return b
}

// Longevity sets the number of blocks the transaction stays valid.
func (b *ValidTransactionBuilder) Longevity(blocks uint64) *ValidTransactionBuilder {
	b.vt.Longevity = blocks
	return b
}

// Propagate sets whether other nodes may gossip the transaction.
func (b *ValidTransactionBuilder) Propagate(p bool) *ValidTransactionBuilder {
	b.vt.Propagate = p
	return b
}

// Build returns the decision.
func (b *ValidTransactionBuilder) Build() ValidTransaction {
	vt := b.vt
	vt.Provides = append([]Tag(nil), b.vt.Provides...)
	return vt
}

// Validator decides whether an unsigned transaction may enter the pool.
// Implementations must be pure and safe for concurrent use.
type Validator interface {
	ValidateUnsigned(source TransactionSource, call Call) (ValidTransaction, error)
}

// Runtime validates and executes calls.
type Runtime interface {
	Validator
	Dispatch(origin Origin, call Call) ([]Event, error)
}

// Block is a produced block.
type Block struct {
	Height     uint64    `json:"height"`
	Hash       Hash      `json:"hash"`
	Parent     Hash      `json:"parent"`
	Time       time.Time `json:"time"`
	Extrinsics []Hash    `json:"extrinsics"`
	Events     []Event   `json:"-"`
}
