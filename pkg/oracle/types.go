// Package oracle is the on-ledger price module: the bounded price window, the
// admission rule for unsigned price submissions and their execution.
package oracle

import (
	"encoding/binary"

	"github.com/StrathCole/ocw-bridge/pkg/signing"
)

// CallSubmitPrice is the name of the only dispatchable operation.
const CallSubmitPrice = "submit_price_unsigned_with_signed_payload"

// EventNewPrice is the name of the event emitted after every append.
const EventNewPrice = "NewPrice"

// payloadDomain separates payload signatures from any other use of the key.
const payloadDomain = "ocw-bridge/price-payload/v1"

// PricePayload is the signed body of a price submission.
type PricePayload struct {
	Price  uint64         `json:"price"`
	Public signing.Public `json:"public"`
}

// SigningBytes is the deterministic encoding that is signed and verified:
// domain || price (u64 BE) || len(scheme) (u8) || scheme || len(key) (u16 BE) || key.
func (p PricePayload) SigningBytes() []byte {
	scheme := []byte(p.Public.Scheme)
	buf := make([]byte, 0, len(payloadDomain)+8+1+len(scheme)+2+len(p.Public.Key))
	buf = append(buf, payloadDomain...)
	buf = binary.BigEndian.AppendUint64(buf, p.Price)
	buf = append(buf, byte(len(scheme)))
	buf = append(buf, scheme...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(p.Public.Key)))
	buf = append(buf, p.Public.Key...)
	return buf
}

// SubmitPriceCall submits a signed price payload as an unsigned transaction.
type SubmitPriceCall struct {
	Payload   PricePayload `json:"payload"`
	Signature []byte       `json:"signature"`
}

// CallName implements ledger.Call.
func (c *SubmitPriceCall) CallName() string { return CallSubmitPrice }

// Encode implements ledger.Call.
func (c *SubmitPriceCall) Encode() []byte {
	buf := c.Payload.SigningBytes()
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(c.Signature)))
	return append(buf, c.Signature...)
}

// Verify checks the signature against the payload and its declared identity.
func (c *SubmitPriceCall) Verify() bool {
	return signing.Verify(c.Payload.Public, c.Payload.SigningBytes(), c.Signature)
}

// NewPrice is emitted after every successful append. Origin is nil when the
// price was not attributed to an identity.
type NewPrice struct {
	Origin *signing.Public `json:"origin"`
	Price  uint64          `json:"price"`
}

// EventName implements ledger.Event.
func (NewPrice) EventName() string { return EventNewPrice }
