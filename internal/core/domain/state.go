package domain

// EncryptedState is the plaintext record of an exported daily channel. It is
// only ever persisted after sealing.
type EncryptedState struct {
	SessionBytes      []byte `cbor:"1,keyasint"`
	Category          string `cbor:"2,keyasint"`
	ActorID           string `cbor:"3,keyasint"`
	CreationTimestamp int64  `cbor:"4,keyasint"`
	Password          string `cbor:"5,keyasint"`
	Mainnet           bool   `cbor:"6,keyasint"`
}
