package backend

import (
	"crypto/ed25519"
	"encoding/binary"

	"github.com/lore-lml/bioenpro4to-channel-manager/internal/storage"
)

// signingBytes is the length-prefixed concatenation of the signed fields.
func signingBytes(channelID string, msg storage.Message) []byte {
	fields := [][]byte{
		[]byte(channelID),
		[]byte(msg.ID),
		[]byte(msg.Kind),
		msg.Public,
		msg.Private,
	}
	n := 0
	for _, f := range fields {
		n += binary.MaxVarintLen64 + len(f)
	}
	out := make([]byte, 0, n)
	for _, f := range fields {
		out = binary.AppendUvarint(out, uint64(len(f)))
		out = append(out, f...)
	}
	return out
}

func sign(priv ed25519.PrivateKey, channelID string, msg *storage.Message) {
	msg.Signature = ed25519.Sign(priv, signingBytes(channelID, *msg))
}

func verify(pub ed25519.PublicKey, channelID string, msg storage.Message) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, signingBytes(channelID, msg), msg.Signature)
}
