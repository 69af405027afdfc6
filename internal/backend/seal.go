package backend

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/lore-lml/bioenpro4to-channel-manager/pkg/crypto/adaptive"
)

// authorState is what a session needs to resume authoring a channel.
type authorState struct {
	Seed       []byte `cbor:"1,keyasint"`
	ChannelID  string `cbor:"2,keyasint"`
	AnnounceID string `cbor:"3,keyasint"`
	Cursor     uint64 `cbor:"4,keyasint"`
}

// sealedBlob is the on-ledger and exported form of an authorState.
type sealedBlob struct {
	KDF        adaptive.KDFParams `cbor:"1,keyasint"`
	Salt       []byte             `cbor:"2,keyasint"`
	Ciphertext []byte             `cbor:"3,keyasint"`
}

// maxSealedLength bounds sealed records and exported session bytes.
const maxSealedLength = 64 << 10

// stateKeyInfo binds the HKDF subkey to author-state sealing.
const stateKeyInfo = "channel-manager author-state v1"

var (
	sealEnc cbor.EncMode
	sealDec cbor.DecMode
)

func init() {
	var err error
	if sealEnc, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic(err)
	}
	if sealDec, err = (cbor.DecOptions{DupMapKey: cbor.DupMapKeyEnforcedAPF}).DecMode(); err != nil {
		panic(err)
	}
}

// stateKey stretches password with Argon2id and derives the sealing
// subkey from the result. Costs above adaptive.MaxKDFParams are refused
// before any work is done.
func stateKey(password string, salt []byte, kdf adaptive.KDFParams) ([]byte, error) {
	if err := kdf.WithinLimit(adaptive.MaxKDFParams()); err != nil {
		return nil, err
	}
	master, err := adaptive.DeriveKeyWithParams([]byte(password), salt, kdf)
	if err != nil {
		return nil, err
	}
	defer adaptive.ZeroKey(master)
	return adaptive.DeriveSubkey(master, stateKeyInfo, adaptive.KeyLength)
}

// sealState encrypts st under a key derived from password. The channel ID
// is bound as additional data.
func sealState(st authorState, password string, kdf adaptive.KDFParams) ([]byte, error) {
	plain, err := sealEnc.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("encode author state: %w", err)
	}

	salt, err := adaptive.NewSalt()
	if err != nil {
		return nil, err
	}
	key, err := stateKey(password, salt, kdf)
	if err != nil {
		return nil, err
	}
	defer adaptive.ZeroKey(key)

	c, err := adaptive.NewAESGCM(key)
	if err != nil {
		return nil, err
	}
	ct, err := c.Encrypt(plain, []byte(st.ChannelID))
	if err != nil {
		return nil, err
	}

	return sealEnc.Marshal(sealedBlob{KDF: kdf, Salt: salt, Ciphertext: ct})
}

// openState reverses sealState. channelID must match the sealed record.
// It also returns the costs the record was sealed with.
func openState(data []byte, password, channelID string) (authorState, adaptive.KDFParams, error) {
	if len(data) > maxSealedLength {
		return authorState{}, adaptive.KDFParams{}, fmt.Errorf("sealed state is %d bytes, limit %d", len(data), maxSealedLength)
	}
	var blob sealedBlob
	if err := sealDec.Unmarshal(data, &blob); err != nil {
		return authorState{}, adaptive.KDFParams{}, fmt.Errorf("decode sealed state: %w", err)
	}

	key, err := stateKey(password, blob.Salt, blob.KDF)
	if err != nil {
		return authorState{}, blob.KDF, err
	}
	defer adaptive.ZeroKey(key)

	c, err := adaptive.NewAESGCM(key)
	if err != nil {
		return authorState{}, blob.KDF, err
	}
	plain, err := c.Decrypt(blob.Ciphertext, []byte(channelID))
	if err != nil {
		return authorState{}, blob.KDF, fmt.Errorf("open sealed state: %w", err)
	}

	var st authorState
	if err := sealDec.Unmarshal(plain, &st); err != nil {
		return authorState{}, blob.KDF, fmt.Errorf("decode author state: %w", err)
	}
	if st.ChannelID != channelID {
		return authorState{}, blob.KDF, fmt.Errorf("sealed state belongs to channel %s", st.ChannelID)
	}
	return st, blob.KDF, nil
}

// exportEnvelope wraps a sealed blob with the plaintext channel ID.
type exportEnvelope struct {
	ChannelID string `cbor:"1,keyasint"`
	Sealed    []byte `cbor:"2,keyasint"`
}
