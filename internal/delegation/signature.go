package delegation

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// digestPrefix domain-separates delegated-call digests from any other
// signed material.
const digestPrefix = "TutelaDelegatedCall"

// RequestDigest computes the canonical digest a delegating principal signs:
// keccak256 over the prefix, the chain scope, the target wallet, the hash of
// the raw payload bytes, the nonce and the deadline. The payload is hashed
// as received, so the signature stays independent of how the command is
// later decoded.
func RequestDigest(chainScope uint64, wallet common.Address, payload []byte, nonce uint64, deadline int64) common.Hash {
	packed := make([]byte, 0, len(digestPrefix)+8+common.AddressLength+common.HashLength+8+8)
	packed = append(packed, digestPrefix...)
	packed = binary.BigEndian.AppendUint64(packed, chainScope)
	packed = append(packed, wallet.Bytes()...)
	packed = append(packed, crypto.Keccak256(payload)...)
	packed = binary.BigEndian.AppendUint64(packed, nonce)
	packed = binary.BigEndian.AppendUint64(packed, uint64(deadline))
	return common.BytesToHash(crypto.Keccak256(packed))
}

// RecoverSigner recovers the signing account from a 65-byte [R || S || V]
// signature over the request digest.
func RecoverSigner(digest common.Hash, signature []byte) (common.Address, error) {
	pub, err := crypto.SigToPub(digest.Bytes(), signature)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(*pub), nil
}
