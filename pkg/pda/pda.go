// Package pda derives program-derived keys by Keccak256-hashing
// literal byte concatenations: no separators, no length prefixes, the
// seed bytes exactly as documented on each derivation.
package pda

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
)

// VaultAuthority derives the PDA authorizing transfers out of a
// market's vault token account: hash("vault" || slab_key, program_id).
func VaultAuthority(slabKey, programID [32]byte) [32]byte {
	buf := append([]byte("vault"), slabKey[:]...)
	buf = append(buf, programID[:]...)
	return [32]byte(crypto.Keccak256Hash(buf))
}

// LPSigner derives the per-LP PDA a delegated-match cross-program call
// must be signed by: hash("lp" || slab_key || lp_idx_le, program_id).
func LPSigner(slabKey [32]byte, lpIdx uint16, programID [32]byte) [32]byte {
	var idxLE [2]byte
	binary.LittleEndian.PutUint16(idxLE[:], lpIdx)

	buf := append([]byte("lp"), slabKey[:]...)
	buf = append(buf, idxLE[:]...)
	buf = append(buf, programID[:]...)
	return [32]byte(crypto.Keccak256Hash(buf))
}
