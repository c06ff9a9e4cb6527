// Package keys provides agent signing keys.
//
// API stability:
//
// Stable:
//   - Signer implementations for Ed25519 and Dilithium3, Verify, and seed derivation.
//     Signatures are always computed over action hash bytes.
//
// Experimental:
//   - Filesystem-backed seed storage (FileStore) and the in-memory Keystore registry.
//     These are local-first utilities and may change in minor releases.
package keys
