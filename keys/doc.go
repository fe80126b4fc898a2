// Package keys derives identity public keys from a wallet seed.
//
// Stable:
//   - Mnemonic handling, per-key seed derivation and the public key records
//     built from derived keys.
//
// Experimental:
//   - Filesystem-backed seed storage (KeyStore). It is a local-first
//     convenience for the CLI and may change in minor releases.
package keys
