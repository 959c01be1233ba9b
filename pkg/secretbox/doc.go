// Package secretbox seals environment-variable values with AES-256-GCM.
// The ciphertext is opaque: nonce prepended, authenticated, safe to store.
package secretbox
