package signer

import (
	"crypto/sha256"
	"errors"
)

var (
	errWrongPassphrase = errors.New("signer: wrong passphrase")
	errLocked          = errors.New("signer: keystore is locked")
	errNoSuchKey       = errors.New("signer: no such key bundle")
)

func hashPassphrase(p string) [32]byte {
	return sha256.Sum256([]byte(p))
}
