package transfer

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// AES-256-GCM with a 16-byte nonce and 16-byte tag. The nonce and tag are
// stored hex-encoded on the record at a fixed 32 characters each; the tag is
// split off the sealed output so the persisted layout keeps ciphertext and
// tag separate.
const (
	ivSize  = 16
	tagSize = 16

	ivHexLen  = ivSize * 2
	tagHexLen = tagSize * 2
)

// deriveKey hashes the transfer key string into a 32-byte AES key. The
// 6-digit key is the only secret input; confidentiality rests on the key's
// short lifetime and transport secrecy, not on derived-key strength.
func deriveKey(transferKey string) []byte {
	sum := sha256.Sum256([]byte(transferKey))
	return sum[:]
}

func newAEAD(transferKey string) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(transferKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}
	return aead, nil
}

// Encrypt seals plaintext under a key derived from the transfer key,
// using a fresh random nonce. Returns the ciphertext plus the hex-encoded
// IV and auth tag for the record.
func Encrypt(plaintext []byte, transferKey string) (ciphertext []byte, ivHex, tagHex string, err error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, "", "", fmt.Errorf("generate iv: %w", err)
	}

	aead, err := newAEAD(transferKey)
	if err != nil {
		return nil, "", "", err
	}

	sealed := aead.Seal(nil, iv, plaintext, nil)
	ciphertext = sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	return ciphertext, hex.EncodeToString(iv), hex.EncodeToString(tag), nil
}

// Decrypt opens ciphertext sealed by Encrypt. Malformed IV or tag material
// fails with ErrInvalidEncryptionMaterial before any cipher work; a tag
// that does not verify fails with ErrAuthenticationFailed, never with
// silently corrupted plaintext.
func Decrypt(ciphertext []byte, transferKey, ivHex, tagHex string) ([]byte, error) {
	if len(ivHex) != ivHexLen {
		return nil, fmt.Errorf("%w: iv must be %d hex chars, got %d", ErrInvalidEncryptionMaterial, ivHexLen, len(ivHex))
	}
	if len(tagHex) != tagHexLen {
		return nil, fmt.Errorf("%w: auth tag must be %d hex chars, got %d", ErrInvalidEncryptionMaterial, tagHexLen, len(tagHex))
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil {
		return nil, fmt.Errorf("%w: bad iv encoding", ErrInvalidEncryptionMaterial)
	}
	tag, err := hex.DecodeString(tagHex)
	if err != nil {
		return nil, fmt.Errorf("%w: bad auth tag encoding", ErrInvalidEncryptionMaterial)
	}

	aead, err := newAEAD(transferKey)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}
	return plaintext, nil
}
