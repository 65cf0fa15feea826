package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"mallard/pkg/models"
)

const (
	encryptedPrefix = "ENC["
	encryptedSuffix = "]"
)

// getEncryptionKey derives the at-rest key from MALLARD_ENCRYPTION_KEY, or
// from a machine-specific string when the variable is unset.
func getEncryptionKey() []byte {
	if key := os.Getenv("MALLARD_ENCRYPTION_KEY"); key != "" {
		hash := sha256.Sum256([]byte(key))
		return hash[:]
	}

	hostname, _ := os.Hostname()
	homeDir, _ := os.UserHomeDir()
	machineID := fmt.Sprintf("%s-%s-mallard", hostname, homeDir)
	hash := sha256.Sum256([]byte(machineID))
	return hash[:]
}

// EncryptPassword encrypts a password with AES-256-GCM into ENC[...] form.
// Empty and already-encrypted values pass through unchanged.
func EncryptPassword(password string) (string, error) {
	if password == "" || IsEncrypted(password) {
		return password, nil
	}

	block, err := aes.NewCipher(getEncryptionKey())
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(password), nil)
	encoded := base64.StdEncoding.EncodeToString(ciphertext)

	return encryptedPrefix + encoded + encryptedSuffix, nil
}

// DecryptPassword reverses EncryptPassword. Values without the ENC[...]
// wrapper pass through unchanged.
func DecryptPassword(encrypted string) (string, error) {
	if encrypted == "" || !IsEncrypted(encrypted) {
		return encrypted, nil
	}

	encoded := strings.TrimPrefix(encrypted, encryptedPrefix)
	encoded = strings.TrimSuffix(encoded, encryptedSuffix)

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode encrypted password: %w", err)
	}

	block, err := aes.NewCipher(getEncryptionKey())
	if err != nil {
		return "", fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", fmt.Errorf("failed to create GCM: %w", err)
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt password: %w", err)
	}

	return string(plaintext), nil
}

// IsEncrypted checks for the ENC[...] wrapper.
func IsEncrypted(value string) bool {
	return strings.HasPrefix(value, encryptedPrefix) && strings.HasSuffix(value, encryptedSuffix)
}

// EncryptConfigPasswords encrypts every password field in a config.
func EncryptConfigPasswords(config *models.Config) error {
	encrypted, err := EncryptPassword(config.Mongo.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt mongo password: %w", err)
	}
	config.Mongo.Password = encrypted

	encrypted, err = EncryptPassword(config.Sink.Password)
	if err != nil {
		return fmt.Errorf("failed to encrypt sink password: %w", err)
	}
	config.Sink.Password = encrypted

	return nil
}

// DecryptConfigPasswords decrypts every password field in a config.
func DecryptConfigPasswords(config *models.Config) error {
	decrypted, err := DecryptPassword(config.Mongo.Password)
	if err != nil {
		return fmt.Errorf("failed to decrypt mongo password: %w", err)
	}
	config.Mongo.Password = decrypted

	decrypted, err = DecryptPassword(config.Sink.Password)
	if err != nil {
		return fmt.Errorf("failed to decrypt sink password: %w", err)
	}
	config.Sink.Password = decrypted

	return nil
}
