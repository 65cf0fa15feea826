// Package security stores source and sink credentials. The system keyring
// is preferred; when unavailable the manager falls back to AES-256-GCM
// encrypted files under the configuration directory, keyed by a PBKDF2
// master key derived from machine-specific data.
package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/zalando/go-keyring"
	"golang.org/x/crypto/pbkdf2"

	"mallard/internal/common"
)

const (
	keyringService   = "mallard"
	saltSize         = 32
	pbkdf2Iterations = 100000
	keySize          = 32
)

// CredentialManager handles secure storage and retrieval of credentials.
type CredentialManager struct {
	useKeyring bool
	masterKey  []byte
	baseDir    string
}

// Credential represents a stored credential.
type Credential struct {
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	Value     string            `json:"value"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Encrypted bool              `json:"encrypted"`
}

// NewCredentialManager creates a credential manager rooted at the default
// configuration directory.
func NewCredentialManager() (*CredentialManager, error) {
	home, _ := os.UserHomeDir()
	return NewCredentialManagerAt(filepath.Join(home, ".mallard", "credentials"))
}

// NewCredentialManagerAt creates a credential manager with an explicit
// storage directory for the file fallback.
func NewCredentialManagerAt(dir string) (*CredentialManager, error) {
	cm := &CredentialManager{
		useKeyring: isKeyringAvailable(),
		baseDir:    dir,
	}

	if !cm.useKeyring {
		key, err := cm.getMasterKey()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize master key: %w", err)
		}
		cm.masterKey = key
	}

	return cm, nil
}

// StoreCredential securely stores a credential.
func (cm *CredentialManager) StoreCredential(name, credType, value string, metadata map[string]string) error {
	if cm.useKeyring {
		return cm.storeInKeyring(name, credType, value, metadata)
	}
	return cm.storeEncrypted(name, credType, value, metadata)
}

// GetCredential retrieves a stored credential with its value decrypted.
func (cm *CredentialManager) GetCredential(name string) (*Credential, error) {
	if cm.useKeyring {
		return cm.getFromKeyring(name)
	}
	return cm.getEncrypted(name)
}

// DeleteCredential removes a stored credential.
func (cm *CredentialManager) DeleteCredential(name string) error {
	if cm.useKeyring {
		return keyring.Delete(keyringService, name)
	}
	return os.Remove(cm.credentialPath(name))
}

// ListCredentials returns the stored credential names. Only the file
// fallback supports listing; the keyring has no enumeration API.
func (cm *CredentialManager) ListCredentials() ([]string, error) {
	if cm.useKeyring {
		return nil, fmt.Errorf("listing is not supported by the system keyring")
	}

	entries, err := os.ReadDir(cm.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".cred") {
			names = append(names, strings.TrimSuffix(entry.Name(), ".cred"))
		}
	}
	return names, nil
}

func (cm *CredentialManager) storeInKeyring(name, credType, value string, metadata map[string]string) error {
	cred := Credential{Name: name, Type: credType, Value: value, Metadata: metadata}

	data, err := json.Marshal(cred)
	if err != nil {
		return fmt.Errorf("failed to marshal credential: %w", err)
	}
	if err := keyring.Set(keyringService, name, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

func (cm *CredentialManager) getFromKeyring(name string) (*Credential, error) {
	data, err := keyring.Get(keyringService, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get from keyring: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal([]byte(data), &cred); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credential: %w", err)
	}
	return &cred, nil
}

func (cm *CredentialManager) storeEncrypted(name, credType, value string, metadata map[string]string) error {
	encrypted, err := cm.encrypt(value)
	if err != nil {
		return fmt.Errorf("failed to encrypt credential: %w", err)
	}

	cred := Credential{
		Name:      name,
		Type:      credType,
		Value:     encrypted,
		Metadata:  metadata,
		Encrypted: true,
	}

	data, err := json.MarshalIndent(&cred, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(cm.baseDir, 0700); err != nil {
		return err
	}

	path, err := common.ValidatePath(cm.credentialPath(name), cm.baseDir)
	if err != nil {
		return fmt.Errorf("invalid credential file path: %w", err)
	}
	return os.WriteFile(path, data, 0600) // #nosec G304 - path is validated
}

func (cm *CredentialManager) getEncrypted(name string) (*Credential, error) {
	path, err := common.ValidatePath(cm.credentialPath(name), cm.baseDir)
	if err != nil {
		return nil, fmt.Errorf("invalid credential file path: %w", err)
	}

	data, err := os.ReadFile(path) // #nosec G304 - path is validated
	if err != nil {
		return nil, err
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, err
	}

	if cred.Encrypted {
		decrypted, err := cm.decrypt(cred.Value)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt credential: %w", err)
		}
		cred.Value = decrypted
		cred.Encrypted = false
	}
	return &cred, nil
}

func (cm *CredentialManager) encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(cm.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (cm *CredentialManager) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	block, err := aes.NewCipher(cm.masterKey)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, encryptedData := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, encryptedData, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// getMasterKey loads the file-fallback master key, generating and storing
// a new one on first use.
func (cm *CredentialManager) getMasterKey() ([]byte, error) {
	keyPath := filepath.Join(cm.baseDir, ".master")

	data, err := os.ReadFile(keyPath) // #nosec G304 - fixed name under baseDir
	if err == nil {
		if len(data) != saltSize+keySize {
			return nil, fmt.Errorf("invalid master key file size")
		}
		return data[saltSize:], nil
	}

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	key := pbkdf2.Key([]byte(getMachineID()), salt, pbkdf2Iterations, keySize, sha256.New)

	if err := os.MkdirAll(cm.baseDir, 0700); err != nil {
		return nil, err
	}
	if err := os.WriteFile(keyPath, append(salt, key...), 0600); err != nil {
		return nil, err
	}
	return key, nil
}

func (cm *CredentialManager) credentialPath(name string) string {
	return filepath.Join(cm.baseDir, name+".cred")
}

// isKeyringAvailable probes the system keyring with a throwaway entry.
func isKeyringAvailable() bool {
	const probe = "mallard-keyring-probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, probe)
	return true
}

func getMachineID() string {
	hostname, _ := os.Hostname()
	home, _ := os.UserHomeDir()
	return fmt.Sprintf("%s-%s-%s-mallard", hostname, home, runtime.GOOS)
}
