package keys

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var ErrWalletNotFound = errors.New("keys: wallet not found")

// KeyStore keeps wallet seeds on the local filesystem, one directory per
// wallet:
//
//	<Directory>/<wallet>/seed
//
// The seed file holds the hex-encoded BIP-39 seed and is created 0600.
type KeyStore struct {
	Directory string
}

func DefaultDirectory() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".xdao", "identity", "wallets"), nil
}

// OpenKeyStore returns a store rooted at directory, or at DefaultDirectory
// when directory is empty.
func OpenKeyStore(directory string) (*KeyStore, error) {
	if directory == "" {
		var err error
		directory, err = DefaultDirectory()
		if err != nil {
			return nil, err
		}
	}
	return &KeyStore{Directory: directory}, nil
}

func CheckWalletName(name string) error {
	if name == "" {
		return errors.New("wallet name cannot be empty")
	}
	for _, char := range name {
		if (char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') || (char >= '0' && char <= '9') || char == '-' || char == '_' {
			continue
		}
		return fmt.Errorf("invalid character %q in wallet name", char)
	}
	return nil
}

func (ks *KeyStore) seedPath(name string) string {
	return filepath.Join(ks.Directory, name, "seed")
}

// ParseSeedHex decodes a hex seed, tolerating a 0x prefix and surrounding space.
func ParseSeedHex(seedHex string) ([]byte, error) {
	seedHex = strings.TrimSpace(seedHex)
	seedHex = strings.TrimPrefix(seedHex, "0x")
	data, err := hex.DecodeString(seedHex)
	if err != nil {
		return nil, err
	}
	if len(data) < MinSeedSize {
		return nil, fmt.Errorf("expected seed of at least %d bytes, got %d", MinSeedSize, len(data))
	}
	return data, nil
}

// Create stores the seed for mnemonic under name and returns the seed file path.
func (ks *KeyStore) Create(name, mnemonic, passphrase string, overwrite bool) (string, error) {
	if err := CheckWalletName(name); err != nil {
		return "", err
	}
	seed, err := SeedFromMnemonic(mnemonic, passphrase)
	if err != nil {
		return "", err
	}
	path := ks.seedPath(name)
	if err := saveSeed(path, seed, overwrite); err != nil {
		return "", err
	}
	return path, nil
}

func saveSeed(path string, seed []byte, overwrite bool) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE
	if overwrite {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	file, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return err
	}
	defer file.Close()
	if _, err := file.WriteString(hex.EncodeToString(seed) + "\n"); err != nil {
		return err
	}
	return file.Close()
}

// Seed loads the stored seed for name.
func (ks *KeyStore) Seed(name string) ([]byte, error) {
	if err := CheckWalletName(name); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(ks.seedPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrWalletNotFound, name)
		}
		return nil, err
	}
	return ParseSeedHex(string(data))
}

// List returns the wallet names in the store, sorted.
func (ks *KeyStore) List() ([]string, error) {
	entries, err := os.ReadDir(ks.Directory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if _, err := os.Stat(ks.seedPath(entry.Name())); err == nil {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
