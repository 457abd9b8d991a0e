package devnet

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-faster/errors"
)

const nodeKeyFile = "node.key"

// keystore keeps secrets of the client as hex files in a directory.
type keystore struct {
	dir string
}

func openKeystore(dir string) (keystore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return keystore{}, errors.Wrap(err, "create keystore")
	}
	f, err := os.Open(dir)
	if err != nil {
		return keystore{}, errors.Wrap(err, "open keystore")
	}
	defer f.Close()
	if _, err := f.Readdirnames(1); err != nil && !errors.Is(err, io.EOF) {
		return keystore{}, errors.Wrap(err, "read keystore")
	}
	return keystore{dir: dir}, nil
}

// nodeKey loads the key used to authenticate against the node, generating it
// on first use.
func (k keystore) nodeKey() (ed25519.PrivateKey, error) {
	seed, err := k.read(nodeKeyFile)
	if errors.Is(err, os.ErrNotExist) {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			return nil, err
		}
		if err := k.write(nodeKeyFile, seed); err != nil {
			return nil, err
		}
		return ed25519.NewKeyFromSeed(seed), nil
	}
	if err != nil {
		return nil, err
	}
	if len(seed) != ed25519.SeedSize {
		return nil, errors.Errorf("node key has %d bytes", len(seed))
	}
	return ed25519.NewKeyFromSeed(seed), nil
}

func (k keystore) saveAccountSeed(accountID, seed []byte) error {
	return k.write(hex.EncodeToString(accountID)+".seed", seed)
}

func (k keystore) read(name string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(k.dir, name))
	if err != nil {
		return nil, err
	}
	b, err := hex.DecodeString(strings.TrimSpace(string(data)))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", name)
	}
	return b, nil
}

func (k keystore) write(name string, b []byte) error {
	path := filepath.Join(k.dir, name)
	if err := os.WriteFile(path, []byte(hex.EncodeToString(b)), 0o600); err != nil {
		return errors.Wrapf(err, "write %s", name)
	}
	return nil
}
