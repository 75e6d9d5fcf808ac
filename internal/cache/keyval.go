// SPDX-License-Identifier: MPL-2.0

package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Key derives a keyval key from its parts. Parts are separated by a NUL byte
// so ("ab", "c") and ("a", "bc") differ.
func Key(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns the value stored under namespace/key.
func (c *Cache) Get(namespace, key string) (string, bool, error) {
	data, err := os.ReadFile(c.keyvalPath(namespace, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s/%s: %w", namespace, key, err)
	}
	return string(data), true, nil
}

// Put stores value under namespace/key, replacing any previous value.
func (c *Cache) Put(namespace, key, value string) error {
	if err := c.writeAtomic(c.keyvalPath(namespace, key), []byte(value)); err != nil {
		return fmt.Errorf("write %s/%s: %w", namespace, key, err)
	}
	return nil
}

// Keys are hashed so any string is a safe file name.
func (c *Cache) keyvalPath(namespace, key string) string {
	return filepath.Join(c.root, keyvalDir, namespace, Key(key))
}
