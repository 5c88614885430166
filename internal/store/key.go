package store

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Key is the content key of a cached object: a stable hash identifying the
// cached resource, unique per object.
type Key [md5.Size]byte

func KeyForURL(url string) Key {
	return md5.Sum([]byte(url))
}

func ParseKey(text string) (Key, error) {
	raw, err := hex.DecodeString(text)
	if err != nil {
		return Key{}, fmt.Errorf("invalid content key %q: %w", text, err)
	}
	if len(raw) != md5.Size {
		return Key{}, fmt.Errorf("invalid content key %q: want %d bytes, got %d", text, md5.Size, len(raw))
	}
	var k Key
	copy(k[:], raw)
	return k, nil
}

func (k Key) String() string {
	return hex.EncodeToString(k[:])
}
