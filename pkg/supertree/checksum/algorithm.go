package checksum

import (
	"crypto/md5"  //nolint:gosec // offered for legacy manifests
	"crypto/sha1" //nolint:gosec // offered for legacy manifests
	"crypto/sha256"
	"crypto/sha3"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"sort"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// DefaultAlgorithm is used when no algorithm is configured.
const DefaultAlgorithm = "sha256"

// ErrUnknownAlgorithm is returned by Lookup for unsupported names.
var ErrUnknownAlgorithm = errors.New("unsupported checksum algorithm")

// Algorithm names a digest and constructs fresh hash states for it.
type Algorithm struct {
	Name string
	Size int
	New  func() hash.Hash
}

var algorithms = map[string]Algorithm{
	"md5":        {Name: "md5", Size: md5.Size, New: md5.New},
	"sha1":       {Name: "sha1", Size: sha1.Size, New: sha1.New},
	"sha224":     {Name: "sha224", Size: sha256.Size224, New: sha256.New224},
	"sha256":     {Name: "sha256", Size: sha256.Size, New: sha256.New},
	"sha384":     {Name: "sha384", Size: sha512.Size384, New: sha512.New384},
	"sha512":     {Name: "sha512", Size: sha512.Size, New: sha512.New},
	"sha512_256": {Name: "sha512_256", Size: sha512.Size256, New: sha512.New512_256},
	"sha3-256": {Name: "sha3-256", Size: 32, New: func() hash.Hash {
		return sha3.New256()
	}},
	"sha3-512": {Name: "sha3-512", Size: 64, New: func() hash.Hash {
		return sha3.New512()
	}},
	"blake2b-256": {Name: "blake2b-256", Size: blake2b.Size256, New: func() hash.Hash {
		h, _ := blake2b.New256(nil)
		return h
	}},
	"blake2b-512": {Name: "blake2b-512", Size: blake2b.Size, New: func() hash.Hash {
		h, _ := blake2b.New512(nil)
		return h
	}},
}

// aliases accepts the spellings hashlib and coreutils users type.
var aliases = map[string]string{
	"sha-256":    "sha256",
	"sha-512":    "sha512",
	"sha3_256":   "sha3-256",
	"sha3_512":   "sha3-512",
	"blake2b":    "blake2b-512",
	"sha512-256": "sha512_256",
}

// Lookup returns the algorithm registered under name. Matching is
// case-insensitive.
func Lookup(name string) (Algorithm, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[key]; ok {
		key = alias
	}
	if a, ok := algorithms[key]; ok {
		return a, nil
	}
	return Algorithm{}, fmt.Errorf("%w: %q (available: %s)",
		ErrUnknownAlgorithm, name, strings.Join(Available(), ", "))
}

// Available returns the supported algorithm names, sorted.
func Available() []string {
	names := make([]string, 0, len(algorithms))
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
