// Package md5 provides the MD5 content fingerprint used for downloaded resources.
package md5

import (
	"crypto/md5" //nolint:gosec // fingerprint format is fixed by the collector contract
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// BlockSize is the read size used when fingerprinting a stored file.
const BlockSize = 4096

// Hasher implements crawler.Hasher using MD5.
type Hasher struct{}

// New returns an MD5 hasher.
func New() *Hasher {
	return &Hasher{}
}

// HashFile reads the file at path in BlockSize chunks and returns its hex digest.
func (h *Hasher) HashFile(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 -- path is produced by the scratch store.
	if err != nil {
		return "", fmt.Errorf("open for hashing: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	digest := md5.New() //nolint:gosec
	buf := make([]byte, BlockSize)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			digest.Write(buf[:n]) //nolint:errcheck // hash.Hash never returns an error
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return "", fmt.Errorf("read for hashing: %w", readErr)
		}
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}
