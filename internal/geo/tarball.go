package geo

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// ErrMMDBNotFound is returned when an archive carries no .mmdb entry.
var ErrMMDBNotFound = errors.New("no .mmdb file in archive")

const (
	tarBlockSize  = 512
	tarNameOffset = 0
	tarNameLength = 100
	tarSizeOffset = 124
	tarSizeLength = 12
)

// ExtractMMDB gunzips a tar.gz archive and returns the first entry whose name ends in
// ".mmdb".
func ExtractMMDB(archive []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, fmt.Errorf("failed to open gzip stream: %w", err)
	}
	defer zr.Close()

	tarball, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress archive: %w", err)
	}
	return findMMDB(tarball)
}

// findMMDB walks raw ustar blocks: a 512-byte header with the NUL-padded name at
// [0,100) and the octal size at [124,136), followed by the data padded to 512 bytes.
// An empty name marks the end of the archive.
func findMMDB(tarball []byte) ([]byte, error) {
	offset := 0
	for offset+tarBlockSize <= len(tarball) {
		header := tarball[offset : offset+tarBlockSize]

		name := strings.TrimRight(string(header[tarNameOffset:tarNameOffset+tarNameLength]), "\x00")
		if name == "" {
			break
		}

		sizeField := strings.Trim(string(header[tarSizeOffset:tarSizeOffset+tarSizeLength]), "\x00 ")
		size := int64(0)
		if sizeField != "" {
			parsed, err := strconv.ParseInt(sizeField, 8, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid size for tar entry %q: %w", name, err)
			}
			size = parsed
		}

		if size < 0 {
			return nil, fmt.Errorf("invalid size %d for tar entry %q", size, name)
		}
		dataStart := offset + tarBlockSize
		if size > int64(len(tarball)-dataStart) {
			return nil, fmt.Errorf("tar entry %q is truncated", name)
		}
		dataEnd := dataStart + int(size)

		if strings.HasSuffix(name, ".mmdb") {
			data := make([]byte, size)
			copy(data, tarball[dataStart:dataEnd])
			return data, nil
		}

		padded := (size + tarBlockSize - 1) / tarBlockSize * tarBlockSize
		offset = dataStart + int(padded)
	}
	return nil, ErrMMDBNotFound
}
