// Package store persists sleeping documents.
//
// Snapshots are encoded as YAML. Backends that hold opaque payloads compress
// them with zstd; Decode accepts either form.
package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"gopkg.in/yaml.v3"

	"github.com/jacoelho/xmldoc"
)

// ErrNotFound is returned when no snapshot is stored under an id.
var ErrNotFound = errors.New("snapshot not found")

// Store saves and loads document snapshots by id.
type Store interface {
	Save(ctx context.Context, id string, s *xmldoc.Snapshot) error
	Load(ctx context.Context, id string) (*xmldoc.Snapshot, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

var (
	encoder = sync.OnceValues(func() (*zstd.Encoder, error) { return zstd.NewWriter(nil) })
	decoder = sync.OnceValues(func() (*zstd.Decoder, error) { return zstd.NewReader(nil) })
)

// Encode serializes s as YAML, compressed with zstd when compress is set.
func Encode(s *xmldoc.Snapshot, compress bool) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("encode snapshot: nil snapshot")
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	if !compress {
		return data, nil
	}
	enc, err := encoder()
	if err != nil {
		return nil, fmt.Errorf("compress snapshot: %w", err)
	}
	return enc.EncodeAll(data, nil), nil
}

// Decode parses a payload produced by Encode.
func Decode(data []byte) (*xmldoc.Snapshot, error) {
	if bytes.HasPrefix(data, zstdMagic) {
		dec, err := decoder()
		if err != nil {
			return nil, fmt.Errorf("decompress snapshot: %w", err)
		}
		plain, err := dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress snapshot: %w", err)
		}
		data = plain
	}
	var s xmldoc.Snapshot
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

func checkID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("snapshot id is empty")
	case strings.ContainsAny(id, `/\`), id == ".", id == "..":
		return fmt.Errorf("snapshot id %q is not a plain name", id)
	}
	return nil
}

func notFound(id string) error {
	return fmt.Errorf("snapshot %q: %w", id, ErrNotFound)
}
