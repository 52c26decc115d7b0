package store

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/roach88/flowgrid/internal/catalog"
	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/ir"
)

//go:embed save.schema.json
var saveSchemaJSON []byte

// ErrInvalidDocument reports a save document that fails schema validation
// or cannot be decoded.
var ErrInvalidDocument = errors.New("invalid save document")

// ErrCatalogMismatch reports a save built against a different preset table.
var ErrCatalogMismatch = errors.New("save was built with a different catalog")

// Document is the persisted form of a game.
type Document struct {
	FormatVersion string     `json:"format_version"`
	EngineVersion string     `json:"engine_version"`
	CatalogDigest string     `json:"catalog_digest"`
	Game          game.State `json:"game"`
}

// NewDocument captures g's persistent state.
func NewDocument(g *game.Game) (Document, error) {
	cd, err := ir.CatalogDigest(g.Catalog())
	if err != nil {
		return Document{}, err
	}
	return Document{
		FormatVersion: ir.FormatVersion,
		EngineVersion: ir.EngineVersion,
		CatalogDigest: cd,
		Game:          g.State(),
	}, nil
}

// Restore rebuilds the game recorded in d. The catalog must be the one the
// document was saved with.
func (d Document) Restore(c *catalog.Catalog, opts ...game.Option) (*game.Game, error) {
	cd, err := ir.CatalogDigest(c)
	if err != nil {
		return nil, err
	}
	if cd != d.CatalogDigest {
		return nil, fmt.Errorf("%w: have %s, document %s", ErrCatalogMismatch, cd, d.CatalogDigest)
	}
	return game.Restore(c, d.Game, opts...)
}

var (
	schemaOnce sync.Once
	saveSchema *jsonschema.Schema
	schemaErr  error

	codecOnce sync.Once
	encoder   *zstd.Encoder
	decoder   *zstd.Decoder
	codecErr  error
)

// codecs returns the shared zstd encoder and decoder. Both are safe for
// concurrent EncodeAll and DecodeAll calls.
func codecs() (*zstd.Encoder, *zstd.Decoder, error) {
	codecOnce.Do(func() {
		encoder, codecErr = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if codecErr != nil {
			codecErr = fmt.Errorf("zstd encoder: %w", codecErr)
			return
		}
		decoder, codecErr = zstd.NewReader(nil)
		if codecErr != nil {
			codecErr = fmt.Errorf("zstd decoder: %w", codecErr)
		}
	})
	return encoder, decoder, codecErr
}

func documentSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource("save.schema.json", bytes.NewReader(saveSchemaJSON)); err != nil {
			schemaErr = err
			return
		}
		saveSchema, schemaErr = c.Compile("save.schema.json")
	})
	return saveSchema, schemaErr
}

// MarshalDocument returns the canonical JSON of d.
func MarshalDocument(d Document) ([]byte, error) {
	return ir.Canonical(d)
}

// UnmarshalDocument validates canonical JSON against the save schema and
// decodes it.
func UnmarshalDocument(data []byte) (Document, error) {
	schema, err := documentSchema()
	if err != nil {
		return Document{}, fmt.Errorf("compile save schema: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := schema.Validate(raw); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return d, nil
}

// EncodeDocument returns the zstd-compressed canonical JSON of d and its
// game digest.
func EncodeDocument(d Document) (blob []byte, digest string, err error) {
	data, err := MarshalDocument(d)
	if err != nil {
		return nil, "", fmt.Errorf("encode document: %w", err)
	}
	digest, err = ir.GameDigest(d.Game)
	if err != nil {
		return nil, "", err
	}
	enc, _, err := codecs()
	if err != nil {
		return nil, "", err
	}
	return enc.EncodeAll(data, nil), digest, nil
}

// DecodeDocument reverses EncodeDocument.
func DecodeDocument(blob []byte) (Document, error) {
	_, dec, err := codecs()
	if err != nil {
		return Document{}, err
	}
	data, err := dec.DecodeAll(blob, nil)
	if err != nil {
		return Document{}, fmt.Errorf("%w: decompress: %v", ErrInvalidDocument, err)
	}
	return UnmarshalDocument(data)
}
