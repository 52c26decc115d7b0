package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/roach88/flowgrid/internal/catalog"
	"github.com/roach88/flowgrid/internal/game"
	"github.com/roach88/flowgrid/internal/world"
)

// Domain prefixes for content digests. The version suffix allows the
// document encoding to change without colliding with old digests.
const (
	DomainMap     = "flowgrid/map/v1"
	DomainCatalog = "flowgrid/catalog/v1"
	DomainGame    = "flowgrid/game/v1"
	DomainEdit    = "flowgrid/edit/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data). The null byte keeps
// the domain/data boundary unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest returns the domain-separated digest of v's canonical JSON.
func Digest(domain string, v any) (string, error) {
	canonical, err := Canonical(v)
	if err != nil {
		return "", fmt.Errorf("digest %s: %w", domain, err)
	}
	return hashWithDomain(domain, canonical), nil
}

// MapDigest identifies a map. Canonicalize the map first; two maps that
// differ only in machine order hash differently.
func MapDigest(m world.Map) (string, error) {
	return Digest(DomainMap, m)
}

// catalogEntry is the hashed form of one preset.
type catalogEntry struct {
	Preset catalog.Preset `json:"preset"`
	Index  int            `json:"index"`
}

// CatalogDigest identifies a preset table. Saves record it so a game is
// never loaded against presets it was not built with.
func CatalogDigest(c *catalog.Catalog) (string, error) {
	entries := make([]catalogEntry, c.Len())
	for i := range entries {
		p, _ := c.Preset(i)
		entries[i] = catalogEntry{Preset: p, Index: i}
	}
	return Digest(DomainCatalog, entries)
}

// GameDigest identifies the persistent state of a game, undo history
// included.
func GameDigest(st game.State) (string, error) {
	return Digest(DomainGame, st)
}

// EditDigest identifies one journaled edit.
func EditDigest(e game.Edit) (string, error) {
	return Digest(DomainEdit, e)
}

// MustMapDigest is like MapDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustMapDigest(m world.Map) string {
	d, err := MapDigest(m)
	if err != nil {
		panic(err)
	}
	return d
}

// MustGameDigest is like GameDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustGameDigest(st game.State) string {
	d, err := GameDigest(st)
	if err != nil {
		panic(err)
	}
	return d
}
