// Package tep64 decodes TEP-64 token metadata cells, shared by the
// jetton and nft packages.
package tep64

import (
	"crypto/sha256"
	"math/big"

	"github.com/xssnick/tonutils-go/tvm/cell"
)

const (
	tagOnChain  = 0x00
	tagOffChain = 0x01
	tagSnake    = 0x00
	tagChunked  = 0x01
)

// Content is decoded token metadata. Off-chain content carries only the
// URI; on-chain content fills Attributes with the well-known keys.
type Content struct {
	URI        string
	Attributes map[string]string
}

// wellKnownKeys are the attribute names the standard defines for
// jettons and NFTs.
var wellKnownKeys = []string{
	"uri", "name", "description", "image", "image_data",
	"symbol", "decimals", "amount_style", "render_type",
}

// Get returns an on-chain attribute value.
func (c *Content) Get(key string) string {
	if c == nil || c.Attributes == nil {
		return ""
	}
	return c.Attributes[key]
}

// Parse decodes a metadata cell. Unknown layouts yield an empty Content
// rather than an error, matching how wallets treat malformed metadata.
func Parse(c *cell.Cell) *Content {
	out := &Content{}
	if c == nil {
		return out
	}

	s := c.BeginParse()
	tag, err := s.LoadUInt(8)
	if err != nil {
		return out
	}

	switch tag {
	case tagOffChain:
		raw, err := s.LoadStringSnake()
		if err == nil {
			out.URI = raw
		}
	case tagOnChain:
		dict, err := s.LoadDict(256)
		if err != nil {
			return out
		}
		out.Attributes = map[string]string{}
		for _, key := range wellKnownKeys {
			v, err := dict.LoadValueByIntKey(keyHash(key))
			if err != nil {
				continue
			}
			if val, ok := loadAttribute(v); ok {
				out.Attributes[key] = val
			}
		}
		out.URI = out.Attributes["uri"]
	}
	return out
}

// keyHash returns the dict key for an attribute name, sha256 over the
// name as an unsigned 256-bit int.
func keyHash(name string) *big.Int {
	h := sha256.Sum256([]byte(name))
	return new(big.Int).SetBytes(h[:])
}

// loadAttribute reads a dict value: the payload sits either directly in
// the slice or in its first ref, prefixed with a snake or chunked tag.
func loadAttribute(s *cell.Slice) (string, bool) {
	if s.BitsLeft() == 0 && s.RefsNum() > 0 {
		ref, err := s.LoadRef()
		if err != nil {
			return "", false
		}
		s = ref
	}

	tag, err := s.LoadUInt(8)
	if err != nil || tag != tagSnake {
		// Chunked content is rare enough that callers fall back to
		// the off-chain URI for it.
		return "", false
	}
	raw, err := s.LoadStringSnake()
	if err != nil {
		return "", false
	}
	return raw, true
}
