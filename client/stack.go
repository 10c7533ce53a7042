package client

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/xssnick/tonutils-go/tvm/cell"
)

// Toncenter-style TVM stack wire codec, shared by the Toncenter,
// QuickNode and Tatum clients.

type stackCellValue struct {
	Bytes string `json:"bytes"`
}

// encodeStack converts canonical stack parameters into the
// [type, value] pair encoding the Toncenter V2 API expects.
func encodeStack(params []any) ([][2]any, error) {
	out := make([][2]any, 0, len(params))
	for _, p := range params {
		switch v := p.(type) {
		case *big.Int:
			out = append(out, [2]any{"num", "0x" + v.Text(16)})
		case *cell.Cell:
			out = append(out, [2]any{"cell", base64.StdEncoding.EncodeToString(v.ToBOC())})
		case *cell.Slice:
			c, err := v.ToCell()
			if err != nil {
				return nil, fmt.Errorf("client: encode slice: %w", err)
			}
			out = append(out, [2]any{"slice", base64.StdEncoding.EncodeToString(c.ToBOC())})
		default:
			return nil, fmt.Errorf("client: unsupported stack parameter type %T", p)
		}
	}
	return out, nil
}

// decodeStack parses a Toncenter V2 result stack into canonical items.
// Null cells decode to nil.
func decodeStack(raw []json.RawMessage) ([]any, error) {
	out := make([]any, 0, len(raw))
	for i, item := range raw {
		var pair []json.RawMessage
		if err := json.Unmarshal(item, &pair); err != nil {
			return nil, fmt.Errorf("client: stack item %d: %w", i, err)
		}
		if len(pair) != 2 {
			return nil, fmt.Errorf("client: stack item %d: expected [type, value] pair", i)
		}

		var kind string
		if err := json.Unmarshal(pair[0], &kind); err != nil {
			return nil, fmt.Errorf("client: stack item %d type: %w", i, err)
		}

		switch kind {
		case "num":
			var s string
			if err := json.Unmarshal(pair[1], &s); err != nil {
				return nil, fmt.Errorf("client: stack item %d num: %w", i, err)
			}
			n, err := parseStackNum(s)
			if err != nil {
				return nil, fmt.Errorf("client: stack item %d: %w", i, err)
			}
			out = append(out, n)

		case "cell", "slice":
			c, err := parseStackCell(pair[1])
			if err != nil {
				return nil, fmt.Errorf("client: stack item %d %s: %w", i, kind, err)
			}
			if c == nil {
				out = append(out, nil)
			} else if kind == "slice" {
				out = append(out, c.BeginParse())
			} else {
				out = append(out, c)
			}

		case "null":
			out = append(out, nil)

		default:
			return nil, fmt.Errorf("client: stack item %d: unsupported type %q", i, kind)
		}
	}
	return out, nil
}

func parseStackNum(s string) (*big.Int, error) {
	neg := strings.HasPrefix(s, "-")
	v := strings.TrimPrefix(s, "-")
	base := 10
	if strings.HasPrefix(v, "0x") {
		v = strings.TrimPrefix(v, "0x")
		base = 16
	}
	n, ok := new(big.Int).SetString(v, base)
	if !ok {
		return nil, fmt.Errorf("invalid number %q", s)
	}
	if neg {
		n.Neg(n)
	}
	return n, nil
}

// parseStackCell accepts either a bare base64 string or the
// {"bytes": ...} object form used in responses.
func parseStackCell(raw json.RawMessage) (*cell.Cell, error) {
	var b64 string
	if err := json.Unmarshal(raw, &b64); err != nil {
		var obj stackCellValue
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("unexpected cell encoding: %s", string(raw))
		}
		b64 = obj.Bytes
	}
	if b64 == "" {
		return nil, nil
	}

	boc, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("invalid base64: %w", err)
	}
	return cell.FromBOC(boc)
}
