package auth

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/feral-file/card-registry/internal/adapter"
	"github.com/feral-file/card-registry/internal/domain"
)

// Payload is the message an address signs to authorize one invocation
type Payload struct {
	Contract string          `json:"contract"`
	Method   domain.Method   `json:"method"`
	Args     json.RawMessage `json:"args"`
	Address  domain.Address  `json:"address"`
	Nonce    uint64          `json:"nonce,string"`
}

// Authorization is a signed approval of an invocation by Address
type Authorization struct {
	Address   domain.Address `json:"address"`
	Nonce     uint64         `json:"nonce"`
	Signature string         `json:"signature"`
}

// Codec turns payloads into the canonical bytes that get signed
type Codec struct {
	json adapter.JSON
	jcs  adapter.JCS
}

// NewCodec creates a payload codec
func NewCodec(jsonAdapter adapter.JSON, jcsAdapter adapter.JCS) *Codec {
	return &Codec{
		json: jsonAdapter,
		jcs:  jcsAdapter,
	}
}

// Encode returns the RFC 8785 canonical form of p.
// Missing args are encoded as an empty object. Numbers in args are signed as
// strings holding their literal text, so token ids above 2^53 stay exact.
func (c *Codec) Encode(p Payload) ([]byte, error) {
	if len(p.Args) == 0 || string(p.Args) == "null" {
		p.Args = json.RawMessage("{}")
	} else {
		args, err := bindNumbers(p.Args)
		if err != nil {
			return nil, err
		}
		p.Args = args
	}

	raw, err := c.json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	canonical, err := c.jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize payload: %w", err)
	}

	return canonical, nil
}

// bindNumbers rewrites every JSON number in args as a string of its literal text.
// JCS serializes numbers as IEEE-754 doubles, which would merge distinct large ids.
func bindNumbers(args json.RawMessage) (json.RawMessage, error) {
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: malformed args: %v", domain.ErrInvalidArgument, err)
	}

	out, err := json.Marshal(numbersToStrings(v))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal args: %w", err)
	}
	return out, nil
}

func numbersToStrings(v any) any {
	switch t := v.(type) {
	case json.Number:
		return t.String()
	case map[string]any:
		for k, e := range t {
			t[k] = numbersToStrings(e)
		}
		return t
	case []any:
		for i, e := range t {
			t[i] = numbersToStrings(e)
		}
		return t
	default:
		return v
	}
}
