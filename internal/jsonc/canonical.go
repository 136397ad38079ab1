// Package jsonc implements the canonical JSON form used throughout the core
// for hashing card content and structured review responses: UTF-8, no
// whitespace beyond the minimum, keys sorted lexicographically at every
// object level.
package jsonc

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Marshal renders v as canonical JSON. v is typically a map[string]any
// decoded from JSON or built directly by an adapter.
func Marshal(v any) ([]byte, error) {
	var b strings.Builder
	if err := encode(&b, v); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

// Hash returns the SHA-256 hex digest of v's canonical JSON form. This is
// the content fingerprint: equal fingerprints imply identical content.
func Hash(v any) (string, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

func encode(b *strings.Builder, v any) error {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		encodeString(b, val)
	case json.Number:
		b.WriteString(string(val))
	case float64:
		b.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case int:
		b.WriteString(strconv.Itoa(val))
	case int64:
		b.WriteString(strconv.FormatInt(val, 10))
	case map[string]any:
		return encodeObject(b, val)
	case []any:
		return encodeArray(b, val)
	default:
		return fmt.Errorf("jsonc: unsupported value of type %T", v)
	}
	return nil
}

func encodeObject(b *strings.Builder, m map[string]any) error {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		encodeString(b, k)
		b.WriteByte(':')
		if err := encode(b, m[k]); err != nil {
			return err
		}
	}
	b.WriteByte('}')
	return nil
}

func encodeArray(b *strings.Builder, a []any) error {
	b.WriteByte('[')
	for i, elem := range a {
		if i > 0 {
			b.WriteByte(',')
		}
		if err := encode(b, elem); err != nil {
			return err
		}
	}
	b.WriteByte(']')
	return nil
}

func encodeString(b *strings.Builder, s string) {
	raw, _ := json.Marshal(s)
	b.Write(raw)
}

// Decode parses JSON bytes into the any-tree (map[string]any / []any /
// json.Number / string / bool / nil) that Marshal and Hash expect, using
// json.Number instead of float64 so integers round-trip exactly.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
