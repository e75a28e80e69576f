// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines Signature, an ordered mapping from argument name to type
// tag. It is encoded as a JSON object whose key order is preserved in both
// directions, since the first entry names the independent variable.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SignatureEntry is one name/type pair of a Signature.
type SignatureEntry struct {
	Name string
	Type string
}

// Signature is an insertion-ordered name -> type mapping with unique names.
type Signature struct {
	entries []SignatureEntry
}

// NewSignature builds a signature from alternating name/type pairs. Later
// duplicates overwrite the type of the first occurrence.
func NewSignature(pairs ...string) Signature {
	if len(pairs)%2 != 0 {
		panic("model: NewSignature needs name/type pairs")
	}
	var s Signature
	for i := 0; i < len(pairs); i += 2 {
		s.Set(pairs[i], pairs[i+1])
	}
	return s
}

// Set inserts name with the given type, or updates the type in place.
func (s *Signature) Set(name, typ string) {
	for i := range s.entries {
		if s.entries[i].Name == name {
			s.entries[i].Type = typ
			return
		}
	}
	s.entries = append(s.entries, SignatureEntry{Name: name, Type: typ})
}

// Get returns the type recorded for name.
func (s Signature) Get(name string) (string, bool) {
	for _, e := range s.entries {
		if e.Name == name {
			return e.Type, true
		}
	}
	return "", false
}

// Has reports whether name is present.
func (s Signature) Has(name string) bool {
	_, ok := s.Get(name)
	return ok
}

// Len returns the number of entries.
func (s Signature) Len() int { return len(s.entries) }

// Entries returns the entries in order. The slice must not be modified.
func (s Signature) Entries() []SignatureEntry { return s.entries }

// Names returns the entry names in order.
func (s Signature) Names() []string {
	names := make([]string, len(s.entries))
	for i, e := range s.entries {
		names[i] = e.Name
	}
	return names
}

// Clone returns an independent copy.
func (s Signature) Clone() Signature {
	if s.entries == nil {
		return Signature{}
	}
	return Signature{entries: append([]SignatureEntry(nil), s.entries...)}
}

// Equal reports whether both signatures hold the same entries in the same order.
func (s Signature) Equal(o Signature) bool {
	if len(s.entries) != len(o.entries) {
		return false
	}
	for i := range s.entries {
		if s.entries[i] != o.entries[i] {
			return false
		}
	}
	return true
}

// String renders the signature like a JSON object, for log and CLI output.
func (s Signature) String() string {
	b, err := s.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("<invalid signature: %v>", err)
	}
	return string(b)
}

// MarshalJSON encodes the signature as a JSON object in entry order.
func (s Signature) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range s.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(e.Name)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(e.Type)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object, keeping the document's key order.
// null decodes to an empty signature. Duplicate keys are rejected.
func (s *Signature) UnmarshalJSON(data []byte) error {
	s.entries = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("signature must be a JSON object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("signature key must be a string, got %v", keyTok)
		}
		var typ string
		if err := dec.Decode(&typ); err != nil {
			return fmt.Errorf("signature entry '%s': type must be a string: %w", key, err)
		}
		if s.Has(key) {
			return fmt.Errorf("signature entry '%s' is declared more than once", key)
		}
		s.entries = append(s.entries, SignatureEntry{Name: key, Type: typ})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
