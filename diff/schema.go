package diff

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"github.com/solharness/solharness/account"
)

// FieldType enumerates the primitive encodings a schema field may use to
// decode a byte range of account data. Integer types are little-endian, per
// the ledger's on-chain convention.
type FieldType string

const (
	FieldTypeU8     FieldType = "u8"
	FieldTypeU16    FieldType = "u16"
	FieldTypeU32    FieldType = "u32"
	FieldTypeU64    FieldType = "u64"
	FieldTypeI64    FieldType = "i64"
	FieldTypePubkey FieldType = "pubkey"
	FieldTypeBytes  FieldType = "bytes"
)

// size returns the number of bytes the field type occupies, or 0 if the size
// is determined by the field definition itself.
func (t FieldType) size() int {
	switch t {
	case FieldTypeU8:
		return 1
	case FieldTypeU16:
		return 2
	case FieldTypeU32:
		return 4
	case FieldTypeU64, FieldTypeI64:
		return 8
	case FieldTypePubkey:
		return solana.PublicKeyLength
	default:
		return 0
	}
}

// Field maps a byte range of account data to a named, typed value.
type Field struct {
	Name   string    `json:"name"`
	Offset int       `json:"offset"`
	Size   int       `json:"size,omitempty"` // required for bytes fields, derived otherwise
	Type   FieldType `json:"type"`
}

// width returns the number of bytes the field occupies.
func (f Field) width() int {
	if n := f.Type.size(); n > 0 {
		return n
	}

	return f.Size
}

// Schema is an externally supplied mapping of account data byte offsets to
// named fields. It is consumed only by the diff engine and assertion
// evaluation; account data with no schema is treated as an opaque blob.
type Schema []Field

// Validate checks that every field has a known type, a usable width and a
// non-empty name that does not collide with the built-in field names.
func (s Schema) Validate() error {
	seen := make(map[string]struct{}, len(s))
	for _, f := range s {
		if f.Name == "" {
			return fmt.Errorf("schema field at offset %d: name is required", f.Offset)
		}
		if f.Name == FieldLamports || f.Name == FieldOwner || f.Name == FieldData {
			return fmt.Errorf("schema field %q: name is reserved", f.Name)
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("schema field %q: duplicate name", f.Name)
		}
		seen[f.Name] = struct{}{}

		if f.Offset < 0 {
			return fmt.Errorf("schema field %q: negative offset", f.Name)
		}
		if f.width() <= 0 {
			return fmt.Errorf("schema field %q: unknown type %q or missing size", f.Name, f.Type)
		}
	}

	return nil
}

// decode extracts the field's value from raw account data. Fields that lie
// fully or partially beyond the end of the data decode to nil.
func (f Field) decode(data []byte) any {
	end := f.Offset + f.width()
	if f.Offset < 0 || end > len(data) {
		return nil
	}
	raw := data[f.Offset:end]

	switch f.Type {
	case FieldTypeU8:
		return uint64(raw[0])
	case FieldTypeU16:
		return uint64(binary.LittleEndian.Uint16(raw))
	case FieldTypeU32:
		return uint64(binary.LittleEndian.Uint32(raw))
	case FieldTypeU64:
		return binary.LittleEndian.Uint64(raw)
	case FieldTypeI64:
		return int64(binary.LittleEndian.Uint64(raw))
	case FieldTypePubkey:
		return solana.PublicKeyFromBytes(raw).String()
	case FieldTypeBytes:
		return hex.EncodeToString(raw)
	default:
		return nil
	}
}

// SchemaProvider resolves the optional data schema for an account. A nil
// provider, or a provider returning a nil schema, means the account's data is
// compared and extracted as an opaque blob.
type SchemaProvider func(address solana.PublicKey) Schema

// ExtractField returns the value of a named field from a snapshot. The
// built-in fields "lamports", "owner" and "data" are always available; any
// other name is resolved against the supplied schema.
func ExtractField(snap account.Snapshot, schema Schema, name string) (any, error) {
	switch name {
	case FieldLamports:
		return snap.Lamports, nil
	case FieldOwner:
		return snap.Owner.String(), nil
	case FieldData:
		return encodeData(snap.Data), nil
	}

	for _, f := range schema {
		if f.Name == name {
			return f.decode(snap.Data), nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
}
