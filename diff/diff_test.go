package diff

import (
	"encoding/base64"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solharness/solharness/account"
	"github.com/solharness/solharness/internal/pointer"
)

var (
	testOwner = solana.SystemProgramID
	testAddr  = solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
)

func newSnapshot(lamports uint64, data []byte) account.Snapshot {
	return account.Snapshot{
		Address:  testAddr,
		Lamports: lamports,
		Owner:    testOwner,
		Data:     data,
		Slot:     10,
	}
}

func Test_Diff(t *testing.T) {
	t.Parallel()

	otherOwner := solana.MustPublicKeyFromBase58("BPFLoaderUpgradeab1e11111111111111111111111")

	counterSchema := Schema{
		{Name: "count", Offset: 0, Type: FieldTypeU64},
		{Name: "authority", Offset: 8, Type: FieldTypePubkey},
	}

	tests := []struct {
		name   string
		prev   *account.Snapshot
		next   *account.Snapshot
		schema Schema
		want   ChangeSet
	}{
		{
			name: "identical snapshots yield empty set",
			prev: pointer.To(newSnapshot(100, []byte{1, 2, 3})),
			next: pointer.To(newSnapshot(100, []byte{1, 2, 3})),
			want: ChangeSet{},
		},
		{
			name: "both absent",
			want: ChangeSet{},
		},
		{
			name: "lamports change",
			prev: pointer.To(newSnapshot(1000, nil)),
			next: pointer.To(newSnapshot(800, nil)),
			want: ChangeSet{
				FieldLamports: {Old: uint64(1000), New: uint64(800)},
			},
		},
		{
			name: "owner change",
			prev: pointer.To(newSnapshot(100, nil)),
			next: func() *account.Snapshot {
				s := newSnapshot(100, nil)
				s.Owner = otherOwner

				return &s
			}(),
			want: ChangeSet{
				FieldOwner: {Old: testOwner.String(), New: otherOwner.String()},
			},
		},
		{
			name: "opaque data change without schema",
			prev: pointer.To(newSnapshot(100, []byte{1, 2, 3})),
			next: pointer.To(newSnapshot(100, []byte{1, 2, 4})),
			want: ChangeSet{
				FieldData: {
					Old: base64.StdEncoding.EncodeToString([]byte{1, 2, 3}),
					New: base64.StdEncoding.EncodeToString([]byte{1, 2, 4}),
				},
			},
		},
		{
			name:   "schema field change",
			prev:   pointer.To(newSnapshot(100, counterData(7, testOwner))),
			next:   pointer.To(newSnapshot(100, counterData(8, testOwner))),
			schema: counterSchema,
			want: ChangeSet{
				"count": {Old: uint64(7), New: uint64(8)},
			},
		},
		{
			name:   "unchanged schema fields are omitted",
			prev:   pointer.To(newSnapshot(100, counterData(7, testOwner))),
			next:   pointer.To(newSnapshot(100, counterData(7, testOwner))),
			schema: counterSchema,
			want:   ChangeSet{},
		},
		{
			name: "created account reports nil old values",
			next: pointer.To(newSnapshot(500, []byte{0xff})),
			want: ChangeSet{
				FieldLamports: {Old: nil, New: uint64(500)},
				FieldOwner:    {Old: nil, New: testOwner.String()},
				FieldData:     {Old: nil, New: base64.StdEncoding.EncodeToString([]byte{0xff})},
			},
		},
		{
			name: "deleted account reports nil new values",
			prev: pointer.To(newSnapshot(500, nil)),
			want: ChangeSet{
				FieldLamports: {Old: uint64(500), New: nil},
				FieldOwner:    {Old: testOwner.String(), New: nil},
			},
		},
		{
			name:   "schema field truncated past data end decodes to nil",
			prev:   pointer.To(newSnapshot(100, counterData(7, testOwner))),
			next:   pointer.To(newSnapshot(100, []byte{1})),
			schema: counterSchema,
			want: ChangeSet{
				"count":     {Old: uint64(7), New: nil},
				"authority": {Old: testOwner.String(), New: nil},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := Diff(tt.prev, tt.next, tt.schema)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_Diff_Deterministic(t *testing.T) {
	t.Parallel()

	prev := pointer.To(newSnapshot(1000, []byte{1, 2, 3}))
	next := pointer.To(newSnapshot(800, []byte{9, 9, 9}))

	first := Diff(prev, next, nil)
	for range 10 {
		assert.Equal(t, first, Diff(prev, next, nil))
	}
	assert.Equal(t, []string{FieldData, FieldLamports}, first.Fields())
}

func Test_ExtractField(t *testing.T) {
	t.Parallel()

	schema := Schema{
		{Name: "count", Offset: 0, Type: FieldTypeU64},
		{Name: "tag", Offset: 8, Size: 2, Type: FieldTypeBytes},
	}
	snap := newSnapshot(123, []byte{5, 0, 0, 0, 0, 0, 0, 0, 0xab, 0xcd})

	tests := []struct {
		name    string
		field   string
		want    any
		wantErr error
	}{
		{name: "built-in lamports", field: FieldLamports, want: uint64(123)},
		{name: "built-in owner", field: FieldOwner, want: testOwner.String()},
		{name: "schema u64", field: "count", want: uint64(5)},
		{name: "schema bytes as hex", field: "tag", want: "abcd"},
		{name: "unknown field", field: "missing", wantErr: ErrUnknownField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ExtractField(snap, schema, tt.field)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func Test_Schema_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		schema  Schema
		wantErr string
	}{
		{
			name:   "valid schema",
			schema: Schema{{Name: "count", Offset: 0, Type: FieldTypeU64}},
		},
		{
			name:    "missing name",
			schema:  Schema{{Offset: 0, Type: FieldTypeU64}},
			wantErr: "name is required",
		},
		{
			name:    "reserved name",
			schema:  Schema{{Name: "lamports", Offset: 0, Type: FieldTypeU64}},
			wantErr: "name is reserved",
		},
		{
			name: "duplicate name",
			schema: Schema{
				{Name: "count", Offset: 0, Type: FieldTypeU64},
				{Name: "count", Offset: 8, Type: FieldTypeU64},
			},
			wantErr: "duplicate name",
		},
		{
			name:    "bytes field without size",
			schema:  Schema{{Name: "blob", Offset: 0, Type: FieldTypeBytes}},
			wantErr: "missing size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.schema.Validate()
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)

				return
			}
			require.NoError(t, err)
		})
	}
}

// counterData lays out a u64 count followed by a pubkey authority.
func counterData(count uint64, authority solana.PublicKey) []byte {
	data := make([]byte, 8+solana.PublicKeyLength)
	data[0] = byte(count)
	data[1] = byte(count >> 8)
	data[2] = byte(count >> 16)
	data[3] = byte(count >> 24)
	data[4] = byte(count >> 32)
	data[5] = byte(count >> 40)
	data[6] = byte(count >> 48)
	data[7] = byte(count >> 56)
	copy(data[8:], authority.Bytes())

	return data
}
