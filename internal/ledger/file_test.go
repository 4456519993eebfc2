package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileStore_LoadMissingFile(t *testing.T) {
	t.Parallel()

	store, err := NewFileStore(filepath.Join(t.TempDir(), "key_usage.json"))
	require.NoError(t, err)

	_, ok, err := store.Load()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestFileStore_SaveThenLoadRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "key_usage.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	want := State{
		CurrentKeyIndex: 2,
		UsageCounts:     []int{10, 0, 7},
		LastResetMonth:  4,
	}
	require.NoError(t, store.Save(want))

	got, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestFileStore_SaveOverwritesAtomically(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "key_usage.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)

	require.NoError(t, store.Save(State{UsageCounts: []int{1}}))
	require.NoError(t, store.Save(State{UsageCounts: []int{2}}))

	got, ok, err := store.Load()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []int{2}, got.UsageCounts)

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestFileStore_LoadCorruptFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "key_usage.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store, err := NewFileStore(path)
	require.NoError(t, err)

	_, _, err = store.Load()
	require.Error(t, err)
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		in       State
		poolSize int
		want     State
	}{
		{
			name:     "pads short counts",
			in:       State{CurrentKeyIndex: 1, UsageCounts: []int{3}},
			poolSize: 3,
			want:     State{CurrentKeyIndex: 1, UsageCounts: []int{3, 0, 0}},
		},
		{
			name:     "truncates long counts",
			in:       State{UsageCounts: []int{1, 2, 3, 4}},
			poolSize: 2,
			want:     State{UsageCounts: []int{1, 2}},
		},
		{
			name:     "clamps out-of-range cursor",
			in:       State{CurrentKeyIndex: 7, UsageCounts: []int{1, 2}},
			poolSize: 2,
			want:     State{CurrentKeyIndex: 0, UsageCounts: []int{1, 2}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Normalize(tt.in, tt.poolSize)
			require.Equal(t, tt.want.CurrentKeyIndex, got.CurrentKeyIndex)
			require.Equal(t, tt.want.UsageCounts, got.UsageCounts)
		})
	}
}
