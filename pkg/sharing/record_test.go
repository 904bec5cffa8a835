package sharing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		record *Record
	}{
		{
			name:   "empty",
			record: NewRecord(),
		},
		{
			name:   "single read grant",
			record: NewRecord().Add(AccessRead, "report.pdf", []string{"bob"}),
		},
		{
			name: "mixed grants across children",
			record: NewRecord().
				Add(AccessRead, "report.pdf", []string{"bob", "carol"}).
				Add(AccessWrite, "report.pdf", []string{"carol"}).
				Add(AccessRead, "notes.txt", []string{"dave"}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := tt.record.Serialize()
			require.NoError(t, err)

			parsed, err := ParseRecord(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.record, parsed)

			// Deterministic encoding: serializing the parsed copy
			// reproduces the exact bytes.
			again, err := parsed.Serialize()
			require.NoError(t, err)
			assert.Equal(t, raw, again)
		})
	}
}

func TestEmptyRecordCanonicalEncoding(t *testing.T) {
	first, err := NewRecord().Serialize()
	require.NoError(t, err)

	// An add followed by the inverse remove is indistinguishable from
	// never having granted at all.
	undone := NewRecord().
		Add(AccessRead, "x", []string{"bob"}).
		Remove(AccessRead, "x", []string{"bob"})
	assert.True(t, undone.IsEmpty())

	second, err := undone.Serialize()
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRecordOperationsArePure(t *testing.T) {
	base := NewRecord().Add(AccessRead, "doc", []string{"bob"})

	_ = base.Add(AccessWrite, "doc", []string{"carol"})
	_ = base.Remove(AccessRead, "doc", []string{"bob"})
	_ = base.Clear("doc")

	state := base.Get("doc")
	assert.Equal(t, []string{"bob"}, state.ReadAccess)
	assert.Empty(t, state.WriteAccess)
}

func TestRecordGetMissingChild(t *testing.T) {
	record := NewRecord().Add(AccessRead, "doc", []string{"bob"})

	state := record.Get("other")
	assert.True(t, state.IsEmpty())
	assert.NotNil(t, state.ReadAccess)
	assert.NotNil(t, state.WriteAccess)
}

func TestRecordFilter(t *testing.T) {
	record := NewRecord().
		Add(AccessRead, "a", []string{"bob"}).
		Add(AccessWrite, "b", []string{"carol"})

	filtered, ok := record.Filter("a")
	require.True(t, ok)
	assert.Equal(t, []string{"bob"}, filtered.Get("a").ReadAccess)
	assert.True(t, filtered.Get("b").IsEmpty())

	_, ok = record.Filter("missing")
	assert.False(t, ok)
}

func TestRecordClearLeavesSiblings(t *testing.T) {
	record := NewRecord().
		Add(AccessRead, "a", []string{"bob"}).
		Add(AccessRead, "b", []string{"carol"})

	cleared := record.Clear("a")

	assert.True(t, cleared.Get("a").IsEmpty())
	assert.Equal(t, []string{"carol"}, cleared.Get("b").ReadAccess)
}

func TestRecordRemoveLastNameDropsChild(t *testing.T) {
	record := NewRecord().
		Add(AccessRead, "a", []string{"bob"}).
		Remove(AccessRead, "a", []string{"bob"})

	assert.True(t, record.IsEmpty())
	assert.Empty(t, record.ReadShares())
}

func TestRecordShareProjections(t *testing.T) {
	record := NewRecord().
		Add(AccessRead, "a", []string{"carol", "bob"}).
		Add(AccessWrite, "b", []string{"dave"})

	assert.Equal(t, map[string][]string{"a": {"bob", "carol"}}, record.ReadShares())
	assert.Equal(t, map[string][]string{"b": {"dave"}}, record.WriteShares())
}
