package success

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test_success.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreAndGetSuccess(t *testing.T) {
	s := openTestStore(t)

	deleteAt := time.Now().Add(5 * time.Minute).UTC().Truncate(time.Second)
	err := s.StoreSuccess(SuccessRecord{
		JobID:          "abc123",
		OutputFilename: "abc123_converted.webp",
		OutputObject:   "outputs/abc123_converted.webp",
		DeleteAt:       deleteAt,
	}, map[string]string{"targetFormat": "webp"})
	require.NoError(t, err)

	record, err := s.GetSuccess("abc123")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "abc123_converted.webp", record.OutputFilename)
	assert.True(t, deleteAt.Equal(record.DeleteAt))
	assert.False(t, record.Timestamp.IsZero())
	assert.JSONEq(t, `{"targetFormat":"webp"}`, record.JobData)

	missing, err := s.GetSuccess("missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, s.CheckHealth())
}

func TestSuccessCleanupOldRecords(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.StoreSuccess(SuccessRecord{JobID: "old", Timestamp: time.Now().Add(-72 * time.Hour)}, nil))
	require.NoError(t, s.StoreSuccess(SuccessRecord{JobID: "new"}, nil))

	require.NoError(t, s.CleanupOldRecords(24*time.Hour))

	records, err := s.ListSuccessRecords()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].JobID)

	require.NoError(t, s.DeleteSuccess("new"))
	records, err = s.ListSuccessRecords()
	require.NoError(t, err)
	assert.Empty(t, records)
}
