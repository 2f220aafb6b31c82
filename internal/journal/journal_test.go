package journal

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *Repository {
	t.Helper()
	r, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestCreateAndGet(t *testing.T) {
	r := openMemory(t)

	j, err := r.Create("label.png")
	require.NoError(t, err)
	assert.Equal(t, Pending, j.Outcome)

	got, err := r.Get(j.Uuid)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "label.png", got.Source)
	assert.Equal(t, Pending, got.Outcome)
	assert.Equal(t, j.CreatedAt.UnixMicro(), got.CreatedAt.UnixMicro())
}

func TestGetMissing(t *testing.T) {
	r := openMemory(t)

	got, err := r.Get(uuid.New())
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestFinish(t *testing.T) {
	r := openMemory(t)

	j, err := r.Create("text")
	require.NoError(t, err)
	j.Lines = 120
	j.MediaWidth = 62
	j.MediaType = "continuous"
	j.Outcome = Failed
	j.Error = "cutter jam"
	require.NoError(t, r.Finish(j))

	got, err := r.Get(j.Uuid)
	require.NoError(t, err)
	assert.Equal(t, 120, got.Lines)
	assert.Equal(t, 62, got.MediaWidth)
	assert.Equal(t, 0, got.MediaLength)
	assert.Equal(t, "continuous", got.MediaType)
	assert.Equal(t, Failed, got.Outcome)
	assert.Equal(t, "cutter jam", got.Error)

	assert.Error(t, r.Finish(&Job{Uuid: uuid.New()}))
}

func TestListNewestFirst(t *testing.T) {
	r := openMemory(t)

	for i := 0; i < 5; i++ {
		_, err := r.Create(fmt.Sprintf("job-%d", i))
		require.NoError(t, err)
	}

	all, err := r.List(0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "job-4", all[0].Source)
	assert.Equal(t, "job-0", all[4].Source)

	some, err := r.List(2)
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "job-4", some[0].Source)
	assert.Equal(t, "job-3", some[1].Source)
}

func TestListEmpty(t *testing.T) {
	jobs, err := openMemory(t).List(10)
	require.NoError(t, err)
	assert.Empty(t, jobs)
	assert.NotNil(t, jobs)
}

func TestPrune(t *testing.T) {
	r := openMemory(t)
	for i := 0; i < 4; i++ {
		_, err := r.Create(fmt.Sprintf("job-%d", i))
		require.NoError(t, err)
	}

	removed, err := r.Prune(1)
	require.NoError(t, err)
	assert.Equal(t, int64(3), removed)

	left, err := r.List(0)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "job-3", left[0].Source)
}

func TestTransactRollsBack(t *testing.T) {
	r := openMemory(t)
	_, err := r.Create("kept")
	require.NoError(t, err)

	boom := fmt.Errorf("boom")
	err = r.Transact(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM print_job`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	jobs, err := r.List(0)
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestTransactCommits(t *testing.T) {
	r := openMemory(t)
	_, err := r.Create("gone")
	require.NoError(t, err)

	require.NoError(t, r.Transact(func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM print_job`)
		return err
	}))

	jobs, err := r.List(0)
	require.NoError(t, err)
	assert.Empty(t, jobs)
}
