package runlog

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redshift-labs/hicube/internal/monitoring"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	db, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRecord() Record {
	r := NewRecord()
	r.NPxX = 128
	r.NPxY = 96
	r.NChannels = 32
	r.PxSizeArcsec = 15
	r.ChannelKms = 4
	r.FreqMode = true
	r.RADeg = 30
	r.DecDeg = -15
	r.DistanceMpc = 3
	r.VPeculiarKms = 100
	r.NParticles = 4000
	r.ParamsJSON = `{"incl_deg": 60}`
	r.RotationText = "1 0 0\n0 1 0\n0 0 1\n"
	return r
}

func TestInsertAndGetRun(t *testing.T) {
	db := openTestDB(t)

	rec := sampleRecord()
	require.NotEmpty(t, rec.RunID)
	require.Positive(t, rec.CreatedUnixNanos)
	require.NoError(t, db.InsertRun(rec))

	got, err := db.GetRun(rec.RunID)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestGetRunNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetRun("no-such-run")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestListRuns(t *testing.T) {
	db := openTestDB(t)

	var ids []string
	for i := 0; i < 3; i++ {
		rec := sampleRecord()
		rec.CreatedUnixNanos = int64(1000 + i)
		rec.NParticles = i
		require.NoError(t, db.InsertRun(rec))
		ids = append(ids, rec.RunID)
	}

	// Most recent first.
	runs, err := db.ListRuns(0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].RunID)
	assert.Equal(t, ids[0], runs[2].RunID)

	limited, err := db.ListRuns(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, ids[2], limited[0].RunID)
}

func TestReopenIsIdempotent(t *testing.T) {
	monitoring.SetLogger(t.Logf)
	t.Cleanup(func() { monitoring.SetLogger(nil) })

	path := filepath.Join(t.TempDir(), "runs.db")
	db, err := Open(path)
	require.NoError(t, err)
	rec := sampleRecord()
	require.NoError(t, db.InsertRun(rec))
	require.NoError(t, db.Close())

	// Reopening runs migrations again; they must be a no-op and the data
	// must survive.
	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()
	got, err := db2.GetRun(rec.RunID)
	require.NoError(t, err)
	assert.Equal(t, rec.NParticles, got.NParticles)
}

func TestNewRecordIDsAreUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id := NewRecord().RunID
		require.False(t, seen[id])
		seen[id] = true
	}
}
