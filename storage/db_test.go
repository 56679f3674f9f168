package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBMissingKeyReadsAsNil(t *testing.T) {
	db := NewMemDB()
	value, err := db.Get([]byte("missing"))
	require.NoError(t, err)
	require.Nil(t, value)

	ok, err := db.Has([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMemDBPutGetDelete(t *testing.T) {
	db := NewMemDB()
	require.NoError(t, db.Put([]byte("k"), []byte("v")))

	value, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)

	ok, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, db.Delete([]byte("k")))
	value, err = db.Get([]byte("k"))
	require.NoError(t, err)
	require.Nil(t, value)
}

func TestMemDBCopiesValues(t *testing.T) {
	db := NewMemDB()
	original := []byte("value")
	require.NoError(t, db.Put([]byte("k"), original))
	original[0] = 'X'

	stored, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), stored)

	stored[0] = 'Y'
	again, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), again)
}

func TestLevelDBRoundTrip(t *testing.T) {
	db, err := NewLevelDB(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Put([]byte("k"), []byte("v")))
	value, err := db.Get([]byte("k"))
	require.NoError(t, err)
	require.Equal(t, []byte("v"), value)

	missing, err := db.Get([]byte("missing"))
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, db.Delete([]byte("k")))
	ok, err := db.Has([]byte("k"))
	require.NoError(t, err)
	require.False(t, ok)
}
