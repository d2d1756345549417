package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDBPutGetDelete(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, db.Put([]byte("key"), []byte("value")))
	got, err := db.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("value"), got)

	require.NoError(t, db.Delete([]byte("key")))
	_, err = db.Get([]byte("key"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDBReturnsCopies(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	value := []byte("original")
	require.NoError(t, db.Put([]byte("key"), value))
	value[0] = 'X'

	got, err := db.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("original"), got)

	got[0] = 'Y'
	again, err := db.Get([]byte("key"))
	require.NoError(t, err)
	require.Equal(t, []byte("original"), again)
}

func TestMemDBIteratePrefix(t *testing.T) {
	db := NewMemDB()
	defer db.Close()

	require.NoError(t, db.Put([]byte("pool/a"), []byte("1")))
	require.NoError(t, db.Put([]byte("pool/b"), []byte("2")))
	require.NoError(t, db.Put([]byte("deposit/a"), []byte("3")))

	seen := map[string]string{}
	err := db.IteratePrefix([]byte("pool/"), func(key, value []byte) error {
		seen[string(key)] = string(value)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, map[string]string{"pool/a": "1", "pool/b": "2"}, seen)
}

func TestLevelDBRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db")
	db, err := NewLevelDB(path)
	require.NoError(t, err)

	require.NoError(t, db.Put([]byte("hodl/pool/HODL"), []byte("payload")))
	require.NoError(t, db.Put([]byte("hodl/pool/FEE"), []byte("other")))
	require.NoError(t, db.Put([]byte("bank/acct/x"), []byte("acct")))

	got, err := db.Get([]byte("hodl/pool/HODL"))
	require.NoError(t, err)
	require.Equal(t, []byte("payload"), got)

	count := 0
	require.NoError(t, db.IteratePrefix([]byte("hodl/pool/"), func(_, _ []byte) error {
		count++
		return nil
	}))
	require.Equal(t, 2, count)

	db.Close()

	// Reopening observes the persisted records.
	db, err = NewLevelDB(path)
	require.NoError(t, err)
	defer db.Close()
	got, err = db.Get([]byte("bank/acct/x"))
	require.NoError(t, err)
	require.Equal(t, []byte("acct"), got)

	_, err = db.Get([]byte("absent"))
	require.ErrorIs(t, err, ErrNotFound)
}
