package incident_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccu-link/ccu-go/pkg/event"
	"github.com/ccu-link/ccu-go/pkg/incident"
	"github.com/ccu-link/ccu-go/pkg/journal"
)

func storeJournal() *journal.Journal {
	j := journal.New(100)
	j.RecordPingSent("BidCos-RF#1")
	j.RecordPongReceived("BidCos-RF#1", 15*time.Millisecond)
	j.RecordPongUnknown("BidCos-RF#99")
	return j
}

func TestStoreRoundTrip(t *testing.T) {
	store, err := incident.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	snap, err := store.RecordIncident(incident.TypePingPongUnknownHigh, event.SeverityError,
		"unknown pong count exceeded threshold", "HmIP-RF",
		map[string]any{"mismatch_count": float64(7)}, storeJournal())
	require.NoError(t, err)
	require.NotEmpty(t, snap.ID)

	got, err := store.Get(snap.ID)
	require.NoError(t, err)

	assert.Equal(t, incident.TypePingPongUnknownHigh, got.Type)
	assert.Equal(t, event.SeverityError, got.Severity)
	assert.Equal(t, "HmIP-RF", got.InterfaceID)
	assert.Equal(t, float64(7), got.Context["mismatch_count"])
	assert.Len(t, got.JournalExcerpt, 3)
}

func TestStoreGetUnknownID(t *testing.T) {
	store, err := incident.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Get("no-such-id")
	assert.Error(t, err)
}

func TestStoreList(t *testing.T) {
	store, err := incident.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	for _, iface := range []string{"BidCos-RF", "BidCos-RF", "HmIP-RF"} {
		_, err := store.RecordIncident(incident.TypePingPongMismatchHigh, event.SeverityError,
			"pending ping count exceeded threshold", iface, nil, nil)
		require.NoError(t, err)
	}

	all, err := store.List("", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	bidcos, err := store.List("BidCos-RF", 0)
	require.NoError(t, err)
	assert.Len(t, bidcos, 2)

	limited, err := store.List("", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestStorePrune(t *testing.T) {
	store, err := incident.NewStore(":memory:")
	require.NoError(t, err)
	defer store.Close()

	_, err = store.RecordIncident(incident.TypePingPongMismatchHigh, event.SeverityError,
		"pending ping count exceeded threshold", "BidCos-RF", nil, nil)
	require.NoError(t, err)

	// Nothing is older than an hour yet.
	n, err := store.Prune(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	// Everything is older than a negative age.
	n, err = store.Prune(-time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStorePersistsAcrossOpens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "incidents.db")

	store, err := incident.NewStore(path)
	require.NoError(t, err)

	snap, err := store.RecordIncident(incident.TypePingPongMismatchHigh, event.SeverityError,
		"pending ping count exceeded threshold", "BidCos-RF", nil, storeJournal())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := incident.NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(snap.ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Type, got.Type)
	assert.Len(t, got.JournalExcerpt, 3)
}
