package obslog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trimtide/gnssbridge/pkg/gnssgo/model"
)

func TestLogEpochWritesValidObservationsOnly(t *testing.T) {
	l, err := Open(":memory:", 1, nil)
	require.NoError(t, err)
	defer l.Close()

	obs := []model.RawObservation{
		{Valid: true, SVID: 5, PR: 20000000, Phase: 1e7, Doppler: 1, SNR: 40},
		{Valid: false, SVID: 9},
	}
	l.LogEpoch(model.Time(123), obs)

	var count int
	row := l.db.QueryRow("SELECT COUNT(*) FROM observation")
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}

func TestOpenCreatesSchemaIdempotently(t *testing.T) {
	l, err := Open(":memory:", 1, nil)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.db.Exec(schema)
	assert.NoError(t, err)
}
