// Package obslog provides an optional SQLite sink recording every valid
// observation the bridge streams, for offline inspection.
package obslog

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/trimtide/gnssbridge/pkg/errs"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS observation (
	station_id INTEGER NOT NULL,
	time       INTEGER NOT NULL,
	svid       INTEGER NOT NULL,
	pr         REAL NOT NULL,
	phase      REAL NOT NULL,
	doppler    REAL NOT NULL,
	snr        REAL NOT NULL,
	slipped    INTEGER NOT NULL
);`

const insertStmt = `INSERT INTO observation (station_id, time, svid, pr, phase, doppler, snr, slipped)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Logger writes observation rows to a SQLite database. A write failure
// mid-session is logged and the logger disables itself for the rest of
// the session rather than propagating the error up through the pipeline.
type Logger struct {
	db        *sql.DB
	stationID int
	log       logrus.FieldLogger
	disabled  bool
}

// Open opens (creating if necessary) the SQLite database at path and
// ensures the observation table exists. A failure here is a ConfigError:
// the caller should treat it as fatal at startup.
func Open(path string, stationID int, log logrus.FieldLogger) (*Logger, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errs.New(errs.Config, "obslog: open database", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errs.New(errs.Config, "obslog: create schema", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Logger{db: db, stationID: stationID, log: log}, nil
}

// LogEpoch writes one row per valid observation in obs. A write failure
// disables the logger (logged once) rather than returning an error, per
// this system's non-fatal-mid-session treatment of logging faults.
func (l *Logger) LogEpoch(t model.Time, obs []model.RawObservation) {
	if l.disabled {
		return
	}
	for _, o := range obs {
		if !o.Valid {
			continue
		}
		slipped := 0
		if o.Slip {
			slipped = 1
		}
		_, err := l.db.Exec(insertStmt, l.stationID, int64(t), o.SVID, o.PR, o.Phase, o.Doppler, o.SNR, slipped)
		if err != nil {
			l.log.WithError(err).Error("obslog: write failed, disabling observation logger for this session")
			l.disabled = true
			return
		}
	}
}

// Close releases the underlying database handle.
func (l *Logger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}
