// Command gnssbridge reads observations from a serial-attached GNSS
// receiver, encodes them as RTCM 3 messages, and streams them to an NTRIP
// caster as a reference station source.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/trimtide/gnssbridge/pkg/errs"
	"github.com/trimtide/gnssbridge/pkg/gnssgo/model"
	"github.com/trimtide/gnssbridge/pkg/ntrip"
	"github.com/trimtide/gnssbridge/pkg/obslog"
	"github.com/trimtide/gnssbridge/pkg/receiver"
	"github.com/trimtide/gnssbridge/pkg/station"
	"github.com/trimtide/gnssbridge/pkg/transport"
)

// config holds the parsed key=value CLI arguments.
type config struct {
	caster     string
	port       int
	mount      string
	serial     string
	x, y, z    float64
	debug      int
	password   string
	station    int
	sqlitePath string
	timeout    time.Duration
}

func parseArgs(args []string) (*config, error) {
	cfg := &config{timeout: 10 * time.Second}
	seen := map[string]bool{}

	for _, arg := range args {
		kv := strings.SplitN(arg, "=", 2)
		if len(kv) != 2 {
			return nil, errs.New(errs.Config, "parse args", fmt.Errorf("malformed token %q, expected key=value", arg))
		}
		key, val := kv[0], kv[1]
		seen[key] = true

		var err error
		switch key {
		case "caster":
			cfg.caster = val
		case "port":
			cfg.port, err = strconv.Atoi(val)
		case "mount":
			cfg.mount = val
		case "serial":
			cfg.serial = val
		case "x":
			cfg.x, err = strconv.ParseFloat(val, 64)
		case "y":
			cfg.y, err = strconv.ParseFloat(val, 64)
		case "z":
			cfg.z, err = strconv.ParseFloat(val, 64)
		case "debug":
			cfg.debug, err = strconv.Atoi(val)
		case "password":
			cfg.password = val
		case "station":
			cfg.station, err = strconv.Atoi(val)
		case "sqlite":
			cfg.sqlitePath = val
		case "timeout":
			var secs int
			secs, err = strconv.Atoi(val)
			if err == nil {
				cfg.timeout = time.Duration(secs) * time.Second
			}
		default:
			return nil, errs.New(errs.Config, "parse args", fmt.Errorf("unrecognized option %q", key))
		}
		if err != nil {
			return nil, errs.New(errs.Config, "parse args", fmt.Errorf("invalid value for %q: %w", key, err))
		}
	}

	for _, required := range []string{"caster", "port", "mount", "serial"} {
		if !seen[required] {
			return nil, errs.New(errs.Config, "parse args", fmt.Errorf("missing required option %q", required))
		}
	}

	return cfg, nil
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := parseArgs(os.Args[1:])
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	if cfg.debug > 0 {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	var logger *obslog.Logger
	if cfg.sqlitePath != "" {
		logger, err = obslog.Open(cfg.sqlitePath, cfg.station, log)
		if err != nil {
			log.WithError(err).Fatal("failed to open observation log")
		}
		defer logger.Close()
	}

	supervisor := errs.NewSupervisor()

	for ctx.Err() == nil {
		if err := runSession(ctx, cfg, log, logger); err != nil {
			supervisor.Record(err)
			log.WithError(err).Error("session ended, restarting after delay")
			for _, e := range supervisor.Drain() {
				log.WithField("at", e.At).Warn(e.Err)
			}

			if kind, ok := errs.KindOf(err); ok && kind == errs.Config {
				log.Fatal("configuration error is not recoverable")
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(errs.RestartDelay):
			}
		}
	}
}

func runSession(ctx context.Context, cfg *config, log logrus.FieldLogger, obsLog *obslog.Logger) error {
	serialStream, err := transport.OpenSerial(cfg.serial, log)
	if err != nil {
		return err
	}
	defer serialStream.Close()
	serialStream.SetTimeout(cfg.timeout)

	casterStream, err := transport.DialTCP(fmt.Sprintf("%s:%d", cfg.caster, cfg.port), log)
	if err != nil {
		return err
	}
	defer casterStream.Close()
	casterStream.SetTimeout(cfg.timeout)

	if err := ntrip.Handshake(casterStream, cfg.password, cfg.mount, log); err != nil {
		return err
	}

	recv := receiver.NewWire(serialStream)
	driver := station.NewDriver(model.StationAttributes{
		StationID: cfg.station,
		X:         cfg.x,
		Y:         cfg.y,
		Z:         cfg.z,
	}, log)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		epoch, err := recv.NextEpoch(ctx)
		if err != nil {
			return err
		}

		rx, ry, rz, rok := recv.Position()
		frames, err := driver.Emit(epoch, rx, ry, rz, rok)
		if err != nil {
			return err
		}
		for _, frame := range frames {
			if _, err := casterStream.Write(frame); err != nil {
				return errs.New(errs.Io, "write rtcm frame to caster", err)
			}
		}

		if obsLog != nil {
			obsLog.LogEpoch(epoch.Time, epoch.Obs)
		}
	}
}
