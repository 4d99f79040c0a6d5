package gps

import (
	"context"
	"encoding/json"
	"time"

	"backend-gpslogger/internal/history"
	"backend-gpslogger/internal/shared/geo"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Forwarder hands a record to an external system without blocking the caller.
type Forwarder interface {
	Dispatch(rec Record)
}

// Broadcaster fans a serialized record out to live subscribers.
type Broadcaster interface {
	Broadcast(key string, payload []byte)
}

// Recorder counts ingestion outcomes.
type Recorder interface {
	FixAccepted(provider string)
	FixRejected()
}

// Options carries the static geo references used for fix logging and an
// optional Recorder.
type Options struct {
	Area    geo.BoundingBox
	Home    geo.Point
	Metrics Recorder
}

type Service struct {
	ring      *history.Ring[Record]
	forwarder Forwarder
	hub       Broadcaster
	opts      Options
	log       zerolog.Logger
	now       func() time.Time
}

// NewService wires the ingestion pipeline. forwarder and hub may be nil.
func NewService(ring *history.Ring[Record], forwarder Forwarder, hub Broadcaster, opts Options, log zerolog.Logger) *Service {
	return &Service{
		ring:      ring,
		forwarder: forwarder,
		hub:       hub,
		opts:      opts,
		log:       log,
		now:       time.Now,
	}
}

// Ingest normalizes a fix, stores it and hands it to the forwarder and live
// subscribers. ErrMissingCoordinates is returned for fixes without a usable
// position; nothing is stored in that case.
func (s *Service) Ingest(ctx context.Context, in RawInput) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	start := s.now()
	rec, err := Normalize(in, start)
	if err != nil {
		s.log.Warn().
			Str("source", string(in.Source)).
			Interface("raw", in.Values).
			Msg("Missing required GPS coordinates")
		if s.opts.Metrics != nil {
			s.opts.Metrics.FixRejected()
		}
		return Result{}, err
	}

	rec.ID = uuid.NewString()
	rec.ServerTimestamp = FormatTimestamp(s.now())
	s.ring.Append(rec)
	if s.opts.Metrics != nil {
		s.opts.Metrics.FixAccepted(rec.Provider)
	}

	if s.forwarder != nil {
		s.forwarder.Dispatch(rec)
	}
	s.broadcast(rec)
	s.observe(rec)

	return Result{Record: rec, Duration: s.now().Sub(start)}, nil
}

func (s *Service) Recent(limit int) []Record {
	return s.ring.Recent(limit)
}

func (s *Service) Latest() (Record, bool) {
	return s.ring.Latest()
}

func (s *Service) Count() int {
	return s.ring.Len()
}

// Capacity is the number of fixes kept before the oldest is dropped.
func (s *Service) Capacity() int {
	return s.ring.Cap()
}

func (s *Service) broadcast(rec Record) {
	if s.hub == nil {
		return
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		s.log.Error().Err(err).Str("id", rec.ID).Msg("Failed to serialize fix for stream")
		return
	}
	s.hub.Broadcast(rec.DeviceID, payload)
}

// observe only logs; no behavior depends on the area or distance checks.
func (s *Service) observe(rec Record) {
	ev := s.log.Info().
		Str("id", rec.ID).
		Str("device", rec.DeviceID).
		Str("provider", rec.Provider).
		Float64("lat", rec.Latitude).
		Float64("lon", rec.Longitude).
		Bool("in_area", s.opts.Area.Contains(rec.Latitude, rec.Longitude)).
		Float64("home_distance_km", geo.HaversineKm(rec.Latitude, rec.Longitude, s.opts.Home.Lat, s.opts.Home.Lon))

	if rec.Accuracy != nil {
		ev = ev.Float64("accuracy_m", *rec.Accuracy)
	}
	if rec.Speed != nil {
		ev = ev.Float64("speed_kmh", *rec.Speed*3.6)
	}
	if rec.Altitude != nil {
		ev = ev.Float64("altitude_m", *rec.Altitude)
	}
	ev.Int("stored", s.ring.Len()).Msg("GPS fix stored")
}
