// Package webhook delivers accepted GPS fixes to an external HTTP endpoint.
// Delivery is best effort: one attempt, no retries, failures are only logged.
package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"backend-gpslogger/internal/gps"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

const DefaultTimeout = 5 * time.Second

var ErrUnexpectedStatus = errors.New("webhook returned non-2xx status")

type Config struct {
	URL     string
	Token   string
	Timeout time.Duration

	// OnResult, if set, is called after every dispatched attempt.
	OnResult func(err error)
}

type Forwarder struct {
	cfg Config
	log zerolog.Logger
	wg  sync.WaitGroup
}

type location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp"`
}

type metadata struct {
	Accuracy *float64 `json:"accuracy"`
	Speed    *float64 `json:"speed"`
	Altitude *float64 `json:"altitude"`
	Device   string   `json:"device"`
}

type payload struct {
	Location location `json:"location"`
	Metadata metadata `json:"metadata"`
}

func New(cfg Config, log zerolog.Logger) *Forwarder {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Forwarder{cfg: cfg, log: log}
}

func (f *Forwarder) Enabled() bool {
	return f.cfg.URL != ""
}

// Forward makes a single synchronous delivery attempt. It is a no-op when no
// URL is configured.
func (f *Forwarder) Forward(rec gps.Record) error {
	if !f.Enabled() {
		return nil
	}

	body, err := json.Marshal(payloadFor(rec))
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	agent := fiber.Post(f.cfg.URL)
	agent.ContentType(fiber.MIMEApplicationJSON)
	agent.Body(body)
	agent.Timeout(f.cfg.Timeout)
	if f.cfg.Token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+f.cfg.Token)
	}
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return fmt.Errorf("prepare webhook request: %w", err)
	}

	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("post webhook: %w", errors.Join(errs...))
	}
	if code < fiber.StatusOK || code >= fiber.StatusMultipleChoices {
		return fmt.Errorf("%w: %d", ErrUnexpectedStatus, code)
	}
	return nil
}

// Dispatch runs Forward in its own goroutine. The outcome is logged and never
// reported back to the caller.
func (f *Forwarder) Dispatch(rec gps.Record) {
	if !f.Enabled() {
		return
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				f.log.Error().Interface("panic", r).Str("id", rec.ID).Msg("Webhook forward panicked")
			}
		}()

		err := f.Forward(rec)
		if f.cfg.OnResult != nil {
			f.cfg.OnResult(err)
		}
		if err != nil {
			f.log.Error().Err(err).Str("id", rec.ID).Str("url", f.cfg.URL).Msg("Failed to forward to webhook")
			return
		}
		f.log.Info().Str("id", rec.ID).Msg("Data forwarded to webhook")
	}()
}

// Wait blocks until in-flight dispatches finish.
func (f *Forwarder) Wait() {
	f.wg.Wait()
}

func payloadFor(rec gps.Record) payload {
	return payload{
		Location: location{
			Latitude:  rec.Latitude,
			Longitude: rec.Longitude,
			Timestamp: rec.Timestamp,
		},
		Metadata: metadata{
			Accuracy: rec.Accuracy,
			Speed:    rec.Speed,
			Altitude: rec.Altitude,
			Device:   rec.DeviceID,
		},
	}
}
