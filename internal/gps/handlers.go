package gps

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"backend-gpslogger/internal/history"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(r fiber.Router, svc *Service) {
	ingest := ingestHandler(svc)
	r.All("/gps", ingest)
	// Older clients use the upper-case path with any method.
	r.All("/GPS", ingest)

	r.Get("/locations", func(c *fiber.Ctx) error {
		limit := history.DefaultLimit
		if n, ok := parseInt(c.Query("limit")); ok && n >= 0 {
			limit = n
		}

		var latest any
		if rec, ok := svc.Latest(); ok {
			latest = rec
		}
		return c.JSON(fiber.Map{
			"count":     svc.Count(),
			"locations": svc.Recent(limit),
			"latest":    latest,
		})
	})
}

func ingestHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := c.Method()
		query := queryValues(c)

		body, err := bodyValues(c)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "Malformed request body",
				"message": err.Error(),
			})
		}

		result, err := svc.Ingest(c.UserContext(), InputFromRequest(method, query, body))
		if errors.Is(err, ErrMissingCoordinates) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Missing latitude or longitude",
				"received": fiber.Map{
					"query":  query,
					"body":   body,
					"method": method,
				},
			})
		}
		if err != nil {
			return fmt.Errorf("ingest gps fix: %w", err)
		}

		return c.JSON(fiber.Map{
			"status":         "success",
			"timestamp":      FormatTimestamp(svc.now()),
			"processingTime": fmt.Sprintf("%dms", result.Duration.Milliseconds()),
			"location": fiber.Map{
				"lat": result.Record.Latitude,
				"lon": result.Record.Longitude,
			},
		})
	}
}

// queryValues copies the query string out of the request buffer, which
// fasthttp reuses once the handler returns.
func queryValues(c *fiber.Ctx) map[string]string {
	out := map[string]string{}
	c.Request().URI().QueryArgs().VisitAll(func(k, v []byte) {
		key := string(k)
		if _, seen := out[key]; !seen {
			out[key] = string(v)
		}
	})
	return out
}

// bodyValues decodes JSON and form bodies into a flat map. Other content
// types yield an empty map.
func bodyValues(c *fiber.Ctx) (map[string]any, error) {
	out := map[string]any{}
	if len(bytes.TrimSpace(c.Body())) == 0 {
		return out, nil
	}

	ctype := strings.ToLower(c.Get(fiber.HeaderContentType))
	switch {
	case strings.Contains(ctype, "json"):
		if err := json.Unmarshal(c.Body(), &out); err != nil {
			return nil, err
		}
	case strings.HasPrefix(ctype, fiber.MIMEApplicationForm):
		c.Request().PostArgs().VisitAll(func(k, v []byte) {
			key := string(k)
			if _, seen := out[key]; !seen {
				out[key] = string(v)
			}
		})
	case strings.HasPrefix(ctype, fiber.MIMEMultipartForm):
		form, err := c.MultipartForm()
		if err != nil {
			return nil, err
		}
		for k, vs := range form.Value {
			if len(vs) > 0 {
				out[k] = vs[0]
			}
		}
	}
	return out, nil
}
