// Package calendar talks to the Radicale backend: listing the calendar
// collection and upserting single events.
package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/signbridge/signbridge/internal/config"
)

// Event is the normalized representation of a VEVENT as exposed over the
// proxy endpoints.
type Event struct {
	UID          string `json:"uid"`
	Title        string `json:"title"`
	Start        string `json:"start"`
	End          string `json:"end"`
	LastModified string `json:"last_modified"`
}

var ErrNotConfigured = errors.New("calendar backend not configured")

// Client performs authenticated GET/PUT calls against the Radicale
// collection. No caching; the remote side owns uid uniqueness.
type Client struct {
	cfg    config.CalendarConfig
	client *http.Client
	logger *slog.Logger
}

func NewClient(cfg config.CalendarConfig, logger *slog.Logger) *Client {
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With("component", "calendar"),
	}
}

// List fetches the whole collection as ICS and maps its VEVENTs.
func (c *Client) List(ctx context.Context) ([]Event, error) {
	if !c.cfg.Enabled() {
		return nil, ErrNotConfigured
	}
	url := strings.TrimRight(c.cfg.URL, "/") + strings.TrimRight(c.cfg.Path, "/") + ".ics"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build list request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch calendar: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("calendar returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read calendar body: %w", err)
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	events := make([]Event, 0, len(cal.Events()))
	for _, ve := range cal.Events() {
		events = append(events, mapVEvent(ve))
	}
	c.logger.Info("calendar listed", "event_count", len(events))
	return events, nil
}

// Upsert writes a single VEVENT to <path>/<uid>.ics and returns the remote
// status code.
func (c *Client) Upsert(ctx context.Context, uid, vevent string) (int, error) {
	if !c.cfg.Enabled() {
		return 0, ErrNotConfigured
	}
	url := strings.TrimRight(c.cfg.URL, "/") + c.cfg.Path + uid + ".ics"

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, strings.NewReader(vevent))
	if err != nil {
		return 0, fmt.Errorf("build upsert request: %w", err)
	}
	req.SetBasicAuth(c.cfg.Username, c.cfg.Password)
	req.Header.Set("Content-Type", "text/calendar; charset=utf-8")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("upsert event: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 400 {
		return resp.StatusCode, fmt.Errorf("calendar upsert returned status %d", resp.StatusCode)
	}
	c.logger.Info("calendar event upserted", "uid", uid, "status", resp.StatusCode)
	return resp.StatusCode, nil
}

func mapVEvent(ve *ical.VEvent) Event {
	var out Event

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if start, err := ve.GetStartAt(); err == nil && !start.IsZero() {
		out.Start = start.Format(time.RFC3339)
	}
	if end, err := ve.GetEndAt(); err == nil && !end.IsZero() {
		out.End = end.Format(time.RFC3339)
	}
	// Raw property name to avoid constant variants across library versions.
	if p := ve.GetProperty("LAST-MODIFIED"); p != nil {
		if t, err := parseICSTime(p.Value); err == nil {
			out.LastModified = t.Format(time.RFC3339)
		} else {
			out.LastModified = p.Value
		}
	}
	return out
}

// parseICSTime parses the basic ICS date/date-time forms.
func parseICSTime(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	if strings.Contains(v, "T") {
		return time.Parse("20060102T150405", v)
	}
	return time.Parse("20060102", v)
}
