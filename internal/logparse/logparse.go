// Package logparse converts structured access-log lines into typed
// request outcomes.
//
// DESIGN: Two line formats are auto-detected per line:
//   - kv:   [28/Jan/2025:10:30:45 +0000] method=GET uri=/version status=200 pool=blue ...
//   - json: nginx "log_format ... json" output, one object per line
//
// Parsing is tolerant: tokens may appear in any order, unknown tokens
// are ignored, and a missing token leaves the field at its absent
// sentinel instead of failing the whole line. Only a line with no
// recognizable structure at all returns ErrParse.
package logparse

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// ErrParse is returned for a line with no recognizable structure.
var ErrParse = errors.New("logparse: unrecognized line")

// Absent is the sentinel the proxy logs for a missing field.
const Absent = "-"

// TimeLayout is the nginx time_local layout used in the kv format.
const TimeLayout = "02/Jan/2006:15:04:05 -0700"

// RequestOutcome is the typed result of one completed request as
// reconstructed from a single log line. Immutable once parsed.
type RequestOutcome struct {
	Timestamp            string  // raw time_local text, Absent if missing
	Method               string
	URI                  string
	Status               int // 0 when absent or out of [100,599]
	Pool                 string
	Release              string
	UpstreamAddr         string
	UpstreamStatus       string
	RequestTime          float64 // seconds
	UpstreamResponseTime float64 // seconds
	Client               string
}

// HasStatus reports whether the line carried a valid final status code.
func (r *RequestOutcome) HasStatus() bool { return r.Status != 0 }

// IsError reports whether the request ended in a server error.
func (r *RequestOutcome) IsError() bool { return r.Status >= 500 }

// HasPool reports whether the line carried a serving-pool tag.
func (r *RequestOutcome) HasPool() bool { return r.Pool != "" && r.Pool != Absent }

// Time parses the logged timestamp. ok is false when the timestamp is
// absent or not in the expected layout.
func (r *RequestOutcome) Time() (time.Time, bool) {
	if r.Timestamp == "" || r.Timestamp == Absent {
		return time.Time{}, false
	}
	t, err := time.Parse(TimeLayout, r.Timestamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// String renders the canonical kv form. Parse(r.String()) reproduces
// an equivalent outcome.
func (r *RequestOutcome) String() string {
	status := Absent
	if r.Status != 0 {
		status = strconv.Itoa(r.Status)
	}
	return fmt.Sprintf("[%s] method=%s uri=%s status=%s pool=%s release=%s upstream_addr=%s upstream_status=%s request_time=%.3f upstream_response_time=%.3f client=%s",
		orAbsent(r.Timestamp), orAbsent(r.Method), orAbsent(r.URI), status,
		orAbsent(r.Pool), orAbsent(r.Release), orAbsent(r.UpstreamAddr),
		orAbsent(r.UpstreamStatus), r.RequestTime, r.UpstreamResponseTime,
		orAbsent(r.Client))
}

func orAbsent(s string) string {
	if s == "" {
		return Absent
	}
	return s
}

// Parse converts one complete log line into a RequestOutcome.
// The caller is responsible for only feeding complete lines; a line
// still being written must be held back by the reader.
func Parse(line string) (*RequestOutcome, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil, ErrParse
	}
	if strings.HasPrefix(line, "{") {
		return parseJSON(line)
	}
	return parseKV(line)
}

func parseKV(line string) (*RequestOutcome, error) {
	if !strings.HasPrefix(line, "[") {
		return nil, ErrParse
	}
	end := strings.Index(line, "]")
	if end < 0 {
		return nil, ErrParse
	}

	out := &RequestOutcome{Timestamp: line[1:end]}
	if out.Timestamp == "" {
		out.Timestamp = Absent
	}

	for _, tok := range strings.Fields(line[end+1:]) {
		key, val, found := strings.Cut(tok, "=")
		if !found || val == "" {
			continue
		}
		switch key {
		case "method":
			out.Method = val
		case "uri":
			out.URI = val
		case "status":
			out.Status = parseStatus(val)
		case "pool":
			out.Pool = val
		case "release":
			out.Release = val
		case "upstream_addr":
			out.UpstreamAddr = val
		case "upstream_status":
			out.UpstreamStatus = val
		case "request_time":
			out.RequestTime = parseSeconds(val)
		case "upstream_response_time":
			out.UpstreamResponseTime = parseSeconds(val)
		case "client":
			out.Client = val
		}
	}

	fillAbsent(out)
	return out, nil
}

func parseJSON(line string) (*RequestOutcome, error) {
	if !gjson.Valid(line) {
		return nil, ErrParse
	}
	doc := gjson.Parse(line)
	if !doc.IsObject() {
		return nil, ErrParse
	}

	out := &RequestOutcome{
		Timestamp:            str(doc, "time_local", "timestamp"),
		Method:               str(doc, "method"),
		URI:                  str(doc, "uri", "request_uri"),
		Pool:                 str(doc, "pool"),
		Release:              str(doc, "release"),
		UpstreamAddr:         str(doc, "upstream_addr"),
		UpstreamStatus:       str(doc, "upstream_status"),
		Client:               str(doc, "client", "remote_addr"),
		RequestTime:          doc.Get("request_time").Float(),
		UpstreamResponseTime: doc.Get("upstream_response_time").Float(),
	}
	if v := doc.Get("status"); v.Exists() {
		out.Status = parseStatus(v.String())
	}

	fillAbsent(out)
	return out, nil
}

// str returns the first present key, or "" when none exist.
func str(doc gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := doc.Get(k); v.Exists() {
			return v.String()
		}
	}
	return ""
}

// parseStatus accepts only a 3-digit code in [100,599]; anything else
// is recorded as absent rather than failing the line.
func parseStatus(val string) int {
	n, err := strconv.Atoi(val)
	if err != nil || n < 100 || n > 599 {
		return 0
	}
	return n
}

func parseSeconds(val string) float64 {
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0
	}
	return f
}

// fillAbsent normalizes empty string fields to the Absent sentinel so
// parsed outcomes compare equal to re-parsed rendered ones.
func fillAbsent(out *RequestOutcome) {
	for _, p := range []*string{
		&out.Timestamp, &out.Method, &out.URI, &out.Pool, &out.Release,
		&out.UpstreamAddr, &out.UpstreamStatus, &out.Client,
	} {
		if *p == "" {
			*p = Absent
		}
	}
}
