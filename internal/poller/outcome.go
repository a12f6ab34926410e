package poller

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/jpalmerr/pulsemeter/internal/extract"
	"github.com/jpalmerr/pulsemeter/internal/store"
)

// maxRawExcerpt caps the payload excerpt stored on a log entry.
const maxRawExcerpt = 2048

const (
	msgNoValue        = "Response received (no numeric value found)"
	msgConnectionOK   = "Connection successful!"
	msgTestingConnFmt = "Testing connection to %s"
)

// ValueExtractor resolves a numeric reading from a response body.
type ValueExtractor func(body []byte) (float64, bool)

// attempt is everything known about one finished request.
type attempt struct {
	resp    Response
	timeout time.Duration
	at      time.Time

	// set on 2xx responses
	value     *float64
	timestamp time.Time
}

// record converts a finished poll into the store mutation it causes.
func (a attempt) record() store.Record {
	entry := a.entry()
	rec := store.Record{
		Entry:   entry,
		Success: a.resp.OK(),
		At:      a.at,
	}
	if rec.Success && a.value != nil {
		v := *a.value
		rec.Value = &v
		rec.Sample = &store.Sample{Value: v, Timestamp: a.timestamp}
	}
	return rec
}

// entry builds the log entry for the attempt.
func (a attempt) entry() store.LogEntry {
	e := store.LogEntry{
		ID:        uuid.NewString(),
		Timestamp: a.at,
		LatencyMs: latencyMs(a.resp.Latency),
	}

	switch {
	case a.resp.Err != nil:
		e.Outcome = store.OutcomeError
		e.Status = store.ErrorCode(a.resp.ErrCode)
		e.Message = transportMessage(a.resp.ErrCode, a.timeout)
		e.Raw = excerpt([]byte(a.resp.Err.Error()))
	case !a.resp.OK():
		e.Outcome = store.OutcomeError
		e.Status = store.HTTPStatus(a.resp.StatusCode)
		e.Message = fmt.Sprintf("HTTP %d", a.resp.StatusCode)
		e.Raw = excerpt(a.resp.Body)
	default:
		e.Outcome = store.OutcomeSuccess
		e.Status = store.HTTPStatus(a.resp.StatusCode)
		e.Message = successMessage(a.value)
		e.Raw = excerpt(a.resp.Body)
	}
	return e
}

// probeEntry is the entry logged for an on-demand connection test.
func (a attempt) probeEntry() store.LogEntry {
	e := a.entry()
	if e.Outcome == store.OutcomeSuccess {
		e.Message = msgConnectionOK
		e.Raw = excerpt(prettyJSON(a.resp.Body))
	}
	return e
}

func successMessage(v *float64) string {
	if v == nil {
		return msgNoValue
	}
	return "Data received: " + strconv.FormatFloat(*v, 'f', -1, 64)
}

func transportMessage(code string, timeout time.Duration) string {
	switch code {
	case ErrCodeTimeout:
		return fmt.Sprintf("timeout of %dms exceeded", timeout.Milliseconds())
	case ErrCodeRefused:
		return "connection refused"
	case ErrCodeNotFound:
		return "host not found"
	case ErrCodeBadRequest:
		return "invalid request"
	case ErrCodeCanceled:
		return "request canceled"
	case ErrCodeReadFailure:
		return "failed to read response"
	default:
		return "Network Error"
	}
}

func latencyMs(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return d.Milliseconds()
}

// excerpt truncates b to maxRawExcerpt bytes without splitting a rune.
func excerpt(b []byte) string {
	if len(b) <= maxRawExcerpt {
		return string(b)
	}
	cut := maxRawExcerpt
	for cut > 0 && !utf8.RuneStart(b[cut]) {
		cut--
	}
	return string(b[:cut]) + "…"
}

func prettyJSON(b []byte) []byte {
	var buf bytes.Buffer
	if err := json.Indent(&buf, b, "", "  "); err != nil {
		return b
	}
	return buf.Bytes()
}

// decodeReading resolves value and timestamp from body. A nil extractor uses
// the built-in key priority rules. Non-finite values are misses.
func decodeReading(body []byte, custom ValueExtractor, now time.Time) (*float64, time.Time) {
	doc := extract.Decode(body)
	ts := extract.Timestamp(doc, now)

	var (
		v  float64
		ok bool
	)
	if custom != nil {
		v, ok = custom(body)
	} else {
		v, ok = extract.NumericValue(doc)
	}
	if !ok || !extract.Finite(v) {
		return nil, ts
	}
	return &v, ts
}
