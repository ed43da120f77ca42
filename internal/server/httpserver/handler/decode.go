package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/attendmesh/internal/core/domain"
)

const maxBodyBytes = 64 << 10

// decodeJSON decodes a JSON request body into v. An empty body leaves v
// untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

// endBody is the JSON shape of an end notification. logout_time may be an
// RFC 3339 string or epoch milliseconds.
type endBody struct {
	LogoutTime json.RawMessage `json:"logout_time"`
	Token      string          `json:"token"`
	Reason     string          `json:"reason"`
}

// parseEndRequest reads an end notification. Beacons cannot set headers
// beyond a content type, so JSON is accepted under text/plain too.
func parseEndRequest(w http.ResponseWriter, r *http.Request) (*EndRequest, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.ErrBadRequest.WithDetails("request body too large")
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/x-www-form-urlencoded" {
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil, domain.ErrBadRequest.WithDetails("malformed form body")
		}
		return &EndRequest{
			LogoutTime: form.Get("logout_time"),
			Token:      form.Get("token"),
			Reason:     form.Get("reason"),
		}, nil
	}

	req := &EndRequest{}
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil
	}
	var eb endBody
	if err := json.Unmarshal(body, &eb); err != nil {
		return nil, domain.ErrBadRequest.WithDetails("malformed JSON body")
	}
	req.Token = eb.Token
	req.Reason = eb.Reason
	req.LogoutTime = rawTime(eb.LogoutTime)
	return req, nil
}

// rawTime flattens a JSON string or number to its text; null is "".
func rawTime(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// parseReviveRequest reads the optional unload_time of a revive call.
// An empty body is valid.
func parseReviveRequest(w http.ResponseWriter, r *http.Request) (time.Time, error) {
	var body struct {
		UnloadTime json.RawMessage `json:"unload_time"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		return time.Time{}, domain.ErrBadRequest.WithDetails("malformed JSON body")
	}
	t, err := parseLogoutTime(rawTime(body.UnloadTime))
	if err != nil {
		return time.Time{}, domain.ErrInvalidArgument.WithDetails("invalid unload_time")
	}
	return t, nil
}

// parseLogoutTime accepts RFC 3339 (with or without fraction) or epoch
// milliseconds. Empty means "now" and yields the zero time.
func parseLogoutTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms), nil
	}
	return time.Time{}, domain.ErrInvalidLogoutTime.WithDetails(fmt.Sprintf("cannot parse %q", s))
}

var errBadDate = errors.New("invalid date")

// parseDay reads the {year}/{month}/{day} path values. Without them it
// returns ok=false so that callers fall back to today.
func parseDay(r *http.Request, loc *time.Location) (time.Time, bool, error) {
	ys, ms, ds := r.PathValue("year"), r.PathValue("month"), r.PathValue("day")
	if ys == "" && ms == "" && ds == "" {
		return time.Time{}, false, nil
	}
	y, err1 := strconv.Atoi(ys)
	m, err2 := strconv.Atoi(ms)
	d, err3 := strconv.Atoi(ds)
	if err := errors.Join(err1, err2, err3); err != nil {
		return time.Time{}, true, errBadDate
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, loc)
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, true, errBadDate
	}
	return t, true, nil
}
