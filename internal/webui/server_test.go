package webui

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"datestd/internal/config"
)

func post(t *testing.T, h http.Handler, q url.Values, body string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/standardize?"+q.Encode(), strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Result()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

/*
TestStandardize covers the three outcomes of the API: a rewritten body, a
bypassed body and a 422 carrying the run error.
*/
func TestStandardize(t *testing.T) {
	t.Parallel()

	h := NewServer(Config{}).Handler()

	tests := []struct {
		name        string
		q           url.Values
		body        string
		wantStatus  int
		wantOutcome string
		wantBody    string
		wantMatched string
	}{
		{
			name: "success",
			q: url.Values{
				"invalidDates": {`{"d":"MM/dd/yy"}`},
				"timezone":     {"CST"},
			},
			body:        `{"d":"01/15/24"}` + "\n",
			wantStatus:  http.StatusOK,
			wantOutcome: "success",
			wantBody:    `{"d":"01/15/24","d_standardized":"2024-01-15 06:00:00.000"}` + "\n",
			wantMatched: "d",
		},
		{
			name:        "bypass_without_fields",
			q:           url.Values{"timezone": {"UTC"}},
			body:        "anything \x00 goes",
			wantStatus:  http.StatusOK,
			wantOutcome: "bypass",
			wantBody:    "anything \x00 goes",
		},
		{
			name: "bad_date_is_422",
			q: url.Values{
				"invalidDates": {`{"d":"MM/dd/yy"}`},
				"timezone":     {"UTC"},
			},
			body:        `{"d":"someday"}` + "\n",
			wantStatus:  http.StatusUnprocessableEntity,
			wantOutcome: "failure",
			wantBody:    "date error",
		},
		{
			name: "missing_timezone_is_422",
			q: url.Values{
				"invalidDates": {`{"d":"yyyy"}`},
			},
			body:        `{"d":"2024"}`,
			wantStatus:  http.StatusUnprocessableEntity,
			wantOutcome: "failure",
			wantBody:    "config error",
		},
	}
	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			resp := post(t, h, tc.q, tc.body)
			got := readBody(t, resp)
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d; want %d (body %q)", resp.StatusCode, tc.wantStatus, got)
			}
			if o := resp.Header.Get(HeaderOutcome); o != tc.wantOutcome {
				t.Fatalf("%s = %q; want %q", HeaderOutcome, o, tc.wantOutcome)
			}
			if resp.StatusCode == http.StatusOK && got != tc.wantBody {
				t.Fatalf("body = %q; want %q", got, tc.wantBody)
			}
			if resp.StatusCode != http.StatusOK && !strings.Contains(got, tc.wantBody) {
				t.Fatalf("error body %q does not contain %q", got, tc.wantBody)
			}
			if m := resp.Header.Get(HeaderMatched); m != tc.wantMatched {
				t.Fatalf("%s = %q; want %q", HeaderMatched, m, tc.wantMatched)
			}
			if len(resp.Header.Get(HeaderFingerprint)) != 16 {
				t.Fatalf("%s = %q; want 16 hex digits", HeaderFingerprint, resp.Header.Get(HeaderFingerprint))
			}
			if len(resp.Header.Get(HeaderRunID)) != 36 {
				t.Fatalf("%s = %q; want a uuid", HeaderRunID, resp.Header.Get(HeaderRunID))
			}
		})
	}
}

func TestStandardize_DefaultsAndQueryOverride(t *testing.T) {
	t.Parallel()

	h := NewServer(Config{Defaults: config.Options{
		"invalidDates": `{"d":"yyyyMMdd"}`,
		"timezone":     "UTC",
	}}).Handler()

	resp := post(t, h, nil, `{"d":"20240102"}`)
	if got := readBody(t, resp); got != `{"d":"20240102","d_standardized":"2024-01-02 00:00:00.000"}`+"\n" {
		t.Fatalf("body with defaults = %q", got)
	}

	resp = post(t, h, url.Values{"timezone": {"+02:00"}}, `{"d":"20240102"}`)
	if got := readBody(t, resp); got != `{"d":"20240102","d_standardized":"2024-01-01 22:00:00.000"}`+"\n" {
		t.Fatalf("body with query override = %q", got)
	}
}

func TestStandardize_BodyLimit(t *testing.T) {
	t.Parallel()

	h := NewServer(Config{MaxBodyBytes: 8}).Handler()
	resp := post(t, h, nil, strings.Repeat("x", 64))
	readBody(t, resp)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d; want 413", resp.StatusCode)
	}
}

func TestHealthAndMethods(t *testing.T) {
	t.Parallel()

	h := NewServer(Config{}).Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Fatalf("GET /healthz = %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/standardize", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /api/standardize = %d; want 405", rec.Code)
	}
}
