package untis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	appLog "untiscal/internal/log"
	"untiscal/internal/model"
)

// ErrUnauthorized indicates the session credential was rejected even after
// a single token refresh. The run aborts; re-authentication is the external
// login flow's responsibility.
var ErrUnauthorized = errors.New("unauthorized")

const (
	schoolYearsPath = "/api/rest/view/v1/schoolyears"
	timetablePath   = "/api/rest/view/v1/timetable/entries"
	tokenPath       = "/api/token/new"
	jsonRPCPath     = "/jsonrpc.do"
)

// Client talks to the WebUntis REST API. It holds no session state; the
// credential is passed explicitly into every call.
type Client struct {
	http    *http.Client
	baseURL string
}

// NewClient creates a Client for the given server host.
func NewClient(server string) *Client {
	return &Client{
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		baseURL: "https://" + server + "/WebUntis",
	}
}

// SchoolYears fetches the available school years.
func (c *Client) SchoolYears(ctx context.Context, cred model.Credential) ([]SchoolYear, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+schoolYearsPath, nil)
	if err != nil {
		return nil, err
	}
	c.authorize(req, cred)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("school years: %s", resp.Status)
	}

	var years []SchoolYear
	if err := json.NewDecoder(resp.Body).Decode(&years); err != nil {
		return nil, fmt.Errorf("school years: %w", err)
	}
	return years, nil
}

// CurrentSchoolYear resolves the school year id the timetable endpoint
// expects: the entry flagged current, or the first one as a fallback.
func (c *Client) CurrentSchoolYear(ctx context.Context, cred model.Credential) (string, error) {
	years, err := c.SchoolYears(ctx, cred)
	if err != nil {
		return "", err
	}
	for _, sy := range years {
		if sy.IsCurrent {
			appLog.Info("current school year", "name", sy.Name, "id", sy.ID)
			return strconv.FormatInt(sy.ID, 10), nil
		}
	}
	if len(years) > 0 {
		appLog.Warn("no current school year flagged, using first", "name", years[0].Name, "id", years[0].ID)
		return strconv.FormatInt(years[0].ID, 10), nil
	}
	return "", errors.New("no school years returned")
}

// Timetable fetches the grid-format timetable for [start, end]. A 401 is
// retried exactly once after refreshing the bearer token from the session
// cookies; a second 401 aborts with ErrUnauthorized.
func (c *Client) Timetable(ctx context.Context, cred model.Credential, start, end time.Time) (*Timetable, error) {
	tt, status, err := c.timetable(ctx, cred, start, end)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		appLog.Warn("timetable fetch unauthorized, refreshing token")
		tok, rerr := c.RefreshToken(ctx, cred)
		if rerr != nil {
			return nil, fmt.Errorf("token refresh failed: %w: %w", rerr, ErrUnauthorized)
		}
		cred = cred.WithBearerToken(tok)
		tt, status, err = c.timetable(ctx, cred, start, end)
		if err != nil {
			return nil, err
		}
		if status == http.StatusUnauthorized {
			return nil, fmt.Errorf("timetable fetch: %w", ErrUnauthorized)
		}
	}
	if tt != nil {
		appLog.Info("timetable fetched",
			"start", start.Format("2006-01-02"),
			"end", end.Format("2006-01-02"),
			"entries", tt.EntryCount(),
		)
	}
	return tt, nil
}

// timetable performs one fetch attempt. A 401 is reported via the status
// return so the caller can decide on the retry; other non-OK statuses are
// errors outright.
func (c *Client) timetable(ctx context.Context, cred model.Credential, start, end time.Time) (*Timetable, int, error) {
	q := url.Values{}
	q.Set("start", start.Format("2006-01-02"))
	q.Set("end", end.Format("2006-01-02"))
	q.Set("format", "4") // grid format
	q.Set("resourceType", "STUDENT")
	q.Set("resources", cred.PersonID)
	q.Set("periodTypes", "")
	q.Set("timetableType", "MY_TIMETABLE")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+timetablePath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, 0, err
	}
	c.authorize(req, cred)
	if cred.SchoolYearID != "" {
		req.Header.Set("x-webuntis-api-school-year-id", cred.SchoolYearID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var tt Timetable
		if err := json.NewDecoder(resp.Body).Decode(&tt); err != nil {
			return nil, resp.StatusCode, fmt.Errorf("timetable decode: %w", err)
		}
		return &tt, resp.StatusCode, nil
	case http.StatusUnauthorized:
		return nil, resp.StatusCode, nil
	default:
		return nil, resp.StatusCode, fmt.Errorf("timetable fetch: %s", resp.Status)
	}
}

// RefreshToken obtains a fresh bearer token using the session cookies.
func (c *Client) RefreshToken(ctx context.Context, cred model.Credential) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+tokenPath, nil)
	if err != nil {
		return "", err
	}
	addCookies(req, cred)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token refresh: %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	// The endpoint returns the bare token, sometimes JSON-quoted.
	tok := strings.Trim(strings.TrimSpace(string(body)), `"`)
	if tok == "" {
		return "", errors.New("token refresh: empty token")
	}
	return tok, nil
}

// Logout ends the server-side session via JSON-RPC. Best effort: callers
// log the returned error at most.
func (c *Client) Logout(ctx context.Context, cred model.Credential, school string) error {
	payload := map[string]any{
		"id":      "request_id",
		"method":  "logout",
		"params":  map[string]any{},
		"jsonrpc": "2.0",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	u := c.baseURL + jsonRPCPath
	if school != "" {
		u += "?school=" + url.QueryEscape(school)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	addCookies(req, cred)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// authorize sets the bearer and tenant headers plus the session cookies.
func (c *Client) authorize(req *http.Request, cred model.Credential) {
	req.Header.Set("Authorization", "Bearer "+cred.BearerToken)
	if cred.TenantID != "" {
		req.Header.Set("tenant-id", cred.TenantID)
	}
	addCookies(req, cred)
}

func addCookies(req *http.Request, cred model.Credential) {
	for _, ck := range cred.Cookies {
		req.AddCookie(&http.Cookie{Name: ck.Name, Value: ck.Value})
	}
}
