package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"scheduler/internal/adapters/http/perf"
	"scheduler/internal/domain/course"
	"scheduler/internal/domain/section"
	"scheduler/internal/domain/term"
	"scheduler/internal/domain/wizard"
)

// DefaultTimeout bounds every backend call unless configured otherwise.
const DefaultTimeout = 30 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 10 << 20

// Config holds client construction parameters.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Collector  *perf.Collector
	// RequestID returns the inbound request's correlation ID, if any.
	RequestID func(context.Context) string
}

// Client calls the scheduling backend's REST API. It is stateless: every
// authenticated method takes the caller's bearer token.
type Client struct {
	baseURL   string
	http      *http.Client
	collector *perf.Collector
	requestID func(context.Context) string
}

// New creates a backend client.
// PRE: cfg.BaseURL is an absolute http(s) URL
// POST: Returns a ready-to-use client; a zero Timeout means DefaultTimeout
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		http:      hc,
		collector: cfg.Collector,
		requestID: cfg.RequestID,
	}
}

// call describes one backend request.
type call struct {
	op          string
	method      string
	path        string
	token       string
	public      bool // no bearer token required
	body        io.Reader
	contentType string
	fallback    string
}

// do performs c and decodes a 2xx JSON body into out (when out is non-nil).
func (cl *Client) do(ctx context.Context, c call, out any) error {
	if !c.public && strings.TrimSpace(c.token) == "" {
		return ErrUnauthenticated
	}

	req, err := http.NewRequestWithContext(ctx, c.method, cl.baseURL+c.path, c.body)
	if err != nil {
		return transportError(c.op, err)
	}
	if c.contentType != "" {
		req.Header.Set("Content-Type", c.contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	reqID := ""
	if cl.requestID != nil {
		reqID = cl.requestID(ctx)
	}
	if reqID == "" {
		reqID = uuid.NewString()
	}
	req.Header.Set("X-Request-ID", reqID)

	start := time.Now()
	resp, err := cl.http.Do(req)
	if err != nil {
		cl.observe(c.op, 0, start)
		slog.Warn("backend_transport_failed", "op", c.op, "request_id", reqID, "error", err)
		return transportError(c.op, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	cl.observe(c.op, resp.StatusCode, start)
	if err != nil {
		return transportError(c.op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Op: c.op, Status: resp.StatusCode, Message: messageFrom(body, c.fallback)}
		slog.Warn("backend_request_failed",
			"op", c.op,
			"status", resp.StatusCode,
			"request_id", reqID,
			"message", apiErr.Message,
		)
		return apiErr
	}

	slog.Debug("backend_request", "op", c.op, "status", resp.StatusCode, "request_id", reqID)
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return transportError(c.op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func (cl *Client) observe(op string, status int, start time.Time) {
	if cl.collector == nil {
		return
	}
	cl.collector.Record(perf.Entry{
		Kind:       perf.KindBackend,
		Path:       op,
		StatusCode: status,
		DurationMs: float64(time.Since(start).Microseconds()) / 1000.0,
		Timestamp:  start,
	})
}

func jsonBody(v any) (io.Reader, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(b), nil
}

// --- Auth ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login exchanges credentials for a bearer token.
// PRE: email and password are non-empty
// POST: returns a non-empty token, ErrNoAccessToken, *APIError or ErrTransport
func (cl *Client) Login(ctx context.Context, email, password string) (string, error) {
	body, err := jsonBody(loginRequest{Email: email, Password: password})
	if err != nil {
		return "", err
	}
	var out loginResponse
	err = cl.do(ctx, call{
		op: "Login", method: http.MethodPost, path: "/auth/login", public: true,
		body: body, contentType: "application/json", fallback: "Login failed",
	}, &out)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out.AccessToken) == "" {
		return "", ErrNoAccessToken
	}
	return out.AccessToken, nil
}

// --- Terms ---

type createTermRequest struct {
	Name      string `json:"name"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// ListTerms returns every term.
func (cl *Client) ListTerms(ctx context.Context, token string) ([]term.Term, error) {
	var out []term.Term
	err := cl.do(ctx, call{
		op: "ListTerms", method: http.MethodGet, path: "/terms", token: token,
		fallback: "Failed to fetch terms",
	}, &out)
	return out, err
}

// CreateTerm creates a term and returns the backend's copy.
// PRE: t.Validate() == nil
func (cl *Client) CreateTerm(ctx context.Context, token string, t term.Term) (term.Term, error) {
	body, err := jsonBody(createTermRequest{
		Name:      strings.TrimSpace(t.Name),
		StartDate: t.StartDate.Format(term.DateFormat),
		EndDate:   t.EndDate.Format(term.DateFormat),
	})
	if err != nil {
		return term.Term{}, err
	}
	var out term.Term
	err = cl.do(ctx, call{
		op: "CreateTerm", method: http.MethodPost, path: "/terms", token: token,
		body: body, contentType: "application/json", fallback: "Failed to create term",
	}, &out)
	return out, err
}

// DeleteTerm deletes a term by ID.
func (cl *Client) DeleteTerm(ctx context.Context, token, id string) error {
	return cl.do(ctx, call{
		op: "DeleteTerm", method: http.MethodDelete, path: "/terms/" + url.PathEscape(id), token: token,
		fallback: "Failed to delete term",
	}, nil)
}

// --- Courses ---

// ListCourses returns the course catalog in backend order.
func (cl *Client) ListCourses(ctx context.Context, token string) ([]course.Course, error) {
	var out []course.Course
	err := cl.do(ctx, call{
		op: "ListCourses", method: http.MethodGet, path: "/courses", token: token,
		fallback: "Failed to fetch courses",
	}, &out)
	return out, err
}

// GetCourse returns one course by its code.
func (cl *Client) GetCourse(ctx context.Context, token, code string) (course.Course, error) {
	var out course.Course
	err := cl.do(ctx, call{
		op: "GetCourse", method: http.MethodGet, path: "/courses/" + url.PathEscape(code), token: token,
		fallback: "Failed to fetch course details",
	}, &out)
	return out, err
}

// --- Sections ---

// ListSections returns every section.
func (cl *Client) ListSections(ctx context.Context, token string) ([]section.Section, error) {
	var out []section.Section
	err := cl.do(ctx, call{
		op: "ListSections", method: http.MethodGet, path: "/sections", token: token,
		fallback: "Failed to fetch all sections",
	}, &out)
	return out, err
}

// ListSectionsByTerm fetches all sections and keeps those belonging to termID.
// The backend has no term-only filter.
func (cl *Client) ListSectionsByTerm(ctx context.Context, token, termID string) ([]section.Section, error) {
	var all []section.Section
	err := cl.do(ctx, call{
		op: "ListSectionsByTerm", method: http.MethodGet, path: "/sections", token: token,
		fallback: "Failed to fetch sections",
	}, &all)
	if err != nil {
		return nil, err
	}
	out := make([]section.Section, 0, len(all))
	for _, s := range all {
		if s.TermID == termID {
			out = append(out, s)
		}
	}
	return out, nil
}

// ListSectionsByTermAndYear returns the server-filtered sections for one year
// level. Sections whose course failed to resolve are dropped.
// PRE: yearLevel in 1..4
func (cl *Client) ListSectionsByTermAndYear(ctx context.Context, token, termID string, yearLevel int) ([]section.Section, error) {
	var all []section.Section
	err := cl.do(ctx, call{
		op:     "ListSectionsByTermAndYear",
		method: http.MethodGet,
		path:   "/sections/term/" + url.PathEscape(termID) + "/year/" + strconv.Itoa(yearLevel),
		token:  token, fallback: "Failed to fetch sections by term and yearLevel",
	}, &all)
	if err != nil {
		return nil, err
	}
	out := make([]section.Section, 0, len(all))
	for _, s := range all {
		if s.HasCourse() {
			out = append(out, s)
		}
	}
	return out, nil
}

// GetSection returns one section by ID.
func (cl *Client) GetSection(ctx context.Context, token, id string) (section.Section, error) {
	var out section.Section
	err := cl.do(ctx, call{
		op: "GetSection", method: http.MethodGet, path: "/sections/" + url.PathEscape(id), token: token,
		fallback: "Failed to fetch section details",
	}, &out)
	return out, err
}

// DeleteSection deletes a section by ID.
func (cl *Client) DeleteSection(ctx context.Context, token, id string) error {
	return cl.do(ctx, call{
		op: "DeleteSection", method: http.MethodDelete, path: "/sections/" + url.PathEscape(id), token: token,
		fallback: "Failed to delete section",
	}, nil)
}

// --- Scheduling ---

// BulkSection is one requested course in a bulk scheduling request.
type BulkSection struct {
	CourseID         string `json:"courseId" validate:"required"`
	ExpectedStudents int    `json:"expectedStudents" validate:"gt=0"`
}

// BulkRequest asks the backend to create and place sections for a term.
type BulkRequest struct {
	TermID          string        `json:"termId" validate:"required"`
	Sections        []BulkSection `json:"sections" validate:"min=1,dive"`
	DefaultCapacity int           `json:"defaultCapacity" validate:"gt=0"`
}

// BulkResult is the backend's answer to a bulk request. Both fields are
// passed through without interpretation.
type BulkResult struct {
	Schedule  json.RawMessage `json:"schedule"`
	Conflicts json.RawMessage `json:"conflicts"`
}

// ConflictCount returns the number of reported conflicts.
func (r BulkResult) ConflictCount() int {
	return conflictCount(r.Conflicts)
}

// BulkSchedule submits a bulk scheduling request.
// PRE: req has at least one section and a term
func (cl *Client) BulkSchedule(ctx context.Context, token string, req BulkRequest) (BulkResult, error) {
	body, err := jsonBody(req)
	if err != nil {
		return BulkResult{}, err
	}
	var out BulkResult
	err = cl.do(ctx, call{
		op: "BulkSchedule", method: http.MethodPost, path: "/schedule/bulk", token: token,
		body: body, contentType: "application/json", fallback: "Failed to generate schedule from Excel",
	}, &out)
	return out, err
}

// UploadSections sends a spreadsheet of sections for import into termID.
// PRE: r yields the file contents; filename is the original upload name
// POST: returns the import summary
func (cl *Client) UploadSections(ctx context.Context, token, termID, filename string, r io.Reader) (wizard.UploadResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return wizard.UploadResult{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return wizard.UploadResult{}, fmt.Errorf("read upload: %w", err)
	}
	if err := mw.WriteField("termId", termID); err != nil {
		return wizard.UploadResult{}, err
	}
	if err := mw.Close(); err != nil {
		return wizard.UploadResult{}, err
	}

	var out wizard.UploadResult
	err = cl.do(ctx, call{
		op: "UploadSections", method: http.MethodPost, path: "/initial-load/sections", token: token,
		body: &buf, contentType: mw.FormDataContentType(), fallback: "Failed to upload Excel for section import",
	}, &out)
	return out, err
}

// Schedule is a stored scheduling run for a term.
type Schedule struct {
	Raw       json.RawMessage
	Conflicts int
}

// UnmarshalJSON keeps the raw document and counts "conflicts" when present.
func (s *Schedule) UnmarshalJSON(data []byte) error {
	s.Raw = append(json.RawMessage(nil), data...)
	var probe struct {
		Conflicts json.RawMessage `json:"conflicts"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		// Non-object documents are passed through without a count.
		s.Conflicts = 0
		return nil
	}
	s.Conflicts = conflictCount(probe.Conflicts)
	return nil
}

// GenerateSchedule asks the backend to run the scheduler for a term.
func (cl *Client) GenerateSchedule(ctx context.Context, token, termID string) (Schedule, error) {
	var out Schedule
	err := cl.do(ctx, call{
		op: "GenerateSchedule", method: http.MethodPost, path: "/schedule/" + url.PathEscape(termID), token: token,
		fallback: "Failed to generate schedule",
	}, &out)
	return out, err
}

// GetSchedule fetches the stored schedule for a term.
func (cl *Client) GetSchedule(ctx context.Context, token, termID string) (Schedule, error) {
	var out Schedule
	err := cl.do(ctx, call{
		op: "GetSchedule", method: http.MethodGet, path: "/schedule/" + url.PathEscape(termID), token: token,
		fallback: "Failed to fetch schedule",
	}, &out)
	return out, err
}

// conflictCount interprets a "conflicts" field that may be an array or a number.
func conflictCount(raw json.RawMessage) int {
	if len(raw) == 0 {
		return 0
	}
	var list []json.RawMessage
	if err := json.Unmarshal(raw, &list); err == nil {
		return len(list)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil && n > 0 {
		return n
	}
	return 0
}

// IsUnauthenticated reports whether err means the session's token is unusable.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}
