// Package client speaks the LMS HTTP API. It backs the terminal client's session controller:
// Provider is its identity provider, and Client its profile reader, email resolver and profile updater.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/jayalms/lms/core/batch"
	"github.com/jayalms/lms/core/enrollment"
	"github.com/jayalms/lms/core/identity"
	"github.com/jayalms/lms/core/notice"
	"github.com/jayalms/lms/core/profile"
	"github.com/jayalms/lms/core/submission"
)

const apiPrefix = "/v1"

type (
	Client struct {
		baseURL string
		http    *http.Client

		mu    sync.RWMutex
		token string
	}

	StudentOverview struct {
		Pending     int `json:"pending_enrollments"`
		Approved    int `json:"approved_enrollments"`
		Rejected    int `json:"rejected_enrollments"`
		Notices     int `json:"notices"`
		Submissions int `json:"submissions"`
	}

	TeacherOverview struct {
		Batches          int `json:"batches"`
		PendingRequests  int `json:"pending_requests"`
		ApprovedStudents int `json:"approved_students"`
		Notices          int `json:"notices"`
		Submissions      int `json:"submissions"`
	}
)

var (
	_ profile.Reader         = (*Client)(nil)
	_ profile.Updater        = (*Client)(nil)
	_ identity.EmailResolver = (*Client)(nil)
)

// New returns a Client of the API at baseURL. Redirects are never followed: they are guard decisions.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	hc := *httpClient
	hc.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Client{baseURL: strings.TrimSuffix(baseURL, "/"), http: &hc}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, body)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

// send performs req and decodes a successful JSON response into out (when not nil).
func (c *Client) send(req *http.Request, out interface{}) error {
	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending request")
	}
	defer res.Body.Close()

	data, err := ioutil.ReadAll(res.Body)
	if err != nil {
		return errors.Wrap(err, "reading response")
	}
	if res.StatusCode >= http.StatusMultipleChoices {
		return newAPIError(res, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(data, out), "decoding response")
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "encoding request")
		}
		body = bytes.NewReader(data)
		contentType = "application/json"
	}
	req, err := c.newRequest(ctx, method, path, body, contentType)
	if err != nil {
		return err
	}
	return c.send(req, out)
}

// Auth

func (c *Client) SignIn(ctx context.Context, email, password string) (identity.Session, error) {
	var sess identity.Session
	err := c.do(ctx, http.MethodPost, "/auth/signin", identity.Credentials{Email: email, Password: password}, &sess)
	return sess, authError(err)
}

func (c *Client) SignUp(ctx context.Context, na identity.NewAccount) (identity.Session, error) {
	var sess identity.Session
	err := c.do(ctx, http.MethodPost, "/auth/signup", na, &sess)
	return sess, authError(err)
}

func (c *Client) SignOut(ctx context.Context) error {
	return authError(c.do(ctx, http.MethodPost, "/auth/signout", nil, nil))
}

func (c *Client) Refresh(ctx context.Context) (identity.Session, error) {
	var sess identity.Session
	err := c.do(ctx, http.MethodPost, "/auth/refresh", nil, &sess)
	return sess, authError(err)
}

// Session returns the session of the current token, as the server sees it.
func (c *Client) Session(ctx context.Context) (identity.Session, error) {
	var sess identity.Session
	err := c.do(ctx, http.MethodGet, "/auth/session", nil, &sess)
	return sess, authError(err)
}

// Roles lists the roles a new account can pick.
func (c *Client) Roles(ctx context.Context) ([]profile.RoleChoice, error) {
	var res []profile.RoleChoice
	err := c.do(ctx, http.MethodGet, "/auth/roles", nil, &res)
	return res, err
}

// EmailByName calls get_user_email_by_name. Fails with identity.ErrNotFound.
func (c *Client) EmailByName(ctx context.Context, name string) (string, error) {
	var res struct {
		Email string `json:"email"`
	}
	if err := c.do(ctx, http.MethodPost, "/rpc/get_user_email_by_name", map[string]string{"name": name}, &res); err != nil {
		if IsStatus(err, http.StatusNotFound) {
			return "", identity.ErrNotFound
		}
		return "", err
	}
	return res.Email, nil
}

// Profile

// GetProfile returns the profile of the signed in user; the API only serves the caller's own profile.
func (c *Client) GetProfile(ctx context.Context, id string) (profile.Profile, error) {
	var prof profile.Profile
	if err := c.do(ctx, http.MethodGet, "/profile", nil, &prof); err != nil {
		return profile.Profile{}, err
	}
	if id != "" && prof.ID != id {
		return profile.Profile{}, profile.ErrNotFound
	}
	return prof, nil
}

// CompleteProfile writes name & phone number and returns the affected rows; none means no profile matched.
func (c *Client) CompleteProfile(ctx context.Context, _ string, form profile.CompleteProfile) ([]profile.Profile, error) {
	var res struct {
		Rows []profile.Profile `json:"rows"`
	}
	if err := c.do(ctx, http.MethodPut, "/profile", form, &res); err != nil {
		return nil, err
	}
	return res.Rows, nil
}

// Dashboards

// StudentDashboard fails with a *RedirectError when the guard sends the user elsewhere.
func (c *Client) StudentDashboard(ctx context.Context) (StudentOverview, error) {
	var res StudentOverview
	err := c.do(ctx, http.MethodGet, "/dashboard/student", nil, &res)
	return res, err
}

// TeacherDashboard fails with a *RedirectError when the guard sends the user elsewhere.
func (c *Client) TeacherDashboard(ctx context.Context) (TeacherOverview, error) {
	var res TeacherOverview
	err := c.do(ctx, http.MethodGet, "/dashboard/teacher", nil, &res)
	return res, err
}

// Batches

func (c *Client) Batches(ctx context.Context) ([]batch.Batch, error) {
	var res []batch.Batch
	err := c.do(ctx, http.MethodGet, "/batches", nil, &res)
	return res, err
}

func (c *Client) Batch(ctx context.Context, id string) (batch.Batch, error) {
	var res batch.Batch
	err := c.do(ctx, http.MethodGet, "/batches/"+url.PathEscape(id), nil, &res)
	return res, err
}

func (c *Client) CreateBatch(ctx context.Context, form batch.Form) (batch.Batch, error) {
	var res batch.Batch
	err := c.do(ctx, http.MethodPost, "/batches", form, &res)
	return res, err
}

func (c *Client) UpdateBatch(ctx context.Context, id string, form batch.Form) (batch.Batch, error) {
	var res batch.Batch
	err := c.do(ctx, http.MethodPut, "/batches/"+url.PathEscape(id), form, &res)
	return res, err
}

func (c *Client) DeleteBatch(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/batches/"+url.PathEscape(id), nil, nil)
}

func (c *Client) BatchStudents(ctx context.Context, id string) ([]profile.Profile, error) {
	var res []profile.Profile
	err := c.do(ctx, http.MethodGet, "/batches/"+url.PathEscape(id)+"/students", nil, &res)
	return res, err
}

// Enrollments

// RequestEnrollment fails with enrollment.ErrProfileIncomplete when the profile must be completed first.
func (c *Client) RequestEnrollment(ctx context.Context, batchID string) (enrollment.Enrollment, error) {
	var res enrollment.Enrollment
	err := c.do(ctx, http.MethodPost, "/enrollments", enrollment.RequestForm{BatchID: batchID}, &res)
	return res, err
}

func (c *Client) Enrollments(ctx context.Context) ([]enrollment.Enrollment, error) {
	var res []enrollment.Enrollment
	err := c.do(ctx, http.MethodGet, "/enrollments", nil, &res)
	return res, err
}

func (c *Client) SetEnrollmentStatus(ctx context.Context, id string, status enrollment.Status) (enrollment.Enrollment, error) {
	var res enrollment.Enrollment
	err := c.do(ctx, http.MethodPut, "/enrollments/"+url.PathEscape(id)+"/status", enrollment.StatusForm{Status: status}, &res)
	return res, err
}

func (c *Client) RemoveEnrollment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/enrollments/"+url.PathEscape(id), nil, nil)
}

// Notices

func (c *Client) Notices(ctx context.Context) ([]notice.Notice, error) {
	var res []notice.Notice
	err := c.do(ctx, http.MethodGet, "/notices", nil, &res)
	return res, err
}

func (c *Client) CreateNotice(ctx context.Context, form notice.Form) (notice.Notice, error) {
	var res notice.Notice
	err := c.do(ctx, http.MethodPost, "/notices", form, &res)
	return res, err
}

func (c *Client) DeleteNotice(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/notices/"+url.PathEscape(id), nil, nil)
}

// Submissions

// Submit uploads the PDF read from r as homework for batchID.
func (c *Client) Submit(ctx context.Context, batchID, filename string, r io.Reader) (submission.Submission, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("batch_id", batchID); err != nil {
		return submission.Submission{}, errors.Wrap(err, "writing batch_id")
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return submission.Submission{}, errors.Wrap(err, "creating file part")
	}
	if _, err = io.Copy(part, r); err != nil {
		return submission.Submission{}, errors.Wrap(err, "copying file")
	}
	if err = w.Close(); err != nil {
		return submission.Submission{}, errors.Wrap(err, "closing multipart writer")
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/submissions", &body, w.FormDataContentType())
	if err != nil {
		return submission.Submission{}, err
	}
	var res submission.Submission
	err = c.send(req, &res)
	return res, err
}

func (c *Client) Submissions(ctx context.Context) ([]submission.Submission, error) {
	var res []submission.Submission
	err := c.do(ctx, http.MethodGet, "/submissions", nil, &res)
	return res, err
}

// DownloadURL returns a short-lived URL to the submitted file.
func (c *Client) DownloadURL(ctx context.Context, id string) (string, error) {
	var res struct {
		URL string `json:"url"`
	}
	err := c.do(ctx, http.MethodGet, "/submissions/"+url.PathEscape(id)+"/download", nil, &res)
	return res.URL, err
}
