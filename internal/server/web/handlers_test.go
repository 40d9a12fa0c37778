package web

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/thepicklr/notebook/internal/common"
	"github.com/thepicklr/notebook/internal/logging"
	"github.com/thepicklr/notebook/internal/server/auth"
	"github.com/thepicklr/notebook/internal/server/models"
	"github.com/thepicklr/notebook/internal/server/repositories/users"
)

type fakeNotebook struct {
	entries []*models.Entry
	updated struct {
		id                            int64
		whatDid, whatLearned, project string
	}
	deleted   []int64
	updateErr error
}

func (f *fakeNotebook) FetchAllEntries(context.Context) ([]*models.Entry, error) {
	return f.entries, nil
}

func (f *fakeNotebook) FetchEntry(_ context.Context, id int64) (*models.Entry, error) {
	for _, e := range f.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, nil
}

func (f *fakeNotebook) UpdateEntry(_ context.Context, id int64, whatDid, whatLearned, projectName string) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated.id = id
	f.updated.whatDid = whatDid
	f.updated.whatLearned = whatLearned
	f.updated.project = projectName
	return nil
}

func (f *fakeNotebook) DeleteEntry(_ context.Context, id int64) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeNotebook) ListProjects(context.Context) ([]string, error) {
	return []string{"Drivetrain", "Swerve Rewrite"}, nil
}

func (f *fakeNotebook) ListTags(context.Context) ([]string, error) {
	return []string{"mechanical", "programming", "outreach", "scouting"}, nil
}

type fakeUsers struct {
	byName map[string]*models.User
}

func (f *fakeUsers) GetByName(_ context.Context, name string) (*models.User, error) {
	u, ok := f.byName[name]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type fakeImages struct{}

func (fakeImages) Enabled() bool { return true }
func (fakeImages) PresignGet(_ context.Context, key string) (string, error) {
	return "https://bucket.example/" + key + "?signed", nil
}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.NewJSONHandler(io.Discard, nil)))
}

func testEntries() []*models.Entry {
	return []*models.Entry{
		{
			ID: 2, WhatDid: "Tuned PID", WhatLearned: "Windup is real",
			CreatorName: "Cy Young", CreatedAt: time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC),
			Project: "Drivetrain", Authors: []string{"Cy Young", "Alice Doe"},
			Tags: []string{"mechanical"}, Milestone: true,
			Images: []models.FileRef{{FileName: "cad.png", FileURL: "s3:uploads/2025/3/14/abc"}},
		},
		{
			ID: 1, WhatDid: "Initial build", WhatLearned: "Read the manual",
			CreatorName: "Alice Doe", CreatedAt: time.Date(2025, 3, 13, 10, 0, 0, 0, time.UTC),
			Authors: []string{}, Tags: []string{}, Images: []models.FileRef{},
		},
	}
}

func newTestServer(t *testing.T, notebook *fakeNotebook, accounts *fakeUsers) *Server {
	t.Helper()
	s, err := NewServer(":0", notebook, accounts, fakeImages{}, nil,
		[]byte("secret-key"), []byte("session-key"), testLogger())
	require.NoError(t, err)
	return s
}

func authCookie(t *testing.T, s *Server, name string) *http.Cookie {
	t.Helper()
	token, err := auth.GenerateToken(name, s.secretKey, time.Hour)
	require.NoError(t, err)
	return &http.Cookie{Name: authCookieName, Value: token}
}

func TestIndexListsEntries(t *testing.T) {
	notebook := &fakeNotebook{entries: testEntries()}
	s := newTestServer(t, notebook, &fakeUsers{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Tuned PID")
	assert.Contains(t, body, "Initial build")
	assert.Contains(t, body, "milestone")
	// Newest first: the service returns them ordered and the page keeps it.
	assert.Less(t, strings.Index(body, "Tuned PID"), strings.Index(body, "Initial build"))
}

func TestIndexFiltersByTag(t *testing.T) {
	notebook := &fakeNotebook{entries: testEntries()}
	s := newTestServer(t, notebook, &fakeUsers{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/?tag=mechanical", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Tuned PID")
	assert.NotContains(t, body, "Initial build")
}

func TestEntryPagePresignsArchivedImages(t *testing.T) {
	notebook := &fakeNotebook{entries: testEntries()}
	s := newTestServer(t, notebook, &fakeUsers{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/entries/2", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "https://bucket.example/uploads/2025/3/14/abc?signed")
}

func TestEntryPageNotFound(t *testing.T) {
	s := newTestServer(t, &fakeNotebook{}, &fakeUsers{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/entries/99", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEntryUpdateRequiresAuth(t *testing.T) {
	notebook := &fakeNotebook{entries: testEntries()}
	s := newTestServer(t, notebook, &fakeUsers{})

	form := url.Values{"what_did": {"x"}, "what_learned": {"y"}}
	req := httptest.NewRequest(http.MethodPost, "/entries/2", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
	assert.Zero(t, notebook.updated.id)
}

func TestEntryUpdate(t *testing.T) {
	notebook := &fakeNotebook{entries: testEntries()}
	s := newTestServer(t, notebook, &fakeUsers{})

	form := url.Values{
		"what_did":     {"Rebuilt the arm"},
		"what_learned": {"Measure twice"},
		"project":      {"Swerve Rewrite"},
	}
	req := httptest.NewRequest(http.MethodPost, "/entries/2", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(authCookie(t, s, "Cy Young"))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/entries/2", rec.Header().Get("Location"))
	assert.Equal(t, int64(2), notebook.updated.id)
	assert.Equal(t, "Rebuilt the arm", notebook.updated.whatDid)
	assert.Equal(t, "Swerve Rewrite", notebook.updated.project)
}

func TestEntryUpdateUnknownId(t *testing.T) {
	notebook := &fakeNotebook{updateErr: common.ErrorNotFound}
	s := newTestServer(t, notebook, &fakeUsers{})

	form := url.Values{"what_did": {"x"}, "what_learned": {"y"}}
	req := httptest.NewRequest(http.MethodPost, "/entries/99", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(authCookie(t, s, "Cy Young"))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEntryDelete(t *testing.T) {
	notebook := &fakeNotebook{entries: testEntries()}
	s := newTestServer(t, notebook, &fakeUsers{})

	req := httptest.NewRequest(http.MethodPost, "/entries/2/delete", nil)
	req.AddCookie(authCookie(t, s, "Cy Young"))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, []int64{2}, notebook.deleted)
}

func TestLogin(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.DefaultCost)
	require.NoError(t, err)

	accounts := &fakeUsers{byName: map[string]*models.User{
		"Cy Young":  {ID: 1, Name: "Cy Young", Password: string(hash)},
		"Alice Doe": {ID: 2, Name: "Alice Doe", Password: users.PlaceholderPassword},
	}}
	s := newTestServer(t, &fakeNotebook{}, accounts)

	login := func(name, password string) *httptest.ResponseRecorder {
		form := url.Values{"name": {name}, "password": {password}}
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec
	}

	t.Run("success sets auth cookie", func(t *testing.T) {
		rec := login("Cy Young", "hunter2")
		require.Equal(t, http.StatusSeeOther, rec.Code)

		var token string
		for _, c := range rec.Result().Cookies() {
			if c.Name == authCookieName {
				token = c.Value
				assert.True(t, c.HttpOnly)
			}
		}
		require.NotEmpty(t, token)

		name, err := auth.GetUserNameFromToken(token, s.secretKey)
		require.NoError(t, err)
		assert.Equal(t, "Cy Young", name)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := login("Cy Young", "wrong")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid name or password")
	})

	t.Run("placeholder password cannot log in", func(t *testing.T) {
		rec := login("Alice Doe", users.PlaceholderPassword)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := login("Nobody", "hunter2")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLogoutClearsCookie(t *testing.T) {
	s := newTestServer(t, &fakeNotebook{}, &fakeUsers{})

	req := httptest.NewRequest(http.MethodPost, "/logout", nil)
	req.AddCookie(authCookie(t, s, "Cy Young"))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == authCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)
}
