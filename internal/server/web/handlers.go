package web

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"github.com/thepicklr/notebook/internal/common"
	"github.com/thepicklr/notebook/internal/server/auth"
	"github.com/thepicklr/notebook/internal/server/models"
	"github.com/thepicklr/notebook/internal/server/repositories/users"
)

type ctxKey int

const userKey ctxKey = iota

// userMiddleware decodes the auth cookie and puts the user name in the
// request context. Anonymous requests pass through untouched.
func (s *Server) userMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if cookie, err := r.Cookie(authCookieName); err == nil {
			if name, err := auth.GetUserNameFromToken(cookie.Value, s.secretKey); err == nil {
				r = r.WithContext(context.WithValue(r.Context(), userKey, name))
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if currentUser(r) == "" {
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		next(w, r)
	}
}

func currentUser(r *http.Request) string {
	if name, ok := r.Context().Value(userKey).(string); ok {
		return name
	}
	return ""
}

func (s *Server) flashes(w http.ResponseWriter, r *http.Request) []string {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		return nil
	}
	raw := session.Flashes()
	if len(raw) > 0 {
		_ = session.Save(r, w)
	}
	out := make([]string, 0, len(raw))
	for _, f := range raw {
		if msg, ok := f.(string); ok {
			out = append(out, msg)
		}
	}
	return out
}

func (s *Server) addFlash(w http.ResponseWriter, r *http.Request, msg string) {
	session, err := s.store.Get(r, sessionName)
	if err != nil {
		return
	}
	session.AddFlash(msg)
	_ = session.Save(r, w)
}

func (s *Server) render(w http.ResponseWriter, name string, data any) {
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		s.logger.Error(context.Background(), "template render failed", "template", name, "error", err.Error())
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	entries, err := s.notebook.FetchAllEntries(r.Context())
	if err != nil {
		s.logger.Error(r.Context(), "listing entries failed", "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	tags, err := s.notebook.ListTags(r.Context())
	if err != nil {
		s.logger.Warn(r.Context(), "listing tags failed", "error", err.Error())
	}

	tag := r.URL.Query().Get("tag")
	if tag != "" {
		entries = filterByTag(entries, tag)
	}

	s.render(w, "index.html", map[string]any{
		"User":      currentUser(r),
		"Entries":   entries,
		"Tags":      tags,
		"ActiveTag": tag,
		"Flash":     s.flashes(w, r),
	})
}

func filterByTag(entries []*models.Entry, tag string) []*models.Entry {
	out := make([]*models.Entry, 0, len(entries))
	for _, e := range entries {
		for _, t := range e.Tags {
			if t == tag {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

type imageView struct {
	Name string
	URL  string
}

// resolveImages rewrites archived keys to presigned URLs. Platform URLs and
// unresolvable keys pass through as-is.
func (s *Server) resolveImages(ctx context.Context, files []models.FileRef) []imageView {
	out := make([]imageView, 0, len(files))
	for _, f := range files {
		view := imageView{Name: f.FileName, URL: f.FileURL}
		if key, ok := strings.CutPrefix(f.FileURL, "s3:"); ok && s.images != nil && s.images.Enabled() {
			if signed, err := s.images.PresignGet(ctx, key); err == nil {
				view.URL = signed
			} else {
				s.logger.Warn(ctx, "presigning image failed", "key", key, "error", err.Error())
			}
		}
		out = append(out, view)
	}
	return out
}

func entryID(r *http.Request) (int64, error) {
	return strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
}

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	entry, err := s.notebook.FetchEntry(r.Context(), id)
	if err != nil {
		s.logger.Error(r.Context(), "fetching entry failed", "id", id, "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entry == nil {
		http.NotFound(w, r)
		return
	}

	projects, err := s.notebook.ListProjects(r.Context())
	if err != nil {
		s.logger.Warn(r.Context(), "listing projects failed", "error", err.Error())
	}

	s.render(w, "entry.html", map[string]any{
		"User":     currentUser(r),
		"Entry":    entry,
		"Projects": projects,
		"Images":   s.resolveImages(r.Context(), entry.Images),
		"Flash":    s.flashes(w, r),
	})
}

func (s *Server) handleEntryUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	err = s.notebook.UpdateEntry(r.Context(), id,
		r.PostFormValue("what_did"),
		r.PostFormValue("what_learned"),
		r.PostFormValue("project"),
	)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		http.NotFound(w, r)
		return
	case err != nil:
		s.logger.Error(r.Context(), "updating entry failed", "id", id, "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.addFlash(w, r, "Entry updated.")
	http.Redirect(w, r, "/entries/"+strconv.FormatInt(id, 10), http.StatusSeeOther)
}

func (s *Server) handleEntryDelete(w http.ResponseWriter, r *http.Request) {
	id, err := entryID(r)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	if err := s.notebook.DeleteEntry(r.Context(), id); err != nil {
		s.logger.Error(r.Context(), "deleting entry failed", "id", id, "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	s.addFlash(w, r, "Entry deleted.")
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLoginForm(w http.ResponseWriter, r *http.Request) {
	s.render(w, "login.html", map[string]any{})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	name := r.PostFormValue("name")
	password := r.PostFormValue("password")

	user, err := s.users.GetByName(r.Context(), name)
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		s.logger.Error(r.Context(), "login lookup failed", "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	// Rows auto-created by the entry pipeline carry a placeholder password
	// and cannot log in until one is set.
	if user == nil || user.Password == users.PlaceholderPassword ||
		bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		w.WriteHeader(http.StatusUnauthorized)
		s.render(w, "login.html", map[string]any{"Error": "Invalid name or password."})
		return
	}

	token, err := auth.GenerateToken(user.Name, s.secretKey, tokenValidity)
	if err != nil {
		s.logger.Error(r.Context(), "token generation failed", "error", err.Error())
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(tokenValidity.Seconds()),
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     authCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
