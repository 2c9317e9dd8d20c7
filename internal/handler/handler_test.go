package handler_test

import (
	"context"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/yrajput/closet-organizer/internal/auth"
	"github.com/yrajput/closet-organizer/internal/flash"
	"github.com/yrajput/closet-organizer/internal/handler"
	"github.com/yrajput/closet-organizer/internal/model"
	"github.com/yrajput/closet-organizer/internal/service"
	"github.com/yrajput/closet-organizer/web"
)

const testOrg = "acme-org"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRenderer(t *testing.T) *handler.Renderer {
	t.Helper()
	rn, err := handler.NewRenderer(web.Templates, testOrg, discardLogger())
	require.NoError(t, err)
	return rn
}

// storeCall records one MediaService.Store invocation.
type storeCall struct {
	Owner      string
	Categories []model.Category
	Upload     service.Upload
}

// listCall records one MediaService.ListFor range.
type listCall struct {
	Owner    string
	Category model.Category
}

// MockMedia implements handler.MediaService without a store.
type MockMedia struct {
	mu       sync.Mutex
	Stores   []storeCall
	Lists    []listCall
	Locs     []string
	ListErr  error
	StoreErr error
}

func (m *MockMedia) Store(_ context.Context, owner string, cats []model.Category, up service.Upload) (*model.MediaRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Stores = append(m.Stores, storeCall{Owner: owner, Categories: cats, Upload: up})
	if m.StoreErr != nil {
		return nil, m.StoreErr
	}
	return &model.MediaRecord{ID: "m1", Owner: owner, Categories: cats}, nil
}

func (m *MockMedia) ListFor(_ context.Context, owner string, category model.Category) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		m.mu.Lock()
		m.Lists = append(m.Lists, listCall{Owner: owner, Category: category})
		locs, listErr := m.Locs, m.ListErr
		m.mu.Unlock()

		for _, l := range locs {
			if !yield(l, nil) {
				return
			}
		}
		if listErr != nil {
			yield("", listErr)
		}
	}
}

func (m *MockMedia) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Stores) + len(m.Lists)
}

// anonymous is an Authenticator that never finds a session.
type anonymous struct{}

func (anonymous) Current(*http.Request) (*model.Session, bool) { return nil, false }

// asUser puts a session for login into the request context, the way
// auth.LoadSession does for a real cookie.
func asUser(login string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := &model.Session{
				ID: "sess-" + login,
				Identity: model.Identity{
					Login:   login,
					Profile: map[string]any{"login": login, "name": "Test " + login},
				},
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), s)))
		})
	}
}

// notices reads back the flash notices a response set.
func notices(t *testing.T, rr *httptest.ResponseRecorder) []flash.Notice {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rr.Result().Cookies() {
		if c.Name == flash.CookieName && c.Value != "" {
			req.AddCookie(c)
		}
	}
	return flash.ReadAndClear(httptest.NewRecorder(), req)
}

// withFlash returns a request carrying pending notices.
func withFlash(t *testing.T, req *http.Request, ns ...flash.Notice) *http.Request {
	t.Helper()
	rr := httptest.NewRecorder()
	flash.Write(rr, ns...)
	for _, c := range rr.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}

// newRouter mounts the page and uploader routes the way the server does,
// with login middleware chosen by the test.
func newRouter(t *testing.T, media handler.MediaService, gate func(http.Handler) http.Handler) http.Handler {
	t.Helper()
	rn := newRenderer(t)
	pages := handler.NewPageHandler(rn, media, discardLogger())
	uploads := handler.NewUploaderHandler(rn, media, 1<<20, discardLogger())

	r := chi.NewRouter()
	r.Get("/", pages.Home)
	r.Group(func(r chi.Router) {
		r.Use(gate)
		for _, g := range handler.Galleries {
			r.Get(g.Path, pages.Gallery(g))
		}
		r.Get("/uploader", uploads.Form)
		r.Post("/uploader", uploads.Submit)
	})
	return r
}
