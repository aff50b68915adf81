package web

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kkkkikiki/voucher/internal/model"
	"github.com/kkkkikiki/voucher/internal/repository"
	"github.com/kkkkikiki/voucher/internal/service"
	"github.com/kkkkikiki/voucher/internal/session"
)

const testPassword = "hunter2"

// fakeStore is an in-memory VoucherStore with atomic claim semantics
type fakeStore struct {
	mu      sync.Mutex
	records map[string]*model.VoucherRecord
	logged  int
	calls   int
	err     error
}

func newFakeStore(records ...*model.VoucherRecord) *fakeStore {
	s := &fakeStore{records: make(map[string]*model.VoucherRecord)}
	for _, r := range records {
		s.records[r.VoucherCode] = r
	}
	return s
}

func (s *fakeStore) FindByCode(ctx context.Context, code string) (*model.VoucherRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	record, ok := s.records[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (s *fakeStore) Claim(ctx context.Context, code string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	record, ok := s.records[code]
	if !ok || record.Claimed {
		return 0, repository.ErrAlreadyClaimedOrInvalid
	}
	record.Claimed = true
	s.logged++
	return record.ID, nil
}

func newTestServer(store *fakeStore) (*http.ServeMux, *session.Manager) {
	sessions := session.NewManager(testPassword, "test-secret", time.Hour)
	handler := NewHandler(service.NewVoucherService(store), sessions)

	mux := http.NewServeMux()
	handler.Register(mux)
	return mux, sessions
}

// sessionCookie logs in against a throwaway recorder and returns the cookie
func sessionCookie(t *testing.T, sessions *session.Manager) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.True(t, sessions.Login(rec, testPassword))
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func formRequest(path string, form url.Values, cookie *http.Cookie) *http.Request {
	req := httptest.NewRequest("POST", path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	return req
}

func adaRecord() *model.VoucherRecord {
	return &model.VoucherRecord{
		ID:          7,
		Name:        "Ada",
		BirthDay:    12,
		BirthMonth:  6,
		VoucherCode: "ABC123",
	}
}

func TestLoginFlow(t *testing.T) {
	mux, _ := newTestServer(newFakeStore())

	t.Run("login form renders", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/login", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Please Enter the Password")
	})

	t.Run("wrong password re-renders the form with an error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, formRequest("/login", url.Values{"password": {"wrong"}}, nil))

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid password")
		assert.Empty(t, rec.Result().Cookies(), "session must stay unauthenticated")
	})

	t.Run("correct password sets the session and redirects", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, formRequest("/login", url.Values{"password": {testPassword}}, nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/", rec.Header().Get("Location"))
		require.Len(t, rec.Result().Cookies(), 1)
	})

	t.Run("logout clears the cookie and redirects to login", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest("GET", "/logout", nil))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		assert.Negative(t, cookies[0].MaxAge)
	})
}

func TestAuthGate(t *testing.T) {
	mux, sessions := newTestServer(newFakeStore())

	t.Run("unauthenticated requests are redirected", func(t *testing.T) {
		for _, path := range []string{"/", "/claimed"} {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))
			assert.Equal(t, http.StatusSeeOther, rec.Code, "path %s", path)
			assert.Equal(t, "/login", rec.Header().Get("Location"))
		}

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, formRequest("/lookup", url.Values{"voucher_code": {"ABC123"}}, nil))
		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/login", rec.Header().Get("Location"))
	})

	t.Run("authenticated request reaches the entry form", func(t *testing.T) {
		cookie := sessionCookie(t, sessions)
		req := httptest.NewRequest("GET", "/", nil)
		req.AddCookie(cookie)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Enter Voucher Code")
	})
}

func TestLookup(t *testing.T) {
	t.Run("unclaimed voucher renders details and a confirm control", func(t *testing.T) {
		store := newFakeStore(adaRecord())
		mux, sessions := newTestServer(store)
		cookie := sessionCookie(t, sessions)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, formRequest("/lookup", url.Values{"voucher_code": {"ABC123"}}, cookie))

		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "Ada")
		assert.Contains(t, body, "12/6")
		assert.Contains(t, body, "Confirm Voucher")
		assert.Contains(t, body, `name="voucher_code" value="ABC123"`)
	})

	t.Run("unknown code renders no user found", func(t *testing.T) {
		mux, sessions := newTestServer(newFakeStore())
		cookie := sessionCookie(t, sessions)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, formRequest("/lookup", url.Values{"voucher_code": {"NOPE"}}, cookie))

		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "No user found")
	})

	t.Run("claimed voucher renders already used and no confirm control", func(t *testing.T) {
		record := adaRecord()
		record.Claimed = true
		mux, sessions := newTestServer(newFakeStore(record))
		cookie := sessionCookie(t, sessions)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, formRequest("/lookup", url.Values{"voucher_code": {"ABC123"}}, cookie))

		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "already been used")
		assert.NotContains(t, body, "Confirm Voucher")
	})

	t.Run("empty code is rejected without a storage call", func(t *testing.T) {
		store := newFakeStore(adaRecord())
		mux, sessions := newTestServer(store)
		cookie := sessionCookie(t, sessions)

		for _, code := range []string{"", "   "} {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, formRequest("/lookup", url.Values{"voucher_code": {code}}, cookie))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), "Please enter a voucher code")
		}
		assert.Equal(t, 0, store.calls)
	})

	t.Run("stored names are escaped in the page", func(t *testing.T) {
		record := adaRecord()
		record.Name = `<script>alert("x")</script>`
		mux, sessions := newTestServer(newFakeStore(record))
		cookie := sessionCookie(t, sessions)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, formRequest("/lookup", url.Values{"voucher_code": {"ABC123"}}, cookie))

		body := rec.Body.String()
		assert.NotContains(t, body, "<script>")
		assert.Contains(t, body, "&lt;script&gt;")
	})

	t.Run("storage failure renders a generic message", func(t *testing.T) {
		store := newFakeStore()
		store.err = errors.New("pq: connection refused")
		mux, sessions := newTestServer(store)
		cookie := sessionCookie(t, sessions)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, formRequest("/lookup", url.Values{"voucher_code": {"ABC123"}}, cookie))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "Something went wrong")
		assert.NotContains(t, rec.Body.String(), "connection refused",
			"storage error text must not leak to the user")
	})
}

func TestConfirm(t *testing.T) {
	confirmForm := url.Values{
		"voucher_code":    {"ABC123"},
		"confirm_voucher": {"1"},
	}

	t.Run("successful confirmation redirects to the success page", func(t *testing.T) {
		store := newFakeStore(adaRecord())
		mux, sessions := newTestServer(store)
		cookie := sessionCookie(t, sessions)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, formRequest("/lookup", confirmForm, cookie))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/claimed", rec.Header().Get("Location"))
		assert.True(t, store.records["ABC123"].Claimed)
		assert.Equal(t, 1, store.logged)
	})

	t.Run("second confirmation conflicts and logs nothing new", func(t *testing.T) {
		store := newFakeStore(adaRecord())
		mux, sessions := newTestServer(store)
		cookie := sessionCookie(t, sessions)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, formRequest("/lookup", confirmForm, cookie))
		require.Equal(t, http.StatusSeeOther, rec.Code)

		rec = httptest.NewRecorder()
		mux.ServeHTTP(rec, formRequest("/lookup", confirmForm, cookie))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, rec.Body.String(), "already been confirmed or is invalid")
		assert.Equal(t, 1, store.logged)
	})

	t.Run("empty code is rejected without a storage call", func(t *testing.T) {
		store := newFakeStore(adaRecord())
		mux, sessions := newTestServer(store)
		cookie := sessionCookie(t, sessions)

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, formRequest("/lookup", url.Values{
			"voucher_code":    {"  "},
			"confirm_voucher": {"1"},
		}, cookie))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, 0, store.calls)
	})

	t.Run("concurrent confirmations claim exactly once", func(t *testing.T) {
		store := newFakeStore(adaRecord())
		mux, sessions := newTestServer(store)
		cookie := sessionCookie(t, sessions)

		const attempts = 20
		codes := make(chan int, attempts)
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec := httptest.NewRecorder()
				mux.ServeHTTP(rec, formRequest("/lookup", confirmForm, cookie))
				codes <- rec.Code
			}()
		}
		wg.Wait()
		close(codes)

		var claimed, conflicts int
		for code := range codes {
			switch code {
			case http.StatusSeeOther:
				claimed++
			case http.StatusConflict:
				conflicts++
			default:
				t.Fatalf("unexpected status %d", code)
			}
		}

		assert.Equal(t, 1, claimed)
		assert.Equal(t, attempts-1, conflicts)
		assert.Equal(t, 1, store.logged)
	})
}
