package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func channelKeyHash(t *testing.T, key string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	return string(hash)
}

func serve(mw func(http.Handler) http.Handler, setAuth func(r *http.Request)) int {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	if setAuth != nil {
		setAuth(req)
	}
	rr := httptest.NewRecorder()
	mw(next).ServeHTTP(rr, req)
	return rr.Code
}

func TestBasicAuth_AllowsValidCredentials(t *testing.T) {
	mw := BasicAuth("LedgerApp", channelKeyHash(t, "LedgerKey001"))

	code := serve(mw, func(r *http.Request) { r.SetBasicAuth("LedgerApp", "LedgerKey001") })
	if code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, code)
	}
}

func TestBasicAuth_RejectsInvalidCredentials(t *testing.T) {
	mw := BasicAuth("LedgerApp", channelKeyHash(t, "LedgerKey001"))

	cases := map[string]func(r *http.Request){
		"wrong key":     func(r *http.Request) { r.SetBasicAuth("LedgerApp", "WrongKey") },
		"wrong channel": func(r *http.Request) { r.SetBasicAuth("OtherApp", "LedgerKey001") },
		"missing":       nil,
	}
	for name, setAuth := range cases {
		if code := serve(mw, setAuth); code != http.StatusUnauthorized {
			t.Fatalf("%s: expected status %d, got %d", name, http.StatusUnauthorized, code)
		}
	}
}

func TestBasicAuth_MissingConfiguration(t *testing.T) {
	code := serve(BasicAuth("LedgerApp", ""), func(r *http.Request) { r.SetBasicAuth("LedgerApp", "LedgerKey001") })
	if code != http.StatusInternalServerError {
		t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, code)
	}
}
