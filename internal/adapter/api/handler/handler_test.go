package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/V4T54L/trailwatch/internal/adapter/api/middleware"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// serve runs one request through fn. A non-empty email is placed in the
// context the way the auth middleware does.
func serve(fn http.HandlerFunc, method, target, body, email string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	if email != "" {
		req = req.WithContext(middleware.WithUserEmail(context.Background(), email))
	}
	rr := httptest.NewRecorder()
	fn(rr, req)
	return rr
}
