package capture

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Middleware records panics raised by downstream handlers and answers them
// with a 500. Request details are attached to every capture made while the
// request is served.
func Middleware(p *Pipeline) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := WithContext(r.Context(), Context{
				"method":      r.Method,
				"path":        r.URL.Path,
				"remote_addr": r.RemoteAddr,
				"request_id":  middleware.GetReqID(r.Context()),
			})

			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				p.CapturePanic(ctx, rec, nil)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}()

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
