package request

import (
	"net/http"
)

// BodyLimit caps request bodies at maxBytes. Declared lengths over the cap are
// refused with 413 before the handler runs. Undeclared or understated bodies
// are cut off by http.MaxBytesReader, which the JSON decoder reports as
// batch_too_large.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				w.Header().Set("Connection", "close")
				writeError(w, http.StatusRequestEntityTooLarge, "batch_too_large", "request body too large")
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
