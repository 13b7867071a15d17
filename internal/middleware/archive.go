package middleware

import (
	"context"
	"net/http"

	"github.com/drstein77/smartbilling/internal/compress"
)

type archiveTypeKey struct{}

// ArchiveTypeMiddleware reads the archiveType query parameter and stores the
// parsed value in the request context. An empty value means zip.
func ArchiveTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		archiveType := compress.ArchiveZip

		if raw := r.URL.Query().Get("archiveType"); raw != "" {
			parsed, err := compress.ParseArchiveType(raw)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			archiveType = parsed
		}

		ctx := context.WithValue(r.Context(), archiveTypeKey{}, archiveType)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ArchiveTypeFromContext returns the archive type chosen for the request, zip if none was set.
func ArchiveTypeFromContext(ctx context.Context) compress.ArchiveType {
	if v, ok := ctx.Value(archiveTypeKey{}).(compress.ArchiveType); ok && v != compress.ArchiveNone {
		return v
	}
	return compress.ArchiveZip
}
