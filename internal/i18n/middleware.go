package i18n

import (
	"net/http"

	"golang.org/x/text/language"
)

// Middleware localizes every request in defaultLang. A valid ?lang= query
// parameter overrides it for that request.
func Middleware(defaultLang string) func(http.Handler) http.Handler {
	def := NewLocalizer(defaultLang)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lang, loc := defaultLang, def
			if q := r.URL.Query().Get("lang"); q != "" && q != defaultLang {
				if _, err := language.Parse(q); err == nil {
					lang, loc = q, NewLocalizer(q, defaultLang)
				}
			}
			ctx := WithLang(WithLocalizer(r.Context(), loc), lang)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
