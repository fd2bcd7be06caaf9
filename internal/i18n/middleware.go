package i18n

import "net/http"

const langCookieName = "lang"

// Middleware negotiates the request language and injects a localizer.
// A "lang" query parameter wins and is remembered in a cookie; otherwise the
// cookie, then Accept-Language, then the default language are used.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var cookieLang string
		if c, err := r.Cookie(langCookieName); err == nil {
			cookieLang = c.Value
		}
		queryLang := r.URL.Query().Get("lang")
		lang := Match(queryLang, cookieLang, r.Header.Get("Accept-Language"))
		if queryLang != "" {
			http.SetCookie(w, &http.Cookie{
				Name:     langCookieName,
				Value:    lang,
				Path:     "/",
				MaxAge:   365 * 24 * 60 * 60,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx := WithLang(r.Context(), lang)
		ctx = WithLocalizer(ctx, NewLocalizer(lang))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
