package middleware

import (
	"net/http"
	"slices"
	"strings"
)

// corsAllowedHeaders はブラウザから送られるリクエストヘッダー。IDトークンはAuthorizationで届く。
const corsAllowedHeaders = "Content-Type, Authorization"

// NewCORSMiddleware は許可オリジンのリストに対するCORSミドルウェアを返す。
// allowedOriginsはカンマ区切りで、Originヘッダーが一致した場合だけその値を返す。
// 429のRetry-Afterをブラウザから読めるように公開ヘッダーへ含める。
// OPTIONSプリフライトは後続へ渡さず204で応答する。
func NewCORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	origins := parseOrigins(allowedOrigins)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			if origin != "" && slices.Contains(origins, origin) {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", corsAllowedHeaders)
				h.Set("Access-Control-Expose-Headers", "Retry-After")
				h.Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func parseOrigins(s string) []string {
	var out []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimRight(strings.TrimSpace(o), "/"); o != "" {
			out = append(out, o)
		}
	}
	return out
}
