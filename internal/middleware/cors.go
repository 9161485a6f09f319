package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORS：计数脚本嵌在任意站点页面中，允许任意来源；不携带凭据
func CORS(next http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: false,
		MaxAge:           600,
	})
	return c.Handler(next)
}

// Wrap：入口中间件链，源站锁定在最外层；lock 为 nil 时不启用
func Wrap(next http.Handler, qps int, lock *OriginLock) http.Handler {
	h := CORS(RateLimit(qps, next))
	if lock != nil {
		h = lock.Wrap(h)
	}
	return h
}
