package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"net/netip"

	"page-counter/internal/config"
	"page-counter/internal/visitor"
)

// 文档注释：源站锁定（受信回源网段 + 额外白名单）
// 背景：部署在 Cloudflare 之后时，只允许回源网段与指定调试地址直连源站，其他连接统一 403。
// 约束：
// 1) 只看 TCP 连接地址，不读取任何请求头；
// 2) 支持 IPv4/IPv6 CIDR，单个 IP 视为 /32 或 /128；
// 3) 网段在启动时确定，运行期只读。
type OriginLock struct {
	l     *slog.Logger
	allow visitor.TrustedRanges
}

// NewOriginLock：合并受信网段、额外白名单与（可选）本机回环地址
func NewOriginLock(trusted visitor.TrustedRanges, oc config.OriginConfig, l *slog.Logger) (*OriginLock, error) {
	items := append(trusted.Strings(), oc.AllowCIDRs...)
	if oc.AllowLocal {
		items = append(items, "127.0.0.1", "::1")
	}
	allow, err := visitor.ParseRanges(items)
	if err != nil {
		return nil, err
	}
	return &OriginLock{l: l, allow: allow}, nil
}

// Wrap：生成 http.Handler 中间件
func (o *OriginLock) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.RemoteAddr
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		a, err := netip.ParseAddr(host)
		if err != nil {
			o.l.Debug("origin_lock_block", "reason", "no_ip", "remote", r.RemoteAddr)
			write403(w)
			return
		}
		if o.allow.Contains(a) {
			next.ServeHTTP(w, r)
			return
		}
		o.l.Debug("origin_lock_block", "ip", a.String())
		write403(w)
	})
}

func write403(w http.ResponseWriter) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`{"error":"forbidden"}` + "\n"))
}
