// 包 visitor：确定访问者的有效 IP
// 仅当连接来自受信代理网段时才采信 CF-Connecting-IP，否则一律使用连接地址。
package visitor

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
)

// ForwardedHeader：受信代理携带真实客户端 IP 的请求头，固定不可配置
const ForwardedHeader = "CF-Connecting-IP"

// ErrInvalidAddress：连接地址不是合法的 IPv4/IPv6 文本
var ErrInvalidAddress = errors.New("invalid address")

// Source：有效 IP 的来源
type Source string

const (
	SourceConnection Source = "connection"
	SourceHeader     Source = "header"
)

// Resolver：访问者 IP 解析器，构造后只读，可并发使用
type Resolver struct {
	trusted TrustedRanges
}

func NewResolver(trusted TrustedRanges) *Resolver {
	return &Resolver{trusted: trusted}
}

// Resolve：根据连接地址与请求头查找函数返回有效 IP
func (r *Resolver) Resolve(connIP string, lookup func(name string) string) (string, error) {
	ip, _, err := r.resolve(connIP, lookup)
	return ip, err
}

// ResolveSource：同 Resolve，附带来源
func (r *Resolver) ResolveSource(connIP string, lookup func(name string) string) (string, Source, error) {
	return r.resolve(connIP, lookup)
}

func (r *Resolver) resolve(connIP string, lookup func(name string) string) (string, Source, error) {
	conn, err := parseAddr(connIP)
	if err != nil {
		return "", "", err
	}
	if !r.trusted.Contains(conn) || lookup == nil {
		return conn.String(), SourceConnection, nil
	}
	fwd := strings.TrimSpace(lookup(ForwardedHeader))
	if fwd == "" {
		return conn.String(), SourceConnection, nil
	}
	a, err := parseAddr(fwd)
	if err != nil {
		// 受信代理给出的头部不可解析时回退到连接地址
		return conn.String(), SourceConnection, nil
	}
	return a.String(), SourceHeader, nil
}

// ResolveRequest：从 net/http 请求中解析有效 IP；RemoteAddr 可带端口
func (r *Resolver) ResolveRequest(req *http.Request) (string, Source, error) {
	host := req.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return r.resolve(host, req.Header.Get)
}

func parseAddr(s string) (netip.Addr, error) {
	a, err := netip.ParseAddr(strings.TrimSpace(s))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return a.Unmap().WithZone(""), nil
}
