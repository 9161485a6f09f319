// 包 pageurl：页面 URL 归一化，决定哪些请求算作“同一页面”与“同一站点”
package pageurl

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/purell"
)

const (
	// MaxPageKeyLen 与 access_record.url 列宽一致
	MaxPageKeyLen = 1024
	// MaxSiteKeyLen 与 access_record.site 列宽一致
	MaxSiteKeyLen = 64
)

// ErrInvalidURL：输入无法解析为 http(s) 绝对地址，或归一化结果超出列宽
var ErrInvalidURL = errors.New("invalid url")

const normalizeFlags = purell.FlagsSafe | purell.FlagRemoveDotSegments | purell.FlagRemoveFragment

var escapeRe = regexp.MustCompile(`%[0-9a-fA-F]{2}`)

// Key：归一化后的页面键与站点键
type Key struct {
	Page string
	Site string
}

// Normalize：将原始 URL 归一化为 (页面键, 站点键)
// 约束：纯函数；scheme、query、fragment 不参与页面键；路径结尾的 index.html 按字面去除；
// 反斜杠视同正斜杠；连续分隔符合并，首尾分隔符去除；路径中的转义只做大小写折叠，%2F 不解码。
func Normalize(raw string) (Key, error) {
	s := strings.TrimSpace(raw)
	// Cloudflare 会透传反斜杠，net/url 不接受 host 中的反斜杠，需在解析前替换
	s = strings.ReplaceAll(s, `\`, "/")

	u, err := url.Parse(s)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	// 路径取自原始转义形式；purell 会按解码后的 Path 重建，保留字转义会丢失
	path := escapeRe.ReplaceAllStringFunc(u.EscapedPath(), strings.ToUpper)

	norm := purell.NormalizeURL(u, normalizeFlags)
	if u, err = url.Parse(norm); err != nil {
		return Key{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Key{}, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	// 空端口（a.com:）等同于无端口
	site := strings.TrimSuffix(strings.ToLower(u.Host), ":")
	if site == "" {
		return Key{}, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	page := joinSegments(site + "/" + path)
	// 只截路径段，站点键本身不受影响
	for len(page) > len(site) && strings.HasSuffix(page, "index.html") {
		page = joinSegments(strings.TrimSuffix(page, "index.html"))
	}

	if utf8.RuneCountInString(site) > MaxSiteKeyLen {
		return Key{}, fmt.Errorf("%w: site key longer than %d", ErrInvalidURL, MaxSiteKeyLen)
	}
	if utf8.RuneCountInString(page) > MaxPageKeyLen {
		return Key{}, fmt.Errorf("%w: page key longer than %d", ErrInvalidURL, MaxPageKeyLen)
	}
	return Key{Page: page, Site: site}, nil
}

// joinSegments：按 / 切分，丢弃空段并消解 . 与 ..，再以单个 / 拼接
// 约束：首段为站点键，.. 不会越过它
func joinSegments(s string) string {
	parts := strings.Split(s, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		switch p {
		case "", ".":
			continue
		case "..":
			if len(out) > 1 {
				out = out[:len(out)-1]
			}
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, "/")
}
