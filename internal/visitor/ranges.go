package visitor

import (
	"bufio"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"
)

// TrustedRanges：受信反向代理网段集合（IPv4/IPv6），启动时加载一次，之后只读
type TrustedRanges struct {
	prefixes []netip.Prefix
}

// ParseRanges：解析 CIDR 列表；单个 IP 视为 /32 或 /128；空串与 # 注释忽略
func ParseRanges(items []string) (TrustedRanges, error) {
	seen := make(map[netip.Prefix]struct{}, len(items))
	out := make([]netip.Prefix, 0, len(items))
	for _, raw := range items {
		s := strings.TrimSpace(raw)
		if i := strings.IndexByte(s, '#'); i >= 0 {
			s = strings.TrimSpace(s[:i])
		}
		if s == "" {
			continue
		}
		p, err := parsePrefix(s)
		if err != nil {
			return TrustedRanges{}, err
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return TrustedRanges{prefixes: out}, nil
}

func parsePrefix(s string) (netip.Prefix, error) {
	if !strings.Contains(s, "/") {
		a, err := netip.ParseAddr(s)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("bad trusted range %q: %w", s, err)
		}
		a = a.Unmap().WithZone("")
		return netip.PrefixFrom(a, a.BitLen()), nil
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("bad trusted range %q: %w", s, err)
	}
	return p.Masked(), nil
}

// ReadRanges：按行读取 CIDR 列表
func ReadRanges(r io.Reader) (TrustedRanges, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return TrustedRanges{}, err
	}
	return ParseRanges(lines)
}

// LoadRanges：从文件加载受信网段
func LoadRanges(path string) (TrustedRanges, error) {
	f, err := os.Open(path)
	if err != nil {
		return TrustedRanges{}, err
	}
	defer f.Close()
	return ReadRanges(f)
}

// Contains：判断地址是否落在任一受信网段；IPv4 映射的 IPv6 地址按 IPv4 匹配
func (t TrustedRanges) Contains(a netip.Addr) bool {
	a = a.Unmap().WithZone("")
	for _, p := range t.prefixes {
		if p.Contains(a) {
			return true
		}
	}
	return false
}

// Len：网段数量
func (t TrustedRanges) Len() int { return len(t.prefixes) }

// Strings：按加载顺序输出网段文本
func (t TrustedRanges) Strings() []string {
	out := make([]string, len(t.prefixes))
	for i, p := range t.prefixes {
		out[i] = p.String()
	}
	return out
}
