package visitor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Cloudflare 公布的回源网段列表（纯文本，每行一个 CIDR）
const (
	CloudflareIPv4URL = "https://www.cloudflare.com/ips-v4"
	CloudflareIPv6URL = "https://www.cloudflare.com/ips-v6"
)

// FetchRanges：依次拉取各地址的网段列表并合并校验
// 约束：任一地址失败即整体失败，避免写出残缺的受信列表
func FetchRanges(ctx context.Context, client *http.Client, urls ...string) (TrustedRanges, error) {
	if client == nil {
		client = http.DefaultClient
	}
	var lines []string
	for _, u := range urls {
		got, err := fetchLines(ctx, client, u)
		if err != nil {
			return TrustedRanges{}, err
		}
		lines = append(lines, got...)
	}
	tr, err := ParseRanges(lines)
	if err != nil {
		return TrustedRanges{}, err
	}
	if tr.Len() == 0 {
		return TrustedRanges{}, fmt.Errorf("no ranges fetched from %s", strings.Join(urls, ", "))
	}
	return tr, nil
}

func fetchLines(ctx context.Context, client *http.Client, u string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", u, resp.StatusCode)
	}
	var out []string
	sc := bufio.NewScanner(io.LimitReader(resp.Body, 1<<20))
	for sc.Scan() {
		out = append(out, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", u, err)
	}
	return out, nil
}

// WriteRanges：每行一个 CIDR 写出，可被 ReadRanges 读回
func WriteRanges(w io.Writer, tr TrustedRanges) error {
	bw := bufio.NewWriter(w)
	for _, s := range tr.Strings() {
		if _, err := bw.WriteString(s + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}
