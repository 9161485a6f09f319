package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"page-counter/internal/config"
	"page-counter/internal/logger"
	"page-counter/internal/visitor"
)

// 文档注释：拉取 Cloudflare 回源网段并写入受信网段文件
// 背景：服务启动时只读取本地文件，网段更新由本工具离线完成（可放入定时任务）。
// 约束：先写临时文件再原子替换；拉取或校验失败时保留旧文件不动。
func main() {
	config.LoadDotenv()
	cfg, err := config.Load()
	if err != nil {
		logger.L().Error("config_error", "err", err)
		os.Exit(1)
	}
	l := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	v4 := getEnv("CF_IPS_V4_URL", visitor.CloudflareIPv4URL)
	v6 := getEnv("CF_IPS_V6_URL", visitor.CloudflareIPv6URL)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	client := &http.Client{Timeout: 10 * time.Second}
	tr, err := visitor.FetchRanges(ctx, client, v4, v6)
	if err != nil {
		l.Error("cf_ips_fetch_error", "err", err)
		os.Exit(1)
	}
	l.Info("cf_ips_fetched", "count", tr.Len())

	path := cfg.TrustedFile
	if err := writeRangesFile(path, tr); err != nil {
		l.Error("cf_ips_write_error", "path", path, "err", err)
		os.Exit(1)
	}
	l.Info("cf_ips_written", "path", path, "count", tr.Len())
}

// writeRangesFile：写临时文件后原子替换 path；任一步失败都删除临时文件，旧文件保持不变
func writeRangesFile(path string, tr visitor.TrustedRanges) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".cf_ips-*.txt")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = visitor.WriteRanges(tmp, tr); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
