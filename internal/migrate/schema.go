package migrate

import (
	"database/sql"
	"fmt"

	"page-counter/internal/config"
	"page-counter/internal/logger"
)

// EnsureSchema：首次运行自动创建 access_record 表与索引
// 约束：语句均幂等，可在每次启动时执行；只追加，不删除已有数据
func EnsureSchema(db *sql.DB, backend string) error {
	var stmts []string
	switch backend {
	case config.BackendPostgres:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS access_record (
            id BIGSERIAL PRIMARY KEY,
            url VARCHAR(1024) NOT NULL,
            site VARCHAR(64) NOT NULL,
            ip_addr VARCHAR(64) NOT NULL
        )`,
			`CREATE INDEX IF NOT EXISTS idx_access_record_url_ip ON access_record(url, ip_addr)`,
			`CREATE INDEX IF NOT EXISTS idx_access_record_site_ip ON access_record(site, ip_addr)`,
		}
	case config.BackendSQLite:
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS access_record (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            url VARCHAR(1024) NOT NULL,
            site VARCHAR(64) NOT NULL,
            ip_addr VARCHAR(64) NOT NULL
        )`,
			`CREATE INDEX IF NOT EXISTS idx_access_record_url_ip ON access_record(url, ip_addr)`,
			`CREATE INDEX IF NOT EXISTS idx_access_record_site_ip ON access_record(site, ip_addr)`,
		}
	default:
		return fmt.Errorf("unknown backend %q", backend)
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "backend", backend, "idx", i)
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("schema statement %d: %w", i, err)
		}
	}
	if backend == config.BackendPostgres {
		if err := widenIPColumn(db); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done", "backend", backend)
	return nil
}

// widenIPColumn：早期表结构 ip_addr 为 VARCHAR(15)，只能容纳 IPv4；仅在列宽不足时 ALTER
// 约束：ALTER 需要 ACCESS EXCLUSIVE 锁，列宽已满足时不执行
func widenIPColumn(db *sql.DB) error {
	var width sql.NullInt64
	err := db.QueryRow(`SELECT character_maximum_length FROM information_schema.columns
        WHERE table_schema = current_schema() AND table_name = 'access_record' AND column_name = 'ip_addr'`).Scan(&width)
	if err != nil {
		return fmt.Errorf("inspect ip_addr: %w", err)
	}
	if !needsWiden(width) {
		return nil
	}
	logger.L().Info("schema_widen_ip_addr", "from", width.Int64, "to", ipAddrWidth)
	if _, err := db.Exec(`ALTER TABLE access_record ALTER COLUMN ip_addr TYPE VARCHAR(64)`); err != nil {
		return fmt.Errorf("widen ip_addr: %w", err)
	}
	return nil
}

const ipAddrWidth = 64

// needsWiden：NULL 表示无长度限制（TEXT 等），无需处理
func needsWiden(width sql.NullInt64) bool {
	return width.Valid && width.Int64 < ipAddrWidth
}
