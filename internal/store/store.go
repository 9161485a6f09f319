// 包 store: access_record 表的数据访问层，PostgreSQL 与 SQLite 共用同一套 SQL
package store

import (
	"context"
	"database/sql"

	"page-counter/internal/model"
)

const insertRecordSQL = `INSERT INTO access_record (url, site, ip_addr) VALUES ($1, $2, $3) RETURNING id`

// countSQL：一次查询取齐五个计数
// 约束：占位符首次出现必须按 $1、$2、$3 升序，SQLite 按出现顺序为 $N 编号
const countSQL = `SELECT
    (SELECT COUNT(*) FROM access_record WHERE url = $1),
    (SELECT COUNT(DISTINCT ip_addr) FROM access_record WHERE url = $1),
    (SELECT COUNT(*) FROM access_record WHERE site = $2),
    (SELECT COUNT(DISTINCT ip_addr) FROM access_record WHERE site = $2),
    (SELECT COUNT(*) FROM access_record WHERE url = $1 AND ip_addr = $3)`

// queryer：*sql.DB 与 *sql.Tx 的公共子集
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore: 持有由调用方打开的连接池；不负责关闭
type SQLStore struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) DB() *sql.DB { return s.db }

// RecordAndCount: 在同一事务内写入一条访问记录并计数
// 约束：返回的计数包含刚写入的记录；任一步失败整体回滚，不留半写状态
func (s *SQLStore) RecordAndCount(ctx context.Context, v model.Visit) (model.AccessRecord, model.Snapshot, error) {
	rec := v.Record()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return rec, model.Snapshot{}, err
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, insertRecordSQL, rec.URL, rec.Site, rec.IPAddr).Scan(&rec.ID); err != nil {
		return rec, model.Snapshot{}, err
	}
	snap, err := count(ctx, tx, v)
	if err != nil {
		return rec, model.Snapshot{}, err
	}
	if err := tx.Commit(); err != nil {
		return rec, model.Snapshot{}, err
	}
	return rec, snap, nil
}

// Count: 只读计数，不写入记录
func (s *SQLStore) Count(ctx context.Context, v model.Visit) (model.Snapshot, error) {
	return count(ctx, s.db, v)
}

func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func count(ctx context.Context, q queryer, v model.Visit) (model.Snapshot, error) {
	var snap model.Snapshot
	err := q.QueryRowContext(ctx, countSQL, v.PageKey, v.SiteKey, v.IP).
		Scan(&snap.PagePV, &snap.PageUV, &snap.SitePV, &snap.SiteUV, &snap.PageMV)
	return snap, err
}
