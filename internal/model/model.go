// 包 model：计数服务各层共享的数据结构
package model

// AccessRecord：一次访问记录，对应 access_record 表的一行
// 约束：写入后不可变；ID 由存储分配，单调递增且不复用
type AccessRecord struct {
	ID     int64
	URL    string
	Site   string
	IPAddr string
}

// Visit：一次计数请求的归一化输入
type Visit struct {
	PageKey string
	SiteKey string
	IP      string
}

// Record：由 Visit 构造待写入的访问记录（ID 留空，由存储分配）
func (v Visit) Record() AccessRecord {
	return AccessRecord{URL: v.PageKey, Site: v.SiteKey, IPAddr: v.IP}
}

// Snapshot：单次请求返回的计数快照，每次从 access_record 现算，不缓存
type Snapshot struct {
	PagePV int64 `json:"page_pv"`
	PageUV int64 `json:"page_uv"`
	PageMV int64 `json:"page_mv"`
	SitePV int64 `json:"site_pv"`
	SiteUV int64 `json:"site_uv"`
}
