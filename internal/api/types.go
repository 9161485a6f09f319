package api

import "page-counter/internal/model"

// 文档注释：计数请求体
// 约束：page_url 必须是绝对 http(s) URL；其余字段忽略
type countRequest struct {
	PageURL string `json:"page_url"`
}

// 文档注释：计数返回结构（对外）
// 背景：字段名与历史前端脚本保持一致，新增字段需评估兼容性。
type countResponse = model.Snapshot

type errorResponse struct {
	Error string `json:"error"`
}

// healthResponse：只返回状态，错误细节只进日志
type healthResponse struct {
	Status string `json:"status"`
}
