// 包 api：集中注册计数 HTTP 路由，主入口只负责挂载与中间件
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"page-counter/internal/counter"
	"page-counter/internal/metrics"
	"page-counter/internal/model"
	"page-counter/internal/pageurl"
	"page-counter/internal/visitor"
)

// maxBodyBytes：请求体上限，page_url 最长 1024 字符，留足 JSON 与转义余量
const maxBodyBytes = 16 << 10

const (
	modeRecord = "record"
	modeRead   = "read"
)

// Counter：由 counter.Service 实现
type Counter interface {
	RecordAndCount(ctx context.Context, v model.Visit) (model.Snapshot, error)
	Count(ctx context.Context, v model.Visit) (model.Snapshot, error)
	Ping(ctx context.Context) error
}

type handler struct {
	svc      Counter
	resolver *visitor.Resolver
	l        *slog.Logger
}

// BuildRoutes：POST /count 记录并计数，GET /count 只读，GET /healthz 检查存储
func BuildRoutes(svc Counter, resolver *visitor.Resolver, l *slog.Logger) *http.ServeMux {
	h := &handler{svc: svc, resolver: resolver, l: l}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /count", h.record)
	mux.HandleFunc("GET /count", h.read)
	mux.HandleFunc("GET /healthz", h.health)
	return mux
}

func (h *handler) record(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	var req countRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		h.finish(w, modeRecord, start, "bad_request", http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	h.serve(w, r, modeRecord, start, req.PageURL, h.svc.RecordAndCount)
}

func (h *handler) read(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, modeRead, time.Now(), r.URL.Query().Get("page_url"), h.svc.Count)
}

// serve：归一化与来源解析均在写入前完成，任一失败都不会产生记录
func (h *handler) serve(w http.ResponseWriter, r *http.Request, mode string, start time.Time, raw string,
	op func(context.Context, model.Visit) (model.Snapshot, error)) {
	if raw == "" {
		h.finish(w, mode, start, "bad_request", http.StatusBadRequest, errorResponse{Error: "page_url is required"})
		return
	}
	key, err := pageurl.Normalize(raw)
	if err != nil {
		h.l.Debug("count_invalid_url", "mode", mode, "err", err)
		h.finish(w, mode, start, "invalid_url", http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	ip, src, err := h.resolver.ResolveRequest(r)
	if err != nil {
		h.l.Error("count_invalid_address", "remote", r.RemoteAddr, "err", err)
		h.finish(w, mode, start, "invalid_address", http.StatusInternalServerError, errorResponse{Error: "cannot determine client address"})
		return
	}
	metrics.VisitorSourceTotal.WithLabelValues(string(src)).Inc()

	snap, err := op(r.Context(), model.Visit{PageKey: key.Page, SiteKey: key.Site, IP: ip})
	if err != nil {
		var se *counter.StorageError
		if errors.As(err, &se) {
			h.finish(w, mode, start, "storage_error", http.StatusServiceUnavailable, errorResponse{Error: "storage unavailable"})
			return
		}
		h.l.Error("count_error", "mode", mode, "err", err)
		h.finish(w, mode, start, "error", http.StatusInternalServerError, errorResponse{Error: "internal error"})
		return
	}
	h.finish(w, mode, start, "ok", http.StatusOK, countResponse(snap))
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.l.Warn("healthz_ping_error", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *handler) finish(w http.ResponseWriter, mode string, start time.Time, result string, status int, body any) {
	metrics.RequestsTotal.WithLabelValues(mode, result).Inc()
	metrics.RequestDurationMs.WithLabelValues(mode).Observe(float64(time.Since(start).Milliseconds()))
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
