package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-tianwang/pkg/analyzer"
	"go-tianwang/pkg/classifier"
	"go-tianwang/pkg/features"
	"go-tianwang/pkg/generator"
	"go-tianwang/pkg/logger"
	"go-tianwang/pkg/models"
	"go-tianwang/pkg/storage"
)

// Server 对外暴露风险评估HTTP接口
type Server struct {
	analyzer  *analyzer.RiskAnalyzer
	storage   *storage.Storage
	generator *generator.Generator
	groups    *features.Registry
	httpSrv   *http.Server
}

func NewServer(addr string, ra *analyzer.RiskAnalyzer, store *storage.Storage, gen *generator.Generator, groups *features.Registry) *Server {
	s := &Server{
		analyzer:  ra,
		storage:   store,
		generator: gen,
		groups:    groups,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/predict", s.handlePredict)
	mux.HandleFunc("/api/detectors", s.handleDetectors)
	mux.HandleFunc("/api/live", s.handleLive)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

// Start 启动HTTP服务，阻塞直到服务关闭
func (s *Server) Start() error {
	logger.Log.Infof("HTTP服务启动, addr=%s", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

type predictRequest struct {
	Features models.FeatureRow `json:"features"`
	Model    string            `json:"model"`
	SourceIP string            `json:"source_ip"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req predictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	a, err := s.analyzer.Assess(req.Features, req.Model)
	if err != nil {
		switch {
		case errors.Is(err, analyzer.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, classifier.ErrUnknownModel):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			logger.Log.Errorf("评估请求处理失败: %v", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	a.SourceIP = req.SourceIP
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleDetectors(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := map[string]interface{}{
		"detectors": s.analyzer.ListDetectors(),
		"models":    s.analyzer.ListModels(),
	}
	if s.groups != nil {
		resp["feature_groups"] = s.groups.Groups()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleLive 生成一条合成流量并立即评估，供仪表盘演示
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "generator disabled")
		return
	}

	rec := s.generator.NextRecord()
	a, err := s.analyzer.Assess(rec.Features, rec.Model)
	if err != nil {
		logger.Log.Errorf("合成流量评估失败: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	a.SourceIP = rec.SourceIP
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.storage == nil {
		writeError(w, http.StatusServiceUnavailable, "storage disabled")
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	records, err := s.storage.RecentAssessments(limit)
	if err != nil {
		logger.Log.Errorf("查询评估历史失败: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"records": records})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"detectors": len(s.analyzer.ListDetectors()),
		"models":    len(s.analyzer.ListModels()),
	})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Log.Errorf("响应序列化失败: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
