// Package handler はHTTPハンドラを提供する。
package handler

import (
	"net/http"

	"tenant-migration-service/internal/usecase"
	"tenant-migration-service/pkg/httputil"
)

// StatusHandler はマイグレーション状況の読み取り専用APIを提供する。
type StatusHandler struct {
	runner *usecase.MigrationRunner
}

// NewStatusHandler は新しいStatusHandlerを生成する。
func NewStatusHandler(runner *usecase.MigrationRunner) *StatusHandler {
	return &StatusHandler{runner: runner}
}

// DatabaseStatusResponse は1データベースの状況のレスポンス形式。
type DatabaseStatusResponse struct {
	Target         string `json:"target"`
	Database       string `json:"database"`
	TenantID       string `json:"tenant_id,omitempty"`
	CurrentVersion int    `json:"current_version"`
	LatestVersion  int    `json:"latest_version"`
	Pending        int    `json:"pending"`
	Drifted        []int  `json:"drifted,omitempty"`
	Error          string `json:"error,omitempty"`
}

// StatusResponse はマイグレーション状況のレスポンス形式。
type StatusResponse struct {
	Databases []DatabaseStatusResponse `json:"databases"`
}

// GetStatus はホストと全テナントのマイグレーション状況を返す。
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.runner.Status(r.Context())
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "STATUS_FAILED", err.Error())
		return
	}

	resp := StatusResponse{Databases: make([]DatabaseStatusResponse, 0, len(statuses))}
	for _, s := range statuses {
		row := DatabaseStatusResponse{
			Target:         s.Target.Label(),
			Database:       s.Target.Database,
			TenantID:       s.Target.TenantID,
			CurrentVersion: s.CurrentVersion,
			LatestVersion:  s.LatestVersion,
			Pending:        s.Pending,
			Drifted:        s.Drifted,
		}
		if s.Err != nil {
			row.Error = s.Err.Error()
		}
		resp.Databases = append(resp.Databases, row)
	}

	httputil.JSON(w, http.StatusOK, resp)
}

// Healthz はプロセスの生存確認エンドポイント。
func (h *StatusHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
