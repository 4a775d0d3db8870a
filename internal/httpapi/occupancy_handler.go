package httpapi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/sk4900/capacity-checker/internal/models"
)

// StatusEvaluator 按最新检测记录评估所有房间状态
type StatusEvaluator interface {
	Evaluate(ctx context.Context) ([]models.RoomStatus, error)
}

// OccupancyHandler 容量查询接口
type OccupancyHandler struct {
	evaluator StatusEvaluator
	logger    *zap.Logger
}

func NewOccupancyHandler(evaluator StatusEvaluator, logger *zap.Logger) *OccupancyHandler {
	return &OccupancyHandler{
		evaluator: evaluator,
		logger:    logger,
	}
}

// GET /api/v1/occupancy/status
// params:
// - room? string （与 building 同时给定时只返回该房间）
// - building? string
//
// 响应头总是带 Access-Control-Allow-Origin: *（成功和失败都带，
// 否则浏览器会把错误响应也拦下来）
func (h *OccupancyHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")

	statuses, err := h.evaluator.Evaluate(r.Context())
	if err != nil {
		h.logger.Error("Failed to evaluate room statuses", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to evaluate room statuses",
		})
		return
	}

	room := r.URL.Query().Get("room")
	building := r.URL.Query().Get("building")
	if room != "" || building != "" {
		if room == "" || building == "" {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "room and building must be given together",
			})
			return
		}
		for _, s := range statuses {
			if s.RoomNumber == room && s.BuildingNumber == building {
				writeJSON(w, http.StatusOK, s)
				return
			}
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no records for room",
		})
		return
	}

	writeJSON(w, http.StatusOK, statuses)
}
