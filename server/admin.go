package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"minilobby/config"
	"minilobby/protocol"
)

// NewMux 注册全部 HTTP 路由：WebSocket、健康检查、指标、管理接口与静态资源
func NewMux(mgr *Manager, cfg config.ServerConfig, log *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", NewWSHandler(mgr, cfg, log))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", HandleMetrics(mgr))
	mux.HandleFunc("/admin/config", HandleAdminConfig(mgr))
	mux.HandleFunc("/admin/players", HandleAdminPlayers(mgr))
	mux.HandleFunc("/admin/kick", HandleAdminKick(mgr, log))
	if cfg.StaticDir != "" {
		// 前后端分离：将 / 映射到静态资源目录
		mux.Handle("/", http.FileServer(http.Dir(cfg.StaticDir)))
	}
	return mux
}

// HandleAdminConfig 只读返回当前游戏规则（边界、聊天容量等）
// GET /admin/config
func HandleAdminConfig(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		cfg := mgr.Config()
		writeJSON(w, map[string]any{
			"world_width":         cfg.WorldWidth,
			"world_height":        cfg.WorldHeight,
			"spawn_margin":        cfg.SpawnMargin,
			"chat_history":        cfg.ChatHistory,
			"max_nickname_length": cfg.MaxNicknameLength,
			"max_chat_length":     cfg.MaxChatLength,
			"idle_timeout":        cfg.IdleTimeout.String(),
			"sweep_interval":      cfg.SweepInterval.String(),
			"resync_interval":     cfg.ResyncInterval.String(),
		})
	}
}

// HandleAdminPlayers 返回当前名单，格式与推送给客户端的 PlayerList 帧相同
// GET /admin/players
func HandleAdminPlayers(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		frame, err := protocol.EncodeEvent(protocol.PlayerList{Players: mgr.Players()})
		if err != nil {
			http.Error(w, "encode failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(frame)
	}
}

// HandleAdminKick 踢出玩家（服务端发起的驱逐，会广播 PlayerLeft）
// POST /admin/kick?player=<id>
func HandleAdminKick(mgr *Manager, log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		playerID := r.URL.Query().Get("player")
		if playerID == "" {
			http.Error(w, "missing player query", http.StatusBadRequest)
			return
		}
		if !mgr.Kick(playerID, ErrKicked) {
			http.Error(w, "player not found", http.StatusNotFound)
			return
		}
		log.Info("player kicked", zap.String("player", playerID), zap.String("remote", r.RemoteAddr))
		writeJSON(w, map[string]any{"ok": true})
	}
}

// HandleMetrics 输出运行指标
// GET /metrics
func HandleMetrics(mgr *Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"players":      len(mgr.Players()),
			"connections":  mgr.Connections(),
			"chat_history": len(mgr.History()),
			"metrics":      mgr.Metrics().Snapshot(),
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
