package httpapi

import (
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Router 使用标准库 http.ServeMux（避免引入第三方路由依赖）
type Router struct {
	mux    *http.ServeMux
	logger *zap.Logger
}

func NewRouter(logger *zap.Logger) *Router {
	return &Router{
		mux:    http.NewServeMux(),
		logger: logger,
	}
}

func (r *Router) Handle(pattern string, h http.HandlerFunc) {
	r.mux.HandleFunc(pattern, h)
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// RegisterHubRoutes 注册设备接入 API 路由
func (r *Router) RegisterHubRoutes(
	telemetry *TelemetryHandler,
	commands *CommandHandler,
	shadows *ShadowHandler,
	devices *DevicesHandler,
	stream *StreamHandler,
) {
	r.Handle("/hub/api/v1/telemetry", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		telemetry.Post(w, req)
	})

	r.Handle("/hub/api/v1/commands", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		commands.Post(w, req)
	})

	r.Handle("/hub/api/v1/devices", func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		devices.List(w, req)
	})

	// devices/{id} 和 devices/{id}/shadow
	r.Handle("/hub/api/v1/devices/", func(w http.ResponseWriter, req *http.Request) {
		rest := strings.TrimPrefix(req.URL.Path, "/hub/api/v1/devices/")
		parts := strings.Split(rest, "/")

		switch {
		case len(parts) == 1 && parts[0] != "":
			if req.Method != http.MethodGet {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}
			devices.Get(w, req, parts[0])
		case len(parts) == 2 && parts[0] != "" && parts[1] == "shadow":
			switch req.Method {
			case http.MethodGet:
				shadows.Get(w, req, parts[0])
			case http.MethodPost:
				shadows.Post(w, req, parts[0])
			default:
				w.WriteHeader(http.StatusMethodNotAllowed)
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	if stream != nil {
		r.Handle("/hub/api/v1/stream", stream.Serve)
	}
}
