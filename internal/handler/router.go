package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	authhandler "github.com/havenchat/companion/internal/handler/auth"
	chathandler "github.com/havenchat/companion/internal/handler/chat"
	eventshandler "github.com/havenchat/companion/internal/handler/events"
	prefhandler "github.com/havenchat/companion/internal/handler/preferences"
	speechhandler "github.com/havenchat/companion/internal/handler/speech"
	voicehandler "github.com/havenchat/companion/internal/handler/voice"
	middlewarePkg "github.com/havenchat/companion/internal/middleware"
	chatService "github.com/havenchat/companion/internal/service/chat"
	eventsService "github.com/havenchat/companion/internal/service/events"
	speechService "github.com/havenchat/companion/internal/service/speech"
	"github.com/havenchat/companion/pkg/utils"
)

// Deps 汇总展示层需要的服务。Speaker、Recorder、Synthesizer 可为空。
type Deps struct {
	Session     *chatService.Session
	Auth        authhandler.Service
	Preferences prefhandler.Store
	Events      *eventsService.Hub
	Recorder    voicehandler.Recorder
	Speaker     speechhandler.Speaker
	Synthesizer speechService.Synthesizer
	Voice       string
	Origins     []string
}

// NewRouter 把展示层 API 挂到客户端服务上。
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(deps.Origins))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(api chi.Router) {
		chathandler.New(deps.Session).RegisterRoutes(api)
		voicehandler.New(deps.Session, deps.Recorder).RegisterRoutes(api)
		authhandler.New(deps.Auth).RegisterRoutes(api)
		prefhandler.New(deps.Preferences).RegisterRoutes(api)
		eventshandler.New(deps.Events, deps.Session).RegisterRoutes(api)

		if deps.Speaker != nil {
			speechhandler.New(deps.Speaker, deps.Synthesizer, deps.Voice).RegisterRoutes(api)
		} else {
			api.HandleFunc("/speech/*", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "speech output unavailable")
			})
		}
	})

	return r
}
