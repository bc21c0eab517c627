package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/havenchat/companion/internal/audio"
	"github.com/havenchat/companion/internal/config"
	"github.com/havenchat/companion/internal/handler"
	"github.com/havenchat/companion/internal/remote"
	authservice "github.com/havenchat/companion/internal/service/auth"
	"github.com/havenchat/companion/internal/service/chat"
	"github.com/havenchat/companion/internal/service/events"
	"github.com/havenchat/companion/internal/service/preferences"
	"github.com/havenchat/companion/internal/service/speech"
	"github.com/havenchat/companion/internal/service/transcribe"
	"github.com/havenchat/companion/internal/service/voice"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	client := remote.NewClient(cfg.Backend.BaseURL, cfg.Backend.Timeout)
	hub := events.NewHub(64)
	cache := chat.NewHistoryCache(cfg.Preferences.CacheDir)

	// Microphone capture
	recorder := voice.NewController(
		audio.NewFFMPEGCapture(cfg.Audio.FFMPEG),
		voice.CaptureConfig{
			InputFormat: cfg.Audio.InputFormat,
			InputDevice: cfg.Audio.InputDevice,
		},
		func(state voice.State) { hub.Broadcast(events.TypeVoice, state) },
	)

	opts := chat.Options{
		Recorder: recorder,
		Sink:     chat.Sinks{hub, cache},
	}

	// Transcription bridge
	transcriber, err := transcribe.New(ctx, cfg.Transcription)
	switch {
	case err == nil:
		opts.Transcriber = transcriber
		log.Printf("transcription provider %s initialized", cfg.Transcription.Provider)
	case errors.Is(err, transcribe.ErrDisabled):
		log.Println("转写凭证未配置，语音输入将无法转写")
	default:
		log.Printf("warning: failed to initialize transcription: %v", err)
	}

	// Speech playback
	var (
		speaker *speech.Controller
		synth   *speech.VolcengineSynthesizer
	)
	if cfg.Speech.Enabled {
		synth = speech.NewVolcengineSynthesizer(cfg.Speech.TTSConfig(), "")
		output := speech.NewSynthesizedOutput(synth, audio.NewProcessPlayer(cfg.Speech.Player), cfg.Speech.TTSVoice, cfg.Speech.MoodTone)
		speaker = speech.NewController(output, func(speaking bool) { hub.Broadcast(events.TypeSpeaking, speaking) })
		opts.Speaker = speaker
		opts.AutoSpeak = cfg.Speech.AutoPlay
		log.Println("Speech output initialized successfully")
	} else {
		log.Println("语音服务凭证未配置，跳过语音播放初始化")
	}

	// History comes from the server only; the local cache is write-only.
	session := chat.NewSession(client, opts)

	authSvc := authservice.NewService(client, client.Jar(), cfg.Preferences.CacheDir, func(route string) {
		hub.Broadcast(events.TypeNavigate, route)
		switch route {
		case authservice.HomeRoute:
			go loadHistory(ctx, session)
		case authservice.LoginRoute:
			cache.Reset()
			session.Reset()
		}
	})

	prefs := preferences.NewStore(cfg.Preferences.File, func(theme preferences.Theme) {
		hub.Broadcast(events.TypeTheme, theme)
	})
	_, _ = prefs.Load()
	go func() {
		if err := prefs.Watch(ctx); err != nil {
			log.Printf("warning: preference watch stopped: %v", err)
		}
	}()

	go loadHistory(ctx, session)

	deps := handler.Deps{
		Session:     session,
		Auth:        authSvc,
		Preferences: prefs,
		Events:      hub,
		Recorder:    recorder,
		Voice:       cfg.Speech.TTSVoice,
		Origins:     cfg.Server.AllowedOrigins,
	}
	if speaker != nil {
		deps.Speaker = speaker
		deps.Synthesizer = synth
	}

	startServer(ctx, cfg.Server, handler.NewRouter(deps))

	session.Close()
	recorder.Cancel()
	if speaker != nil {
		speaker.Stop()
	}
}

func loadHistory(ctx context.Context, session *chat.Session) {
	result, err := session.Load(ctx)
	if err != nil {
		log.Printf("history load failed: %v", err)
		return
	}
	if result.Redirect != "" {
		log.Printf("not signed in, view should open %s", result.Redirect)
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Haven companion client listening on %s", addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
