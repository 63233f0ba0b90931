package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/priceguess/go/clients/api"
	"github.com/mcdev12/priceguess/go/internal/config"
	"github.com/mcdev12/priceguess/go/internal/prefs"
	"github.com/mcdev12/priceguess/go/internal/session"
	"github.com/mcdev12/priceguess/go/internal/session/gateway"
	"github.com/mcdev12/priceguess/go/internal/session/inspect"
	"github.com/mcdev12/priceguess/go/internal/session/voice"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

type app struct {
	cfg     *config.Config
	prefs   *prefs.Prefs
	closeKV func()
	api     *api.Client
	store   *session.Store
	client  *session.Client
	voice   *voice.Bridge
	inspect *http.Server
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	kv, closeKV, err := openPrefs(ctx, cfg)
	if err != nil {
		return nil, err
	}
	p := prefs.New(kv)

	clock := clockwork.NewRealClock()
	apiClient := api.NewClient(cfg.Server.APIURL, p)
	store := session.NewStore(clock, session.Config{
		PendingTimeout:    cfg.Session.PendingTimeout,
		CountdownInterval: cfg.Session.CountdownInterval,
	})

	gw := gateway.New(newDialer(cfg), p, store, store, clock, gateway.Config{
		MaxReconnects: cfg.Session.MaxReconnects,
		ReconnectWait: cfg.Session.ReconnectWait,
		ChatRate:      rate.Limit(cfg.Session.ChatPerSecond),
		ChatBurst:     cfg.Session.ChatBurst,
	})

	a := &app{
		cfg:     cfg,
		prefs:   p,
		closeKV: closeKV,
		api:     apiClient,
		store:   store,
		client:  session.NewClient(store, gw, apiClient, p),
	}
	store.Subscribe(logUpdate)

	if cfg.Voice.Enabled {
		a.voice = voice.NewBridge(headlessTransport{}, apiClient, p, clock, logVoice)
	}
	if cfg.Inspect.Enabled {
		icfg := inspect.DefaultConfig()
		icfg.Addr = cfg.Inspect.Addr
		icfg.AllowedOrigins = cfg.Inspect.AllowedOrigins
		a.inspect = inspect.NewServer(store, a.client, icfg)
	}
	return a, nil
}

func newDialer(cfg *config.Config) gateway.Dialer {
	if cfg.Transport.Kind == config.TransportNATS {
		ncfg := gateway.DefaultNATSConfig()
		ncfg.URL = cfg.Transport.NATSURL
		ncfg.SubjectPrefix = cfg.Transport.SubjectPrefix
		return gateway.NewNATSDialer(ncfg)
	}
	return gateway.NewWebsocketDialer(gateway.DefaultWebsocketConfig(cfg.Server.WSURL))
}

func openPrefs(ctx context.Context, cfg *config.Config) (prefs.KV, func(), error) {
	switch cfg.Prefs.Backend {
	case config.PrefsMemory:
		return prefs.NewMemoryStore(), func() {}, nil
	case config.PrefsPostgres:
		store, err := prefs.NewPostgresStore(ctx, cfg.Prefs.Database.DSN(), cfg.Prefs.Profile)
		if err != nil {
			return nil, nil, err
		}
		log.Info().
			Str("database", cfg.Prefs.Database.Database).
			Str("profile", cfg.Prefs.Profile).
			Msg("using postgres preferences")
		return store, store.Close, nil
	default:
		store, err := prefs.NewFileStore(cfg.Prefs.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	}
}

// run starts the session and serves stdin commands until ctx ends, stdin
// closes or the user quits.
func (a *app) run(ctx context.Context, in io.Reader, out io.Writer) error {
	if err := a.client.Start(ctx); err != nil {
		return err
	}

	if a.inspect != nil {
		go func() {
			log.Info().Str("addr", a.inspect.Addr).Msg("inspect server starting")
			if err := a.inspect.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("inspect server failed")
			}
		}()
	}

	lines := readLines(in)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			cmd, err := parseLine(line)
			if err != nil {
				fmt.Fprintln(out, err)
				continue
			}
			if cmd.name == cmdQuit {
				return nil
			}
			if err := a.execute(ctx, cmd, out); err != nil {
				fmt.Fprintln(out, "error:", err)
			}
		}
	}
}

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if a.inspect != nil {
		if err := a.inspect.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("inspect server shutdown failed")
		}
	}
	if a.voice != nil {
		if err := a.voice.Disconnect(); err != nil {
			log.Warn().Err(err).Msg("voice disconnect failed")
		}
	}
	a.client.Close()
	a.closeKV()
}

func logUpdate(u session.Update) {
	if u.Notice != nil {
		log.Warn().
			Str("kind", string(u.Notice.Kind)).
			Str("code", u.Notice.Code).
			Msg(u.Notice.Message)
	}
	if u.Celebration != nil {
		log.Info().Str("username", u.Celebration.Result.Username).Msg("correct guess")
	}
	if u.Mention != nil {
		log.Info().Str("from", u.Mention.Username).Str("message", u.Mention.Message).Msg("you were mentioned")
	}
	if u.Has(session.SliceCountdown) && len(u.Slices) == 1 {
		return
	}
	log.Debug().
		Uint64("version", u.Snapshot.Version).
		Interface("slices", u.Slices).
		Msg("session updated")
}

func logVoice(s voice.State) {
	log.Debug().
		Str("status", string(s.Status)).
		Bool("mic_muted", s.MicMuted).
		Bool("room_muted", s.RoomMuted).
		Int("participants", len(s.Participants)).
		Msg("voice updated")
}
