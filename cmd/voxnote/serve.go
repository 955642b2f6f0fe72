package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/voxnote/voxnote/internal/ai"
	"github.com/voxnote/voxnote/internal/capture"
	"github.com/voxnote/voxnote/internal/config"
	"github.com/voxnote/voxnote/internal/editor"
	"github.com/voxnote/voxnote/internal/gate"
	"github.com/voxnote/voxnote/internal/media"
	"github.com/voxnote/voxnote/internal/playback"
	"github.com/voxnote/voxnote/internal/rtc"
	"github.com/voxnote/voxnote/internal/server"
	"github.com/voxnote/voxnote/internal/store"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the note server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func serve() error {
	cfg := config.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notes, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	g := gate.New(notes)

	client := ai.NewClient(ai.ClientConfig{
		APIURL:     cfg.GeminiAPIURL,
		APIKey:     cfg.GeminiAPIKey,
		TextModel:  cfg.TextModel,
		TTSModel:   cfg.TTSModel,
		TTSVoice:   cfg.TTSVoice,
		SampleRate: cfg.TTSSampleRate,
	})
	probeCtx, probeCancel := context.WithTimeout(ctx, 10*time.Second)
	if client.Probe(probeCtx) {
		log.Infof("AI endpoint reachable: %s", cfg.GeminiAPIURL)
	} else {
		log.Warn("AI endpoint unreachable; dictation, summaries and speech will fail until it is back")
	}
	probeCancel()
	orch := ai.NewOrchestrator(client)

	hub := rtc.NewHub()
	arb := media.NewArbiter()
	play := playback.New(orch, hub, arb, cfg.DefaultRate)
	rec := capture.New(hub, orch, arb)
	ed := editor.NewSession(notes, g, orch, play, rec)

	srv := server.New(notes, g, ed, play, rec, hub)

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		ed.Close()
		hub.Shutdown()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("shutdown: %v", err)
		}
	}()

	return srv.Start(fmt.Sprintf(":%d", cfg.Port))
}

// openStore selects the persistence backend: Redis when an address is
// configured, otherwise slot files under the data directory with an
// external-change watcher keeping the cache honest.
func openStore(ctx context.Context, cfg config.Config) (*store.NoteStore, error) {
	if cfg.RedisAddr != "" {
		kv := store.NewRedisKV(cfg.RedisAddr)
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		defer pingCancel()
		if err := kv.Ping(pingCtx); err != nil {
			return nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}
		log.Infof("notes stored in redis at %s", cfg.RedisAddr)
		return store.NewNoteStore(kv), nil
	}

	kv, err := store.NewFileKV(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	notes := store.NewNoteStore(kv)
	if err := kv.Watch(ctx, store.SlotNotes, notes.Invalidate); err != nil {
		log.Warnf("slot watcher unavailable: %v", err)
	}
	log.Infof("notes stored in %s", cfg.DataDir)
	return notes, nil
}
