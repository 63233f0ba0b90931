package main

import (
	"context"

	"github.com/rs/zerolog/log"
)

// headlessTransport stands in for a media SDK on machines without audio. It
// accepts every control call so that voice bookkeeping (mutes, persisted
// choices) can be driven from the terminal.
type headlessTransport struct{}

func (headlessTransport) Connect(_ context.Context, url, _ string) error {
	log.Info().Str("url", url).Msg("voice token issued; no audio device in headless mode")
	return nil
}

func (headlessTransport) Disconnect() error { return nil }

func (headlessTransport) SetMicrophoneEnabled(enabled bool) error {
	log.Debug().Bool("enabled", enabled).Msg("microphone")
	return nil
}

func (headlessTransport) SetParticipantMuted(identity string, muted bool) error {
	log.Debug().Str("identity", identity).Bool("muted", muted).Msg("participant mute")
	return nil
}
