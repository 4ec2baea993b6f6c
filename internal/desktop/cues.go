package desktop

import (
	"context"
	"os/exec"
	"runtime"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/rs/zerolog"

	"holdtalk/internal/domain"
	"holdtalk/internal/ports"
)

var macSounds = map[domain.Cue]string{
	domain.CueArmed:   "/System/Library/Sounds/Tink.aiff",
	domain.CueRelease: "/System/Library/Sounds/Pop.aiff",
}

var beepTones = map[domain.Cue]float64{
	domain.CueArmed:   880,
	domain.CueRelease: 660,
}

const (
	beepMillis = 80
	cueTimeout = 3 * time.Second
)

// CuePlayer plays cues in the background. macOS uses the system sounds via
// afplay; other platforms use a short beep.
type CuePlayer struct {
	enabled bool
	goos    string
	log     zerolog.Logger

	playFile func(ctx context.Context, path string) error
	beep     func(freq float64, millis int) error
}

func NewCuePlayer(enabled bool, log zerolog.Logger) *CuePlayer {
	return &CuePlayer{
		enabled: enabled,
		goos:    runtime.GOOS,
		log:     log,
		playFile: func(ctx context.Context, path string) error {
			return exec.CommandContext(ctx, "afplay", path).Run()
		},
		beep: beeep.Beep,
	}
}

var _ ports.CuePlayer = (*CuePlayer)(nil)

func (p *CuePlayer) Play(cue domain.Cue) {
	if !p.enabled {
		return
	}
	go func() {
		if err := p.play(cue); err != nil {
			p.log.Debug().Err(err).Str("cue", string(cue)).Msg("cue failed")
		}
	}()
}

func (p *CuePlayer) play(cue domain.Cue) error {
	if p.goos == "darwin" {
		if path, ok := macSounds[cue]; ok {
			ctx, cancel := context.WithTimeout(context.Background(), cueTimeout)
			defer cancel()
			return p.playFile(ctx, path)
		}
	}
	freq, ok := beepTones[cue]
	if !ok {
		freq = beeep.DefaultFreq
	}
	return p.beep(freq, beepMillis)
}
