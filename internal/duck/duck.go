// Package duck lowers the volume of other PulseAudio streams while the
// assistant is listening and restores it afterwards.
package duck

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"
)

const maxVolume = 150

var percentRe = regexp.MustCompile(`(\d+)\s*%`)

type sinkInput struct {
	ID      int
	Volume  int
	AppName string
}

type fade struct {
	id   int
	from int
	to   int
}

// mixer is the part of pactl the Ducker needs.
type mixer interface {
	SinkInputs(ctx context.Context) ([]sinkInput, error)
	SetVolume(ctx context.Context, id, percent int) error
}

// Ducker fades every sink input except those whose application.name is in
// the ignore list.
type Ducker struct {
	mixer     mixer
	ignore    map[string]bool
	factor    float64
	minVolume int
	fadeTime  time.Duration

	mu       sync.Mutex
	active   bool
	original map[int]int
}

func New(factor float64, minVolume int, fadeTime time.Duration, ignore ...string) *Ducker {
	return newDucker(pactl{}, factor, minVolume, fadeTime, ignore...)
}

func newDucker(m mixer, factor float64, minVolume int, fadeTime time.Duration, ignore ...string) *Ducker {
	d := &Ducker{
		mixer:     m,
		ignore:    make(map[string]bool, len(ignore)),
		factor:    factor,
		minVolume: clampVolume(minVolume),
		fadeTime:  fadeTime,
		original:  make(map[int]int),
	}
	for _, name := range ignore {
		d.ignore[name] = true
	}
	return d
}

// Duck scales the other streams to volume*factor, never below minVolume.
// Calling it twice without Restore is a no-op.
func (d *Ducker) Duck(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active {
		return nil
	}

	inputs, err := d.mixer.SinkInputs(ctx)
	if err != nil {
		return err
	}

	d.original = make(map[int]int)

	var fades []fade
	for _, in := range inputs {
		if d.ignore[in.AppName] {
			continue
		}

		to := float64(in.Volume) * d.factor
		to = math.Max(to, float64(d.minVolume))

		d.original[in.ID] = in.Volume
		fades = append(fades, fade{id: in.ID, from: in.Volume, to: clampVolume(int(math.Round(to)))})
	}

	d.active = true

	return d.run(ctx, fades)
}

// Restore fades ducked streams back. Streams that appeared after Duck are
// left alone.
func (d *Ducker) Restore(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.active {
		return nil
	}

	inputs, err := d.mixer.SinkInputs(ctx)
	if err != nil {
		return err
	}

	var fades []fade
	for _, in := range inputs {
		orig, ok := d.original[in.ID]
		if !ok || d.ignore[in.AppName] {
			continue
		}
		fades = append(fades, fade{id: in.ID, from: in.Volume, to: orig})
	}

	d.original = make(map[int]int)
	d.active = false

	return d.run(ctx, fades)
}

func (d *Ducker) run(ctx context.Context, fades []fade) error {
	if len(fades) == 0 {
		return nil
	}

	const minStep = 10 * time.Millisecond

	steps := int(d.fadeTime / minStep)
	if steps < 1 {
		steps = 1
	}
	stepTime := d.fadeTime / time.Duration(steps)

	for i := 1; i <= steps; i++ {
		frac := float64(i) / float64(steps)

		for _, f := range fades {
			v := int(math.Round(float64(f.from) + float64(f.to-f.from)*frac))
			if err := d.mixer.SetVolume(ctx, f.id, v); err != nil {
				return fmt.Errorf("set volume id=%d: %w", f.id, err)
			}
		}

		if i < steps && stepTime > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(stepTime):
			}
		}
	}

	return nil
}

func clampVolume(v int) int {
	return min(max(v, 0), maxVolume)
}

type pactl struct{}

func (pactl) SinkInputs(ctx context.Context) ([]sinkInput, error) {
	out, err := exec.CommandContext(ctx, "pactl", "list", "sink-inputs").Output()
	if err != nil {
		return nil, fmt.Errorf("pactl list sink-inputs: %w", err)
	}
	return parseSinkInputs(bytes.NewReader(out))
}

func (pactl) SetVolume(ctx context.Context, id, percent int) error {
	arg := fmt.Sprintf("%d%%", clampVolume(percent))
	return exec.CommandContext(ctx, "pactl", "set-sink-input-volume", strconv.Itoa(id), arg).Run()
}

// parseSinkInputs reads the output of `pactl list sink-inputs`.
func parseSinkInputs(r io.Reader) ([]sinkInput, error) {
	var (
		res []sinkInput
		cur *sinkInput
	)

	flush := func() {
		if cur != nil && (cur.Volume != 0 || cur.AppName != "") {
			res = append(res, *cur)
		}
		cur = nil
	}

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())

		if rest, ok := strings.CutPrefix(line, "Sink Input #"); ok {
			flush()
			id, err := strconv.Atoi(strings.TrimSpace(rest))
			if err != nil {
				continue
			}
			cur = &sinkInput{ID: id}
			continue
		}

		if cur == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "Volume:") && cur.Volume == 0:
			if m := percentRe.FindStringSubmatch(line); m != nil {
				cur.Volume, _ = strconv.Atoi(m[1])
			}
		case strings.HasPrefix(line, "application.name =") && cur.AppName == "":
			_, val, _ := strings.Cut(line, "=")
			cur.AppName = strings.Trim(strings.TrimSpace(val), `"`)
		}
	}
	flush()

	if err := sc.Err(); err != nil {
		return nil, err
	}

	return res, nil
}
