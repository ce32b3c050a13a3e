package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/blinkguard/internal/blink"
	apperrors "github.com/GriffinCanCode/blinkguard/internal/errors"
)

var (
	replayInactive bool
	replayNoFlush  bool
)

var replayCmd = &cobra.Command{
	Use:   "replay [trace.jsonl|-]",
	Short: "Run a recorded score trace through the blink monitor",
	Long: `Replay feeds a JSON-lines trace of blink scores through the monitor on
virtual time and prints every edge, overlay command and blink. Each line is
{"t_ms": 0, "left": 0.1, "right": 0.1, "face": true}; t_ms is the offset from
the start of the trace and must not decrease. Thresholds and quiet period
come from the usual configuration.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().BoolVar(&replayInactive, "inactive", false, "replay with the reminder disengaged")
	replayCmd.Flags().BoolVar(&replayNoFlush, "no-flush", false, "do not run pending timers after the last frame")
	rootCmd.AddCommand(replayCmd)
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	in := io.Reader(os.Stdin)
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	mc := cfg.Monitor()
	mc.Active = !replayInactive
	res, err := replayTrace(in, os.Stdout, mc, !replayNoFlush)
	if err != nil {
		return err
	}

	color.New(color.Bold).Fprintf(os.Stdout, "\n%d frames (%d without face), %d blinks, overlay shown %d times, hidden %d times\n",
		res.Frames, res.Missing, res.Blinks, res.Shows, res.Hides)
	return nil
}

// traceFrame is one line of a replay trace. A missing face field means a
// face was detected.
type traceFrame struct {
	TMs   int64   `json:"t_ms"`
	Left  float64 `json:"left"`
	Right float64 `json:"right"`
	Face  *bool   `json:"face"`
}

type replayResult struct {
	Frames  int
	Missing int
	Blinks  uint64
	Shows   int
	Hides   int
}

// replayTrace drives a Monitor on a ManualScheduler, advancing virtual time
// to each frame's offset before processing it. With flush set, timers still
// pending after the last frame are run.
func replayTrace(r io.Reader, w io.Writer, mc blink.Config, flush bool) (replayResult, error) {
	var res replayResult
	sched := blink.NewManualScheduler()
	defer sched.Close()

	show := color.New(color.FgRed, color.Bold)
	hide := color.New(color.FgGreen)
	edge := color.New(color.FgCyan)
	stamp := func() string { return fmt.Sprintf("%9.3fs", sched.Now().Seconds()) }

	overlay := blink.OverlayFuncs{
		Show: func() {
			res.Shows++
			show.Fprintf(w, "%s  overlay show\n", stamp())
		},
		Hide: func() {
			res.Hides++
			hide.Fprintf(w, "%s  overlay hide\n", stamp())
		},
	}
	mon, err := blink.NewMonitor(mc, sched, overlay)
	if err != nil {
		return res, err
	}
	mon.OnBlink(func(count uint64) {
		fmt.Fprintf(w, "%s  blink #%d\n", stamp(), count)
	})

	scanner := bufio.NewScanner(r)
	line := 0
	var last time.Duration
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		var tf traceFrame
		if err := json.Unmarshal([]byte(text), &tf); err != nil {
			return res, apperrors.Wrapf(err, apperrors.CodeInvalidArgument, "trace line %d", line)
		}
		at := time.Duration(tf.TMs) * time.Millisecond
		if at < last {
			return res, apperrors.Newf(apperrors.CodeInvalidArgument, "trace line %d: t_ms %d goes backwards", line, tf.TMs)
		}
		last = at
		sched.AdvanceTo(at)

		res.Frames++
		if tf.Face != nil && !*tf.Face {
			res.Missing++
			mon.ProcessMissing()
			continue
		}
		e, _, err := mon.ProcessFrame(blink.Sample{Left: tf.Left, Right: tf.Right})
		if err != nil {
			return res, err
		}
		if e != blink.NoSignal {
			edge.Fprintf(w, "%s  %s edge (%.2f, %.2f)\n", stamp(), e, tf.Left, tf.Right)
		}
	}
	if err := scanner.Err(); err != nil {
		return res, err
	}

	if flush {
		sched.AdvanceTo(last + mon.QuietPeriod())
	}
	res.Blinks = mon.BlinkCount()
	return res, nil
}
