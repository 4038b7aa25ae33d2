package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Howdy/internal/adapters/relaylink"
	"github.com/dkeye/Howdy/internal/adapters/rtc"
	"github.com/dkeye/Howdy/internal/adapters/speech"
	"github.com/dkeye/Howdy/internal/app/orch"
	"github.com/dkeye/Howdy/internal/config"
	"github.com/dkeye/Howdy/internal/domain"
	"github.com/dkeye/Howdy/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	config.SetupLogger(os.Stderr)

	flags := pflag.NewFlagSet("howdy", pflag.ExitOnError)
	flags.String("relay-url", "ws://localhost:8080", "relay base URL")
	flags.String("identity", "", "local identity, random when empty")
	flags.Bool("video", false, "capture video on new calls")
	flags.String("history-path", "howdy.db", "call history database, empty to disable")
	flags.String("log-level", "info", "trace, debug, info, warn or error")
	noMic := flags.Bool("no-mic", false, "refuse microphone access")
	noTranscribe := flags.Bool("no-transcribe", false, "disable speech recognition")
	loopback := flags.Bool("loopback", false, "gather loopback ICE candidates for same-host calls")
	_ = flags.Parse(os.Args[1:])

	cfg, v, err := config.Load(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	config.ApplyLevel(cfg)
	config.Watch(v, config.ApplyLevel)

	if err := run(ctx, cfg, *noMic, *noTranscribe, *loopback); err != nil {
		log.Error().Err(err).Msg("howdy exited")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, noMic, noTranscribe, loopback bool) error {
	raw := cfg.Identity
	if raw == "" {
		raw = "guest-" + uuid.NewString()[:8]
	}
	self, err := domain.NewIdentity(raw)
	if err != nil {
		return fmt.Errorf("identity %q: %w", raw, err)
	}

	peers, err := rtc.NewFactory(rtc.Options{STUNURLs: cfg.STUNURLs, IncludeLoopback: loopback})
	if err != nil {
		return err
	}
	rec := speech.NewLines(0)
	rec.Disabled = noTranscribe

	dialer := relaylink.NewDialer(cfg.RelayURL)
	dialer.ReadLimit = cfg.ReadLimit
	dialer.SendBuffer = cfg.SendBuffer

	o := orch.New(orch.Options{
		Identity:                self,
		Dialer:                  dialer,
		Peers:                   peers,
		Capture:                 &rtc.Capture{Deny: noMic},
		Recognizer:              rec,
		Video:                   cfg.Video,
		RecognitionRestartDelay: cfg.RecognitionRestartDelay,
	})

	var history *storage.History
	if cfg.HistoryPath != "" {
		history, err = storage.Open(cfg.HistoryPath)
		if err != nil {
			return err
		}
		defer history.Close()
	}

	out := os.Stdout
	var last domain.CallStatus
	o.OnChange(func(st orch.State) {
		if st.Status != last {
			last = st.Status
			fmt.Fprintln(out, describe(st))
		}
	})
	o.OnNotice(func(n orch.Notice) { fmt.Fprintln(out, "!", n) })
	o.OnCallEnded(func(r domain.CallRecord) {
		fmt.Fprintf(out, "call with %s ended (%s)\n", r.Remote, r.EndReason)
		if history == nil {
			return
		}
		if err := history.Save(context.Background(), r); err != nil {
			log.Warn().Err(err).Str("module", "howdy").Msg("history save failed")
		}
	})

	c := &console{s: o, speak: rec.Feed, out: out}
	if history != nil {
		c.history = history
	}

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	g.Go(func() error {
		err := o.Run(loopCtx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		defer stopLoop()
		if err := o.Connect(gctx); err != nil {
			fmt.Fprintln(out, "!", err)
		}
		fmt.Fprintf(out, "howdy, %s. /help lists commands.\n", self)
		return readCommands(gctx, c)
	})
	return g.Wait()
}

// readCommands returns on /quit, end of input or ctx cancellation.
func readCommands(ctx context.Context, c *console) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := c.handle(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				fmt.Fprintln(c.out, "!", err)
			}
		}
	}
}
