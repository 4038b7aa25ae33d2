package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dkeye/Howdy/internal/app/orch"
	"github.com/dkeye/Howdy/internal/domain"
)

var errQuit = errors.New("quit")

// session is the slice of the orchestrator the console drives.
type session interface {
	Call(ctx context.Context, remote domain.Identity) error
	EndCall(ctx context.Context) error
	ToggleMute(ctx context.Context) (bool, error)
	ToggleVideo(ctx context.Context) (bool, error)
	Snapshot(ctx context.Context) (orch.State, error)
}

type historyLister interface {
	List(ctx context.Context, limit int) ([]domain.CallRecord, error)
}

// console maps typed lines to session actions. Lines that are not commands
// are spoken text for the recognizer.
type console struct {
	s       session
	history historyLister
	speak   func(string) bool
	out     io.Writer
}

const helpText = `commands:
  /call <identity>  start a call
  /hangup           end the current call
  /mute             toggle the microphone
  /video            toggle the camera
  /status           show the session state
  /history [n]      show the last n calls
  /quit             leave
anything else is spoken into the call`

func (c *console) handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		if !c.speak(line) {
			fmt.Fprintln(c.out, "(not transcribing)")
		}
		return nil
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "call":
		id, err := domain.NewIdentity(arg)
		if err != nil {
			return err
		}
		return c.s.Call(ctx, id)
	case "hangup":
		return c.s.EndCall(ctx)
	case "mute":
		muted, err := c.s.ToggleMute(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "muted: %t\n", muted)
	case "video":
		on, err := c.s.ToggleVideo(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "video: %t\n", on)
	case "status":
		st, err := c.s.Snapshot(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(c.out, describe(st))
	case "history":
		return c.printHistory(ctx, arg)
	case "quit", "exit":
		return errQuit
	case "help":
		fmt.Fprintln(c.out, helpText)
	default:
		return fmt.Errorf("unknown command /%s, try /help", name)
	}
	return nil
}

func (c *console) printHistory(ctx context.Context, arg string) error {
	if c.history == nil {
		return errors.New("history disabled")
	}
	n := 10
	if arg != "" {
		if _, err := fmt.Sscanf(arg, "%d", &n); err != nil {
			return fmt.Errorf("bad count %q", arg)
		}
	}
	recs, err := c.history.List(ctx, n)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Fprintln(c.out, "no calls yet")
	}
	for _, r := range recs {
		fmt.Fprintf(c.out, "%s  %-6s %-16s %8s  %s\n",
			r.StartedAt.Format("2006-01-02 15:04"), r.Role, r.Remote, r.Duration().Round(time.Second), r.EndReason)
	}
	return nil
}

func describe(st orch.State) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s]", st.Self, st.Status)
	if !st.Linked {
		b.WriteString(" offline")
	}
	if !st.Remote.IsZero() {
		fmt.Fprintf(&b, " %s with %s", st.Role, st.Remote)
	}
	if st.Status.Active() {
		fmt.Fprintf(&b, " muted=%t video=%t tracks=%d", st.Muted, st.Video, st.RemoteTracks)
	}
	if st.Transcribing {
		b.WriteString(" transcribing")
	}
	return b.String()
}
