// cmd/holoclient/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/jason-s-yu/holosync/internal/actions"
	"github.com/jason-s-yu/holosync/internal/config"
	"github.com/jason-s-yu/holosync/internal/engine"
	"github.com/jason-s-yu/holosync/internal/models"
	_ "github.com/joho/godotenv/autoload"
)

const usage = `commands:
  signin | signout
  create | join CODE | enter MATCH_ID | leave
  ready | unready | start
  draw | cheer [TARGET] | end | concede
  stage CARD | support CARD [TARGET] | bloom CARD [TARGET]
  attach CHEER TARGET | attack ATTACKER ART TARGET | move INSTANCE [center|collab]
  decide DECISION_ID [SELECTED...]
  interact INTERACTION_ID [OPTION|-] [SELECTED...]
  state | help | quit`

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	eng, err := engine.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("engine: %v", err)
	}
	defer eng.Close()

	if eng.Session().Token() == "" {
		if err := eng.SignIn(ctx); err != nil {
			logger.WithError(err).Warn("sign in failed; use 'signin' to retry")
		}
	}
	logger.Infof("signed in as %s", eng.Session().PlayerID())

	fmt.Println(usage)
	run(ctx, eng, os.Stdin, os.Stdout)
}

// run reads one command per line until EOF, quit or ctx cancellation.
func run(ctx context.Context, eng *engine.Engine, in io.Reader, out io.Writer) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	for {
		fmt.Fprint(out, "> ")
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			if fields[0] == "quit" || fields[0] == "exit" {
				return
			}
			if err := execute(ctx, eng, fields, out); err != nil {
				printError(out, err)
			}
		}
	}
}

func execute(ctx context.Context, eng *engine.Engine, fields []string, out io.Writer) error {
	cmd, args := fields[0], fields[1:]
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}

	var (
		summary *models.MatchSummary
		err     error
	)
	switch cmd {
	case "help":
		fmt.Fprintln(out, usage)
		return nil
	case "state":
		printState(eng, out)
		return nil
	case "signin":
		err = eng.SignIn(ctx)
	case "signout":
		err = eng.SignOut()
	case "create":
		summary, err = eng.CreateMatch(ctx)
	case "join":
		summary, err = eng.JoinMatch(ctx, arg(0))
	case "enter":
		err = eng.EnterMatch(ctx, arg(0))
	case "leave":
		eng.LeaveMatch()
	case "ready":
		summary, err = eng.SetReady(ctx, true)
	case "unready":
		summary, err = eng.SetReady(ctx, false)
	case "start":
		summary, err = eng.StartMatch(ctx)
	case "draw":
		summary, err = eng.Draw(ctx)
	case "cheer":
		summary, err = eng.SendCheer(ctx, arg(0))
	case "end":
		summary, err = eng.EndTurn(ctx)
	case "concede":
		summary, err = eng.Concede(ctx)
	case "stage":
		summary, err = eng.PlayToStage(ctx, arg(0))
	case "support":
		summary, err = eng.PlaySupport(ctx, arg(0), arg(1))
	case "bloom":
		summary, err = eng.Bloom(ctx, arg(0), arg(1))
	case "attach":
		summary, err = eng.AttachCheer(ctx, arg(0), arg(1))
	case "attack":
		summary, err = eng.Attack(ctx, arg(0), arg(1), arg(2))
	case "move":
		summary, err = eng.MoveStageHolomem(ctx, arg(0), arg(1))
	case "decide":
		summary, err = eng.ResolveDecision(ctx, arg(0), tail(args, 1))
	case "interact":
		opt := arg(1)
		if opt == "-" {
			opt = ""
		}
		summary, err = eng.ResolveInteraction(ctx, arg(0), tail(args, 2), opt)
	default:
		return fmt.Errorf("unknown command %q (try 'help')", cmd)
	}
	if err != nil {
		return err
	}
	if summary != nil {
		fmt.Fprintf(out, "ok: match %s (%s) status=%s\n", summary.ID, summary.Code, summary.Status)
	} else {
		fmt.Fprintln(out, "ok")
	}
	return nil
}

func tail(args []string, from int) []string {
	if from >= len(args) {
		return nil
	}
	return args[from:]
}

func printError(out io.Writer, err error) {
	var refusal *actions.RefusalError
	if errors.As(err, &refusal) {
		fmt.Fprintf(out, "refused: %s\n", refusal.Message)
		for _, d := range refusal.Details {
			fmt.Fprintf(out, "  - %s\n", d)
		}
		return
	}
	fmt.Fprintf(out, "error: %v\n", err)
}

func printState(eng *engine.Engine, out io.Writer) {
	v := eng.View()
	fmt.Fprintf(out, "channel: %s\n", v.Channel)
	if v.Error != "" {
		fmt.Fprintf(out, "last error: %s\n", v.Error)
	}
	if v.Match == nil {
		fmt.Fprintln(out, "no match")
		return
	}
	m := v.Match
	fmt.Fprintf(out, "match %s code=%s status=%s host=%s\n", m.ID, m.Code, m.Status, m.HostID)
	for _, p := range m.Players {
		fmt.Fprintf(out, "  seat %s ready=%t\n", p.ID, p.Ready)
	}
	if m.WinnerID != nil {
		fmt.Fprintf(out, "winner: %s\n", *m.WinnerID)
	}

	snap := v.Snapshot
	if snap == nil {
		return
	}
	fmt.Fprintf(out, "turn %d phase=%s active=%s\n", snap.TurnNumber, snap.Phase, snap.ActivePlayerID)
	if me, ok := snap.Player(eng.Session().PlayerID()); ok {
		fmt.Fprintf(out, "deck=%d cheer=%d life=%d hand=%d\n", me.DeckCount, me.CheerDeckCount, me.LifeCount, len(me.Hand))
		for _, c := range me.Hand {
			fmt.Fprintf(out, "  hand %s %s\n", c.InstanceID, cardName(eng, c.TemplateID))
		}
		for _, u := range me.FieldUnits() {
			fmt.Fprintf(out, "  %s %s %s\n", u.Zone, u.InstanceID, cardName(eng, u.TemplateID))
		}
	}
	for _, d := range snap.PendingDecisions {
		fmt.Fprintf(out, "decision %s: %s (select %d-%d)\n", d.ID, d.Effect, d.MinSelect, d.MaxSelect)
		for _, c := range d.Candidates {
			fmt.Fprintf(out, "  candidate %s %s\n", c.InstanceID, c.Name)
		}
	}
	for _, in := range snap.PendingInteractions {
		fmt.Fprintf(out, "interaction %s: %s %s\n", in.ID, in.Kind, in.Message)
		for _, o := range in.Options {
			fmt.Fprintf(out, "  option %s %s\n", o.ID, o.Label)
		}
	}

	used := eng.Usage()
	fmt.Fprintf(out, "draw used=%t cheer used=%t\n", used.DrawUsed, used.CheerUsed)
	if eng.CanAct() {
		fmt.Fprintln(out, "you can act")
	} else {
		fmt.Fprintf(out, "blocked: %s\n", eng.BlockMessage())
	}
}

// cardName falls back to the template id when the catalog has no name.
func cardName(eng *engine.Engine, templateID string) string {
	info, err := eng.Card(context.Background(), templateID)
	if err != nil || info.Name == "" {
		return templateID
	}
	return info.Name
}
