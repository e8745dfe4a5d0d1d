package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"
	"github.com/secmon-lab/companion/pkg/domain/interfaces"
	"github.com/secmon-lab/companion/pkg/domain/model"
	"github.com/secmon-lab/companion/pkg/domain/types"
	"github.com/secmon-lab/companion/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdChat() *cli.Command {
	var appCfg appConfig

	return &cli.Command{
		Name:    "chat",
		Aliases: []string{"c"},
		Usage:   "Chat with your companion in the terminal",
		Flags:   appCfg.Flags(),
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := appCfg.build(ctx)
			if err != nil {
				return err
			}
			defer app.Close(context.Background())

			con := newConsole(app.uc, os.Stdin, color.Output)
			defer con.Close()

			if err := app.start(ctx); err != nil {
				return err
			}
			return con.Run(ctx)
		},
	}
}

// console is the interactive terminal front end of the conversation core
type console struct {
	uc  *usecase.UseCases
	in  io.Reader
	out io.Writer

	mu        sync.Mutex
	streaming model.MessageID
	printed   string

	unsubscribe func()

	you       func(a ...any) string
	companion func(a ...any) string
	notice    func(a ...any) string
	failure   func(a ...any) string
}

func newConsole(uc *usecase.UseCases, in io.Reader, out io.Writer) *console {
	c := &console{
		uc:        uc,
		in:        in,
		out:       out,
		you:       color.New(color.FgGreen, color.Bold).SprintFunc(),
		companion: color.New(color.FgCyan, color.Bold).SprintFunc(),
		notice:    color.New(color.FgYellow).SprintFunc(),
		failure:   color.New(color.FgRed).SprintFunc(),
	}

	uc.Presence.SetViewOpen(true)
	uc.Conversation.SetNavigator(interfaces.NavigatorFunc(c.navigate))
	c.unsubscribe = uc.Store.Subscribe(c.onEvent)
	return c
}

// Close detaches the console from the conversation core
func (c *console) Close() {
	c.unsubscribe()
	c.uc.Conversation.SetNavigator(nil)
	c.uc.Presence.SetViewOpen(false)
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) navigate(ctx context.Context, pageID string) error {
	c.printf("%s\n", c.notice("→ opening "+pageID))
	return nil
}

func (c *console) name(id types.CharacterID) string {
	ch, err := c.uc.Characters.Get(id)
	if err != nil {
		return id.String()
	}
	if ch.Accent.Emoji != "" {
		return ch.Accent.Emoji + " " + ch.Name
	}
	return ch.Name
}

// onEvent prints stream fragments of the running reply and proactive messages
func (c *console) onEvent(ev usecase.ConversationEvent) {
	msg := ev.Message

	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.ID == c.streaming {
		if strings.HasPrefix(msg.Content, c.printed) {
			fmt.Fprint(c.out, msg.Content[len(c.printed):])
			c.printed = msg.Content
		}
		if !msg.Streaming {
			fmt.Fprintln(c.out)
			for _, r := range msg.Results {
				mark := c.notice("✓ " + r.Description)
				if !r.Success {
					mark = c.failure("✗ " + r.Description)
				}
				fmt.Fprintf(c.out, "  %s\n", mark)
			}
			c.streaming = ""
			c.printed = ""
		}
		return
	}

	if msg.Proactive && !msg.Streaming {
		fmt.Fprintf(c.out, "\n%s %s\n", c.companion(c.name(ev.CharacterID)+" 🔔"), msg.Content)
		if ev.CharacterID == c.uc.Presence.Active() {
			return
		}
		fmt.Fprintf(c.out, "%s\n", c.notice(fmt.Sprintf("(/switch %s to reply)", ev.CharacterID)))
	}
}

// Run reads lines until /quit, end of input or ctx cancellation
func (c *console) Run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	c.printf("%s\n", c.companion("Talking to "+c.name(c.uc.Presence.Active())+". Type /help for commands."))

	for {
		c.printf("%s ", c.you("You:"))

		var line string
		select {
		case <-ctx.Done():
			c.printf("\n")
			return nil
		case l, ok := <-lines:
			if !ok {
				c.printf("\n")
				return nil
			}
			line = strings.TrimSpace(l)
		}

		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if quit := c.command(ctx, line); quit {
				return nil
			}
			continue
		}
		c.send(ctx, line)
	}
}

func (c *console) send(ctx context.Context, text string) {
	ex, err := c.uc.Conversation.Begin(ctx, text, nil)
	if err != nil {
		if usecase.IsNoopSend(err) {
			c.printf("%s\n", c.notice("(still replying, please wait)"))
			return
		}
		c.printf("%s\n", c.failure("Error: "+err.Error()))
		return
	}

	c.mu.Lock()
	c.streaming = ex.AssistantMessageID()
	c.printed = ""
	fmt.Fprintf(c.out, "%s ", c.companion(c.name(ex.CharacterID())+":"))
	c.mu.Unlock()

	if err := ex.Run(ctx); err != nil {
		c.printf("%s\n", c.failure("Error: "+err.Error()))
	}
}

func (c *console) command(ctx context.Context, line string) (quit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true

	case "/help":
		c.printf("%s\n", strings.Join([]string{
			"/characters       list characters",
			"/switch <id>      talk to another character",
			"/memory           show what the character remembers",
			"/snapshot         show tasks, habits, appointments and XP",
			"/quit             leave",
		}, "\n"))

	case "/characters":
		active := c.uc.Presence.Active()
		for _, ch := range c.uc.Characters.List() {
			marker := "  "
			if ch.ID == active {
				marker = "* "
			}
			entry := fmt.Sprintf("%s%-12s %s", marker, ch.ID, c.name(ch.ID))
			if n := c.uc.Presence.Unread(ch.ID); n > 0 {
				entry += c.notice(fmt.Sprintf(" (%d unread)", n))
			}
			c.printf("%s\n", entry)
		}

	case "/switch":
		if len(fields) < 2 {
			c.printf("%s\n", c.failure("usage: /switch <id>"))
			return false
		}
		id := types.CharacterID(fields[1])
		if err := c.uc.Conversation.SetActiveCharacter(id); err != nil {
			c.printf("%s\n", c.failure("Unknown character: "+fields[1]))
			return false
		}
		c.printf("%s\n", c.companion("Now talking to "+c.name(id)+"."))

	case "/memory":
		memory, err := c.uc.Store.Memory(c.uc.Presence.Active())
		if err != nil {
			c.printf("%s\n", c.failure("Error: "+err.Error()))
			return false
		}
		if memory == "" {
			memory = "(nothing yet)"
		}
		c.printf("%s\n", memory)

	case "/snapshot":
		c.printSnapshot(ctx)

	default:
		c.printf("%s\n", c.failure("Unknown command: "+fields[0]+" (try /help)"))
	}
	return false
}

func (c *console) printSnapshot(ctx context.Context) {
	snapshot, err := c.uc.Snapshot(ctx)
	if err != nil {
		c.printf("%s\n", c.failure("Error: "+err.Error()))
		return
	}

	today := snapshot.Today()
	var b strings.Builder
	fmt.Fprintf(&b, "Level %d (%d XP)\n", snapshot.XP.GlobalLevel, snapshot.XP.GlobalTotalXP)
	b.WriteString("Tasks:\n")
	for _, t := range snapshot.Tasks {
		if t.Completed {
			continue
		}
		fmt.Fprintf(&b, "  [%s] %s (%s", t.ID, t.Title, t.Priority)
		if t.IsOverdue(today) {
			b.WriteString(", overdue")
		}
		b.WriteString(")\n")
	}
	b.WriteString("Habits:\n")
	for _, h := range snapshot.Habits {
		mark := " "
		if h.DoneOn(today) {
			mark = "x"
		}
		fmt.Fprintf(&b, "  [%s] [%s] %s\n", mark, h.ID, h.Name)
	}
	b.WriteString("Appointments:\n")
	for _, a := range snapshot.Appointments {
		fmt.Fprintf(&b, "  %s %s %s\n", a.Date, a.Time, a.Title)
	}
	c.printf("%s", b.String())
}
