package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ragdesk/internal/backend"
	"ragdesk/internal/chat"
	"ragdesk/internal/history"
	"ragdesk/internal/ui"
)

// chatState is what the REPL sends with every message
type chatState struct {
	opts chat.Options
}

func (s *chatState) label() string {
	label := string(s.opts.Mode)
	if s.opts.Transport == chat.TransportChat {
		label += "+chat"
	}
	if s.opts.AgentName != "" {
		label += "@" + s.opts.AgentName
	}
	if n := len(s.opts.DocumentIDs); n > 0 {
		label += fmt.Sprintf(" %d docs", n)
	}
	return label
}

func (a *app) cmdAsk(ctx context.Context, args []string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	text := strings.Join(args, " ")
	if strings.TrimSpace(text) == "" {
		return errors.New("usage: ask <question>")
	}

	msg, err := a.send(ctx, text, chat.Options{Mode: a.mode})
	if err != nil {
		return err
	}
	a.display.PrintMessage(msg)
	return nil
}

func (a *app) cmdChat(ctx context.Context, args []string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	a.router.Navigate(ui.ViewChat)

	// Health check
	if err := a.api.HealthCheck(ctx); err != nil {
		a.display.PrintError(err)
		a.display.PrintInfo("Make sure the backend is running, or point --api-url at it.")
		return reported(err)
	}

	a.session.RefreshUser(ctx, a.api)
	user := a.session.Snapshot().User
	name := ""
	if user != nil {
		name = user.DisplayName()
	}
	a.display.PrintWelcome(name, a.api.BaseURL())

	state := &chatState{opts: chat.Options{Mode: a.mode}}

	// Main conversation loop
	for {
		if a.router.CurrentView() == ui.ViewLogin {
			return reported(errors.New("session expired"))
		}

		line, err := a.reader.ReadLineContext(ctx, a.display.Prompt(state.label()))
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				fmt.Fprintln(a.display.Writer())
				a.display.PrintGoodbye()
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			quit, err := a.slash(ctx, state, line)
			if err != nil {
				var rep reportedError
				if !errors.As(err, &rep) {
					a.display.PrintError(err)
				}
			}
			if quit {
				a.display.PrintGoodbye()
				return nil
			}
			continue
		}

		msg, err := a.send(ctx, line, state.opts)
		if err != nil {
			continue
		}
		a.display.PrintMessage(msg)
	}
}

// send runs one message through the sender with the spinner up. Failures
// have already been shown as toasts when this returns.
func (a *app) send(ctx context.Context, text string, opts chat.Options) (history.Message, error) {
	var msg history.Message
	err := a.withSpinner("Thinking...", func() error {
		var err error
		msg, err = a.sender.Send(ctx, text, opts)
		return err
	})

	var sendErr *chat.SendError
	switch {
	case err == nil:
		return msg, nil
	case errors.As(err, &sendErr):
		a.display.PrintInfo("Your message was not sent: " + sendErr.Draft)
	case errors.Is(err, chat.ErrBusy):
		a.display.PrintWarning("Still waiting for the previous answer.")
	case errors.Is(err, chat.ErrDiscarded):
		a.display.PrintInfo("The conversation changed before the answer arrived.")
	case errors.Is(err, chat.ErrEmptyMessage):
	default:
		a.display.PrintError(err)
	}
	return msg, reported(err)
}

// slash handles a REPL command; quit reports whether the loop should end.
func (a *app) slash(ctx context.Context, state *chatState, line string) (quit bool, err error) {
	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/exit", "/quit":
		return true, nil

	case "/help":
		a.printChatHelp()

	case "/new":
		a.conversations.New()
		a.display.PrintInfo("Started a new conversation.")

	case "/transcript":
		a.display.PrintTranscript(a.history.Messages())

	case "/history":
		list, err := a.conversations.Refresh(ctx, 0, a.cfg.HistoryPageSize)
		if err != nil {
			return false, a.fail(err, "Failed to load history")
		}
		a.display.PrintConversations(list, a.history.CurrentConversationID())

	case "/open":
		if len(args) != 1 {
			return false, errors.New("usage: /open <number or id>")
		}
		id := args[0]
		if n, convErr := strconv.Atoi(id); convErr == nil {
			list := a.history.Conversations()
			if n < 1 || n > len(list) {
				return false, fmt.Errorf("no conversation %d; run /history first", n)
			}
			id = list[n-1].ID
		}
		if err := a.conversations.Open(ctx, id); err != nil {
			return false, a.fail(err, "Failed to open conversation")
		}
		a.display.PrintTranscript(a.history.Messages())

	case "/mode":
		if len(args) == 0 {
			names := make([]string, 0, len(backend.QueryModes))
			for _, m := range backend.QueryModes {
				names = append(names, string(m))
			}
			a.display.PrintInfo("Modes: " + strings.Join(names, ", "))
			return false, nil
		}
		mode, err := backend.ParseQueryMode(args[0])
		if err != nil {
			return false, err
		}
		state.opts.Mode = mode
		a.display.PrintInfo("Mode set to " + string(mode))

	case "/chat":
		if state.opts.Transport == chat.TransportChat {
			state.opts.Transport = chat.TransportAsk
			a.display.PrintInfo("Each message is now a standalone question.")
		} else {
			state.opts.Transport = chat.TransportChat
			a.display.PrintInfo("Messages now carry the conversation as context.")
		}

	case "/agent":
		state.opts.AgentName = strings.Join(args, "")
		if state.opts.AgentName == "" {
			a.display.PrintInfo("Agent cleared; the backend will route.")
		} else {
			a.display.PrintInfo("Questions go to " + state.opts.AgentName)
		}

	case "/docs":
		switch {
		case len(args) == 0:
			return false, show(a, a.hooks.Documents(ctx, backend.DocumentFilter{}), a.display.PrintDocuments)
		case args[0] == "clear":
			state.opts.DocumentIDs = nil
			a.display.PrintInfo("Questions search every document.")
		default:
			state.opts.DocumentIDs = args
			a.display.PrintInfo(fmt.Sprintf("Questions are limited to %d document(s).", len(args)))
		}

	case "/upload":
		if len(args) == 0 {
			return false, errors.New("usage: /upload <file or glob>...")
		}
		return false, a.upload(ctx, args, false)

	case "/whoami":
		return false, a.cmdWhoami(ctx, nil)

	case "/toasts":
		for _, t := range a.toasts.Active() {
			a.display.PrintToast(t)
		}

	default:
		return false, fmt.Errorf("unknown command %s; try /help", cmd)
	}
	return false, nil
}

func (a *app) printChatHelp() {
	a.display.PrintSeparator()
	fmt.Fprint(a.display.Writer(), `  /new                 start a new conversation
  /history             list past conversations
  /open <n|id>         open a past conversation
  /transcript          show the current conversation
  /mode [name]         show or set the query mode
  /chat                toggle sending the conversation as context
  /agent [name]        send questions to one agent
  /docs [ids|clear]    list documents, or limit questions to some
  /upload <files>      upload documents (globs allowed)
  /toasts              show recent notifications
  /whoami              show the signed-in user
  /exit                quit
`)
	a.display.PrintSeparator()
}
