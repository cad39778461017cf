package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"ragdesk/internal/backend"
	"ragdesk/internal/query"
	"ragdesk/internal/terminal"
	"ragdesk/internal/ui"
)

type command func(ctx context.Context, args []string) error

func (a *app) commands() map[string]command {
	return map[string]command{
		"chat":      a.cmdChat,
		"ask":       a.cmdAsk,
		"login":     a.cmdLogin,
		"register":  a.cmdRegister,
		"logout":    a.cmdLogout,
		"whoami":    a.cmdWhoami,
		"profile":   a.cmdProfile,
		"passwd":    a.cmdPasswd,
		"2fa":       a.cmdTwoFactor,
		"history":   a.cmdHistory,
		"sql":       a.cmdSQL,
		"dashboard": a.cmdDashboard,
		"docs":      a.cmdDocs,
		"versions":  a.cmdVersions,
		"agents":    a.cmdAgents,
		"analytics": a.cmdAnalytics,
		"collab":    a.cmdCollab,
		"kg":        a.cmdKnowledge,
		"health":    a.cmdHealth,
	}
}

func (a *app) dispatch(ctx context.Context, name string, args []string) error {
	cmd, ok := a.commands()[name]
	if !ok {
		return fmt.Errorf("unknown command %q (see --help)", name)
	}
	return cmd(ctx, args)
}

// subcommand splits args into a subcommand name and the rest.
func subcommand(args []string, usage string) (string, []string, error) {
	if len(args) == 0 {
		return "", nil, errors.New("usage: " + usage)
	}
	return args[0], args[1:], nil
}

func need(args []string, n int, usage string) error {
	if len(args) < n {
		return errors.New("usage: " + usage)
	}
	return nil
}

func atoi(s, what string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(s, "v"))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", what, s)
	}
	return n, nil
}

func (a *app) cmdHealth(ctx context.Context, args []string) error {
	if err := a.api.HealthCheck(ctx); err != nil {
		return err
	}
	a.display.PrintSuccess(fmt.Sprintf("Backend at %s is healthy", a.api.BaseURL()))
	return nil
}

func (a *app) cmdHistory(ctx context.Context, args []string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	list, err := a.conversations.Refresh(ctx, 0, a.cfg.HistoryPageSize)
	if err != nil {
		return a.fail(err, "Failed to load history")
	}
	a.display.PrintConversations(list, a.history.CurrentConversationID())
	return nil
}

const docsUsage = "docs list|show|chunks|upload|delete|process|reprocess|watch"

func (a *app) cmdDocs(ctx context.Context, args []string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	a.router.Navigate(ui.ViewDocuments)

	sub, rest, err := subcommand(args, docsUsage)
	if err != nil {
		return err
	}

	switch sub {
	case "list", "ls":
		var filter backend.DocumentFilter
		var status string
		flagSet := pflag.NewFlagSet("docs list", pflag.ContinueOnError)
		flagSet.StringVar(&status, "status", "", "only documents in this status")
		flagSet.IntVar(&filter.Skip, "skip", 0, "documents to skip")
		flagSet.IntVar(&filter.Limit, "limit", 0, "page size")
		if err := flagSet.Parse(rest); err != nil {
			return err
		}
		filter.Status = backend.DocumentStatus(status)
		return show(a, a.hooks.Documents(ctx, filter), a.display.PrintDocuments)

	case "show":
		if err := need(rest, 1, "docs show <id>"); err != nil {
			return err
		}
		return show(a, a.hooks.Document(ctx, rest[0]), a.display.PrintDocument)

	case "chunks":
		if err := need(rest, 1, "docs chunks <id>"); err != nil {
			return err
		}
		return show(a, a.hooks.DocumentChunks(ctx, rest[0]), a.display.PrintChunks)

	case "upload":
		var watch bool
		flagSet := pflag.NewFlagSet("docs upload", pflag.ContinueOnError)
		flagSet.BoolVarP(&watch, "watch", "w", false, "wait until processing finishes")
		if err := flagSet.Parse(rest); err != nil {
			return err
		}
		return a.upload(ctx, flagSet.Args(), watch)

	case "delete", "rm":
		if err := need(rest, 1, "docs delete <id>"); err != nil {
			return err
		}
		if !a.reader.Confirm(fmt.Sprintf("Delete document %s?", rest[0])) {
			return nil
		}
		return reported(a.hooks.DeleteDocument(ctx, rest[0]))

	case "process", "reprocess":
		if err := need(rest, 1, "docs "+sub+" <id>"); err != nil {
			return err
		}
		action := a.hooks.ProcessDocument
		if sub == "reprocess" {
			action = a.hooks.ReprocessDocument
		}
		if _, err := action(ctx, rest[0]); err != nil {
			return reported(err)
		}
		return nil

	case "watch":
		if err := need(rest, 1, "docs watch <id>"); err != nil {
			return err
		}
		return a.watch(ctx, rest[0])
	}
	return errors.New("usage: " + docsUsage)
}

// upload sends every file matched by patterns and optionally follows
// processing of each uploaded document.
func (a *app) upload(ctx context.Context, patterns []string, watch bool) error {
	paths := terminal.ExpandPaths(patterns)
	if len(paths) == 0 {
		return errors.New("no files to upload")
	}

	var results []backend.UploadResult
	_ = a.withSpinner(fmt.Sprintf("Uploading %d file(s)...", len(paths)), func() error {
		results = a.hooks.UploadMany(ctx, paths, a.cfg.UploadWorkers)
		return nil
	})
	a.display.PrintUploadResults(results)

	failed := 0
	for _, r := range results {
		if r.Error != nil {
			failed++
			if errors.Is(r.Error, os.ErrNotExist) {
				a.suggestFiles(r.Path)
			}
			continue
		}
		if watch {
			if err := a.watch(ctx, r.Document.ID); err != nil {
				return err
			}
		}
	}
	if failed > 0 {
		return reported(fmt.Errorf("%d of %d uploads failed", failed, len(results)))
	}
	return nil
}

// suggestFiles offers nearby files whose names resemble a missing path.
func (a *app) suggestFiles(missing string) {
	stem := strings.TrimSuffix(filepath.Base(missing), filepath.Ext(missing))
	if stem == "" {
		return
	}
	matches := terminal.FindMatchingFiles(".", stem)
	if len(matches) == 0 {
		return
	}
	if len(matches) > 3 {
		matches = matches[:3]
	}
	a.display.PrintInfo("Did you mean: " + strings.Join(matches, ", "))
}

func (a *app) watch(ctx context.Context, id string) error {
	info, err := a.api.WatchDocument(ctx, id, a.cfg.PollInterval, func(s backend.DocumentStatusInfo) {
		a.display.PrintInfo(fmt.Sprintf("%s: %s", id, s.Status))
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return a.fail(err, "Failed to check document status")
	}

	a.hooks.Cache().Invalidate(query.KeyDocuments)
	if info.Status == backend.StatusCompleted {
		a.toasts.Success(fmt.Sprintf("Document %s is ready", id))
		return nil
	}
	msg := fmt.Sprintf("Document %s %s", id, info.Status)
	if info.Message != "" {
		msg += ": " + info.Message
	}
	a.toasts.Error(msg)
	return nil
}

const versionsUsage = "versions list|show|diff|compare|rollback|create|audit <document-id> ..."

func (a *app) cmdVersions(ctx context.Context, args []string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	a.router.Navigate(ui.ViewDocuments)

	sub, rest, err := subcommand(args, versionsUsage)
	if err != nil {
		return err
	}
	if err := need(rest, 1, versionsUsage); err != nil {
		return err
	}
	docID, rest := rest[0], rest[1:]

	switch sub {
	case "list":
		return show(a, a.hooks.Versions(ctx, docID), a.display.PrintVersions)

	case "show":
		if err := need(rest, 1, "versions show <document-id> <version>"); err != nil {
			return err
		}
		n, err := atoi(rest[0], "version")
		if err != nil {
			return err
		}
		v, err := a.api.GetVersion(ctx, docID, n)
		if err != nil {
			return a.fail(err, "Failed to load version")
		}
		a.display.PrintInfo(fmt.Sprintf("v%d %s (%s)", v.VersionNumber, v.Title, v.CreatedAt.Format("2006-01-02 15:04")))
		fmt.Fprintln(a.display.Writer(), v.Content)
		return nil

	case "diff":
		if err := need(rest, 1, "versions diff <document-id> <from> [to]"); err != nil {
			return err
		}
		from, err := atoi(rest[0], "version")
		if err != nil {
			return err
		}
		to := 0
		if len(rest) > 1 {
			if to, err = atoi(rest[1], "version"); err != nil {
				return err
			}
		}
		diff, err := a.api.DiffVersions(ctx, docID, from, to)
		if err != nil {
			return a.fail(err, "Failed to diff versions")
		}
		a.display.PrintVersionDiff(diff)
		return nil

	case "compare":
		if err := need(rest, 2, "versions compare <document-id> <a> <b>"); err != nil {
			return err
		}
		va, err := atoi(rest[0], "version")
		if err != nil {
			return err
		}
		vb, err := atoi(rest[1], "version")
		if err != nil {
			return err
		}
		cmp, err := a.api.CompareVersions(ctx, docID, va, vb)
		if err != nil {
			return a.fail(err, "Failed to compare versions")
		}
		a.display.PrintComparison(cmp)
		return nil

	case "rollback":
		if err := need(rest, 1, "versions rollback <document-id> <version> [reason]"); err != nil {
			return err
		}
		n, err := atoi(rest[0], "version")
		if err != nil {
			return err
		}
		if !a.reader.Confirm(fmt.Sprintf("Roll %s back to v%d?", docID, n)) {
			return nil
		}
		_, err = a.hooks.RollbackVersion(ctx, docID, n, strings.Join(rest[1:], " "))
		return reported(err)

	case "create":
		_, err := a.hooks.CreateVersion(ctx, docID, strings.Join(rest, " "))
		return reported(err)

	case "audit":
		return show(a, a.hooks.AuditLog(ctx, docID), a.display.PrintAuditLog)
	}
	return errors.New("usage: " + versionsUsage)
}

const agentsUsage = "agents list|status <name>|run <name> <input>|logs"

func (a *app) cmdAgents(ctx context.Context, args []string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	a.router.Navigate(ui.ViewAgents)

	sub, rest, err := subcommand(args, agentsUsage)
	if err != nil {
		return err
	}

	switch sub {
	case "list", "ls":
		return show(a, a.hooks.Agents(ctx), a.display.PrintAgents)

	case "status":
		if err := need(rest, 1, "agents status <name>"); err != nil {
			return err
		}
		agent, err := a.api.AgentStatus(ctx, rest[0])
		if err != nil {
			return a.fail(err, "Failed to load agent")
		}
		a.display.PrintAgents(&backend.AgentList{Agents: []backend.Agent{*agent}, Total: 1})
		return nil

	case "run":
		if err := need(rest, 2, "agents run <name> <query or JSON object>"); err != nil {
			return err
		}
		input := agentInput(strings.Join(rest[1:], " "))
		var exec *backend.AgentExecution
		err := a.withSpinner("Running "+rest[0]+"...", func() error {
			var err error
			exec, err = a.hooks.ExecuteAgent(ctx, rest[0], backend.AgentExecuteRequest{InputData: input})
			return err
		})
		if err != nil {
			return reported(err)
		}
		out, _ := json.MarshalIndent(exec.Output, "", "  ")
		fmt.Fprintln(a.display.Writer(), string(out))
		return nil

	case "logs":
		filter := backend.AgentLogFilter{}
		flagSet := pflag.NewFlagSet("agents logs", pflag.ContinueOnError)
		flagSet.StringVar(&filter.AgentName, "agent", "", "only logs for this agent")
		flagSet.IntVar(&filter.Skip, "skip", 0, "entries to skip")
		flagSet.IntVar(&filter.Limit, "limit", 50, "page size")
		if err := flagSet.Parse(rest); err != nil {
			return err
		}
		return show(a, a.hooks.AgentLogs(ctx, filter), a.display.PrintAgentLogs)
	}
	return errors.New("usage: " + agentsUsage)
}

// agentInput accepts a JSON object verbatim and wraps anything else as
// a query.
func agentInput(raw string) map[string]interface{} {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &obj); err == nil && obj != nil {
		return obj
	}
	return map[string]interface{}{"query": raw}
}

func (a *app) cmdSQL(ctx context.Context, args []string) error {
	var (
		schema  string
		execute bool
	)
	flagSet := pflag.NewFlagSet("sql", pflag.ContinueOnError)
	flagSet.StringVar(&schema, "schema", "", "schema description to guide generation")
	flagSet.BoolVar(&execute, "execute", false, "ask the backend to run the statement")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if err := a.requireAuth(); err != nil {
		return err
	}

	question := strings.TrimSpace(strings.Join(flagSet.Args(), " "))
	if question == "" {
		return errors.New("usage: sql [--schema text] [--execute] <question>")
	}

	var resp *backend.SQLResponse
	err := a.withSpinner("Generating SQL...", func() error {
		var err error
		resp, err = a.hooks.GenerateSQL(ctx, backend.SQLRequest{
			Query:         question,
			Execute:       execute,
			SchemaContext: schema,
		})
		return err
	})
	if err != nil {
		return reported(err)
	}
	a.display.PrintSQL(resp)
	return nil
}

func (a *app) cmdDashboard(ctx context.Context, args []string) error {
	var limit int
	flagSet := pflag.NewFlagSet("dashboard", pflag.ContinueOnError)
	flagSet.IntVar(&limit, "limit", 10, "activities to show")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if err := a.requireAuth(); err != nil {
		return err
	}
	a.router.Navigate(ui.ViewAnalytics)

	switch sub := flagSet.Arg(0); sub {
	case "":
		return show(a, a.hooks.Overview(ctx), a.display.PrintOverview)
	case "stats":
		return show(a, a.hooks.DashboardStats(ctx), a.display.PrintDashboardStats)
	case "activity":
		return show(a, a.hooks.DashboardActivity(ctx, limit), a.display.PrintActivity)
	default:
		return fmt.Errorf("unknown dashboard view %q (stats or activity)", sub)
	}
}

const analyticsUsage = "analytics dashboard|usage|patterns|documents|costs|performance|trending|export"

func (a *app) cmdAnalytics(ctx context.Context, args []string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	a.router.Navigate(ui.ViewAnalytics)

	sub, rest, err := subcommand(args, analyticsUsage)
	if err != nil {
		return err
	}

	var (
		days   int
		topN   int
		format string
		output string
	)
	flagSet := pflag.NewFlagSet("analytics", pflag.ContinueOnError)
	flagSet.IntVar(&days, "days", 30, "period in days")
	flagSet.IntVar(&topN, "top", 10, "number of top items")
	flagSet.StringVar(&format, "format", string(backend.ExportJSON), "export format (json or csv)")
	flagSet.StringVarP(&output, "output", "o", "", "write the export to this file")
	if err := flagSet.Parse(rest); err != nil {
		return err
	}

	switch sub {
	case "dashboard":
		return show(a, a.hooks.Dashboard(ctx), a.display.PrintDashboard)
	case "usage":
		return show(a, a.hooks.Usage(ctx, days), a.display.PrintUsage)
	case "patterns":
		return show(a, a.hooks.Patterns(ctx, days, topN), a.display.PrintPatterns)
	case "documents":
		return show(a, a.hooks.DocumentStats(ctx, days), a.display.PrintDocumentStats)
	case "costs":
		return show(a, a.hooks.Costs(ctx, days), a.display.PrintCosts)
	case "performance":
		return show(a, a.hooks.Performance(ctx, days), a.display.PrintPerformance)
	case "trending":
		return show(a, a.hooks.Trending(ctx, days, topN), a.display.PrintTrending)
	case "export":
		data, err := a.api.ExportAnalytics(ctx, days, backend.ExportFormat(format))
		if err != nil {
			return a.fail(err, "Export failed")
		}
		if output == "" {
			a.display.PrintRaw(data)
			return nil
		}
		if err := os.WriteFile(output, data, 0o644); err != nil {
			return fmt.Errorf("failed to write export: %w", err)
		}
		a.toasts.Success("Exported analytics to " + output)
		return nil
	}
	return errors.New("usage: " + analyticsUsage)
}

const collabUsage = "collab shared|shares|share|revoke|permission|join|comments|comment|resolve|notifications|read|read-all"

func (a *app) cmdCollab(ctx context.Context, args []string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}
	a.router.Navigate(ui.ViewDocuments)

	sub, rest, err := subcommand(args, collabUsage)
	if err != nil {
		return err
	}

	switch sub {
	case "shared":
		return show(a, a.hooks.SharedWithMe(ctx), a.display.PrintShares)

	case "shares":
		if err := need(rest, 1, "collab shares <document-id>"); err != nil {
			return err
		}
		return show(a, a.hooks.DocumentShares(ctx, rest[0]), a.display.PrintShares)

	case "share":
		req := backend.ShareRequest{ShareType: "user"}
		flagSet := pflag.NewFlagSet("collab share", pflag.ContinueOnError)
		flagSet.StringVar(&req.Permission, "permission", backend.PermissionView, "view, comment, edit or admin")
		flagSet.StringVar(&req.Message, "message", "", "note for the recipient")
		if err := flagSet.Parse(rest); err != nil {
			return err
		}
		if err := need(flagSet.Args(), 2, "collab share <document-id> <user-id> [--permission view]"); err != nil {
			return err
		}
		req.DocumentID, req.SharedWithUserID = flagSet.Arg(0), flagSet.Arg(1)
		_, err := a.hooks.ShareDocument(ctx, req)
		return reported(err)

	case "revoke":
		if err := need(rest, 2, "collab revoke <document-id> <share-id>"); err != nil {
			return err
		}
		return reported(a.hooks.RevokeShare(ctx, rest[0], rest[1]))

	case "permission":
		if err := need(rest, 3, "collab permission <document-id> <share-id> <permission>"); err != nil {
			return err
		}
		return reported(a.hooks.UpdateSharePermission(ctx, rest[0], rest[1], rest[2]))

	case "join":
		if err := need(rest, 1, "collab join <document-id>"); err != nil {
			return err
		}
		a.display.PrintInfo("Watching who else is here. Press Ctrl-C to leave.")
		if err := a.presence.Run(ctx, rest[0], a.display.PrintCollaborators); err != nil {
			return a.fail(err, "Failed to join document")
		}
		return nil

	case "comments":
		var all bool
		flagSet := pflag.NewFlagSet("collab comments", pflag.ContinueOnError)
		flagSet.BoolVar(&all, "all", false, "include resolved comments")
		if err := flagSet.Parse(rest); err != nil {
			return err
		}
		if err := need(flagSet.Args(), 1, "collab comments <document-id> [--all]"); err != nil {
			return err
		}
		return show(a, a.hooks.Comments(ctx, flagSet.Arg(0), all), a.display.PrintComments)

	case "comment":
		if err := need(rest, 2, "collab comment <document-id> <text>"); err != nil {
			return err
		}
		_, err := a.hooks.AddComment(ctx, rest[0], backend.CommentRequest{Content: strings.Join(rest[1:], " ")})
		return reported(err)

	case "resolve":
		if err := need(rest, 2, "collab resolve <document-id> <comment-id>"); err != nil {
			return err
		}
		return reported(a.hooks.ResolveComment(ctx, rest[0], rest[1]))

	case "notifications":
		var unread bool
		flagSet := pflag.NewFlagSet("collab notifications", pflag.ContinueOnError)
		flagSet.BoolVar(&unread, "unread", false, "only unread notifications")
		if err := flagSet.Parse(rest); err != nil {
			return err
		}
		return show(a, a.hooks.Notifications(ctx, unread), a.display.PrintNotifications)

	case "read":
		if err := need(rest, 1, "collab read <notification-id>"); err != nil {
			return err
		}
		return reported(a.hooks.MarkNotificationRead(ctx, rest[0]))

	case "read-all":
		_, err := a.hooks.MarkAllNotificationsRead(ctx)
		return reported(err)
	}
	return errors.New("usage: " + collabUsage)
}

const kgUsage = "kg stats|search|entity|graph|relations|query|ask"

func (a *app) cmdKnowledge(ctx context.Context, args []string) error {
	if err := a.requireAuth(); err != nil {
		return err
	}

	sub, rest, err := subcommand(args, kgUsage)
	if err != nil {
		return err
	}

	var (
		entityType string
		limit      int
		depth      int
		hops       int
	)
	flagSet := pflag.NewFlagSet("kg", pflag.ContinueOnError)
	flagSet.StringVar(&entityType, "type", "", "entity type filter")
	flagSet.IntVar(&limit, "limit", 20, "maximum results")
	flagSet.IntVar(&depth, "depth", 2, "subgraph depth")
	flagSet.IntVar(&hops, "hops", 2, "maximum hops for graph queries")
	if err := flagSet.Parse(rest); err != nil {
		return err
	}
	rest = flagSet.Args()
	text := strings.Join(rest, " ")

	switch sub {
	case "stats":
		return show(a, a.hooks.GraphStats(ctx), a.display.PrintGraphStats)

	case "search":
		if err := need(rest, 1, "kg search <text> [--type t]"); err != nil {
			return err
		}
		return show(a, a.hooks.SearchEntities(ctx, text, entityType, limit), a.display.PrintEntities)

	case "entity":
		if err := need(rest, 1, "kg entity <id>"); err != nil {
			return err
		}
		entity, err := a.api.GetEntity(ctx, rest[0])
		if err != nil {
			return a.fail(err, "Failed to load entity")
		}
		a.display.PrintEntities([]backend.Entity{*entity})
		if entity.Description != "" {
			fmt.Fprintln(a.display.Writer(), entity.Description)
		}
		return nil

	case "graph":
		if err := need(rest, 1, "kg graph <id> [--depth n]"); err != nil {
			return err
		}
		g, err := a.api.EntitySubgraph(ctx, rest[0], depth)
		if err != nil {
			return a.fail(err, "Failed to load subgraph")
		}
		a.display.PrintSubgraph(g)
		return nil

	case "relations":
		if err := need(rest, 1, "kg relations <id>"); err != nil {
			return err
		}
		return show(a, a.hooks.EntityRelations(ctx, rest[0]), a.display.PrintRelations)

	case "query":
		if err := need(rest, 1, "kg query <text> [--hops n]"); err != nil {
			return err
		}
		r, err := a.api.QueryGraph(ctx, backend.GraphQuery{Query: text, MaxHops: hops, TopK: limit})
		if err != nil {
			return a.fail(err, "Graph query failed")
		}
		a.display.PrintGraphQuery(r)
		return nil

	case "ask":
		if err := need(rest, 1, "kg ask <question>"); err != nil {
			return err
		}
		var answer *backend.GraphAnswer
		err := a.withSpinner("Thinking...", func() error {
			var err error
			answer, err = a.api.AskGraph(ctx, text)
			return err
		})
		if err != nil {
			return a.fail(err, "Failed to get an answer")
		}
		a.display.PrintGraphAnswer(answer)
		return nil
	}
	return errors.New("usage: " + kgUsage)
}
