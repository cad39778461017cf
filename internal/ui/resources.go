package ui

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"ragdesk/internal/backend"
	"ragdesk/internal/history"
	"ragdesk/internal/textutil"
)

func (d *EnhancedDisplay) table() *tabwriter.Writer {
	return tabwriter.NewWriter(d.out, 0, 4, 2, ' ', 0)
}

func (d *EnhancedDisplay) heading(title string) {
	fmt.Fprintln(d.out)
	d.bold.Fprintln(d.out, title)
}

// PrintDocuments lists one page of documents
func (d *EnhancedDisplay) PrintDocuments(list *backend.DocumentList) {
	if list == nil || len(list.Documents) == 0 {
		d.PrintInfo("No documents uploaded yet.")
		return
	}

	w := d.table()
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tCHUNKS\tSIZE\tUPLOADED")
	for _, doc := range list.Documents {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
			doc.ID, textutil.Truncate(doc.Filename, 40), d.status(doc.Status),
			doc.ChunkCount, formatSize(doc.FileSize), doc.CreatedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
	d.gray.Fprintf(d.out, "%d of %d documents\n", len(list.Documents), list.Total)
}

// PrintDocument shows a single document in detail
func (d *EnhancedDisplay) PrintDocument(doc *backend.Document) {
	d.heading(doc.Filename)
	w := d.table()
	fmt.Fprintf(w, "ID\t%s\n", doc.ID)
	fmt.Fprintf(w, "Status\t%s\n", d.status(doc.Status))
	fmt.Fprintf(w, "Type\t%s\n", doc.ContentType)
	fmt.Fprintf(w, "Size\t%s\n", formatSize(doc.FileSize))
	fmt.Fprintf(w, "Chunks\t%d\n", doc.ChunkCount)
	fmt.Fprintf(w, "Uploaded\t%s\n", doc.CreatedAt.Format("2006-01-02 15:04:05"))
	if doc.ErrorMessage != "" {
		fmt.Fprintf(w, "Error\t%s\n", doc.ErrorMessage)
	}
	w.Flush()
}

// PrintChunks previews the chunks of a document
func (d *EnhancedDisplay) PrintChunks(chunks []backend.Chunk) {
	if len(chunks) == 0 {
		d.PrintInfo("No chunks indexed.")
		return
	}
	for _, c := range chunks {
		d.gray.Fprintf(d.out, "#%d ", c.ChunkIndex)
		fmt.Fprintln(d.out, textutil.Snippet(c.Content, 24))
	}
}

func (d *EnhancedDisplay) status(s backend.DocumentStatus) string {
	switch s {
	case backend.StatusCompleted:
		return d.green.Sprint(s)
	case backend.StatusFailed, backend.StatusCancelled:
		return d.red.Sprint(s)
	default:
		return d.yellow.Sprint(s)
	}
}

// PrintUploadResults summarizes a batch upload
func (d *EnhancedDisplay) PrintUploadResults(results []backend.UploadResult) {
	for _, r := range results {
		if r.Error != nil {
			d.red.Fprintf(d.out, "✗ %s: %s\n", r.Path, backend.UserMessage(r.Error, "upload failed"))
			continue
		}
		d.green.Fprintf(d.out, "✓ %s → %s (%s)\n", r.Path, r.Document.ID, formatDuration(r.Duration))
	}
}

// PrintAgents lists the backend agents
func (d *EnhancedDisplay) PrintAgents(list *backend.AgentList) {
	if list == nil || len(list.Agents) == 0 {
		d.PrintInfo("No agents available.")
		return
	}
	w := d.table()
	fmt.Fprintln(w, "NAME\tSTATUS\tCAPABILITIES")
	for _, a := range list.Agents {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name, a.Status, strings.Join(a.Capabilities, ", "))
	}
	w.Flush()
}

// PrintAgentLogs lists recorded agent executions
func (d *EnhancedDisplay) PrintAgentLogs(list *backend.AgentLogList) {
	if list == nil || len(list.Logs) == 0 {
		d.PrintInfo("No agent activity recorded.")
		return
	}
	w := d.table()
	fmt.Fprintln(w, "TIME\tAGENT\tACTION\tSTATUS\tDURATION")
	for _, l := range list.Logs {
		duration := "-"
		if l.ExecutionTimeMs != nil {
			duration = fmt.Sprintf("%.0fms", *l.ExecutionTimeMs)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			l.CreatedAt.Format("01-02 15:04:05"), l.AgentName, l.Action, l.Status, duration)
	}
	w.Flush()
}

// PrintConversations lists past conversations, marking the open one
func (d *EnhancedDisplay) PrintConversations(list []history.Conversation, current string) {
	if len(list) == 0 {
		d.PrintInfo("No previous conversations.")
		return
	}
	for i, c := range list {
		marker := " "
		if c.ID == current {
			marker = d.green.Sprint("●")
		}
		fmt.Fprintf(d.out, "%s %2d. %s %s\n", marker, i+1, c.Title, d.gray.Sprintf("(%s)", c.ID))
	}
}

// PrintDashboard shows the analytics overview
func (d *EnhancedDisplay) PrintDashboard(db *backend.Dashboard) {
	d.PrintUsage(&db.Usage)
	d.PrintPerformance(&db.Performance)
	d.PrintTrending(db.Trending)
	d.PrintDocumentStats(&db.DocumentStats)
}

// PrintDocumentStats shows document counts by status and type
func (d *EnhancedDisplay) PrintDocumentStats(s *backend.DocumentAnalytics) {
	d.heading("Documents")
	w := d.table()
	fmt.Fprintf(w, "Total\t%d\n", s.TotalDocuments)
	fmt.Fprintf(w, "Chunks\t%d (%.1f/document)\n", s.TotalChunks, s.AvgChunksPerDocument)
	for _, k := range sortedKeys(s.DocumentsByStatus) {
		fmt.Fprintf(w, "  %s\t%d\n", k, s.DocumentsByStatus[k])
	}
	for _, t := range s.DocumentsByType {
		fmt.Fprintf(w, "  %s\t%d\n", t.Type, t.Count)
	}
	w.Flush()
}

// PrintUsage shows query volume and token spend
func (d *EnhancedDisplay) PrintUsage(u *backend.UsageSummary) {
	d.heading(fmt.Sprintf("Usage (last %d days)", u.PeriodDays))
	w := d.table()
	fmt.Fprintf(w, "Queries\t%d\n", u.TotalQueries)
	fmt.Fprintf(w, "Avg response\t%.0fms\n", u.AvgResponseTimeMs)
	fmt.Fprintf(w, "Tokens\t%d (%.0f/query)\n", u.TotalTokens, u.AvgTokensPerQuery)
	fmt.Fprintf(w, "Estimated cost\t$%.4f\n", u.EstimatedCost)
	for _, a := range u.QueriesByAgent {
		fmt.Fprintf(w, "  %s\t%d\n", a.Agent, a.Count)
	}
	w.Flush()
	if len(u.DailyQueries) > 0 {
		d.printBars(u.DailyQueries)
	}
}

func (d *EnhancedDisplay) printBars(days []backend.DailyCount) {
	peak := 0
	for _, c := range days {
		peak = max(peak, c.Count)
	}
	if peak == 0 {
		return
	}
	for _, c := range days {
		bar := strings.Repeat("▇", c.Count*30/peak)
		fmt.Fprintf(d.out, "%s %s %d\n", d.gray.Sprint(c.Date), d.cyan.Sprint(bar), c.Count)
	}
}

// PrintPatterns shows keyword and timing patterns
func (d *EnhancedDisplay) PrintPatterns(p *backend.QueryPatterns) {
	d.heading(fmt.Sprintf("Query patterns (%d queries)", p.TotalQueriesAnalyzed))
	w := d.table()
	for _, k := range p.TopKeywords {
		fmt.Fprintf(w, "%s\t%d\n", k.Keyword, k.Count)
	}
	w.Flush()
	for _, k := range sortedKeys(p.QueryTypeDistribution) {
		d.gray.Fprintf(d.out, "%s: %d  ", k, p.QueryTypeDistribution[k])
	}
	fmt.Fprintf(d.out, "\nPeak: %s at %02d:00\n", p.TimePatterns.PeakDay, p.TimePatterns.PeakHour)
}

// PrintCosts shows cost tracking
func (d *EnhancedDisplay) PrintCosts(c *backend.CostTracking) {
	d.heading(fmt.Sprintf("Costs (last %d days)", c.PeriodDays))
	w := d.table()
	fmt.Fprintf(w, "Total\t$%.4f (%d tokens)\n", c.TotalCost, c.TotalTokens)
	fmt.Fprintf(w, "Projected monthly\t$%.2f\n", c.ProjectedMonthlyCost)
	fmt.Fprintf(w, "LLM inference\t$%.4f\n", c.CostBreakdown.LLMInference)
	fmt.Fprintf(w, "Embeddings\t$%.4f\n", c.CostBreakdown.Embeddings)
	for _, a := range c.CostByAgent {
		fmt.Fprintf(w, "  %s\t$%.4f (%d tokens)\n", a.Agent, a.Cost, a.Tokens)
	}
	w.Flush()
}

// PrintPerformance shows latency percentiles and rates
func (d *EnhancedDisplay) PrintPerformance(p *backend.PerformanceMetrics) {
	d.heading("Performance")
	rt := p.ResponseTimePercentiles
	w := d.table()
	fmt.Fprintf(w, "p50 / p90 / p99\t%.0f / %.0f / %.0f ms\n", rt.P50, rt.P90, rt.P99)
	fmt.Fprintf(w, "Error rate\t%.1f%%\n", p.ErrorRate*100)
	fmt.Fprintf(w, "Cache hit rate\t%.1f%%\n", p.CacheHitRate*100)
	fmt.Fprintf(w, "Availability\t%.2f%%\n", p.Availability*100)
	w.Flush()
}

// PrintTrending lists trending topics
func (d *EnhancedDisplay) PrintTrending(topics []backend.TrendingTopic) {
	d.heading("Trending")
	if len(topics) == 0 {
		d.gray.Fprintln(d.out, "nothing trending")
		return
	}
	w := d.table()
	for _, t := range topics {
		arrow := "→"
		switch t.Trend {
		case "rising", "new":
			arrow = d.green.Sprint("↑")
		case "falling":
			arrow = d.red.Sprint("↓")
		}
		fmt.Fprintf(w, "%s %s\t%d\t%+.0f%%\n", arrow, t.Topic, t.CurrentCount, t.GrowthRate*100)
	}
	w.Flush()
}

// PrintGraphStats shows knowledge graph totals
func (d *EnhancedDisplay) PrintGraphStats(s *backend.GraphStats) {
	d.heading("Knowledge graph")
	w := d.table()
	fmt.Fprintf(w, "Entities\t%d\n", s.TotalEntities)
	fmt.Fprintf(w, "Relations\t%d\n", s.TotalRelations)
	fmt.Fprintf(w, "Triples\t%d\n", s.TotalTriples)
	for _, k := range sortedKeys(s.EntitiesByType) {
		fmt.Fprintf(w, "  %s\t%d\n", k, s.EntitiesByType[k])
	}
	w.Flush()
}

// PrintEntities lists entity search results
func (d *EnhancedDisplay) PrintEntities(entities []backend.Entity) {
	if len(entities) == 0 {
		d.PrintInfo("No matching entities.")
		return
	}
	w := d.table()
	fmt.Fprintln(w, "ID\tNAME\tTYPE\tMENTIONS\tDOCS")
	for _, e := range entities {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n", e.ID, e.Name, e.EntityType, e.MentionCount, e.DocumentCount)
	}
	w.Flush()
}

// PrintRelations lists an entity's relations
func (d *EnhancedDisplay) PrintRelations(relations []backend.Relation) {
	if len(relations) == 0 {
		d.PrintInfo("No relations.")
		return
	}
	for _, r := range relations {
		arrow := "→"
		if r.Bidirectional {
			arrow = "↔"
		}
		fmt.Fprintf(d.out, "%s %s %s %s\n", r.Source, d.magenta.Sprintf("-%s-", r.Relation), arrow, r.Target)
	}
}

// PrintSubgraph lists the edges around an entity
func (d *EnhancedDisplay) PrintSubgraph(g *backend.Subgraph) {
	d.gray.Fprintf(d.out, "%d nodes, %d edges\n", len(g.Nodes), len(g.Edges))
	for _, e := range g.Edges {
		fmt.Fprintf(d.out, "%v %s → %v\n", e["source"], d.magenta.Sprintf("-%v-", e["relation"]), e["target"])
	}
}

// PrintGraphQuery shows the triples matched by a graph query
func (d *EnhancedDisplay) PrintGraphQuery(r *backend.GraphQueryResult) {
	if len(r.QueryEntities) > 0 {
		d.gray.Fprintf(d.out, "entities: %s\n", strings.Join(r.QueryEntities, ", "))
	}
	if len(r.Triples) == 0 {
		d.PrintInfo("No matching facts.")
		return
	}
	for _, t := range r.Triples {
		fmt.Fprintf(d.out, "%v %s → %v\n", t["subject"], d.magenta.Sprintf("-%v-", t["predicate"]), t["object"])
	}
}

// PrintGraphAnswer shows an answer produced from the knowledge graph
func (d *EnhancedDisplay) PrintGraphAnswer(a *backend.GraphAnswer) {
	fmt.Fprintln(d.out, d.RenderMarkdown(a.Answer))
	d.gray.Fprintf(d.out, "confidence %.0f%%\n", a.Confidence*100)
}

// PrintShares lists document shares
func (d *EnhancedDisplay) PrintShares(list *backend.ShareList) {
	if list == nil || len(list.Shares) == 0 {
		d.PrintInfo("No shares.")
		return
	}
	w := d.table()
	fmt.Fprintln(w, "ID\tDOCUMENT\tTYPE\tPERMISSION\tSHARED BY")
	for _, s := range list.Shares {
		name := s.DocumentName
		if name == "" {
			name = s.DocumentID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.ID, name, s.ShareType, s.Permission, s.SharedBy)
	}
	w.Flush()
}

// PrintComments shows a document's comment threads
func (d *EnhancedDisplay) PrintComments(comments []backend.Comment) {
	if len(comments) == 0 {
		d.PrintInfo("No comments.")
		return
	}
	for _, c := range comments {
		state := ""
		if c.IsResolved {
			state = d.green.Sprint(" [resolved]")
		}
		fmt.Fprintf(d.out, "%s %s%s\n  %s\n", d.bold.Sprint(c.UserName), d.gray.Sprint(c.ID), state, c.Content)
		for _, r := range c.Replies {
			fmt.Fprintf(d.out, "    ↳ %v: %v\n", r["user_name"], r["content"])
		}
	}
}

// PrintNotifications lists collaboration notifications
func (d *EnhancedDisplay) PrintNotifications(list []backend.Notification) {
	if len(list) == 0 {
		d.PrintInfo("No notifications.")
		return
	}
	for _, n := range list {
		marker := d.cyan.Sprint("●")
		if n.IsRead {
			marker = " "
		}
		fmt.Fprintf(d.out, "%s %s %s\n", marker, n.Title, d.gray.Sprintf("(%s)", n.ID))
		if n.Message != "" {
			d.gray.Fprintf(d.out, "  %s\n", n.Message)
		}
	}
}

// PrintCollaborators shows who is viewing a document
func (d *EnhancedDisplay) PrintCollaborators(list []backend.Collaborator) {
	names := make([]string, 0, len(list))
	for _, c := range list {
		names = append(names, c.UserName)
	}
	if len(names) == 0 {
		d.gray.Fprintln(d.out, "nobody else here")
		return
	}
	d.cyan.Fprintf(d.out, "present: %s\n", strings.Join(names, ", "))
}

// PrintVersions lists a document's version history
func (d *EnhancedDisplay) PrintVersions(h *backend.VersionHistory) {
	if h == nil || len(h.Versions) == 0 {
		d.PrintInfo("No versions recorded.")
		return
	}
	w := d.table()
	fmt.Fprintln(w, "VERSION\tTYPE\tCREATED\tSUMMARY")
	for _, v := range h.Versions {
		fmt.Fprintf(w, "v%d\t%s\t%s\t%s\n", v.VersionNumber, v.VersionType, v.CreatedAt.Format("2006-01-02 15:04"), v.ChangeSummary)
	}
	w.Flush()
	d.gray.Fprintf(d.out, "%d versions\n", h.TotalVersions)
}

// PrintVersionDiff shows which versions are compared, then the diff
func (d *EnhancedDisplay) PrintVersionDiff(diff *backend.VersionDiff) {
	d.bold.Fprintf(d.out, "v%d %s → v%d %s\n",
		diff.FromVersion, versionLabel(diff.FromVersionInfo),
		diff.ToVersion, versionLabel(diff.ToVersionInfo))
	d.PrintDiff(diff.DiffContent)
}

// PrintComparison shows two versions side by side, then their diff
func (d *EnhancedDisplay) PrintComparison(cmp *backend.VersionComparison) {
	w := d.table()
	fmt.Fprintln(w, "VERSION\tTITLE\tCREATED\tHASH")
	for _, v := range []backend.ComparedVersion{cmp.VersionA, cmp.VersionB} {
		fmt.Fprintf(w, "v%d\t%s\t%s\t%s\n", v.Number, v.Title, v.CreatedAt.Format("2006-01-02 15:04"), textutil.Truncate(v.ContentHash, 12))
	}
	w.Flush()
	if cmp.SameContent {
		d.PrintInfo("The versions have identical content.")
		return
	}
	d.PrintDiff(cmp.Diff)
}

func versionLabel(v backend.VersionSummary) string {
	if v.Title == "" {
		return "(deleted)"
	}
	return fmt.Sprintf("%q %s", v.Title, v.CreatedAt.Format("2006-01-02 15:04"))
}

// PrintDiff shows a unified diff with added and removed lines colored
func (d *EnhancedDisplay) PrintDiff(diff string) {
	if strings.TrimSpace(diff) == "" {
		d.PrintInfo("No differences.")
		return
	}
	for _, line := range strings.Split(diff, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
			d.bold.Fprintln(d.out, line)
		case strings.HasPrefix(line, "+"):
			d.green.Fprintln(d.out, line)
		case strings.HasPrefix(line, "-"):
			d.red.Fprintln(d.out, line)
		case strings.HasPrefix(line, "@@"):
			d.cyan.Fprintln(d.out, line)
		default:
			fmt.Fprintln(d.out, line)
		}
	}
}

// PrintAuditLog lists audit entries
func (d *EnhancedDisplay) PrintAuditLog(log *backend.AuditLog) {
	if log == nil || len(log.Entries) == 0 {
		d.PrintInfo("No audit entries.")
		return
	}
	w := d.table()
	fmt.Fprintln(w, "TIME\tACTION\tUSER\tOK")
	for _, e := range log.Entries {
		ok := d.green.Sprint("yes")
		if !e.Success {
			ok = d.red.Sprint("no")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Action, e.UserID, ok)
	}
	w.Flush()
}

// PrintOverview shows the dashboard counters and recent activity
func (d *EnhancedDisplay) PrintOverview(o *backend.Overview) {
	d.PrintDashboardStats(&o.Stats)
	d.PrintActivity(o.RecentActivity)
}

// PrintDashboardStats shows the headline counters
func (d *EnhancedDisplay) PrintDashboardStats(st *backend.DashboardStats) {
	d.heading("Overview")
	w := d.table()
	fmt.Fprintf(w, "Documents\t%d\n", st.TotalDocuments)
	fmt.Fprintf(w, "Questions today\t%d\n", st.QueriesToday)
	fmt.Fprintf(w, "Active agents\t%d\n", st.ActiveAgents)
	fmt.Fprintf(w, "Avg response\t%.2fs\n", st.AvgResponseTime)
	w.Flush()
}

// PrintActivity lists recent uploads, questions and agent runs
func (d *EnhancedDisplay) PrintActivity(items []backend.Activity) {
	d.heading("Recent activity")
	if len(items) == 0 {
		d.gray.Fprintln(d.out, "nothing yet")
		return
	}
	w := d.table()
	for _, a := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Timestamp.Format("01-02 15:04"), a.Type, a.Description)
	}
	w.Flush()
}

// PrintSQL shows a generated statement with its explanation and any rows
func (d *EnhancedDisplay) PrintSQL(resp *backend.SQLResponse) {
	fmt.Fprintln(d.out, d.RenderMarkdown("```sql\n"+resp.GeneratedSQL+"\n```"))
	if resp.Explanation != "" {
		d.gray.Fprintln(d.out, resp.Explanation)
	}
	if resp.Error != "" {
		d.PrintWarning(resp.Error)
	}
	if !resp.Executed || len(resp.Results) == 0 {
		return
	}

	cols := sortedKeys(resp.Results[0])
	w := d.table()
	fmt.Fprintln(w, strings.ToUpper(strings.Join(cols, "\t")))
	for _, row := range resp.Results {
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = fmt.Sprint(row[c])
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	w.Flush()
	d.gray.Fprintf(d.out, "%d rows\n", len(resp.Results))
}

// PrintUser shows the signed-in account
func (d *EnhancedDisplay) PrintUser(u *backend.User) {
	w := d.table()
	fmt.Fprintf(w, "Name\t%s\n", u.DisplayName())
	fmt.Fprintf(w, "Email\t%s\n", u.Email)
	fmt.Fprintf(w, "ID\t%s\n", u.ID)
	fmt.Fprintf(w, "2FA\t%t\n", u.TwoFactorEnabled)
	roles := make([]string, 0, len(u.Roles))
	for _, r := range u.Roles {
		roles = append(roles, r.Name)
	}
	if len(roles) > 0 {
		fmt.Fprintf(w, "Roles\t%s\n", strings.Join(roles, ", "))
	}
	w.Flush()
}

// PrintTwoFactorSetup shows enrollment material for an authenticator app
func (d *EnhancedDisplay) PrintTwoFactorSetup(s *backend.TwoFactorSetup) {
	w := d.table()
	fmt.Fprintf(w, "Secret\t%s\n", s.Secret)
	fmt.Fprintf(w, "URI\t%s\n", s.URI)
	w.Flush()
	if len(s.BackupCodes) > 0 {
		d.yellow.Fprintln(d.out, "Backup codes (store these somewhere safe):")
		for _, c := range s.BackupCodes {
			fmt.Fprintf(d.out, "  %s\n", c)
		}
	}
}

// PrintRaw copies exported data to the output unchanged.
func (d *EnhancedDisplay) PrintRaw(data []byte) {
	_, _ = d.out.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		fmt.Fprintln(d.out)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGT"[exp])
}
