package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/Sriram-PR/statifier/pkg/parse"
	"github.com/Sriram-PR/statifier/pkg/utils"
)

// handleStart handles the start_statification tool
func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	designation := strings.TrimSpace(request.GetString("designation", ""))
	if designation == "" {
		return mcp.NewToolResultError("designation parameter is required"), nil
	}
	description := request.GetString("description", "")
	user := request.GetString("user", "mcp")

	job, err := s.service.Start(s.crawlCtx, designation, description, user)
	if err != nil {
		if errors.Is(err, utils.ErrAlreadyRunning) {
			result := map[string]any{
				"status":  "already_running",
				"message": "A statification is already in progress",
			}
			if current := s.service.Current(); current != nil {
				result["job_id"] = current.ID()
			}
			return mcp.NewToolResultText(formatJSON(result)), nil
		}
		return mcp.NewToolResultError(fmt.Sprintf("statification refused [%s]: %v", utils.CategorizeError(err), err)), nil
	}

	result := map[string]any{
		"status":      "started",
		"message":     "Statification started successfully",
		"job_id":      job.ID(),
		"designation": designation,
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleStop handles the stop_statification tool
func (s *Server) handleStop(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stopped := s.service.Stop()
	result := map[string]any{"stopped": stopped}
	if stopped {
		result["message"] = "Stop requested, the statification will settle shortly"
	} else {
		result["message"] = "No statification is running"
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleStatus handles the get_statification_status tool
func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if jobID := request.GetString("job_id", ""); jobID != "" {
		job := s.service.Job(jobID)
		if job == nil {
			return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
		}
		snap := job.Status()
		result := map[string]any{"job": snap}
		if !snap.CompletedAt.IsZero() {
			result["duration_seconds"] = snap.CompletedAt.Sub(snap.StartedAt).Seconds()
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	st, err := s.service.Status()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read status: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(st)), nil
}

// handleList handles the list_statifications tool
func (s *Server) handleList(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	records, err := s.service.List()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list statifications: %v", err)), nil
	}

	items := make([]map[string]any, 0, len(records))
	for _, r := range records {
		items = append(items, map[string]any{
			"commit":      r.Commit,
			"designation": r.Designation,
			"status":      r.Status,
			"created_at":  r.CreatedAt.Format(time.RFC3339),
			"item_count":  r.ItemCount,
		})
	}
	result := map[string]any{
		"statifications": items,
		"total":          len(items),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleReport handles the get_statification_report tool
func (s *Server) handleReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	commit := request.GetString("commit", "")
	record, err := s.service.Get(commit)
	if errors.Is(err, utils.ErrNotFound) {
		return mcp.NewToolResultError(fmt.Sprintf("statification '%s' not found", commit)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load statification: %v", err)), nil
	}
	return mcp.NewToolResultText(formatJSON(record)), nil
}

// handleGetMirroredPage handles the get_mirrored_page tool
func (s *Server) handleGetMirroredPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	target := request.GetString("path", "")
	if target == "" {
		return mcp.NewToolResultError("path parameter is required"), nil
	}
	contentSelector := request.GetString("content_selector", "body")

	mapper := parse.NewPathMapper(s.cfg.AppConfig.Site.OutputDir, s.cfg.AppConfig.Site.DefaultIndex)
	local, err := s.localPath(mapper, target)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid path: %v", err)), nil
	}

	f, err := os.Open(mapper.FilesystemPath(local))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("page '%s' is not in the mirror", local)), nil
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse HTML: %v", err)), nil
	}

	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = "Untitled"
	}

	contentSelection := doc.Find(contentSelector)
	if contentSelection.Length() == 0 {
		return mcp.NewToolResultError(fmt.Sprintf("content selector '%s' not found on page", contentSelector)), nil
	}
	contentHTML, err := contentSelection.First().Html()
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to extract HTML content: %v", err)), nil
	}
	converter := md.NewConverter("", true, nil)
	content, err := converter.ConvertString(contentHTML)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to convert to markdown: %v", err)), nil
	}
	content = strings.TrimSpace(content)

	result := map[string]any{
		"path":           local,
		"title":          title,
		"content":        content,
		"content_length": len(content),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// localPath accepts a page URL or a mirror-relative path and returns a cleaned mirror path
func (s *Server) localPath(mapper parse.PathMapper, target string) (string, error) {
	if strings.Contains(target, "://") {
		return mapper.LocalPathString(target)
	}
	local := path.Clean("/" + target)
	if strings.HasSuffix(target, "/") || local == "/" {
		local = path.Join(local, mapper.DefaultIndex)
	}
	return local, nil
}

// handleSearchMirror handles the search_mirror tool
func (s *Server) handleSearchMirror(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query parameter is required"), nil
	}
	maxResults := request.GetInt("max_results", 10)
	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > 100 {
		maxResults = 100
	}

	results, err := s.searchMirror(ctx, query, maxResults)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	response := map[string]any{
		"query":         query,
		"results":       results,
		"total_matches": len(results),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// searchMirror walks the mirrored HTML pages and matches the query against titles and body text
func (s *Server) searchMirror(ctx context.Context, query string, maxResults int) ([]map[string]any, error) {
	root := s.cfg.AppConfig.Site.OutputDir
	queryLower := strings.ToLower(query)
	results := make([]map[string]any, 0)

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Unreadable entries are skipped
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if len(results) >= maxResults {
			return fs.SkipAll
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".html") {
			return nil
		}

		f, err := os.Open(p)
		if err != nil {
			return nil
		}
		doc, err := goquery.NewDocumentFromReader(f)
		f.Close()
		if err != nil {
			return nil
		}

		title := strings.TrimSpace(doc.Find("title").First().Text())
		text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")

		matchLocation := ""
		if strings.Contains(strings.ToLower(title), queryLower) {
			matchLocation = "title"
		} else if strings.Contains(strings.ToLower(text), queryLower) {
			matchLocation = "content"
		} else {
			return nil
		}

		rel, _ := filepath.Rel(root, p)
		results = append(results, map[string]any{
			"path":           "/" + filepath.ToSlash(rel),
			"title":          title,
			"snippet":        extractSnippet(text, query, 150),
			"match_location": matchLocation,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// extractSnippet extracts a snippet around the query match, slicing on rune
// boundaries so multi-byte UTF-8 characters are never split.
func extractSnippet(content, query string, maxLen int) string {
	runes := []rune(content)
	queryRunes := []rune(strings.ToLower(query))
	contentLowerRunes := []rune(strings.ToLower(content))

	idx := -1
	for i := 0; i <= len(contentLowerRunes)-len(queryRunes); i++ {
		if string(contentLowerRunes[i:i+len(queryRunes)]) == string(queryRunes) {
			idx = i
			break
		}
	}

	if idx == -1 {
		if len(runes) > maxLen {
			return string(runes[:maxLen]) + "..."
		}
		return content
	}

	start := max(idx-maxLen/2, 0)
	end := min(idx+len(queryRunes)+maxLen/2, len(runes))

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = "..." + snippet
	}
	if end < len(runes) {
		snippet = snippet + "..."
	}
	return snippet
}

// formatJSON formats data as an indented JSON string
func formatJSON(data any) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
