package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/SatyaChamana/Codelens/internal/embedder"
	"github.com/SatyaChamana/Codelens/internal/retriever"
	"github.com/SatyaChamana/Codelens/internal/store"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start an MCP server exposing codebase search tools",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	emb := embedder.NewOllamaEmbedder(flagOllama, flagModel)
	ret := retriever.New(st, emb)

	s := mcpserver.NewMCPServer("codelens", "1.0.0", mcpserver.WithToolCapabilities(false))

	s.AddTool(searchCodebaseTool(), makeSearchHandler(ret))
	s.AddTool(getFileSummaryTool(), makeFileSummaryHandler(st))
	s.AddTool(listIndexedFilesTool(), makeListFilesHandler(st))
	s.AddTool(listRepositoriesTool(), makeListRepositoriesHandler(st))

	return mcpserver.ServeStdio(s)
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

// --- Tool schema builders ---

var readOnlyAnnotation = mcp.ToolAnnotation{
	ReadOnlyHint:    mcp.ToBoolPtr(true),
	DestructiveHint: mcp.ToBoolPtr(false),
	IdempotentHint:  mcp.ToBoolPtr(true),
	OpenWorldHint:   mcp.ToBoolPtr(false),
}

func searchCodebaseTool() mcp.Tool {
	return mcp.NewTool("search_codebase",
		mcp.WithDescription("Semantically search an indexed repository. Returns relevant code chunks with file paths, line numbers, and similarity scores."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("repo",
			mcp.Required(),
			mcp.Description("Repository name as indexed (see list_repositories)"),
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural language or keyword query to search the codebase"),
		),
		mcp.WithNumber("k",
			mcp.Description("Maximum number of chunks to return (default 10)"),
		),
		mcp.WithString("language",
			mcp.Description("Optional language filter (e.g. 'go', 'python')"),
		),
		mcp.WithString("type",
			mcp.Description("Optional unit type filter: function, method, class, module, block"),
		),
		mcp.WithString("path_glob",
			mcp.Description("Optional file path glob filter, supports ** (e.g. 'internal/**/*.go')"),
		),
	)
}

func getFileSummaryTool() mcp.Tool {
	return mcp.NewTool("get_file_summary",
		mcp.WithDescription("Get the structural summary for a specific indexed file: purpose, imports, and defined functions and classes."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("repo",
			mcp.Required(),
			mcp.Description("Repository name as indexed"),
		),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("File path as indexed (relative to the repository root)"),
		),
	)
}

func listIndexedFilesTool() mcp.Tool {
	return mcp.NewTool("list_indexed_files",
		mcp.WithDescription("List all files indexed in a repository with their language and chunk count."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
		mcp.WithString("repo",
			mcp.Required(),
			mcp.Description("Repository name as indexed"),
		),
		mcp.WithString("language",
			mcp.Description("Optional language filter (e.g. 'go', 'python'). Case-insensitive."),
		),
	)
}

func listRepositoriesTool() mcp.Tool {
	return mcp.NewTool("list_repositories",
		mcp.WithDescription("List all indexed repositories with their chunk counts."),
		mcp.WithToolAnnotation(readOnlyAnnotation),
	)
}

// --- Handler factories ---

func makeSearchHandler(ret *retriever.Retriever) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		repo := req.GetString("repo", "")
		query := req.GetString("query", "")
		if repo == "" || query == "" {
			return mcp.NewToolResultError("repo and query are required"), nil
		}
		k := req.GetInt("k", 10)
		if k <= 0 {
			k = 10
		}

		results, err := ret.Retrieve(ctx, retriever.Request{
			Collection: repo,
			Query:      query,
			TopK:       k,
			Rerank:     true,
			Filters: store.Filters{
				Language: req.GetString("language", ""),
				UnitType: req.GetString("type", ""),
				PathGlob: req.GetString("path_glob", ""),
			},
		})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
		}

		return mcp.NewToolResultText(formatSearchResults(query, results)), nil
	}
}

func makeFileSummaryHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		repo := req.GetString("repo", "")
		path := req.GetString("path", "")
		if repo == "" || path == "" {
			return mcp.NewToolResultError("repo and path are required"), nil
		}

		summary, err := st.FileSummary(ctx, repo, path)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("get summary failed: %v", err)), nil
		}
		if summary == "" {
			return mcp.NewToolResultError(fmt.Sprintf("file %q not found in %q - call list_indexed_files to see available paths", path, repo)), nil
		}
		return mcp.NewToolResultText(summary), nil
	}
}

func makeListFilesHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		repo := req.GetString("repo", "")
		if repo == "" {
			return mcp.NewToolResultError("repo is required"), nil
		}
		langFilter := strings.ToLower(req.GetString("language", ""))

		files, err := st.ListFiles(ctx, repo)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list files failed: %v", err)), nil
		}

		var filtered []store.FileInfo
		for _, f := range files {
			if langFilter == "" || strings.ToLower(f.Language) == langFilter {
				filtered = append(filtered, f)
			}
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "## Indexed files in %s (%d)\n\n", repo, len(filtered))
		for _, f := range filtered {
			fmt.Fprintf(&sb, "- **%s** (%s, %d chunks)\n", f.Path, f.Language, f.Chunks)
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeListRepositoriesHandler(st store.Store) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		infos, err := st.ListCollections(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("list repositories failed: %v", err)), nil
		}
		if len(infos) == 0 {
			return mcp.NewToolResultText("No repositories indexed."), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "## Indexed repositories (%d)\n\n", len(infos))
		for _, info := range infos {
			fmt.Fprintf(&sb, "- **%s** (%d chunks, indexed %s)\n",
				info.Name, info.Chunks, info.CreatedAt.Format("2006-01-02"))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// --- Formatting helpers ---

func formatSearchResults(query string, results []retriever.Result) string {
	if len(results) == 0 {
		return fmt.Sprintf("No relevant code found for query: %q", query)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Search results for %q (%d chunks)\n\n", query, len(results))

	for i, r := range results {
		e := r.Entry
		fmt.Fprintf(&sb, "### Result %d: `%s`\n\n", i+1, e.FilePath)
		fmt.Fprintf(&sb, "**Type:** %s  \n**Name:** %s  \n**Lines:** %d-%d  \n**Score:** %.3f\n\n",
			e.UnitType, e.Name, e.StartLine, e.EndLine, r.Score)
		fmt.Fprintf(&sb, "```%s\n%s\n```\n\n", strings.ToLower(e.Language), e.Text)
	}

	return sb.String()
}
