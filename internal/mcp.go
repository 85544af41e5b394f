package internal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// MCPServer wraps the MCP server and application dependencies
type MCPServer struct {
	newApp    AppFactory
	mcpServer *server.MCPServer
}

// NewMCPServer creates a new MCP server instance; tool calls run concurrently, so each gets its own App from newApp
func NewMCPServer(newApp AppFactory, version string) *MCPServer {
	mcpServer := server.NewMCPServer(
		"ytrag-server",
		version,
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		newApp:    newApp,
		mcpServer: mcpServer,
	}

	s.registerTools()

	return s
}

// registerTools registers all available MCP tools
func (s *MCPServer) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("list_sessions",
		mcp.WithDescription("List saved video Q&A sessions, newest first. Session names are used by the other session tools."),
	), s.handleListSessions)

	s.mcpServer.AddTool(mcp.NewTool("get_session_summary",
		mcp.WithDescription("Return the stored summary of a session, with the URLs of the videos it contains."),
		mcp.WithString("session",
			mcp.Description("Session name as returned by list_sessions"),
			mcp.Required(),
		),
	), s.handleGetSessionSummary)

	s.mcpServer.AddTool(mcp.NewTool("ask_session",
		mcp.WithDescription("Answer a question from the indexed transcript of a session. Answers are grounded in retrieved transcript passages."),
		mcp.WithString("session",
			mcp.Description("Session name as returned by list_sessions"),
			mcp.Required(),
		),
		mcp.WithString("question",
			mcp.Description("Question about the video content"),
			mcp.Required(),
		),
		mcp.WithBoolean("record",
			mcp.Description("Append the question and answer to the session's chat history (default false)"),
		),
	), s.handleAskSession)

	// free: existing captions only
	s.mcpServer.AddTool(mcp.NewTool("get_video_transcript",
		mcp.WithDescription("Get existing YouTube subtitles as cleaned text (FREE). Fails if the video has no subtitles; use process_video to transcribe instead."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL"),
			mcp.Required(),
		),
	), s.handleGetTranscript)

	// paid: may transcribe, always summarizes and embeds
	s.mcpServer.AddTool(mcp.NewTool("process_video",
		mcp.WithDescription("Fetch, summarize and index a YouTube video into a new session (PAID: uses OpenAI for the summary and embeddings, and Whisper when transcription is allowed and the video has no subtitles). Always ask the user for confirmation before calling this tool."),
		mcp.WithString("url",
			mcp.Description("YouTube video URL"),
			mcp.Required(),
		),
		mcp.WithBoolean("allow_transcription",
			mcp.Description("Transcribe the audio with Whisper when subtitles are missing (default false)"),
		),
		mcp.WithString("language",
			mcp.Description("Summary language: en or zh (default from config)"),
		),
	), s.handleProcessVideo)
}

func (s *MCPServer) handleListSessions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mcpLog().Info("list_sessions")

	sessions, err := s.newApp("").sessions.List()
	if err != nil {
		mcpLog().Error("list_sessions failed", zap.Error(err))
		return mcp.NewToolResultErrorFromErr("failed to list sessions", err), nil
	}
	if len(sessions) == 0 {
		return mcp.NewToolResultText("No saved sessions."), nil
	}

	var buf strings.Builder
	for _, info := range sessions {
		fmt.Fprintf(&buf, "%s | created %s | %d video(s) | %s | %s\n",
			info.Name, info.CreatedLabel(), info.VideoCount, info.ContentType, info.VideoURL)
	}
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *MCPServer) handleGetSessionSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("session")
	if err != nil {
		return mcp.NewToolResultError("session parameter is required and must be a string"), nil
	}
	mcpLog().Info("get_session_summary", zap.String("session", name))

	session, err := s.newApp("").sessions.Load(ctx, name)
	if err != nil {
		mcpLog().Error("get_session_summary failed", zap.String("session", name), zap.Error(err))
		return mcp.NewToolResultErrorFromErr("failed to load session", err), nil
	}
	defer session.Close()

	var buf strings.Builder
	fmt.Fprintf(&buf, "Session: %s\n", session.Name)
	fmt.Fprintf(&buf, "Videos: %s\n\n", strings.Join(session.VideoURLs(), ", "))
	buf.WriteString(session.Summary())
	return mcp.NewToolResultText(buf.String()), nil
}

func (s *MCPServer) handleAskSession(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("session")
	if err != nil {
		return mcp.NewToolResultError("session parameter is required and must be a string"), nil
	}
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError("question parameter is required and must be a string"), nil
	}
	record := request.GetBool("record", false)
	mcpLog().Info("ask_session", zap.String("session", name), zap.Bool("record", record))
	mcpLog().Debug("ask_session question", zap.String("question", question))

	app := s.newApp("")
	session, err := app.LoadSession(ctx, name)
	if err != nil {
		mcpLog().Error("ask_session load failed", zap.String("session", name), zap.Error(err))
		return mcp.NewToolResultErrorFromErr("failed to load session", err), nil
	}
	defer session.Close()

	var answer *Answer
	if record {
		answer, err = app.AskAndRecord(ctx, session, question)
	} else {
		answer, err = app.Ask(ctx, session, question, session.History())
	}
	if err != nil {
		mcpLog().Error("ask_session failed", zap.String("session", name), zap.Error(err))
		return mcp.NewToolResultErrorFromErr("failed to answer question", err), nil
	}
	return mcp.NewToolResultText(answer.Text), nil
}

func (s *MCPServer) handleGetTranscript(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required and must be a string"), nil
	}
	mcpLog().Info("get_video_transcript", zap.String("url", url))

	doc, err := s.newApp("").GetVideoContent(ctx, url, ContentOptions{AllowTranscription: false})
	if err != nil {
		mcpLog().Error("get_video_transcript failed", zap.String("url", url), zap.Error(err))
		if errors.Is(err, ErrTranscriptionNotAllowed) {
			return mcp.NewToolResultErrorFromErr("no subtitles available - consider process_video with allow_transcription (paid)", err), nil
		}
		return mcp.NewToolResultErrorFromErr("failed to fetch subtitles", err), nil
	}
	return mcp.NewToolResultText(doc.Content), nil
}

func (s *MCPServer) handleProcessVideo(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	url, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url parameter is required and must be a string"), nil
	}
	if !ValidateYouTubeURL(url) {
		return mcp.NewToolResultError("url must be a YouTube video URL"), nil
	}
	allow := request.GetBool("allow_transcription", false)
	app := s.newApp("")
	if lang := request.GetString("language", ""); lang != "" {
		app.SetLanguage(NormalizeLanguage(lang))
	}
	mcpLog().Info("process_video", zap.String("url", url), zap.Bool("allow_transcription", allow), zap.String("language", string(app.Language())))

	result, err := app.ProcessVideo(ctx, url, ProcessOptions{
		ContentOptions: ContentOptions{AllowTranscription: allow},
	})
	if err != nil {
		mcpLog().Error("process_video failed", zap.String("url", url), zap.Error(err))
		return mcp.NewToolResultErrorFromErr("failed to process video", err), nil
	}
	defer result.Session.Close()

	text := fmt.Sprintf("Session: %s\nSource: %s\n\n%s", result.Session.Name, result.Session.Document().Metadata.Type, result.Session.Summary())
	return mcp.NewToolResultText(text), nil
}

// Start starts the MCP server using the specified transport
func (s *MCPServer) Start(ctx context.Context, transport string, port int) error {
	mcpLog().Info("starting MCP server", zap.String("transport", transport))
	if transport == "http" {
		httpServer := server.NewStreamableHTTPServer(s.mcpServer)
		addr := fmt.Sprintf(":%d", port)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		go func() {
			<-ctx.Done()
			_ = httpServer.Shutdown(context.Background())
		}()
		return httpServer.Start(addr)
	}

	return server.ServeStdio(s.mcpServer)
}
