package internal

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ChatState is the step a web conversation is at
type ChatState string

const (
	StateAPIKey         ChatState = "api_key"
	StateLanguageChoice ChatState = "language_choice"
	StateActionChoice   ChatState = "action_choice"
	StateNewVideo       ChatState = "new_video"
	StateSessionSelect  ChatState = "session_select"
	StateReady          ChatState = "ready"
)

const (
	systemSpeaker      = "System"
	maxSelectSessions  = 5
	maxListedSessions  = 10
	summaryPreviewSize = 400
)

var (
	rule = strings.Repeat("-", 50)

	welcomeText = "Welcome to the YouTube RAG Q&A system! / 欢迎使用YouTube RAG问答系统！\n\n" +
		"Please enter your OpenAI API key (format: sk-...)\n请输入您的OpenAI API密钥 (格式: sk-...)"

	languagePrompt = "Please choose the summary language / 请选择摘要语言:\n" +
		"1. 简体中文 / Simplified Chinese\n" +
		"2. English / 英文\n\n" +
		"Enter a number or language name / 请输入编号或语言名称:"

	actionPrompt = "Please choose an action / 请选择操作:\n" +
		"1. Analyze a new video / 分析新视频\n" +
		"2. Load a saved session / 加载已保存的会话\n\n" +
		"Please enter 1 or 2 / 请输入 1 或 2:"

	videoPrompt = "Please enter a YouTube video URL / 请输入YouTube视频链接:\n\n" +
		"Supported formats / 支持格式:\n" +
		"- https://www.youtube.com/watch?v=VIDEO_ID\n" +
		"- https://youtu.be/VIDEO_ID"

	commandHelp = "Special commands / 特殊命令:\n" +
		"- 'sessions': view all sessions / 查看所有会话\n" +
		"- 'save as NAME': save the session under a new name / 另存会话\n" +
		"- 'save summary': save the summary to a TXT file / 保存摘要到TXT\n" +
		"- 'save subtitles': save subtitles or original text / 保存字幕/原文到TXT\n" +
		"- 'add video URL': append another video / 继续追加视频\n" +
		"- 'reset': start over / 重新开始"
)

// AppFactory builds an App for one conversation or tool call; apiKey is empty when the configured key applies
type AppFactory func(apiKey string) *App

// Conversation is one web chat, driven through a fixed sequence of states
type Conversation struct {
	mu sync.Mutex

	newApp        AppFactory
	keyConfigured bool

	state    ChatState
	history  []ChatTurn
	language Language
	app      *App
	session  *Session
	listed   []SessionInfo
}

// NewConversation starts a conversation; the API key step is skipped when a key is configured
func NewConversation(newApp AppFactory, keyConfigured bool) *Conversation {
	c := &Conversation{newApp: newApp, keyConfigured: keyConfigured}
	c.reset()
	return c
}

// State returns the current step
func (c *Conversation) State() ChatState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns a copy of the transcript
func (c *Conversation) History() []ChatTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]ChatTurn(nil), c.history...)
}

// Reset returns to the first step with a fresh transcript
func (c *Conversation) Reset() []ChatTurn {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reset()
	return append([]ChatTurn(nil), c.history...)
}

// Close releases the loaded session
func (c *Conversation) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeSession()
}

func (c *Conversation) closeSession() {
	if c.session != nil {
		_ = c.session.Close()
		c.session = nil
	}
}

func (c *Conversation) reset() {
	c.closeSession()
	c.app = nil
	c.listed = nil
	c.language = LanguageChinese

	if c.keyConfigured {
		c.app = c.newApp("")
		c.state = StateLanguageChoice
		c.history = []ChatTurn{{Question: systemSpeaker, Answer: "Welcome to the YouTube RAG Q&A system! / 欢迎使用YouTube RAG问答系统！\n\n" + languagePrompt}}
		return
	}
	c.state = StateAPIKey
	c.history = []ChatTurn{{Question: systemSpeaker, Answer: welcomeText}}
}

// Respond handles one user message and returns the updated transcript
func (c *Conversation) Respond(ctx context.Context, message string) []ChatTurn {
	c.mu.Lock()
	defer c.mu.Unlock()

	message = strings.TrimSpace(message)
	if message == "" {
		return append([]ChatTurn(nil), c.history...)
	}

	switch strings.ToLower(message) {
	case "reset", "重置":
		c.reset()
		return append([]ChatTurn(nil), c.history...)
	case "exit", "quit", "退出":
		c.reply(message, "Goodbye! / 再见！")
		return append([]ChatTurn(nil), c.history...)
	}

	switch c.state {
	case StateAPIKey:
		c.handleAPIKey(message)
	case StateLanguageChoice:
		c.handleLanguageChoice(message)
	case StateActionChoice:
		c.handleActionChoice(message)
	case StateNewVideo:
		c.handleNewVideo(ctx, message)
	case StateSessionSelect:
		c.handleSessionSelect(ctx, message)
	case StateReady:
		c.handleReady(ctx, message)
	default:
		c.reply(message, "System error, type 'reset' to restart / 系统错误，请输入 'reset' 重新开始")
	}
	return append([]ChatTurn(nil), c.history...)
}

func (c *Conversation) reply(question, answer string) {
	c.history = append(c.history, ChatTurn{Question: question, Answer: answer})
}

func (c *Conversation) handleAPIKey(message string) {
	if !ValidateAPIKey(message) {
		c.reply(message, "Invalid API key format! / API密钥格式不正确！\nPlease re-enter (format: sk-...) / 请重新输入 (格式: sk-...)")
		return
	}

	c.app = c.newApp(message)
	c.state = StateLanguageChoice
	c.reply(message, "API key set successfully! / API密钥设置成功！\n\n"+languagePrompt)
}

func (c *Conversation) handleLanguageChoice(message string) {
	lang, ok := ParseLanguageChoice(message)
	if !ok {
		c.reply(message, "Unrecognized language option / 无法识别的语言选项\nPlease enter 1 (Chinese) or 2 (English) / 请输入 1 (中文) 或 2 (English)")
		return
	}

	c.language = lang
	c.app.SetLanguage(lang)
	c.state = StateActionChoice
	c.reply(message, fmt.Sprintf("Language set to %s / 语言已设置为 %s\n\n%s", lang.Label(), lang.Label(), actionPrompt))
}

func (c *Conversation) handleActionChoice(message string) {
	switch message {
	case "1":
		c.state = StateNewVideo
		c.reply(message, videoPrompt)
	case "2":
		sessions, err := c.app.Sessions().List()
		if err != nil {
			c.state = StateNewVideo
			c.reply(message, fmt.Sprintf("Cannot list sessions / 无法列出会话: %v\n\n%s", err, videoPrompt))
			return
		}
		if len(sessions) == 0 {
			c.state = StateNewVideo
			c.reply(message, "No saved sessions found / 没有找到已保存的会话\n\n"+videoPrompt)
			return
		}

		c.listed = sessions
		shown := min(len(sessions), maxSelectSessions)
		var sb strings.Builder
		sb.WriteString("Available sessions / 可用会话:\n\n")
		for i, info := range sessions[:shown] {
			fmt.Fprintf(&sb, "%d. %s\n   %s\n   %s\n\n", i+1, info.Name, info.CreatedLabel(), truncateRunes(info.VideoURL, 60))
		}
		fmt.Fprintf(&sb, "Please enter a session number (1-%d) or session name / 请输入会话编号 (1-%d) 或会话名称:", shown, shown)

		c.state = StateSessionSelect
		c.reply(message, sb.String())
	default:
		c.reply(message, "Please enter 1 or 2 / 请输入 1 或 2\n1. Analyze a new video / 分析新视频\n2. Load a saved session / 加载已保存的会话")
	}
}

func (c *Conversation) handleNewVideo(ctx context.Context, message string) {
	if !ValidateYouTubeURL(message) {
		c.reply(message, "Invalid YouTube URL format! / YouTube链接格式不正确！\nPlease enter a valid YouTube URL / 请输入有效的YouTube链接:")
		return
	}

	c.reply(message, "Processing video... / 正在处理视频...\n\nThis may take a few minutes, please wait / 这可能需要几分钟时间，请稍等")

	result, err := c.app.ProcessVideo(ctx, message, ProcessOptions{
		ContentOptions: ContentOptions{AllowTranscription: c.app.Config().AllowTranscription},
	})
	if err != nil {
		webLog().Error("processing video failed", zap.String("url", message), zap.Error(err))
		c.reply(systemSpeaker, fmt.Sprintf("Video processing failed / 视频处理失败: %v\n\nPlease re-enter a YouTube URL / 请重新输入YouTube链接:", err))
		return
	}
	webLog().Info("processed video", zap.String("url", message), zap.String("session", result.Session.Name))

	c.closeSession()
	c.session = result.Session
	c.state = StateReady
	c.reply(systemSpeaker, fmt.Sprintf("Video processing completed! / 视频处理完成！\n\n"+
		"**Video Summary / 视频摘要:**\n%s\n%s\n%s\n\n"+
		"**Session saved as / 会话已保存为:** %s\n"+
		"**Storage Path / 存储路径:** %s\n"+
		"**Summary Language / 摘要语言:** %s\n\n"+
		"Now you can ask questions! / 现在您可以提问了！\n\n%s",
		rule, result.Session.Summary(), rule,
		result.Session.Name, result.Session.Dir, c.language.Label(), commandHelp))
}

func (c *Conversation) handleSessionSelect(ctx context.Context, message string) {
	var name string
	if n, err := strconv.Atoi(message); err == nil {
		if n < 1 || n > len(c.listed) {
			c.reply(message, fmt.Sprintf("Invalid number! / 无效编号！\nPlease enter 1-%d / 请输入 1-%d", len(c.listed), len(c.listed)))
			return
		}
		name = c.listed[n-1].Name
	} else {
		found := false
		for _, info := range c.listed {
			if info.Name == message {
				found = true
				break
			}
		}
		if !found {
			c.reply(message, "Session name not found! / 会话名称未找到！")
			return
		}
		name = message
	}

	session, err := c.app.LoadSession(ctx, name)
	if err != nil {
		webLog().Error("loading session failed", zap.String("session", name), zap.Error(err))
		c.reply(message, fmt.Sprintf("Failed to load session / 加载会话失败: %v\nPlease choose again / 请重新选择:", err))
		return
	}

	c.closeSession()
	c.session = session
	c.language = session.Language()
	c.state = StateReady

	c.history = append(c.history, session.Metadata.ChatHistory...)
	c.reply(message, fmt.Sprintf("Session loaded successfully! / 会话加载成功！\n\n"+
		"**Session / 会话:** %s\n"+
		"**Summary / 摘要:**\n%s\n%s\n%s\n\n"+
		"**Summary Language / 摘要语言:** %s\n"+
		"**Storage Path / 存储路径:** %s\n\n"+
		"You can continue asking questions! / 您可以继续提问！\n\n%s",
		name, rule, session.Summary(), rule, c.language.Label(), session.Dir, commandHelp))
}

func (c *Conversation) handleReady(ctx context.Context, message string) {
	lower := strings.ToLower(message)

	switch {
	case lower == "sessions":
		c.replySessions(message)
	case strings.HasPrefix(lower, "save as "):
		c.saveAs(ctx, message, strings.TrimSpace(message[len("save as "):]))
	case lower == "save as":
		c.reply(message, "Please provide a session name / 请提供会话名称\nFormat / 格式: save as NAME")
	case lower == "save summary" || message == "保存摘要":
		c.saveSummary(message)
	case lower == "save subtitles" || lower == "save original" || message == "保存字幕" || message == "保存原文":
		c.saveOriginal(message)
	case strings.HasPrefix(lower, "add video"):
		c.addVideo(ctx, message, strings.TrimSpace(message[len("add video"):]))
	case strings.HasPrefix(message, "添加视频"):
		c.addVideo(ctx, message, strings.TrimSpace(strings.TrimPrefix(message, "添加视频")))
	default:
		c.ask(ctx, message)
	}
}

func (c *Conversation) replySessions(message string) {
	sessions, err := c.app.Sessions().List()
	if err != nil {
		c.reply(message, fmt.Sprintf("Failed to list sessions / 列出会话失败: %v", err))
		return
	}
	if len(sessions) == 0 {
		c.reply(message, "No saved sessions / 没有已保存的会话")
		return
	}

	var sb strings.Builder
	sb.WriteString("**Saved Sessions / 已保存的会话:**\n\n")
	for _, info := range sessions[:min(len(sessions), maxListedSessions)] {
		fmt.Fprintf(&sb, "- **%s**\n  %s\n  %s\n\n", info.Name, info.CreatedLabel(), truncateRunes(info.VideoURL, 50))
	}
	c.reply(message, strings.TrimRight(sb.String(), "\n"))
}

func (c *Conversation) saveAs(ctx context.Context, message, name string) {
	if name == "" {
		c.reply(message, "Please provide a session name / 请提供会话名称\nFormat / 格式: save as NAME")
		return
	}
	if c.session == nil {
		c.reply(message, "No session to save / 没有可保存的会话")
		return
	}

	if err := c.app.Sessions().Copy(ctx, c.session.Name, name); err != nil {
		c.reply(message, fmt.Sprintf("Save failed / 保存失败: %v", err))
		return
	}
	c.reply(message, fmt.Sprintf("Session saved as '%s' / 会话已保存为 '%s'\nStorage Path / 存储路径: %s\nSummary Language / 摘要语言: %s",
		name, name, c.app.Sessions().Path(name), c.language.Label()))
}

func (c *Conversation) saveSummary(message string) {
	if c.session == nil {
		c.reply(message, "No active session to save summary / 当前没有会话可保存摘要")
		return
	}

	summary := c.session.Summary()
	if summary == "" {
		var parts []string
		for _, s := range c.session.Metadata.Summaries {
			if s.Summary != "" {
				parts = append(parts, s.Summary)
			}
		}
		summary = strings.Join(parts, "\n\n")
	}
	if summary == "" {
		c.reply(message, "Missing summary or document / 未找到摘要或原始文档")
		return
	}

	path, err := SaveSummary(c.app.Config().ExportsDir, summary, c.session.Document())
	if err != nil {
		c.reply(message, fmt.Sprintf("Failed to save summary / 摘要保存失败: %v", err))
		return
	}
	c.reply(message, fmt.Sprintf("Summary saved to %s / 摘要已保存至 %s", path, path))
}

func (c *Conversation) saveOriginal(message string) {
	if c.session == nil {
		c.reply(message, "No active session to save subtitles / 当前没有会话可保存字幕")
		return
	}

	path, err := SaveOriginalText(c.app.Config().ExportsDir, c.session.Document())
	if err != nil {
		c.reply(message, fmt.Sprintf("Failed to save subtitles / 字幕保存失败: %v", err))
		return
	}
	c.reply(message, fmt.Sprintf("Subtitles saved to %s / 字幕/原文已保存至 %s", path, path))
}

func (c *Conversation) addVideo(ctx context.Context, message, url string) {
	if c.session == nil {
		c.reply(message, "No active session to extend / 当前没有活动会话，无法追加视频")
		return
	}
	if url == "" {
		c.reply(message, "Please provide a YouTube URL / 请在命令后提供YouTube链接\nFormat / 格式: add video https://youtu.be/...")
		return
	}
	if !ValidateYouTubeURL(url) {
		c.reply(message, "Invalid YouTube URL / YouTube链接格式不正确")
		return
	}

	result, err := c.app.AddVideoToSession(ctx, c.session, url, ContentOptions{AllowTranscription: c.app.Config().AllowTranscription})
	if err != nil {
		webLog().Error("adding video failed", zap.String("url", url), zap.String("session", c.session.Name), zap.Error(err))
		c.reply(message, fmt.Sprintf("Failed to add video / 追加视频失败: %v", err))
		return
	}
	c.session = result.Session

	preview := strings.TrimSpace(result.NewSummary)
	if len([]rune(preview)) > summaryPreviewSize {
		preview = truncateRunes(preview, summaryPreviewSize) + "..."
	}
	if preview == "" {
		preview = "(No summary text / 暂无摘要文本)"
	}
	c.reply(message, fmt.Sprintf("Video added to knowledge base / 已追加新视频并更新知识库\n\n"+
		"**URL / 链接:** %s\n"+
		"**Videos in session / 当前视频总数:** %d\n\n"+
		"**New Summary Preview / 新增摘要预览:**\n%s",
		url, len(c.session.Documents), preview))
}

func (c *Conversation) ask(ctx context.Context, message string) {
	if c.session == nil {
		c.reply(message, "No active session / 当前没有活动会话")
		return
	}

	answer, err := c.app.AskAndRecord(ctx, c.session, message)
	if err != nil {
		if errors.Is(err, ErrEmptyQuestion) {
			return
		}
		webLog().Error("answering failed", zap.String("session", c.session.Name), zap.Error(err))
		c.reply(message, fmt.Sprintf("Answer generation failed / 回答生成失败: %v", err))
		return
	}
	c.reply(message, answer.Text)
}
