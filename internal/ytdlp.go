package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lrstanley/go-ytdlp"
)

// SubtitleLanguages are requested from yt-dlp in priority order
const SubtitleLanguages = "zh-Hans,zh,zh-CN,zh-TW,en,ja,ko,es,fr,de,pt,ru,ar,hi,it,nl,sv,no,da,fi,pl,tr,th,vi"

// VideoSource fetches video information and raw media from a hosting service
type VideoSource interface {
	Metadata(ctx context.Context, videoURL string) (*VideoMetadata, error)
	Subtitles(ctx context.Context, videoURL string) (string, error)
	Audio(ctx context.Context, videoURL string) (string, error)
	PlaylistEntries(ctx context.Context, playlistURL string) (*PlaylistInfo, error)
}

// VideoMetadata contains YouTube video information
type VideoMetadata struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Channel     string         `json:"channel"`
	Uploader    string         `json:"uploader"`
	Duration    float64        `json:"duration"`
	Categories  []string       `json:"categories"`
	Tags        []string       `json:"tags"`
	Chapters    []VideoChapter `json:"chapters"`
	HasCaptions bool           `json:"has_captions"`
}

// VideoChapter represents a video chapter marker
type VideoChapter struct {
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
	Title     string  `json:"title"`
}

// PlaylistEntry is one video of a playlist
type PlaylistEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// PlaylistInfo holds a playlist title and its usable entries
type PlaylistInfo struct {
	ID      string          `json:"id"`
	Title   string          `json:"title"`
	Entries []PlaylistEntry `json:"entries"`
}

// YouTube implements VideoSource on top of yt-dlp
type YouTube struct {
	cacheDir string
	verbose  bool
}

// NewYouTube creates a new YouTube downloader writing audio into cacheDir
func NewYouTube(cacheDir string, verbose bool) *YouTube {
	return &YouTube{
		cacheDir: cacheDir,
		verbose:  verbose,
	}
}

// Metadata fetches video details using go-ytdlp
func (yt *YouTube) Metadata(ctx context.Context, youtubeURL string) (*VideoMetadata, error) {
	if yt.verbose {
		fmt.Println("Extracting video metadata...")
	}

	dl := ytdlp.New().
		DumpSingleJSON().
		NoPlaylist().
		SkipDownload()

	result, err := dl.Run(ctx, youtubeURL)
	if err != nil {
		if yt.verbose && result != nil {
			fmt.Printf("Stderr: %s\n", result.Stderr)
		}
		return nil, fmt.Errorf("extracting video metadata: %w", err)
	}

	metadata, err := parseMetadataJSON([]byte(result.Stdout))
	if err != nil {
		return nil, err
	}

	if yt.verbose {
		fmt.Printf("Title: %s\n", metadata.Title)
		fmt.Printf("Channel: %s\n", metadata.Channel)
		fmt.Printf("Duration: %.2f seconds\n", metadata.Duration)
	}

	return metadata, nil
}

// parseMetadataJSON decodes a yt-dlp single JSON dump including caption availability
func parseMetadataJSON(data []byte) (*VideoMetadata, error) {
	var metadata VideoMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("parsing video metadata: %w", err)
	}

	var rawData map[string]any
	if err := json.Unmarshal(data, &rawData); err != nil {
		return nil, fmt.Errorf("parsing video metadata: %w", err)
	}
	metadata.HasCaptions = extractSubtitleInfo(rawData)

	return &metadata, nil
}

// Subtitles downloads the first available subtitle track and returns its raw text
func (yt *YouTube) Subtitles(ctx context.Context, youtubeURL string) (string, error) {
	if yt.verbose {
		fmt.Println("Downloading subtitles...")
	}

	tmpDir, err := os.MkdirTemp("", "ytrag-subs-*")
	if err != nil {
		return "", fmt.Errorf("creating subtitle directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	dl := ytdlp.New().
		WriteSubs().
		WriteAutoSubs().
		SubLangs(SubtitleLanguages).
		SubFormat("vtt/srt/best").
		SkipDownload().
		NoPlaylist().
		Output(filepath.Join(tmpDir, "subtitle.%(ext)s"))

	// Some languages may fail while others succeed, so files are checked either way
	result, runErr := dl.Run(ctx, youtubeURL)
	if runErr != nil && ctx.Err() != nil {
		return "", ctx.Err()
	}
	if yt.verbose && result != nil && result.Stderr != "" {
		fmt.Printf("yt-dlp stderr: %s\n", truncateRunes(result.Stderr, 200))
	}

	subtitleFile, err := findSubtitleFile(tmpDir)
	if err != nil {
		return "", err
	}
	if subtitleFile == "" {
		if runErr != nil {
			return "", fmt.Errorf("%w: %v", ErrDownloadFailed, runErr)
		}
		return "", ErrNoSubtitles
	}

	if yt.verbose {
		fmt.Printf("Found subtitle file: %s\n", filepath.Base(subtitleFile))
	}

	content, err := os.ReadFile(subtitleFile)
	if err != nil {
		return "", fmt.Errorf("reading subtitle file: %w", err)
	}
	return string(content), nil
}

// findSubtitleFile returns the first .vtt or .srt file in dir, or "" if none
func findSubtitleFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("listing subtitle directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".vtt") || strings.HasSuffix(name, ".srt") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "", nil
	}

	// Follow the requested language priority
	sort.SliceStable(names, func(i, j int) bool {
		return subtitleRank(names[i]) < subtitleRank(names[j])
	})
	return filepath.Join(dir, names[0]), nil
}

// subtitleRank orders subtitle files such as subtitle.en.vtt by language priority
func subtitleRank(name string) int {
	parts := strings.Split(name, ".")
	if len(parts) < 3 {
		return len(parts)
	}
	lang := parts[len(parts)-2]
	for i, l := range strings.Split(SubtitleLanguages, ",") {
		if l == lang {
			return i
		}
	}
	return 1000
}

// Audio gets mp3 audio from a YouTube video
func (yt *YouTube) Audio(ctx context.Context, youtubeURL string) (string, error) {
	if yt.verbose {
		fmt.Println("Downloading audio...")
	}

	videoID, err := getVideoID(youtubeURL)
	if err != nil {
		return "", fmt.Errorf("extracting video ID: %w", err)
	}

	if err := EnsureDirs(yt.cacheDir); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	outputPath := filepath.Join(yt.cacheDir, "%(id)s.%(ext)s")

	dl := ytdlp.New().
		Format("bestaudio[ext=m4a]/bestaudio/best").
		ExtractAudio().
		AudioFormat("mp3").
		AudioQuality("10"). // 0 is best, 10 is smallest
		NoPlaylist().
		NoProgress().
		Output(outputPath)

	result, err := dl.Run(ctx, youtubeURL)
	if err != nil {
		stderr := ""
		if result != nil {
			stderr = truncateRunes(strings.TrimSpace(result.Stderr), 500)
		}
		return "", fmt.Errorf("%w: yt-dlp audio download: %v\nOutput: %s", ErrDownloadFailed, err, stderr)
	}

	outputFile := filepath.Join(yt.cacheDir, videoID+".mp3")
	if !FileExists(outputFile) {
		return "", fmt.Errorf("%w: audio file %s not found after download", ErrDownloadFailed, outputFile)
	}

	if yt.verbose {
		fmt.Println("Audio download completed successfully")
	}

	return outputFile, nil
}

// PlaylistEntries lists the videos of a playlist without downloading them
func (yt *YouTube) PlaylistEntries(ctx context.Context, playlistURL string) (*PlaylistInfo, error) {
	if yt.verbose {
		fmt.Println("Listing playlist entries...")
	}

	dl := ytdlp.New().
		FlatPlaylist().
		DumpSingleJSON().
		SkipDownload()

	result, err := dl.Run(ctx, playlistURL)
	if err != nil {
		return nil, fmt.Errorf("extracting playlist entries: %w", err)
	}

	return parsePlaylistJSON([]byte(result.Stdout))
}

type rawPlaylistEntry struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	WebpageURL string `json:"webpage_url"`
}

type rawPlaylist struct {
	ID         string             `json:"id"`
	Title      string             `json:"title"`
	WebpageURL string             `json:"webpage_url"`
	Entries    []rawPlaylistEntry `json:"entries"`
}

// parsePlaylistJSON normalizes a flat-playlist JSON dump into usable entries
func parsePlaylistJSON(data []byte) (*PlaylistInfo, error) {
	var raw rawPlaylist
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing playlist JSON: %w", err)
	}

	info := &PlaylistInfo{ID: raw.ID, Title: raw.Title}

	// A single video URL yields itself
	if raw.Entries == nil && raw.WebpageURL != "" {
		title := raw.Title
		if title == "" {
			title = "(untitled)"
		}
		info.Entries = append(info.Entries, PlaylistEntry{ID: raw.ID, Title: title, URL: raw.WebpageURL})
		return info, nil
	}

	for _, entry := range raw.Entries {
		entryURL := entry.URL
		if entryURL == "" {
			entryURL = entry.WebpageURL
		}
		if entryURL == "" {
			continue
		}
		if !strings.HasPrefix(entryURL, "http") {
			entryURL = "https://www.youtube.com/watch?v=" + entryURL
		}

		title := strings.TrimSpace(entry.Title)
		if title == "" {
			title = "(untitled)"
		}

		info.Entries = append(info.Entries, PlaylistEntry{ID: entry.ID, Title: title, URL: entryURL})
	}

	if len(info.Entries) == 0 {
		return nil, errors.New("no playable entries found in playlist")
	}

	return info, nil
}

// extractSubtitleInfo extracts subtitle availability from yt-dlp JSON output
func extractSubtitleInfo(rawData map[string]any) bool {
	if subtitles, ok := rawData["subtitles"].(map[string]any); ok && len(subtitles) > 0 {
		return true
	}
	if autoCaptions, ok := rawData["automatic_captions"].(map[string]any); ok && len(autoCaptions) > 0 {
		return true
	}
	return false
}

// InstallYtDlp makes sure a yt-dlp binary is available, downloading it when missing
func InstallYtDlp(ctx context.Context) {
	ytdlp.MustInstall(ctx, nil)
}
