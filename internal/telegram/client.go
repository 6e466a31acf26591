package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Telegram rejects messages longer than 4096 characters; long model replies
// are split into consecutive chunks.
const messageCharLimit = 4096

// Client is a minimal Telegram Bot API client.
type Client struct {
	apiBase     string
	fileBase    string
	httpClient  *http.Client
	downloadCli *http.Client
}

// NewClient creates a Telegram client for the given bot API base URL
// (e.g. "https://api.telegram.org/bot<token>"). The request timeout must
// exceed the long-poll timeout passed to GetUpdates.
func NewClient(apiBase string, requestTimeout time.Duration) *Client {
	apiBase = strings.TrimRight(apiBase, "/")
	return &Client{
		apiBase:  apiBase,
		fileBase: fileBaseFor(apiBase),
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
		downloadCli: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// fileBaseFor derives the file-download base from the bot API base:
// https://api.telegram.org/bot<token> serves files from
// https://api.telegram.org/file/bot<token>.
func fileBaseFor(apiBase string) string {
	if i := strings.LastIndex(apiBase, "/bot"); i >= 0 {
		return apiBase[:i] + "/file" + apiBase[i:]
	}
	return apiBase + "/file"
}

// Response is the generic Telegram API response wrapper.
type Response struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description,omitempty"`
}

type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

type Message struct {
	MessageID int64       `json:"message_id"`
	From      *User       `json:"from,omitempty"`
	Chat      Chat        `json:"chat"`
	Date      int64       `json:"date"`
	Text      string      `json:"text,omitempty"`
	Caption   string      `json:"caption,omitempty"`
	Photo     []PhotoSize `json:"photo,omitempty"`
	Voice     *Voice      `json:"voice,omitempty"`
}

type User struct {
	ID        int64  `json:"id"`
	IsBot     bool   `json:"is_bot"`
	FirstName string `json:"first_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type,omitempty"`
}

type PhotoSize struct {
	FileID   string `json:"file_id"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	FileSize int64  `json:"file_size,omitempty"`
}

type Voice struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
	MIMEType string `json:"mime_type,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

type File struct {
	FileID   string `json:"file_id"`
	FilePath string `json:"file_path,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
}

// GetUpdates long-polls the getUpdates API.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout int) ([]Update, error) {
	params := url.Values{}
	params.Set("offset", strconv.FormatInt(offset, 10))
	params.Set("timeout", strconv.Itoa(timeout))
	params.Set("allowed_updates", `["message"]`)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.apiBase+"/getUpdates?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create getUpdates request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram getUpdates request failed: %w", err)
	}
	defer resp.Body.Close()

	tgResp, err := decodeResponse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}

	var updates []Update
	if err := json.Unmarshal(tgResp.Result, &updates); err != nil {
		return nil, fmt.Errorf("failed to parse getUpdates result: %w", err)
	}
	return updates, nil
}

// SendMessage sends a text message to the given chat, splitting replies
// that exceed the API length limit.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	for _, chunk := range splitMessage(text, messageCharLimit) {
		payload := fmt.Sprintf(`{"chat_id":%d,"text":%s}`, chatID, jsonString(chunk))
		if err := c.postJSON(ctx, "/sendMessage", payload); err != nil {
			return err
		}
	}
	return nil
}

// SendChatAction shows a typing or recording indicator while the reply is
// being prepared.
func (c *Client) SendChatAction(ctx context.Context, chatID int64, action string) error {
	payload := fmt.Sprintf(`{"chat_id":%d,"action":%s}`, chatID, jsonString(action))
	return c.postJSON(ctx, "/sendChatAction", payload)
}

// SendVoice uploads an OGG/MP3 voice reply via multipart form data.
func (c *Client) SendVoice(ctx context.Context, chatID int64, audio []byte, filename string) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("chat_id", strconv.FormatInt(chatID, 10)); err != nil {
		return fmt.Errorf("write chat_id field: %w", err)
	}
	part, err := w.CreateFormFile("voice", filename)
	if err != nil {
		return fmt.Errorf("create voice part: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return fmt.Errorf("write voice payload: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiBase+"/sendVoice", &body)
	if err != nil {
		return fmt.Errorf("create sendVoice request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram sendVoice request failed: %w", err)
	}
	defer resp.Body.Close()

	if _, err := decodeResponse(resp.Body); err != nil {
		return fmt.Errorf("sendVoice: %w", err)
	}
	return nil
}

// GetFile resolves a file_id into a downloadable file path.
func (c *Client) GetFile(ctx context.Context, fileID string) (File, error) {
	payload := fmt.Sprintf(`{"file_id":%s}`, jsonString(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+"/getFile", strings.NewReader(payload))
	if err != nil {
		return File{}, fmt.Errorf("create getFile request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return File{}, fmt.Errorf("telegram getFile request failed: %w", err)
	}
	defer resp.Body.Close()

	tgResp, err := decodeResponse(resp.Body)
	if err != nil {
		return File{}, fmt.Errorf("getFile: %w", err)
	}

	var file File
	if err := json.Unmarshal(tgResp.Result, &file); err != nil {
		return File{}, fmt.Errorf("failed to parse getFile result: %w", err)
	}
	if file.FilePath == "" {
		return File{}, fmt.Errorf("getFile: empty file_path for %s", fileID)
	}
	return file, nil
}

// Download fetches the raw bytes of a file previously resolved via GetFile.
func (c *Client) Download(ctx context.Context, filePath string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.fileBase+"/"+strings.TrimLeft(filePath, "/"), nil)
	if err != nil {
		return nil, fmt.Errorf("create download request: %w", err)
	}

	resp, err := c.downloadCli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram file download failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("telegram file download status %d", resp.StatusCode)
	}
	// 20 MB guards against oversized payloads; bot files top out below that.
	return io.ReadAll(io.LimitReader(resp.Body, 20<<20))
}

// DownloadFile combines GetFile and Download for one file_id.
func (c *Client) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	file, err := c.GetFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	return c.Download(ctx, file.FilePath)
}

func (c *Client) postJSON(ctx context.Context, method, payload string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBase+method, strings.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if _, err := decodeResponse(resp.Body); err != nil {
		return fmt.Errorf("%s: %w", strings.TrimPrefix(method, "/"), err)
	}
	return nil
}

func decodeResponse(body io.Reader) (Response, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	var tgResp Response
	if err := json.Unmarshal(raw, &tgResp); err != nil {
		return Response{}, fmt.Errorf("parse response: %w", err)
	}
	if !tgResp.OK {
		desc := tgResp.Description
		if desc == "" {
			desc = "request rejected"
		}
		return Response{}, fmt.Errorf("api error: %s", desc)
	}
	return tgResp, nil
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// newline boundaries so paragraphs stay intact.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
		for len(runes) > 0 && runes[0] == '\n' {
			runes = runes[1:]
		}
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
