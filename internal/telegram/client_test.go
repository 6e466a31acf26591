package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetUpdatesParsesMessages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getUpdates" {
			http.NotFound(w, r)
			return
		}
		if got := r.URL.Query().Get("offset"); got != "42" {
			t.Errorf("offset = %q, want 42", got)
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":[{"update_id":43,"message":{"message_id":7,"from":{"id":100},"chat":{"id":100},"date":1700000000,"text":"привет"}}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	updates, err := c.GetUpdates(context.Background(), 42, 0)
	if err != nil {
		t.Fatalf("GetUpdates() error = %v", err)
	}
	if len(updates) != 1 {
		t.Fatalf("updates = %d, want 1", len(updates))
	}
	if updates[0].UpdateID != 43 || updates[0].Message.Text != "привет" {
		t.Fatalf("update = %+v", updates[0])
	}
}

func TestGetUpdatesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false,"description":"Unauthorized"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	if _, err := c.GetUpdates(context.Background(), 0, 0); err == nil {
		t.Fatalf("GetUpdates() expected error")
	} else if !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("error = %v, want description surfaced", err)
	}
}

func TestSendMessageSplitsLongText(t *testing.T) {
	var texts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			ChatID int64  `json:"chat_id"`
			Text   string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		texts = append(texts, payload.Text)
		_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	long := strings.Repeat("а", 5000)
	if err := c.SendMessage(context.Background(), 1, long); err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if len(texts) != 2 {
		t.Fatalf("chunks sent = %d, want 2", len(texts))
	}
	total := 0
	for _, chunk := range texts {
		n := len([]rune(chunk))
		if n > messageCharLimit {
			t.Fatalf("chunk length = %d exceeds limit", n)
		}
		total += n
	}
	if total != 5000 {
		t.Fatalf("total runes = %d, want 5000", total)
	}
}

func TestSplitMessagePrefersNewlines(t *testing.T) {
	text := strings.Repeat("в", 3000) + "\n" + strings.Repeat("г", 2000)
	chunks := splitMessage(text, messageCharLimit)
	if len(chunks) != 2 {
		t.Fatalf("chunks = %d, want 2", len(chunks))
	}
	if strings.ContainsRune(chunks[0], 'г') {
		t.Fatalf("first chunk crosses the newline boundary")
	}
}

func TestSendVoiceBuildsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if got := r.FormValue("chat_id"); got != "55" {
			t.Errorf("chat_id = %q, want 55", got)
		}
		f, hdr, err := r.FormFile("voice")
		if err != nil {
			t.Errorf("voice part: %v", err)
		} else {
			defer f.Close()
			if hdr.Filename != "reply.mp3" {
				t.Errorf("filename = %q", hdr.Filename)
			}
			data, _ := io.ReadAll(f)
			if string(data) != "audio-bytes" {
				t.Errorf("voice payload = %q", data)
			}
		}
		_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	if err := c.SendVoice(context.Background(), 55, []byte("audio-bytes"), "reply.mp3"); err != nil {
		t.Fatalf("SendVoice() error = %v", err)
	}
}

func TestDownloadFileResolvesThenFetches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bot123/getFile":
			_, _ = io.WriteString(w, `{"ok":true,"result":{"file_id":"abc","file_path":"voice/file_1.oga"}}`)
		case "/file/bot123/voice/file_1.oga":
			_, _ = io.WriteString(w, "ogg-bytes")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/bot123", 5*time.Second)
	data, err := c.DownloadFile(context.Background(), "abc")
	if err != nil {
		t.Fatalf("DownloadFile() error = %v", err)
	}
	if string(data) != "ogg-bytes" {
		t.Fatalf("data = %q", data)
	}
}
