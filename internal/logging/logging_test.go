package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestConfigure_jsonLevel(t *testing.T) {
	l := logrus.New()
	var buf bytes.Buffer
	c, err := Configure(l, &buf, Options{Level: "warn", Format: "JSON"})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	l.Info("hidden")
	l.WithField("source", "a").Warn("collector: slow")
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("want 1 line, got %d: %q", len(lines), buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["msg"] != "collector: slow" || entry["source"] != "a" || entry["level"] != "warning" {
		t.Errorf("entry = %v", entry)
	}
}

func TestConfigure_unknownLevelFallsBackToInfo(t *testing.T) {
	l := logrus.New()
	var buf bytes.Buffer
	if _, err := Configure(l, &buf, Options{Level: "loud"}); err != nil {
		t.Fatal(err)
	}
	if l.GetLevel() != logrus.InfoLevel {
		t.Errorf("level = %v", l.GetLevel())
	}
	if _, ok := l.Formatter.(*logrus.TextFormatter); !ok {
		t.Errorf("formatter = %T", l.Formatter)
	}
}

func TestConfigure_file(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "vod.log")
	l := logrus.New()
	var buf bytes.Buffer
	c, err := Configure(l, &buf, Options{Level: "info", File: path})
	if err != nil {
		t.Fatal(err)
	}
	l.Info("hello")
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello") || !strings.Contains(buf.String(), "hello") {
		t.Errorf("file=%q stderr=%q", data, buf.String())
	}
	l.Info("after close")
	if !strings.Contains(buf.String(), "after close") {
		t.Errorf("logger should write to stderr after Close; got %q", buf.String())
	}
}
