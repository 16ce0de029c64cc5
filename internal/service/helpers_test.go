package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/iconidentify/mediabot/internal/domain"
	"github.com/iconidentify/mediabot/pkg/ffmpeg"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMessage struct {
	chatID   domain.ChatID
	text     string
	markdown bool
}

type editedMessage struct {
	msgID domain.MessageID
	text  string
}

type fakeMessenger struct {
	mu sync.Mutex

	nextID  domain.MessageID
	sent    []sentMessage
	edits   []editedMessage
	deletes []domain.MessageID
	videos  []domain.VideoUpload
	albums  [][]domain.AlbumItem

	sendErr  error
	videoErr error
	// albumErrs is consumed one entry per SendAlbum call; nil entries succeed.
	albumErrs []error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{nextID: 100}
}

func (m *fakeMessenger) SendText(_ context.Context, chatID domain.ChatID, text string) (domain.MessageID, error) {
	return m.send(chatID, text, false)
}

func (m *fakeMessenger) SendMarkdown(_ context.Context, chatID domain.ChatID, text string) (domain.MessageID, error) {
	return m.send(chatID, text, true)
}

func (m *fakeMessenger) send(chatID domain.ChatID, text string, markdown bool) (domain.MessageID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.nextID++
	m.sent = append(m.sent, sentMessage{chatID: chatID, text: text, markdown: markdown})
	return m.nextID, nil
}

func (m *fakeMessenger) EditText(_ context.Context, _ domain.ChatID, msgID domain.MessageID, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, editedMessage{msgID: msgID, text: text})
	return nil
}

func (m *fakeMessenger) Delete(_ context.Context, _ domain.ChatID, msgID domain.MessageID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes = append(m.deletes, msgID)
	return nil
}

func (m *fakeMessenger) SendVideo(_ context.Context, _ domain.ChatID, video domain.VideoUpload) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.videoErr != nil {
		return m.videoErr
	}
	m.videos = append(m.videos, video)
	return nil
}

func (m *fakeMessenger) SendAlbum(_ context.Context, _ domain.ChatID, items []domain.AlbumItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.albumErrs) > 0 {
		err := m.albumErrs[0]
		m.albumErrs = m.albumErrs[1:]
		if err != nil {
			return err
		}
	}
	m.albums = append(m.albums, append([]domain.AlbumItem(nil), items...))
	return nil
}

func (m *fakeMessenger) editTexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.edits))
	for i, e := range m.edits {
		out[i] = e.text
	}
	return out
}

func (m *fakeMessenger) lastEdit() string {
	texts := m.editTexts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

type fakeEngine struct {
	mu sync.Mutex

	probe    *domain.MediaProbe
	probeErr error

	// write populates the work dir and returns the engine hint.
	write    func(t *testing.T, workDir string) string
	fetchErr error
	progress []domain.ProgressEvent

	t           *testing.T
	probeCalls  int
	fetchCalls  int
	workDirs    []string
	gotSelector string
}

func (e *fakeEngine) Probe(_ context.Context, _ string) (*domain.MediaProbe, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.probeCalls++
	if e.probeErr != nil {
		return nil, e.probeErr
	}
	p := *e.probe
	return &p, nil
}

func (e *fakeEngine) Fetch(_ context.Context, _ string, job domain.FetchJob) (string, error) {
	e.mu.Lock()
	e.fetchCalls++
	e.workDirs = append(e.workDirs, job.WorkDir)
	e.gotSelector = job.FormatSelector
	e.mu.Unlock()

	for _, ev := range e.progress {
		job.Progress.Report(ev)
	}
	if e.fetchErr != nil {
		return "", e.fetchErr
	}
	if e.write == nil {
		return "", nil
	}
	return e.write(e.t, job.WorkDir), nil
}

type fakeInspector struct {
	info *ffmpeg.VideoInfo
	err  error
}

func (f *fakeInspector) GetVideoInfo(context.Context, string) (*ffmpeg.VideoInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

// writeSized creates a sparse file of the given size.
func writeSized(t *testing.T, path string, size int64) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		t.Fatalf("truncate %s: %v", path, err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}

func writeImages(t *testing.T, dir string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		writeSized(t, filepath.Join(dir, imageName(i)), 1024)
	}
}

func imageName(i int) string {
	return string(rune('a'+i/26)) + string(rune('a'+i%26)) + ".jpg"
}

var errBoom = errors.New("boom")
