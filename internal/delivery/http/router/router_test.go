package router

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	driveService "navidrive/internal/application/drive"
	sessionService "navidrive/internal/application/session"
	shareService "navidrive/internal/application/share"
	"navidrive/internal/delivery/http/handler"
	"navidrive/internal/domain/corruption"
	"navidrive/internal/domain/drive"
	"navidrive/internal/infrastructure/blob"
	"navidrive/internal/infrastructure/database"
	"navidrive/internal/infrastructure/repository"
)

// cleanSource never rolls corruption for uploads.
type cleanSource struct{}

func (cleanSource) Float64() float64 { return 0.99 }
func (cleanSource) IntN(int) int     { return 0 }

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type fixture struct {
	handler http.Handler
	drives  driveService.Service
	root    *drive.Folder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(database.DriverSQLite3, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	blobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)

	shareRepo := repository.NewShareRepository(db)
	drives := driveService.NewService(repository.NewDriveRepository(db), blobs,
		driveService.WithShares(shareRepo),
		driveService.WithRandom(cleanSource{}),
	)
	shares := shareService.NewService(shareRepo, drives)
	sessions := sessionService.NewService(repository.NewSessionRepository(db), drives, sessionService.Config{
		Expiry:      time.Hour,
		IdleTimeout: time.Hour,
		Timing: corruption.Timing{
			CorruptionInterval: time.Hour,
			GlitchInterval:     time.Hour,
			GlitchFlash:        time.Hour,
		},
	})

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- sessions.Run(runCtx) }()
	t.Cleanup(func() {
		stop()
		<-done
	})

	_, err = drives.Seed(ctx)
	require.NoError(t, err)
	root, err := drives.Root(ctx)
	require.NoError(t, err)

	h := Setup(Handlers{
		Drive:   handler.NewDriveHandler(drives, 1<<20),
		Share:   handler.NewShareHandler(shares, "http://drive.test"),
		Session: handler.NewSessionHandler(sessions),
	}, sessions, []string{"http://localhost:3000"})

	return &fixture{handler: h, drives: drives, root: root}
}

func (f *fixture) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, data any) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

func (f *fixture) upload(t *testing.T, name, content string) drive.File {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("parentId", fmt.Sprint(f.root.ID)))
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res drive.UploadResult
	decode(t, rec, &res)
	require.Equal(t, drive.UploadModeDatabase, res.Mode)
	return res.File
}

func (f *fixture) startSession(t *testing.T) string {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/session", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var start struct {
		Token string `json:"token"`
	}
	decode(t, rec, &start)
	require.Len(t, start.Token, 64)
	return start.Token
}

func TestInitSeedsOnce(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/init", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := decode(t, rec, nil)
	assert.Equal(t, "Database already initialized", env.Message)

	rec = f.do(t, http.MethodGet, "/api/init", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestFolderContents(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/folder-contents", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var contents drive.Contents
	decode(t, rec, &contents)
	names := make([]string, 0, len(contents.Folders))
	for _, folder := range contents.Folders {
		names = append(names, folder.Name)
	}
	assert.Contains(t, names, "Documents")
	assert.Contains(t, names, "wired")

	rec = f.do(t, http.MethodGet, "/api/folder-contents?parent=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/folder-contents?parent=9999", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFolderLifecycle(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/folders", "", drive.CreateFolderRequest{Name: "Music", Parent: f.root.ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var folder drive.Folder
	decode(t, rec, &folder)
	assert.Equal(t, "Music", folder.Name)

	rec = f.do(t, http.MethodPost, "/api/folders", "", drive.CreateFolderRequest{Name: "  ", Parent: f.root.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/folders?parent=%d", f.root.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"Music"`)

	path := fmt.Sprintf("/api/folders/%d", folder.ID)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, path, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, path, "", nil).Code)
	assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodDelete, fmt.Sprintf("/api/folders/%d", f.root.ID), "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodDelete, "/api/folders/abc", "", nil).Code)
}

func TestCreateFileValidatesCorruption(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/files", "", drive.CreateFileRequest{
		Name: "glitch.bin", Parent: f.root.ID, Corrupted: true, CorruptionLevel: 4,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/files", "", drive.CreateFileRequest{
		Name: "glitch.bin", Parent: f.root.ID, Corrupted: true, CorruptionLevel: 2,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var file drive.File
	decode(t, rec, &file)
	assert.Equal(t, 2, file.CorruptionLevel)

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/files/%d/download", file.ID), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, fmt.Sprintf("/api/files/%d", file.ID), "", nil).Code)
}

func TestUploadAndDownload(t *testing.T) {
	f := newFixture(t)
	file := f.upload(t, "notes.txt", "present day")
	assert.True(t, strings.HasPrefix(file.URL, "/uploads/"))
	assert.False(t, file.Corrupted)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/files/%d/download", file.ID), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "present day", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="notes.txt"`, rec.Header().Get("Content-Disposition"))

	rec = f.do(t, http.MethodGet, fmt.Sprintf("/api/files/%d/download?preview=true", file.ID), "", nil)
	assert.Equal(t, `inline; filename="notes.txt"`, rec.Header().Get("Content-Disposition"))

	rec = f.do(t, http.MethodGet, file.URL, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "present day", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/uploads/missing.txt", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/api/files/%d/download", file.ID), "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestUploadRequiresFile(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("parentId", fmt.Sprint(f.root.ID)))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPasswordShare(t *testing.T) {
	f := newFixture(t)
	file := f.upload(t, "accela.txt", "rave")

	rec := f.do(t, http.MethodPost, "/api/shares", "", map[string]any{
		"target":    drive.FileRef(file.ID).String(),
		"shareType": "password",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/shares", "", map[string]any{
		"target":    drive.FileRef(file.ID).String(),
		"shareType": "password",
		"password":  "lain",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		ID    string `json:"id"`
		Token string `json:"token"`
		URL   string `json:"url"`
	}
	decode(t, rec, &created)
	assert.Equal(t, "http://drive.test/api/s/"+created.Token, created.URL)

	rec = f.do(t, http.MethodGet, "/api/s/"+created.Token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var info struct {
		RequiresPassword bool `json:"requiresPassword"`
	}
	decode(t, rec, &info)
	assert.True(t, info.RequiresPassword)

	rec = f.do(t, http.MethodPost, "/api/s/"+created.Token, "", map[string]string{"password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/s/"+created.Token, "", map[string]string{"password": "lain"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "rave", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/shares/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched struct {
		Downloads int `json:"downloads"`
	}
	decode(t, rec, &fetched)
	assert.Equal(t, 1, fetched.Downloads)

	rec = f.do(t, http.MethodGet, "/api/shares", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []json.RawMessage
	decode(t, rec, &list)
	assert.Len(t, list, 1)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/api/shares/"+created.ID, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/api/s/"+created.Token, "", nil).Code)
}

func TestFolderShareListsPublicItems(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/shares", "", map[string]any{
		"target":     drive.FolderRef(f.root.ID).String(),
		"permission": "view",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var created struct {
		Token string `json:"token"`
	}
	decode(t, rec, &created)

	rec = f.do(t, http.MethodGet, "/api/s/"+created.Token, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var access struct {
		Contents drive.Contents `json:"contents"`
	}
	decode(t, rec, &access)
	for _, folder := range access.Contents.Folders {
		assert.NotEqual(t, "wired", folder.Name)
	}
	assert.NotEmpty(t, access.Contents.Folders)
}

func TestSessionFlow(t *testing.T) {
	f := newFixture(t)
	token := f.startSession(t)

	rec := f.do(t, http.MethodGet, "/api/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/session", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/session?refresh=true", token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view sessionService.View
	decode(t, rec, &view)
	assert.Equal(t, sessionService.TitleClean, view.Title)
	assert.Equal(t, "My Drive", view.FolderName)

	var docs, report sessionService.ItemView
	for _, it := range view.Items {
		switch it.Name {
		case "Documents":
			docs = it
		case "Quarterly Report.pdf":
			report = it
		}
		assert.NotEqual(t, "wired", it.Name, "hidden folders stay hidden at level1")
	}
	require.NotZero(t, docs.Ref.ID)
	require.NotZero(t, report.Ref.ID)

	rec = f.do(t, http.MethodPost, "/api/session/open", token, map[string]string{"ref": report.Ref.String()})
	require.Equal(t, http.StatusForbidden, rec.Code)
	var denied handler.ActionResponse
	decode(t, rec, &denied)
	assert.Equal(t, 1, denied.View.CorruptedClicks)

	rec = f.do(t, http.MethodPost, "/api/session/open", token, map[string]string{"ref": "folder:abc"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/session/navigate", token, map[string]int64{"folderId": docs.Ref.ID})
	require.Equal(t, http.StatusOK, rec.Code)
	var moved handler.ActionResponse
	decode(t, rec, &moved)
	assert.Equal(t, "Documents", moved.View.FolderName)
	assert.False(t, moved.View.Loading)

	rec = f.do(t, http.MethodGet, "/api/session/terminal", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "~/My Drive/Documents")

	rec = f.do(t, http.MethodPost, "/api/session/up", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &moved)
	assert.Equal(t, "My Drive", moved.View.FolderName)

	rec = f.do(t, http.MethodPost, "/api/session/select", token, map[string]string{"ref": docs.Ref.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	decode(t, rec, &moved)
	assert.Equal(t, 1, moved.View.Selected)

	rec = f.do(t, http.MethodPost, "/api/session/repair", token, map[string]string{"ref": report.Ref.String()})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/session/key", token, map[string]string{"key": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = f.do(t, http.MethodPost, "/api/session/key", token, map[string]string{"key": "ArrowUp"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/session/key", token, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/session", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/api/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSessionStream(t *testing.T) {
	f := newFixture(t)
	token := f.startSession(t)

	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/session/stream?token="+token, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 1<<20)
	var event, data string
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" && data != "" {
			break
		}
		if v, ok := strings.CutPrefix(line, "event: "); ok {
			event = v
		}
		if v, ok := strings.CutPrefix(line, "data: "); ok {
			data = v
		}
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, "view", event)

	var view sessionService.View
	require.NoError(t, json.Unmarshal([]byte(data), &view))
	assert.Equal(t, sessionService.TitleClean, view.Title)
}

func TestCORS(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/session", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, "/api/session", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.do(t, http.MethodGet, "/api/folder-contents", "", nil)

	rec := f.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "navidrive_")
}
