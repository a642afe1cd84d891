package drive

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"navidrive/internal/domain/corruption"
	domain "navidrive/internal/domain/drive"
	"navidrive/internal/infrastructure/blob"
	"navidrive/internal/infrastructure/database"
	"navidrive/internal/infrastructure/repository"
)

type fixture struct {
	svc   Service
	repo  domain.Repository
	blobs *blob.Local
	root  *domain.Folder
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	db, err := database.New(database.DriverSQLite3, filepath.Join(t.TempDir(), "drive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))

	blobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)

	repo := repository.NewDriveRepository(db)
	root := &domain.Folder{Name: "My Drive", RevealLevel: 1}
	require.NoError(t, repo.CreateFolder(context.Background(), root))
	return &fixture{svc: NewService(repo, blobs, opts...), repo: repo, blobs: blobs, root: root}
}

// stubSource replays fixed draws.
type stubSource struct {
	floats []float64
	ints   []int
}

func (s *stubSource) Float64() float64 {
	v := s.floats[0]
	s.floats = s.floats[1:]
	return v
}

func (s *stubSource) IntN(int) int {
	v := s.ints[0]
	s.ints = s.ints[1:]
	return v
}

var _ corruption.RandomSource = (*stubSource)(nil)

func TestBreadcrumbsRootFirst(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	a, err := f.svc.CreateFolder(ctx, domain.CreateFolderRequest{Name: "wired", Parent: f.root.ID})
	require.NoError(t, err)
	b, err := f.svc.CreateFolder(ctx, domain.CreateFolderRequest{Name: "layer_13", Parent: a.ID})
	require.NoError(t, err)

	crumbs, err := f.svc.Breadcrumbs(ctx, b.ID)
	require.NoError(t, err)
	names := []string{}
	for _, c := range crumbs {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"My Drive", "wired", "layer_13"}, names)

	rootOnly, err := f.svc.Breadcrumbs(ctx, f.root.ID)
	require.NoError(t, err)
	assert.Len(t, rootOnly, 1)

	_, err = f.svc.Breadcrumbs(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// cyclicRepo serves two folders that point at each other.
type cyclicRepo struct {
	domain.Repository
}

func (cyclicRepo) GetFolder(_ context.Context, id int64) (*domain.Folder, error) {
	other := 3 - id
	return &domain.Folder{ID: id, ParentID: &other}, nil
}

func TestBreadcrumbsDetectsCycle(t *testing.T) {
	svc := NewService(cyclicRepo{}, nil)
	_, err := svc.Breadcrumbs(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrCycle)
}

func TestContentsAndListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	docs, err := f.svc.CreateFolder(ctx, domain.CreateFolderRequest{Name: "Documents", Parent: f.root.ID})
	require.NoError(t, err)
	_, err = f.svc.CreateFile(ctx, domain.CreateFileRequest{Name: "notes.pdf", Parent: f.root.ID, Corrupted: true, CorruptionLevel: 2})
	require.NoError(t, err)
	_, err = f.svc.CreateFile(ctx, domain.CreateFileRequest{Name: "deep.txt", Parent: docs.ID})
	require.NoError(t, err)

	c, err := f.svc.Contents(ctx, f.root.ID)
	require.NoError(t, err)
	require.Len(t, c.Folders, 1)
	require.Len(t, c.Files, 1)
	assert.Equal(t, "notes.pdf", c.Files[0].Name)
	assert.Equal(t, domain.FileTypeDocument, c.Files[0].FileType)

	_, err = f.svc.Contents(ctx, 4242)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	l := f.svc.Listing(ctx, docs.ID)
	require.NoError(t, l.Err)
	assert.False(t, l.Missing)
	assert.Equal(t, "Documents", l.Folder.Name)
	assert.Len(t, l.Breadcrumbs, 2)
	assert.Len(t, l.Contents.Files, 1)

	missing := f.svc.Listing(ctx, 4242)
	assert.NoError(t, missing.Err)
	assert.True(t, missing.Missing)
	assert.Empty(t, missing.Contents.Items())
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.CreateFolder(ctx, domain.CreateFolderRequest{Name: "  ", Parent: f.root.ID})
	assert.ErrorIs(t, err, domain.ErrInvalidName)
	_, err = f.svc.CreateFolder(ctx, domain.CreateFolderRequest{Name: "x", Parent: 999})
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.svc.CreateFile(ctx, domain.CreateFileRequest{Name: "x", Parent: f.root.ID, Corrupted: true})
	assert.ErrorIs(t, err, domain.ErrInvalidCorruption)
	_, err = f.svc.CreateFile(ctx, domain.CreateFileRequest{Name: "x", Parent: f.root.ID, CorruptionLevel: 2})
	assert.ErrorIs(t, err, domain.ErrInvalidCorruption)
}

func TestUploadAssignsCorruptionAtIngestion(t *testing.T) {
	ctx := context.Background()
	clock := func() time.Time { return time.UnixMilli(1700000000000) }
	f := newFixture(t,
		WithRandom(&stubSource{floats: []float64{0.1, 0.9}, ints: []int{2}}),
		WithClock(clock),
	)

	res, err := f.svc.Upload(ctx, f.root.ID, "accela.zip", strings.NewReader("payload"), 7)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadModeDatabase, res.Mode)
	assert.True(t, res.File.Corrupted)
	assert.Equal(t, 3, res.File.CorruptionLevel)
	assert.Regexp(t, `^/uploads/1700000000000-[0-9a-f]{8}-accela\.zip$`, res.File.URL)
	assert.Equal(t, UploadURLPrefix+res.File.StorageKey, res.File.URL)
	assert.Equal(t, domain.FileTypeArchive, res.File.FileType)
	assert.NotZero(t, res.File.ID)

	stored, err := f.svc.GetFile(ctx, res.File.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.CorruptionLevel)

	// Second roll is >= 0.3: clean.
	res, err = f.svc.Upload(ctx, f.root.ID, "clean.txt", strings.NewReader("ok"), 2)
	require.NoError(t, err)
	assert.False(t, res.File.Corrupted)
	assert.Zero(t, res.File.CorruptionLevel)

	_, rc, err := f.svc.Download(ctx, res.File.ID)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "ok", string(body))
}

func TestUploadsInSameMillisecondKeepTheirContent(t *testing.T) {
	ctx := context.Background()
	clock := func() time.Time { return time.UnixMilli(1700000000000) }
	f := newFixture(t, WithRandom(&stubSource{floats: []float64{0.99, 0.99}}), WithClock(clock))

	first, err := f.svc.Upload(ctx, f.root.ID, "notes.txt", strings.NewReader("first"), 5)
	require.NoError(t, err)
	second, err := f.svc.Upload(ctx, f.root.ID, "notes.txt", strings.NewReader("second"), 6)
	require.NoError(t, err)
	require.NotEqual(t, first.File.StorageKey, second.File.StorageKey)

	require.NoError(t, f.svc.DeleteFile(ctx, first.File.ID))

	_, rc, err := f.svc.Download(ctx, second.File.ID)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "second", string(body))
}

func TestUploadToMissingFolder(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Upload(context.Background(), 999, "a.txt", strings.NewReader("a"), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

type failingCreate struct {
	domain.Repository
}

func (failingCreate) CreateFile(context.Context, *domain.File) error {
	return errors.New("database is locked")
}

func TestUploadFallbackMode(t *testing.T) {
	ctx := context.Background()
	base := newFixture(t)
	svc := NewService(failingCreate{base.repo}, base.blobs, WithRandom(&stubSource{floats: []float64{0.99}}))

	res, err := svc.Upload(ctx, base.root.ID, "a.txt", strings.NewReader("kept"), 4)
	require.NoError(t, err)
	assert.Equal(t, domain.UploadModeFallback, res.Mode)
	assert.NotEmpty(t, res.Warning)
	assert.Zero(t, res.File.ID)

	rc, _, err := svc.OpenBlob(ctx, strings.TrimPrefix(res.File.URL, UploadURLPrefix))
	require.NoError(t, err)
	rc.Close()
}

func TestDeleteFolderReleasesBlobs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, WithRandom(&stubSource{floats: []float64{0.99}}))

	sub, err := f.svc.CreateFolder(ctx, domain.CreateFolderRequest{Name: "sub", Parent: f.root.ID})
	require.NoError(t, err)
	res, err := f.svc.Upload(ctx, sub.ID, "x.bin", strings.NewReader("x"), 1)
	require.NoError(t, err)
	key := res.File.StorageKey

	require.NoError(t, f.svc.DeleteFolder(ctx, sub.ID))
	_, _, err = f.blobs.Get(ctx, key)
	assert.ErrorIs(t, err, blob.ErrNotFound)

	assert.ErrorIs(t, f.svc.DeleteFolder(ctx, f.root.ID), domain.ErrRootDeletion)
	assert.ErrorIs(t, f.svc.DeleteFolder(ctx, sub.ID), domain.ErrNotFound)
	assert.ErrorIs(t, f.svc.DeleteFile(ctx, res.File.ID), domain.ErrNotFound)
}

func TestDownloadWithoutContent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	file, err := f.svc.CreateFile(ctx, domain.CreateFileRequest{Name: "seeded.pdf", Parent: f.root.ID, URL: "/files/seeded.pdf"})
	require.NoError(t, err)

	_, _, err = f.svc.Download(ctx, file.ID)
	assert.ErrorIs(t, err, domain.ErrNoContent)

	_, _, err = f.svc.OpenBlob(ctx, "../etc/passwd")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := database.New(database.DriverSQLite3, filepath.Join(t.TempDir(), "seed.db"))
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate(ctx))
	blobs, err := blob.NewLocal(t.TempDir())
	require.NoError(t, err)
	svc := NewService(repository.NewDriveRepository(db), blobs)

	res, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, 14, res.Folders)

	again, err := svc.Seed(ctx)
	require.NoError(t, err)
	assert.True(t, again.Skipped)

	root, err := svc.Root(ctx)
	require.NoError(t, err)
	assert.Equal(t, "My Drive", root.Name)
}
