package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"navidrive/internal/domain/corruption"
	domain "navidrive/internal/domain/drive"
	"navidrive/internal/domain/share"
	"navidrive/internal/infrastructure/blob"
	"navidrive/internal/infrastructure/logging"
	"navidrive/internal/infrastructure/metrics"
	"navidrive/internal/infrastructure/seed"
)

// UploadURLPrefix is where stored blobs are served from.
const UploadURLPrefix = "/uploads/"

const fallbackWarning = "File uploaded but not saved to database"

// Service defines the business logic for drive operations
type Service interface {
	Root(ctx context.Context) (*domain.Folder, error)
	GetFolder(ctx context.Context, id int64) (*domain.Folder, error)
	GetFile(ctx context.Context, id int64) (*domain.File, error)
	ListFolders(ctx context.Context, parentID int64) ([]domain.Folder, error)
	ListFiles(ctx context.Context, parentID int64) ([]domain.File, error)
	// Contents lists the direct children of parentID, folders before files.
	Contents(ctx context.Context, parentID int64) (domain.Contents, error)
	// Breadcrumbs returns the chain from the root down to folderID, inclusive.
	Breadcrumbs(ctx context.Context, folderID int64) ([]domain.Folder, error)
	// Listing resolves everything a view of folderID needs. A missing folder
	// yields an empty listing marked Missing rather than an error.
	Listing(ctx context.Context, folderID int64) Listing
	CreateFolder(ctx context.Context, req domain.CreateFolderRequest) (*domain.Folder, error)
	CreateFile(ctx context.Context, req domain.CreateFileRequest) (*domain.File, error)
	Upload(ctx context.Context, parentID int64, name string, body io.Reader, size int64) (*domain.UploadResult, error)
	DeleteFolder(ctx context.Context, id int64) error
	DeleteFile(ctx context.Context, id int64) error
	// Download opens the stored content of a file.
	Download(ctx context.Context, id int64) (*domain.File, io.ReadCloser, error)
	OpenBlob(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Seed(ctx context.Context) (seed.Result, error)
}

// Option configures a Service.
type Option func(*service)

// WithRandom sets the source of upload corruption rolls.
func WithRandom(rng corruption.RandomSource) Option {
	return func(s *service) { s.rng = rng }
}

// WithClock sets the clock used for upload keys and modified stamps.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithShares removes share links of deleted items.
func WithShares(shares share.Repository) Option {
	return func(s *service) { s.shares = shares }
}

type service struct {
	repo   domain.Repository
	blobs  blob.Store
	shares share.Repository
	rng    corruption.RandomSource
	now    func() time.Time
}

// NewService creates a new drive service
func NewService(repo domain.Repository, blobs blob.Store, opts ...Option) Service {
	s := &service{
		repo:  repo,
		blobs: blobs,
		rng:   corruption.SharedSource{},
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *service) Root(ctx context.Context) (*domain.Folder, error) {
	return s.repo.Root(ctx)
}

func (s *service) GetFolder(ctx context.Context, id int64) (*domain.Folder, error) {
	return s.repo.GetFolder(ctx, id)
}

func (s *service) GetFile(ctx context.Context, id int64) (*domain.File, error) {
	return s.repo.GetFile(ctx, id)
}

func (s *service) ListFolders(ctx context.Context, parentID int64) ([]domain.Folder, error) {
	return s.repo.ListFolders(ctx, parentID)
}

func (s *service) ListFiles(ctx context.Context, parentID int64) ([]domain.File, error) {
	return s.repo.ListFiles(ctx, parentID)
}

func (s *service) Contents(ctx context.Context, parentID int64) (domain.Contents, error) {
	var c domain.Contents
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		folders, err := s.repo.ListFolders(gctx, parentID)
		c.Folders = folders
		return err
	})
	g.Go(func() error {
		files, err := s.repo.ListFiles(gctx, parentID)
		c.Files = files
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Contents{}, err
	}
	return c, nil
}

func (s *service) Breadcrumbs(ctx context.Context, folderID int64) ([]domain.Folder, error) {
	var chain []domain.Folder
	seen := make(map[int64]bool)

	id := folderID
	for {
		if seen[id] {
			return nil, domain.ErrCycle
		}
		seen[id] = true

		f, err := s.repo.GetFolder(ctx, id)
		if err != nil {
			return nil, err
		}
		chain = append(chain, *f)
		if f.IsRoot() {
			break
		}
		id = *f.ParentID
	}

	// Root first.
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}

func (s *service) Listing(ctx context.Context, folderID int64) Listing {
	l := Listing{FolderID: folderID, Contents: emptyContents()}

	folder, err := s.repo.GetFolder(ctx, folderID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			l.Missing = true
			return l
		}
		l.Err = err
		return l
	}
	l.Folder = folder

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := s.Contents(gctx, folderID)
		l.Contents = c
		return err
	})
	g.Go(func() error {
		crumbs, err := s.Breadcrumbs(gctx, folderID)
		l.Breadcrumbs = crumbs
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Deleted while we were listing it.
			return Listing{FolderID: folderID, Missing: true, Contents: emptyContents()}
		}
		l.Err = err
	}
	return l
}

func (s *service) CreateFolder(ctx context.Context, req domain.CreateFolderRequest) (*domain.Folder, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if req.Parent <= 0 {
		return nil, domain.ErrNotFound
	}

	parent := req.Parent
	f := &domain.Folder{
		Name:        name,
		ParentID:    &parent,
		RevealLevel: 1,
		Modified:    s.now().Format(domain.ModifiedFormat),
	}
	if err := s.repo.CreateFolder(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *service) CreateFile(ctx context.Context, req domain.CreateFileRequest) (*domain.File, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if err := domain.ValidateCorruption(req.Corrupted, req.CorruptionLevel); err != nil {
		return nil, err
	}
	reveal := req.RevealLevel
	if reveal < 1 {
		reveal = 1
	}

	f := &domain.File{
		Name:            name,
		Size:            req.Size,
		URL:             req.URL,
		ParentID:        req.Parent,
		Corrupted:       req.Corrupted,
		CorruptionLevel: req.CorruptionLevel,
		RevealLevel:     reveal,
		FileType:        domain.DetectFileType(name),
		Modified:        s.now().Format(domain.ModifiedFormat),
	}
	if err := s.repo.CreateFile(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

// Upload stores the blob first and then its metadata. Corruption is rolled
// here, at ingestion, and nowhere else. If the metadata write fails after
// the blob landed the upload still succeeds in fallback mode.
func (s *service) Upload(ctx context.Context, parentID int64, name string, body io.Reader, size int64) (*domain.UploadResult, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	if _, err := s.repo.GetFolder(ctx, parentID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		logging.Warn("parent lookup failed before upload", zap.Int64("parent", parentID), zap.Error(err))
	}

	now := s.now()
	key := blob.UploadKey(now, name)
	if err := s.blobs.Put(ctx, key, body, size); err != nil {
		logging.Error("blob write failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", domain.ErrUploadFailed, err)
	}

	assigned := corruption.Assign(s.rng)
	f := &domain.File{
		Name:            name,
		Size:            size,
		URL:             UploadURLPrefix + url.PathEscape(key),
		StorageKey:      key,
		ParentID:        parentID,
		Corrupted:       assigned.Corrupted,
		CorruptionLevel: assigned.Level,
		RevealLevel:     1,
		FileType:        domain.DetectFileType(name),
		Modified:        now.Format(domain.ModifiedFormat),
	}

	result := &domain.UploadResult{File: *f, Mode: domain.UploadModeDatabase}
	if err := s.repo.CreateFile(ctx, f); err != nil {
		logging.Warn("database unavailable for file upload, using fallback mode",
			zap.String("key", key), zap.Error(err))
		result.Mode = domain.UploadModeFallback
		result.Warning = fallbackWarning
	} else {
		result.File = *f
	}

	metrics.RecordUpload(assigned.Level, result.Mode)
	logging.Info("file uploaded",
		zap.String("key", key),
		zap.Int64("size", size),
		zap.Int("corruption_level", assigned.Level),
		zap.String("mode", result.Mode),
	)
	return result, nil
}

func (s *service) DeleteFolder(ctx context.Context, id int64) error {
	f, err := s.repo.GetFolder(ctx, id)
	if err != nil {
		return err
	}
	if f.IsRoot() {
		return domain.ErrRootDeletion
	}

	removed, err := s.repo.DeleteFolder(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrDeleteFailed, err)
	}

	s.forgetShares(ctx, domain.FolderRef(id))
	for _, file := range removed {
		s.releaseBlob(ctx, file)
		s.forgetShares(ctx, domain.FileRef(file.ID))
	}
	return nil
}

func (s *service) DeleteFile(ctx context.Context, id int64) error {
	f, err := s.repo.DeleteFile(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrDeleteFailed, err)
	}
	s.releaseBlob(ctx, *f)
	s.forgetShares(ctx, domain.FileRef(id))
	return nil
}

// releaseBlob is best effort; an orphaned blob is only wasted space.
func (s *service) releaseBlob(ctx context.Context, f domain.File) {
	if f.StorageKey == "" {
		return
	}
	if err := s.blobs.Delete(ctx, f.StorageKey); err != nil {
		logging.Warn("blob delete failed", zap.String("key", f.StorageKey), zap.Error(err))
	}
}

func (s *service) forgetShares(ctx context.Context, ref domain.Ref) {
	if s.shares == nil {
		return
	}
	if err := s.shares.DeleteByTarget(ctx, ref); err != nil {
		logging.Warn("share cleanup failed", zap.Stringer("ref", ref), zap.Error(err))
	}
}

func (s *service) Download(ctx context.Context, id int64) (*domain.File, io.ReadCloser, error) {
	f, err := s.repo.GetFile(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if f.StorageKey == "" {
		return f, nil, domain.ErrNoContent
	}
	rc, _, err := s.blobs.Get(ctx, f.StorageKey)
	if err != nil {
		if errors.Is(err, blob.ErrNotFound) {
			return f, nil, domain.ErrNoContent
		}
		return f, nil, err
	}
	return f, rc, nil
}

func (s *service) OpenBlob(ctx context.Context, key string) (io.ReadCloser, int64, error) {
	rc, size, err := s.blobs.Get(ctx, key)
	if errors.Is(err, blob.ErrNotFound) || errors.Is(err, blob.ErrInvalidKey) {
		return nil, 0, domain.ErrNotFound
	}
	return rc, size, err
}

func (s *service) Seed(ctx context.Context) (seed.Result, error) {
	tree, err := seed.Default()
	if err != nil {
		return seed.Result{}, err
	}
	res, err := seed.Apply(ctx, s.repo, tree)
	if err != nil {
		return res, err
	}
	if !res.Skipped {
		logging.Info("drive seeded", zap.Int("folders", res.Folders), zap.Int("files", res.Files))
	}
	return res, nil
}
