package share

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	driveService "navidrive/internal/application/drive"
	"navidrive/internal/domain/drive"
	domain "navidrive/internal/domain/share"
	"navidrive/internal/infrastructure/logging"
	"navidrive/internal/infrastructure/metrics"
)

// publicRevealLevel is the narrative tier a share link exposes. Hidden items
// inside a shared folder stay hidden.
const publicRevealLevel = 1

// Service defines the business logic for share links
type Service interface {
	Create(ctx context.Context, req domain.CreateShareRequest) (*domain.Share, error)
	List(ctx context.Context) ([]domain.Share, error)
	Get(ctx context.Context, id string) (*domain.Share, error)
	Delete(ctx context.Context, id string) error
	// Lookup returns a share that can still be used, without checking its password.
	Lookup(ctx context.Context, token string) (*domain.Share, error)
	// Access resolves a token to the folder or file it points at.
	Access(ctx context.Context, token, password string) (*domain.Access, error)
	// Download opens the content of a shared file and counts the download.
	Download(ctx context.Context, a *domain.Access) (*drive.File, io.ReadCloser, error)
}

type service struct {
	repo   domain.Repository
	drives driveService.Service
	now    func() time.Time
}

// NewService creates a new share service
func NewService(repo domain.Repository, drives driveService.Service) Service {
	return &service{repo: repo, drives: drives, now: time.Now}
}

func (s *service) Create(ctx context.Context, req domain.CreateShareRequest) (*domain.Share, error) {
	if req.ShareType == "" {
		req.ShareType = domain.ShareTypePublic
	}
	if req.Permission == "" {
		req.Permission = domain.PermissionDownload
	}

	switch req.ShareType {
	case domain.ShareTypePublic, domain.ShareTypePassword:
	default:
		return nil, domain.ErrInvalidShareType
	}
	switch req.Permission {
	case domain.PermissionView, domain.PermissionDownload:
	default:
		return nil, domain.ErrInvalidPermission
	}
	if req.ShareType == domain.ShareTypePassword && req.Password == "" {
		return nil, domain.ErrPasswordRequired
	}
	if req.MaxDownloads != nil && *req.MaxDownloads <= 0 {
		req.MaxDownloads = nil
	}

	if err := s.checkTarget(ctx, req.Target); err != nil {
		return nil, err
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	sh := &domain.Share{
		Token:        token,
		Target:       req.Target,
		ShareType:    req.ShareType,
		Permission:   req.Permission,
		ExpiresAt:    req.ExpiresAt,
		MaxDownloads: req.MaxDownloads,
		IsActive:     true,
	}
	if req.ShareType == domain.ShareTypePassword {
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, err
		}
		sh.Password = string(hash)
	}

	if err := s.repo.Create(ctx, sh); err != nil {
		return nil, err
	}
	logging.Info("share created", zap.String("share_id", sh.ID), zap.Stringer("target", sh.Target))
	return sh, nil
}

func (s *service) checkTarget(ctx context.Context, ref drive.Ref) error {
	ok, err := s.public(ctx, ref)
	if errors.Is(err, drive.ErrNotFound) {
		return domain.ErrInvalidTarget
	}
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrInvalidTarget
	}
	return nil
}

// public reports whether ref and every folder above it belong to the public
// tier.
func (s *service) public(ctx context.Context, ref drive.Ref) (bool, error) {
	folderID := ref.ID
	switch ref.Kind {
	case drive.KindFolder:
	case drive.KindFile:
		file, err := s.drives.GetFile(ctx, ref.ID)
		if err != nil {
			return false, err
		}
		if file.RevealLevel > publicRevealLevel {
			return false, nil
		}
		folderID = file.ParentID
	default:
		return false, domain.ErrInvalidTarget
	}

	chain, err := s.drives.Breadcrumbs(ctx, folderID)
	if err != nil {
		return false, err
	}
	for _, f := range chain {
		if f.RevealLevel > publicRevealLevel {
			return false, nil
		}
	}
	return true, nil
}

func (s *service) List(ctx context.Context) ([]domain.Share, error) {
	return s.repo.List(ctx)
}

func (s *service) Get(ctx context.Context, id string) (*domain.Share, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func (s *service) Lookup(ctx context.Context, token string) (*domain.Share, error) {
	sh, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if err := sh.Check(s.now()); err != nil {
		return nil, err
	}
	return sh, nil
}

func (s *service) Access(ctx context.Context, token, password string) (*domain.Access, error) {
	sh, err := s.Lookup(ctx, token)
	if err != nil {
		return nil, err
	}

	// Hidden targets are never served, whatever the stored share says.
	ok, err := s.public(ctx, sh.Target)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTarget) {
			return nil, err
		}
		return nil, s.targetGone(ctx, sh, err)
	}
	if !ok {
		return nil, domain.ErrShareNotFound
	}

	if sh.ShareType == domain.ShareTypePassword {
		if password == "" {
			return nil, domain.ErrPasswordRequired
		}
		if bcrypt.CompareHashAndPassword([]byte(sh.Password), []byte(password)) != nil {
			return nil, domain.ErrInvalidPassword
		}
	}

	a := &domain.Access{Share: sh}
	switch sh.Target.Kind {
	case drive.KindFolder:
		folder, err := s.drives.GetFolder(ctx, sh.Target.ID)
		if err != nil {
			return nil, s.targetGone(ctx, sh, err)
		}
		contents, err := s.drives.Contents(ctx, folder.ID)
		if err != nil {
			return nil, s.targetGone(ctx, sh, err)
		}
		visible := contents.Visible(publicRevealLevel)
		a.Folder = folder
		a.Contents = &visible
	case drive.KindFile:
		file, err := s.drives.GetFile(ctx, sh.Target.ID)
		if err != nil {
			return nil, s.targetGone(ctx, sh, err)
		}
		a.File = file
	default:
		return nil, domain.ErrInvalidTarget
	}
	return a, nil
}

// targetGone maps a vanished target to ErrShareNotFound and drops the share.
func (s *service) targetGone(ctx context.Context, sh *domain.Share, err error) error {
	if !errors.Is(err, drive.ErrNotFound) {
		return err
	}
	if derr := s.repo.Delete(ctx, sh.ID); derr != nil {
		logging.Warn("failed to drop dangling share", zap.String("share_id", sh.ID), zap.Error(derr))
	}
	return domain.ErrShareNotFound
}

func (s *service) Download(ctx context.Context, a *domain.Access) (*drive.File, io.ReadCloser, error) {
	if a.File == nil {
		return nil, nil, drive.ErrIsDirectory
	}
	if a.Share.Permission != domain.PermissionDownload {
		return nil, nil, domain.ErrPermissionDenied
	}

	f, rc, err := s.drives.Download(ctx, a.File.ID)
	if err != nil {
		return f, nil, err
	}
	if err := s.repo.IncrementDownloads(ctx, a.Share.ID); err != nil {
		logging.Warn("failed to count share download", zap.String("share_id", a.Share.ID), zap.Error(err))
	}
	metrics.RecordShareDownload()
	return f, rc, nil
}

func generateToken() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
