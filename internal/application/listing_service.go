package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mundotango/mundo-tango-api/internal/domain/entity"
	repo "github.com/mundotango/mundo-tango-api/internal/domain/repository"
	"github.com/mundotango/mundo-tango-api/pkg/helpers"
)

type ListingService struct {
	homes    repo.HostHomeRepository
	uploader helpers.Uploader
	index    Indexer
	logger   *logrus.Logger
	now      func() time.Time
}

func NewListingService(homes repo.HostHomeRepository, uploader helpers.Uploader, index Indexer, logger *logrus.Logger) *ListingService {
	return &ListingService{homes: homes, uploader: uploader, index: index, logger: logger, now: time.Now}
}

type CreateHomeInput struct {
	Title         string
	Description   string
	City          string
	Country       string
	PricePerNight int64
}

func (s *ListingService) CreateHome(ctx context.Context, hostID string, in CreateHomeInput) (*entity.HostHome, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.City = strings.TrimSpace(in.City)
	if in.Title == "" || in.City == "" || in.PricePerNight < 0 {
		return nil, ErrInvalidHome
	}
	now := s.now().UTC()
	h := &entity.HostHome{
		ID:            uuid.NewString(),
		HostID:        hostID,
		Title:         in.Title,
		Description:   strings.TrimSpace(in.Description),
		City:          in.City,
		Country:       strings.TrimSpace(in.Country),
		PricePerNight: in.PricePerNight,
		PhotoURLs:     []string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.homes.Create(ctx, h); err != nil {
		return nil, fmt.Errorf("create home: %w", err)
	}
	s.reindex(ctx, h)
	return h, nil
}

func (s *ListingService) reindex(ctx context.Context, h *entity.HostHome) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, HomeDocument(h)); err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("home_id", h.ID).Warn("index home failed")
	}
}

func (s *ListingService) GetHome(ctx context.Context, id string) (*entity.HostHome, error) {
	h, err := s.homes.GetByID(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrHomeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get home: %w", err)
	}
	return h, nil
}

func (s *ListingService) ListHomes(ctx context.Context, city string, limit int) ([]*entity.HostHome, error) {
	hs, err := s.homes.List(ctx, strings.TrimSpace(city), limit)
	if err != nil {
		return nil, fmt.Errorf("list homes: %w", err)
	}
	if hs == nil {
		hs = []*entity.HostHome{}
	}
	return hs, nil
}

// AddPhoto uploads an image for a home owned by userID and returns its URL.
func (s *ListingService) AddPhoto(ctx context.Context, userID, homeID string, r io.Reader, filename, contentType string) (string, error) {
	if s.uploader == nil {
		return "", ErrStorageDisabled
	}
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrUnsupportedMedia
	}
	h, err := s.GetHome(ctx, homeID)
	if err != nil {
		return "", err
	}
	if h.HostID != userID {
		return "", ErrForbidden
	}
	object := path.Join("homes", h.ID, uuid.NewString()+strings.ToLower(path.Ext(filename)))
	url, err := s.uploader.Upload(ctx, object, contentType, r)
	if err != nil {
		return "", fmt.Errorf("upload photo: %w", err)
	}
	if err := s.homes.AddPhoto(ctx, h.ID, url); err != nil {
		return "", fmt.Errorf("save photo: %w", err)
	}
	h.PhotoURLs = append(h.PhotoURLs, url)
	s.reindex(ctx, h)
	return url, nil
}
