// Package ingestion stores uploaded files on disk and extracts their
// content as documents ready for chunking.
package ingestion

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/tmc/langchaingo/documentloaders"
	"go.uber.org/zap"

	"github.com/advrag/ragd/internal/config"
	"github.com/advrag/ragd/internal/llm"
	"github.com/advrag/ragd/internal/store"
)

// Upload validation errors.
var (
	ErrFileTypeNotAllowed = errors.New("file type not allowed")
	ErrFileTooLarge       = errors.New("file exceeds maximum size")
)

// Recognized file extensions.
const (
	ExtTxt  = ".txt"
	ExtPDF  = ".pdf"
	ExtCSV  = ".csv"
	ExtXLSX = ".xlsx"
)

var imageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

// Document is one extracted block of text with source metadata.
type Document struct {
	PageContent string
	Metadata    map[string]any
}

// Service saves uploads and extracts document content.
type Service struct {
	cfg       config.FilesConfig
	store     *store.Store
	captioner llm.Captioner
	logger    *zap.Logger
}

// NewService creates the ingestion service. captioner may be nil, in
// which case uploaded images get no caption sidecar.
func NewService(cfg config.FilesConfig, st *store.Store, captioner llm.Captioner, logger *zap.Logger) *Service {
	return &Service{cfg: cfg, store: st, captioner: captioner, logger: logger}
}

// ProjectDir returns (and creates) the upload directory for a project.
func (s *Service) ProjectDir(projectID int) (string, error) {
	dir := filepath.Join(s.cfg.Dir, strconv.Itoa(projectID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create project dir: %w", err)
	}
	return dir, nil
}

// UploadResult describes one stored upload.
type UploadResult struct {
	OriginalFilename string `json:"original_filename"`
	StoredName       string `json:"asset_name_stored"`
	AssetID          int    `json:"asset_db_id"`
}

// SaveUpload validates and stores one uploaded file, registers it as an
// asset, and writes a caption sidecar for images.
func (s *Service) SaveUpload(ctx context.Context, projectID int, originalName, contentType string, r io.Reader) (*UploadResult, error) {
	if !s.cfg.TypeAllowed(contentType) && !isImageType(contentType) {
		return nil, fmt.Errorf("%w: %s", ErrFileTypeNotAllowed, contentType)
	}

	dir, err := s.ProjectDir(projectID)
	if err != nil {
		return nil, err
	}
	storedName := uniqueFilename(originalName)
	path := filepath.Join(dir, storedName)

	size, err := s.writeFile(path, r)
	if err != nil {
		return nil, err
	}

	if isImageType(contentType) && s.captioner != nil {
		if err := s.writeCaptionSidecar(ctx, path, originalName, contentType); err != nil {
			// A missing caption only degrades retrieval for this image.
			s.logger.Error("image captioning failed",
				zap.String("file", originalName),
				zap.Error(err))
		}
	}

	asset, err := s.store.CreateAsset(ctx, projectID, store.AssetTypeFile, storedName, size, map[string]any{})
	if err != nil {
		_ = os.Remove(path)
		_ = os.Remove(path + ".caption.json")
		return nil, fmt.Errorf("register asset: %w", err)
	}

	return &UploadResult{
		OriginalFilename: originalName,
		StoredName:       asset.Name,
		AssetID:          asset.ID,
	}, nil
}

// writeFile streams the upload to disk, enforcing the size limit.
func (s *Service) writeFile(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create file: %w", err)
	}
	defer f.Close()

	limit := s.cfg.MaxSizeBytes()
	n, err := io.Copy(f, io.LimitReader(r, limit+1))
	if err != nil {
		_ = os.Remove(path)
		return 0, fmt.Errorf("write file: %w", err)
	}
	if n > limit {
		_ = os.Remove(path)
		return 0, fmt.Errorf("%w: limit %d bytes", ErrFileTooLarge, limit)
	}
	return n, nil
}

type captionSidecar struct {
	Caption  string         `json:"caption"`
	Metadata map[string]any `json:"metadata"`
}

func (s *Service) writeCaptionSidecar(ctx context.Context, imagePath, originalName, contentType string) error {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return fmt.Errorf("read image: %w", err)
	}
	caption, err := s.captioner.CaptionImage(ctx, contentType, data,
		"Describe this image precisely and concisely so the description can be used as searchable document text.")
	if err != nil {
		return err
	}

	sidecar := captionSidecar{
		Caption: caption,
		Metadata: map[string]any{
			"source_file": originalName,
			"type":        "image_caption_upload",
		},
	}
	payload, err := json.Marshal(sidecar)
	if err != nil {
		return fmt.Errorf("marshal caption: %w", err)
	}
	if err := os.WriteFile(imagePath+".caption.json", payload, 0o644); err != nil {
		return fmt.Errorf("write caption sidecar: %w", err)
	}
	return nil
}

// LoadContent extracts documents from a stored asset file. Text and PDF
// files yield their text; images yield their caption sidecar if present.
func (s *Service) LoadContent(ctx context.Context, projectID int, assetName string) ([]Document, error) {
	dir, err := s.ProjectDir(projectID)
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, assetName)

	switch FileExtension(assetName) {
	case ExtTxt:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read text file: %w", err)
		}
		return []Document{{
			PageContent: string(data),
			Metadata:    map[string]any{"source": assetName},
		}}, nil

	case ExtPDF:
		return s.loadPDF(ctx, path, assetName)

	default:
		if _, ok := imageExtensions[FileExtension(assetName)]; ok {
			doc, err := s.loadCaptionSidecar(path)
			if err != nil {
				return nil, err
			}
			if doc == nil {
				return nil, nil
			}
			return []Document{*doc}, nil
		}
		return nil, nil
	}
}

func (s *Service) loadPDF(ctx context.Context, path, assetName string) ([]Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}

	pages, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pdf: %w", err)
	}

	docs := make([]Document, 0, len(pages))
	for _, p := range pages {
		meta := map[string]any{"source": assetName}
		for k, v := range p.Metadata {
			meta[k] = v
		}
		docs = append(docs, Document{PageContent: p.PageContent, Metadata: meta})
	}
	return docs, nil
}

// loadCaptionSidecar reads the caption written at upload time. A missing
// sidecar returns nil without error.
func (s *Service) loadCaptionSidecar(imagePath string) (*Document, error) {
	data, err := os.ReadFile(imagePath + ".caption.json")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read caption sidecar: %w", err)
	}

	var sidecar captionSidecar
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return nil, fmt.Errorf("parse caption sidecar: %w", err)
	}
	if sidecar.Metadata == nil {
		sidecar.Metadata = map[string]any{}
	}
	if _, ok := sidecar.Metadata["type"]; !ok {
		sidecar.Metadata["type"] = "image_caption_sidecar"
	}
	return &Document{PageContent: sidecar.Caption, Metadata: sidecar.Metadata}, nil
}

// RemoveProjectFiles deletes a project's upload directory.
func (s *Service) RemoveProjectFiles(projectID int) error {
	return os.RemoveAll(filepath.Join(s.cfg.Dir, strconv.Itoa(projectID)))
}

// RemoveAllFiles deletes the whole upload root. Used by the admin reset.
func (s *Service) RemoveAllFiles() error {
	return os.RemoveAll(s.cfg.Dir)
}

// FileExtension returns the lowercased extension of a file name.
func FileExtension(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

func isImageType(contentType string) bool {
	return strings.HasPrefix(contentType, "image/")
}

var unsafeFilenameChars = regexp.MustCompile(`[^0-9A-Za-z_.-]`)

// uniqueFilename prefixes a random token so concurrent uploads of the
// same file name never collide on disk.
func uniqueFilename(original string) string {
	token := make([]byte, 8)
	_, _ = rand.Read(token)

	base := filepath.Base(original)
	base = strings.ReplaceAll(base, " ", "_")
	base = unsafeFilenameChars.ReplaceAllString(base, "")
	if base == "" || base == "." {
		base = "upload"
	}
	return hex.EncodeToString(token) + "_" + base
}
