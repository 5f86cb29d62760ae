package handler

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"anonchat/backend/internal/config"
	"anonchat/backend/internal/models"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// multipartOverhead is the room left for multipart headers above the file
// size limit.
const multipartOverhead = 1 << 20

// Messages returned to the uploader.
const (
	msgNoFile         = "No file uploaded"
	msgFileTooLarge   = "File is too large"
	msgFileTypeDenied = "Only images, audio, and video files are allowed"
	msgUnreadableFile = "Could not read uploaded file"
)

// UploadResponse is the body of a successful upload.
type UploadResponse struct {
	Success  bool   `json:"success"`
	FileURL  string `json:"fileUrl"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	FileType string `json:"fileType"`
}

// Upload stores a media file sent as the multipart field "file". The file
// is accepted when both its extension and its sniffed content type are
// image, audio or video.
func (h *Handler) Upload(c *gin.Context) {
	limit := h.cfg.Upload.MaxSize
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			uploadError(c, msgFileTooLarge)
			return
		}
		uploadError(c, msgNoFile)
		return
	}
	if header.Size > limit {
		uploadError(c, msgFileTooLarge)
		return
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !slices.Contains(config.AllowedUploadExtensions, ext) {
		uploadError(c, msgFileTypeDenied)
		return
	}

	mtype, err := sniff(header)
	if err != nil {
		h.logger.Warn("upload sniff failed", zap.Error(err))
		uploadError(c, msgUnreadableFile)
		return
	}
	if _, ok := mediaKindOf(mtype); !ok {
		uploadError(c, msgFileTypeDenied)
		return
	}

	if err := os.MkdirAll(h.cfg.Upload.Dir, 0o755); err != nil {
		h.logger.Error("create upload dir", zap.String("dir", h.cfg.Upload.Dir), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}
	name := "file-" + uuid.NewString() + ext
	if err := c.SaveUploadedFile(header, filepath.Join(h.cfg.Upload.Dir, name)); err != nil {
		h.logger.Error("save upload", zap.String("file", name), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store file"})
		return
	}

	h.logger.Info("file uploaded",
		zap.String("file", name), zap.Int64("size", header.Size), zap.String("type", mtype.String()))
	c.JSON(http.StatusOK, UploadResponse{
		Success:  true,
		FileURL:  path.Join(h.cfg.Upload.PublicPrefix, name),
		FileName: header.Filename,
		FileSize: header.Size,
		FileType: mtype.String(),
	})
}

func sniff(header *multipart.FileHeader) (*mimetype.MIME, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()
	return mimetype.DetectReader(f)
}

// mediaKindOf maps the detected type, or the nearest parent that maps, to a
// media kind.
func mediaKindOf(mtype *mimetype.MIME) (models.MediaKind, bool) {
	for m := mtype; m != nil; m = m.Parent() {
		if kind, ok := models.MediaKindFromMIME(m.String()); ok {
			return kind, true
		}
	}
	return "", false
}

func uploadError(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": msg})
}
