package gateway

import (
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nao1215/uploadmesh/internal/storage"
	"github.com/nao1215/uploadmesh/pkg/event"
	"github.com/nao1215/uploadmesh/pkg/middleware"
)

// アップロード結果のメトリクスラベル。
const (
	uploadOK            = "ok"
	uploadMissingToken  = "missing_token"
	uploadRejected      = "rejected"
	uploadUnavailable   = "upstream_unavailable"
	uploadBadRequest    = "bad_request"
	uploadTooLarge      = "too_large"
	uploadForbidden     = "forbidden"
	uploadStorageError  = "storage_error"
	uploadPublishFailed = "publish_error"
)

// handleUpload はファイルアップロードのハンドラを返す。
//
// 判定順序: トークンの有無 → 認証サービスでの検証 → ファイル数 → 管理者フラグ。
// 保存はちょうど1回だけ行い、イベント発行に失敗した場合は保存したファイルを削除する。
func (s *Server) handleUpload() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := upstreamContext(c)

		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if raw == "" {
			s.collector.RecordUpload(uploadMissingToken)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing token"})
			return
		}
		tokenString := raw
		if t, ok := middleware.BearerToken(raw); ok {
			tokenString = t
		}

		access, err := s.auth.Validate(ctx, tokenString)
		if err != nil {
			var rejected *RejectedError
			if errors.As(err, &rejected) {
				s.collector.RecordUpload(uploadRejected)
				writeUpstream(c, rejected.Response)
				return
			}
			s.collector.RecordUpload(uploadUnavailable)
			s.logger.ErrorContext(ctx, "トークン検証で認証サービスに到達できません", slog.String("error", err.Error()))
			respondError(c, err)
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUploadBytes)
		form, err := c.MultipartForm()
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				s.collector.RecordUpload(uploadTooLarge)
				c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
				return
			}
			s.collector.RecordUpload(uploadBadRequest)
			c.JSON(http.StatusBadRequest, gin.H{"error": "exactly 1 file required"})
			return
		}
		defer form.RemoveAll() //nolint:errcheck

		file, ok := singleFile(form)
		if !ok {
			s.collector.RecordUpload(uploadBadRequest)
			c.JSON(http.StatusBadRequest, gin.H{"error": "exactly 1 file required"})
			return
		}

		if !access.IsAdmin {
			s.collector.RecordUpload(uploadForbidden)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authorized"})
			return
		}

		if result, status := s.storeAndPublish(c, file, access.User); status != http.StatusOK {
			s.collector.RecordUpload(result)
			c.JSON(status, gin.H{"error": "internal server error"})
			return
		}

		s.collector.RecordUpload(uploadOK)
		c.String(http.StatusOK, "file uploaded successfully")
	}
}

// singleFile はフォーム全体でちょうど1つのファイルが含まれる場合にそれを返す。
func singleFile(form *multipart.Form) (*multipart.FileHeader, bool) {
	var found *multipart.FileHeader
	count := 0
	for _, files := range form.File {
		for _, fh := range files {
			found = fh
			count++
		}
	}
	return found, count == 1
}

// storeAndPublish はファイルを保存し、FileUploadedイベントを発行する。
// 発行に失敗した場合は保存したファイルを削除して補償する。
func (s *Server) storeAndPublish(c *gin.Context, fh *multipart.FileHeader, owner string) (string, int) {
	ctx := upstreamContext(c)

	f, err := fh.Open()
	if err != nil {
		s.logger.ErrorContext(ctx, "アップロードファイルを開けません", slog.String("error", err.Error()))
		return uploadStorageError, http.StatusInternalServerError
	}
	defer f.Close()

	key := storage.NewKey()
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	if err := s.store.Put(ctx, key, f, fh.Size, contentType); err != nil {
		s.logger.ErrorContext(ctx, "ファイルの保存に失敗",
			slog.String("file_id", key),
			slog.String("error", err.Error()),
		)
		return uploadStorageError, http.StatusInternalServerError
	}

	ev, err := event.NewFileUploaded(event.FileUploadedData{
		FileID:      key,
		Filename:    fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Owner:       owner,
	})
	if err == nil {
		err = s.publisher.Publish(ctx, ev)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "アップロードイベントの発行に失敗したためファイルを削除します",
			slog.String("file_id", key),
			slog.String("error", err.Error()),
		)
		if delErr := s.store.Delete(ctx, key); delErr != nil {
			s.logger.ErrorContext(ctx, "補償のためのファイル削除に失敗",
				slog.String("file_id", key),
				slog.String("error", delErr.Error()),
			)
		}
		return uploadPublishFailed, http.StatusInternalServerError
	}

	s.logger.InfoContext(ctx, "ファイルをアップロードしました",
		slog.String("file_id", key),
		slog.String("filename", fh.Filename),
		slog.Int64("size", fh.Size),
		slog.String("owner", owner),
	)
	return uploadOK, http.StatusOK
}
