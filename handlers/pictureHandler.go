package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"invserver/database"
	"invserver/middlewares"
	"invserver/thumbnail"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	pictureField   = "itemPic"
	maxPictureSize = 1_500_000
	thumbnailSize  = 400
)

var (
	pictureExt = regexp.MustCompile(`(?i)\.(jpg|jpeg|png)$`)

	errPictureMissing  = errors.New("Upload an image")
	errPictureTooLarge = fmt.Errorf("File too large (max %d bytes)", maxPictureSize)
	errPictureType     = errors.New("Upload an image (jpg, jpeg or png)")
)

// アイテム画像のアップロード。400x400 のPNGに変換して保存する
func UploadItemPicture(items database.ItemStore, resizer thumbnail.Resizer, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := itemID(c)
		if !ok {
			return
		}
		ownerID := middlewares.CurrentUser(c).ID

		if _, err := items.FindOwned(c.Request.Context(), id, ownerID); err != nil {
			respondItemError(c, logger, err, "Failed to upload picture")
			return
		}

		data, err := readPicture(c)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		png, err := resizer.Resize(data, thumbnailSize, thumbnailSize)
		if err != nil {
			logger.Warn("Failed to resize picture", zap.Uint("itemID", id), zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to process image"})
			return
		}

		if err := items.SetImage(c.Request.Context(), id, ownerID, png); err != nil {
			respondItemError(c, logger, err, "Failed to upload picture")
			return
		}
		c.Status(http.StatusOK)
	}
}

func DeleteItemPicture(items database.ItemStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := itemID(c)
		if !ok {
			return
		}
		if err := items.SetImage(c.Request.Context(), id, middlewares.CurrentUser(c).ID, nil); err != nil {
			respondItemError(c, logger, err, "Failed to delete picture")
			return
		}
		c.Status(http.StatusOK)
	}
}

// 画像の取得（認証不要）
func GetItemPicture(items database.ItemStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := itemID(c)
		if !ok {
			return
		}

		item, err := items.FindByID(c.Request.Context(), id)
		if err != nil {
			respondItemError(c, logger, err, "Failed to get picture")
			return
		}
		if len(item.Image) == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Picture not found"})
			return
		}
		c.Data(http.StatusOK, "image/png", item.Image)
	}
}

// readPicture はサイズ・拡張子・内容の順に検証して画像のバイト列を返します。
func readPicture(c *gin.Context) ([]byte, error) {
	// multipart のヘッダー分の余裕を持たせる
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPictureSize+64<<10)

	file, header, err := c.Request.FormFile(pictureField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, errPictureTooLarge
		}
		return nil, errPictureMissing
	}
	defer file.Close()

	if header.Size > maxPictureSize {
		return nil, errPictureTooLarge
	}
	if !pictureExt.MatchString(header.Filename) {
		return nil, errPictureType
	}

	data, err := io.ReadAll(io.LimitReader(file, maxPictureSize+1))
	if err != nil {
		return nil, errPictureMissing
	}
	if len(data) > maxPictureSize {
		return nil, errPictureTooLarge
	}

	if mime := mimetype.Detect(data); !mime.Is("image/jpeg") && !mime.Is("image/png") {
		return nil, errPictureType
	}
	return data, nil
}
