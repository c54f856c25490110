package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"invserver/database"
	"invserver/middlewares"
	"invserver/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errItemNotFound = gin.H{"error": "Item not found"}

// アイテム作成ハンドラー
func CreateItem(items database.ItemStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.CreateItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		name := strings.TrimSpace(req.Name)
		if name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
			return
		}

		item := models.Item{
			Name:    name,
			Price:   *req.Price,
			Sale:    req.Sale,
			OwnerID: middlewares.CurrentUser(c).ID,
		}
		if req.Count != nil {
			item.Count = *req.Count
		}

		if err := items.Create(c.Request.Context(), &item); err != nil {
			logger.Error("Failed to create item", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create item"})
			return
		}
		c.JSON(http.StatusCreated, item)
	}
}

// 自分のアイテム一覧。lessThanEqual, limit, skip で絞り込む
func ListItems(items database.ItemStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var filter database.ItemFilter
		if raw := c.Query("lessThanEqual"); raw != "" {
			maxPrice, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "lessThanEqual must be a number"})
				return
			}
			filter.MaxPrice = &maxPrice
		}

		var page database.Pagination
		for key, dst := range map[string]*int{"limit": &page.Limit, "skip": &page.Skip} {
			raw := c.Query(key)
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a non-negative integer"})
				return
			}
			*dst = n
		}

		list, err := items.ListByOwner(c.Request.Context(), middlewares.CurrentUser(c).ID, filter, page)
		if err != nil {
			logger.Error("Failed to list items", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list items"})
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

func GetItem(items database.ItemStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := itemID(c)
		if !ok {
			return
		}

		item, err := items.FindOwned(c.Request.Context(), id, middlewares.CurrentUser(c).ID)
		if err != nil {
			respondItemError(c, logger, err, "Failed to get item")
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// アイテム更新ハンドラー。更新できるのは name, count, price, sale のみ
func UpdateItem(items database.ItemStore, logger *zap.Logger) gin.HandlerFunc {
	allowed := map[string]bool{"name": true, "count": true, "price": true, "sale": true}

	return func(c *gin.Context) {
		id, ok := itemID(c)
		if !ok {
			return
		}

		var body map[string]json.RawMessage
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		for key := range body {
			if !allowed[key] {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid update"})
				return
			}
		}

		item, err := items.FindOwned(c.Request.Context(), id, middlewares.CurrentUser(c).ID)
		if err != nil {
			respondItemError(c, logger, err, "Failed to update item")
			return
		}

		if err := applyItemUpdates(item, body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := items.Update(c.Request.Context(), item); err != nil {
			respondItemError(c, logger, err, "Failed to update item")
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func DeleteItem(items database.ItemStore, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := itemID(c)
		if !ok {
			return
		}

		item, err := items.DeleteOwned(c.Request.Context(), id, middlewares.CurrentUser(c).ID)
		if err != nil {
			respondItemError(c, logger, err, "Failed to delete item")
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

func applyItemUpdates(item *models.Item, body map[string]json.RawMessage) error {
	for key, raw := range body {
		switch key {
		case "name":
			var name string
			if err := json.Unmarshal(raw, &name); err != nil || strings.TrimSpace(name) == "" {
				return errors.New("name must be a non-empty string")
			}
			item.Name = strings.TrimSpace(name)
		case "count":
			var count int
			if err := json.Unmarshal(raw, &count); err != nil || count < 0 {
				return errors.New("count must be a non-negative integer")
			}
			item.Count = count
		case "price":
			var price float64
			if err := json.Unmarshal(raw, &price); err != nil || price < 0 {
				return errors.New("price must be a non-negative number")
			}
			item.Price = price
		case "sale":
			var sale *float64
			if err := json.Unmarshal(raw, &sale); err != nil || (sale != nil && *sale < 0) {
				return errors.New("sale must be a non-negative number or null")
			}
			item.Sale = sale
		}
	}
	return nil
}

// itemID は :id パラメータを解析します。不正な値は 404 を返して false。
func itemID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusNotFound, errItemNotFound)
		return 0, false
	}
	return uint(id), true
}

func respondItemError(c *gin.Context, logger *zap.Logger, err error, msg string) {
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, errItemNotFound)
		return
	}
	logger.Error(msg, zap.String("itemID", c.Param("id")), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
