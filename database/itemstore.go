package database

import (
	"context"

	"invserver/models"

	"gorm.io/gorm"
)

// ItemFilter はアイテム一覧の絞り込み条件です。
type ItemFilter struct {
	MaxPrice *float64 // price <= MaxPrice
}

// Pagination は limit/skip によるページングです。Limit が 0 なら全件。
type Pagination struct {
	Limit int
	Skip  int
}

// ItemStore はアイテムの永続化を担います。
// 所有者を指定する操作は、他人のアイテムに対して ErrNotFound を返す。
type ItemStore interface {
	Create(ctx context.Context, item *models.Item) error
	ListByOwner(ctx context.Context, ownerID uint, filter ItemFilter, page Pagination) ([]models.Item, error)
	FindByID(ctx context.Context, id uint) (*models.Item, error)
	FindOwned(ctx context.Context, id, ownerID uint) (*models.Item, error)
	Update(ctx context.Context, item *models.Item) error
	DeleteOwned(ctx context.Context, id, ownerID uint) (*models.Item, error)
	DeleteByOwner(ctx context.Context, ownerID uint) (int64, error)
	SetImage(ctx context.Context, id, ownerID uint, image []byte) error
}

type GormItemStore struct {
	db *gorm.DB
}

func NewGormItemStore(db *gorm.DB) *GormItemStore {
	return &GormItemStore{db: db}
}

func (s *GormItemStore) Create(ctx context.Context, item *models.Item) error {
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return translate(err, "create item")
	}
	return nil
}

func (s *GormItemStore) ListByOwner(ctx context.Context, ownerID uint, filter ItemFilter, page Pagination) ([]models.Item, error) {
	q := s.db.WithContext(ctx).Omit("Image").Where("owner_id = ?", ownerID)
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}
	if page.Limit > 0 {
		q = q.Limit(page.Limit)
	}
	if page.Skip > 0 {
		q = q.Offset(page.Skip)
	}

	items := []models.Item{}
	if err := q.Order("id").Find(&items).Error; err != nil {
		return nil, translate(err, "list items")
	}
	return items, nil
}

func (s *GormItemStore) FindByID(ctx context.Context, id uint) (*models.Item, error) {
	var item models.Item
	if err := s.db.WithContext(ctx).First(&item, id).Error; err != nil {
		return nil, translate(err, "find item")
	}
	return &item, nil
}

func (s *GormItemStore) FindOwned(ctx context.Context, id, ownerID uint) (*models.Item, error) {
	var item models.Item
	err := s.db.WithContext(ctx).Where("id = ? AND owner_id = ?", id, ownerID).First(&item).Error
	if err != nil {
		return nil, translate(err, "find owned item")
	}
	return &item, nil
}

// Update は編集可能な項目だけを更新します。
func (s *GormItemStore) Update(ctx context.Context, item *models.Item) error {
	result := s.db.WithContext(ctx).
		Model(item).
		Where("owner_id = ?", item.OwnerID).
		Select("Name", "Count", "Price", "Sale", "UpdatedAt").
		Updates(item)
	if result.Error != nil {
		return translate(result.Error, "update item")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormItemStore) DeleteOwned(ctx context.Context, id, ownerID uint) (*models.Item, error) {
	var deleted *models.Item
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.Item
		if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).First(&item).Error; err != nil {
			return translate(err, "find item for delete")
		}
		if err := tx.Delete(&item).Error; err != nil {
			return translate(err, "delete item")
		}
		deleted = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

func (s *GormItemStore) DeleteByOwner(ctx context.Context, ownerID uint) (int64, error) {
	result := s.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&models.Item{})
	if result.Error != nil {
		return 0, translate(result.Error, "delete owner items")
	}
	return result.RowsAffected, nil
}

// SetImage は画像を差し替えます。image が nil の場合は削除。
func (s *GormItemStore) SetImage(ctx context.Context, id, ownerID uint, image []byte) error {
	result := s.db.WithContext(ctx).
		Model(&models.Item{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Update("image", image)
	if result.Error != nil {
		return translate(result.Error, "set item image")
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
