package catalog

import "time"

// Product is owned by the catalog; the allocation engine only reads it.
type Product struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	Name      string    `gorm:"column:name" json:"name"`
	Price     float64   `gorm:"column:price" json:"price"`
	Active    bool      `gorm:"column:active" json:"active"`
	IsTask    bool      `gorm:"column:is_task" json:"isTask"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Product) TableName() string {
	return "products"
}
