package model

import "time"

// ItemStatus is the availability state of a listed item.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemAvailable ItemStatus = "available"
	ItemSwapped   ItemStatus = "swapped"
	ItemRedeemed  ItemStatus = "redeemed"

	// ItemDeleted is never stored. It is the target of the pending→deleted
	// edge used when moderation rejects an item.
	ItemDeleted ItemStatus = "deleted"
)

// itemEdges lists every permitted status change. There is no way back to
// available once an item was swapped or redeemed.
var itemEdges = map[ItemStatus][]ItemStatus{
	ItemPending:   {ItemAvailable, ItemDeleted},
	ItemAvailable: {ItemSwapped, ItemRedeemed},
}

// CanTransition reports whether an item may move from one status to another.
func (s ItemStatus) CanTransition(to ItemStatus) bool {
	for _, t := range itemEdges[s] {
		if t == to {
			return true
		}
	}
	return false
}

// Deletable reports whether an item in this status may be removed by its
// owner or an admin.
func (s ItemStatus) Deletable() bool {
	return s == ItemPending || s == ItemAvailable
}

// Valid reports whether s is one of the four stored statuses.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPending, ItemAvailable, ItemSwapped, ItemRedeemed:
		return true
	}
	return false
}

// Enumerations accepted for item attributes.
var (
	Categories = []string{"tops", "bottoms", "dresses", "outerwear", "shoes", "accessories", "other"}
	ItemTypes  = []string{"men", "women", "kids", "unisex"}
	Sizes      = []string{"XS", "S", "M", "L", "XL", "XXL", "XXXL", "One Size"}
	Conditions = []string{"new", "like-new", "good", "fair", "poor"}
	Seasons    = []string{"spring", "summer", "fall", "winter", "all-season"}
)

// OneOf reports whether v is contained in set.
func OneOf(v string, set []string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// Item is a garment listed in the catalog (`items` table). UploaderID is
// fixed at creation. Status changes only along the edges accepted by
// ItemStatus.CanTransition.
//
// Fields:
//
//	ID          – primary key identifier.
//	UploaderID  – owning user.
//	Title, Description, Category, Type, Size, Condition – listing attributes.
//	PointValue  – suggested price in points, at least 1.
//	Tags/Images – free-form tags and image URLs (JSON columns).
//	Brand, Color, Material, Season – optional attributes.
//	Status      – availability state.
//	IsApproved  – set only by moderation.
//	ApprovedBy/ApprovedAt – admin and time of approval.
//	Views       – view counter.
//	LikeCount   – number of rows in item_likes (derived).
type Item struct {
	ID          uint64     `json:"id"`                    // items.id
	UploaderID  uint64     `json:"uploader_id"`           // items.uploader_id
	Title       string     `json:"title"`                 // items.title
	Description string     `json:"description"`           // items.description
	Category    string     `json:"category"`              // items.category
	Type        string     `json:"type"`                  // items.type
	Size        string     `json:"size"`                  // items.size
	Condition   string     `json:"condition"`             // items.item_condition
	PointValue  int64      `json:"point_value"`           // items.point_value
	Tags        []string   `json:"tags"`                  // items.tags
	Images      []string   `json:"images"`                // items.images
	Brand       string     `json:"brand,omitempty"`       // items.brand
	Color       string     `json:"color,omitempty"`       // items.color
	Material    string     `json:"material,omitempty"`    // items.material
	Season      string     `json:"season,omitempty"`      // items.season
	Status      ItemStatus `json:"status"`                // items.status
	IsApproved  bool       `json:"is_approved"`           // items.is_approved
	ApprovedBy  *uint64    `json:"approved_by,omitempty"` // items.approved_by (nullable)
	ApprovedAt  *time.Time `json:"approved_at,omitempty"` // items.approved_at (nullable)
	Views       int64      `json:"views"`                 // items.views
	LikeCount   int64      `json:"like_count"`            // derived from item_likes
	CreatedAt   time.Time  `json:"created_at"`            // items.created_at
	UpdatedAt   time.Time  `json:"updated_at"`            // items.updated_at
}

// IsOwnedBy reports whether userID uploaded the item.
func (it *Item) IsOwnedBy(userID uint64) bool { return it.UploaderID == userID }

// Public reports whether the catalog may expose the item to everyone.
func (it *Item) Public() bool { return it.IsApproved && it.Status == ItemAvailable }
