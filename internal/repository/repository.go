package repository

import (
	"context"
	"strconv"
	"time"

	"github.com/iliyamo/rewear/internal/model"
)

// Repos groups the repositories bound to one connection or transaction.
type Repos interface {
	Users() UserRepository
	Items() ItemRepository
	Swaps() SwapRepository
	Tokens() TokenRepository
}

// Store is the storage entry point. InTx runs fn inside a transaction:
// every write made through the Repos passed to fn is committed when fn
// returns nil and discarded otherwise.
type Store interface {
	Repos
	InTx(ctx context.Context, fn func(tx Repos) error) error
}

// UserRepository persists accounts and owns the points ledger.
type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id uint64) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	UpdateProfile(ctx context.Context, id uint64, name, bio, location string) error
	UpdatePassword(ctx context.Context, id uint64, hash string) error
	SetActive(ctx context.Context, id uint64, active bool) error
	// Close deactivates the account and replaces its personal data. The
	// email becomes ClosedEmail(id) so the address can register again.
	Close(ctx context.Context, id uint64) error
	List(ctx context.Context, f UserFilter) ([]model.User, int, error)
	Count(ctx context.Context, role string, since time.Time) (int, error)

	// AdjustBalance adds delta (which may be negative) to the user's points
	// and records a ledger entry. It fails with ErrInsufficientBalance,
	// changing nothing, when the result would be negative. It returns the
	// new balance.
	AdjustBalance(ctx context.Context, id uint64, delta int64, reason string, swapID *uint64) (int64, error)
	PointHistory(ctx context.Context, userID uint64, p Page) ([]model.PointEntry, int, error)
}

// ItemRepository persists catalog items and their likes.
type ItemRepository interface {
	Create(ctx context.Context, it *model.Item) error
	GetByID(ctx context.Context, id uint64) (model.Item, error)
	// GetForUpdate is GetByID that also locks the row until the enclosing
	// transaction ends, where the backend supports row locks.
	GetForUpdate(ctx context.Context, id uint64) (model.Item, error)
	// Update writes the descriptive attributes. Status, ownership and
	// approval are not touched.
	Update(ctx context.Context, it *model.Item) error
	// SetStatus moves the item from one status to another. It returns
	// ErrInvalidTransition for edges the catalog forbids and ErrStaleState
	// when the item is no longer in status from.
	SetStatus(ctx context.Context, id uint64, from, to model.ItemStatus) error
	// Approve marks a pending item approved and available.
	Approve(ctx context.Context, id, adminID uint64, at time.Time) error
	// Delete removes a pending or available item and its likes.
	Delete(ctx context.Context, id uint64) error
	List(ctx context.Context, f ItemFilter) ([]model.Item, int, error)
	Count(ctx context.Context, f ItemFilter) (int, error)
	CategoryCounts(ctx context.Context, since time.Time) ([]CategoryCount, error)
	IncrementViews(ctx context.Context, id uint64) error
	// ToggleLike adds or removes the user's like and reports the new state.
	ToggleLike(ctx context.Context, itemID, userID uint64) (bool, int64, error)
}

// SwapRepository persists swap requests.
type SwapRepository interface {
	Create(ctx context.Context, r *model.SwapRequest) error
	GetByID(ctx context.Context, id uint64) (model.SwapRequest, error)
	GetForUpdate(ctx context.Context, id uint64) (model.SwapRequest, error)
	HasPending(ctx context.Context, fromUserID, itemID uint64) (bool, error)
	// Transition moves a request from one status to another, stamping the
	// matching timestamp. It returns ErrStaleState when the request is no
	// longer in status from.
	Transition(ctx context.Context, id uint64, from, to model.SwapStatus, t SwapTransition) error
	List(ctx context.Context, f SwapFilter) ([]model.SwapRequest, int, error)
	Count(ctx context.Context, f SwapFilter) (int, error)
}

// TokenRepository persists hashed refresh tokens.
type TokenRepository interface {
	StoreRefresh(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
	ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID uint64) error
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// ClosedName replaces the name of a closed account.
const ClosedName = "Deleted user"

// ClosedEmail is the placeholder address of a closed account.
func ClosedEmail(id uint64) string {
	return "deleted-" + strconv.FormatUint(id, 10) + "@users.invalid"
}

// SwapTransition carries the fields written alongside a status change.
type SwapTransition struct {
	At          time.Time
	Reason      string
	CancelledBy *uint64
}

// SwapRole restricts a swap listing to one side of the requests.
type SwapRole int

const (
	RoleAny SwapRole = iota
	RoleInitiator
	RoleRecipient
)

// SwapFilter selects swap requests. A zero UserID matches every user.
type SwapFilter struct {
	UserID   uint64
	Role     SwapRole
	ItemID   uint64 // matches item_id when non-zero
	Statuses []model.SwapStatus
	Since    time.Time // matches created_at >= Since when non-zero
	// AcceptedSince matches accepted_at >= AcceptedSince when non-zero.
	AcceptedSince time.Time
	Page          Page
}

// ItemFilter selects catalog items.
type ItemFilter struct {
	Statuses     []model.ItemStatus
	ApprovedOnly bool
	UploaderID   uint64
	Category     string
	Type         string
	Size         string
	Condition    string
	Search       string
	MinPoints    int64
	MaxPoints    int64
	Since        time.Time
	Sort         string // created_at, point_value, views or title
	Asc          bool
	Page         Page
}

// UserFilter selects accounts for the admin listing.
type UserFilter struct {
	Role   string
	Search string
	Page   Page
}

// CategoryCount is one row of the category distribution report.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

// Page is a 1-based page request. A zero Limit means no limit.
type Page struct {
	Page  int
	Limit int
}

// MaxPage bounds page numbers so the offset cannot overflow.
const MaxPage = 1 << 20

// NewPage clamps page and limit, falling back to def when limit is unset
// and capping it at 100.
func NewPage(page, limit, def int) Page {
	if page < 1 {
		page = 1
	}
	if page > MaxPage {
		page = MaxPage
	}
	if limit < 1 {
		limit = def
	}
	if limit > 100 {
		limit = 100
	}
	return Page{Page: page, Limit: limit}
}

// Offset returns the number of rows to skip.
func (p Page) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	page := p.Page
	if page > MaxPage {
		page = MaxPage
	}
	return (page - 1) * p.Limit
}

// sortColumns whitelists sortable item columns.
var sortColumns = map[string]string{
	"created_at":  "created_at",
	"createdAt":   "created_at",
	"point_value": "point_value",
	"pointValue":  "point_value",
	"views":       "views",
	"title":       "title",
}

// SortColumn returns the column for a sort key, defaulting to created_at.
func SortColumn(key string) string {
	if c, ok := sortColumns[key]; ok {
		return c
	}
	return "created_at"
}
