package center

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound     = errors.New("center not found")
	ErrNameRequired = errors.New("centerName is required")
	ErrNameTaken    = errors.New("center name already exists")
	ErrCodeTaken    = errors.New("center code already exists")
	ErrCodeSpace    = errors.New("could not allocate a free center code")
)

// Center is a screening site. Code is the 5-digit identifier printed on
// patient cards and stored on records as centerCode.
type Center struct {
	ID        uuid.UUID `db:"id" json:"_id"`
	Name      string    `db:"center_name" json:"centerName"`
	Code      string    `db:"center_code" json:"centerCode"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
