package repo

import (
	"errors"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("duplicate key")
)

// translate maps gorm's sentinel errors onto the package's.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}

// Page is a 1-based page request.
type Page struct {
	Page  int
	Limit int
}

// MaxPage bounds page numbers so offsets cannot overflow.
const MaxPage = 100000

// Normalize clamps page to 1..MaxPage and limit to 1..max with def as the default.
func (p Page) Normalize(def, max int) Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Limit < 1 {
		p.Limit = def
	}
	if p.Limit > max {
		p.Limit = max
	}
	return p
}

func (p Page) Offset() int { return (p.Page - 1) * p.Limit }
