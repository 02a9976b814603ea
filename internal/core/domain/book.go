package domain

import (
	"errors"
	"time"
)

// BookStatus is the moderation state of a listing.
type BookStatus string

const (
	BookPending  BookStatus = "Pending"
	BookApproved BookStatus = "Approved"
	BookDeclined BookStatus = "Declined"
)

var (
	ErrBookNotFound     = errors.New("book not found")
	ErrInvalidGenre     = errors.New("invalid genre")
	ErrInvalidCondition = errors.New("invalid condition")
	ErrInvalidPrice     = errors.New("price must be greater than 0")
	ErrInvalidReview    = errors.New("status must be Approved or Declined")
	ErrBookAlreadySold  = errors.New("book already marked as sold")
	ErrTooManyImages    = errors.New("too many images")
)

// Genres lists the accepted listing genres.
var Genres = []string{
	"Arts & Photography",
	"Fiction",
	"Non Fiction & Biography",
	"Educational Textbook",
	"Magazines & Comics",
	"Technology",
	"Romance",
	"Other",
}

// Conditions lists the accepted physical conditions.
var Conditions = []string{"Brand New", "Like New", "Used", "Acceptable"}

func ValidGenre(g string) bool     { return contains(Genres, g) }
func ValidCondition(c string) bool { return contains(Conditions, c) }

// ValidReviewStatus reports whether s is a status an admin may assign.
func ValidReviewStatus(s BookStatus) bool {
	return s == BookApproved || s == BookDeclined
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Book is a used-book listing.
type Book struct {
	ID          string       `json:"_id"`
	Title       string       `json:"title"`
	Genre       string       `json:"genre"`
	Description string       `json:"description"`
	Price       float64      `json:"price"`
	Condition   string       `json:"condition"`
	Delivery    bool         `json:"delivery"`
	Images      []string     `json:"images"`
	SellerID    string       `json:"seller"`
	Seller      *UserSummary `json:"sellerInfo,omitempty"`
	Status      BookStatus   `json:"status"`
	IsSold      bool         `json:"isSold"`
	SoldDate    *time.Time   `json:"soldDate,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}
