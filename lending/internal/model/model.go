package model

import (
	"time"
)

type ItemStatus string

const (
	ItemAvailable   ItemStatus = "AVAILABLE"
	ItemBorrowed    ItemStatus = "BORROWED"
	ItemReserved    ItemStatus = "RESERVED"
	ItemUnavailable ItemStatus = "UNAVAILABLE"
	ItemGivenAway   ItemStatus = "GIVEN_AWAY"
	ItemLost        ItemStatus = "LOST"
)

// Approvable reports whether a pending loan on an item in this status may be approved.
func (s ItemStatus) Approvable() bool {
	return s == ItemAvailable || s == ItemReserved
}

type ItemType string

const (
	TypeBook  ItemType = "BOOK"
	TypeMusic ItemType = "MUSIC"
	TypeMovie ItemType = "MOVIE"
	TypeGame  ItemType = "GAME"
	TypeToy   ItemType = "TOY"
	TypeOther ItemType = "OTHER"
)

type Item struct {
	ID          string     `json:"id" db:"id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Type        ItemType   `json:"type" db:"type"`
	Author      string     `json:"author" db:"author"`
	ISBN        string     `json:"isbn" db:"isbn"`
	Publisher   string     `json:"publisher" db:"publisher"`
	CoverImage  string     `json:"coverImage" db:"cover_image"`
	Status      ItemStatus `json:"status" db:"status"`
	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
}

type LoanStatus string

const (
	LoanPending  LoanStatus = "PENDING"
	LoanApproved LoanStatus = "APPROVED"
	LoanRejected LoanStatus = "REJECTED"
	LoanReturned LoanStatus = "RETURNED"
)

func (s LoanStatus) Terminal() bool {
	return s == LoanRejected || s == LoanReturned
}

type Loan struct {
	ID         string     `json:"id" db:"id"`
	ItemID     string     `json:"itemId" db:"item_id"`
	UserID     string     `json:"userId" db:"user_id"`
	Status     LoanStatus `json:"status" db:"status"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty" db:"approved_at"`
	DueAt      *time.Time `json:"dueAt,omitempty" db:"due_at"`
	ReturnedAt *time.Time `json:"returnedAt,omitempty" db:"returned_at"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`
}

type WaitlistEntry struct {
	ID        string    `json:"id" db:"id"`
	ItemID    string    `json:"itemId" db:"item_id"`
	UserID    string    `json:"userId" db:"user_id"`
	UserName  string    `json:"userName,omitempty" db:"user_name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

type User struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
	Role  Role   `json:"role" db:"role"`
}

type Paging struct {
	Page          int `json:"page"`
	PageSize      int `json:"pageSize"`
	TotalElements int `json:"totalElements"`
}

type ListItems struct {
	Paging `json:",inline"`
	Items  []Item `json:"items"`
}

type ItemFilter struct {
	Status ItemStatus
	Page   int
	Size   int
}

type LoanFilter struct {
	UserID string
	ItemID string
	Status LoanStatus
}

type CreateItemRequest struct {
	Title       string     `json:"title" validate:"required,max=300"`
	Description string     `json:"description"`
	Type        ItemType   `json:"type" validate:"required,oneof=BOOK MUSIC MOVIE GAME TOY OTHER"`
	Status      ItemStatus `json:"status" validate:"omitempty,oneof=AVAILABLE RESERVED UNAVAILABLE GIVEN_AWAY LOST"`
	Author      string     `json:"author"`
	ISBN        string     `json:"isbn"`
	Publisher   string     `json:"publisher"`
	CoverImage  string     `json:"coverImage" validate:"omitempty,url"`
}

// UpdateItemRequest is a partial update; nil fields are left as they are.
type UpdateItemRequest struct {
	Title       *string     `json:"title" validate:"omitempty,min=1,max=300"`
	Description *string     `json:"description"`
	Type        *ItemType   `json:"type" validate:"omitempty,oneof=BOOK MUSIC MOVIE GAME TOY OTHER"`
	Status      *ItemStatus `json:"status" validate:"omitempty,oneof=AVAILABLE RESERVED UNAVAILABLE GIVEN_AWAY LOST"`
	Author      *string     `json:"author"`
	ISBN        *string     `json:"isbn"`
	Publisher   *string     `json:"publisher"`
	CoverImage  *string     `json:"coverImage" validate:"omitempty,url"`
}

func (r UpdateItemRequest) Apply(it *Item) {
	if r.Title != nil {
		it.Title = *r.Title
	}
	if r.Description != nil {
		it.Description = *r.Description
	}
	if r.Type != nil {
		it.Type = *r.Type
	}
	if r.Status != nil {
		it.Status = *r.Status
	}
	if r.Author != nil {
		it.Author = *r.Author
	}
	if r.ISBN != nil {
		it.ISBN = *r.ISBN
	}
	if r.Publisher != nil {
		it.Publisher = *r.Publisher
	}
	if r.CoverImage != nil {
		it.CoverImage = *r.CoverImage
	}
}

type CreateLoanRequest struct {
	ItemID string `json:"itemId" validate:"required"`
}

type UpdateLoanRequest struct {
	Status LoanStatus `json:"status" validate:"required,oneof=APPROVED REJECTED RETURNED"`
	DueAt  *time.Time `json:"dueAt"`
}

// LoanRequested is sent to every admin when a user asks to borrow an item.
type LoanRequested struct {
	LoanID       string
	AdminEmails  []string
	BorrowerName string
	ItemTitle    string
}

// LoanDecided is sent to the borrower once an admin approved or rejected the request.
type LoanDecided struct {
	LoanID        string
	BorrowerEmail string
	ItemTitle     string
	Decision      LoanStatus
}
