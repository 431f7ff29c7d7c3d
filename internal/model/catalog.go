package model

import (
	"time"
)

type Book struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	AuthorID    int64     `json:"author_id,omitempty"`
	CategoryID  int64     `json:"category_id,omitempty"`
	Year        int       `json:"year,omitempty"`
	Pages       int       `json:"pages,omitempty"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

// BookItem is a physical copy linking a Book to its attributes
type BookItem struct {
	ID         int64  `json:"id"`
	BookID     int64  `json:"book_id"`
	Code       string `json:"code"`
	LanguageID int64  `json:"language_id"`
	AlphabetID int64  `json:"alphabet_id"`
	StatusID   int64  `json:"status_id"`
	KafedraID  int64  `json:"kafedra_id"`
}

type User struct {
	ID             int64    `json:"id"`
	FirstName      string   `json:"firstName"`
	LastName       string   `json:"lastName"`
	Phone          string   `json:"phone,omitempty"`
	Email          string   `json:"email,omitempty"`
	StudentGroupID int64    `json:"student_group_id,omitempty"`
	Roles          []FlexID `json:"roles,omitempty"`
}

type Category struct {
	ID int64 `json:"id"`
	BilingualName
}

type Kafedra struct {
	ID int64 `json:"id"`
	BilingualName
	FacultyID int64 `json:"faculty_id,omitempty"`
}

type Direction struct {
	ID int64 `json:"id"`
	BilingualName
	KafedraID int64 `json:"kafedra_id,omitempty"`
}

type StudentGroup struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DirectionID int64  `json:"direction_id,omitempty"`
	Year        int    `json:"year,omitempty"`
}

type Author struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type Language struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Code string `json:"code,omitempty"`
}

type Alphabet struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Status is the condition of a physical copy, not an order status
type Status struct {
	ID int64 `json:"id"`
	BilingualName
}

type Teacher struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	KafedraID int64  `json:"kafedra_id,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

type Admin struct {
	ID       int64    `json:"id"`
	Login    string   `json:"login"`
	FullName string   `json:"full_name,omitempty"`
	Password string   `json:"password,omitempty"`
	Groups   []FlexID `json:"groups,omitempty"`
}
