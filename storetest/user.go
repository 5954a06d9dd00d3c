package storetest

import (
	"sync"

	"github.com/ridge/quarry"
	"github.com/ridge/quarry/indices"
)

// User is the sample model used by the conformance suite
type User struct {
	RecordID quarry.RecordID `json:"id"`
	Email    string          `json:"email"`
	Name     string          `json:"name"`
	Age      uint32          `json:"age"`
}

var userIndices = sync.OnceValue(func() *indices.Registry[User] {
	return indices.NewRegistry(
		indices.Unique("email", indices.Field[User]("Email")),
		indices.NonUnique("name", indices.Field[User]("Name")),
		indices.NonUnique("name_age", indices.Fields[User]("Name Age")),
	)
})

// ID implements quarry.Model
func (u User) ID() quarry.RecordID { return u.RecordID }

// Table implements quarry.Model
func (User) Table() string { return "users" }

// Indices implements quarry.Model
func (User) Indices() *indices.Registry[User] { return userIndices() }

// NewUser creates a User with a fresh id
func NewUser(email, name string, age uint32) User {
	return User{
		RecordID: quarry.NewRecordID(),
		Email:    email,
		Name:     name,
		Age:      age,
	}
}
