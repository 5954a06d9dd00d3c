package main

import (
	"sync"

	"github.com/ridge/quarry"
	"github.com/ridge/quarry/indices"
	"github.com/ridge/quarry/meta"
)

type user struct {
	meta.Meta `quarry:"table=demo_users"`
	UserID    quarry.RecordID `json:"id" quarry:"id"`
	Email     string          `json:"email" quarry:"unique"`
	Name      string          `json:"name" quarry:"index,index=name_age"`
	Age       uint32          `json:"age" quarry:"index=name_age"`
}

var userSchema = sync.OnceValue(indices.Survey[user])

func (u user) ID() quarry.RecordID            { return u.UserID }
func (user) Table() string                    { return userSchema().Table }
func (user) Indices() *indices.Registry[user] { return userSchema().Registry }

func newUser(email, name string, age uint32) user {
	return user{UserID: quarry.NewRecordID(), Email: email, Name: name, Age: age}
}
