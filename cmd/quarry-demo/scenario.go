package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ridge/quarry"
	"github.com/ridge/quarry/indices"
	"github.com/ridge/quarry/tlog"
	"go.uber.org/zap"
)

type step struct {
	report *strings.Builder
	store  *quarry.Store[user]
}

func (s step) expectCount(ctx context.Context, index, name string, expected uint64) error {
	n, err := s.store.CountByIndex(ctx, index, indices.NewValue(name))
	if err != nil {
		return err
	}
	fmt.Fprintf(s.report, "%s=%s: %d\n", index, name, n)
	if n != expected {
		return fmt.Errorf("expected %d users with %s=%s, got %d", expected, index, name, n)
	}
	return nil
}

func (s step) expectTotal(ctx context.Context, expected uint64) error {
	n, err := s.store.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.report, "total: %d\n", n)
	if n != expected {
		return fmt.Errorf("expected %d users, got %d", expected, n)
	}
	return nil
}

// scenario inserts two Alices and three Bobs, renames one Alice to Alicia and
// deletes the other one, checking the indices after every step
func scenario(ctx context.Context, store *quarry.Store[user]) (string, error) {
	logger := tlog.Get(ctx)
	s := step{report: &strings.Builder{}, store: store}

	if err := store.InitializeSchema(ctx); err != nil {
		return "", err
	}
	// a persistent database may keep users from a previous run
	previous, err := store.ListAll(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range previous {
		if err := store.Delete(ctx, u.UserID); err != nil {
			return "", err
		}
	}
	if len(previous) > 0 {
		logger.Info("Removed users of a previous run", zap.Int("count", len(previous)))
	}

	alice1 := newUser("alice1@example.com", "Alice", 30)
	alice2 := newUser("alice2@example.com", "Alice", 25)
	users := []user{
		alice1,
		alice2,
		newUser("bob1@example.com", "Bob", 40),
		newUser("bob2@example.com", "Bob", 41),
		newUser("bob3@example.com", "Bob", 42),
	}
	for _, u := range users {
		if err := store.Insert(ctx, u); err != nil {
			return "", err
		}
	}
	logger.Info("Inserted users", zap.Int("count", len(users)))
	if err := s.expectTotal(ctx, 5); err != nil {
		return "", err
	}
	if err := s.expectCount(ctx, "name", "Alice", 2); err != nil {
		return "", err
	}
	if err := s.expectCount(ctx, "name", "Bob", 3); err != nil {
		return "", err
	}

	dup := newUser("bob1@example.com", "Robert", 40)
	if err := store.Insert(ctx, dup); !errors.Is(err, quarry.ErrUniqueViolation) {
		return "", fmt.Errorf("expected unique violation, got %v", err)
	}
	fmt.Fprintln(s.report, "duplicate email rejected")

	alice1.Name = "Alicia"
	if err := store.Update(ctx, alice1); err != nil {
		return "", err
	}
	logger.Info("Renamed user", zap.Stringer("id", alice1.UserID), zap.String("name", alice1.Name))
	if err := s.expectCount(ctx, "name", "Alicia", 1); err != nil {
		return "", err
	}
	if err := s.expectCount(ctx, "name", "Alice", 1); err != nil {
		return "", err
	}

	deleted, err := store.DeleteAndReturn(ctx, alice2.UserID)
	if err != nil {
		return "", err
	}
	logger.Info("Deleted user", zap.Stringer("id", deleted.UserID), zap.String("email", deleted.Email))
	if err := s.expectCount(ctx, "name", "Alice", 0); err != nil {
		return "", err
	}
	if err := s.expectTotal(ctx, 4); err != nil {
		return "", err
	}

	bob, err := store.FindByUniqueIndexOrError(ctx, "email", indices.NewValue("bob2@example.com"))
	if err != nil {
		return "", err
	}
	byNameAge, err := store.FindByIndex(ctx, "name_age", indices.NewValue("Bob", "41"))
	if err != nil {
		return "", err
	}
	if len(byNameAge) != 1 || byNameAge[0].UserID != bob.UserID {
		return "", fmt.Errorf("name_age lookup returned %d users", len(byNameAge))
	}
	fmt.Fprintf(s.report, "email=bob2@example.com: %s, %d\n", bob.Name, bob.Age)

	all, err := store.ListAll(ctx)
	if err != nil {
		return "", err
	}
	for _, u := range all {
		fmt.Fprintf(s.report, "- %s %s %d\n", u.Email, u.Name, u.Age)
	}
	return s.report.String(), nil
}
