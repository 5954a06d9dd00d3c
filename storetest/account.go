package storetest

import (
	"sync"
	"testing"

	"github.com/ridge/quarry"
	"github.com/ridge/quarry/indices"
	"github.com/ridge/quarry/meta"
	"github.com/ridge/quarry/test"
	"github.com/stretchr/testify/require"
)

// Account is a sample model whose table and indices come from struct tags
type Account struct {
	meta.Meta `quarry:"table=accounts"`
	AccountID quarry.RecordID `json:"id" quarry:"id"`
	Login     string          `json:"login" quarry:"unique"`
	Region    string          `json:"region" quarry:"index,index=region_tier"`
	Tier      int             `json:"tier" quarry:"index=region_tier"`
	Notes     string          `json:"notes,omitempty"`
}

var accountSchema = sync.OnceValue(indices.Survey[Account])

// ID implements quarry.Model
func (a Account) ID() quarry.RecordID { return quarry.RecordID(accountSchema().ID(a)) }

// Table implements quarry.Model
func (Account) Table() string { return accountSchema().Table }

// Indices implements quarry.Model
func (Account) Indices() *indices.Registry[Account] { return accountSchema().Registry }

// RunAccounts checks a backend with the tag-declared Account model: the
// table name, identity and compound index come from struct tags
func RunAccounts(t *testing.T, factory Factory[Account]) {
	ctx := test.Context(t)
	store := quarry.New(factory(t))
	require.NoError(t, store.InitializeSchema(ctx))

	neo := Account{AccountID: quarry.NewRecordID(), Login: "neo", Region: "eu", Tier: 1}
	trinity := Account{AccountID: quarry.NewRecordID(), Login: "trinity", Region: "eu", Tier: 2}
	morpheus := Account{AccountID: quarry.NewRecordID(), Login: "morpheus", Region: "us", Tier: 2}
	for _, a := range []Account{neo, trinity, morpheus} {
		require.NoError(t, store.Insert(ctx, a))
	}

	got, err := store.FindByUniqueIndexOrError(ctx, "login", indices.NewValue("trinity"))
	require.NoError(t, err)
	require.Equal(t, trinity, got)

	eu, err := store.FindByIndex(ctx, "region", indices.NewValue("eu"))
	require.NoError(t, err)
	require.ElementsMatch(t, []Account{neo, trinity}, eu)

	euTier2, err := store.FindByIndex(ctx, "region_tier", indices.NewValue("eu", "2"))
	require.NoError(t, err)
	require.Equal(t, []Account{trinity}, euTier2)

	dup := Account{AccountID: quarry.NewRecordID(), Login: "neo", Region: "us"}
	require.ErrorIs(t, store.Insert(ctx, dup), quarry.ErrUniqueViolation)

	neo.Region = "us"
	require.NoError(t, store.Update(ctx, neo))
	n, err := store.CountByIndex(ctx, "region", indices.NewValue("us"))
	require.NoError(t, err)
	require.EqualValues(t, 2, n)
}
