package memstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrz1836/vaultdb/internal/storage"
	"github.com/mrz1836/vaultdb/internal/storage/memstore"
	"github.com/mrz1836/vaultdb/internal/wql"
	"github.com/mrz1836/vaultdb/pkg/vaulterr"
)

func openWallet(t *testing.T, id string) storage.Backend {
	t.Helper()
	ctx := context.Background()

	b := memstore.New()
	require.NoError(t, b.Create(ctx, id, []byte("meta-"+id)))
	meta, err := b.Open(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("meta-"+id), meta)
	return b
}

func TestCreate_DuplicateRejected(t *testing.T) {
	ctx := context.Background()
	b := memstore.New()
	require.NoError(t, b.Create(ctx, "dup-wallet", nil))

	err := b.Create(ctx, "dup-wallet", nil)
	require.Error(t, err)
	assert.Equal(t, "WALLET_ALREADY_EXISTS", vaulterr.Code(err))
}

func TestOpen_UnknownWalletFails(t *testing.T) {
	ctx := context.Background()
	b := memstore.New()

	_, err := b.Open(ctx, "does-not-exist")
	require.Error(t, err)
	assert.Equal(t, "WALLET_NOT_FOUND", vaulterr.Code(err))
}

func TestOpen_SeparateHandleSeesSameData(t *testing.T) {
	ctx := context.Background()
	id := "shared-wallet-1"

	writer := memstore.New()
	require.NoError(t, writer.Create(ctx, id, []byte("m")))
	_, err := writer.Open(ctx, id)
	require.NoError(t, err)
	require.NoError(t, writer.Add(ctx, storage.Item{Type: "t", ID: "a", Value: []byte("v")}))

	reader := memstore.New()
	meta, err := reader.Open(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("m"), meta)

	got, err := reader.Get(ctx, "t", "a", storage.FetchAll())
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got.Value)
}

func TestAddGet_RoundTrip(t *testing.T) {
	ctx := context.Background()
	b := openWallet(t, "wallet-addget")

	item := storage.Item{
		Type:  "pref",
		ID:    "id1",
		Value: []byte("sealed-value"),
		Tags:  []storage.Tag{{Name: "enc-tag", Value: "enc-val"}},
	}
	require.NoError(t, b.Add(ctx, item))

	got, err := b.Get(ctx, "pref", "id1", storage.FetchAll())
	require.NoError(t, err)
	assert.Equal(t, item.Value, got.Value)
	assert.Equal(t, item.Tags, got.Tags)
	assert.Equal(t, item.Type, got.Type)
}

func TestAdd_DuplicateRejected(t *testing.T) {
	ctx := context.Background()
	b := openWallet(t, "wallet-adddup")

	item := storage.Item{Type: "pref", ID: "id1", Value: []byte("v")}
	require.NoError(t, b.Add(ctx, item))

	err := b.Add(ctx, item)
	require.Error(t, err)
	assert.Equal(t, "ITEM_ALREADY_EXISTS", vaulterr.Code(err))
}

func TestGet_MissingFails(t *testing.T) {
	ctx := context.Background()
	b := openWallet(t, "wallet-missing")

	_, err := b.Get(ctx, "pref", "ghost", storage.FetchAll())
	require.Error(t, err)
	assert.Equal(t, "ITEM_NOT_FOUND", vaulterr.Code(err))
}

func TestFetchOptions_RespectedByGet(t *testing.T) {
	ctx := context.Background()
	b := openWallet(t, "wallet-fetchopts")

	require.NoError(t, b.Add(ctx, storage.Item{
		Type: "pref", ID: "id1", Value: []byte("v"),
		Tags: []storage.Tag{{Name: "n", Value: "v"}},
	}))

	got, err := b.Get(ctx, "pref", "id1", storage.FetchIDOnly())
	require.NoError(t, err)
	assert.Empty(t, got.Type)
	assert.Nil(t, got.Value)
	assert.Nil(t, got.Tags)
}

func TestUpdate_ReplacesValue(t *testing.T) {
	ctx := context.Background()
	b := openWallet(t, "wallet-update")
	require.NoError(t, b.Add(ctx, storage.Item{Type: "t", ID: "id1", Value: []byte("old")}))

	require.NoError(t, b.Update(ctx, "t", "id1", []byte("new")))

	got, err := b.Get(ctx, "t", "id1", storage.FetchAll())
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), got.Value)
}

func TestDeleteItem_RemovesRecord(t *testing.T) {
	ctx := context.Background()
	b := openWallet(t, "wallet-delitem")
	require.NoError(t, b.Add(ctx, storage.Item{Type: "t", ID: "id1", Value: []byte("v")}))

	require.NoError(t, b.DeleteItem(ctx, "t", "id1"))

	_, err := b.Get(ctx, "t", "id1", storage.FetchAll())
	assert.Error(t, err)
}

func TestTags_AddUpdateDelete(t *testing.T) {
	ctx := context.Background()
	b := openWallet(t, "wallet-tags")
	require.NoError(t, b.Add(ctx, storage.Item{Type: "t", ID: "id1", Value: []byte("v")}))

	require.NoError(t, b.AddTags(ctx, "t", "id1", []storage.Tag{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}}))
	got, err := b.Get(ctx, "t", "id1", storage.FetchAll())
	require.NoError(t, err)
	assert.Len(t, got.Tags, 2)

	require.NoError(t, b.UpdateTags(ctx, "t", "id1", []storage.Tag{{Name: "a", Value: "99"}}))
	got, err = b.Get(ctx, "t", "id1", storage.FetchAll())
	require.NoError(t, err)
	require.Len(t, got.Tags, 2)
	for _, tag := range got.Tags {
		if tag.Name == "a" {
			assert.Equal(t, "99", tag.Value)
		}
	}

	require.NoError(t, b.DeleteTags(ctx, "t", "id1", []string{"b"}))
	got, err = b.Get(ctx, "t", "id1", storage.FetchAll())
	require.NoError(t, err)
	assert.Len(t, got.Tags, 1)
	assert.Equal(t, "a", got.Tags[0].Name)
}

func TestSearch_FiltersByTypeAndQuery(t *testing.T) {
	ctx := context.Background()
	b := openWallet(t, "wallet-search")

	require.NoError(t, b.Add(ctx, storage.Item{Type: "pref", ID: "1", Tags: []storage.Tag{{Name: "degree", Value: "bachelor"}}}))
	require.NoError(t, b.Add(ctx, storage.Item{Type: "pref", ID: "2", Tags: []storage.Tag{{Name: "degree", Value: "master"}}}))
	require.NoError(t, b.Add(ctx, storage.Item{Type: "other", ID: "3", Tags: []storage.Tag{{Name: "degree", Value: "bachelor"}}}))

	cur, err := b.Search(ctx, "pref", wql.NewEq("degree", "bachelor"), storage.SearchOptions{Fetch: storage.FetchAll(), RetrieveTotalCount: true})
	require.NoError(t, err)
	defer cur.Close()

	total, err := cur.TotalCount()
	require.NoError(t, err)
	assert.Equal(t, 1, total)

	item, err := cur.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, "1", item.ID)

	item, err = cur.Next(ctx)
	require.NoError(t, err)
	assert.Nil(t, item)
}

func TestGetAll_ReturnsEveryType(t *testing.T) {
	ctx := context.Background()
	b := openWallet(t, "wallet-getall")
	require.NoError(t, b.Add(ctx, storage.Item{Type: "pref", ID: "1"}))
	require.NoError(t, b.Add(ctx, storage.Item{Type: "other", ID: "2"}))

	cur, err := b.GetAll(ctx)
	require.NoError(t, err)
	defer cur.Close()

	seen := map[string]bool{}
	for {
		item, err := cur.Next(ctx)
		require.NoError(t, err)
		if item == nil {
			break
		}
		seen[item.ID] = true
	}
	assert.True(t, seen["1"])
	assert.True(t, seen["2"])
}

func TestStorageMetadata_RoundTrip(t *testing.T) {
	ctx := context.Background()
	b := openWallet(t, "wallet-storagemeta")

	meta, err := b.GetStorageMetadata(ctx)
	require.NoError(t, err)
	assert.Nil(t, meta)

	require.NoError(t, b.SetStorageMetadata(ctx, []byte("backend-meta")))
	meta, err = b.GetStorageMetadata(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("backend-meta"), meta)
}

func TestDelete_RemovesWalletEntirely(t *testing.T) {
	ctx := context.Background()
	b := memstore.New()
	require.NoError(t, b.Create(ctx, "wallet-delete", nil))

	require.NoError(t, b.Delete(ctx, "wallet-delete"))

	fresh := memstore.New()
	_, err := fresh.Open(ctx, "wallet-delete")
	assert.Error(t, err)
}

func TestDelete_UnknownWalletFails(t *testing.T) {
	ctx := context.Background()
	b := memstore.New()
	err := b.Delete(ctx, "never-existed")
	assert.Error(t, err)
}

func TestRegisteredUnderMemType(t *testing.T) {
	factory, err := storage.Lookup(memstore.StorageType)
	require.NoError(t, err)

	backend, err := factory("ignored")
	require.NoError(t, err)
	assert.IsType(t, &memstore.Backend{}, backend)
}
