package regionstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"

	"github.com/prophet-town/s2geometry/sphere"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "regions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStoreSaveGet(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	u := sphere.NewCellUnion([]sphere.CellID{
		sphere.CellIDFromFace(0),
		sphere.CellIDFromFace(3).ChildBegin(),
	})

	saved, err := store.Save(ctx, "harbor", u)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	require.Equal(t, "harbor", saved.Name)

	got, err := store.Get(ctx, "harbor")
	require.NoError(t, err)
	require.Equal(t, saved.ID, got.ID)
	require.True(t, u.Equal(got.Cells))
}

func TestStoreSaveUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.Save(ctx, "harbor", sphere.CellUnion{sphere.CellIDFromFace(0)})
	require.NoError(t, err)

	replacement := sphere.CellUnion{sphere.CellIDFromFace(1)}
	second, err := store.Save(ctx, "harbor", replacement)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, first.CreatedAt, second.CreatedAt)

	got, err := store.Get(ctx, "harbor")
	require.NoError(t, err)
	require.True(t, replacement.Equal(got.Cells))
}

func TestStoreSaveEmptyName(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Save(context.Background(), "", sphere.CellUnion{sphere.CellIDFromFace(0)})
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeEmptyName))
}

func TestStoreSaveEmptyRegion(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "void", sphere.CellUnion{})
	require.NoError(t, err)

	got, err := store.Get(ctx, "void")
	require.NoError(t, err)
	require.Empty(t, got.Cells)
}

func TestStoreGetNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.Get(context.Background(), "nowhere")
	require.Error(t, err)
	require.True(t, errors.IsType(err, ErrTypeNotFound))
}

func TestStoreGetCorruptBlob(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "harbor", sphere.CellUnion{sphere.CellIDFromFace(0)})
	require.NoError(t, err)

	_, err = store.DB().ExecContext(ctx, `UPDATE regions SET cells = ? WHERE name = ?`, []byte{0xff}, "harbor")
	require.NoError(t, err)

	_, err = store.Get(ctx, "harbor")
	require.Error(t, err)
}

func TestStoreList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	face := sphere.CellUnion{sphere.CellIDFromFace(2)}
	leaf := sphere.CellUnion{sphere.CellIDFromFace(2).ChildBeginAt(sphere.MaxLevel)}

	_, err := store.Save(ctx, "wide", face)
	require.NoError(t, err)
	_, err = store.Save(ctx, "narrow", leaf)
	require.NoError(t, err)

	infos, err := store.List(ctx)
	require.NoError(t, err)

	expected := []Info{
		{Name: "narrow", CellCount: 1, LeafCoverage: 1},
		{Name: "wide", CellCount: 1, LeafCoverage: 1 << 60},
	}
	diff := cmp.Diff(expected, infos,
		cmpopts.IgnoreFields(Info{}, "ID", "UpdatedAt"))
	require.Empty(t, diff)
}

func TestStoreDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.Save(ctx, "harbor", sphere.CellUnion{sphere.CellIDFromFace(0)})
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "harbor"))

	_, err = store.Get(ctx, "harbor")
	require.True(t, errors.IsType(err, ErrTypeNotFound))

	err = store.Delete(ctx, "harbor")
	require.True(t, errors.IsType(err, ErrTypeNotFound))
}

func TestStoreReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "regions.db")
	ctx := context.Background()

	store, err := Open(path)
	require.NoError(t, err)

	u := sphere.CellUnion{sphere.CellIDFromFace(4)}
	_, err = store.Save(ctx, "harbor", u)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopening runs the migrations again, which must be a no-op.
	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "harbor")
	require.NoError(t, err)
	require.True(t, u.Equal(got.Cells))
}

func TestStorePing(t *testing.T) {
	store := openTestStore(t)
	require.NoError(t, store.Ping(context.Background()))
}
