package connection_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conmonhq/conmon/engine/connection"
	"github.com/conmonhq/conmon/engine/core"
	"github.com/conmonhq/conmon/engine/infra/csvstore"
	"github.com/conmonhq/conmon/engine/infra/store"
)

func connectionRow(id int, typ connection.Type) store.Row {
	now := time.Now().UTC()
	return store.Row{
		"id":          id,
		"customer_id": "acme",
		"type":        int(typ),
		"credentials": map[string]any{"token": "ghp_x"},
		"metadata":    map[string]any{"region": "us-east-1"},
		"sync_status": "pending",
		"alias":       "primary",
		"created_at":  now,
		"updated_at":  now,
		"is_deleted":  false,
	}
}

func TestParseType(t *testing.T) {
	t.Run("Should resolve provider names to stable enum values", func(t *testing.T) {
		typ, err := connection.ParseType("github")
		require.NoError(t, err)
		assert.Equal(t, connection.TypeGithub, typ)
		assert.Equal(t, "github", typ.String())
	})
	t.Run("Should reject unknown provider names", func(t *testing.T) {
		_, err := connection.ParseType("gitea")
		assert.ErrorContains(t, err, "unknown connection type")
	})
}

func TestConnection(t *testing.T) {
	t.Run("Should flatten credentials to a string map", func(t *testing.T) {
		conn := &connection.Connection{
			Credentials: core.JSONMap{"token": "ghp_x", "port": 443},
		}
		creds := conn.CredentialMap()
		assert.Equal(t, "ghp_x", creds["token"])
		assert.Equal(t, "443", creds["port"])
	})
	t.Run("Should merge fetch info without clobbering other metadata", func(t *testing.T) {
		conn := &connection.Connection{
			Metadata: core.JSONMap{"region": "us-east-1"},
		}
		conn.MergeInfo(core.JSONMap{"principal": "static"})
		assert.Equal(t, "us-east-1", conn.Metadata["region"])
		info, ok := conn.Metadata["info"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "static", info["principal"])
	})
}

func TestFromRow(t *testing.T) {
	t.Run("Should decode a connections row", func(t *testing.T) {
		conn, err := connection.FromRow(connectionRow(7, connection.TypeGithub))
		require.NoError(t, err)
		assert.Equal(t, 7, conn.ID)
		assert.Equal(t, connection.TypeGithub, conn.Type)
		assert.Equal(t, "acme", conn.CustomerID)
		assert.Equal(t, "ghp_x", conn.Credentials["token"])
	})
	t.Run("Should tolerate stringly numeric cells", func(t *testing.T) {
		row := connectionRow(7, connection.TypeAWS)
		row["id"] = "7"
		row["type"] = "2"
		conn, err := connection.FromRow(row)
		require.NoError(t, err)
		assert.Equal(t, 7, conn.ID)
		assert.Equal(t, connection.TypeAWS, conn.Type)
	})
	t.Run("Should reject rows without an id", func(t *testing.T) {
		row := connectionRow(1, connection.TypeGithub)
		delete(row, "id")
		_, err := connection.FromRow(row)
		assert.ErrorContains(t, err, "missing column")
	})
}

func TestSyncStatus(t *testing.T) {
	ctx := context.Background()

	newStore := func(t *testing.T, rows ...store.Row) store.Store {
		t.Helper()
		st, err := csvstore.New(t.TempDir())
		require.NoError(t, err)
		for _, row := range rows {
			require.NoError(t, st.Insert(ctx, "connections", row))
		}
		return st
	}

	t.Run("Should load a live connection by id", func(t *testing.T) {
		st := newStore(t, connectionRow(3, connection.TypeGithub))
		conn, err := connection.Load(ctx, st, 3)
		require.NoError(t, err)
		assert.Equal(t, connection.TypeGithub, conn.Type)
	})
	t.Run("Should not load deleted or missing connections", func(t *testing.T) {
		deleted := connectionRow(4, connection.TypeGithub)
		deleted["is_deleted"] = true
		st := newStore(t, deleted)
		_, err := connection.Load(ctx, st, 4)
		assert.ErrorContains(t, err, "not found")
	})
	t.Run("Should record a successful sync with merged info", func(t *testing.T) {
		st := newStore(t, connectionRow(3, connection.TypeGithub))
		conn, err := connection.Load(ctx, st, 3)
		require.NoError(t, err)

		err = connection.MarkSynced(ctx, st, conn, core.JSONMap{"principal": "static"})
		require.NoError(t, err)

		updated, err := connection.Load(ctx, st, 3)
		require.NoError(t, err)
		assert.Equal(t, "success", updated.SyncStatus)
		assert.False(t, updated.SyncedAt.IsZero())
		assert.Equal(t, "us-east-1", updated.Metadata["region"])
		info, ok := updated.Metadata["info"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "static", info["principal"])
	})
	t.Run("Should record sync failures without touching metadata", func(t *testing.T) {
		st := newStore(t, connectionRow(3, connection.TypeGithub))
		conn, err := connection.Load(ctx, st, 3)
		require.NoError(t, err)

		err = connection.MarkSyncError(ctx, st, conn, assert.AnError)
		require.NoError(t, err)

		updated, err := connection.Load(ctx, st, 3)
		require.NoError(t, err)
		assert.Equal(t, "error", updated.SyncStatus)
		assert.NotEmpty(t, updated.SyncError)
		assert.Equal(t, "us-east-1", updated.Metadata["region"])
		_, hasInfo := updated.Metadata["info"]
		assert.False(t, hasInfo)
	})
}
