package integration

import (
	"context"
	"database/sql"
	"io"
	"os"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/doodlesbykumbi/okapictl/pkg/audit"
	"github.com/doodlesbykumbi/okapictl/pkg/okapi"
	"github.com/doodlesbykumbi/okapictl/pkg/provision"
)

// startPostgres runs a throwaway PostgreSQL container and returns a
// connection to it.
func startPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("okapictl_test"),
		tcpostgres.WithUsername("okapictl"),
		tcpostgres.WithPassword("okapictl"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() { _ = pgContainer.Terminate(context.Background()) })

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := sql.Open("postgres", connStr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.PingContext(ctx))
	return db
}

type storedMessage struct {
	msgid   string
	tenant  string
	sdids   []string
	message string
}

func storedMessages(t *testing.T, db *sql.DB) []storedMessage {
	t.Helper()
	rows, err := db.Query(`SELECT msgid, tenant, sdids, message FROM messages ORDER BY id`)
	require.NoError(t, err)
	defer rows.Close()

	var messages []storedMessage
	for rows.Next() {
		var m storedMessage
		require.NoError(t, rows.Scan(&m.msgid, &m.tenant, pq.Array(&m.sdids), &m.message))
		messages = append(messages, m)
	}
	require.NoError(t, rows.Err())
	return messages
}

func TestAuditStorePostgres(t *testing.T) {
	// Skip if not running integration tests
	if os.Getenv("INTEGRATION_TEST") == "" {
		t.Skip("Skipping integration tests. Set INTEGRATION_TEST=1 to run.")
	}

	db := startPostgres(t)
	store := audit.NewStoreWithDB(db)
	require.NoError(t, store.EnsureSchema(context.Background()))
	// Schema creation is repeatable
	require.NoError(t, store.EnsureSchema(context.Background()))

	gateway := StartOkapi("diku", sessionToken)
	defer gateway.Stop()
	gateway.AddUser("diku_admin", "abc-123", "admin")
	gateway.FailGrant("oriole.subjects.admin", 422, "Permission oriole.subjects.admin does not exist")

	recorder := audit.NewRecorder(audit.NewLogger(io.Discard), store)
	recorder.SetEnabled(true)

	opts := provision.Options{
		OkapiURL:    gateway.URL,
		Tenant:      "diku",
		Credentials: okapi.Credentials{Username: "diku_admin", Password: "admin"},
		Permissions: []string{"oriole.resources.admin", "oriole.subjects.admin"},
	}
	client := okapi.NewClient(gateway.URL, "diku")
	_, err := provision.New(client, opts, io.Discard, provision.WithAuditor(recorder)).Run(context.Background())
	require.NoError(t, err)

	messages := storedMessages(t, db)
	var ids []string
	for _, m := range messages {
		ids = append(ids, m.msgid)
		assert.Equal(t, "diku", m.tenant, m.msgid)
	}
	assert.Equal(t, []string{"login", "user-lookup", "permission-count", "grant", "grant", "permission-count"}, ids)

	failed := messages[4]
	assert.Equal(t, []string{audit.SDIDAction, audit.SDIDAuth, audit.SDIDSubject, audit.SDIDTenant}, failed.sdids)
	assert.Equal(t, "diku_admin failed to grant oriole.subjects.admin to abc-123 [422]: Permission oriole.subjects.admin does not exist", failed.message)

	var status string
	require.NoError(t, db.QueryRow(
		`SELECT sdata->$1->>'status' FROM messages WHERE msgid = 'grant' ORDER BY id DESC LIMIT 1`, audit.SDIDAction,
	).Scan(&status))
	assert.Equal(t, "422", status)
}
