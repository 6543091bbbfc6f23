package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/storefront/config"
)

func TestRouteListPrintsTable(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, printRoutes(&out))

	table := out.String()
	assert.Contains(t, table, "METHOD")
	assert.Regexp(t, `POST\s+/api/orders\s+orders.store`, table)
	assert.Regexp(t, `PUT\s+/api/admin/orders/\{id\}/status\s+admin.orders.status`, table)
	assert.Regexp(t, `GET\s+/metrics\s+metrics`, table)
}

func run(args ...string) (string, error) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAdminCreateRequiresCredentials(t *testing.T) {
	_, err := run("admin:create", "--email", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--email")
}

func TestExportToStdoutOnMemoryStore(t *testing.T) {
	config.Set("DB_DRIVER", "memory")
	out, err := run("orders:export")
	require.NoError(t, err)
	assert.Equal(t, "Order ID,Customer Name,Customer Email,Total Amount,Status,Items Count,Date\n", out)
}

func TestHelpGroupsCommands(t *testing.T) {
	out, err := run("--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Background work:")
	assert.Contains(t, out, "queue:work")
	assert.Contains(t, out, "orders:export")
}

func TestCommandsRejectArguments(t *testing.T) {
	_, err := run("route:list", "extra")
	assert.Error(t, err)
}

func TestQueueFailedNeedsSQL(t *testing.T) {
	config.Set("DB_DRIVER", "memory")
	_, err := run("queue:failed")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SQL DB_DRIVER")
}

func TestQueueRetryNeedsIDs(t *testing.T) {
	_, err := run("queue:retry")
	assert.Error(t, err)
}
