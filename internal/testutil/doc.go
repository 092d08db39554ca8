// Package testutil contains fluent builders for turns and conversations used
// across tests. It is not intended for production usage.
package testutil
