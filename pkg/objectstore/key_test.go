package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuperStoreKey_BuildsDatePartitionedPath(t *testing.T) {
	key, err := SuperStoreKey("exports", "AOEXETER", "01152024120000ABC123XYZ")
	require.NoError(t, err)
	assert.Equal(t, "exports/AOEXETER/2024/01/20240115/raw_data/01152024120000ABC123XYZ.json.gz", key)
}

func TestSuperStoreKey_EmptyBasePrefix(t *testing.T) {
	key, err := SuperStoreKey("", "SOLX", "12312023000000AAA")
	require.NoError(t, err)
	assert.Equal(t, "SOLX/2023/12/20231231/raw_data/12312023000000AAA.json.gz", key)
}

func TestSuperStoreKey_RejectsShortTransactionID(t *testing.T) {
	_, err := SuperStoreKey("exports", "SOLX", "0115202")
	assert.Error(t, err)
}
