package version_test

import (
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Sumatoshi-tech/chunkfold/pkg/version"
)

func TestApply_FillsUnsetFields(t *testing.T) {
	version.Apply(&debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.time", Value: "2026-01-01T00:00:00Z"},
		},
	})

	assert.Equal(t, "v1.2.3", version.Version)
	assert.Equal(t, "abc123", version.Commit)
	assert.Equal(t, "chunkfold v1.2.3 (commit: abc123, built: 2026-01-01T00:00:00Z)", version.String())

	version.Apply(&debug.BuildInfo{Main: debug.Module{Version: "v9.9.9"}})
	assert.Equal(t, "v1.2.3", version.Version)
}
