package specstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/workqueue/internal/common"
)

const sampleSpec = `
request_name: Task_Mock_v1
request_type: Processing
start_policy: Block
end_policy: SingleShot
priority: 100
team_name: analysis-ops
tasks:
  - name: Production
    path_name: /Task_Mock_v1/Production
    input_dataset: /Mock/Primary/RAW
    splitting:
      algorithm: FileBased
      files_per_job: 5
`

func writeSpecFile(t *testing.T, dir, requestName, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, requestName+".yaml"), []byte(content), 0644))
}

func TestStoreLoadParsesYAML(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "Task_Mock_v1", sampleSpec)

	store := New(dir, common.GetLogger())
	spec, err := store.Load(context.Background(), "Task_Mock_v1")
	require.NoError(t, err)
	assert.Equal(t, "Task_Mock_v1", spec.RequestName)
	assert.Len(t, spec.Tasks, 1)
	assert.Equal(t, "Block", string(spec.StartPolicy))
}

func TestStoreLoadCachesAfterFirstRead(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "Task_Mock_v1", sampleSpec)

	store := New(dir, common.GetLogger())
	first, err := store.Load(context.Background(), "Task_Mock_v1")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(dir, "Task_Mock_v1.yaml")))

	second, err := store.Load(context.Background(), "Task_Mock_v1")
	require.NoError(t, err)
	assert.Same(t, first, second)
}

func TestStoreInvalidateForcesReload(t *testing.T) {
	dir := t.TempDir()
	writeSpecFile(t, dir, "Task_Mock_v1", sampleSpec)

	store := New(dir, common.GetLogger())
	_, err := store.Load(context.Background(), "Task_Mock_v1")
	require.NoError(t, err)

	store.Invalidate("Task_Mock_v1")
	require.NoError(t, os.Remove(filepath.Join(dir, "Task_Mock_v1.yaml")))

	_, err = store.Load(context.Background(), "Task_Mock_v1")
	assert.Error(t, err)
}

func TestStoreLoadMissingFileReturnsError(t *testing.T) {
	store := New(t.TempDir(), common.GetLogger())
	_, err := store.Load(context.Background(), "NoSuchRequest")
	assert.Error(t, err)
}
