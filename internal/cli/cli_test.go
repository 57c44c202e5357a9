package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSource = `{"type":"basic","name":"Tavern","description":"","backgroundImageKey":"bg/tavern.jpg","chapters":[{"id":"c1","name":"One","order":1,"maps":[{"name":"Bar","description":"","order":1,"imageKey":"maps/bar.png","tokenScale":0.5}]}]}`

// adminStub records requests and answers each path with a fixed body.
type adminStub struct {
	*httptest.Server
	mu       sync.Mutex
	requests map[string][]string
}

func newAdminStub(t *testing.T, replies map[string]string) *adminStub {
	t.Helper()
	stub := &adminStub{requests: map[string][]string{}}
	stub.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		stub.mu.Lock()
		key := r.Method + " " + r.URL.Path
		stub.requests[key] = append(stub.requests[key], string(body))
		stub.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, replies[r.URL.Path])
	}))
	t.Cleanup(stub.Close)
	return stub
}

func (s *adminStub) bodies(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[key]
}

// workspace runs the test from an empty directory with a sources folder.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sources"), 0o755))
	for _, name := range []string{"API_URL", "BEARER_TOKEN", "JSON_FILE_PATH", "API_URL_LIVE", "API_URL_STG",
		"BEARER_TOKEN_LIVE", "BEARER_TOKEN_STG", "LOG_LEVEL", "APP_ENV", "OBSERVABILITY_ENABLED"} {
		t.Setenv(name, "")
		require.NoError(t, os.Unsetenv(name))
	}
	t.Setenv("SUMMON_STARTINGDELAY", "1ms")
	return dir
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand("test")
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDeployFileCommand(t *testing.T) {
	dir := workspace(t)
	api := newAdminStub(t, map[string]string{})
	t.Setenv("API_URL", api.URL+"/admin/map-data")
	t.Setenv("BEARER_TOKEN", "tkn")
	path := filepath.Join(dir, "official-map-data.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sources":[]}`), 0o600))

	out, err := execute(t, "", "deploy", "file", path)

	require.NoError(t, err)
	assert.Equal(t, []string{`{"sources":[]}`}, api.bodies("PUT /admin/map-data"))
	assert.Contains(t, out, "Success: API returned 200")
}

func TestDeployFileCommandRequiresURL(t *testing.T) {
	workspace(t)

	out, err := execute(t, "", "deploy", "file", "maps.json")

	var logged *loggedError
	require.ErrorAs(t, err, &logged)
	assert.Contains(t, err.Error(), "deploy.url")
	assert.Contains(t, out, "command failed")
}

func TestDeploySourcesCommand(t *testing.T) {
	dir := workspace(t)
	api := newAdminStub(t, map[string]string{})
	t.Setenv("API_URL", api.URL)
	t.Setenv("BEARER_TOKEN", "tkn")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sources", "tavern.json"), []byte(testSource), 0o600))

	nameStatus := "M\tsources/tavern.json\nD\tsources/crypt.json\nM\tREADME.md\n"
	_, err := execute(t, nameStatus, "deploy", "sources")

	require.NoError(t, err)
	bodies := api.bodies("PUT /admin/sources")
	require.Len(t, bodies, 1)

	var payload struct {
		Sources         []json.RawMessage `json:"sources"`
		SourcesToDelete []string          `json:"sourcesToDelete"`
		PartialUpdate   bool              `json:"partialUpdate"`
	}
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &payload))
	assert.Len(t, payload.Sources, 1)
	assert.Equal(t, []string{"crypt"}, payload.SourcesToDelete)
	assert.True(t, payload.PartialUpdate)
}

func TestDeploySourcesCommandNothingChanged(t *testing.T) {
	workspace(t)
	api := newAdminStub(t, map[string]string{})
	t.Setenv("API_URL", api.URL)
	t.Setenv("BEARER_TOKEN", "tkn")

	out, err := execute(t, "M\tREADME.md\n", "deploy", "sources")

	require.NoError(t, err)
	assert.Empty(t, api.bodies("PUT /admin/sources"))
	assert.Contains(t, out, "No source files to deploy.")
}

func TestPublishQuickPlayCommand(t *testing.T) {
	workspace(t)
	staging := newAdminStub(t, map[string]string{"/admin/prepared-maps": `{"data":[{"id":"m1"}]}`})
	live := newAdminStub(t, map[string]string{})
	t.Setenv("API_URL_STG", staging.URL)
	t.Setenv("BEARER_TOKEN_STG", "stg")
	t.Setenv("API_URL_LIVE", live.URL)
	t.Setenv("BEARER_TOKEN_LIVE", "live")

	out, err := execute(t, "", "publish", "quick-play")

	require.NoError(t, err)
	require.Len(t, live.bodies("PUT /admin/prepared-maps"), 1)
	assert.JSONEq(t, `{"preparedMaps":[{"id":"m1"}]}`, live.bodies("PUT /admin/prepared-maps")[0])
	assert.Contains(t, out, "Successfully published quick play maps.")
}

func TestPublishQuickPlayCommandRequiresEndpoints(t *testing.T) {
	workspace(t)
	t.Setenv("API_URL_STG", "https://stg.example.com")

	_, err := execute(t, "", "publish", "quick-play")

	assert.ErrorContains(t, err, "BEARER_TOKEN_STG")
}

func TestGenerateCommand(t *testing.T) {
	dir := workspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sources", "tavern.json"), []byte(testSource), 0o600))

	_, err := execute(t, "", "generate")

	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, defaultMapDataFile))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "\n"))
	assert.Contains(t, string(data), `"name": "Tavern"`)

	list, err := os.ReadFile(filepath.Join(dir, defaultSourceListFile))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"Tavern\": true\n}\n", string(list))
}

func TestValidateCommand(t *testing.T) {
	dir := workspace(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sources", "tavern.json"), []byte(testSource), 0o600))

	_, err := execute(t, "", "validate")
	require.NoError(t, err)

	broken := strings.Replace(testSource, `"tokenScale":0.5`, `"tokenScale":1.5`, 1)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sources", "broken.json"), []byte(broken), 0o600))

	out, err := execute(t, "", "validate")
	assert.ErrorContains(t, err, "1 of 2 files failed validation")
	assert.Contains(t, out, "broken.json")
}

func TestValidateCommandCatalogue(t *testing.T) {
	dir := workspace(t)
	path := filepath.Join(dir, "maps.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"sources":[`+testSource+`,`+testSource+`]}`), 0o600))

	_, err := execute(t, "", "validate", "--catalogue", path)

	assert.ErrorContains(t, err, "1 of 1 files failed validation")
}

func TestSchemaCommand(t *testing.T) {
	dir := workspace(t)

	_, err := execute(t, "", "schema", "--out", "schema.json")

	require.NoError(t, err)
	data, err := os.ReadFile(filepath.Join(dir, "schema.json"))
	require.NoError(t, err)
	assert.True(t, json.Valid(data))
}

func TestReportError(t *testing.T) {
	var buf bytes.Buffer
	ReportError(&buf, &loggedError{err: assert.AnError})
	assert.Empty(t, buf.String())

	ReportError(&buf, assert.AnError)
	assert.Equal(t, "mapctl: "+assert.AnError.Error()+"\n", buf.String())
}
