package cmd

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/nsgwatch/internal/config"
)

var stateFixture = filepath.Join("..", "..", "internal", "terraform", "testdata", "state.json")

const publishedList = `[{"id": 10, "serviceArea": "Exchange", "urls": ["*.mail.protection.outlook.com"],
  "ips": ["192.168.2.1/24", "2a01:111:f400::/48"], "tcpPorts": "25"}]`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("RULE_SOURCE", config.SourceTFState)
	t.Setenv("TF_STATE", stateFixture)
	t.Setenv("AZURE_NSG_NAME", "smtp-inbound")
	t.Setenv("NOTIFY_KIND", config.NotifyStdout)
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("DNS_SERVERS", "127.0.0.1:1")
	t.Setenv("DNS_TIMEOUT", "200ms")
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "nsgwatch version dev")
}

func TestRulesCmd(t *testing.T) {
	setupEnv(t)

	out, err := runCLI(t, "rules")

	require.NoError(t, err)
	assert.Contains(t, out, "NAME")
	assert.Contains(t, out, "GSUITE_Rule_1")
	assert.Contains(t, out, "gsuite")
	assert.Contains(t, out, "192.168.2.1/24,192.168.3.1/24")
	assert.Contains(t, out, "Mimecast")
}

func TestRulesCmd_JSON(t *testing.T) {
	setupEnv(t)

	out, err := runCLI(t, "rules", "--output", "json")
	require.NoError(t, err)

	var views []ruleView
	require.NoError(t, json.Unmarshal([]byte(out), &views))
	require.Len(t, views, 3)
	assert.Equal(t, "gsuite", views[0].Provider)
	assert.Equal(t, "", views[1].Provider)
	assert.Equal(t, "o365", views[2].Provider)
}

func TestCheckCmd_DryRun(t *testing.T) {
	setupEnv(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(publishedList))
	}))
	defer server.Close()
	t.Setenv("O365_URL", server.URL+"/endpoints/worldwide?clientrequestid=")

	out, err := runCLI(t, "check", "--dry-run", "--output", "json")
	require.NoError(t, err)

	var decoded struct {
		SecurityGroup string `json:"security_group"`
		HasDrift      bool   `json:"has_drift"`
		Providers     []struct {
			Missing []string `json:"missing"`
			Extra   []string `json:"extra"`
		} `json:"providers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "smtp-inbound", decoded.SecurityGroup)
	assert.True(t, decoded.HasDrift)
	require.Len(t, decoded.Providers, 2)
	assert.Equal(t, []string{"192.168.3.1/24"}, decoded.Providers[0].Extra)
	assert.Empty(t, decoded.Providers[0].Missing)
	assert.Equal(t, []string{"192.168.0.1/24"}, decoded.Providers[1].Extra)
}

func TestCheckCmd_TextToStdout(t *testing.T) {
	setupEnv(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()
	t.Setenv("O365_URL", server.URL+"/?clientrequestid=")

	out, err := runCLI(t, "check")

	require.NoError(t, err)
	assert.Contains(t, out, "SMTP allow-list check for NSG smtp-inbound")
	assert.Contains(t, out, "No O365 rules are missing from the NSG.")
	assert.Contains(t, out, "These O365 rules are no longer needed in the NSG:\n• 192.168.2.1/24\n• 192.168.3.1/24\n")
}

func TestCheckCmd_InvalidConfig(t *testing.T) {
	setupEnv(t)
	t.Setenv("TF_STATE", "")

	_, err := runCLI(t, "check")

	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestUnsupportedOutput(t *testing.T) {
	setupEnv(t)

	_, err := runCLI(t, "rules", "--output", "xml")

	assert.ErrorContains(t, err, "unsupported output format")
}
