package builtin

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runAnalysis(t *testing.T, input string) analysisReport {
	t.Helper()

	raw, err := (&AnalyzeCodeTool{}).Execute(context.Background(), json.RawMessage(input))
	require.NoError(t, err)

	var report analysisReport
	require.NoError(t, json.Unmarshal(raw, &report))
	return report
}

func TestAnalyzeCode_RProgram(t *testing.T) {
	code := "library(dplyr)\nlibrary(haven)\n# derive ADSL\nsetwd(\"/home/stats/study\")\nadsl <- dm %>% mutate(SAFFL = \"Y\")\n"
	input, _ := json.Marshal(map[string]string{"code": code})

	report := runAnalysis(t, string(input))

	assert.Equal(t, "r", report.Language)
	assert.Equal(t, 6, report.TotalLines)
	assert.Equal(t, 4, report.CodeLines)
	assert.Equal(t, []string{"dplyr", "haven"}, report.Packages)
	assert.NotEmpty(t, report.Warnings)
}

func TestAnalyzeCode_PythonDetection(t *testing.T) {
	code := "import pandas as pd\nfrom scipy import stats\ndf = pd.DataFrame()\n"
	input, _ := json.Marshal(map[string]string{"code": code})

	report := runAnalysis(t, string(input))

	assert.Equal(t, "python", report.Language)
	assert.Equal(t, []string{"pandas", "scipy"}, report.Packages)
	assert.Empty(t, report.Warnings)
}

func TestAnalyzeCode_PythonShellWarning(t *testing.T) {
	input, _ := json.Marshal(map[string]string{
		"code":     "import os\nos.system('rm -rf tmp')\n",
		"language": "python",
	})

	report := runAnalysis(t, string(input))
	assert.Contains(t, report.Warnings[0], "shell invocation")
}

func TestAnalyzeCode_SAS(t *testing.T) {
	code := "* frequency of AEs;\nproc freq data=adae;\n  tables aedecod;\nrun;\n"
	input, _ := json.Marshal(map[string]string{"code": code, "language": "sas"})

	report := runAnalysis(t, string(input))

	assert.Equal(t, "sas", report.Language)
	assert.Equal(t, []string{"freq"}, report.Packages)
}

func TestAnalyzeCode_EmptyCodeIsTotal(t *testing.T) {
	report := runAnalysis(t, `{"code":""}`)
	assert.Equal(t, 1, report.TotalLines)
	assert.Equal(t, 0, report.CodeLines)
	assert.Empty(t, report.Packages)
}
