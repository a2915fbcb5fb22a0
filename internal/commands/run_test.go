package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunCmdEvaluatesMessageAndWritesTrace(t *testing.T) {
	refDataPath := writeRefData(t, `{
		"modelLibrary": [
			{"mnemonic": "Message", "name": "Message", "fieldName": "message", "entityType": 0, "children": [
				{"mnemonic": "LabResult", "name": "LabResult", "fieldName": "labResults", "entityType": 1, "children": [
					{"mnemonic": "LabResultInstance", "name": "LabResultInstance", "fieldName": "instances", "entityType": 2, "children": [
						{"mnemonic": "ResultValue", "name": "ResultValue", "fieldName": "resultValue", "entityType": 3}
					]}
				]}
			]}
		],
		"rubricLibrary": [
			{"name": "Core Rubric", "mnemonic": "core-v1", "evaluationProfileLibrary": [
				{"entityMnemonic": "ResultValue", "evaluationCriteria": [
					{"sequence": 1, "samMnemonic": "attribute-is-populated", "scoringEffect": 0, "scoringWeight": 1}
				]}
			]}
		]
	}`)

	messagePath := filepath.Join(t.TempDir(), "message.json")
	require.NoError(t, os.WriteFile(messagePath, []byte(`{
		"mnemonic": "Message",
		"labResults": {"instances": [{"resultValue": "7.2"}, {}]}
	}`), 0o644))

	traceDir := t.TempDir()

	cmd := &RunCmd{
		RefData:  refDataPath,
		Rubric:   "core-v1",
		Message:  messagePath,
		MsgID:    "msg-1",
		TraceDir: traceDir,
	}
	err := cmd.Run(&Globals{FHIRBaseURL: "http://unused", KnowledgeBaseURL: "http://unused"})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(traceDir, "msg-1.json"))
	require.NoError(t, err)
}

func TestRunCmdReportsCriticalFailures(t *testing.T) {
	refDataPath := writeRefData(t, `{
		"modelLibrary": [
			{"mnemonic": "Message", "name": "Message", "fieldName": "message", "entityType": 0, "children": [
				{"mnemonic": "LabResult", "name": "LabResult", "fieldName": "labResults", "entityType": 1, "children": [
					{"mnemonic": "LabResultInstance", "name": "LabResultInstance", "fieldName": "instances", "entityType": 2, "children": [
						{"mnemonic": "ResultValue", "name": "ResultValue", "fieldName": "resultValue", "entityType": 3}
					]}
				]}
			]}
		],
		"rubricLibrary": [
			{"name": "Core Rubric", "mnemonic": "core-v1", "evaluationProfileLibrary": [
				{"entityMnemonic": "ResultValue", "evaluationCriteria": [
					{"sequence": 1, "samMnemonic": "attribute-is-populated", "scoringEffect": 0, "scoringWeight": 1, "criticalityIndicator": true}
				]}
			]}
		]
	}`)

	messagePath := filepath.Join(t.TempDir(), "message.json")
	require.NoError(t, os.WriteFile(messagePath, []byte(`{
		"mnemonic": "Message",
		"labResults": {"instances": [{}]}
	}`), 0o644))

	cmd := &RunCmd{
		RefData: refDataPath,
		Rubric:  "core-v1",
		Message: messagePath,
		MsgID:   "msg-1",
	}
	err := cmd.Run(&Globals{FHIRBaseURL: "http://unused", KnowledgeBaseURL: "http://unused"})
	require.Error(t, err)
}

func TestRunCmdRejectsUnknownRubric(t *testing.T) {
	refDataPath := writeRefData(t, `{
		"modelLibrary": [{"mnemonic": "Message", "name": "Message", "fieldName": "message", "entityType": 0}]
	}`)
	messagePath := filepath.Join(t.TempDir(), "message.json")
	require.NoError(t, os.WriteFile(messagePath, []byte(`{"mnemonic": "Message"}`), 0o644))

	cmd := &RunCmd{
		RefData: refDataPath,
		Rubric:  "does-not-exist",
		Message: messagePath,
	}
	err := cmd.Run(&Globals{FHIRBaseURL: "http://unused", KnowledgeBaseURL: "http://unused"})
	require.Error(t, err)
}
