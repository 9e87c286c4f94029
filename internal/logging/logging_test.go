package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := Setup(&buf, "debug", "json")
	require.NoError(t, err)

	ctx := WithLogger(context.Background(), logger.WithField("batch_id", "b1"))
	FromContext(ctx).WithField("row", 3).Debug("row handled")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "row handled", line["msg"])
	assert.Equal(t, "b1", line["batch_id"])
	assert.EqualValues(t, 3, line["row"])
}

func TestSetupRejectsBadInput(t *testing.T) {
	_, err := Setup(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)
	_, err = Setup(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}

func TestFromContextDefault(t *testing.T) {
	entry := FromContext(context.Background())
	require.NotNil(t, entry)
	entry.Info("dropped")
}
