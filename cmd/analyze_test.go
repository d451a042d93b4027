package cmd

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tuner/internal/tuner"
	"tuner/pkg/testutil"
)

const (
	testSampleRate = 44100
	testWindow     = 32768
)

// writeSineWAV writes two and a half windows of a 440 Hz tone.
func writeSineWAV(t *testing.T) string {
	t.Helper()
	wave := testutil.GenerateSineWave(testWindow*2+testWindow/2, testSampleRate, 440, 0.5)
	data := make([]int, len(wave))
	for i, s := range wave {
		data[i] = int(s)
	}

	path := filepath.Join(t.TempDir(), "a440.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, testSampleRate, 16, 1, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: testSampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	return path
}

func TestAnalyzeCommand(t *testing.T) {
	out, err := execute(t, "analyze", writeSineWAV(t))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3, out)
	for _, line := range lines {
		assert.Contains(t, line, "441 Hz A4")
	}
	assert.True(t, strings.HasPrefix(lines[0], "   0.000s"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "   0.743s"), lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "   1.486s"), lines[2])
}

func TestAnalyzeCommandJSON(t *testing.T) {
	out, err := execute(t, "analyze", "--json", writeSineWAV(t))
	require.NoError(t, err)

	var results []tuner.AnalysisResult
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		var r tuner.AnalysisResult
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		results = append(results, r)
	}
	require.Len(t, results, 3)

	for i, r := range results {
		assert.Equal(t, uint64(i+1), r.Sequence)
		assert.Equal(t, 441, r.FundamentalHz)
		require.NotNil(t, r.Note)
		assert.Equal(t, "A", r.Note.Name)
		assert.False(t, r.Gated)
	}
	assert.Equal(t, []int{testWindow, testWindow, testWindow / 2},
		[]int{results[0].Samples, results[1].Samples, results[2].Samples})
}

func TestAnalyzeCommandErrors(t *testing.T) {
	_, err := execute(t, "analyze", filepath.Join(t.TempDir(), "missing.wav"))
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = execute(t, "analyze")
	assert.Error(t, err)

	_, err = execute(t, "analyze", "--window-size", "1000", writeSineWAV(t))
	assert.Error(t, err)
}
