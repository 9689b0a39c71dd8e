package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ayusman/madhubani/internal/config"
	"github.com/ayusman/madhubani/internal/gesture"
	"github.com/ayusman/madhubani/internal/store"
)

func TestParseFlags(t *testing.T) {
	o, err := parseFlags([]string{"-addr", "127.0.0.1:9000", "-camera", "2", "-preset", "strict", "-headless"})
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", o.addr)
	assert.Equal(t, 2, o.camera)
	assert.Equal(t, "strict", o.preset)
	assert.True(t, o.headless)
	assert.True(t, o.saveCanvas)

	_, err = parseFlags([]string{"-camera", "x"})
	assert.Error(t, err)
}

func TestSettingsURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/", settingsURL(":8080"))
	assert.Equal(t, "http://127.0.0.1:9000/", settingsURL("127.0.0.1:9000"))
}

func TestLoadTuning_Layers(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	defer st.Close()

	paths := config.Paths{Home: dir, Tuning: filepath.Join(dir, "tuning.json")}
	log := zaptest.NewLogger(t)

	// No file, no saved override: the preset as is.
	got, err := loadTuning(options{preset: "strict"}, paths, st, log)
	require.NoError(t, err)
	assert.Equal(t, config.StrictTuning().Calibration, got.Calibration)

	// The file applies over the preset, the saved override over the file.
	require.NoError(t, os.WriteFile(paths.Tuning, []byte(`{"smoothing": 0.25, "calibration": {"min_samples": 7}}`), 0644))
	require.NoError(t, st.Settings().Set(store.SettingTuning, `{"smoothing": 0.4}`))

	got, err = loadTuning(options{}, paths, st, log)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Calibration.MinSamples)
	assert.Equal(t, 0.4, got.Smoothing)
	assert.Equal(t, config.DefaultTuning().Gestures[gesture.KindDraw], got.Gestures[gesture.KindDraw])

	// The saved preset is used when no flag names one.
	require.NoError(t, st.Settings().Delete(store.SettingTuning))
	require.NoError(t, os.Remove(paths.Tuning))
	require.NoError(t, st.Settings().Set(store.SettingPreset, "responsive"))
	got, err = loadTuning(options{}, paths, st, log)
	require.NoError(t, err)
	assert.Equal(t, config.ResponsiveTuning().Smoothing, got.Smoothing)

	_, err = loadTuning(options{preset: "bogus"}, paths, st, log)
	assert.ErrorIs(t, err, config.ErrInvalid)
}
