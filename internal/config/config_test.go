package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadFrom(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults only",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://seller.wildberries.ru/analytics-reports/sales", cfg.Console.URL)
				assert.Equal(t, 3*time.Second, cfg.Waits.Probe)
				assert.Equal(t, 60*time.Second, cfg.Waits.Download)
				assert.Equal(t, 10, cfg.Waits.AuthCycles)
				assert.Equal(t, 120*time.Millisecond, cfg.Delays.BetweenKeys)
				assert.Len(t, cfg.Cabinets, 6)
				assert.Equal(t, Cabinet{Name: "MAU", ID: "53607"}, cfg.Cabinets[0])
			},
		},
		{
			name: "yaml overrides defaults",
			file: `
console:
  url: https://example.test/reports
waits:
  download: 90s
cabinets:
  - name: ONE
    id: "111"
  - name: TWO
    id: "222"
logging:
  level: debug
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://example.test/reports", cfg.Console.URL)
				assert.Equal(t, 90*time.Second, cfg.Waits.Download)
				assert.Equal(t, 3*time.Second, cfg.Waits.Probe)
				assert.Equal(t, CabinetList{{Name: "ONE", ID: "111"}, {Name: "TWO", ID: "222"}}, cfg.Cabinets)
				assert.Equal(t, "debug", cfg.Logging.Level)
			},
		},
		{
			name: "env wins over yaml",
			file: "waits:\n  download: 90s\nauth:\n  phone: \"111\"\n",
			env: map[string]string{
				"WB_WAITS_DOWNLOAD": "2m",
				"WB_AUTH_PHONE":     "9991234567",
				"WB_CABINETS":       "MAU:53607, MMA:174711",
				"WB_API_TOKENS":     "MAU:abc,MMA:def",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 2*time.Minute, cfg.Waits.Download)
				assert.Equal(t, "9991234567", cfg.Auth.Phone)
				assert.Equal(t, CabinetList{{Name: "MAU", ID: "53607"}, {Name: "MMA", ID: "174711"}}, cfg.Cabinets)
				assert.Equal(t, map[string]string{"MAU": "abc", "MMA": "def"}, cfg.API.Tokens)
			},
		},
		{
			name:    "invalid console url",
			env:     map[string]string{"WB_CONSOLE_URL": "not a url"},
			wantErr: true,
		},
		{
			name:    "non numeric cabinet id",
			env:     map[string]string{"WB_CABINETS": "MAU:abc"},
			wantErr: true,
		},
		{
			name:    "duplicate cabinet",
			env:     map[string]string{"WB_CABINETS": "MAU:1,mau:2"},
			wantErr: true,
		},
		{
			name:    "malformed cabinet pair",
			env:     map[string]string{"WB_CABINETS": "MAU"},
			wantErr: true,
		},
		{
			name:    "bad log level",
			env:     map[string]string{"WB_LOGGING_LEVEL": "loud"},
			wantErr: true,
		},
		{
			name:    "sheets enabled without spreadsheet",
			env:     map[string]string{"WB_SHEETS_ENABLED": "true"},
			wantErr: true,
		},
		{
			name:    "broken yaml",
			file:    "console: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			cfg, err := LoadFrom(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	_, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate_Normalizes(t *testing.T) {
	cfg := Default()
	cfg.Logging.Level = "warning"
	cfg.Logging.Output = "stdout"
	cfg.Logging.FilePath = ""

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Logging.Output)
	assert.Equal(t, "wbreports.log", cfg.Logging.FilePath)
}

func TestCabinetList_Filter(t *testing.T) {
	list := DefaultCabinets()

	got, err := list.Filter([]string{"mma", "MAU"})
	require.NoError(t, err)
	assert.Equal(t, CabinetList{{Name: "MAU", ID: "53607"}, {Name: "MMA", ID: "174711"}}, got)

	all, err := list.Filter(nil)
	require.NoError(t, err)
	assert.Equal(t, list, all)

	_, err = list.Filter([]string{"nope"})
	assert.Error(t, err)
}

func TestCabinetList_Find(t *testing.T) {
	c, ok := DefaultCabinets().Find("Dreamlab")
	assert.True(t, ok)
	assert.Equal(t, "1140223", c.ID)

	_, ok = DefaultCabinets().Find("unknown")
	assert.False(t, ok)
}
