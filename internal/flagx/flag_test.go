package flagx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterArgs(t *testing.T) {
	known := Known{"-a": true, "-k": true, "-m": false}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"separate value", []string{"-a", ":8080", "-x", "1"}, []string{"-a", ":8080"}},
		{"equals form", []string{"-a=:8080", "-x=1"}, []string{"-a=:8080"}},
		{"bool does not eat positional", []string{"-m", "serve"}, []string{"-m"}},
		{"bool with equals", []string{"-m=false"}, []string{"-m=false"}},
		{"value missing at end", []string{"-k"}, []string{"-k"}},
		{"next token is a flag", []string{"-k", "-a", "x"}, []string{"-k", "-a", "x"}},
		{"unknown only", []string{"-x", "1", "pos"}, []string{}},
		{"repeated keeps order", []string{"-k", "a", "-k", "b"}, []string{"-k", "a", "-k", "b"}},
		{"empty", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FilterArgs(tt.args, known))
		})
	}
}

func TestConfigPath(t *testing.T) {
	assert.Equal(t, "/etc/dev.json", ConfigPath([]string{"-a", ":1", "-c", "/etc/dev.json"}))
	assert.Equal(t, "b.json", ConfigPath([]string{"-c", "a.json", "-config=b.json"}))
	assert.Empty(t, ConfigPath([]string{"-m", "-k", "pk"}))
}
