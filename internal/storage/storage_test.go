package storage_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/OCAP2/trcimport/internal/config"
	"github.com/OCAP2/trcimport/internal/storage"
	"github.com/OCAP2/trcimport/internal/storage/influx"
	"github.com/OCAP2/trcimport/internal/storage/memory"
	"github.com/OCAP2/trcimport/internal/storage/websocket"
)

func TestUploadableBackends(t *testing.T) {
	tests := []struct {
		name       string
		backend    storage.Backend
		uploadable bool
	}{
		{"memory", memory.New(config.MemoryConfig{}), true},
		{"websocket", websocket.New(websocket.Config{}, nil), false},
		{"influx", influx.New(config.InfluxConfig{}, zerolog.Nop()), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := tt.backend.(storage.Uploadable)
			assert.Equal(t, tt.uploadable, ok)
		})
	}
}
