// Package backend constructs the configured search engine.
package backend

import (
	"fmt"

	"github.com/Aman-CERP/docindex/internal/config"
	"github.com/Aman-CERP/docindex/internal/engine"
	"github.com/Aman-CERP/docindex/internal/engine/bleve"
	"github.com/Aman-CERP/docindex/internal/engine/memory"
	"github.com/Aman-CERP/docindex/internal/engine/opensearch"
	docerrors "github.com/Aman-CERP/docindex/internal/errors"
)

// Open returns the engine selected by cfg.Engine.Backend.
func Open(cfg *config.Config) (engine.Engine, error) {
	switch cfg.Engine.Backend {
	case config.BackendOpenSearch, "":
		c, err := opensearch.New(opensearch.Config{
			Endpoint:           cfg.Engine.Endpoint,
			Username:           cfg.Engine.Username,
			Password:           cfg.Engine.Password,
			InsecureSkipVerify: cfg.Engine.InsecureSkipVerify,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case config.BackendBleve:
		e, err := bleve.Open(bleve.Options{DataDir: cfg.BleveDir()})
		if err != nil {
			return nil, err
		}
		return e, nil
	case config.BackendMemory:
		return memory.New(), nil
	default:
		return nil, docerrors.ConfigError(fmt.Sprintf("unknown engine backend %q", cfg.Engine.Backend), nil)
	}
}
