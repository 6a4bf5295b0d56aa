package memory

import (
	"testing"

	"github.com/narulaskaran/social-graph/application/ports"
	"github.com/narulaskaran/social-graph/infrastructure/persistence/storetest"
	"go.uber.org/zap"
)

func TestStoreConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.GraphStore {
		return NewStore(zap.NewNop())
	})
}
