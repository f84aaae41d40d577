package memory

import (
	"testing"

	"github.com/xraph/charter/store"
	"github.com/xraph/charter/store/storetest"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}
