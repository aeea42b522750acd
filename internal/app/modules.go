package app

import (
	"github.com/vk/portflow/internal/ops/flow"
	"github.com/vk/portflow/internal/ops/util"
	"github.com/vk/portflow/internal/registry"
)

// coreModules is the definitive list of all operation modules that are
// compiled into the portflow binary.
var coreModules = []registry.Module{
	&flow.Module{},
	&util.Module{},
}
