package app

import (
	"github.com/specialistvlad/pipeforge/internal/registry"
	"github.com/specialistvlad/pipeforge/modules/env_vars"
	"github.com/specialistvlad/pipeforge/modules/http_request"
	"github.com/specialistvlad/pipeforge/modules/print"
)

// coreModules is the definitive list of handler modules compiled into the
// pipeforge binary.
var coreModules = []registry.Module{
	&env_vars.Module{},
	&http_request.Module{},
	&print.Module{},
}
