// Package casebase registers the k6/x/casebase extension.
package casebase

import (
	"go.k6.io/k6/js/modules"

	"github.com/mmga-lab/casebase/pkg/k6ext"
)

func init() {
	modules.Register("k6/x/casebase", k6ext.New())
}
