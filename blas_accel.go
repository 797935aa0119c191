//go:build accelerate

package main

import (
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/netlib/blas/netlib"
)

// Built with `-tags accelerate` gonum routes matvec and rank-one updates
// through the system CBLAS, e.g.
// CGO_LDFLAGS="-framework Accelerate" go build -tags accelerate .
func init() {
	blas64.Use(netlib.Implementation{})
}
