//go:build rnndebug

package rnn

// Built with -tags rnndebug: every update is checked for NaN/Inf.
func assertFinite(m *Model) {
	if !m.IsFinite() {
		panic("rnn: non-finite parameter after update")
	}
}
